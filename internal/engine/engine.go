package engine

// engine.go — orquestación: un tick válido entra, decisiones salen.
//
// El engine es el único dueño del estado por ticker. Cada evaluación corre
// bajo un TryLock: si un tick llega con la evaluación anterior aún en vuelo
// (órdenes lentas), se salta entero en vez de encolarse. El feed ya garantiza
// que solo llegan snapshots válidos.

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
	"github.com/alejandrodnm/updownbot/internal/orders"
	"github.com/alejandrodnm/updownbot/internal/ports"
	"github.com/alejandrodnm/updownbot/internal/strategy"
)

// Config parametriza el engine.
type Config struct {
	Arb    strategy.ArbConfig
	Follow strategy.FollowConfig

	HaltOnLowBalance      bool
	MinKalshiBalanceCents int64
	MinPolyBalanceUSDC    float64
	BalancePrefetch       time.Duration
}

// Engine evalúa ambas estrategias sobre cada snapshot y despacha órdenes.
type Engine struct {
	cfg      Config
	coord    *orders.Coordinator
	holdings ports.HoldingsStore
	kalshi   ports.KalshiTrader
	poly     ports.PolyTrader
	journal  ports.TradeJournal
	slotLog  ports.SlotLog

	ctx context.Context // base para las órdenes despachadas desde callbacks

	evalMu sync.Mutex
	states map[string]*strategy.TickerState

	balMu       sync.Mutex
	kalshiCents int64
	polyUSDC    float64
	balanceLow  bool
}

// New crea el engine.
func New(cfg Config, coord *orders.Coordinator, holdings ports.HoldingsStore,
	kalshi ports.KalshiTrader, poly ports.PolyTrader,
	journal ports.TradeJournal, slotLog ports.SlotLog) *Engine {
	return &Engine{
		cfg:      cfg,
		coord:    coord,
		holdings: holdings,
		kalshi:   kalshi,
		poly:     poly,
		journal:  journal,
		slotLog:  slotLog,
		states:   map[string]*strategy.TickerState{},
	}
}

// Start fija el contexto base y lanza el prefetch de saldos en background.
// Los saldos se leen fuera del hot path del tick; las decisiones consultan
// la última lectura.
func (e *Engine) Start(ctx context.Context) {
	e.ctx = ctx
	e.refreshBalances(ctx)

	go func() {
		t := time.NewTicker(e.cfg.BalancePrefetch)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				e.refreshBalances(ctx)
			}
		}
	}()
}

// OnTick es el callback del feed. Nunca bloquea sobre una evaluación previa.
func (e *Engine) OnTick(snap domain.Snapshot) {
	if !e.evalMu.TryLock() {
		slog.Debug("evaluation in flight, tick skipped", "ticker", snap.Market.Ticker)
		return
	}
	defer e.evalMu.Unlock()

	st := e.state(snap.Market)
	st.Observe(snap)

	e.runArb(snap, st)
	e.runFollow(snap, st)
}

// OnRollover descarta el estado del slot saliente. Las posiciones de
// Polymarket aún abiertas quedan en el holdings ledger y las liquida el
// settlement; el job de redemption las cobra desde ahí.
func (e *Engine) OnRollover(prev, next domain.MarketRef) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	if st, ok := e.states[prev.Ticker]; ok {
		if st.Pos != nil {
			slog.Info("position held to settlement on rollover",
				"ticker", prev.Ticker, "side", st.Pos.Side.String(), "size", st.Pos.Size)
		}
		for _, leg := range domain.Sides {
			if st.Arb(leg) != nil {
				slog.Info("arb leg held to settlement on rollover",
					"ticker", prev.Ticker, "leg", leg.String())
			}
		}
		delete(e.states, prev.Ticker)
	}
}

// state devuelve el estado del ticker, creándolo en la primera observación.
// Al crear, reconstruye posiciones desde el holdings ledger: si un reinicio
// dejó shares compradas este slot, vuelven a gestionarse bajo las reglas de
// salida de follow-confidence.
func (e *Engine) state(m domain.MarketRef) *strategy.TickerState {
	if st, ok := e.states[m.Ticker]; ok {
		return st
	}

	st := strategy.NewTickerState(m.Ticker, time.Now().UTC())
	e.states[m.Ticker] = st
	e.restoreHoldings(m, st)
	return st
}

// restoreHoldings repuebla la posición en memoria desde el ledger durable.
func (e *Engine) restoreHoldings(m domain.MarketRef, st *strategy.TickerState) {
	ledger, err := e.holdings.Load()
	if err != nil {
		slog.Warn("holdings load failed, starting clean", "err", err)
		return
	}
	tokens, ok := ledger[m.ConditionID]
	if !ok {
		return
	}

	for _, side := range domain.Sides {
		qty := tokens[m.Token(side)]
		if qty <= 0 {
			continue
		}
		slog.Info("restored position from holdings ledger",
			"ticker", m.Ticker, "side", side.String(), "qty", qty)
		st.OpenPosition(&domain.Position{
			Side:        side,
			Token:       m.Token(side),
			Size:        qty,
			ConditionID: m.ConditionID,
			OpenedAt:    time.Now().UTC(),
		})
		return
	}
}

// runArb despacha las decisiones del detector de arbitraje.
func (e *Engine) runArb(snap domain.Snapshot, st *strategy.TickerState) {
	for _, dec := range e.cfg.Arb.Evaluate(snap, st) {
		switch dec.Action {
		case strategy.ArbEnter:
			e.enterArb(snap, st, dec)
		case strategy.ArbExit:
			e.exitArb(snap, st, dec)
		}
	}
}

// enterArb abre la pareja de órdenes de una pata. El intento se consume
// ANTES de despachar: falle lo que falle, esta pata no se reintenta este slot.
func (e *Engine) enterArb(snap domain.Snapshot, st *strategy.TickerState, dec strategy.ArbDecision) {
	if !e.entriesAllowed() {
		return
	}
	st.MarkLegAttempted(dec.Leg)

	slog.Info("arb entry",
		"ticker", snap.Market.Ticker,
		"leg", dec.Leg.String(),
		"sum", dec.Sum,
	)
	e.slotLog.Eventf("ARB ENTER leg=%s sum=%.3f", dec.Leg.String(), dec.Sum)

	kalshiRes, polyRes := e.coord.EnterArbLeg(e.ctx, snap, dec.Leg,
		e.cfg.Arb.KalshiCount, e.cfg.Arb.PolyShares)

	polyToken := snap.Market.Token(dec.Leg.Opposite())
	if polyRes.OK() && !polyRes.DryRun {
		if err := e.holdings.Add(snap.Market.ConditionID, polyToken, polyRes.Size); err != nil {
			slog.Error("holdings write failed after arb buy", "err", err)
		}
	}

	switch {
	case kalshiRes.OK() && polyRes.OK():
		st.OpenArb(&domain.ArbPosition{
			Leg:         dec.Leg,
			KalshiSide:  dec.Leg,
			KalshiCount: e.cfg.Arb.KalshiCount,
			PolyToken:   polyToken,
			PolySize:    polyRes.Size,
			OpenedAt:    time.Now().UTC(),
		})
	case kalshiRes.OK():
		// Solo la pata de Kalshi: exposición direccional hasta settlement.
		slog.Warn("partial hedge: kalshi leg only",
			"ticker", snap.Market.Ticker, "leg", dec.Leg.String(), "poly_err", polyRes.Err)
		e.slotLog.Eventf("ARB PARTIAL kalshi-only leg=%s", dec.Leg.String())
	case polyRes.OK():
		slog.Warn("partial hedge: poly leg only",
			"ticker", snap.Market.Ticker, "leg", dec.Leg.String(), "kalshi_err", kalshiRes.Err)
		e.slotLog.Eventf("ARB PARTIAL poly-only leg=%s", dec.Leg.String())
	default:
		slog.Warn("arb entry failed on both venues", "ticker", snap.Market.Ticker,
			"kalshi_err", kalshiRes.Err, "poly_err", polyRes.Err)
	}
}

// exitArb cierra la pareja. Cada pata se apaga por separado: la que falle
// queda pendiente y se reintenta mientras la condición de salida persista.
func (e *Engine) exitArb(snap domain.Snapshot, st *strategy.TickerState, dec strategy.ArbDecision) {
	pos := st.Arb(dec.Leg)
	if pos == nil {
		return
	}

	slog.Info("arb exit",
		"ticker", snap.Market.Ticker,
		"leg", dec.Leg.String(),
		"sum", dec.Sum,
	)
	e.slotLog.Eventf("ARB EXIT leg=%s sum=%.3f", dec.Leg.String(), dec.Sum)

	kalshiRes, polyRes := e.coord.ExitArbLeg(e.ctx, snap.Market, pos)
	if kalshiRes.OK() {
		pos.KalshiCount = 0
	}
	if polyRes.OK() {
		pos.PolySize = 0
	}
	if pos.KalshiCount == 0 && pos.PolySize == 0 {
		st.CloseArb(dec.Leg)
		e.clearIfFlat(snap.Market, st)
	}
}

// runFollow despacha la decisión de follow-confidence, si la hay.
func (e *Engine) runFollow(snap domain.Snapshot, st *strategy.TickerState) {
	dec := e.cfg.Follow.Evaluate(snap, st)
	if dec == nil {
		return
	}
	if dec.Enter {
		e.enterFollow(snap, st, dec)
		return
	}
	e.exitFollow(snap, st, dec)
}

func (e *Engine) enterFollow(snap domain.Snapshot, st *strategy.TickerState, dec *strategy.FollowDecision) {
	if !e.entriesAllowed() {
		return
	}

	size := e.cfg.Follow.Shares
	if dec.UseBalanceSizing {
		size = e.balanceSizedShares(dec.Price)
		if size <= 0 {
			slog.Warn("balance too low for sized entry", "ticker", snap.Market.Ticker)
			return
		}
	}

	slog.Info("follow entry",
		"ticker", snap.Market.Ticker,
		"side", dec.Side.String(),
		"ask", dec.Price,
		"size", size,
		"balance_sized", dec.UseBalanceSizing,
	)

	res := e.coord.BuyFollow(e.ctx, snap.Market, dec.Side, dec.Price, size)
	if !res.OK() {
		return
	}

	token := snap.Market.Token(dec.Side)
	if !res.DryRun {
		if err := e.holdings.Add(snap.Market.ConditionID, token, res.Size); err != nil {
			slog.Error("holdings write failed after follow buy", "err", err)
		}
	}
	st.OpenPosition(&domain.Position{
		Side:        dec.Side,
		Token:       token,
		Size:        res.Size,
		ConditionID: snap.Market.ConditionID,
		EntryPrice:  res.Price,
		OpenedAt:    time.Now().UTC(),
	})
}

// exitFollow vende la posición con reintentos acotados. Si todos fallan la
// posición se fuerza a cerrada igualmente: bloquear el ciclo sobre un venue
// que no responde es peor que asumir el settlement.
func (e *Engine) exitFollow(snap domain.Snapshot, st *strategy.TickerState, dec *strategy.FollowDecision) {
	pos := st.Pos

	slog.Info("follow exit triggered",
		"ticker", snap.Market.Ticker,
		"side", pos.Side.String(),
		"ask", snap.PolyAsk(pos.Side),
		"threshold", dec.Threshold,
	)

	// El saldo real del token manda sobre el tamaño registrado: fills
	// parciales y redondeos del venue divergen del valor nominal. Con saldo
	// cero se vende una estimación conservadora: nunca más de lo comprado.
	size := pos.Size
	if qty, err := e.poly.TokenBalance(e.ctx, pos.Token); err != nil {
		slog.Warn("token balance read failed, using recorded size", "err", err)
	} else if qty <= 0 {
		size = pos.Size - e.cfg.Follow.SafetyMargin
		if size <= 0 {
			slog.Info("nothing left to sell", "ticker", snap.Market.Ticker)
			st.ClosePosition()
			e.clearIfFlat(snap.Market, st)
			return
		}
		slog.Warn("token balance reads zero, selling conservative estimate",
			"ticker", snap.Market.Ticker, "size", size)
	} else {
		size = qty
	}

	res := e.coord.SellFollow(e.ctx, snap.Market, pos.Token, size,
		e.cfg.Follow.SellRetries, e.cfg.Follow.SellRetryDelay)

	if res.OK() {
		st.ClosePosition()
		if !res.DryRun {
			e.clearIfFlat(snap.Market, st)
		}
		return
	}

	slog.Error("all sell attempts failed, abandoning position",
		"ticker", snap.Market.Ticker, "err", res.Err)
	e.slotLog.Eventf("ABANDON %s size=%.2f after %d sell attempts",
		pos.Side.String(), size, e.cfg.Follow.SellRetries)
	e.saveAbandoned(snap.Market, pos, size)
	st.ClosePosition()
	e.clearIfFlat(snap.Market, st)
}

// clearIfFlat limpia la entrada del settlement en el ledger cuando ya no
// queda nada abierto en este ticker. Lo que se mantiene hasta settlement
// nunca pasa por aquí: lo cobra el job de redemption.
func (e *Engine) clearIfFlat(m domain.MarketRef, st *strategy.TickerState) {
	if st.Pos != nil || st.Arb(domain.SideUp) != nil || st.Arb(domain.SideDown) != nil {
		return
	}
	if err := e.holdings.ClearSettlement(m.ConditionID); err != nil {
		slog.Warn("holdings clear failed", "settlement", m.ConditionID, "err", err)
	}
}

// balanceSizedShares dimensiona la compra con el colateral disponible,
// dejando un margen de seguridad en shares.
func (e *Engine) balanceSizedShares(price float64) float64 {
	e.balMu.Lock()
	bal := e.polyUSDC
	e.balMu.Unlock()

	if price <= 0 {
		return 0
	}
	return math.Floor(bal/price) - e.cfg.Follow.SafetyMargin
}

// entriesAllowed aplica la puerta de saldo mínimo. Con halt activado las
// entradas se cortan; sin él solo se avisa. Las salidas no pasan por aquí:
// cerrar riesgo siempre está permitido.
func (e *Engine) entriesAllowed() bool {
	e.balMu.Lock()
	low := e.balanceLow
	e.balMu.Unlock()

	if !low {
		return true
	}
	if e.cfg.HaltOnLowBalance {
		slog.Warn("entries halted: balance below minimum")
		return false
	}
	slog.Warn("balance below minimum, trading anyway (halt disabled)")
	return true
}

// refreshBalances lee ambos saldos y actualiza la puerta.
func (e *Engine) refreshBalances(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kc, kErr := e.kalshi.Balance(rctx)
	pu, pErr := e.poly.Balance(rctx)

	e.balMu.Lock()
	defer e.balMu.Unlock()

	if kErr != nil {
		slog.Warn("kalshi balance read failed", "err", kErr)
	} else {
		e.kalshiCents = kc
	}
	if pErr != nil {
		slog.Warn("polymarket balance read failed", "err", pErr)
	} else {
		e.polyUSDC = pu
	}

	wasLow := e.balanceLow
	e.balanceLow = e.kalshiCents < e.cfg.MinKalshiBalanceCents ||
		e.polyUSDC < e.cfg.MinPolyBalanceUSDC
	if e.balanceLow != wasLow {
		slog.Info("balance gate changed",
			"low", e.balanceLow,
			"kalshi_cents", e.kalshiCents,
			"poly_usdc", e.polyUSDC,
		)
	}
}

// saveAbandoned deja constancia durable del abandono.
func (e *Engine) saveAbandoned(m domain.MarketRef, pos *domain.Position, size float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.journal.SaveTrade(ctx, domain.TradeEvent{
		At:       time.Now().UTC(),
		Ticker:   m.Ticker,
		Strategy: "follow",
		Venue:    "polymarket",
		Action:   "sell",
		Side:     pos.Side.String(),
		Token:    pos.Token,
		Size:     size,
		Status:   "abandoned",
		Note:     "sell retries exhausted",
	})
	if err != nil {
		slog.Warn("journal write failed", "err", err)
	}
}
