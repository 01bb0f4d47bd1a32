package feed

// feed.go — sampling dual-venue a ritmo fijo del mercado updown activo.
//
// El scheduling corrige drift: cada tick se programa relativo al COMIENZO del
// tick anterior, no a su final, así la cadencia no se degrada con la latencia
// de los reads. Si un tick tarda más que el intervalo, los ticks perdidos se
// saltan sin encolarse.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
	"github.com/alejandrodnm/updownbot/internal/ports"
)

// SlotLength es la duración de la ventana operable de cada ticker.
const SlotLength = 15 * time.Minute

// Callbacks recibe los eventos del feed. OnTick solo ve snapshots válidos.
type Callbacks struct {
	OnTick     func(snap domain.Snapshot)
	OnRollover func(prev, next domain.MarketRef)
}

// Config parametriza el feed.
type Config struct {
	Interval time.Duration
	Series   string // serie de Kalshi, p.ej. KXBTCD
	PolySlug string // prefijo de slug de Gamma, p.ej. bitcoin-up-or-down
	Pinned   string // ticker fijado; desactiva discovery y rollover
}

// Feed sondea ambos venues para el mercado activo y despacha snapshots.
type Feed struct {
	kalshi  ports.KalshiMarkets
	poly    ports.PolyMarkets
	journal ports.TradeJournal
	slotLog ports.SlotLog
	cfg     Config

	market domain.MarketRef
}

// New crea el feed. Los puertos de lectura son los únicos que toca.
func New(kalshi ports.KalshiMarkets, poly ports.PolyMarkets,
	journal ports.TradeJournal, slotLog ports.SlotLog, cfg Config) *Feed {
	return &Feed{kalshi: kalshi, poly: poly, journal: journal, slotLog: slotLog, cfg: cfg}
}

// Market devuelve la referencia del mercado activo.
func (f *Feed) Market() domain.MarketRef { return f.market }

// Run resuelve el mercado inicial y sondea hasta que el contexto muera o,
// en modo pinned, hasta que el ticker fijado cierre.
func (f *Feed) Run(ctx context.Context, cb Callbacks) error {
	m, err := f.discover(ctx)
	if err != nil {
		return fmt.Errorf("feed.Run: initial discovery: %w", err)
	}
	f.market = m
	slog.Info("feed started",
		"ticker", m.Ticker,
		"close", m.CloseTime.UTC().Format(time.RFC3339),
		"interval", f.cfg.Interval,
	)

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		start := time.Now()
		f.tick(ctx, cb)

		// Programación relativa al comienzo del tick; los ticks que el
		// anterior se comió se saltan de golpe.
		next = next.Add(f.cfg.Interval)
		if !next.After(time.Now()) {
			skipped := 0
			for !next.After(time.Now()) {
				next = next.Add(f.cfg.Interval)
				skipped++
			}
			slog.Warn("tick overran interval, skipping",
				"ticker", f.market.Ticker,
				"skipped", skipped,
				"took", time.Since(start),
			)
		}

		if f.rolloverDue() {
			if done, err := f.rollover(ctx, cb); done {
				return err
			}
		}
	}
}

// tick lee ambos venues concurrentemente, valida el snapshot y lo despacha.
// Un snapshot con cualquier lado ausente o fuera de rango se descarta entero.
func (f *Feed) tick(ctx context.Context, cb Callbacks) {
	tctx, cancel := context.WithTimeout(ctx, f.cfg.Interval)
	defer cancel()

	var (
		wg               sync.WaitGroup
		km               domain.KalshiMarket
		upAsk, dnAsk     float64
		kErr, uErr, dErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		km, kErr = f.kalshi.Market(tctx, f.market.Ticker)
	}()
	go func() {
		defer wg.Done()
		upAsk, uErr = f.poly.BestAsk(tctx, f.market.UpToken)
	}()
	go func() {
		defer wg.Done()
		dnAsk, dErr = f.poly.BestAsk(tctx, f.market.DownToken)
	}()
	wg.Wait()

	for _, err := range []error{kErr, uErr, dErr} {
		if err != nil {
			slog.Warn("tick read failed, snapshot discarded", "ticker", f.market.Ticker, "err", err)
			return
		}
	}

	snap := domain.Snapshot{
		Market:        f.market,
		KalshiUpAsk:   km.YesAsk,
		KalshiDownAsk: km.NoAsk,
		PolyUpAsk:     upAsk,
		PolyDownAsk:   dnAsk,
		SampledAt:     time.Now().UTC(),
	}
	if !snap.Valid() {
		slog.Warn("snapshot out of range, discarded",
			"ticker", f.market.Ticker,
			"kalshi_up", snap.KalshiUpAsk,
			"kalshi_down", snap.KalshiDownAsk,
			"poly_up", snap.PolyUpAsk,
			"poly_down", snap.PolyDownAsk,
		)
		return
	}

	f.slotLog.Snapshot(snap)
	if err := f.journal.SaveTick(ctx, snap); err != nil {
		slog.Warn("tick journal write failed", "err", err)
	}
	if cb.OnTick != nil {
		cb.OnTick(snap)
	}
}

// rolloverDue reporta si el slot activo ya cerró.
func (f *Feed) rolloverDue() bool {
	return !f.market.CloseTime.IsZero() && time.Now().After(f.market.CloseTime)
}

// rollover re-resuelve el mercado del nuevo slot en el mismo proceso.
// En modo pinned no hay siguiente slot: el feed termina limpio.
// Si la discovery falla se reintenta al tick siguiente; done solo es true
// cuando el feed debe terminar.
func (f *Feed) rollover(ctx context.Context, cb Callbacks) (done bool, err error) {
	if f.cfg.Pinned != "" {
		slog.Info("pinned ticker closed, stopping feed", "ticker", f.cfg.Pinned)
		return true, nil
	}

	next, err := f.discover(ctx)
	if err != nil {
		slog.Warn("rollover discovery failed, will retry", "err", err)
		return false, nil
	}
	if next.Ticker == f.market.Ticker {
		// El venue aún lista el slot saliente como el próximo; esperar.
		return false, nil
	}

	prev := f.market
	f.market = next
	slog.Info("slot rollover",
		"prev", prev.Ticker,
		"next", next.Ticker,
		"close", next.CloseTime.UTC().Format(time.RFC3339),
	)
	f.slotLog.Eventf("ROLLOVER %s -> %s", prev.Ticker, next.Ticker)
	if cb.OnRollover != nil {
		cb.OnRollover(prev, next)
	}
	return false, nil
}

// discover resuelve la misma instancia de mercado en ambos venues: el ticker
// de Kalshi manda, y el slug de Gamma se deriva del comienzo del slot.
func (f *Feed) discover(ctx context.Context) (domain.MarketRef, error) {
	var (
		km  domain.KalshiMarket
		err error
	)
	if f.cfg.Pinned != "" {
		km, err = f.kalshi.Market(ctx, f.cfg.Pinned)
	} else {
		km, err = f.kalshi.NextOpenMarket(ctx, f.cfg.Series)
	}
	if err != nil {
		return domain.MarketRef{}, fmt.Errorf("feed.discover: kalshi: %w", err)
	}

	slotStart := km.CloseTime.Add(-SlotLength)
	pm, err := f.poly.MarketForSlot(ctx, f.cfg.PolySlug, slotStart)
	if err != nil {
		return domain.MarketRef{}, fmt.Errorf("feed.discover: polymarket: %w", err)
	}

	return domain.MarketRef{
		Ticker:      km.Ticker,
		ConditionID: pm.ConditionID,
		UpToken:     pm.UpToken,
		DownToken:   pm.DownToken,
		TickSize:    pm.TickSize,
		NegRisk:     pm.NegRisk,
		CloseTime:   km.CloseTime,
		SlotStart:   slotStart,
	}, nil
}
