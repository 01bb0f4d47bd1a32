package orders

// coordinator.go — ejecución cross-venue de las decisiones de estrategia.
//
// Las parejas de órdenes de arbitraje se despachan concurrentemente: ambas
// salen al cable antes de que ninguna resuelva, y el resultado se espera
// conjunto antes de tocar estado. Eso acota (no elimina) la ventana en la que
// solo una pata del hedge está abierta.
//
// Política de fallos (ver también el engine):
//   - Pata de Polymarket sin fill → exactamente un reintento tras una espera
//     fija, re-preciado al best ask actual más un buffer.
//   - Pata de Kalshi fallida → log y seguir; no se deshace la otra pata:
//     un trade compensatorio tiene su propio riesgo de ejecución.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
	"github.com/alejandrodnm/updownbot/internal/ports"
)

const maxBuyPrice = 0.99 // techo del markup sobre el ask observado

// Config controla el coordinador.
type Config struct {
	BuyMarkup         float64 // markup acotado sobre el ask observado en compras GTC
	MinNotional       float64 // USDC mínimos por orden; por debajo se rechaza sin transmitir
	RetryDelay        time.Duration
	RetryBuffer       float64 // sobre el best ask al re-preciar el reintento
	FulfillCheckDelay time.Duration
	DryRunKalshi      bool
	DryRunPoly        bool
}

// Result es la forma uniforme del resultado de una orden en cualquier venue:
// o un order id, o un error estructurado. Nunca un panic.
type Result struct {
	OrderID string
	Price   float64
	Size    float64
	DryRun  bool
	Err     error
}

// OK reporta si la orden se aceptó.
func (r Result) OK() bool { return r.Err == nil }

// Unfilled reporta si el fallo fue un rechazo por fill incompleto.
func (r Result) Unfilled() bool { return errors.Is(r.Err, domain.ErrUnfilled) }

// Coordinator ejecuta órdenes en ambos venues y reporta al journal.
type Coordinator struct {
	kalshi  ports.KalshiTrader
	poly    ports.PolyTrader
	asks    ports.PolyMarkets
	journal ports.TradeJournal
	slotLog ports.SlotLog
	cfg     Config
	wg      sync.WaitGroup // chequeos de fulfillment en vuelo
}

// New crea el coordinador.
func New(kalshi ports.KalshiTrader, poly ports.PolyTrader, asks ports.PolyMarkets,
	journal ports.TradeJournal, slotLog ports.SlotLog, cfg Config) *Coordinator {
	return &Coordinator{
		kalshi:  kalshi,
		poly:    poly,
		asks:    asks,
		journal: journal,
		slotLog: slotLog,
		cfg:     cfg,
	}
}

// Wait espera a los chequeos de fulfillment pendientes. Solo para shutdown y tests.
func (c *Coordinator) Wait() { c.wg.Wait() }

// EnterArbLeg abre las dos patas del hedge concurrentemente: leg en Kalshi y
// el lado contrario en Polymarket. Devuelve ambos resultados una vez
// resueltos los dos.
func (c *Coordinator) EnterArbLeg(ctx context.Context, snap domain.Snapshot, leg domain.Side,
	kalshiCount int, polyShares float64) (kalshiRes, polyRes Result) {

	polySide := leg.Opposite()
	polyToken := snap.Market.Token(polySide)
	polyAsk := snap.PolyAsk(polySide)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		kalshiRes = c.buyKalshi(ctx, snap.Market.Ticker, "arb", leg, kalshiCount, snap.KalshiAsk(leg))
	}()
	go func() {
		defer wg.Done()
		polyRes = c.buyPoly(ctx, snap.Market, "arb", polySide, polyToken, polyAsk, polyShares)
		if polyRes.Unfilled() {
			polyRes = c.retryPolyBuy(ctx, snap.Market, "arb", polySide, polyToken, polyShares)
		}
	}()
	wg.Wait()
	return kalshiRes, polyRes
}

// ExitArbLeg cierra las dos patas concurrentemente. Sin reintentos más allá
// de los internos de cada venue.
func (c *Coordinator) ExitArbLeg(ctx context.Context, market domain.MarketRef,
	pos *domain.ArbPosition) (kalshiRes, polyRes Result) {

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		kalshiRes = c.sellKalshi(ctx, market.Ticker, "arb", pos.KalshiSide, pos.KalshiCount)
	}()
	go func() {
		defer wg.Done()
		polyRes = c.sellPoly(ctx, market.Ticker, "arb", pos.PolyToken, pos.PolySize)
	}()
	wg.Wait()
	return kalshiRes, polyRes
}

// BuyFollow compra el lado dado en Polymarket (GTC con markup acotado).
func (c *Coordinator) BuyFollow(ctx context.Context, market domain.MarketRef,
	side domain.Side, observedAsk, size float64) Result {
	return c.buyPoly(ctx, market, "follow", side, market.Token(side), observedAsk, size)
}

// SellFollow vende con reintentos acotados y espera fija entre intentos.
// Devuelve el último resultado; si todos fallan, el caller decide el abandono.
func (c *Coordinator) SellFollow(ctx context.Context, market domain.MarketRef,
	token string, size float64, attempts int, delay time.Duration) Result {

	if attempts <= 0 {
		attempts = 1
	}
	var res Result
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			}
		}
		res = c.sellPoly(ctx, market.Ticker, "follow", token, size)
		if res.OK() {
			return res
		}
		slog.Warn("follow sell attempt failed",
			"ticker", market.Ticker,
			"attempt", i+1,
			"of", attempts,
			"err", res.Err,
		)
	}
	return res
}

// buyKalshi coloca una compra limit immediate-or-cancel al ask observado.
func (c *Coordinator) buyKalshi(ctx context.Context, ticker, strat string,
	side domain.Side, count, limitCents int) Result {

	if c.cfg.DryRunKalshi {
		return c.dryRun("kalshi", strat, ticker, "buy", side.String(), "",
			float64(limitCents)/100, float64(count))
	}

	out, err := c.kalshi.PlaceOrder(ctx, domain.KalshiOrder{
		Ticker:     ticker,
		Side:       side,
		Action:     domain.KalshiBuy,
		Count:      count,
		LimitCents: limitCents,
		TIF:        "immediate_or_cancel",
	})
	res := Result{OrderID: out.OrderID, Price: float64(limitCents) / 100, Size: float64(count), Err: err}
	c.record(ticker, strat, "kalshi", "buy", side.String(), "", res)
	return res
}

// sellKalshi cierra exposición en Kalshi con una venta immediate-or-cancel.
// Precio límite 1 céntimo: vender a mercado contra lo que haya.
func (c *Coordinator) sellKalshi(ctx context.Context, ticker, strat string,
	side domain.Side, count int) Result {

	if c.cfg.DryRunKalshi {
		return c.dryRun("kalshi", strat, ticker, "sell", side.String(), "", 0.01, float64(count))
	}

	out, err := c.kalshi.PlaceOrder(ctx, domain.KalshiOrder{
		Ticker:     ticker,
		Side:       side,
		Action:     domain.KalshiSell,
		Count:      count,
		LimitCents: 1,
		TIF:        "immediate_or_cancel",
	})
	res := Result{OrderID: out.OrderID, Size: float64(count), Err: err}
	c.record(ticker, strat, "kalshi", "sell", side.String(), "", res)
	return res
}

// buyPoly coloca una compra GTC con markup acotado sobre el ask observado.
func (c *Coordinator) buyPoly(ctx context.Context, market domain.MarketRef, strat string,
	side domain.Side, token string, observedAsk, size float64) Result {

	price := observedAsk + c.cfg.BuyMarkup
	if price > maxBuyPrice {
		price = maxBuyPrice
	}
	return c.placePolyBuy(ctx, market, strat, side, token, price, size)
}

// placePolyBuy transmite la compra al precio ya decidido, con chequeo de
// notional mínimo.
func (c *Coordinator) placePolyBuy(ctx context.Context, market domain.MarketRef, strat string,
	side domain.Side, token string, price, size float64) Result {

	if notional := price * size; notional < c.cfg.MinNotional {
		res := Result{Err: fmt.Errorf("orders.placePolyBuy: notional $%.2f below minimum $%.2f",
			notional, c.cfg.MinNotional)}
		c.record(market.Ticker, strat, "polymarket", "buy", side.String(), token, res)
		return res
	}

	if c.cfg.DryRunPoly {
		return c.dryRun("polymarket", strat, market.Ticker, "buy", side.String(), token, price, size)
	}

	id, err := c.poly.LimitBuy(ctx, domain.PolyBuy{
		TokenID:  token,
		Price:    price,
		Size:     size,
		TickSize: market.TickSize,
		NegRisk:  market.NegRisk,
	})
	res := Result{OrderID: id, Price: price, Size: size, Err: err}
	c.record(market.Ticker, strat, "polymarket", "buy", side.String(), token, res)
	if res.OK() {
		c.scheduleFulfillCheck(market.Ticker, strat, id)
	}
	return res
}

// retryPolyBuy es el único reintento de una pata de arbitraje sin fill:
// espera fija y re-precio al best ask actual más un buffer pequeño.
func (c *Coordinator) retryPolyBuy(ctx context.Context, market domain.MarketRef, strat string,
	side domain.Side, token string, size float64) Result {

	select {
	case <-time.After(c.cfg.RetryDelay):
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}

	ask, err := c.asks.BestAsk(ctx, token)
	if err != nil {
		res := Result{Err: fmt.Errorf("orders.retryPolyBuy: re-price: %w", err)}
		c.record(market.Ticker, strat, "polymarket", "buy", side.String(), token, res)
		return res
	}

	slog.Info("retrying poly leg at current ask",
		"ticker", market.Ticker,
		"side", side.String(),
		"ask", ask,
	)
	return c.placePolyBuy(ctx, market, strat, side, token, ask+c.cfg.RetryBuffer, size)
}

// sellPoly coloca una venta market FAK.
func (c *Coordinator) sellPoly(ctx context.Context, ticker, strat, token string, size float64) Result {
	if c.cfg.DryRunPoly {
		return c.dryRun("polymarket", strat, ticker, "sell", "", token, 0, size)
	}

	id, err := c.poly.MarketSell(ctx, token, size)
	res := Result{OrderID: id, Size: size, Err: err}
	c.record(ticker, strat, "polymarket", "sell", "", token, res)
	if res.OK() {
		c.scheduleFulfillCheck(ticker, strat, id)
	}
	return res
}

// dryRun loguea la acción sin transmitirla y devuelve un resultado marcado.
func (c *Coordinator) dryRun(venue, strat, ticker, action, side, token string, price, size float64) Result {
	slog.Info("DRY RUN: order not transmitted",
		"venue", venue,
		"strategy", strat,
		"ticker", ticker,
		"action", action,
		"side", side,
		"price", price,
		"size", size,
	)
	c.slotLog.Eventf("DRY RUN %s %s %s %s size=%.2f price=%.3f", venue, strat, action, side, size, price)
	c.saveTrade(domain.TradeEvent{
		At: time.Now().UTC(), Ticker: ticker, Strategy: strat, Venue: venue,
		Action: action, Side: side, Token: token, Price: price, Size: size,
		Status: "dry-run",
	})
	return Result{OrderID: "dry-run", Price: price, Size: size, DryRun: true}
}

// record loguea y persiste el resultado de una orden real.
func (c *Coordinator) record(ticker, strat, venue, action, side, token string, res Result) {
	status := "ok"
	note := ""
	switch {
	case res.Unfilled():
		status = "unfilled"
		note = res.Err.Error()
	case res.Err != nil:
		status = "error"
		note = res.Err.Error()
	}

	if res.Err != nil {
		slog.Warn("order failed",
			"venue", venue, "strategy", strat, "ticker", ticker,
			"action", action, "side", side, "err", res.Err,
		)
		c.slotLog.Eventf("ERROR %s %s %s %s: %v", venue, strat, action, side, res.Err)
	} else {
		slog.Info("order placed",
			"venue", venue, "strategy", strat, "ticker", ticker,
			"action", action, "side", side,
			"price", res.Price, "size", res.Size, "order_id", res.OrderID,
		)
		c.slotLog.Eventf("%s %s %s %s size=%.2f price=%.3f id=%s",
			venue, strat, action, side, res.Size, res.Price, res.OrderID)
	}

	c.saveTrade(domain.TradeEvent{
		At: time.Now().UTC(), Ticker: ticker, Strategy: strat, Venue: venue,
		Action: action, Side: side, Token: token,
		Price: res.Price, Size: res.Size, OrderID: res.OrderID,
		Status: status, Note: note,
	})
}

// scheduleFulfillCheck programa un chequeo best-effort del estado de la
// orden. Solo observabilidad: se loguea, nunca se reintenta desde aquí.
func (c *Coordinator) scheduleFulfillCheck(ticker, strat, orderID string) {
	if orderID == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		time.Sleep(c.cfg.FulfillCheckDelay)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		state, err := c.poly.OrderStatus(ctx, orderID)
		if err != nil {
			slog.Debug("fulfill check failed", "order_id", orderID, "err", err)
			return
		}
		slog.Info("fulfill check",
			"order_id", orderID,
			"status", state.Status,
			"matched", state.SizeMatched,
		)
		c.saveTrade(domain.TradeEvent{
			At: time.Now().UTC(), Ticker: ticker, Strategy: strat, Venue: "polymarket",
			Action: "fulfill-check", OrderID: orderID,
			Size: state.SizeMatched, Status: "ok", Note: state.Status,
		})
	}()
}

// saveTrade persiste en el journal sin propagar el error: perder una fila de
// observabilidad nunca debe abortar una decisión de trading.
func (c *Coordinator) saveTrade(ev domain.TradeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.journal.SaveTrade(ctx, ev); err != nil {
		slog.Warn("journal write failed", "err", err)
	}
}
