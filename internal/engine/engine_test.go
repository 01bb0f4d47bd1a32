package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updownbot/internal/adapters/notify"
	"github.com/alejandrodnm/updownbot/internal/domain"
	"github.com/alejandrodnm/updownbot/internal/engine"
	"github.com/alejandrodnm/updownbot/internal/orders"
	"github.com/alejandrodnm/updownbot/internal/strategy"
)

// --- fakes ---

type fakeKalshi struct {
	mu      sync.Mutex
	placed  []domain.KalshiOrder
	balance int64
}

func (f *fakeKalshi) PlaceOrder(_ context.Context, o domain.KalshiOrder) (domain.KalshiOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, o)
	return domain.KalshiOrderResult{OrderID: "k-1", FilledCount: o.Count, Status: "executed"}, nil
}

func (f *fakeKalshi) Balance(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeKalshi) setBalance(cents int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = cents
}

func (f *fakeKalshi) orders() []domain.KalshiOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.KalshiOrder(nil), f.placed...)
}

type fakePoly struct {
	mu       sync.Mutex
	buys     []domain.PolyBuy
	sells    []float64
	balance  float64
	tokenBal float64
}

func (f *fakePoly) LimitBuy(_ context.Context, buy domain.PolyBuy) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys = append(f.buys, buy)
	return "p-1", nil
}

func (f *fakePoly) MarketSell(_ context.Context, _ string, size float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sells = append(f.sells, size)
	return "p-2", nil
}

func (f *fakePoly) Balance(context.Context) (float64, error) { return f.balance, nil }

func (f *fakePoly) TokenBalance(context.Context, string) (float64, error) { return f.tokenBal, nil }

func (f *fakePoly) OrderStatus(context.Context, string) (domain.OrderState, error) {
	return domain.OrderState{Status: "matched"}, nil
}

func (f *fakePoly) BestAsk(context.Context, string) (float64, error) { return 0.50, nil }

func (f *fakePoly) MarketForSlot(context.Context, string, time.Time) (domain.PolyMarket, error) {
	return domain.PolyMarket{}, nil
}

type memHoldings struct {
	mu sync.Mutex
	m  map[string]map[string]float64
}

func newMemHoldings() *memHoldings { return &memHoldings{m: map[string]map[string]float64{}} }

func (h *memHoldings) Load() (map[string]map[string]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := map[string]map[string]float64{}
	for k, v := range h.m {
		inner := map[string]float64{}
		for t, q := range v {
			inner[t] = q
		}
		out[k] = inner
	}
	return out, nil
}

func (h *memHoldings) Add(settlement, token string, qty float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m[settlement] == nil {
		h.m[settlement] = map[string]float64{}
	}
	h.m[settlement][token] += qty
	return nil
}

func (h *memHoldings) ClearSettlement(settlement string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.m, settlement)
	return nil
}

func (h *memHoldings) qty(settlement, token string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m[settlement][token]
}

func (h *memHoldings) has(settlement string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.m[settlement]
	return ok
}

type nopJournal struct{}

func (nopJournal) SaveTick(context.Context, domain.Snapshot) error { return nil }
func (nopJournal) SaveTrade(context.Context, domain.TradeEvent) error { return nil }

// --- helpers ---

func makeSnap(kUp, kDown int, pUp, pDown float64) domain.Snapshot {
	slotStart := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)
	return domain.Snapshot{
		Market: domain.MarketRef{
			Ticker:      "KXBTCD-25AUG281500",
			ConditionID: "0xcond",
			UpToken:     "111",
			DownToken:   "222",
			SlotStart:   slotStart,
			CloseTime:   slotStart.Add(15 * time.Minute),
		},
		KalshiUpAsk:   kUp,
		KalshiDownAsk: kDown,
		PolyUpAsk:     pUp,
		PolyDownAsk:   pDown,
		SampledAt:     slotStart.Add(5 * time.Minute),
	}
}

type rig struct {
	eng      *engine.Engine
	kalshi   *fakeKalshi
	poly     *fakePoly
	holdings *memHoldings
}

func newRig(t *testing.T, haltOnLow bool) *rig {
	t.Helper()
	k := &fakeKalshi{balance: 100_00}
	p := &fakePoly{balance: 500, tokenBal: 20}
	h := newMemHoldings()

	coord := orders.New(k, p, p, nopJournal{}, notify.NopSlotLog{}, orders.Config{
		BuyMarkup:         0.02,
		MinNotional:       1.0,
		RetryDelay:        time.Millisecond,
		RetryBuffer:       0.02,
		FulfillCheckDelay: time.Millisecond,
	})

	eng := engine.New(engine.Config{
		Arb: strategy.ArbConfig{BandLow: 0.75, BandHigh: 0.92, KalshiCount: 10, PolyShares: 10},
		Follow: strategy.FollowConfig{
			BuyMin: 0.80, BuyMax: 0.97, SellBelow: 0.77, CertBuffer: 0.15,
			Shares: 20, SafetyMargin: 1,
			BalanceSizingAfter: 10 * time.Minute,
			SellRetries:        2, SellRetryDelay: time.Millisecond,
		},
		HaltOnLowBalance:      haltOnLow,
		MinKalshiBalanceCents: 5_00,
		MinPolyBalanceUSDC:    10,
		BalancePrefetch:       time.Hour,
	}, coord, h, k, p, nopJournal{}, notify.NopSlotLog{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng.Start(ctx)

	return &rig{eng: eng, kalshi: k, poly: p, holdings: h}
}

// --- tests ---

func TestEngine_ArbEntryOpensBothLegs(t *testing.T) {
	r := newRig(t, true)

	// Pata UP: 0.55 + 0.30 = 0.85 dentro de banda; DOWN fuera.
	snap := makeSnap(55, 60, 0.60, 0.30)
	r.eng.OnTick(snap)

	require.Len(t, r.kalshi.orders(), 1)
	assert.Equal(t, domain.SideUp, r.kalshi.orders()[0].Side)
	require.Len(t, r.poly.buys, 1)
	assert.Equal(t, "222", r.poly.buys[0].TokenID)
	assert.InDelta(t, 10, r.holdings.qty("0xcond", "222"), 1e-9)

	// Mismo snapshot otra vez: la posición está abierta, no se re-entra.
	r.eng.OnTick(snap)
	assert.Len(t, r.kalshi.orders(), 1)
	assert.Len(t, r.poly.buys, 1)
}

func TestEngine_ArbExitSellsAndClearsLedger(t *testing.T) {
	r := newRig(t, true)

	r.eng.OnTick(makeSnap(55, 60, 0.60, 0.30)) // entra pata UP a 0.85
	require.Len(t, r.poly.buys, 1)

	// El coste combinado colapsa por debajo del low bound: salir.
	r.eng.OnTick(makeSnap(40, 75, 0.60, 0.30)) // UP: 0.40 + 0.30 = 0.70

	orders := r.kalshi.orders()
	require.Len(t, orders, 2)
	assert.Equal(t, domain.KalshiSell, orders[1].Action)
	assert.Len(t, r.poly.sells, 1)
	assert.False(t, r.holdings.has("0xcond"), "flat ticker clears its settlement entry")
}

func TestEngine_ArbOneAttemptPerLeg(t *testing.T) {
	r := newRig(t, true)

	r.eng.OnTick(makeSnap(55, 60, 0.60, 0.30)) // entra y abre
	r.eng.OnTick(makeSnap(40, 75, 0.60, 0.30)) // sale
	require.Len(t, r.kalshi.orders(), 2)

	// La banda vuelve a darse, pero la pata ya consumió su intento del slot.
	r.eng.OnTick(makeSnap(55, 60, 0.60, 0.30))
	assert.Len(t, r.kalshi.orders(), 2)
}

func TestEngine_FollowFullCycle(t *testing.T) {
	r := newRig(t, true)

	// Primer tick sin certeza: solo observa. Sumas fuera de banda.
	r.eng.OnTick(makeSnap(96, 8, 0.85, 0.05))
	assert.Empty(t, r.poly.buys)

	// Kalshi UP toca certeza: compra del mismo lado en Polymarket.
	r.eng.OnTick(makeSnap(100, 8, 0.85, 0.05))
	require.Len(t, r.poly.buys, 1)
	assert.Equal(t, "111", r.poly.buys[0].TokenID)
	assert.InDelta(t, 20, r.poly.buys[0].Size, 1e-9)
	assert.InDelta(t, 20, r.holdings.qty("0xcond", "111"), 1e-9)

	// Ask por debajo del threshold buffered (0.62): vende el saldo real.
	r.eng.OnTick(makeSnap(100, 8, 0.55, 0.05))
	require.Len(t, r.poly.sells, 1)
	assert.InDelta(t, 20, r.poly.sells[0], 1e-9)
	assert.False(t, r.holdings.has("0xcond"))

	// Ciclo cerrado: ni la certeza ni el rango reabren.
	r.eng.OnTick(makeSnap(100, 8, 0.85, 0.05))
	assert.Len(t, r.poly.buys, 1)
}

func TestEngine_RolloverResetsSlotState(t *testing.T) {
	r := newRig(t, true)

	snap := makeSnap(55, 60, 0.60, 0.30)
	r.eng.OnTick(snap)
	require.Len(t, r.kalshi.orders(), 1)

	next := snap.Market
	next.Ticker = "KXBTCD-25AUG281515"
	next.ConditionID = "0xnext"
	r.eng.OnRollover(snap.Market, next)

	// El mismo ticker vuelve a empezar de cero tras el rollover.
	r.eng.OnTick(snap)
	assert.Len(t, r.kalshi.orders(), 2)
}

func TestEngine_LowBalanceHaltsEntries(t *testing.T) {
	r := newRig(t, true)
	r.kalshi.setBalance(1_00) // por debajo del mínimo
	// Forzar relectura de saldos reiniciando el engine.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.eng.Start(ctx)

	r.eng.OnTick(makeSnap(55, 60, 0.60, 0.30))
	assert.Empty(t, r.kalshi.orders(), "entries halt below the balance floor")
	assert.Empty(t, r.poly.buys)
}

func TestEngine_LowBalanceTradesWithHaltDisabled(t *testing.T) {
	r := newRig(t, false)
	r.kalshi.setBalance(1_00) // por debajo del mínimo
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.eng.Start(ctx)

	// Con halt desactivado se avisa pero la entrada se transmite igual.
	r.eng.OnTick(makeSnap(55, 60, 0.60, 0.30))
	require.Len(t, r.kalshi.orders(), 1)
	assert.Len(t, r.poly.buys, 1)
}

func TestEngine_ZeroTokenBalanceSellsConservativeEstimate(t *testing.T) {
	r := newRig(t, true)
	r.poly.tokenBal = 0

	r.eng.OnTick(makeSnap(96, 8, 0.85, 0.05)) // observa sin certeza
	r.eng.OnTick(makeSnap(100, 8, 0.85, 0.05)) // compra 20 shares
	require.Len(t, r.poly.buys, 1)

	// Saldo consultado cero: vende el tamaño registrado menos el margen.
	r.eng.OnTick(makeSnap(100, 8, 0.55, 0.05))
	require.Len(t, r.poly.sells, 1)
	assert.InDelta(t, 19, r.poly.sells[0], 1e-9)
}

func TestEngine_RestoresPositionFromLedger(t *testing.T) {
	r := newRig(t, true)
	require.NoError(t, r.holdings.Add("0xcond", "111", 12))
	r.poly.tokenBal = 12

	// Primera observación: la posición renace del ledger; con el ask bajo el
	// threshold buffered se vende en vez de re-comprar.
	r.eng.OnTick(makeSnap(100, 8, 0.55, 0.05))
	assert.Empty(t, r.poly.buys)
	require.Len(t, r.poly.sells, 1)
	assert.InDelta(t, 12, r.poly.sells[0], 1e-9)
}
