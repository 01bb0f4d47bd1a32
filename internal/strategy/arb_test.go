package strategy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updownbot/internal/domain"
	"github.com/alejandrodnm/updownbot/internal/strategy"
)

func testMarket() domain.MarketRef {
	slotStart := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)
	return domain.MarketRef{
		Ticker:      "KXBTCD-25AUG281500",
		ConditionID: "0xcond",
		UpToken:     "111",
		DownToken:   "222",
		SlotStart:   slotStart,
		CloseTime:   slotStart.Add(15 * time.Minute),
	}
}

func makeSnap(kUp, kDown int, pUp, pDown float64) domain.Snapshot {
	return domain.Snapshot{
		Market:        testMarket(),
		KalshiUpAsk:   kUp,
		KalshiDownAsk: kDown,
		PolyUpAsk:     pUp,
		PolyDownAsk:   pDown,
		SampledAt:     time.Date(2025, 8, 28, 15, 5, 0, 0, time.UTC),
	}
}

func arbCfg() strategy.ArbConfig {
	return strategy.ArbConfig{BandLow: 0.75, BandHigh: 0.92, KalshiCount: 10, PolyShares: 10}
}

func TestArb_EnterWithinBand(t *testing.T) {
	// Pata UP: 0.55 + 0.30 = 0.85, dentro de [0.75, 0.92).
	// Pata DOWN: 0.60 + 0.50 = 1.10, fuera.
	snap := makeSnap(55, 60, 0.50, 0.30)
	st := strategy.NewTickerState(snap.Market.Ticker, snap.SampledAt)
	st.Observe(snap)

	decs := arbCfg().Evaluate(snap, st)
	require.Len(t, decs, 1)
	assert.Equal(t, strategy.ArbEnter, decs[0].Action)
	assert.Equal(t, domain.SideUp, decs[0].Leg)
	assert.InDelta(t, 0.85, decs[0].Sum, 1e-9)
}

func TestArb_BandIsHalfOpen(t *testing.T) {
	st := strategy.NewTickerState("t", time.Now())

	// Exactamente en el low bound: incluido.
	snap := makeSnap(45, 99, 0.98, 0.30) // UP: 0.45 + 0.30 = 0.75
	decs := arbCfg().Evaluate(snap, st)
	require.Len(t, decs, 1)
	assert.Equal(t, domain.SideUp, decs[0].Leg)

	// Exactamente en el high bound: excluido.
	snap = makeSnap(62, 99, 0.98, 0.30) // UP: 0.62 + 0.30 = 0.92
	decs = arbCfg().Evaluate(snap, st)
	assert.Empty(t, decs)
}

func TestArb_BothLegsIndependent(t *testing.T) {
	// Ambas patas dentro de banda a la vez.
	snap := makeSnap(50, 50, 0.30, 0.30) // UP: 0.80, DOWN: 0.80
	st := strategy.NewTickerState(snap.Market.Ticker, snap.SampledAt)

	decs := arbCfg().Evaluate(snap, st)
	require.Len(t, decs, 2)
	assert.Equal(t, domain.SideUp, decs[0].Leg)
	assert.Equal(t, domain.SideDown, decs[1].Leg)
}

func TestArb_EvaluateIsPureAndDeterministic(t *testing.T) {
	snap := makeSnap(55, 60, 0.50, 0.30)
	st := strategy.NewTickerState(snap.Market.Ticker, snap.SampledAt)

	first := arbCfg().Evaluate(snap, st)
	second := arbCfg().Evaluate(snap, st)
	assert.Equal(t, first, second)

	// Evaluate no consume el intento; eso lo hace el engine al despachar.
	assert.False(t, st.LegAttempted[domain.SideUp])
	assert.False(t, st.LegAttempted[domain.SideDown])
}

func TestArb_OneAttemptPerLegPerSlot(t *testing.T) {
	snap := makeSnap(55, 99, 0.98, 0.30)
	st := strategy.NewTickerState(snap.Market.Ticker, snap.SampledAt)

	st.MarkLegAttempted(domain.SideUp)
	decs := arbCfg().Evaluate(snap, st)
	assert.Empty(t, decs, "attempted leg must not re-enter even within band")
}

func TestArb_ExitWhenSumCollapses(t *testing.T) {
	st := strategy.NewTickerState("t", time.Now())
	st.OpenArb(&domain.ArbPosition{
		Leg: domain.SideUp, KalshiSide: domain.SideUp,
		KalshiCount: 10, PolyToken: "222", PolySize: 10,
	})

	// Por encima del low bound: mantener.
	snap := makeSnap(50, 99, 0.98, 0.30) // UP: 0.80
	assert.Empty(t, arbCfg().Evaluate(snap, st))

	// Colapsa por debajo: salir.
	snap = makeSnap(40, 99, 0.98, 0.30) // UP: 0.70
	decs := arbCfg().Evaluate(snap, st)
	require.Len(t, decs, 1)
	assert.Equal(t, strategy.ArbExit, decs[0].Action)
	assert.Equal(t, domain.SideUp, decs[0].Leg)
	assert.InDelta(t, 0.70, decs[0].Sum, 1e-9)
}

func TestArb_NoReentryWhileOpen(t *testing.T) {
	st := strategy.NewTickerState("t", time.Now())
	st.OpenArb(&domain.ArbPosition{Leg: domain.SideUp, KalshiSide: domain.SideUp, KalshiCount: 10})

	// Dentro de banda pero con posición abierta: nada.
	snap := makeSnap(55, 99, 0.98, 0.30) // UP: 0.85
	assert.Empty(t, arbCfg().Evaluate(snap, st))
}
