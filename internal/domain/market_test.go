package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

func validSnap() domain.Snapshot {
	return domain.Snapshot{
		Market: domain.MarketRef{
			Ticker:    "KXBTCD-25AUG281500",
			UpToken:   "111",
			DownToken: "222",
		},
		KalshiUpAsk:   55,
		KalshiDownAsk: 46,
		PolyUpAsk:     0.55,
		PolyDownAsk:   0.46,
		SampledAt:     time.Date(2025, 8, 28, 15, 5, 2, 0, time.UTC),
	}
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, domain.SideDown, domain.SideUp.Opposite())
	assert.Equal(t, domain.SideUp, domain.SideDown.Opposite())
}

func TestSnapshot_LegSumMixesUnits(t *testing.T) {
	snap := validSnap()
	// Pata UP: Kalshi UP en céntimos a dólares + Polymarket DOWN.
	assert.InDelta(t, 0.55+0.46, snap.LegSum(domain.SideUp), 1e-9)
	assert.InDelta(t, 0.46+0.55, snap.LegSum(domain.SideDown), 1e-9)
}

func TestSnapshot_Valid(t *testing.T) {
	assert.True(t, validSnap().Valid())

	s := validSnap()
	s.KalshiUpAsk = 0
	assert.False(t, s.Valid(), "zero cents means no book")

	s = validSnap()
	s.KalshiDownAsk = 101
	assert.False(t, s.Valid())

	s = validSnap()
	s.KalshiUpAsk = 100
	assert.True(t, s.Valid(), "the certain-outcome price is in range")

	s = validSnap()
	s.PolyUpAsk = 0
	assert.False(t, s.Valid())

	s = validSnap()
	s.PolyDownAsk = 1.2
	assert.False(t, s.Valid())

	s = validSnap()
	s.PolyUpAsk = math.NaN()
	assert.False(t, s.Valid())

	s = validSnap()
	s.PolyDownAsk = math.Inf(1)
	assert.False(t, s.Valid())
}

func TestSnapshot_LineStableFormat(t *testing.T) {
	got := validSnap().Line()
	assert.Equal(t,
		"[2025-08-28T15:05:02Z] Kalshi UP 55 DOWN 46  |  Polymarket UP 0.550 DOWN 0.460",
		got)
}

func TestMarketRef_Token(t *testing.T) {
	m := validSnap().Market
	assert.Equal(t, "111", m.Token(domain.SideUp))
	assert.Equal(t, "222", m.Token(domain.SideDown))
}
