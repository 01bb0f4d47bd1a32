package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updownbot/internal/adapters/storage"
	"github.com/alejandrodnm/updownbot/internal/domain"
)

func openJournal(t *testing.T) *storage.Journal {
	t.Helper()
	j, err := storage.NewJournal(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func tickAt(at time.Time) domain.Snapshot {
	return domain.Snapshot{
		Market:        domain.MarketRef{Ticker: "KXBTCD-25AUG281500"},
		KalshiUpAsk:   55,
		KalshiDownAsk: 46,
		PolyUpAsk:     0.55,
		PolyDownAsk:   0.46,
		SampledAt:     at,
	}
}

func tradeAt(at time.Time, action, status string) domain.TradeEvent {
	return domain.TradeEvent{
		At:       at,
		Ticker:   "KXBTCD-25AUG281500",
		Strategy: "arb",
		Venue:    "polymarket",
		Action:   action,
		Side:     "DOWN",
		Token:    "222",
		Price:    0.46,
		Size:     10,
		OrderID:  "ord-1",
		Status:   status,
	}
}

func TestJournal_SaveAndStats(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, j.SaveTick(ctx, tickAt(now)))
	require.NoError(t, j.SaveTick(ctx, tickAt(now.Add(2*time.Second))))

	require.NoError(t, j.SaveTrade(ctx, tradeAt(now, "buy", "ok")))
	require.NoError(t, j.SaveTrade(ctx, tradeAt(now.Add(time.Second), "sell", "ok")))
	require.NoError(t, j.SaveTrade(ctx, tradeAt(now.Add(2*time.Second), "buy", "unfilled")))
	require.NoError(t, j.SaveTrade(ctx, tradeAt(now.Add(3*time.Second), "sell", "abandoned")))

	stats, err := j.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Ticks)
	assert.Equal(t, 4, stats.Trades)
	assert.Equal(t, 1, stats.Buys)
	assert.Equal(t, 1, stats.Sells)
	assert.Equal(t, 1, stats.Unfilled)
	assert.Equal(t, 1, stats.Abandoned)
	assert.False(t, stats.FirstAt.IsZero())
	assert.False(t, stats.LastAt.Before(stats.FirstAt))
}

func TestJournal_RecentTradesNewestFirst(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, j.SaveTrade(ctx, tradeAt(now, "buy", "ok")))
	require.NoError(t, j.SaveTrade(ctx, tradeAt(now.Add(time.Minute), "sell", "ok")))

	trades, err := j.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "sell", trades[0].Action)
	assert.Equal(t, "buy", trades[1].Action)
}

func TestJournal_RecentTradesLimit(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.SaveTrade(ctx, tradeAt(now.Add(time.Duration(i)*time.Second), "buy", "ok")))
	}

	trades, err := j.RecentTrades(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}

func TestJournal_EmptyStats(t *testing.T) {
	j := openJournal(t)

	stats, err := j.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Ticks)
	assert.Zero(t, stats.Trades)
	assert.True(t, stats.FirstAt.IsZero())
}
