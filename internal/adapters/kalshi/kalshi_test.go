package kalshi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updownbot/internal/adapters/kalshi"
	"github.com/alejandrodnm/updownbot/internal/domain"
)

func TestNextOpenMarket_PicksEarliestClose(t *testing.T) {
	pages := map[string]string{
		"": `{"markets":[
			{"ticker":"KXBTCD-25AUG281515","status":"open","yes_ask":50,"no_ask":51,"close_time":"2025-08-28T19:30:00Z"},
			{"ticker":"KXBTCD-25AUG281530","status":"open","yes_ask":50,"no_ask":51,"close_time":"2025-08-28T19:45:00Z"}],
			"cursor":"page2"}`,
		"page2": `{"markets":[
			{"ticker":"KXBTCD-25AUG281500","status":"open","yes_ask":55,"no_ask":46,"close_time":"2025-08-28T19:15:00Z"}],
			"cursor":""}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "KXBTCD", r.URL.Query().Get("series_ticker"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		w.Write([]byte(pages[r.URL.Query().Get("cursor")]))
	}))
	defer srv.Close()

	m, err := kalshi.NewClient(srv.URL, "key").NextOpenMarket(context.Background(), "KXBTCD")
	require.NoError(t, err)
	assert.Equal(t, "KXBTCD-25AUG281500", m.Ticker, "earliest close wins across pages")
	assert.Equal(t, 55, m.YesAsk)
	assert.Equal(t, 46, m.NoAsk)
}

func TestNextOpenMarket_NoMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets":[],"cursor":""}`))
	}))
	defer srv.Close()

	_, err := kalshi.NewClient(srv.URL, "key").NextOpenMarket(context.Background(), "KXBTCD")
	assert.Error(t, err)
}

func TestMarket_ByTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/KXBTCD-25AUG281500", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"market":{"ticker":"KXBTCD-25AUG281500","status":"open","yes_ask":100,"no_ask":1,"close_time":"2025-08-28T19:15:00Z"}}`))
	}))
	defer srv.Close()

	m, err := kalshi.NewClient(srv.URL, "key").Market(context.Background(), "KXBTCD-25AUG281500")
	require.NoError(t, err)
	assert.Equal(t, 100, m.YesAsk)
	assert.Equal(t, 1, m.NoAsk)
}

func TestPlaceOrder_MapsSideAndPrice(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/portfolio/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"order":{"order_id":"ord-1","status":"executed","filled_count":10}}`))
	}))
	defer srv.Close()

	res, err := kalshi.NewClient(srv.URL, "key").PlaceOrder(context.Background(), domain.KalshiOrder{
		Ticker:     "KXBTCD-25AUG281500",
		Side:       domain.SideDown,
		Action:     domain.KalshiBuy,
		Count:      10,
		LimitCents: 46,
		TIF:        "immediate_or_cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, 10, res.FilledCount)

	// DOWN viaja como "no" con el límite en no_price.
	assert.Equal(t, "no", got["side"])
	assert.Equal(t, "buy", got["action"])
	assert.EqualValues(t, 46, got["no_price"])
	assert.NotContains(t, got, "yes_price")
	assert.NotEmpty(t, got["client_order_id"])
}

func TestPlaceOrder_UnfilledNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"order_not_filled","message":"order could not be filled"}}`))
	}))
	defer srv.Close()

	_, err := kalshi.NewClient(srv.URL, "key").PlaceOrder(context.Background(), domain.KalshiOrder{
		Ticker: "T", Side: domain.SideUp, Action: domain.KalshiBuy, Count: 1, LimitCents: 50,
	})
	assert.ErrorIs(t, err, domain.ErrUnfilled)
}

func TestBalance_Cents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/portfolio/balance", r.URL.Path)
		w.Write([]byte(`{"balance":12345}`))
	}))
	defer srv.Close()

	bal, err := kalshi.NewClient(srv.URL, "key").Balance(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 12345, bal)
}
