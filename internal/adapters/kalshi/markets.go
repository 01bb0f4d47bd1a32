package kalshi

// markets.go — discovery y lectura de precios de la serie updown.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

const marketsPageSize = 100

// NextOpenMarket devuelve el mercado abierto de la serie con el cierre más
// próximo — el slot operable ahora mismo. Pagina con cursor hasta agotar.
func (c *Client) NextOpenMarket(ctx context.Context, series string) (domain.KalshiMarket, error) {
	var best domain.KalshiMarket
	cursor := ""

	for {
		url := fmt.Sprintf("%s/markets?series_ticker=%s&status=open&limit=%d",
			c.baseURL, series, marketsPageSize)
		if cursor != "" {
			url += "&cursor=" + cursor
		}

		var resp marketsResponse
		if err := c.get(ctx, url, &resp); err != nil {
			return domain.KalshiMarket{}, fmt.Errorf("kalshi.NextOpenMarket: %w", err)
		}

		for _, w := range resp.Markets {
			m := mapMarket(w)
			if best.Ticker == "" || m.CloseTime.Before(best.CloseTime) {
				best = m
			}
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	if best.Ticker == "" {
		return domain.KalshiMarket{}, fmt.Errorf("kalshi.NextOpenMarket: no open markets for series %s", series)
	}

	slog.Info("kalshi market discovered",
		"ticker", best.Ticker,
		"close", best.CloseTime.UTC().Format("15:04:05"),
	)
	return best, nil
}

// Market devuelve el estado actual del ticker dado.
func (c *Client) Market(ctx context.Context, ticker string) (domain.KalshiMarket, error) {
	url := fmt.Sprintf("%s/markets/%s", c.baseURL, ticker)

	var resp marketResponse
	if err := c.get(ctx, url, &resp); err != nil {
		return domain.KalshiMarket{}, fmt.Errorf("kalshi.Market %s: %w", ticker, err)
	}
	return mapMarket(resp.Market), nil
}
