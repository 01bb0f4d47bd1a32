package polymarket

// book.go — consulta del libro y resolución del mercado updown del slot.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// BestAsk devuelve el mejor ask actual del token. Los asks del CLOB vienen
// ordenados de peor a mejor: el mejor es el último.
func (c *Client) BestAsk(ctx context.Context, tokenID string) (float64, error) {
	url := fmt.Sprintf("%s/book?token_id=%s", c.clobBase, tokenID)

	var resp bookResponse
	if err := c.get(ctx, c.bookLimiter, url, &resp); err != nil {
		return 0, fmt.Errorf("polymarket.BestAsk: %w", err)
	}
	if len(resp.Asks) == 0 {
		return 0, fmt.Errorf("polymarket.BestAsk: empty book for token %s", tokenID)
	}

	best := parseFloat(resp.Asks[len(resp.Asks)-1].Price)
	if best <= 0 {
		return 0, fmt.Errorf("polymarket.BestAsk: unparseable ask for token %s", tokenID)
	}
	return best, nil
}

// MarketForSlot localiza en Gamma el mercado updown cuyo slug codifica el
// comienzo del slot, p.ej. bitcoin-up-or-down-august-28-3pm-et (slots
// intermedios llevan sufijo de minutos: ...-315pm-et).
func (c *Client) MarketForSlot(ctx context.Context, seriesSlug string, slotStart time.Time) (domain.PolyMarket, error) {
	slug := slotSlug(seriesSlug, slotStart)
	url := fmt.Sprintf("%s/markets?slug=%s", c.gammaBase, slug)

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
		return domain.PolyMarket{}, fmt.Errorf("polymarket.MarketForSlot: %w", err)
	}
	if len(resp) == 0 {
		return domain.PolyMarket{}, fmt.Errorf("polymarket.MarketForSlot: no market for slug %s", slug)
	}

	gm := resp[0]
	m, err := mapGammaMarket(gm)
	if err != nil {
		return domain.PolyMarket{}, fmt.Errorf("polymarket.MarketForSlot: %w", err)
	}

	slog.Info("polymarket market resolved",
		"slug", slug,
		"condition", shortID(m.ConditionID),
		"neg_risk", m.NegRisk,
	)
	return m, nil
}

// mapGammaMarket valida y convierte el wire type de Gamma al dominio.
// El orden de los tokens sigue el orden declarado en outcomes.
func mapGammaMarket(gm gammaMarket) (domain.PolyMarket, error) {
	ids := gm.tokenIDs()
	names := gm.outcomeNames()
	if len(ids) != 2 || len(names) != 2 {
		return domain.PolyMarket{}, fmt.Errorf("market %s: expected 2 outcomes, got %d/%d",
			gm.Slug, len(names), len(ids))
	}

	m := domain.PolyMarket{
		ConditionID: gm.ConditionID,
		TickSize:    parseFloat(gm.TickSize),
		NegRisk:     gm.NegRisk,
	}
	if m.TickSize <= 0 {
		m.TickSize = 0.01
	}

	for i, name := range names {
		switch strings.ToLower(name) {
		case "up", "yes":
			m.UpToken = ids[i]
		case "down", "no":
			m.DownToken = ids[i]
		}
	}
	if m.UpToken == "" || m.DownToken == "" {
		return domain.PolyMarket{}, fmt.Errorf("market %s: unrecognized outcomes %v", gm.Slug, names)
	}
	return m, nil
}

// slotSlug construye el slug de Gamma para el slot dado, en hora ET.
func slotSlug(seriesSlug string, slotStart time.Time) string {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		et = time.UTC
	}
	t := slotStart.In(et)

	month := strings.ToLower(t.Format("January"))
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	ampm := "am"
	if t.Hour() >= 12 {
		ampm = "pm"
	}

	clock := fmt.Sprintf("%d", hour)
	if t.Minute() != 0 {
		clock = fmt.Sprintf("%d%02d", hour, t.Minute())
	}
	return fmt.Sprintf("%s-%s-%d-%s%s-et", seriesSlug, month, t.Day(), clock, ampm)
}

// shortID acorta ids largos para logs.
func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
