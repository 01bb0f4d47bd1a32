package kalshi

// orders.go — colocación de órdenes y saldo.

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// PlaceOrder envía una orden limit. El precio límite va en céntimos del lado
// correspondiente (yes_price para UP, no_price para DOWN). Un rechazo por no
// poder ejecutarse entera se normaliza a domain.ErrUnfilled.
func (c *Client) PlaceOrder(ctx context.Context, order domain.KalshiOrder) (domain.KalshiOrderResult, error) {
	body := orderRequest{
		Ticker:      order.Ticker,
		ClientID:    uuid.New().String(),
		Side:        sideString(order.Side),
		Action:      string(order.Action),
		Count:       order.Count,
		Type:        "limit",
		TimeInForce: order.TIF,
	}
	if order.Side == domain.SideUp {
		body.YesPrice = order.LimitCents
	} else {
		body.NoPrice = order.LimitCents
	}

	var resp orderResponse
	if err := c.post(ctx, c.baseURL+"/portfolio/orders", body, &resp); err != nil {
		if isUnfilled(err) {
			return domain.KalshiOrderResult{}, fmt.Errorf("kalshi.PlaceOrder %s: %w", order.Ticker, domain.ErrUnfilled)
		}
		return domain.KalshiOrderResult{}, fmt.Errorf("kalshi.PlaceOrder %s: %w", order.Ticker, err)
	}

	return domain.KalshiOrderResult{
		OrderID:     resp.Order.OrderID,
		FilledCount: resp.Order.FilledCount,
		Status:      resp.Order.Status,
	}, nil
}

// Balance devuelve el saldo disponible en céntimos.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	var resp balanceResponse
	if err := c.get(ctx, c.baseURL+"/portfolio/balance", &resp); err != nil {
		return 0, fmt.Errorf("kalshi.Balance: %w", err)
	}
	return resp.Balance, nil
}

// isUnfilled detecta el rechazo fill-or-kill en el mensaje de error de la API.
func isUnfilled(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not be filled") ||
		strings.Contains(msg, "insufficient liquidity") ||
		strings.Contains(msg, "order_not_filled")
}
