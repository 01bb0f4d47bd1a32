package polymarket

// orders.go — colocación de órdenes, saldos y estado de órdenes.
//
// Las compras son limit GTC (resting); las ventas son market FAK
// (immediate-or-cancel). El precio de compra se redondea hacia abajo al tick
// size del mercado: redondear hacia arriba podría cruzar el límite pedido.

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// LimitBuy coloca una orden limit resting (GTC) de compra. El precio se
// redondea al tick size que Gamma reporta para el mercado; sin él se cae a la
// regla por banda de precio.
func (c *Client) LimitBuy(ctx context.Context, buy domain.PolyBuy) (string, error) {
	tick := buy.TickSize
	if tick <= 0 {
		tick = tickFor(buy.Price)
	}
	price := roundToTick(buy.Price, tick)

	body := clobOrderRequest{
		TokenID:   buy.TokenID,
		Price:     price,
		Size:      buy.Size,
		Side:      "BUY",
		OrderType: "GTC",
		ClientID:  uuid.New().String(),
		NegRisk:   buy.NegRisk,
	}

	var resp clobOrderResponse
	if err := c.post(ctx, c.clobBase+"/order", body, &resp); err != nil {
		return "", fmt.Errorf("polymarket.LimitBuy: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		if isUnfilled(resp.ErrorMsg) {
			return "", fmt.Errorf("polymarket.LimitBuy: %s: %w", resp.ErrorMsg, domain.ErrUnfilled)
		}
		return "", fmt.Errorf("polymarket.LimitBuy: clob error: %s", resp.ErrorMsg)
	}
	return resp.OrderID, nil
}

// MarketSell coloca una venta market-style FAK por el tamaño dado.
func (c *Client) MarketSell(ctx context.Context, tokenID string, size float64) (string, error) {
	body := clobOrderRequest{
		TokenID:   tokenID,
		Size:      size,
		Side:      "SELL",
		OrderType: "FAK",
		ClientID:  uuid.New().String(),
	}

	var resp clobOrderResponse
	if err := c.post(ctx, c.clobBase+"/order", body, &resp); err != nil {
		return "", fmt.Errorf("polymarket.MarketSell: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		if isUnfilled(resp.ErrorMsg) {
			return "", fmt.Errorf("polymarket.MarketSell: %s: %w", resp.ErrorMsg, domain.ErrUnfilled)
		}
		return "", fmt.Errorf("polymarket.MarketSell: clob error: %s", resp.ErrorMsg)
	}
	return resp.OrderID, nil
}

// Balance devuelve el colateral (USDC) disponible.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	url := c.clobBase + "/balance-allowance?asset_type=COLLATERAL"

	var resp balanceAllowanceResponse
	if err := c.get(ctx, c.bookLimiter, url, &resp); err != nil {
		return 0, fmt.Errorf("polymarket.Balance: %w", err)
	}
	return parseMicro(resp.Balance), nil
}

// TokenBalance devuelve el saldo del token condicional, en shares.
func (c *Client) TokenBalance(ctx context.Context, tokenID string) (float64, error) {
	url := fmt.Sprintf("%s/balance-allowance?asset_type=CONDITIONAL&token_id=%s",
		c.clobBase, tokenID)

	var resp balanceAllowanceResponse
	if err := c.get(ctx, c.bookLimiter, url, &resp); err != nil {
		return 0, fmt.Errorf("polymarket.TokenBalance: %w", err)
	}
	return parseMicro(resp.Balance), nil
}

// OrderStatus consulta una orden por id.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (domain.OrderState, error) {
	url := c.clobBase + "/data/order/" + orderID

	var resp clobOrderStatus
	if err := c.get(ctx, c.bookLimiter, url, &resp); err != nil {
		return domain.OrderState{}, fmt.Errorf("polymarket.OrderStatus: %w", err)
	}
	return domain.OrderState{
		OrderID:     resp.ID,
		Status:      resp.Status,
		SizeMatched: parseFloat(resp.SizeMatched),
	}, nil
}

// tickFor es el fallback cuando el mercado no trae tick size: la regla por
// banda del CLOB, tick fino (0.001) en los extremos del rango de precio y
// tick normal (0.01) en el centro.
func tickFor(price float64) float64 {
	if price < 0.04 || price > 0.96 {
		return 0.001
	}
	return 0.01
}

// roundToTick redondea hacia abajo al múltiplo del tick.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Floor(price/tick+1e-9) * tick
}

// isUnfilled detecta el rechazo "no se pudo ejecutar entera" del CLOB.
func isUnfilled(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not filled") ||
		strings.Contains(m, "couldn't be fully filled") ||
		strings.Contains(m, "fok order") ||
		strings.Contains(m, "no match")
}
