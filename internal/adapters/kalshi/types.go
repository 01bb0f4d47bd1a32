package kalshi

// types.go — wire types de la Trade API v2 y su mapeo al dominio.

import (
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

type marketsResponse struct {
	Markets []wireMarket `json:"markets"`
	Cursor  string       `json:"cursor"`
}

type marketResponse struct {
	Market wireMarket `json:"market"`
}

type wireMarket struct {
	Ticker    string    `json:"ticker"`
	Status    string    `json:"status"`
	YesAsk    int       `json:"yes_ask"` // céntimos
	NoAsk     int       `json:"no_ask"`
	CloseTime time.Time `json:"close_time"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"` // céntimos
}

type orderRequest struct {
	Ticker      string `json:"ticker"`
	ClientID    string `json:"client_order_id"`
	Side        string `json:"side"`   // yes | no
	Action      string `json:"action"` // buy | sell
	Count       int    `json:"count"`
	Type        string `json:"type"` // limit
	YesPrice    int    `json:"yes_price,omitempty"`
	NoPrice     int    `json:"no_price,omitempty"`
	TimeInForce string `json:"time_in_force,omitempty"`
}

type orderResponse struct {
	Order struct {
		OrderID     string `json:"order_id"`
		Status      string `json:"status"`
		FilledCount int    `json:"filled_count"`
	} `json:"order"`
}

// mapMarket convierte el wire type al dominio. yes == UP.
func mapMarket(w wireMarket) domain.KalshiMarket {
	return domain.KalshiMarket{
		Ticker:    w.Ticker,
		YesAsk:    w.YesAsk,
		NoAsk:     w.NoAsk,
		CloseTime: w.CloseTime,
		Status:    w.Status,
	}
}

// sideString mapea el lado del dominio al wire: UP → yes, DOWN → no.
func sideString(s domain.Side) string {
	if s == domain.SideUp {
		return "yes"
	}
	return "no"
}
