package domain

// orders.go — contratos request/response hacia los clientes de ambos venues.

import (
	"errors"
	"time"
)

// ErrUnfilled señala un rechazo estilo fill-or-kill: la orden no pudo
// ejecutarse entera de inmediato. Es la única clase de error que dispara
// reintentos con re-precio.
var ErrUnfilled = errors.New("order could not be fully filled")

// KalshiAction distingue abrir de cerrar exposición.
type KalshiAction string

const (
	KalshiBuy  KalshiAction = "buy"
	KalshiSell KalshiAction = "sell"
)

// KalshiOrder es una orden limit sobre un ticker de Kalshi.
type KalshiOrder struct {
	Ticker     string
	Side       Side
	Action     KalshiAction
	Count      int
	LimitCents int
	TIF        string // "fill_or_kill" | "immediate_or_cancel" | "" (resting)
}

// KalshiOrderResult es la respuesta normalizada de Kalshi.
type KalshiOrderResult struct {
	OrderID     string
	FilledCount int
	Status      string
}

// KalshiMarket es la vista mínima de un mercado de la serie updown.
type KalshiMarket struct {
	Ticker    string
	YesAsk    int // céntimos; yes == UP
	NoAsk     int
	CloseTime time.Time
	Status    string
}

// PolyBuy es una orden limit resting (GTC) de compra en Polymarket.
// El adapter redondea el precio al tick size del mercado.
type PolyBuy struct {
	TokenID  string
	Price    float64 // límite en probabilidad, antes del redondeo al tick
	Size     float64 // shares
	TickSize float64 // tick mínimo del mercado; cero aplica la regla por banda
	NegRisk  bool
}

// PolyMarket es la vista mínima del mercado updown en Polymarket.
type PolyMarket struct {
	ConditionID string
	UpToken     string
	DownToken   string
	TickSize    float64
	NegRisk     bool
}

// OrderState es el estado de una orden consultado por id (solo observabilidad).
type OrderState struct {
	OrderID     string
	Status      string
	SizeMatched float64
}
