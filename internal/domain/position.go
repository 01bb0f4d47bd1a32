package domain

// position.go — posiciones abiertas de ambas estrategias.
//
// Position (follow-confidence) sobrevive reinicios a través del holdings ledger.
// ArbPosition vive solo en memoria: si el proceso muere a mitad de un hedge,
// las patas de Polymarket siguen registradas en el ledger y las redime el job
// de settlement; la pata de Kalshi se liquida sola al resolverse el mercado.

import "time"

// Position es la posición abierta de follow-confidence para un ticker.
// Como máximo una por ticker y ciclo.
type Position struct {
	Side        Side
	Token       string // token de Polymarket comprado
	Size        float64
	ConditionID string
	EntryPrice  float64
	OpenedAt    time.Time
}

// ArbPosition es el registro efímero de una pata de arbitraje completada.
// leg identifica el lado comprado en Kalshi; en Polymarket se compró el
// contrario. No se persiste.
type ArbPosition struct {
	Leg         Side
	KalshiSide  Side
	KalshiCount int
	PolyToken   string
	PolySize    float64
	OpenedAt    time.Time
}

// TradeEvent es una entrada del journal de operaciones (entradas, salidas,
// errores de fill, chequeos de fulfillment).
type TradeEvent struct {
	At       time.Time
	Ticker   string
	Strategy string // "arb" | "follow"
	Venue    string // "kalshi" | "polymarket"
	Action   string // "buy" | "sell" | "fulfill-check"
	Side     string
	Token    string
	Price    float64
	Size     float64
	OrderID  string
	Status   string // "ok" | "unfilled" | "error" | "dry-run" | "abandoned"
	Note     string
}
