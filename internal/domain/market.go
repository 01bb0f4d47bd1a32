package domain

// market.go — tipos puros del mercado updown de 15 minutos.
//
// Un "slot" es la ventana de 15 minutos durante la que un ticker concreto
// (p.ej. KXBTCD-25AUG281500) es operable. Kalshi cotiza en céntimos enteros
// [1,100]; Polymarket cotiza el mismo evento en probabilidad [0,1].

import (
	"fmt"
	"math"
	"time"
)

// Side es uno de los dos resultados del mercado binario.
type Side int

const (
	SideUp Side = iota
	SideDown
)

// Sides lista ambos lados en orden de evaluación.
var Sides = [2]Side{SideUp, SideDown}

func (s Side) String() string {
	if s == SideUp {
		return "UP"
	}
	return "DOWN"
}

// Opposite devuelve el lado contrario.
func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// CertainCents es el ask de Kalshi que marca un resultado como ya decidido.
const CertainCents = 100

// MarketRef identifica la misma instancia de mercado en ambos venues.
type MarketRef struct {
	Ticker      string  // ticker de Kalshi, identidad del slot
	ConditionID string  // settlement id de Polymarket
	UpToken     string  // token id del resultado UP en Polymarket
	DownToken   string  // token id del resultado DOWN en Polymarket
	TickSize    float64 // tick mínimo del CLOB para este mercado
	NegRisk     bool
	CloseTime   time.Time
	SlotStart   time.Time
}

// Token devuelve el token de Polymarket para el lado dado.
func (m MarketRef) Token(side Side) string {
	if side == SideUp {
		return m.UpToken
	}
	return m.DownToken
}

// Snapshot es una lectura consistente de ambos venues para el mismo mercado.
// Kalshi en céntimos (unidades nativas), Polymarket en probabilidad [0,1].
type Snapshot struct {
	Market        MarketRef
	KalshiUpAsk   int // céntimos
	KalshiDownAsk int
	PolyUpAsk     float64
	PolyDownAsk   float64
	SampledAt     time.Time
}

// KalshiAsk devuelve el ask de Kalshi del lado dado, en céntimos.
func (s Snapshot) KalshiAsk(side Side) int {
	if side == SideUp {
		return s.KalshiUpAsk
	}
	return s.KalshiDownAsk
}

// PolyAsk devuelve el ask de Polymarket del lado dado.
func (s Snapshot) PolyAsk(side Side) float64 {
	if side == SideUp {
		return s.PolyUpAsk
	}
	return s.PolyDownAsk
}

// LegSum es el coste combinado de la pata de arbitraje cuyo lado Kalshi es side:
// comprar side en Kalshi + comprar el lado contrario en Polymarket.
// Expresado en dólares.
func (s Snapshot) LegSum(side Side) float64 {
	return float64(s.KalshiAsk(side))/100.0 + s.PolyAsk(side.Opposite())
}

// Valid reporta si los cuatro precios son finitos y están en rango.
// Un snapshot con cualquier lado ausente o fuera de rango se descarta entero —
// nunca se usa parcialmente.
func (s Snapshot) Valid() bool {
	if s.KalshiUpAsk <= 0 || s.KalshiUpAsk > CertainCents {
		return false
	}
	if s.KalshiDownAsk <= 0 || s.KalshiDownAsk > CertainCents {
		return false
	}
	for _, p := range [2]float64{s.PolyUpAsk, s.PolyDownAsk} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 || p > 1 {
			return false
		}
	}
	return true
}

// Line formatea el snapshot en el formato estable de una línea por tick que
// consumen los scripts de análisis offline. No cambiar sin migrar los parsers.
func (s Snapshot) Line() string {
	return fmt.Sprintf("[%s] Kalshi UP %d DOWN %d  |  Polymarket UP %.3f DOWN %.3f",
		s.SampledAt.UTC().Format(time.RFC3339),
		s.KalshiUpAsk, s.KalshiDownAsk,
		s.PolyUpAsk, s.PolyDownAsk,
	)
}
