package strategy

// arb.go — variante Cross-Venue Arbitrage.
//
// Comprar un lado en Kalshi y el contrario en Polymarket es un hedge puro:
// resuelva lo que resuelva, una pata paga $1 y la otra $0, y el beneficio es
// 1 − sum. La banda [low, high) es semiabierta: low incluido descarta sums
// tan bajos que delatan datos rancios o un libro ya resuelto; high excluido
// es el corte de rentabilidad.

import (
	"github.com/alejandrodnm/updownbot/internal/domain"
)

// ArbConfig parametriza el detector de arbitraje.
type ArbConfig struct {
	BandLow     float64
	BandHigh    float64
	KalshiCount int
	PolyShares  float64
}

// ArbAction es la acción decidida para una pata.
type ArbAction int

const (
	ArbEnter ArbAction = iota
	ArbExit
)

// ArbDecision es una decisión de entrada o salida para una pata concreta.
// Leg identifica el lado que se compra (o se vende) en Kalshi; en Polymarket
// la orden va siempre al lado contrario.
type ArbDecision struct {
	Action ArbAction
	Leg    domain.Side
	Sum    float64 // coste combinado observado al decidir
}

// Evaluate es puro y determinista: con el mismo snapshot y el mismo estado
// por ticker produce siempre las mismas decisiones. No muta el estado — eso
// es del engine, al despachar.
func (c ArbConfig) Evaluate(snap domain.Snapshot, st *TickerState) []ArbDecision {
	var out []ArbDecision

	for _, leg := range domain.Sides {
		sum := snap.LegSum(leg)

		if st.Arb(leg) != nil {
			// Con la pata abierta: si el coste combinado colapsa por debajo
			// del low bound, el hedge ya capturó su edge — salir.
			if sum < c.BandLow {
				out = append(out, ArbDecision{Action: ArbExit, Leg: leg, Sum: sum})
			}
			continue
		}

		if st.LegAttempted[leg] {
			continue
		}
		if sum >= c.BandLow && sum < c.BandHigh {
			out = append(out, ArbDecision{Action: ArbEnter, Leg: leg, Sum: sum})
		}
	}

	return out
}
