package strategy

// follow.go — variante Follow-Confidence.
//
// Entra en Polymarket en el mismo lado que Kalshi da por decidido: una vez
// el ask de Kalshi de un lado tocó el precio de certeza, el ask de
// Polymarket del mismo lado suele converger a 1. La guard buyMin evita
// comprar un lado que Polymarket ya considera barato (desacuerdo entre
// venues = señal sospechosa, no oportunidad).

import (
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// FollowConfig parametriza la estrategia follow-confidence.
type FollowConfig struct {
	BuyMin             float64
	BuyMax             float64
	SellBelow          float64
	CertBuffer         float64
	Shares             float64
	SafetyMargin       float64
	BalanceSizingAfter time.Duration // offset dentro del cuarto de hora
	SellRetries        int
	SellRetryDelay     time.Duration
}

// FollowDecision es la decisión de un tick: entrada, salida o nada (nil).
type FollowDecision struct {
	Enter bool
	Exit  bool
	Side  domain.Side

	// entrada
	Price            float64 // ask de Polymarket observado
	UseBalanceSizing bool

	// salida
	Threshold float64 // threshold efectivo que disparó el exit
}

// Evaluate decide la acción del tick. Puro: no muta el estado. Como máximo
// una compra por ticker y ciclo; el primer lado que cumple gana y el
// contrario queda descartado el resto del ciclo (implícito: con Pos abierta
// o CycleDone no se evalúan entradas).
func (c FollowConfig) Evaluate(snap domain.Snapshot, st *TickerState) *FollowDecision {
	if st.Pos != nil {
		return c.evaluateExit(snap, st.Pos)
	}

	if st.Skipped || st.CycleDone {
		return nil
	}

	for _, side := range domain.Sides {
		if !st.SeenCertain[side] {
			continue
		}
		ask := snap.PolyAsk(side)
		if ask < c.BuyMin || ask > c.BuyMax {
			continue
		}
		return &FollowDecision{
			Enter:            true,
			Side:             side,
			Price:            ask,
			UseBalanceSizing: snap.SampledAt.Sub(snap.Market.SlotStart) >= c.BalanceSizingAfter,
		}
	}
	return nil
}

// evaluateExit comprueba el threshold de venta de la posición abierta.
// Con Kalshi del mismo lado en el precio de certeza la resolución es
// inminente: el threshold baja CertBuffer para exigir más margen.
func (c FollowConfig) evaluateExit(snap domain.Snapshot, pos *domain.Position) *FollowDecision {
	threshold := c.SellBelow
	if snap.KalshiAsk(pos.Side) == domain.CertainCents {
		threshold -= c.CertBuffer
	}

	if snap.PolyAsk(pos.Side) < threshold {
		return &FollowDecision{Exit: true, Side: pos.Side, Threshold: threshold}
	}
	return nil
}
