package strategy

// state.go — estado por ticker de ambas variantes de estrategia.
//
// Todo el estado mutable vive en TickerState, un objeto explícito por
// instancia de mercado que el engine crea al ver un ticker nuevo y descarta
// entero en el rollover del slot. Nada de mapas a nivel de paquete.

import (
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// TickerState acumula las flags y posiciones de un ticker durante su slot.
type TickerState struct {
	Ticker   string
	Observed bool // ya hubo una primera observación

	// follow-confidence
	Skipped     bool    // algún lado ya estaba al precio de certeza al primer tick
	SeenCertain [2]bool // por lado: Kalshi tocó el precio de certeza este slot
	CycleDone   bool    // un ciclo buy→sell completo; prohíbe re-entrada
	Pos         *domain.Position

	// arbitraje
	LegAttempted [2]bool // por pata: ya se intentó la entrada este slot
	Arbs         [2]*domain.ArbPosition

	FirstSeen time.Time
}

// NewTickerState crea el estado limpio de un ticker recién visto.
func NewTickerState(ticker string, now time.Time) *TickerState {
	return &TickerState{Ticker: ticker, FirstSeen: now}
}

// Observe actualiza las flags derivadas de precios con el snapshot del tick.
// En la primera observación marca Skipped si cualquiera de los dos lados ya
// está al precio de certeza: entrar en un mercado ya decidido no aporta nada.
func (st *TickerState) Observe(snap domain.Snapshot) {
	if !st.Observed {
		st.Observed = true
		if snap.KalshiUpAsk == domain.CertainCents || snap.KalshiDownAsk == domain.CertainCents {
			st.Skipped = true
		}
	}

	for _, side := range domain.Sides {
		if snap.KalshiAsk(side) == domain.CertainCents {
			st.SeenCertain[side] = true
		}
	}
}

// Arb devuelve la posición de arbitraje abierta de la pata, o nil.
func (st *TickerState) Arb(leg domain.Side) *domain.ArbPosition {
	return st.Arbs[leg]
}

// MarkLegAttempted deja constancia de que la pata ya se intentó este slot.
// Idempotente: como máximo un intento por pata y ticker.
func (st *TickerState) MarkLegAttempted(leg domain.Side) {
	st.LegAttempted[leg] = true
}

// OpenArb registra la posición tras confirmarse ambas patas.
func (st *TickerState) OpenArb(pos *domain.ArbPosition) {
	st.Arbs[pos.Leg] = pos
}

// CloseArb descarta la posición de la pata tras el exit.
func (st *TickerState) CloseArb(leg domain.Side) {
	st.Arbs[leg] = nil
}

// OpenPosition registra la posición de follow-confidence tras un buy confirmado.
func (st *TickerState) OpenPosition(pos *domain.Position) {
	st.Pos = pos
}

// ClosePosition cierra el ciclo: venta confirmada o abandono tras agotar
// reintentos. En ambos casos el ticker queda cycle-done.
func (st *TickerState) ClosePosition() {
	st.Pos = nil
	st.CycleDone = true
}
