package ports

import (
	"context"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// HoldingsStore es el ledger durable {settlementID → token → cantidad}.
// Es la fuente de verdad que sobrevive reinicios; el estado en memoria de las
// estrategias es una cache advisoria reconstruida desde aquí al arrancar.
type HoldingsStore interface {
	// Load lee el ledger completo.
	Load() (map[string]map[string]float64, error)

	// Add incrementa la cantidad acumulada de un token tras un buy confirmado.
	Add(settlementID, tokenID string, qty float64) error

	// ClearSettlement borra la entrada entera tras un exit completo o
	// settlement. Nunca deja cantidades a cero.
	ClearSettlement(settlementID string) error
}

// TradeJournal persiste snapshots aceptados y eventos de trading para el
// report y el análisis offline.
type TradeJournal interface {
	SaveTick(ctx context.Context, snap domain.Snapshot) error
	SaveTrade(ctx context.Context, ev domain.TradeEvent) error
}

// SlotLog escribe el log plano por slot: una línea por snapshot aceptado más
// líneas de evento anotadas, todas con timestamp ISO-8601.
type SlotLog interface {
	Snapshot(snap domain.Snapshot)
	Eventf(format string, args ...any)
}

// SettlementReporter es la capability on-chain consumida por el job de
// redemption (fuera de este proceso): estado de resolución y redención de un
// settlement id contra el holdings ledger.
type SettlementReporter interface {
	Resolved(ctx context.Context, settlementID string) (resolved bool, winner domain.Side, err error)
	Redeem(ctx context.Context, settlementID string) error
}
