package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// PolyMarkets consulta el libro y los metadatos del mercado en Polymarket.
type PolyMarkets interface {
	// MarketForSlot localiza el mercado updown de Polymarket que corresponde
	// al slot de 15 minutos que empieza en slotStart.
	MarketForSlot(ctx context.Context, seriesSlug string, slotStart time.Time) (domain.PolyMarket, error)

	// BestAsk devuelve el mejor ask actual del token dado. Stateless; se usa
	// en cada tick y para re-preciar reintentos.
	BestAsk(ctx context.Context, tokenID string) (float64, error)
}

// PolyTrader coloca órdenes y consulta saldos en Polymarket.
type PolyTrader interface {
	// LimitBuy coloca una orden limit resting (GTC). Devuelve el order id.
	// Un rechazo por fill incompleto devuelve domain.ErrUnfilled envuelto.
	LimitBuy(ctx context.Context, buy domain.PolyBuy) (string, error)

	// MarketSell coloca una venta market-style immediate-or-cancel.
	MarketSell(ctx context.Context, tokenID string, size float64) (string, error)

	// Balance devuelve el colateral (USDC) disponible.
	Balance(ctx context.Context) (float64, error)

	// TokenBalance devuelve el saldo on-chain/ledger del token, en shares.
	// Es la fuente de verdad para dimensionar ventas.
	TokenBalance(ctx context.Context, tokenID string) (float64, error)

	// OrderStatus consulta una orden por id. Solo observabilidad.
	OrderStatus(ctx context.Context, orderID string) (domain.OrderState, error)
}
