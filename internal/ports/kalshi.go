package ports

import (
	"context"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// KalshiMarkets consulta mercados y precios de la serie updown en Kalshi.
type KalshiMarkets interface {
	// NextOpenMarket devuelve el siguiente mercado abierto de la serie.
	// Pagina la lista de mercados abiertos y elige el de cierre más próximo.
	NextOpenMarket(ctx context.Context, series string) (domain.KalshiMarket, error)

	// Market devuelve el estado actual (asks, status) del ticker dado.
	Market(ctx context.Context, ticker string) (domain.KalshiMarket, error)
}

// KalshiTrader coloca órdenes y consulta saldo en Kalshi.
type KalshiTrader interface {
	// PlaceOrder envía una orden limit. El resultado normaliza el id y el
	// count ejecutado; un rechazo por fill incompleto devuelve
	// domain.ErrUnfilled envuelto.
	PlaceOrder(ctx context.Context, order domain.KalshiOrder) (domain.KalshiOrderResult, error)

	// Balance devuelve el saldo disponible en céntimos.
	Balance(ctx context.Context) (int64, error)
}
