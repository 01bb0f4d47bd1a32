package notify

// console.go — output humano: status compacto por tick y reporte bajo demanda.

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/updownbot/internal/adapters/storage"
	"github.com/alejandrodnm/updownbot/internal/domain"
)

// Console escribe el output legible del bot.
type Console struct {
	out io.Writer
}

// NewConsole crea una consola que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea una consola para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintTick imprime la línea compacta de un snapshot aceptado.
func (c *Console) PrintTick(snap domain.Snapshot, sumUp, sumDown float64) {
	fmt.Fprintf(c.out, "[%s] %s | K %d/%d  P %.3f/%.3f | sum UP %.3f DOWN %.3f\n",
		snap.SampledAt.Format("15:04:05"),
		snap.Market.Ticker,
		snap.KalshiUpAsk, snap.KalshiDownAsk,
		snap.PolyUpAsk, snap.PolyDownAsk,
		sumUp, sumDown,
	)
}

// PrintReport imprime el estado del journal y el ledger de holdings.
func (c *Console) PrintReport(stats storage.Stats, trades []domain.TradeEvent,
	holdings map[string]map[string]float64) {

	fmt.Fprintf(c.out, "\n========================================\n")
	fmt.Fprintf(c.out, "  UPDOWN BOT REPORT\n")
	if !stats.FirstAt.IsZero() {
		fmt.Fprintf(c.out, "  %s → %s\n",
			stats.FirstAt.Format("2006-01-02 15:04"),
			stats.LastAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(c.out, "========================================\n\n")

	fmt.Fprintf(c.out, "  Ticks recorded:   %d\n", stats.Ticks)
	fmt.Fprintf(c.out, "  Trade events:     %d\n", stats.Trades)
	fmt.Fprintf(c.out, "  Buys filled:      %d\n", stats.Buys)
	fmt.Fprintf(c.out, "  Sells filled:     %d\n", stats.Sells)
	fmt.Fprintf(c.out, "  Unfilled orders:  %d\n", stats.Unfilled)
	fmt.Fprintf(c.out, "  Abandoned exits:  %d\n", stats.Abandoned)

	c.printHoldings(holdings)
	c.printTrades(trades)
	fmt.Fprintln(c.out)
}

// printHoldings lista el ledger {settlement → token → qty}.
func (c *Console) printHoldings(holdings map[string]map[string]float64) {
	fmt.Fprintf(c.out, "\n── HOLDINGS (%d settlements) ──\n", len(holdings))
	if len(holdings) == 0 {
		fmt.Fprintln(c.out, "  (none — nothing pending redemption)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Settlement", "Token", "Qty")
	for settlement, tokens := range holdings {
		for token, qty := range tokens {
			table.Append(shorten(settlement), shorten(token), fmt.Sprintf("%.2f", qty))
		}
	}
	table.Render()
}

// printTrades lista los últimos eventos, más recientes primero.
func (c *Console) printTrades(trades []domain.TradeEvent) {
	fmt.Fprintf(c.out, "\n── RECENT TRADES (%d) ──\n", len(trades))
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("At", "Ticker", "Strat", "Venue", "Action", "Side", "Price", "Size", "Status")
	for _, ev := range trades {
		table.Append(
			ev.At.Format("01-02 15:04:05"),
			ev.Ticker,
			ev.Strategy,
			ev.Venue,
			ev.Action,
			ev.Side,
			fmt.Sprintf("%.3f", ev.Price),
			fmt.Sprintf("%.2f", ev.Size),
			ev.Status,
		)
	}
	table.Render()
}

// PrintShutdown imprime el cierre limpio con la duración de la sesión.
func (c *Console) PrintShutdown(started time.Time) {
	fmt.Fprintf(c.out, "\n[%s] shutdown — session ran %s\n",
		time.Now().Format("15:04:05"),
		time.Since(started).Truncate(time.Second),
	)
}

func shorten(id string) string {
	if len(id) > 18 {
		return id[:16] + ".."
	}
	return id
}
