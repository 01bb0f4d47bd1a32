package storage

// sqlite.go — journal de ticks y trades en SQLite (pure Go, sin CGo).
//
// Tablas:
//   ticks  — un snapshot aceptado por fila; respaldo estructurado del log
//            plano por slot, consultable para el report y el backtesting.
//   trades — entradas, salidas, reintentos, chequeos de fulfillment y
//            abandonos, con su resultado normalizado.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ticks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    sampled_at  DATETIME NOT NULL,
    ticker      TEXT     NOT NULL,
    kalshi_up   INTEGER  NOT NULL,
    kalshi_down INTEGER  NOT NULL,
    poly_up     REAL     NOT NULL,
    poly_down   REAL     NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    at        DATETIME NOT NULL,
    ticker    TEXT     NOT NULL,
    strategy  TEXT     NOT NULL,
    venue     TEXT     NOT NULL,
    action    TEXT     NOT NULL,
    side      TEXT     NOT NULL DEFAULT '',
    token     TEXT     NOT NULL DEFAULT '',
    price     REAL     NOT NULL DEFAULT 0,
    size      REAL     NOT NULL DEFAULT 0,
    order_id  TEXT     NOT NULL DEFAULT '',
    status    TEXT     NOT NULL,
    note      TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ticks_at     ON ticks(sampled_at DESC);
CREATE INDEX IF NOT EXISTS idx_ticks_ticker ON ticks(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_at    ON trades(at DESC);
`

// Retención: los ticks pesan poco pero se acumulan rápido a 2s por tick.
const retentionTicks = 7 * 24 * time.Hour

// Journal implementa ports.TradeJournal usando SQLite.
type Journal struct {
	db *sql.DB
}

// NewJournal abre (o crea) la base de datos en la ruta dada, aplica el schema
// y limpia ticks antiguos.
func NewJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewJournal: apply schema: %w", err)
	}

	j := &Journal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// Close cierra la base de datos.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SaveTick persiste un snapshot aceptado.
func (j *Journal) SaveTick(ctx context.Context, snap domain.Snapshot) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO ticks (sampled_at, ticker, kalshi_up, kalshi_down, poly_up, poly_down)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.SampledAt.UTC(), snap.Market.Ticker,
		snap.KalshiUpAsk, snap.KalshiDownAsk,
		snap.PolyUpAsk, snap.PolyDownAsk,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTick: %w", err)
	}
	return nil
}

// SaveTrade persiste un evento de trading.
func (j *Journal) SaveTrade(ctx context.Context, ev domain.TradeEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades (at, ticker, strategy, venue, action, side, token, price, size, order_id, status, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.At.UTC(), ev.Ticker, ev.Strategy, ev.Venue, ev.Action, ev.Side,
		ev.Token, ev.Price, ev.Size, ev.OrderID, ev.Status, ev.Note,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade: %w", err)
	}
	return nil
}

// RecentTrades devuelve los últimos n eventos, más recientes primero.
func (j *Journal) RecentTrades(ctx context.Context, n int) ([]domain.TradeEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT at, ticker, strategy, venue, action, side, token, price, size, order_id, status, note
		FROM trades ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeEvent
	for rows.Next() {
		var ev domain.TradeEvent
		if err := rows.Scan(&ev.At, &ev.Ticker, &ev.Strategy, &ev.Venue, &ev.Action,
			&ev.Side, &ev.Token, &ev.Price, &ev.Size, &ev.OrderID, &ev.Status, &ev.Note); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats resume el journal para el report.
type Stats struct {
	Ticks     int
	Trades    int
	Buys      int
	Sells     int
	Unfilled  int
	Abandoned int
	FirstAt   time.Time
	LastAt    time.Time
}

// GetStats agrega contadores básicos del journal.
func (j *Journal) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	row := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`)
	if err := row.Scan(&st.Ticks); err != nil {
		return st, fmt.Errorf("storage.GetStats: ticks: %w", err)
	}

	row = j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(action = 'buy'  AND status = 'ok'), 0),
		       COALESCE(SUM(action = 'sell' AND status = 'ok'), 0),
		       COALESCE(SUM(status = 'unfilled'), 0),
		       COALESCE(SUM(status = 'abandoned'), 0)
		FROM trades`)
	if err := row.Scan(&st.Trades, &st.Buys, &st.Sells, &st.Unfilled, &st.Abandoned); err != nil {
		return st, fmt.Errorf("storage.GetStats: trades: %w", err)
	}

	if st.Trades > 0 {
		row = j.db.QueryRowContext(ctx, `SELECT at FROM trades ORDER BY at ASC LIMIT 1`)
		if err := row.Scan(&st.FirstAt); err != nil && err != sql.ErrNoRows {
			return st, fmt.Errorf("storage.GetStats: first: %w", err)
		}
		row = j.db.QueryRowContext(ctx, `SELECT at FROM trades ORDER BY at DESC LIMIT 1`)
		if err := row.Scan(&st.LastAt); err != nil && err != sql.ErrNoRows {
			return st, fmt.Errorf("storage.GetStats: last: %w", err)
		}
	}
	return st, nil
}

// pruneOld borra ticks fuera de la ventana de retención.
func (j *Journal) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionTicks)
	_, _ = j.db.ExecContext(ctx, `DELETE FROM ticks WHERE sampled_at < ?`, cutoff)
}
