package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/updownbot/config"
	"github.com/alejandrodnm/updownbot/internal/adapters/notify"
	"github.com/alejandrodnm/updownbot/internal/adapters/storage"
)

// runReport imprime el estado del journal y del holdings ledger y sale.
// Solo lecturas: se puede lanzar con el bot corriendo.
func runReport(cfg *config.Config) {
	journal, err := storage.NewJournal(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer journal.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := journal.GetStats(ctx)
	if err != nil {
		slog.Error("failed to read journal stats", "err", err)
		os.Exit(1)
	}

	trades, err := journal.RecentTrades(ctx, 25)
	if err != nil {
		slog.Warn("failed to read recent trades", "err", err)
	}

	ledger, err := storage.NewHoldings(cfg.Storage.HoldingsPath).Load()
	if err != nil {
		slog.Warn("failed to read holdings ledger", "err", err)
	}

	notify.NewConsole().PrintReport(stats, trades, ledger)
}
