package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/updownbot/config"
	"github.com/alejandrodnm/updownbot/internal/adapters/kalshi"
	"github.com/alejandrodnm/updownbot/internal/adapters/notify"
	"github.com/alejandrodnm/updownbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/updownbot/internal/adapters/storage"
	"github.com/alejandrodnm/updownbot/internal/domain"
	"github.com/alejandrodnm/updownbot/internal/engine"
	"github.com/alejandrodnm/updownbot/internal/feed"
	"github.com/alejandrodnm/updownbot/internal/lockfile"
	"github.com/alejandrodnm/updownbot/internal/orders"
	"github.com/alejandrodnm/updownbot/internal/strategy"
)

// stopFile permite parar el bot sin señales: `touch STOP` en el cwd.
const stopFile = "STOP"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "evaluate a single tick and exit")
	dryRun := flag.Bool("dry-run", false, "log orders without transmitting them (both venues)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print journal report and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *report {
		runReport(cfg)
		return
	}

	if *dryRun {
		cfg.Orders.DryRunKalshi = true
		cfg.Orders.DryRunPolymarket = true
	}

	// Una sola instancia por lockfile: la instancia nueva desaloja a la vieja.
	lock, err := lockfile.Acquire(cfg.Engine.LockPath)
	if err != nil {
		slog.Error("failed to acquire process lock", "err", err, "path", cfg.Engine.LockPath)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("updownbot starting",
		"config", *configPath,
		"series", cfg.Engine.Series,
		"interval", cfg.PollInterval(),
		"dry_run_kalshi", cfg.Orders.DryRunKalshi,
		"dry_run_poly", cfg.Orders.DryRunPolymarket,
		"once", *once,
	)

	kalshiClient := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.APIKey)
	polyClient := polymarket.NewClient(cfg.Polymarket.ClobBase, cfg.Polymarket.GammaBase, cfg.Polymarket.APIKey)

	holdings := storage.NewHoldings(cfg.Storage.HoldingsPath)

	journal, err := storage.NewJournal(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer journal.Close()

	slotLog, err := notify.NewSlotLog(cfg.Storage.SlotLogDir)
	if err != nil {
		slog.Error("failed to open slot log dir", "err", err, "dir", cfg.Storage.SlotLogDir)
		os.Exit(1)
	}
	defer slotLog.Close()

	coord := orders.New(kalshiClient, polyClient, polyClient, journal, slotLog, orders.Config{
		BuyMarkup:         cfg.Orders.BuyMarkup,
		MinNotional:       cfg.Orders.MinNotionalUSDC,
		RetryDelay:        time.Duration(cfg.Arb.RetryDelayMS) * time.Millisecond,
		RetryBuffer:       cfg.Arb.RetryBuffer,
		FulfillCheckDelay: time.Duration(cfg.Orders.FulfillCheckMS) * time.Millisecond,
		DryRunKalshi:      cfg.Orders.DryRunKalshi,
		DryRunPoly:        cfg.Orders.DryRunPolymarket,
	})

	eng := engine.New(engine.Config{
		Arb: strategy.ArbConfig{
			BandLow:     cfg.Arb.BandLow,
			BandHigh:    cfg.Arb.BandHigh,
			KalshiCount: cfg.Arb.KalshiCount,
			PolyShares:  cfg.Arb.PolyShares,
		},
		Follow: strategy.FollowConfig{
			BuyMin:             cfg.Follow.BuyMin,
			BuyMax:             cfg.Follow.BuyMax,
			SellBelow:          cfg.Follow.SellBelow,
			CertBuffer:         cfg.Follow.CertBuffer,
			Shares:             cfg.Follow.Shares,
			SafetyMargin:       cfg.Follow.SafetyMargin,
			BalanceSizingAfter: time.Duration(cfg.Follow.BalanceSizingAfter) * time.Second,
			SellRetries:        cfg.Follow.SellRetries,
			SellRetryDelay:     time.Duration(cfg.Follow.SellRetryDelayMS) * time.Millisecond,
		},
		HaltOnLowBalance:      cfg.HaltOnLowBalance(),
		MinKalshiBalanceCents: cfg.Engine.MinKalshiBalanceCents,
		MinPolyBalanceUSDC:    cfg.Engine.MinPolyBalanceUSDC,
		BalancePrefetch:       time.Duration(cfg.Engine.BalancePrefetchSeconds) * time.Second,
	}, coord, holdings, kalshiClient, polyClient, journal, slotLog)

	priceFeed := feed.New(kalshiClient, polyClient, journal, slotLog, feed.Config{
		Interval: cfg.PollInterval(),
		Series:   cfg.Engine.Series,
		PolySlug: cfg.Engine.PolySlug,
		Pinned:   cfg.Engine.Ticker,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go watchStopFile(ctx, cancel)

	eng.Start(ctx)

	console := notify.NewConsole()
	started := time.Now()

	cb := feed.Callbacks{
		OnTick: func(snap domain.Snapshot) {
			console.PrintTick(snap, snap.LegSum(domain.SideUp), snap.LegSum(domain.SideDown))
			eng.OnTick(snap)
		},
		OnRollover: eng.OnRollover,
	}
	if *once {
		onTick := cb.OnTick
		cb.OnTick = func(snap domain.Snapshot) {
			onTick(snap)
			cancel()
		}
	}

	err = superviseFeed(ctx, priceFeed, cb)
	coord.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("feed exited with error", "err", err)
		return
	}
	console.PrintShutdown(started)
	slog.Info("updownbot stopped cleanly")
}

// superviseFeed relanza el feed tras errores transitorios (discovery, red) en
// vez de tumbar el proceso. Solo la cancelación o un cierre limpio lo terminan.
func superviseFeed(ctx context.Context, f *feed.Feed, cb feed.Callbacks) error {
	for {
		err := f.Run(ctx, cb)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}

		slog.Error("feed failed, restarting", "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// watchStopFile cancela el contexto si aparece el fichero STOP.
func watchStopFile(ctx context.Context, cancel context.CancelFunc) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := os.Stat(stopFile); err == nil {
				slog.Info("STOP file found, shutting down")
				os.Remove(stopFile)
				cancel()
				return
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
