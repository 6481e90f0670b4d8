// Command archiver backfills executed trades and our own fills from
// the REST API into postgres. Tickers come from flags or, when absent,
// from the markets present in the local store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zcole/kalshi-core/internal/api"
	"github.com/zcole/kalshi-core/internal/archive"
	"github.com/zcole/kalshi-core/internal/auth"
	"github.com/zcole/kalshi-core/internal/coledb"
	"github.com/zcole/kalshi-core/internal/config"
	"github.com/zcole/kalshi-core/internal/database"
	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	tickersFlag := flag.String("tickers", "", "comma-separated market tickers (default: all markets in the store)")
	startFlag := flag.String("start", "", "trade range start, RFC3339 (default: 24h ago)")
	endFlag := flag.String("end", "", "trade range end, RFC3339 (default: now)")
	fills := flag.Bool("fills", false, "also backfill our own fills")
	prod := flag.Bool("prod", false, "allow credentials pointing at the production exchange")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting archiver",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.Host == "" {
		logger.Error("database section is required for the archiver")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	minTS, maxTS, err := parseRange(*startFlag, *endFlag)
	if err != nil {
		logger.Error("bad time range", "error", err)
		os.Exit(1)
	}

	tickers, err := resolveTickers(*tickersFlag, cfg)
	if err != nil {
		logger.Error("failed to resolve tickers", "error", err)
		os.Exit(1)
	}
	if len(tickers) == 0 {
		logger.Error("no tickers to backfill")
		os.Exit(1)
	}

	creds, err := auth.FromEnv()
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	if err := creds.GuardProd(!*prod); err != nil {
		logger.Error("credential guard refused startup", "error", err)
		os.Exit(1)
	}
	apiClient := api.NewClient(creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	arch := archive.New(archive.Config{
		BatchSize:     cfg.Archiver.BatchSize,
		FlushInterval: cfg.Archiver.FlushInterval,
		Concurrency:   cfg.Archiver.Concurrency,
	}, apiClient, pool, logger)

	if err := arch.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	logger.Info("backfilling trades",
		"tickers", len(tickers),
		"min_ts", minTS.Format(time.RFC3339),
		"max_ts", maxTS.Format(time.RFC3339),
	)
	if err := arch.BackfillTrades(ctx, tickers, minTS, maxTS); err != nil {
		logger.Error("trade backfill failed", "error", err)
		os.Exit(1)
	}

	if *fills {
		if err := apiClient.Login(ctx); err != nil {
			logger.Error("login failed", "error", err)
			os.Exit(1)
		}
		logger.Info("backfilling fills", "tickers", len(tickers))
		if err := arch.BackfillFills(ctx, tickers); err != nil {
			logger.Error("fill backfill failed", "error", err)
			os.Exit(1)
		}
	}

	stats := arch.Stats()
	logger.Info("archiver finished",
		"inserts", stats.Inserts,
		"conflicts", stats.Conflicts,
		"errors", stats.Errors,
		"flushes", stats.Flushes,
	)
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	maxTS := time.Now()
	minTS := maxTS.Add(-24 * time.Hour)
	if start != "" {
		ts, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		minTS = ts
	}
	if end != "" {
		ts, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		maxTS = ts
	}
	return minTS, maxTS, nil
}

// resolveTickers takes the -tickers flag, falling back to the local
// store's markets.
func resolveTickers(flagValue string, cfg *config.Config) ([]model.MarketTicker, error) {
	if flagValue != "" {
		var tickers []model.MarketTicker
		for _, t := range strings.Split(flagValue, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tickers = append(tickers, model.MarketTicker(t))
			}
		}
		return tickers, nil
	}

	db, err := coledb.Open(cfg.ColeDB.Root, coledb.WithChunkSize(cfg.ColeDB.ChunkSize))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Tickers()
}
