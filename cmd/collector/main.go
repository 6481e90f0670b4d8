// Command collector streams live orderbook data from the exchange
// websocket into the chunked on-disk store, optionally publishing top
// of book to redis and reconciling our own fills into a portfolio.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zcole/kalshi-core/internal/api"
	"github.com/zcole/kalshi-core/internal/auth"
	"github.com/zcole/kalshi-core/internal/backend/s3"
	"github.com/zcole/kalshi-core/internal/coledb"
	"github.com/zcole/kalshi-core/internal/collector"
	"github.com/zcole/kalshi-core/internal/config"
	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
	"github.com/zcole/kalshi-core/internal/poller"
	"github.com/zcole/kalshi-core/internal/portfolio"
	"github.com/zcole/kalshi-core/internal/quotecache"
	"github.com/zcole/kalshi-core/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	prod := flag.Bool("prod", false, "allow credentials pointing at the production exchange")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.API.WSURL,
		"store", cfg.ColeDB.Root,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

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

	logger.Info("checking exchange status")
	status, err := apiClient.GetExchangeStatus(ctx)
	if err != nil {
		logger.Error("failed to get exchange status", "error", err)
		os.Exit(1)
	}
	logger.Info("exchange status",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)

	db, err := coledb.Open(cfg.ColeDB.Root,
		coledb.WithChunkSize(cfg.ColeDB.ChunkSize),
		coledb.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := []collector.Option{collector.WithLogger(logger)}

	var cache *quotecache.Cache
	if cfg.Redis.Enabled {
		cache, err = quotecache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			quotecache.WithTTL(cfg.Redis.QuoteTTL),
		)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		opts = append(opts, collector.WithQuoteCache(cache))
		logger.Info("quote cache connected", "addr", cfg.Redis.Addr)
	}

	if cfg.Collector.Fills {
		book, err := buildPortfolio(ctx, apiClient)
		if err != nil {
			logger.Error("failed to load account balance", "error", err)
			os.Exit(1)
		}
		logger.Info("portfolio tracking enabled", "cash_cents", book.Cash())
		opts = append(opts, collector.WithFillHandler(func(ctx context.Context, fill model.Fill) {
			if err := book.ApplyFill(fill); err != nil {
				logger.Warn("failed to reconcile fill",
					"ticker", fill.Ticker,
					"fill_id", fill.FillID,
					"error", err,
				)
				return
			}
			logger.Info("fill reconciled",
				"ticker", fill.Ticker,
				"side", fill.Side,
				"action", fill.Action,
				"count", fill.Count,
				"cash_cents", book.Cash(),
			)
		}))
	}

	coll := collector.New(cfg.Collector, apiClient, db,
		collector.ExchangeFeed(cfg.API.WSURL, apiClient, cfg.Collector.Fills, logger),
		opts...,
	)

	var snap *poller.Poller
	var restDB *coledb.DB
	if cfg.Collector.PollInterval > 0 {
		snap, restDB, err = startPoller(ctx, cfg.Collector.PollInterval, apiClient, db, logger)
		if err != nil {
			logger.Error("failed to start snapshot poller", "error", err)
			os.Exit(1)
		}
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, coll, cache),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("collector running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	if err := coll.Run(ctx); err != nil {
		logger.Error("collection stopped", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	// Stop the poller before closing the store it writes to.
	if snap != nil {
		if err := snap.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop snapshot poller", "error", err)
		}
		if err := restDB.Close(); err != nil {
			logger.Error("failed to close rest store", "error", err)
		}
	}

	if err := db.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}

	if cfg.S3.Enabled {
		if err := syncStore(cfg, db, logger); err != nil {
			logger.Error("failed to sync store to s3", "error", err)
		}
	}

	logger.Info("collector stopped")
}

// startPoller runs the REST snapshot poller against the markets the
// stream is collecting. Polled snapshots land in a sibling "-rest"
// store: a REST snapshot lags the live book, so writing it into the
// stream's chunks would invalidate the deltas that follow it.
func startPoller(ctx context.Context, interval time.Duration, client *api.Client, db *coledb.DB, logger *slog.Logger) (*poller.Poller, *coledb.DB, error) {
	restDB, err := coledb.Open(db.Root()+"-rest", coledb.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	cfg := poller.DefaultConfig()
	cfg.Interval = interval

	source := poller.MarketSourceFunc(func() []model.MarketTicker {
		tickers, err := db.Tickers()
		if err != nil {
			logger.Warn("failed to list stored markets", "error", err)
			return nil
		}
		return tickers
	})
	handler := poller.SnapshotHandlerFunc(func(s orderbook.Snapshot) error {
		return restDB.Write(orderbook.Message{Snapshot: &s})
	})

	p := poller.New(cfg, client, source, handler, logger)
	if err := p.Start(ctx); err != nil {
		restDB.Close()
		return nil, nil, err
	}
	return p, restDB, nil
}

// buildPortfolio seeds a portfolio from the account's live balance so
// reconciled fills are charged against real cash.
func buildPortfolio(ctx context.Context, client *api.Client) (*portfolio.Portfolio, error) {
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	balance, err := client.GetBalance(ctx)
	if err != nil {
		return nil, err
	}
	return portfolio.New(balance)
}

// syncStore mirrors the finished store to S3 after a clean shutdown.
func syncStore(cfg *config.Config, db *coledb.DB, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := s3.NewClient(ctx)
	if err != nil {
		return err
	}
	remote, err := s3.PartitionPath(cfg.S3.Bucket, s3.SourceCole, cfg.Instance.ID)
	if err != nil {
		return err
	}
	syncer := s3.NewSyncer(client,
		s3.WithSyncLogger(logger),
		s3.WithWorkers(cfg.S3.Workers),
	)
	logger.Info("syncing store to s3", "remote", remote.String())
	return db.SyncToRemote(ctx, syncer, remote)
}

// createHealthHandler serves live collection counters as JSON.
func createHealthHandler(path string, coll *collector.Collector, cache *quotecache.Cache) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string          `json:"status"`
			Collector  collector.Stats `json:"collector"`
			Components map[string]any  `json:"components"`
		}{
			Status:     "healthy",
			Collector:  coll.Stats(),
			Components: make(map[string]any),
		}

		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				health.Status = "degraded"
				health.Components["redis"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["redis"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
