// Package archive backfills trades and fills from the exchange REST
// API into postgres. Writes are batched and idempotent: re-running a
// backfill over an already archived range inserts nothing.
package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/zcole/kalshi-core/internal/api"
	"github.com/zcole/kalshi-core/internal/model"
)

// Config controls batching and backfill parallelism.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes while the
	// archiver is running.
	FlushInterval time.Duration

	// Concurrency bounds the number of tickers backfilled in
	// parallel.
	Concurrency int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
		Concurrency:   10,
	}
}

// Metrics holds counters for an archiver.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// marketClient is the slice of the REST API the archiver uses;
// satisfied by *api.Client.
type marketClient interface {
	GetTrades(ctx context.Context, opts api.GetTradesOptions) ([]model.Trade, error)
	GetFills(ctx context.Context, ticker model.MarketTicker) ([]model.Fill, error)
}

// Archiver batches trades and fills into postgres.
type Archiver struct {
	cfg    Config
	client marketClient
	db     *pgxpool.Pool
	logger *slog.Logger

	batchMu    sync.Mutex
	tradeBatch []tradeRow
	fillBatch  []fillRow
	metrics    Metrics

	flushTicker *time.Ticker
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates an archiver.
func New(cfg Config, client marketClient, db *pgxpool.Pool, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Archiver{
		cfg:        cfg,
		client:     client,
		db:         db,
		logger:     logger,
		tradeBatch: make([]tradeRow, 0, cfg.BatchSize),
		fillBatch:  make([]fillRow, 0, cfg.BatchSize),
	}
}

// Start begins the periodic flush loop.
func (a *Archiver) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.flushTicker = time.NewTicker(a.cfg.FlushInterval)

	a.wg.Add(1)
	go a.flushLoop(ctx)

	a.logger.Info("archiver started",
		"batch_size", a.cfg.BatchSize,
		"flush_interval", a.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the flush loop and writes any buffered rows.
func (a *Archiver) Stop(ctx context.Context) error {
	a.logger.Info("stopping archiver")

	if a.cancel != nil {
		a.cancel()
	}
	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("archiver stop timed out")
	}

	a.flush(context.Background())
	a.logger.Info("archiver stopped")
	return nil
}

// Stats returns current metrics.
func (a *Archiver) Stats() Metrics {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	return a.metrics
}

// BackfillTrades fetches and archives public trades for each ticker in
// the given time range.
func (a *Archiver) BackfillTrades(ctx context.Context, tickers []model.MarketTicker, minTS, maxTS time.Time) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for _, ticker := range tickers {
		g.Go(func() error {
			trades, err := a.client.GetTrades(ctx, api.GetTradesOptions{
				Ticker: string(ticker),
				MinTS:  minTS,
				MaxTS:  maxTS,
			})
			if err != nil {
				return err
			}
			for _, trade := range trades {
				a.addTrade(ctx, trade)
			}
			a.logger.Debug("backfilled trades", "ticker", ticker, "count", len(trades))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.flush(ctx)
	return nil
}

// BackfillFills fetches and archives our own fills for each ticker.
func (a *Archiver) BackfillFills(ctx context.Context, tickers []model.MarketTicker) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for _, ticker := range tickers {
		g.Go(func() error {
			fills, err := a.client.GetFills(ctx, ticker)
			if err != nil {
				return err
			}
			for _, fill := range fills {
				a.addFill(ctx, fill)
			}
			a.logger.Debug("backfilled fills", "ticker", ticker, "count", len(fills))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.flush(ctx)
	return nil
}

// ArchiveTrade buffers one trade for the next flush.
func (a *Archiver) ArchiveTrade(ctx context.Context, trade model.Trade) {
	a.addTrade(ctx, trade)
}

// ArchiveFill buffers one fill for the next flush.
func (a *Archiver) ArchiveFill(ctx context.Context, fill model.Fill) {
	a.addFill(ctx, fill)
}

func (a *Archiver) addTrade(ctx context.Context, trade model.Trade) {
	a.batchMu.Lock()
	a.tradeBatch = append(a.tradeBatch, transformTrade(trade))
	shouldFlush := len(a.tradeBatch) >= a.cfg.BatchSize
	a.batchMu.Unlock()

	if shouldFlush {
		a.flush(ctx)
	}
}

func (a *Archiver) addFill(ctx context.Context, fill model.Fill) {
	a.batchMu.Lock()
	a.fillBatch = append(a.fillBatch, transformFill(fill))
	shouldFlush := len(a.fillBatch) >= a.cfg.BatchSize
	a.batchMu.Unlock()

	if shouldFlush {
		a.flush(ctx)
	}
}

func (a *Archiver) flushLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.flushTicker.C:
			a.flush(ctx)
		}
	}
}

// flush writes buffered rows to the database.
func (a *Archiver) flush(ctx context.Context) {
	a.batchMu.Lock()
	trades := a.tradeBatch
	fills := a.fillBatch
	if len(trades) == 0 && len(fills) == 0 {
		a.batchMu.Unlock()
		return
	}
	a.tradeBatch = make([]tradeRow, 0, a.cfg.BatchSize)
	a.fillBatch = make([]fillRow, 0, a.cfg.BatchSize)
	a.batchMu.Unlock()

	start := time.Now()

	conflicts, err := a.batchInsert(ctx, trades, fills)
	if err != nil {
		a.logger.Error("batch insert failed", "error", err,
			"trades", len(trades), "fills", len(fills))
		a.batchMu.Lock()
		a.metrics.Errors++
		a.batchMu.Unlock()
		return
	}

	a.batchMu.Lock()
	a.metrics.Inserts += int64(len(trades) + len(fills) - conflicts)
	a.metrics.Conflicts += int64(conflicts)
	a.metrics.Flushes++
	a.batchMu.Unlock()

	a.logger.Debug("flushed archive batch",
		"trades", len(trades),
		"fills", len(fills),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (a *Archiver) batchInsert(ctx context.Context, trades []tradeRow, fills []fillRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range trades {
		batch.Queue(insertTradeSQL,
			r.TradeID, r.Ticker, r.TakerSide, r.YesPrice, r.NoPrice, r.Count, r.CreatedTime)
	}
	for _, r := range fills {
		batch.Queue(insertFillSQL,
			r.FillID, r.OrderID, r.Ticker, r.Side, r.Action,
			r.YesPrice, r.NoPrice, r.Count, r.IsTaker, r.CreatedTime)
	}

	results := a.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
