// Package collector runs live orderbook collection: discover open
// markets over REST, subscribe over websocket, and persist every
// snapshot and delta.
package collector

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zcole/kalshi-core/internal/config"
	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
	"github.com/zcole/kalshi-core/internal/ws"
)

// restClient is the slice of the REST API the collector uses;
// satisfied by *api.Client.
type restClient interface {
	GetActiveMarkets(ctx context.Context) ([]model.Market, error)
}

// store receives every collected message; satisfied by *coledb.DB.
type store interface {
	Write(msg orderbook.Message) error
	Flush() error
}

// publisher pushes the latest book top to the quote cache; satisfied
// by *quotecache.Cache.
type publisher interface {
	Publish(ctx context.Context, book *orderbook.Book, now time.Time) error
}

// Feed is a live subscription; satisfied by the exchange websocket
// feed below and by fakes in tests.
type Feed interface {
	Subscribe(ctx context.Context) error
	Next(ctx context.Context) (ws.Event, error)
	Update(ctx context.Context, tickers []model.MarketTicker) error
	Close() error
}

// FeedFunc opens a fresh feed for the given markets. The collector
// calls it once per collection run so every retry starts from a clean
// connection.
type FeedFunc func(ctx context.Context, tickers []model.MarketTicker) (Feed, error)

// Stats are live collection counters.
type Stats struct {
	Snapshots uint64
	Deltas    uint64
	Fills     uint64
	Refreshes uint64
	Runs      uint64
}

// Collector wires discovery, subscription, and storage together.
type Collector struct {
	cfg      config.CollectorConfig
	client   restClient
	store    store
	cache    publisher // optional
	onFill   func(context.Context, model.Fill)
	openFeed FeedFunc
	logger   *slog.Logger
	now      func() time.Time

	snapshots atomic.Uint64
	deltas    atomic.Uint64
	fills     atomic.Uint64
	refreshes atomic.Uint64
	runs      atomic.Uint64
}

// Option configures a Collector.
type Option func(*Collector)

// WithQuoteCache publishes the top of book after every message.
func WithQuoteCache(cache publisher) Option {
	return func(c *Collector) { c.cache = cache }
}

// WithFillHandler routes fill events (requires the fill channel in
// config).
func WithFillHandler(fn func(context.Context, model.Fill)) Option {
	return func(c *Collector) { c.onFill = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

func withClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a collector.
func New(cfg config.CollectorConfig, client restClient, st store, openFeed FeedFunc, opts ...Option) *Collector {
	c := &Collector{
		cfg:      cfg,
		client:   client,
		store:    st,
		openFeed: openFeed,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of the collection counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Snapshots: c.snapshots.Load(),
		Deltas:    c.deltas.Load(),
		Fills:     c.fills.Load(),
		Refreshes: c.refreshes.Load(),
		Runs:      c.runs.Load(),
	}
}

// Run collects until the context is canceled, re-running collection
// after failures.
func (c *Collector) Run(ctx context.Context) error {
	for {
		err := c.collect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("collection failed, re-running", "error", err,
			"retry_in", c.cfg.RetryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

// collect runs one collection session: discover, subscribe, consume.
func (c *Collector) collect(ctx context.Context) error {
	c.runs.Add(1)

	tickers, err := c.discover(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("collecting orderbooks", "markets", len(tickers))

	feed, err := c.openFeed(ctx, tickers)
	if err != nil {
		return err
	}
	defer feed.Close()
	defer func() {
		if err := c.store.Flush(); err != nil {
			c.logger.Error("store flush failed", "error", err)
		}
	}()

	if err := feed.Subscribe(ctx); err != nil {
		return err
	}

	tracker := orderbook.NewTracker()
	lastRefresh := c.now()

	for {
		ev, err := feed.Next(ctx)
		if err != nil {
			return err
		}
		if err := c.handle(ctx, tracker, ev); err != nil {
			return err
		}

		// The ticker set goes stale as markets open and close.
		// Checking on message arrival is imprecise but keeps the
		// refresh off the hot path when the feed is quiet anyway.
		if now := c.now(); now.Sub(lastRefresh) > c.cfg.RefreshInterval {
			fresh, err := c.discover(ctx)
			if err != nil {
				return err
			}
			if err := feed.Update(ctx, fresh); err != nil {
				return err
			}
			c.refreshes.Add(1)
			lastRefresh = now
		}
	}
}

func (c *Collector) handle(ctx context.Context, tracker *orderbook.Tracker, ev ws.Event) error {
	switch {
	case ev.Orderbook != nil:
		if ev.Orderbook.IsSnapshot() {
			c.snapshots.Add(1)
		} else {
			c.deltas.Add(1)
		}
		if err := c.store.Write(*ev.Orderbook); err != nil {
			return err
		}
		if c.cache != nil {
			book, err := tracker.Apply(*ev.Orderbook)
			if err != nil {
				c.logger.Warn("tracker apply failed", "error", err,
					"ticker", ev.Orderbook.MarketTicker())
				return nil
			}
			if err := c.cache.Publish(ctx, book, ev.ReceivedAt); err != nil {
				c.logger.Warn("quote publish failed", "error", err,
					"ticker", book.Ticker)
			}
		}
	case ev.Fill != nil:
		c.fills.Add(1)
		if c.onFill != nil {
			c.onFill(ctx, *ev.Fill)
		}
	}
	return nil
}

// discover lists open markets and returns their tickers.
func (c *Collector) discover(ctx context.Context) ([]model.MarketTicker, error) {
	markets, err := c.client.GetActiveMarkets(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make([]model.MarketTicker, 0, len(markets))
	for _, m := range markets {
		tickers = append(tickers, m.Ticker)
	}
	if c.cfg.MaxMarkets > 0 && len(tickers) > c.cfg.MaxMarkets {
		tickers = tickers[:c.cfg.MaxMarkets]
	}
	return tickers, nil
}
