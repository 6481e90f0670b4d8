package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zcole/kalshi-core/internal/config"
	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
	"github.com/zcole/kalshi-core/internal/ws"
)

type fakeREST struct {
	mu      sync.Mutex
	markets [][]model.Market
	calls   int
}

func (f *fakeREST) GetActiveMarkets(ctx context.Context) ([]model.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.markets) {
		i = len(f.markets) - 1
	}
	f.calls++
	return f.markets[i], nil
}

type fakeStore struct {
	mu      sync.Mutex
	msgs    []orderbook.Message
	flushes int
}

func (f *fakeStore) Write(msg orderbook.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeStore) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	books []model.MarketTicker
}

func (f *fakePublisher) Publish(ctx context.Context, book *orderbook.Book, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books = append(f.books, book.Ticker)
	return nil
}

// fakeFeed replays a scripted event sequence then fails.
type fakeFeed struct {
	mu      sync.Mutex
	events  []ws.Event
	err     error
	tickers []model.MarketTicker
	updates [][]model.MarketTicker
	closed  bool
}

func (f *fakeFeed) Subscribe(ctx context.Context) error { return nil }

func (f *fakeFeed) Next(ctx context.Context) (ws.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		if f.err != nil {
			return ws.Event{}, f.err
		}
		<-ctx.Done()
		return ws.Event{}, ctx.Err()
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeFeed) Update(ctx context.Context, tickers []model.MarketTicker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, tickers)
	return nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func snapshotEvent(ticker model.MarketTicker, ts time.Time) ws.Event {
	return ws.Event{
		Orderbook: &orderbook.Message{Snapshot: &orderbook.Snapshot{
			Ticker: ticker,
			Yes:    []orderbook.Level{{Price: 40, Quantity: 100}},
			TS:     ts,
		}},
		ReceivedAt: ts,
	}
}

func deltaEvent(ticker model.MarketTicker, ts time.Time) ws.Event {
	return ws.Event{
		Orderbook: &orderbook.Message{Delta: &orderbook.Delta{
			Ticker: ticker,
			Side:   model.Yes,
			Price:  40,
			Change: 5,
			TS:     ts,
		}},
		ReceivedAt: ts,
	}
}

func markets(tickers ...model.MarketTicker) []model.Market {
	out := make([]model.Market, len(tickers))
	for i, t := range tickers {
		out[i] = model.Market{Ticker: t, Status: model.StatusOpen}
	}
	return out
}

func TestCollectWritesAndPublishes(t *testing.T) {
	ts := time.Date(2023, 8, 28, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		events: []ws.Event{
			snapshotEvent("MKT-A", ts),
			deltaEvent("MKT-A", ts.Add(time.Second)),
		},
		err: errors.New("feed closed"),
	}
	rest := &fakeREST{markets: [][]model.Market{markets("MKT-A")}}
	st := &fakeStore{}
	pub := &fakePublisher{}

	var opened atomic.Int64
	c := New(config.CollectorConfig{RefreshInterval: time.Hour, RetryDelay: time.Second},
		rest, st,
		func(ctx context.Context, tickers []model.MarketTicker) (Feed, error) {
			opened.Add(1)
			feed.tickers = tickers
			return feed, nil
		},
		WithQuoteCache(pub),
	)

	err := c.collect(context.Background())
	if err == nil || err.Error() != "feed closed" {
		t.Fatalf("collect err = %v, want feed closed", err)
	}

	if opened.Load() != 1 {
		t.Errorf("feed opened %d times", opened.Load())
	}
	if len(feed.tickers) != 1 || feed.tickers[0] != "MKT-A" {
		t.Errorf("subscribed tickers = %v", feed.tickers)
	}
	if len(st.msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(st.msgs))
	}
	if !st.msgs[0].IsSnapshot() || st.msgs[1].IsSnapshot() {
		t.Errorf("message kinds wrong: %+v", st.msgs)
	}
	if st.flushes != 1 {
		t.Errorf("flushes = %d, want 1", st.flushes)
	}
	if len(pub.books) != 2 {
		t.Errorf("published %d quotes, want 2", len(pub.books))
	}
	if !feed.closed {
		t.Error("feed not closed")
	}

	stats := c.Stats()
	if stats.Snapshots != 1 || stats.Deltas != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRefreshUpdatesSubscription(t *testing.T) {
	ts := time.Date(2023, 8, 28, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		events: []ws.Event{
			snapshotEvent("MKT-A", ts),
			deltaEvent("MKT-A", ts.Add(time.Second)),
		},
		err: errors.New("done"),
	}
	rest := &fakeREST{markets: [][]model.Market{
		markets("MKT-A"),
		markets("MKT-A", "MKT-B"),
	}}

	// clock jumps past the refresh interval after the first event
	times := []time.Time{ts, ts, ts.Add(10 * time.Hour), ts.Add(10 * time.Hour)}
	var tick int
	clock := func() time.Time {
		if tick >= len(times) {
			return times[len(times)-1]
		}
		now := times[tick]
		tick++
		return now
	}

	c := New(config.CollectorConfig{RefreshInterval: 8 * time.Hour, RetryDelay: time.Second},
		rest, &fakeStore{},
		func(ctx context.Context, tickers []model.MarketTicker) (Feed, error) {
			return feed, nil
		},
		withClock(clock),
	)

	_ = c.collect(context.Background())

	if len(feed.updates) != 1 {
		t.Fatalf("got %d subscription updates, want 1", len(feed.updates))
	}
	if len(feed.updates[0]) != 2 {
		t.Errorf("updated tickers = %v, want two markets", feed.updates[0])
	}
	if c.Stats().Refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", c.Stats().Refreshes)
	}
}

func TestFillHandler(t *testing.T) {
	fill := model.Fill{
		Ticker:  "MKT-A",
		FillID:  uuid.New(),
		OrderID: uuid.New(),
		Side:    model.Yes,
		Action:  model.ActionBuy,
		Count:   3,
	}
	feed := &fakeFeed{
		events: []ws.Event{{Fill: &fill, ReceivedAt: time.Now()}},
		err:    errors.New("done"),
	}

	var got []model.Fill
	c := New(config.CollectorConfig{RefreshInterval: time.Hour},
		&fakeREST{markets: [][]model.Market{markets("MKT-A")}}, &fakeStore{},
		func(ctx context.Context, tickers []model.MarketTicker) (Feed, error) {
			return feed, nil
		},
		WithFillHandler(func(_ context.Context, f model.Fill) { got = append(got, f) }),
	)

	_ = c.collect(context.Background())

	if len(got) != 1 || got[0].FillID != fill.FillID {
		t.Fatalf("fills = %+v", got)
	}
	if c.Stats().Fills != 1 {
		t.Errorf("fill count = %d", c.Stats().Fills)
	}
}

func TestMaxMarketsCap(t *testing.T) {
	rest := &fakeREST{markets: [][]model.Market{markets("MKT-A", "MKT-B", "MKT-C")}}
	c := New(config.CollectorConfig{MaxMarkets: 2}, rest, &fakeStore{}, nil)

	tickers, err := c.discover(context.Background())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Errorf("got %d tickers, want 2", len(tickers))
	}
}

func TestRunRetriesUntilCanceled(t *testing.T) {
	var attempts atomic.Int64
	c := New(config.CollectorConfig{RefreshInterval: time.Hour, RetryDelay: 5 * time.Millisecond},
		&fakeREST{markets: [][]model.Market{markets("MKT-A")}}, &fakeStore{},
		func(ctx context.Context, tickers []model.MarketTicker) (Feed, error) {
			attempts.Add(1)
			return nil, errors.New("dial failed")
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil on cancel", err)
	}
	if attempts.Load() < 2 {
		t.Errorf("attempts = %d, want the run to retry", attempts.Load())
	}
}
