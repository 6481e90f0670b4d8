// Package quotecache keeps the latest top-of-book per market in redis
// so downstream consumers can read quotes without replaying the feed.
package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// DefaultTTL is how long a quote stays readable after its last update.
// Stale markets age out rather than serving dead prices.
const DefaultTTL = 2 * time.Minute

// ErrNotFound is returned when no quote is cached for a ticker.
var ErrNotFound = errors.New("quotecache: no quote for ticker")

// Quote is the cached top of book for one market, YES perspective.
type Quote struct {
	Ticker    model.MarketTicker `json:"ticker"`
	YesBid    model.Price        `json:"yes_bid"`
	YesBidQty model.Quantity     `json:"yes_bid_qty"`
	YesAsk    model.Price        `json:"yes_ask"`
	YesAskQty model.Quantity     `json:"yes_ask_qty"`
	HasBid    bool               `json:"has_bid"`
	HasAsk    bool               `json:"has_ask"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Spread returns ask minus bid in cents. Valid only when both sides
// exist.
func (q Quote) Spread() (model.Price, bool) {
	if !q.HasBid || !q.HasAsk {
		return 0, false
	}
	return q.YesAsk - q.YesBid, true
}

// commands is the slice of the redis API the cache uses; satisfied by
// *redis.Client.
type commands interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Cache reads and writes quotes in redis.
type Cache struct {
	client commands
	ttl    time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the quote expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// New builds a cache on an existing redis client.
func New(client *redis.Client, opts ...Option) *Cache {
	return newCache(client, opts...)
}

func newCache(client commands, opts ...Option) *Cache {
	c := &Cache{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int, opts ...Option) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return New(client, opts...), nil
}

func key(ticker model.MarketTicker) string {
	return "quote:" + string(ticker)
}

// Publish stores the book's top of book as the latest quote.
func (c *Cache) Publish(ctx context.Context, book *orderbook.Book, now time.Time) error {
	bbo := book.TopOfBook()
	q := Quote{
		Ticker:    book.Ticker,
		YesBid:    bbo.Bid.Price,
		YesBidQty: bbo.Bid.Quantity,
		YesAsk:    bbo.Ask.Price,
		YesAskQty: bbo.Ask.Quantity,
		HasBid:    bbo.HasBid,
		HasAsk:    bbo.HasAsk,
		UpdatedAt: now.UTC(),
	}
	return c.Set(ctx, q)
}

// Set stores a quote under quote:<ticker> with the cache TTL.
func (c *Cache) Set(ctx context.Context, q Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quote %s: %w", q.Ticker, err)
	}
	if err := c.client.Set(ctx, key(q.Ticker), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache quote %s: %w", q.Ticker, err)
	}
	return nil
}

// Get returns the latest quote for a ticker, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, ticker model.MarketTicker) (Quote, error) {
	data, err := c.client.Get(ctx, key(ticker)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Quote{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
		}
		return Quote{}, fmt.Errorf("read quote %s: %w", ticker, err)
	}
	var q Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s: %w", ticker, err)
	}
	return q, nil
}

// GetMany returns the cached quotes for the given tickers, skipping
// markets with no quote.
func (c *Cache) GetMany(ctx context.Context, tickers []model.MarketTicker) ([]Quote, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = key(t)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read quotes: %w", err)
	}
	quotes := make([]Quote, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var q Quote
		if err := json.Unmarshal([]byte(s), &q); err != nil {
			return nil, fmt.Errorf("decode quote %s: %w", tickers[i], err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Ping verifies the redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
