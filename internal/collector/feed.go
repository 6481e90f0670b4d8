package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zcole/kalshi-core/internal/api"
	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/ws"
)

// ExchangeFeed returns a FeedFunc that signs in, dials the exchange
// websocket with the session token, and subscribes.
func ExchangeFeed(wsURL string, client *api.Client, fills bool, logger *slog.Logger) FeedFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, tickers []model.MarketTicker) (Feed, error) {
		if err := client.Login(ctx); err != nil {
			return nil, fmt.Errorf("sign in for websocket: %w", err)
		}

		cfg := ws.DefaultClientConfig()
		cfg.URL = wsURL
		cfg.Authorization = client.Session().AuthorizationHeader()

		conn := ws.NewClient(cfg, logger)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}

		opts := []ws.SubscriptionOption{ws.WithSubscriptionLogger(logger)}
		if fills {
			opts = append(opts, ws.WithFills())
		}
		return &exchangeFeed{
			sub:  ws.NewSubscription(conn, tickers, opts...),
			conn: conn,
		}, nil
	}
}

type exchangeFeed struct {
	sub  *ws.Subscription
	conn ws.Client
}

func (f *exchangeFeed) Subscribe(ctx context.Context) error { return f.sub.Subscribe(ctx) }
func (f *exchangeFeed) Next(ctx context.Context) (ws.Event, error) {
	return f.sub.Next(ctx)
}
func (f *exchangeFeed) Update(ctx context.Context, tickers []model.MarketTicker) error {
	return f.sub.Update(ctx, tickers)
}
func (f *exchangeFeed) Close() error { return f.conn.Close() }
