package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// GetExchangeStatus fetches whether the exchange and trading are up.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatusResponse, error) {
	var resp ExchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}

// GetMarkets fetches a page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.EventTicker != "" {
		query.Set("event_ticker", opts.EventTicker)
	}
	if opts.SeriesTicker != "" {
		query.Set("series_ticker", opts.SeriesTicker)
	}
	if len(opts.Tickers) > 0 {
		query.Set("tickers", strings.Join(opts.Tickers, ","))
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// GetAllMarkets fetches all markets matching the options by
// paginating through results.
func (c *Client) GetAllMarkets(ctx context.Context, opts GetMarketsOptions) ([]model.Market, error) {
	var all []model.Market
	opts.Limit = 1000 // Max page size

	for {
		resp, err := c.GetMarkets(ctx, opts)
		if err != nil {
			return nil, err
		}

		for i := range resp.Markets {
			all = append(all, resp.Markets[i].ToModel())
		}

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return all, nil
}

// GetActiveMarkets fetches every market currently open for trading.
func (c *Client) GetActiveMarkets(ctx context.Context) ([]model.Market, error) {
	return c.GetAllMarkets(ctx, GetMarketsOptions{Status: string(model.StatusOpen)})
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker model.MarketTicker) (*model.Market, error) {
	var resp SingleMarketResponse
	if err := c.get(ctx, "/markets/"+string(ticker), nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	m := resp.Market.ToModel()
	return &m, nil
}

// GetOrderbook fetches the current book for a market. Depth 0 returns
// all levels.
func (c *Client) GetOrderbook(ctx context.Context, ticker model.MarketTicker, depth int) (*orderbook.Snapshot, error) {
	query := url.Values{}
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	var resp OrderbookResponse
	if err := c.get(ctx, "/markets/"+string(ticker)+"/orderbook", query, &resp); err != nil {
		return nil, fmt.Errorf("get orderbook %s: %w", ticker, err)
	}

	return resp.ToSnapshot(ticker, c.now()), nil
}

// GetMarketHistory fetches candlestick history for a market in
// [minTS, maxTS], with periodMinutes bars.
func (c *Client) GetMarketHistory(ctx context.Context, ticker model.MarketTicker, minTS, maxTS int64, periodMinutes int) ([]model.MarketHistory, error) {
	query := url.Values{}
	if minTS > 0 {
		query.Set("start_ts", strconv.FormatInt(minTS, 10))
	}
	if maxTS > 0 {
		query.Set("end_ts", strconv.FormatInt(maxTS, 10))
	}
	if periodMinutes > 0 {
		query.Set("period_interval", strconv.Itoa(periodMinutes))
	}

	path := "/series/" + string(ticker.Series()) + "/markets/" + string(ticker) + "/candlesticks"
	var resp CandlesticksResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get market history %s: %w", ticker, err)
	}

	history := make([]model.MarketHistory, 0, len(resp.Candlesticks))
	for _, cs := range resp.Candlesticks {
		history = append(history, cs.ToModel())
	}
	return history, nil
}
