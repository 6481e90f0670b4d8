package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/zcole/kalshi-core/internal/model"
)

// GetTradesPage fetches one page of public trades.
func (c *Client) GetTradesPage(ctx context.Context, opts GetTradesOptions, cursor string) (*TradesResponse, error) {
	query := url.Values{}
	if opts.Ticker != "" {
		query.Set("ticker", opts.Ticker)
	}
	if !opts.MinTS.IsZero() {
		query.Set("min_ts", strconv.FormatInt(opts.MinTS.Unix(), 10))
	}
	if !opts.MaxTS.IsZero() {
		query.Set("max_ts", strconv.FormatInt(opts.MaxTS.Unix(), 10))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var resp TradesResponse
	if err := c.get(ctx, "/markets/trades", query, &resp); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	return &resp, nil
}

// GetTrades fetches all public trades matching the options, following
// the cursor.
func (c *Client) GetTrades(ctx context.Context, opts GetTradesOptions) ([]model.Trade, error) {
	var all []model.Trade
	cursor := ""
	for {
		resp, err := c.GetTradesPage(ctx, opts, cursor)
		if err != nil {
			return nil, err
		}
		for i := range resp.Trades {
			trade, err := resp.Trades[i].ToModel()
			if err != nil {
				return nil, err
			}
			all = append(all, trade)
		}
		if resp.Cursor == "" {
			return all, nil
		}
		cursor = resp.Cursor
	}
}

// GetFills fetches all of our fills, optionally restricted to one
// market.
func (c *Client) GetFills(ctx context.Context, ticker model.MarketTicker) ([]model.Fill, error) {
	var all []model.Fill
	cursor := ""
	for {
		query := url.Values{}
		if ticker != "" {
			query.Set("ticker", string(ticker))
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp FillsResponse
		if err := c.get(ctx, "/portfolio/fills", query, &resp); err != nil {
			return nil, fmt.Errorf("get fills: %w", err)
		}
		for i := range resp.Fills {
			fill, err := resp.Fills[i].ToModel()
			if err != nil {
				return nil, err
			}
			all = append(all, fill)
		}
		if resp.Cursor == "" {
			return all, nil
		}
		cursor = resp.Cursor
	}
}
