package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/zcole/kalshi-core/internal/model"
)

// GetBalance fetches our available balance in cents.
func (c *Client) GetBalance(ctx context.Context) (model.Cents, error) {
	var resp BalanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return model.Cents(resp.Balance), nil
}

// GetPositions fetches all of our market positions, following the
// cursor.
func (c *Client) GetPositions(ctx context.Context) ([]APIMarketPosition, error) {
	var all []APIMarketPosition
	cursor := ""
	for {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp PositionsResponse
		if err := c.get(ctx, "/portfolio/positions", query, &resp); err != nil {
			return nil, fmt.Errorf("get positions: %w", err)
		}
		all = append(all, resp.MarketPositions...)
		if resp.Cursor == "" {
			return all, nil
		}
		cursor = resp.Cursor
	}
}
