package api

import (
	"context"
	"fmt"

	"github.com/zcole/kalshi-core/internal/model"
)

// GetSeries fetches a series by ticker.
func (c *Client) GetSeries(ctx context.Context, ticker model.SeriesTicker) (*model.Series, error) {
	var resp SeriesResponse
	if err := c.get(ctx, "/series/"+string(ticker), nil, &resp); err != nil {
		return nil, fmt.Errorf("get series %s: %w", ticker, err)
	}
	s := resp.Series.ToModel()
	return &s, nil
}
