package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/zcole/kalshi-core/internal/model"
)

// GetEvents fetches a page of events.
func (c *Client) GetEvents(ctx context.Context, opts GetEventsOptions) (*EventsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.SeriesTicker != "" {
		query.Set("series_ticker", opts.SeriesTicker)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp EventsResponse
	if err := c.get(ctx, "/events", query, &resp); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}

	return &resp, nil
}

// GetAllEvents fetches all events by paginating through results.
func (c *Client) GetAllEvents(ctx context.Context, opts GetEventsOptions) ([]APIEvent, error) {
	var all []APIEvent
	opts.Limit = 1000

	for {
		resp, err := c.GetEvents(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Events...)

		if resp.Cursor == "" {
			return all, nil
		}
		opts.Cursor = resp.Cursor
	}
}

// GetEvent fetches a single event by ticker.
func (c *Client) GetEvent(ctx context.Context, ticker model.EventTicker) (*APIEvent, error) {
	var resp SingleEventResponse
	if err := c.get(ctx, "/events/"+string(ticker), nil, &resp); err != nil {
		return nil, fmt.Errorf("get event %s: %w", ticker, err)
	}
	return &resp.Event, nil
}
