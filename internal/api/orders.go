package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zcole/kalshi-core/internal/model"
)

// maxBatchOrders is the exchange limit per batched request.
const maxBatchOrders = 20

// Order is an order we want to place.
type Order struct {
	Ticker     model.MarketTicker
	Side       model.Side
	Action     model.TradeAction
	Price      model.Price
	Count      model.Quantity
	Expiration *time.Time
}

// toAPI builds the wire request with a fresh client order id.
func (o Order) toAPI() APIOrder {
	req := APIOrder{
		ClientOrderID: uuid.NewString(),
		Ticker:        string(o.Ticker),
		Side:          string(o.Side),
		Action:        string(o.Action),
		Type:          "limit",
		Count:         int(o.Count),
	}
	if o.Side == model.Yes {
		req.YesPrice = int(o.Price)
	} else {
		req.NoPrice = int(o.Price)
	}
	if o.Expiration != nil {
		ts := o.Expiration.Unix()
		req.ExpirationTS = &ts
	}
	return req
}

// orderAccepted reports whether the exchange took the order.
func orderAccepted(status string) bool {
	return status == OrderStatusExecuted || status == OrderStatusResting
}

// CreateOrder places an order. It returns the order id when the order
// executed or is resting on the book, or "" when the exchange
// rejected it.
func (c *Client) CreateOrder(ctx context.Context, order Order) (string, error) {
	var resp CreateOrderResponse
	if err := c.post(ctx, "/portfolio/orders", order.toAPI(), &resp); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if !orderAccepted(resp.Order.Status) {
		c.logger.Warn("order not accepted",
			"ticker", order.Ticker,
			"status", resp.Order.Status,
		)
		return "", nil
	}
	return resp.Order.OrderID, nil
}

// BatchCreateOrders places up to 20 orders in one request. The result
// has one entry per input order: the order id when accepted, ""
// otherwise.
func (c *Client) BatchCreateOrders(ctx context.Context, orders []Order) ([]string, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > maxBatchOrders {
		return nil, fmt.Errorf("batch of %d orders exceeds the limit of %d", len(orders), maxBatchOrders)
	}

	req := BatchCreateOrdersRequest{Orders: make([]APIOrder, 0, len(orders))}
	for _, o := range orders {
		req.Orders = append(req.Orders, o.toAPI())
	}

	var resp BatchCreateOrdersResponse
	if err := c.post(ctx, "/portfolio/orders/batched", req, &resp); err != nil {
		return nil, fmt.Errorf("batch create orders: %w", err)
	}

	ids := make([]string, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		if orderAccepted(o.Order.Status) {
			ids = append(ids, o.Order.OrderID)
		} else {
			ids = append(ids, "")
		}
	}
	return ids, nil
}

// CancelOrder cancels a resting order and returns its final state.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*APIOrder, error) {
	var resp CancelOrderResponse
	if err := c.del(ctx, "/portfolio/orders/"+orderID, &resp); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return &resp.Order, nil
}

// GetOrders fetches all of our orders matching the options. Filtering
// by pending is rejected: pending is a transient state the exchange
// does not index.
func (c *Client) GetOrders(ctx context.Context, opts GetOrdersOptions) ([]APIOrder, error) {
	if opts.Status == OrderStatusPending {
		return nil, fmt.Errorf("cannot filter orders by pending status")
	}

	var all []APIOrder
	for {
		query := url.Values{}
		if opts.Ticker != "" {
			query.Set("ticker", opts.Ticker)
		}
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Cursor != "" {
			query.Set("cursor", opts.Cursor)
		}

		var resp OrdersResponse
		if err := c.get(ctx, "/portfolio/orders", query, &resp); err != nil {
			return nil, fmt.Errorf("get orders: %w", err)
		}
		all = append(all, resp.Orders...)
		if resp.Cursor == "" {
			return all, nil
		}
		opts.Cursor = resp.Cursor
	}
}
