package ws

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Channels we subscribe to.
const (
	ChannelOrderbookDelta = "orderbook_delta"
	ChannelFill           = "fill"
)

// Command is a websocket command to send to the exchange.
type Command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// UnsubscribeParams are parameters for an unsubscribe command.
type UnsubscribeParams struct {
	SIDs []int64 `json:"sids"`
}

// Actions for update_subscription.
const (
	ActionAddMarkets    = "add_markets"
	ActionDeleteMarkets = "delete_markets"
)

// UpdateSubscriptionParams are parameters for changing the market set
// of a live subscription.
type UpdateSubscriptionParams struct {
	SIDs          []int64  `json:"sids"`
	Action        string   `json:"action"`
	MarketTickers []string `json:"market_tickers"`
}

// serverMessage is any frame from the exchange: command responses
// carry an id, data messages carry sid and seq.
type serverMessage struct {
	ID   int64           `json:"id,omitempty"`
	Type string          `json:"type"`
	SID  int64           `json:"sid,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Msg  json.RawMessage `json:"msg"`
}

// Server frame types.
const (
	TypeSubscribed          = "subscribed"
	TypeUnsubscribed        = "unsubscribed"
	TypeSubscriptionUpdated = "subscription_updated"
	TypeError               = "error"
	TypeOrderbookSnapshot   = "orderbook_snapshot"
	TypeOrderbookDelta      = "orderbook_delta"
	TypeFill                = "fill"
)

// isResponse reports whether the frame answers a command we sent.
func (m *serverMessage) isResponse() bool {
	switch m.Type {
	case TypeSubscribed, TypeUnsubscribed, TypeSubscriptionUpdated, TypeError:
		return m.ID != 0
	}
	return false
}

// hasSeq reports whether the frame participates in the per-SID
// sequence.
func (m *serverMessage) hasSeq() bool {
	switch m.Type {
	case TypeOrderbookSnapshot, TypeOrderbookDelta:
		return true
	}
	return false
}

// subscribedMsg is the body of a "subscribed" response.
type subscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// errorMsg is the body of an "error" response.
type errorMsg struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// orderbookSnapshotMsg is the body of an orderbook_snapshot frame.
// Levels are [price_cents, quantity] pairs.
type orderbookSnapshotMsg struct {
	MarketTicker string  `json:"market_ticker"`
	Yes          [][]int `json:"yes"`
	No           [][]int `json:"no"`
}

// orderbookDeltaMsg is the body of an orderbook_delta frame.
type orderbookDeltaMsg struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	Delta        int    `json:"delta"`
	Side         string `json:"side"`
}

// fillMsg is the body of a fill frame.
type fillMsg struct {
	FillID       string `json:"fill_id"`
	OrderID      string `json:"order_id"`
	TradeID      string `json:"trade_id"`
	MarketTicker string `json:"market_ticker"`
	Side         string `json:"side"`
	Action       string `json:"action"`
	YesPrice     int    `json:"yes_price"`
	NoPrice      int    `json:"no_price"`
	Count        int    `json:"count"`
	IsTaker      bool   `json:"is_taker"`
	TS           int64  `json:"ts"`
}

// ClientConfig configures a websocket client.
type ClientConfig struct {
	URL string
	// Authorization is the session header value; empty means no auth.
	Authorization string
	PingTimeout   time.Duration // max time without ping before the connection is stale
	WriteTimeout  time.Duration // write deadline for sends
	BufferSize    int           // message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}
