package api

import "time"

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets []APIMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// APIMarket represents a market on the wire.
type APIMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Result      string `json:"result"`

	// Prices in cents
	YesBid    int `json:"yes_bid"`
	YesAsk    int `json:"yes_ask"`
	NoBid     int `json:"no_bid"`
	NoAsk     int `json:"no_ask"`
	LastPrice int `json:"last_price"`

	Liquidity    int64 `json:"liquidity"`
	Volume       int64 `json:"volume"`
	Volume24h    int64 `json:"volume_24h"`
	OpenInterest int64 `json:"open_interest"`

	// Timestamps (ISO 8601)
	OpenTime       string `json:"open_time"`
	CloseTime      string `json:"close_time"`
	ExpirationTime string `json:"expiration_time"`

	StrikeType  string   `json:"strike_type,omitempty"`
	FloorStrike *float64 `json:"floor_strike,omitempty"`
	CapStrike   *float64 `json:"cap_strike,omitempty"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// EventsResponse from GET /events
type EventsResponse struct {
	Events []APIEvent `json:"events"`
	Cursor string     `json:"cursor"`
}

// APIEvent represents an event on the wire.
type APIEvent struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Category     string `json:"category"`
}

// SingleEventResponse from GET /events/{event_ticker}
type SingleEventResponse struct {
	Event APIEvent `json:"event"`
}

// SeriesResponse from GET /series/{series_ticker}
type SeriesResponse struct {
	Series APISeries `json:"series"`
}

// APISeries represents a series on the wire.
type APISeries struct {
	Ticker    string   `json:"ticker"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Frequency string   `json:"frequency"`
	Tags      []string `json:"tags"`
}

// OrderbookResponse from GET /markets/{ticker}/orderbook
type OrderbookResponse struct {
	Orderbook APIOrderbook `json:"orderbook"`
}

// APIOrderbook holds levels as [price_cents, quantity] pairs.
type APIOrderbook struct {
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

// TradesResponse from GET /markets/trades
type TradesResponse struct {
	Trades []APITrade `json:"trades"`
	Cursor string     `json:"cursor"`
}

// APITrade represents a public trade on the wire.
type APITrade struct {
	TradeID     string    `json:"trade_id"`
	Ticker      string    `json:"ticker"`
	TakerSide   string    `json:"taker_side"`
	YesPrice    int       `json:"yes_price"`
	NoPrice     int       `json:"no_price"`
	Count       int       `json:"count"`
	CreatedTime time.Time `json:"created_time"`
}

// CandlesticksResponse from GET /series/{series}/markets/{ticker}/candlesticks
type CandlesticksResponse struct {
	Candlesticks []APICandlestick `json:"candlesticks"`
}

// APICandlestick is one OHLC bar of a market's price history.
type APICandlestick struct {
	EndPeriodTS  int64     `json:"end_period_ts"`
	OpenInterest int64     `json:"open_interest"`
	Volume       int64     `json:"volume"`
	Price        APICandle `json:"price"`
	YesBid       APICandle `json:"yes_bid"`
	YesAsk       APICandle `json:"yes_ask"`
}

// APICandle holds OHLC prices in cents; zero when the period had no
// activity.
type APICandle struct {
	Open  int `json:"open"`
	High  int `json:"high"`
	Low   int `json:"low"`
	Close int `json:"close"`
}

// Order statuses reported by the exchange.
const (
	OrderStatusResting  = "resting"
	OrderStatusCanceled = "canceled"
	OrderStatusExecuted = "executed"
	OrderStatusPending  = "pending"
)

// APIOrder represents an order on the wire, in requests and
// responses.
type APIOrder struct {
	OrderID       string `json:"order_id,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Ticker        string `json:"ticker"`
	Status        string `json:"status,omitempty"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
	Count         int    `json:"count"`
	ExpirationTS  *int64 `json:"expiration_ts,omitempty"`
}

// CreateOrderResponse from POST /portfolio/orders
type CreateOrderResponse struct {
	Order APIOrder `json:"order"`
}

// BatchCreateOrdersRequest for POST /portfolio/orders/batched
type BatchCreateOrdersRequest struct {
	Orders []APIOrder `json:"orders"`
}

// BatchCreateOrdersResponse from POST /portfolio/orders/batched
type BatchCreateOrdersResponse struct {
	Orders []CreateOrderResponse `json:"orders"`
}

// CancelOrderResponse from DELETE /portfolio/orders/{order_id}
type CancelOrderResponse struct {
	Order APIOrder `json:"order"`
}

// OrdersResponse from GET /portfolio/orders
type OrdersResponse struct {
	Orders []APIOrder `json:"orders"`
	Cursor string     `json:"cursor"`
}

// FillsResponse from GET /portfolio/fills
type FillsResponse struct {
	Fills  []APIFill `json:"fills"`
	Cursor string    `json:"cursor"`
}

// APIFill represents one of our fills on the wire.
type APIFill struct {
	FillID      string    `json:"fill_id"`
	OrderID     string    `json:"order_id"`
	TradeID     string    `json:"trade_id"`
	Ticker      string    `json:"ticker"`
	Side        string    `json:"side"`
	Action      string    `json:"action"`
	YesPrice    int       `json:"yes_price"`
	NoPrice     int       `json:"no_price"`
	Count       int       `json:"count"`
	IsTaker     bool      `json:"is_taker"`
	CreatedTime time.Time `json:"created_time"`
}

// BalanceResponse from GET /portfolio/balance
type BalanceResponse struct {
	Balance int64 `json:"balance"`
	Payout  int64 `json:"payout"`
}

// PositionsResponse from GET /portfolio/positions
type PositionsResponse struct {
	MarketPositions []APIMarketPosition `json:"market_positions"`
	Cursor          string              `json:"cursor"`
}

// APIMarketPosition is our net position in one market.
type APIMarketPosition struct {
	Ticker        string `json:"ticker"`
	Position      int    `json:"position"`
	TotalTraded   int64  `json:"total_traded"`
	RestingOrders int    `json:"resting_orders_count"`
	FeesPaid      int64  `json:"fees_paid"`
	RealizedPnL   int64  `json:"realized_pnl"`
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	Limit        int
	Cursor       string
	EventTicker  string
	SeriesTicker string
	Tickers      []string
	Status       string
}

// GetTradesOptions configures a GetTrades request.
type GetTradesOptions struct {
	Ticker string
	MinTS  time.Time
	MaxTS  time.Time
	// Limit is the page size, max 100. Zero uses the server default.
	Limit int
}

// GetOrdersOptions configures a GetOrders request.
type GetOrdersOptions struct {
	Ticker string
	Status string
	Cursor string
	Limit  int
}

// GetEventsOptions configures a GetEvents request.
type GetEventsOptions struct {
	Limit        int
	Cursor       string
	SeriesTicker string
	Status       string
}
