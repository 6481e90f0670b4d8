package model

import "time"

// MarketStatus is the lifecycle status of a market on the exchange.
type MarketStatus string

const (
	StatusInitialized MarketStatus = "initialized"
	StatusOpen        MarketStatus = "open"
	StatusActive      MarketStatus = "active"
	StatusClosed      MarketStatus = "closed"
	StatusDetermined  MarketStatus = "determined"
	StatusSettled     MarketStatus = "settled"
	StatusFinalized   MarketStatus = "finalized"
)

// IsOpen reports whether the market accepts orders.
func (s MarketStatus) IsOpen() bool {
	return s == StatusOpen || s == StatusActive
}

// MarketResult is the settlement outcome of a market.
type MarketResult string

const (
	ResultYes           MarketResult = "yes"
	ResultNo            MarketResult = "no"
	ResultNotDetermined MarketResult = ""
)

// Market is a tradeable binary market on the exchange.
type Market struct {
	Ticker    MarketTicker `json:"ticker"`
	Status    MarketStatus `json:"status"`
	Result    MarketResult `json:"result"`
	Liquidity int64        `json:"liquidity"`
	CloseTime time.Time    `json:"close_time"`

	// LastPrice is the last traded YES price. Zero when the market has
	// never traded.
	LastPrice Price `json:"last_price"`

	// Strike fields describe the market boundary for scalar-derived
	// markets. Nil when not applicable.
	StrikeType  string   `json:"strike_type,omitempty"`
	FloorStrike *float64 `json:"floor_strike,omitempty"`
	CapStrike   *float64 `json:"cap_strike,omitempty"`
}

// MarketHistory is one point of the market candlestick history.
type MarketHistory struct {
	EndPeriodTS  time.Time
	OpenInterest int64
	Volume       int64
	Price        Candle
	YesBid       Candle
	YesAsk       Candle
}

// Candle is an OHLC bar in cents. Fields are zero when the period had
// no activity.
type Candle struct {
	Open  Price
	High  Price
	Low   Price
	Close Price
}

// Series groups related events, e.g. all monthly CPI releases.
type Series struct {
	Ticker    SeriesTicker
	Frequency string
}
