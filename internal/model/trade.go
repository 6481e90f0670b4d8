package model

import (
	"time"

	"github.com/google/uuid"
)

// Trade is a public trade that executed on the exchange.
type Trade struct {
	Ticker      MarketTicker
	TradeID     string
	TakerSide   Side
	YesPrice    Price
	NoPrice     Price
	Count       Quantity
	CreatedTime time.Time
}

// Price returns the execution price for the given side.
func (t Trade) Price(side Side) Price {
	if side == Yes {
		return t.YesPrice
	}
	return t.NoPrice
}

// Fill is an execution against one of our own orders.
type Fill struct {
	Ticker      MarketTicker
	FillID      uuid.UUID
	OrderID     uuid.UUID
	Side        Side
	Action      TradeAction
	YesPrice    Price
	NoPrice     Price
	Count       Quantity
	IsTaker     bool
	CreatedTime time.Time
}

// Price returns the fill price on the side the fill was for.
func (f Fill) Price() Price {
	if f.Side == Yes {
		return f.YesPrice
	}
	return f.NoPrice
}
