package model

import "fmt"

// Side is the side of a binary market.
type Side string

const (
	Yes Side = "yes"
	No  Side = "no"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Yes {
		return No
	}
	return Yes
}

// ParseSide validates a wire-format side string.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Yes, No:
		return Side(s), nil
	}
	return "", fmt.Errorf("%q: invalid side", s)
}

// TradeAction distinguishes opening buys from closing sells.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)
