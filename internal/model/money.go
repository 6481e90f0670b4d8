package model

import "fmt"

// Price is a contract price in cents. Valid prices are 1-99 inclusive:
// a binary contract settles at either 0 or 100 cents, so no resting
// order can exist at the boundaries.
type Price int

// NewPrice validates and returns a Price.
func NewPrice(cents int) (Price, error) {
	if cents < 1 || cents > 99 {
		return 0, fmt.Errorf("%d: invalid price", cents)
	}
	return Price(cents), nil
}

// Opposite returns the price of the same level seen from the other side
// of the book.
func (p Price) Opposite() Price {
	return Price(100 - p)
}

// Valid reports whether the price is in the tradeable range.
func (p Price) Valid() bool {
	return p >= 1 && p <= 99
}

// Cents is a money total in cents. Unlike Price it may be negative
// (realized losses) and is not bounded.
type Cents int64

// Quantity is a contract count.
type Quantity int

// NewQuantity validates and returns a Quantity.
func NewQuantity(n int) (Quantity, error) {
	if n < 0 {
		return 0, fmt.Errorf("%d: invalid quantity", n)
	}
	return Quantity(n), nil
}
