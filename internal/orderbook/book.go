// Package orderbook maintains per-market book state from snapshot and
// delta messages.
package orderbook

import (
	"errors"
	"fmt"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

// ErrEmptySide is returned when a best-level query hits a side with no
// resting orders.
var ErrEmptySide = errors.New("orderbook side is empty")

// Level is one price level of a book side.
type Level struct {
	Price    model.Price
	Quantity model.Quantity
}

// Snapshot is a full book state for one market. Both sides list resting
// bids: a YES bid at price p implies a NO ask at 100-p.
type Snapshot struct {
	Ticker model.MarketTicker
	Yes    []Level
	No     []Level
	TS     time.Time
	Seq    int64
}

// Delta is a change to the resting quantity at one price level.
type Delta struct {
	Ticker model.MarketTicker
	Side   model.Side
	Price  model.Price
	Change int // contracts added (positive) or removed (negative)
	TS     time.Time
	Seq    int64
}

// SideLevels maps price to resting quantity for one side of a book.
type SideLevels map[model.Price]model.Quantity

// Best returns the highest-priced level on this side.
func (l SideLevels) Best() (Level, error) {
	if len(l) == 0 {
		return Level{}, ErrEmptySide
	}
	var best Level
	for p, q := range l {
		if p > best.Price {
			best = Level{Price: p, Quantity: q}
		}
	}
	return best, nil
}

// Worst returns the lowest-priced level on this side.
func (l SideLevels) Worst() (Level, error) {
	if len(l) == 0 {
		return Level{}, ErrEmptySide
	}
	best := Level{Price: 100}
	for p, q := range l {
		if p < best.Price {
			best = Level{Price: p, Quantity: q}
		}
	}
	return best, nil
}

// TotalQuantity sums resting contracts across all levels.
func (l SideLevels) TotalQuantity() model.Quantity {
	var total model.Quantity
	for _, q := range l {
		total += q
	}
	return total
}

// Book is the current state of one market's orderbook. A Book is built
// from a snapshot and advanced by deltas; deltas arriving without a
// prior snapshot are a protocol error handled by the caller.
type Book struct {
	Ticker model.MarketTicker
	Yes    SideLevels
	No     SideLevels
	TS     time.Time
	Seq    int64
}

// FromSnapshot builds a Book from a full snapshot. Levels with zero
// quantity are dropped.
func FromSnapshot(s Snapshot) *Book {
	b := &Book{
		Ticker: s.Ticker,
		Yes:    make(SideLevels, len(s.Yes)),
		No:     make(SideLevels, len(s.No)),
		TS:     s.TS,
		Seq:    s.Seq,
	}
	for _, lvl := range s.Yes {
		if lvl.Quantity > 0 {
			b.Yes[lvl.Price] = lvl.Quantity
		}
	}
	for _, lvl := range s.No {
		if lvl.Quantity > 0 {
			b.No[lvl.Price] = lvl.Quantity
		}
	}
	return b
}

// Side returns the levels for the given side.
func (b *Book) Side(s model.Side) SideLevels {
	if s == model.Yes {
		return b.Yes
	}
	return b.No
}

// ApplyDelta mutates the book with a level change. A level whose
// quantity reaches zero is removed; a negative resulting quantity means
// the stream is corrupt and is rejected.
func (b *Book) ApplyDelta(d Delta) error {
	if d.Ticker != b.Ticker {
		return fmt.Errorf("delta for %s applied to book %s", d.Ticker, b.Ticker)
	}

	side := b.Side(d.Side)
	q := int(side[d.Price]) + d.Change
	switch {
	case q < 0:
		return fmt.Errorf("level %s %d: quantity would go negative (%d)", d.Side, d.Price, q)
	case q == 0:
		delete(side, d.Price)
	default:
		side[d.Price] = model.Quantity(q)
	}

	b.TS = d.TS
	b.Seq = d.Seq
	return nil
}

// BestBid returns the best resting bid on the given side.
func (b *Book) BestBid(s model.Side) (Level, error) {
	return b.Side(s).Best()
}

// BestAsk returns the best ask for the given side, derived from the
// opposite side's best bid: a NO bid at p offers YES at 100-p.
func (b *Book) BestAsk(s model.Side) (Level, error) {
	opp, err := b.Side(s.Other()).Best()
	if err != nil {
		return Level{}, err
	}
	return Level{Price: opp.Price.Opposite(), Quantity: opp.Quantity}, nil
}

// BBO is the top of book from the YES perspective.
type BBO struct {
	Bid    Level
	Ask    Level
	HasBid bool
	HasAsk bool
}

// TopOfBook returns the YES best bid/offer. Either side may be absent.
func (b *Book) TopOfBook() BBO {
	var bbo BBO
	if bid, err := b.BestBid(model.Yes); err == nil {
		bbo.Bid = bid
		bbo.HasBid = true
	}
	if ask, err := b.BestAsk(model.Yes); err == nil {
		bbo.Ask = ask
		bbo.HasAsk = true
	}
	return bbo
}

// Spread returns ask minus bid in cents. Valid only when both sides
// exist.
func (bbo BBO) Spread() (model.Price, bool) {
	if !bbo.HasBid || !bbo.HasAsk {
		return 0, false
	}
	return bbo.Ask.Price - bbo.Bid.Price, true
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() *Book {
	c := &Book{
		Ticker: b.Ticker,
		Yes:    make(SideLevels, len(b.Yes)),
		No:     make(SideLevels, len(b.No)),
		TS:     b.TS,
		Seq:    b.Seq,
	}
	for p, q := range b.Yes {
		c.Yes[p] = q
	}
	for p, q := range b.No {
		c.No[p] = q
	}
	return c
}

// ToSnapshot flattens the current state into a snapshot message. Used
// when cutting a new storage chunk.
func (b *Book) ToSnapshot() Snapshot {
	s := Snapshot{
		Ticker: b.Ticker,
		Yes:    make([]Level, 0, len(b.Yes)),
		No:     make([]Level, 0, len(b.No)),
		TS:     b.TS,
		Seq:    b.Seq,
	}
	for p, q := range b.Yes {
		s.Yes = append(s.Yes, Level{Price: p, Quantity: q})
	}
	for p, q := range b.No {
		s.No = append(s.No, Level{Price: p, Quantity: q})
	}
	return s
}
