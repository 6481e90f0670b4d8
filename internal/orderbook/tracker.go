package orderbook

import (
	"fmt"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

// Message is either a snapshot or a delta. Exactly one field is set.
type Message struct {
	Snapshot *Snapshot
	Delta    *Delta
}

// IsSnapshot reports whether the message carries a snapshot.
func (m Message) IsSnapshot() bool { return m.Snapshot != nil }

// MarketTicker returns the ticker of whichever message is set.
func (m Message) MarketTicker() model.MarketTicker {
	if m.Snapshot != nil {
		return m.Snapshot.Ticker
	}
	return m.Delta.Ticker
}

// Time returns the timestamp of whichever message is set.
func (m Message) Time() time.Time {
	if m.Snapshot != nil {
		return m.Snapshot.TS
	}
	return m.Delta.TS
}

// Tracker replays a message stream into per-market books. It is the
// sequential consumer behind both live subscriptions and historical
// reads; it is not safe for concurrent use.
type Tracker struct {
	books map[model.MarketTicker]*Book
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{books: make(map[model.MarketTicker]*Book)}
}

// Apply advances the tracker with one message and returns the updated
// book. A delta for a market with no prior snapshot is rejected.
func (t *Tracker) Apply(m Message) (*Book, error) {
	if m.Snapshot != nil {
		b := FromSnapshot(*m.Snapshot)
		t.books[b.Ticker] = b
		return b, nil
	}

	b, ok := t.books[m.Delta.Ticker]
	if !ok {
		return nil, fmt.Errorf("delta for %s before any snapshot", m.Delta.Ticker)
	}
	if err := b.ApplyDelta(*m.Delta); err != nil {
		return nil, err
	}
	return b, nil
}

// Book returns the current book for a market, if one has been seen.
func (t *Tracker) Book(ticker model.MarketTicker) (*Book, bool) {
	b, ok := t.books[ticker]
	return b, ok
}

// Len returns the number of markets tracked.
func (t *Tracker) Len() int { return len(t.books) }
