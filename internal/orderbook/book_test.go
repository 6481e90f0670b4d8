package orderbook

import (
	"errors"
	"testing"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

func snapshotFixture() Snapshot {
	return Snapshot{
		Ticker: "CPICORE-23JUL-TN0.1",
		Yes: []Level{
			{Price: 40, Quantity: 100},
			{Price: 42, Quantity: 50},
		},
		No: []Level{
			{Price: 55, Quantity: 200},
			{Price: 56, Quantity: 10},
		},
		TS:  time.Date(2023, 7, 12, 14, 0, 0, 0, time.UTC),
		Seq: 1,
	}
}

func TestFromSnapshot(t *testing.T) {
	b := FromSnapshot(snapshotFixture())

	if len(b.Yes) != 2 || len(b.No) != 2 {
		t.Fatalf("levels = %d yes, %d no, want 2/2", len(b.Yes), len(b.No))
	}
	if b.Yes[40] != 100 {
		t.Errorf("Yes[40] = %d, want 100", b.Yes[40])
	}
	if b.Seq != 1 {
		t.Errorf("Seq = %d, want 1", b.Seq)
	}
}

func TestFromSnapshotDropsZeroLevels(t *testing.T) {
	s := snapshotFixture()
	s.Yes = append(s.Yes, Level{Price: 10, Quantity: 0})
	b := FromSnapshot(s)
	if _, ok := b.Yes[10]; ok {
		t.Error("zero-quantity level should be dropped")
	}
}

func TestApplyDelta(t *testing.T) {
	b := FromSnapshot(snapshotFixture())

	d := Delta{
		Ticker: b.Ticker,
		Side:   model.Yes,
		Price:  40,
		Change: -60,
		TS:     time.Date(2023, 7, 12, 14, 0, 1, 0, time.UTC),
		Seq:    2,
	}
	if err := b.ApplyDelta(d); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if b.Yes[40] != 40 {
		t.Errorf("Yes[40] = %d, want 40", b.Yes[40])
	}
	if b.Seq != 2 {
		t.Errorf("Seq = %d, want 2", b.Seq)
	}

	// Remove the level entirely.
	d.Change = -40
	d.Seq = 3
	if err := b.ApplyDelta(d); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if _, ok := b.Yes[40]; ok {
		t.Error("level 40 should be removed at zero quantity")
	}
}

func TestApplyDeltaNegativeQuantity(t *testing.T) {
	b := FromSnapshot(snapshotFixture())
	d := Delta{Ticker: b.Ticker, Side: model.Yes, Price: 42, Change: -51}
	if err := b.ApplyDelta(d); err == nil {
		t.Error("expected error for negative resulting quantity")
	}
}

func TestApplyDeltaWrongTicker(t *testing.T) {
	b := FromSnapshot(snapshotFixture())
	d := Delta{Ticker: "OTHER-MKT-X", Side: model.Yes, Price: 42, Change: 1}
	if err := b.ApplyDelta(d); err == nil {
		t.Error("expected error for mismatched ticker")
	}
}

func TestBestBidAsk(t *testing.T) {
	b := FromSnapshot(snapshotFixture())

	bid, err := b.BestBid(model.Yes)
	if err != nil {
		t.Fatalf("BestBid() error = %v", err)
	}
	if bid.Price != 42 || bid.Quantity != 50 {
		t.Errorf("BestBid(yes) = %+v, want {42 50}", bid)
	}

	// Best NO bid is 56, so YES ask is 44.
	ask, err := b.BestAsk(model.Yes)
	if err != nil {
		t.Fatalf("BestAsk() error = %v", err)
	}
	if ask.Price != 44 || ask.Quantity != 10 {
		t.Errorf("BestAsk(yes) = %+v, want {44 10}", ask)
	}
}

func TestBestBidEmptySide(t *testing.T) {
	b := FromSnapshot(Snapshot{Ticker: "A-B-C"})
	_, err := b.BestBid(model.Yes)
	if !errors.Is(err, ErrEmptySide) {
		t.Errorf("error = %v, want ErrEmptySide", err)
	}
}

func TestTopOfBookAndSpread(t *testing.T) {
	b := FromSnapshot(snapshotFixture())
	bbo := b.TopOfBook()

	if !bbo.HasBid || !bbo.HasAsk {
		t.Fatalf("bbo = %+v, want both sides", bbo)
	}
	spread, ok := bbo.Spread()
	if !ok || spread != 2 {
		t.Errorf("Spread() = %d, %v, want 2, true", spread, ok)
	}
}

func TestToSnapshotRoundTrip(t *testing.T) {
	b := FromSnapshot(snapshotFixture())
	b2 := FromSnapshot(b.ToSnapshot())

	if len(b2.Yes) != len(b.Yes) || len(b2.No) != len(b.No) {
		t.Fatal("round-tripped book has different level counts")
	}
	for p, q := range b.Yes {
		if b2.Yes[p] != q {
			t.Errorf("Yes[%d] = %d, want %d", p, b2.Yes[p], q)
		}
	}
}

func TestTrackerApply(t *testing.T) {
	tr := NewTracker()
	s := snapshotFixture()

	if _, err := tr.Apply(Message{Snapshot: &s}); err != nil {
		t.Fatalf("Apply(snapshot) error = %v", err)
	}

	d := Delta{Ticker: s.Ticker, Side: model.No, Price: 55, Change: 25, Seq: 2}
	b, err := tr.Apply(Message{Delta: &d})
	if err != nil {
		t.Fatalf("Apply(delta) error = %v", err)
	}
	if b.No[55] != 225 {
		t.Errorf("No[55] = %d, want 225", b.No[55])
	}
}

func TestTrackerDeltaBeforeSnapshot(t *testing.T) {
	tr := NewTracker()
	d := Delta{Ticker: "A-B-C", Side: model.Yes, Price: 50, Change: 1}
	if _, err := tr.Apply(Message{Delta: &d}); err == nil {
		t.Error("expected error for delta before snapshot")
	}
}
