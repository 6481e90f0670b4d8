package coledb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

var baseTime = time.Date(2023, 7, 12, 14, 0, 0, 0, time.UTC)

func testSnapshot(ticker model.MarketTicker, ts time.Time, seq int64) orderbook.Message {
	s := orderbook.Snapshot{
		Ticker: ticker,
		Yes:    []orderbook.Level{{Price: 40, Quantity: 100}},
		No:     []orderbook.Level{{Price: 55, Quantity: 200}},
		TS:     ts,
		Seq:    seq,
	}
	return orderbook.Message{Snapshot: &s}
}

func testDelta(ticker model.MarketTicker, ts time.Time, seq int64, change int) orderbook.Message {
	d := orderbook.Delta{
		Ticker: ticker,
		Side:   model.Yes,
		Price:  40,
		Change: change,
		TS:     ts,
		Seq:    seq,
	}
	return orderbook.Message{Delta: &d}
}

func TestTickerToDir(t *testing.T) {
	got := tickerToDir("storage", "SERIES-EVENT-MARKET")
	want := filepath.Join("storage", "SERIES", "EVENT", "MARKET")
	if got != want {
		t.Errorf("tickerToDir() = %q, want %q", got, want)
	}

	ticker, err := dirToTicker("storage", got)
	if err != nil {
		t.Fatalf("dirToTicker() error = %v", err)
	}
	if ticker != "SERIES-EVENT-MARKET" {
		t.Errorf("dirToTicker() = %q", ticker)
	}
}

func TestWriteRejectsInconsistentDelta(t *testing.T) {
	// A snapshot from a second source lags the live stream, so a delta
	// that was valid against the pre-snapshot book must fail loudly
	// instead of recording a replay that silently diverges. This is
	// why backup REST snapshots go to their own store partition.
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	const ticker = model.MarketTicker("S-E-M")

	live := orderbook.Snapshot{
		Ticker: ticker,
		Yes:    []orderbook.Level{{Price: 10, Quantity: 5}},
		TS:     baseTime,
		Seq:    1,
	}
	if err := db.Write(orderbook.Message{Snapshot: &live}); err != nil {
		t.Fatalf("Write(live snapshot) error = %v", err)
	}

	stale := orderbook.Snapshot{
		Ticker: ticker,
		Yes:    []orderbook.Level{{Price: 10, Quantity: 1}},
		TS:     baseTime.Add(time.Second),
	}
	if err := db.Write(orderbook.Message{Snapshot: &stale}); err != nil {
		t.Fatalf("Write(stale snapshot) error = %v", err)
	}

	d := orderbook.Delta{
		Ticker: ticker,
		Side:   model.Yes,
		Price:  10,
		Change: -3, // valid against the live book, not the stale one
		TS:     baseTime.Add(2 * time.Second),
		Seq:    2,
	}
	if err := db.Write(orderbook.Message{Delta: &d}); err == nil {
		t.Fatal("Write should reject a delta inconsistent with the last snapshot")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ticker := model.MarketTicker("CPICORE-23JUL-TN0.1")
	msgs := []orderbook.Message{
		testSnapshot(ticker, baseTime, 1),
		testDelta(ticker, baseTime.Add(time.Second), 2, -30),
		testDelta(ticker, baseTime.Add(2*time.Second), 3, 10),
	}
	for _, msg := range msgs {
		if err := db.Write(msg); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	cur, err := db.Read(ticker)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	defer cur.Close()

	var got []orderbook.Message
	for cur.Next() {
		got = append(got, cur.Message())
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error = %v", err)
	}

	if len(got) != len(msgs) {
		t.Fatalf("read %d messages, want %d", len(got), len(msgs))
	}
	if !got[0].IsSnapshot() {
		t.Error("first message should be a snapshot")
	}
	if got[0].Snapshot.Yes[0] != (orderbook.Level{Price: 40, Quantity: 100}) {
		t.Errorf("snapshot level = %+v", got[0].Snapshot.Yes[0])
	}
	if got[1].Delta.Change != -30 {
		t.Errorf("delta change = %d, want -30", got[1].Delta.Change)
	}
	if !got[2].Time().Equal(baseTime.Add(2 * time.Second)) {
		t.Errorf("timestamp = %v", got[2].Time())
	}
	if got[2].Delta.Seq != 3 {
		t.Errorf("seq = %d, want 3", got[2].Delta.Seq)
	}
}

func TestFirstMessageMustBeSnapshot(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	err = db.Write(testDelta("A-B-C", baseTime, 1, 5))
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
}

func TestChunkRotation(t *testing.T) {
	db, err := Open(t.TempDir(), WithChunkSize(10))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ticker := model.MarketTicker("SERIES-EVENT-MKT")
	if err := db.Write(testSnapshot(ticker, baseTime, 1)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// 24 deltas: chunk 0 fills at 10, chunk 1 starts with a synthetic
	// snapshot plus 9 deltas, chunk 2 the same, chunk 3 gets the rest.
	for i := 0; i < 24; i++ {
		msg := testDelta(ticker, baseTime.Add(time.Duration(i+1)*time.Second), int64(i+2), 1)
		if err := db.Write(msg); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}

	stats, err := db.MarketStats(ticker)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if stats.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", stats.Chunks)
	}

	// Replaying everything must produce the same final book as applying
	// the messages directly: 100 + 24 = 124 at price 40.
	cur, err := db.Read(ticker)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	defer cur.Close()

	tracker := orderbook.NewTracker()
	count := 0
	for cur.Next() {
		if _, err := tracker.Apply(cur.Message()); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		count++
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error = %v", err)
	}

	book, ok := tracker.Book(ticker)
	if !ok {
		t.Fatal("no book after replay")
	}
	if book.Yes[40] != 124 {
		t.Errorf("final quantity = %d, want 124", book.Yes[40])
	}
	// 25 real messages plus one synthetic snapshot per rotation.
	if count != 27 {
		t.Errorf("replayed %d messages, want 27", count)
	}
}

func TestStatsSurviveChunkSizeChange(t *testing.T) {
	dir := t.TempDir()
	ticker := model.MarketTicker("SERIES-EVENT-MKT")

	db, err := Open(dir, WithChunkSize(5))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Write(testSnapshot(ticker, baseTime, 1)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for i := 0; i < 11; i++ {
		msg := testDelta(ticker, baseTime.Add(time.Duration(i+1)*time.Second), int64(i+2), 1)
		if err := db.Write(msg); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// 12 messages at size 5: two full chunks (each rotation adds a
	// synthetic snapshot) plus 4 in the last, 14 stored in total. The
	// written size is recorded in the metadata, so reopening with a
	// different configured size must not change the arithmetic.
	db2, err := Open(dir, WithChunkSize(100))
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db2.Close()

	stats, err := db2.MarketStats(ticker)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if stats.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", stats.Chunks)
	}
	if stats.Messages != 14 {
		t.Errorf("Messages = %d, want 14", stats.Messages)
	}
}

func TestReadRangeSeeksToStart(t *testing.T) {
	db, err := Open(t.TempDir(), WithChunkSize(5))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ticker := model.MarketTicker("SERIES-EVENT-MKT")
	if err := db.Write(testSnapshot(ticker, baseTime, 1)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 19; i++ {
		msg := testDelta(ticker, baseTime.Add(time.Duration(i+1)*time.Second), int64(i+2), 1)
		if err := db.Write(msg); err != nil {
			t.Fatal(err)
		}
	}

	// Start mid-stream: first emitted message must be a snapshot
	// reflecting all deltas up to the start of its chunk.
	start := baseTime.Add(12 * time.Second)
	cur, err := db.ReadRange(ticker, start, time.Time{})
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	defer cur.Close()

	if !cur.Next() {
		t.Fatalf("no messages in range: %v", cur.Err())
	}
	first := cur.Message()
	if !first.IsSnapshot() {
		t.Fatal("first in-range message should be a snapshot")
	}
	book := orderbook.FromSnapshot(*first.Snapshot)
	if book.Yes[40] != 112 {
		t.Errorf("book at start = %d, want 112 (100 + 12 deltas)", book.Yes[40])
	}

	count := 0
	for cur.Next() {
		if cur.Message().Time().Before(start) {
			t.Errorf("message at %v before start %v", cur.Message().Time(), start)
		}
		count++
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error = %v", err)
	}
	// Deltas at +13s..+19s inclusive.
	if count != 7 {
		t.Errorf("in-range deltas = %d, want 7", count)
	}
}

func TestReadRangeEndBound(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ticker := model.MarketTicker("S-E-M")
	if err := db.Write(testSnapshot(ticker, baseTime, 1)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := db.Write(testDelta(ticker, baseTime.Add(time.Duration(i+1)*time.Second), int64(i+2), 1)); err != nil {
			t.Fatal(err)
		}
	}

	cur, err := db.ReadRange(ticker, time.Time{}, baseTime.Add(3*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()

	count := 0
	for cur.Next() {
		count++
	}
	// Snapshot + deltas at +1s..+3s.
	if count != 4 {
		t.Errorf("messages = %d, want 4", count)
	}
}

func TestReadUnknownTicker(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = db.Read("NO-SUCH-TICKER")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestReopenAppendsToLastChunk(t *testing.T) {
	dir := t.TempDir()
	ticker := model.MarketTicker("S-E-M")

	db, err := Open(dir, WithChunkSize(100))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Write(testSnapshot(ticker, baseTime, 1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Write(testDelta(ticker, baseTime.Add(time.Second), 2, 5)); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db2, err := Open(dir, WithChunkSize(100))
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	if err := db2.Write(testDelta(ticker, baseTime.Add(2*time.Second), 3, 7)); err != nil {
		t.Fatalf("Write() after reopen error = %v", err)
	}

	stats, err := db2.MarketStats(ticker)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Messages != 3 {
		t.Errorf("Messages = %d, want 3", stats.Messages)
	}
	if stats.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", stats.Chunks)
	}
}

func TestReadMultiMergesByTime(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	a := model.MarketTicker("S-E-A")
	b := model.MarketTicker("S-E-B")

	// Interleaved timestamps across the two markets.
	if err := db.Write(testSnapshot(a, baseTime, 1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Write(testSnapshot(b, baseTime.Add(500*time.Millisecond), 1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Write(testDelta(a, baseTime.Add(time.Second), 2, 1)); err != nil {
		t.Fatal(err)
	}
	if err := db.Write(testDelta(b, baseTime.Add(1500*time.Millisecond), 2, 1)); err != nil {
		t.Fatal(err)
	}

	mc, err := db.ReadMulti([]model.MarketTicker{a, b, "S-E-MISSING"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadMulti() error = %v", err)
	}
	defer mc.Close()

	var times []time.Time
	var tickers []model.MarketTicker
	for mc.Next() {
		times = append(times, mc.Message().Time())
		tickers = append(tickers, mc.Message().MarketTicker())
	}
	if err := mc.Err(); err != nil {
		t.Fatalf("multi cursor error = %v", err)
	}

	if len(times) != 4 {
		t.Fatalf("merged %d messages, want 4", len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			t.Errorf("messages out of order at %d: %v < %v", i, times[i], times[i-1])
		}
	}
	wantTickers := []model.MarketTicker{a, b, a, b}
	for i, want := range wantTickers {
		if tickers[i] != want {
			t.Errorf("tickers[%d] = %s, want %s", i, tickers[i], want)
		}
	}
}

func TestTickersDiscovery(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, ticker := range []model.MarketTicker{"S1-E1-M1", "S1-E1-M2", "S2-E9-MX"} {
		if err := db.Write(testSnapshot(ticker, baseTime, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Flush(); err != nil {
		t.Fatal(err)
	}

	tickers, err := db.Tickers()
	if err != nil {
		t.Fatalf("Tickers() error = %v", err)
	}
	if len(tickers) != 3 {
		t.Fatalf("found %d tickers, want 3: %v", len(tickers), tickers)
	}

	found := make(map[model.MarketTicker]bool)
	for _, ticker := range tickers {
		found[ticker] = true
	}
	for _, want := range []model.MarketTicker{"S1-E1-M1", "S1-E1-M2", "S2-E9-MX"} {
		if !found[want] {
			t.Errorf("ticker %s not discovered", want)
		}
	}
}

func TestMetadataSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), metadataFileName)
	m := &Metadata{
		ChunkFirstTimes: []time.Time{baseTime, baseTime.Add(time.Hour)},
		LastChunk:       1,
		MsgsInLastChunk: 42,
		ChunkSize:       5000,
		path:            path,
	}
	if err := m.save(); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	loaded, err := loadMetadata(path)
	if err != nil {
		t.Fatalf("loadMetadata() error = %v", err)
	}
	if loaded.LastChunk != 1 || loaded.MsgsInLastChunk != 42 || loaded.ChunkSize != 5000 {
		t.Errorf("loaded = %+v", loaded)
	}
	if !loaded.ChunkFirstTimes[1].Equal(baseTime.Add(time.Hour)) {
		t.Errorf("ChunkFirstTimes[1] = %v", loaded.ChunkFirstTimes[1])
	}
}

func TestMetadataChunkFor(t *testing.T) {
	m := &Metadata{
		ChunkFirstTimes: []time.Time{
			baseTime,
			baseTime.Add(time.Hour),
			baseTime.Add(2 * time.Hour),
		},
	}

	tests := []struct {
		ts   time.Time
		want int
	}{
		{baseTime.Add(-time.Minute), 0},
		{baseTime, 0},
		{baseTime.Add(30 * time.Minute), 0},
		{baseTime.Add(time.Hour), 1},
		{baseTime.Add(90 * time.Minute), 1},
		{baseTime.Add(3 * time.Hour), 2},
	}
	for _, tt := range tests {
		if got := m.chunkFor(tt.ts); got != tt.want {
			t.Errorf("chunkFor(%v) = %d, want %d", tt.ts, got, tt.want)
		}
	}
}
