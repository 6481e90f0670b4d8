package coledb

import (
	"bufio"
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// Cursor streams messages for one market in timestamp order. Usage
// follows the scanner pattern:
//
//	cur, err := db.ReadRange(ticker, start, end)
//	for cur.Next() {
//	    msg := cur.Message()
//	    ...
//	}
//	err = cur.Err()
type Cursor struct {
	ticker model.MarketTicker
	dir    string
	end    time.Time

	chunk     int
	lastChunk int
	file      *os.File
	r         *bufio.Reader

	// pending holds the synthetic starting snapshot plus the first
	// in-range record produced while fast-forwarding to start.
	pending []orderbook.Message

	cur  orderbook.Message
	err  error
	done bool
}

// Read streams every message stored for a market.
func (db *DB) Read(ticker model.MarketTicker) (*Cursor, error) {
	return db.ReadRange(ticker, time.Time{}, time.Time{})
}

// ReadRange streams messages with timestamps in [start, end]. A zero
// start means the beginning of the data; a zero end means no upper
// bound.
//
// When start falls mid-chunk the cursor fast-forwards from the chunk's
// leading snapshot and emits the reconstructed book state at start as a
// synthetic snapshot, so consumers always begin from a full book.
func (db *DB) ReadRange(ticker model.MarketTicker, start, end time.Time) (*Cursor, error) {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil, ErrClosed
	}
	// Make buffered writes visible to the reader.
	err := db.flushLocked()
	db.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dir := tickerToDir(db.root, ticker)
	meta, err := loadMetadata(filepath.Join(dir, metadataFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	cur := &Cursor{
		ticker:    ticker,
		dir:       dir,
		end:       end,
		chunk:     meta.chunkFor(start),
		lastChunk: meta.LastChunk,
	}
	if err := cur.openChunk(); err != nil {
		return nil, err
	}
	if !start.IsZero() {
		if err := cur.fastForward(start); err != nil {
			cur.Close()
			return nil, err
		}
	}
	return cur, nil
}

func (c *Cursor) openChunk() error {
	f, err := os.Open(chunkPath(c.dir, c.chunk))
	if errors.Is(err, fs.ErrNotExist) {
		// Chunk was allocated in metadata but never written.
		c.done = true
		return nil
	}
	if err != nil {
		return err
	}
	c.file = f
	c.r = bufio.NewReader(f)
	return nil
}

// fastForward replays records before start into a tracker and queues
// the book state at start as a synthetic snapshot.
func (c *Cursor) fastForward(start time.Time) error {
	tracker := orderbook.NewTracker()
	for {
		msg, err := c.readNext()
		if err == io.EOF {
			// All stored data predates start; nothing to emit.
			c.done = true
			return nil
		}
		if err != nil {
			return err
		}

		if !msg.Time().Before(start) {
			if book, ok := tracker.Book(c.ticker); ok && !msg.IsSnapshot() {
				snap := book.ToSnapshot()
				c.pending = append(c.pending, orderbook.Message{Snapshot: &snap})
			}
			c.pending = append(c.pending, msg)
			return nil
		}
		if _, err := tracker.Apply(msg); err != nil {
			return err
		}
	}
}

// readNext returns the next raw record, advancing across chunk files.
func (c *Cursor) readNext() (orderbook.Message, error) {
	for {
		if c.done || c.r == nil {
			return orderbook.Message{}, io.EOF
		}

		msg, err := readRecord(c.r, c.ticker)
		if err == nil {
			return msg, nil
		}
		if err != io.EOF {
			return orderbook.Message{}, err
		}

		c.file.Close()
		c.file = nil
		c.r = nil
		if c.chunk >= c.lastChunk {
			return orderbook.Message{}, io.EOF
		}
		c.chunk++
		if err := c.openChunk(); err != nil {
			return orderbook.Message{}, err
		}
	}
}

// Next advances the cursor. It returns false at the end of the range or
// on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}

	var msg orderbook.Message
	if len(c.pending) > 0 {
		msg = c.pending[0]
		c.pending = c.pending[1:]
	} else {
		var err error
		msg, err = c.readNext()
		if err == io.EOF {
			return false
		}
		if err != nil {
			c.err = err
			return false
		}
	}

	if !c.end.IsZero() && msg.Time().After(c.end) {
		return false
	}
	c.cur = msg
	return true
}

// Message returns the current message after a successful Next.
func (c *Cursor) Message() orderbook.Message { return c.cur }

// Err returns the first error hit while iterating.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying chunk file.
func (c *Cursor) Close() error {
	if c.file != nil {
		err := c.file.Close()
		c.file = nil
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Multi-market merged reads
// -----------------------------------------------------------------------------

// MultiCursor streams messages from several markets merged by
// timestamp. Same scanner API as Cursor.
type MultiCursor struct {
	h   cursorHeap
	cur orderbook.Message
	err error
}

// ReadMulti opens a merged stream over the given markets for [start,
// end]. Markets missing from the store are skipped.
func (db *DB) ReadMulti(tickers []model.MarketTicker, start, end time.Time) (*MultiCursor, error) {
	mc := &MultiCursor{}
	for _, ticker := range tickers {
		cur, err := db.ReadRange(ticker, start, end)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			mc.Close()
			return nil, err
		}
		if cur.Next() {
			heap.Push(&mc.h, cur)
		} else {
			err := cur.Err()
			cur.Close()
			if err != nil {
				mc.Close()
				return nil, err
			}
		}
	}
	return mc, nil
}

// Next advances to the earliest message across all markets.
func (mc *MultiCursor) Next() bool {
	if mc.err != nil || mc.h.Len() == 0 {
		return false
	}

	cur := mc.h[0]
	mc.cur = cur.Message()

	if cur.Next() {
		heap.Fix(&mc.h, 0)
	} else {
		heap.Pop(&mc.h)
		err := cur.Err()
		cur.Close()
		if err != nil {
			mc.err = err
			return false
		}
	}
	return true
}

// Message returns the current message after a successful Next.
func (mc *MultiCursor) Message() orderbook.Message { return mc.cur }

// Err returns the first error hit while iterating.
func (mc *MultiCursor) Err() error { return mc.err }

// Close releases all underlying cursors.
func (mc *MultiCursor) Close() error {
	var err error
	for _, cur := range mc.h {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	mc.h = nil
	return err
}

type cursorHeap []*Cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return h[i].cur.Time().Before(h[j].cur.Time()) }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(*Cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Stream pumps a cursor into a channel, stopping on context
// cancellation. The channel is closed when the cursor is exhausted.
func Stream(ctx context.Context, cur *Cursor) <-chan orderbook.Message {
	out := make(chan orderbook.Message, 64)
	go func() {
		defer close(out)
		defer cur.Close()
		for cur.Next() {
			select {
			case out <- cur.Message():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// -----------------------------------------------------------------------------
// Discovery
// -----------------------------------------------------------------------------

// Tickers walks the store and returns every market with data.
func (db *DB) Tickers() ([]model.MarketTicker, error) {
	var tickers []model.MarketTicker
	err := filepath.WalkDir(db.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != metadataFileName {
			return nil
		}
		ticker, err := dirToTicker(db.root, filepath.Dir(path))
		if err != nil {
			return err
		}
		tickers = append(tickers, ticker)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk store: %w", err)
	}
	return tickers, nil
}

// Stats summarizes one market's stored data.
type Stats struct {
	Ticker    model.MarketTicker
	Chunks    int
	Messages  int
	FirstTime time.Time
	LastTime  time.Time
}

// MarketStats reads a market's metadata and last chunk to summarize it.
func (db *DB) MarketStats(ticker model.MarketTicker) (Stats, error) {
	db.mu.Lock()
	err := db.flushLocked()
	db.mu.Unlock()
	if err != nil {
		return Stats{}, err
	}

	dir := tickerToDir(db.root, ticker)
	meta, err := loadMetadata(filepath.Join(dir, metadataFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Stats{}, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Ticker: ticker,
		Chunks: meta.LastChunk + 1,
	}
	if len(meta.ChunkFirstTimes) > 0 {
		stats.FirstTime = meta.ChunkFirstTimes[0]
	}

	// Full chunks hold the size recorded when the market was written,
	// not the currently configured one; the last chunk must be scanned
	// for its count and final timestamp.
	chunkSize := meta.ChunkSize
	if chunkSize == 0 {
		chunkSize = db.chunkSize
	}
	stats.Messages = meta.LastChunk * chunkSize
	f, err := os.Open(chunkPath(dir, meta.LastChunk))
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		msg, err := readRecord(r, ticker)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, err
		}
		stats.Messages++
		stats.LastTime = msg.Time()
	}
	return stats, nil
}
