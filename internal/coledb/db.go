package coledb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// DefaultChunkSize is how many messages a chunk file holds before a new
// one is cut.
const DefaultChunkSize = 5000

// Errors returned by the store.
var (
	ErrNotFound    = errors.New("ticker not found in store")
	ErrNoSnapshot  = errors.New("first message for a market must be a snapshot")
	ErrClosed      = errors.New("store is closed")
	ErrEmptyTicker = errors.New("empty market ticker")
)

// DB is the orderbook store rooted at a single directory.
type DB struct {
	root      string
	chunkSize int
	logger    *slog.Logger

	mu     sync.Mutex
	open   map[model.MarketTicker]*marketWriter
	closed bool
}

// Option configures a DB.
type Option func(*DB)

// WithChunkSize overrides the messages-per-chunk limit.
func WithChunkSize(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// Open opens (creating if needed) a store rooted at dir.
func Open(dir string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	db := &DB{
		root:      dir,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
		open:      make(map[model.MarketTicker]*marketWriter),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Root returns the store's root directory.
func (db *DB) Root() string { return db.root }

// marketWriter is the append state for one market directory.
type marketWriter struct {
	dir  string
	meta *Metadata
	file *os.File
	buf  *bufio.Writer

	// book mirrors the state implied by everything written so far; it
	// seeds the leading snapshot when a new chunk is cut.
	book *orderbook.Book
}

// Write appends one message to the market's current chunk, cutting a
// new chunk when the current one is full.
func (db *DB) Write(msg orderbook.Message) error {
	ticker := msg.MarketTicker()
	if ticker == "" {
		return ErrEmptyTicker
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}

	mw, err := db.writerFor(ticker)
	if err != nil {
		return err
	}

	if mw.book == nil && !msg.IsSnapshot() {
		return fmt.Errorf("%s: %w", ticker, ErrNoSnapshot)
	}

	// Cut a new chunk when full, seeded with the current book state so
	// every chunk starts with a snapshot. The market's recorded size
	// wins over the configured one: mixing sizes within one market
	// would break chunk-count arithmetic.
	if mw.meta.MsgsInLastChunk >= mw.meta.ChunkSize {
		if err := db.rotate(mw); err != nil {
			return fmt.Errorf("rotate chunk for %s: %w", ticker, err)
		}
	}

	if mw.meta.NumChunks() == 0 {
		mw.meta.ChunkFirstTimes = append(mw.meta.ChunkFirstTimes, msg.Time())
	}

	if err := writeRecord(mw.buf, msg); err != nil {
		return fmt.Errorf("write record for %s: %w", ticker, err)
	}
	mw.meta.MsgsInLastChunk++

	return mw.apply(msg)
}

func (mw *marketWriter) apply(msg orderbook.Message) error {
	if msg.Snapshot != nil {
		mw.book = orderbook.FromSnapshot(*msg.Snapshot)
		return nil
	}
	return mw.book.ApplyDelta(*msg.Delta)
}

// rotate closes the current chunk and opens the next one, writing the
// current book state as its leading snapshot.
func (db *DB) rotate(mw *marketWriter) error {
	if err := mw.closeChunk(); err != nil {
		return err
	}

	mw.meta.LastChunk++
	mw.meta.MsgsInLastChunk = 0

	if err := mw.openChunk(mw.meta.LastChunk); err != nil {
		return err
	}

	snap := mw.book.ToSnapshot()
	if err := writeSnapshot(mw.buf, snap); err != nil {
		return err
	}
	mw.meta.MsgsInLastChunk = 1
	mw.meta.ChunkFirstTimes = append(mw.meta.ChunkFirstTimes, snap.TS)

	return mw.meta.save()
}

func (mw *marketWriter) openChunk(n int) error {
	f, err := os.OpenFile(chunkPath(mw.dir, n), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	mw.file = f
	mw.buf = bufio.NewWriter(f)
	return nil
}

func (mw *marketWriter) closeChunk() error {
	if mw.file == nil {
		return nil
	}
	if err := mw.buf.Flush(); err != nil {
		return err
	}
	if err := mw.file.Close(); err != nil {
		return err
	}
	mw.file = nil
	mw.buf = nil
	return nil
}

// writerFor returns the append state for a market, opening the
// directory on first use. Existing markets have their last chunk
// replayed to rebuild book state and reconcile the message count.
func (db *DB) writerFor(ticker model.MarketTicker) (*marketWriter, error) {
	if mw, ok := db.open[ticker]; ok {
		return mw, nil
	}

	dir := tickerToDir(db.root, ticker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create market dir: %w", err)
	}

	metaPath := filepath.Join(dir, metadataFileName)
	mw := &marketWriter{dir: dir}

	meta, err := loadMetadata(metaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		meta = &Metadata{path: metaPath, ChunkSize: db.chunkSize}
		if err := meta.save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		// Metadata written before chunk sizes were recorded adopts the
		// configured size.
		if meta.ChunkSize == 0 {
			meta.ChunkSize = db.chunkSize
		}
		// The metadata count may lag a crash; the chunk itself is the
		// source of truth.
		book, count, err := replayChunk(dir, ticker, meta.LastChunk)
		if err != nil {
			return nil, fmt.Errorf("replay last chunk for %s: %w", ticker, err)
		}
		mw.book = book
		meta.MsgsInLastChunk = count
	}
	mw.meta = meta

	if err := mw.openChunk(meta.LastChunk); err != nil {
		return nil, err
	}

	db.open[ticker] = mw
	db.logger.Debug("opened market for writing",
		"ticker", ticker,
		"chunk", meta.LastChunk,
		"msgs_in_chunk", meta.MsgsInLastChunk,
	)
	return mw, nil
}

// replayChunk reads a whole chunk and returns the resulting book state
// and message count. A missing chunk file yields a nil book.
func replayChunk(dir string, ticker model.MarketTicker, n int) (*orderbook.Book, int, error) {
	f, err := os.Open(chunkPath(dir, n))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	tracker := orderbook.NewTracker()
	count := 0
	for {
		msg, err := readRecord(r, ticker)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if _, err := tracker.Apply(msg); err != nil {
			return nil, 0, err
		}
		count++
	}

	book, _ := tracker.Book(ticker)
	return book, count, nil
}

// Flush persists buffered records and metadata for all open markets.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.flushLocked()
}

func (db *DB) flushLocked() error {
	for ticker, mw := range db.open {
		if mw.buf != nil {
			if err := mw.buf.Flush(); err != nil {
				return fmt.Errorf("flush %s: %w", ticker, err)
			}
		}
		if err := mw.meta.save(); err != nil {
			return fmt.Errorf("save metadata %s: %w", ticker, err)
		}
	}
	return nil
}

// Close flushes and closes all open chunk files.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}

	err := db.flushLocked()
	for _, mw := range db.open {
		if cerr := mw.closeChunk(); cerr != nil && err == nil {
			err = cerr
		}
	}
	db.open = nil
	db.closed = true
	return err
}
