package coledb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// Chunk record layout (little-endian):
//
//	kind     uint8   0 = snapshot, 1 = delta
//	ts       int64   nanoseconds since epoch
//	seq      int64
//
// then for snapshots:
//
//	yesCount uint16
//	noCount  uint16
//	levels   yesCount+noCount * (price uint8, quantity uint32)
//
// and for deltas:
//
//	side     uint8   0 = yes, 1 = no
//	price    uint8
//	change   int32
//
// The market ticker is implied by the directory and never stored.
const (
	kindSnapshot = 0
	kindDelta    = 1
)

func writeRecord(w io.Writer, msg orderbook.Message) error {
	if msg.Snapshot != nil {
		return writeSnapshot(w, *msg.Snapshot)
	}
	return writeDelta(w, *msg.Delta)
}

func writeSnapshot(w io.Writer, s orderbook.Snapshot) error {
	if len(s.Yes) > 0xffff || len(s.No) > 0xffff {
		return fmt.Errorf("snapshot has too many levels (%d yes, %d no)", len(s.Yes), len(s.No))
	}

	buf := make([]byte, 0, 21+5*(len(s.Yes)+len(s.No)))
	buf = append(buf, kindSnapshot)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.TS.UnixNano()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Seq))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s.Yes)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s.No)))
	for _, lvl := range s.Yes {
		buf = appendLevel(buf, lvl)
	}
	for _, lvl := range s.No {
		buf = appendLevel(buf, lvl)
	}

	_, err := w.Write(buf)
	return err
}

func appendLevel(buf []byte, lvl orderbook.Level) []byte {
	buf = append(buf, byte(lvl.Price))
	return binary.LittleEndian.AppendUint32(buf, uint32(lvl.Quantity))
}

func writeDelta(w io.Writer, d orderbook.Delta) error {
	buf := make([]byte, 0, 23)
	buf = append(buf, kindDelta)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.TS.UnixNano()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Seq))
	if d.Side == model.Yes {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
	}
	buf = append(buf, byte(d.Price))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(d.Change)))

	_, err := w.Write(buf)
	return err
}

// readRecord decodes the next record from r. Returns io.EOF cleanly at
// end of chunk.
func readRecord(r *bufio.Reader, ticker model.MarketTicker) (orderbook.Message, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return orderbook.Message{}, err
	}

	var head [16]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return orderbook.Message{}, fmt.Errorf("read record header: %w", noEOF(err))
	}
	ts := time.Unix(0, int64(binary.LittleEndian.Uint64(head[0:8])))
	seq := int64(binary.LittleEndian.Uint64(head[8:16]))

	switch kind {
	case kindSnapshot:
		return readSnapshotBody(r, ticker, ts, seq)
	case kindDelta:
		return readDeltaBody(r, ticker, ts, seq)
	}
	return orderbook.Message{}, fmt.Errorf("unknown record kind %d", kind)
}

func readSnapshotBody(r *bufio.Reader, ticker model.MarketTicker, ts time.Time, seq int64) (orderbook.Message, error) {
	var counts [4]byte
	if _, err := io.ReadFull(r, counts[:]); err != nil {
		return orderbook.Message{}, fmt.Errorf("read snapshot counts: %w", noEOF(err))
	}
	yesCount := int(binary.LittleEndian.Uint16(counts[0:2]))
	noCount := int(binary.LittleEndian.Uint16(counts[2:4]))

	s := orderbook.Snapshot{Ticker: ticker, TS: ts, Seq: seq}
	var err error
	if s.Yes, err = readLevels(r, yesCount); err != nil {
		return orderbook.Message{}, err
	}
	if s.No, err = readLevels(r, noCount); err != nil {
		return orderbook.Message{}, err
	}
	return orderbook.Message{Snapshot: &s}, nil
}

func readLevels(r *bufio.Reader, n int) ([]orderbook.Level, error) {
	levels := make([]orderbook.Level, n)
	var buf [5]byte
	for i := range levels {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("read level: %w", noEOF(err))
		}
		levels[i] = orderbook.Level{
			Price:    model.Price(buf[0]),
			Quantity: model.Quantity(binary.LittleEndian.Uint32(buf[1:5])),
		}
	}
	return levels, nil
}

func readDeltaBody(r *bufio.Reader, ticker model.MarketTicker, ts time.Time, seq int64) (orderbook.Message, error) {
	var buf [6]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return orderbook.Message{}, fmt.Errorf("read delta body: %w", noEOF(err))
	}

	d := orderbook.Delta{
		Ticker: ticker,
		Side:   model.Yes,
		Price:  model.Price(buf[1]),
		Change: int(int32(binary.LittleEndian.Uint32(buf[2:6]))),
		TS:     ts,
		Seq:    seq,
	}
	if buf[0] == 1 {
		d.Side = model.No
	}
	return orderbook.Message{Delta: &d}, nil
}

// noEOF converts a truncated-record EOF into ErrUnexpectedEOF so callers
// can distinguish clean end-of-chunk from corruption.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
