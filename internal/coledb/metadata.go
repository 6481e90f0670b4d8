package coledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

// metadataFileName is the per-market metadata file inside the market
// directory, next to the numbered chunk files.
const metadataFileName = "metadata"

// Metadata describes the chunk layout of one market directory. It is
// what lets a range query find the covering chunk without scanning.
type Metadata struct {
	// ChunkFirstTimes holds the timestamp of the first message of each
	// chunk, indexed by chunk number.
	ChunkFirstTimes []time.Time `json:"chunk_first_times"`

	// LastChunk is the number of the chunk currently being written.
	LastChunk int `json:"last_chunk"`

	// MsgsInLastChunk counts messages already written to LastChunk.
	MsgsInLastChunk int `json:"msgs_in_last_chunk"`

	// ChunkSize records the capacity the chunks were written with, so
	// readers stay correct when the configured size changes later.
	ChunkSize int `json:"chunk_size"`

	path string
}

// NumChunks returns how many chunk files exist.
func (m *Metadata) NumChunks() int {
	return len(m.ChunkFirstTimes)
}

// chunkFor returns the number of the chunk that covers ts: the last
// chunk whose first timestamp is not after ts. Timestamps before the
// first chunk map to chunk 0.
func (m *Metadata) chunkFor(ts time.Time) int {
	chunk := 0
	for i, first := range m.ChunkFirstTimes {
		if first.After(ts) {
			break
		}
		chunk = i
	}
	return chunk
}

func (m *Metadata) save() error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	// Write-then-rename so a crash never leaves a torn metadata file.
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func loadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	m.path = path
	return &m, nil
}

// tickerToDir maps a market ticker to its directory under root by
// splitting on "-". "CPICORE-23JUL-TN0.1" becomes CPICORE/23JUL/TN0.1.
func tickerToDir(root string, ticker model.MarketTicker) string {
	parts := strings.Split(string(ticker), "-")
	return filepath.Join(append([]string{root}, parts...)...)
}

// dirToTicker is the inverse of tickerToDir for discovery walks.
func dirToTicker(root, dir string) (model.MarketTicker, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return model.MarketTicker(strings.Join(parts, "-")), nil
}

func chunkPath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("%d", n))
}
