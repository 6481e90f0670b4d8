package coledb

import (
	"context"
	"fmt"

	"github.com/zcole/kalshi-core/internal/backend/s3"
)

// SyncToRemote mirrors the whole store to an S3 prefix. Buffered
// writes are flushed first so the remote copy is consistent.
func (db *DB) SyncToRemote(ctx context.Context, syncer *s3.Syncer, remote s3.Path) error {
	db.mu.Lock()
	err := db.flushLocked()
	db.mu.Unlock()
	if err != nil {
		return fmt.Errorf("flush before sync: %w", err)
	}
	return syncer.SyncUp(ctx, db.root, remote)
}

// SyncFromRemote mirrors an S3 prefix into the store directory. Not
// safe to run while writers are open on the same markets.
func (db *DB) SyncFromRemote(ctx context.Context, syncer *s3.Syncer, remote s3.Path) error {
	return syncer.SyncDown(ctx, remote, db.root)
}
