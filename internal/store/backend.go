// Package store implements the versioned record store behind the sync
// protocol: optimistic-concurrency writes, tombstone deletion, and cursor
// pagination over a change feed ordered by (updatedAt, id).
package store

import (
	"context"

	"github.com/synceddb/syncstore/internal/model"
)

// Backend is the persistence layer beneath the store. Implementations must
// be safe for concurrent use; the Service serializes writers per record, so
// a Put for a given (store, id) never races another Put for the same key.
//
// Get returns (nil, nil) when the record does not exist. List returns up to
// limit records admitted by the cursor, in ascending (updatedAt, id) order.
type Backend interface {
	Get(ctx context.Context, store, id string) (*model.Record, error)
	Put(ctx context.Context, store string, rec *model.Record) error
	List(ctx context.Context, store string, cursor model.Cursor, limit int) ([]*model.Record, error)
	Ping(ctx context.Context) error
	Close() error
}
