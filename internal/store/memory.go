package store

import (
	"context"
	"sort"
	"sync"

	"github.com/synceddb/syncstore/internal/model"
)

// MemoryBackend keeps all records in process memory. It is the default
// backend for tests and the reference implementation of the Backend
// contract.
type MemoryBackend struct {
	mu     sync.RWMutex
	stores map[string]map[string]*model.Record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[string]map[string]*model.Record)}
}

// Get returns the record or (nil, nil) when absent.
func (b *MemoryBackend) Get(_ context.Context, store, id string) (*model.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.stores[store][id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Put inserts or replaces the record. Stores are created implicitly.
func (b *MemoryBackend) Put(_ context.Context, store string, rec *model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, ok := b.stores[store]
	if !ok {
		recs = make(map[string]*model.Record)
		b.stores[store] = recs
	}
	recs[rec.ID] = rec.Clone()
	return nil
}

// List returns up to limit records beyond the cursor in feed order.
func (b *MemoryBackend) List(_ context.Context, store string, cursor model.Cursor, limit int) ([]*model.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*model.Record
	for _, rec := range b.stores[store] {
		if cursor.Admits(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return model.Less(out[i], out[j]) })

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Close is a no-op.
func (b *MemoryBackend) Close() error { return nil }
