package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/synceddb/syncstore/internal/model"
	"go.uber.org/zap"
)

const recordExt = ".json"

// DiskBackend persists one JSON file per record under one directory per
// store. Writes go through a temp file and rename, so a crashed write never
// leaves a partially applied record; a corrupt file only affects reads of
// that single record.
type DiskBackend struct {
	dataDir string
	logger  *zap.Logger
}

// NewDiskBackend creates a disk backend rooted at dataDir.
func NewDiskBackend(dataDir string, logger *zap.Logger) (*DiskBackend, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &DiskBackend{dataDir: dataDir, logger: logger}, nil
}

// Get reads a single record file, returning (nil, nil) when absent.
func (b *DiskBackend) Get(_ context.Context, store, id string) (*model.Record, error) {
	data, err := os.ReadFile(b.recordPath(store, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record %s/%s: %w", store, id, err)
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt record file %s/%s: %w", store, id, err)
	}
	return &rec, nil
}

// Put writes the record atomically via a temp file and rename.
func (b *DiskBackend) Put(_ context.Context, store string, rec *model.Record) error {
	dir := filepath.Join(b.dataDir, store)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s/%s: %w", store, rec.ID, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write record %s/%s: %w", store, rec.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync record %s/%s: %w", store, rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, b.recordPath(store, rec.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit record %s/%s: %w", store, rec.ID, err)
	}
	return nil
}

// List scans the store directory. Unreadable or corrupt files are skipped
// with a warning so one bad record cannot take down the whole feed.
func (b *DiskBackend) List(_ context.Context, store string, cursor model.Cursor, limit int) ([]*model.Record, error) {
	entries, err := os.ReadDir(filepath.Join(b.dataDir, store))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory %s: %w", store, err)
	}

	var out []*model.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(b.dataDir, store, name))
		if err != nil {
			b.logger.Warn("skipping unreadable record file",
				zap.String("store", store),
				zap.String("file", name),
				zap.Error(err))
			continue
		}

		var rec model.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			b.logger.Warn("skipping corrupt record file",
				zap.String("store", store),
				zap.String("file", name),
				zap.Error(err))
			continue
		}

		if cursor.Admits(&rec) {
			out = append(out, &rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return model.Less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping verifies the data directory is accessible.
func (b *DiskBackend) Ping(context.Context) error {
	_, err := os.Stat(b.dataDir)
	return err
}

// Close is a no-op.
func (b *DiskBackend) Close() error { return nil }

func (b *DiskBackend) recordPath(store, id string) string {
	return filepath.Join(b.dataDir, store, id+recordExt)
}
