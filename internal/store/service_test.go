package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synceddb/syncstore/internal/errors"
	"github.com/synceddb/syncstore/internal/model"
	"github.com/synceddb/syncstore/internal/store"
	"go.uber.org/zap"
)

// testClock is a deterministic wall clock advancing one millisecond per
// reading, so every write gets a distinct updatedAt unless frozen.
type testClock struct {
	mu     sync.Mutex
	now    time.Time
	frozen bool
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		c.now = c.now.Add(time.Millisecond)
	}
	return c.now
}

func (c *testClock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

func setupService(t *testing.T) (*store.Service, *testClock) {
	t.Helper()
	clock := newTestClock()
	svc := store.NewService(store.NewMemoryBackend(), zap.NewNop(), store.WithClock(clock.Now))
	return svc, clock
}

func TestService_CreateThenGet(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	rec := &model.Record{ID: "a", Fields: map[string]any{"text": "hello"}}
	require.NoError(t, svc.Create(ctx, "memos", rec))

	got, err := svc.Get(ctx, "memos", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.False(t, got.UpdatedAt.IsZero())
	assert.Equal(t, "hello", got.Fields["text"])
}

func TestService_CreateDiscardsClientVersionAndTimestamp(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	rec := &model.Record{
		ID:        "a",
		Version:   99,
		UpdatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.Create(ctx, "memos", rec))

	got, err := svc.Get(ctx, "memos", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.UpdatedAt.After(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestService_CreateCollision(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))

	err := svc.Create(ctx, "memos", &model.Record{ID: "a"})
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.GetCode(err))

	// A tombstone still occupies the id.
	require.NoError(t, svc.Delete(ctx, "memos", "a"))
	err = svc.Create(ctx, "memos", &model.Record{ID: "a"})
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.GetCode(err))
}

func TestService_StoresAreIndependent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))
	require.NoError(t, svc.Create(ctx, "notes", &model.Record{ID: "a"}))

	_, err := svc.Get(ctx, "memos", "a")
	assert.NoError(t, err)
}

func TestService_GetMissing(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Get(context.Background(), "memos", "nope")
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestService_UpdateVersionWalk(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))

	for want := int64(2); want <= 5; want++ {
		err := svc.Update(ctx, "memos", "a", &model.Record{
			Version: want,
			Fields:  map[string]any{"n": want},
		})
		require.NoError(t, err)

		got, err := svc.Get(ctx, "memos", "a")
		require.NoError(t, err)
		assert.Equal(t, want, got.Version)
	}
}

func TestService_UpdateStaleVersion(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))
	require.NoError(t, svc.Update(ctx, "memos", "a", &model.Record{Version: 2, Fields: map[string]any{"text": "x"}}))

	before, err := svc.Get(ctx, "memos", "a")
	require.NoError(t, err)

	// Same version resubmitted is stale; so is any skip ahead.
	for _, stale := range []int64{2, 1, 4, 0, -1} {
		err := svc.Update(ctx, "memos", "a", &model.Record{Version: stale})
		se, ok := errors.AsStoreError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeVersionConflict, se.Code)
		require.NotNil(t, se.Current)
		assert.Equal(t, int64(2), se.Current.Version)
		assert.Equal(t, "x", se.Current.Fields["text"])
	}

	// The stored record never moved.
	after, err := svc.Get(ctx, "memos", "a")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.Update(context.Background(), "memos", "nope", &model.Record{Version: 2})
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestService_UpdateTombstoned(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))
	require.NoError(t, svc.Delete(ctx, "memos", "a"))

	// -1 + 1 = 0 is the only accepted next version for a tombstone, so an
	// ordinary resubmission is rejected like any other stale write.
	err := svc.Update(ctx, "memos", "a", &model.Record{Version: 2})
	assert.Equal(t, errors.ErrCodeVersionConflict, errors.GetCode(err))
}

func TestService_DeleteTombstones(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a", Fields: map[string]any{"text": "x"}}))
	require.NoError(t, svc.Delete(ctx, "memos", "a"))

	got, err := svc.Get(ctx, "memos", "a")
	require.NoError(t, err)
	assert.Equal(t, model.TombstoneVersion, got.Version)
	assert.True(t, got.IsTombstone())
	assert.Empty(t, got.Fields)
	first := got.UpdatedAt

	// Idempotent: a second delete succeeds and refreshes updatedAt.
	require.NoError(t, svc.Delete(ctx, "memos", "a"))
	got, err = svc.Get(ctx, "memos", "a")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(first))
}

func TestService_DeleteMissing(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.Delete(context.Background(), "memos", "nope")
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestService_InvalidNames(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for _, name := range []string{"", "a/b", "a b", "../etc", "a\x00b"} {
		_, err := svc.List(ctx, name, model.Cursor{}, 10)
		assert.Equal(t, errors.ErrCodeInvalidName, errors.GetCode(err), "store name %q", name)
	}

	err := svc.Create(ctx, "memos", &model.Record{ID: "bad/id"})
	assert.Equal(t, errors.ErrCodeInvalidName, errors.GetCode(err))

	_, err = svc.Get(ctx, "memos", "")
	assert.Equal(t, errors.ErrCodeInvalidName, errors.GetCode(err))
}

func TestService_ListPagination(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	// 150 records with distinct updatedAt (the clock ticks per write).
	for i := 0; i < 150; i++ {
		require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: fmt.Sprintf("r%03d", i)}))
	}

	page, err := svc.List(ctx, "memos", model.Cursor{}, 100)
	require.NoError(t, err)
	assert.Len(t, page.Data, 100)
	assert.True(t, page.HasMore)

	last := page.Data[len(page.Data)-1]
	cursor := model.Cursor{After: last.UpdatedAt, AfterID: last.ID, HasAfter: true, HasAfterID: true}

	page, err = svc.List(ctx, "memos", cursor, 100)
	require.NoError(t, err)
	assert.Len(t, page.Data, 50)
	assert.False(t, page.HasMore)
}

func TestService_ListExhaustiveAndDuplicateFree(t *testing.T) {
	svc, clock := setupService(t)
	ctx := context.Background()

	// Freeze the clock so every record shares one updatedAt and pagination
	// must fall back to the id tie-break.
	clock.Freeze()
	for i := 0; i < 23; i++ {
		require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: fmt.Sprintf("r%02d", i)}))
	}

	seen := make(map[string]int)
	var prev *model.Record
	cursor := model.Cursor{}
	for {
		page, err := svc.List(ctx, "memos", cursor, 5)
		require.NoError(t, err)

		for _, rec := range page.Data {
			seen[rec.ID]++
			if prev != nil {
				assert.True(t, model.Less(prev, rec), "feed order violated: %s before %s", prev.ID, rec.ID)
			}
			prev = rec
		}

		if !page.HasMore {
			break
		}
		last := page.Data[len(page.Data)-1]
		cursor = model.Cursor{After: last.UpdatedAt, AfterID: last.ID, HasAfter: true, HasAfterID: true}
	}

	assert.Len(t, seen, 23)
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s returned %d times", id, n)
	}
}

func TestService_ListIncludesTombstones(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))
	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "b"}))
	require.NoError(t, svc.Delete(ctx, "memos", "a"))

	page, err := svc.List(ctx, "memos", model.Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)

	// The delete moved "a" to the end of the feed.
	assert.Equal(t, "b", page.Data[0].ID)
	assert.Equal(t, "a", page.Data[1].ID)
	assert.True(t, page.Data[1].IsTombstone())
}

func TestService_ListLimitClamping(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: fmt.Sprintf("r%d", i)}))
	}

	// Zero means default (100), so all five come back.
	page, err := svc.List(ctx, "memos", model.Cursor{}, 0)
	require.NoError(t, err)
	assert.Len(t, page.Data, 5)

	// Negative clamps to one.
	page, err = svc.List(ctx, "memos", model.Cursor{}, -7)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.True(t, page.HasMore)

	// An empty store pages an empty, non-nil slice.
	page, err = svc.List(ctx, "empty", model.Cursor{}, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.False(t, page.HasMore)
}

func TestService_ConcurrentUpdatesOneWinner(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "memos", &model.Record{ID: "a"}))

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Update(ctx, "memos", "a", &model.Record{
				Version: 2,
				Fields:  map[string]any{"writer": i},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, errors.ErrCodeVersionConflict, errors.GetCode(err))
		}
	}
	assert.Equal(t, 1, wins)

	got, err := svc.Get(ctx, "memos", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}
