package store

import (
	"context"
	"time"

	"github.com/synceddb/syncstore/internal/errors"
	"github.com/synceddb/syncstore/internal/metrics"
	"github.com/synceddb/syncstore/internal/model"
	"github.com/synceddb/syncstore/internal/validation"
	"go.uber.org/zap"
)

// Page size bounds for the change feed.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Service is the versioned record store. It enforces the monotonic
// versioning and ordering invariants of the sync protocol on top of a
// pluggable Backend, and serializes the read-check-write sequence of
// Update and Delete per (store, id).
type Service struct {
	backend   Backend
	locks     *keyedLock
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics enables per-operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a record store on top of backend.
func NewService(backend Backend, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		locks:     newKeyedLock(),
		validator: validation.NewValidator(),
		logger:    logger,
		now:       defaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// defaultClock returns the current time at millisecond precision, the
// resolution of the updatedAt wire format.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Create persists a new record with version 1 and a fresh updatedAt. Any
// client-supplied version or updatedAt is discarded. An existing record
// with the same id, tombstoned or not, is a hard conflict.
func (s *Service) Create(ctx context.Context, store string, rec *model.Record) error {
	start := time.Now()
	err := s.create(ctx, store, rec)
	s.observe("create", start, err)
	return err
}

func (s *Service) create(ctx context.Context, store string, rec *model.Record) error {
	if err := s.validator.ValidateStoreName(store); err != nil {
		return err
	}
	if err := s.validator.ValidateRecordID(rec.ID); err != nil {
		return err
	}

	unlock := s.locks.lock(lockKey(store, rec.ID))
	defer unlock()

	cur, err := s.backend.Get(ctx, store, rec.ID)
	if err != nil {
		return errors.StorageIO("create read failed", err)
	}
	if cur != nil {
		return errors.AlreadyExists(store, rec.ID)
	}

	stored := &model.Record{
		ID:        rec.ID,
		Version:   1,
		UpdatedAt: s.now(),
		Fields:    rec.Fields,
	}
	if err := s.backend.Put(ctx, store, stored); err != nil {
		return errors.StorageIO("create write failed", err)
	}

	s.logger.Debug("record created",
		zap.String("store", store),
		zap.String("id", rec.ID))
	return nil
}

// Get returns the current record, including tombstones.
func (s *Service) Get(ctx context.Context, store, id string) (*model.Record, error) {
	start := time.Now()
	rec, err := s.get(ctx, store, id)
	s.observe("get", start, err)
	return rec, err
}

func (s *Service) get(ctx context.Context, store, id string) (*model.Record, error) {
	if err := s.validator.ValidateStoreName(store); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRecordID(id); err != nil {
		return nil, err
	}

	rec, err := s.backend.Get(ctx, store, id)
	if err != nil {
		return nil, errors.StorageIO("read failed", err)
	}
	if rec == nil {
		return nil, errors.NotFound(store, id)
	}
	return rec, nil
}

// List returns one page of the change feed beyond the cursor, tombstones
// included. limit is clamped to [1, MaxPageSize]; zero means the default.
// HasMore is determined by fetching one record past the limit.
func (s *Service) List(ctx context.Context, store string, cursor model.Cursor, limit int) (*model.Page, error) {
	start := time.Now()
	page, err := s.list(ctx, store, cursor, limit)
	s.observe("list", start, err)
	return page, err
}

func (s *Service) list(ctx context.Context, store string, cursor model.Cursor, limit int) (*model.Page, error) {
	if err := s.validator.ValidateStoreName(store); err != nil {
		return nil, err
	}

	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 1:
		limit = 1
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	recs, err := s.backend.List(ctx, store, cursor, limit+1)
	if err != nil {
		return nil, errors.StorageIO("list failed", err)
	}

	page := &model.Page{Data: recs, HasMore: len(recs) > limit}
	if page.HasMore {
		page.Data = page.Data[:limit]
	}
	if page.Data == nil {
		page.Data = []*model.Record{}
	}
	return page, nil
}

// Update replaces the record's payload under optimistic concurrency: the
// submitted version must equal the stored version plus one, exactly. On a
// mismatch the returned VersionConflict carries the stored record so the
// caller can re-read and retry without another round trip.
func (s *Service) Update(ctx context.Context, store, id string, rec *model.Record) error {
	start := time.Now()
	err := s.update(ctx, store, id, rec)
	s.observe("update", start, err)
	return err
}

func (s *Service) update(ctx context.Context, store, id string, rec *model.Record) error {
	if err := s.validator.ValidateStoreName(store); err != nil {
		return err
	}
	if err := s.validator.ValidateRecordID(id); err != nil {
		return err
	}

	unlock := s.locks.lock(lockKey(store, id))
	defer unlock()

	cur, err := s.backend.Get(ctx, store, id)
	if err != nil {
		return errors.StorageIO("update read failed", err)
	}
	if cur == nil {
		return errors.NotFound(store, id)
	}
	if rec.Version != cur.Version+1 {
		return errors.VersionConflict(store, id, rec.Version, cur)
	}

	stored := &model.Record{
		ID:        id,
		Version:   cur.Version + 1,
		UpdatedAt: s.now(),
		Fields:    rec.Fields,
	}
	if err := s.backend.Put(ctx, store, stored); err != nil {
		return errors.StorageIO("update write failed", err)
	}

	s.logger.Debug("record updated",
		zap.String("store", store),
		zap.String("id", id),
		zap.Int64("version", stored.Version))
	return nil
}

// Delete overwrites the record with a tombstone so the deletion propagates
// through the change feed. Deleting an already-tombstoned record succeeds
// and refreshes its updatedAt.
func (s *Service) Delete(ctx context.Context, store, id string) error {
	start := time.Now()
	err := s.delete(ctx, store, id)
	s.observe("delete", start, err)
	return err
}

func (s *Service) delete(ctx context.Context, store, id string) error {
	if err := s.validator.ValidateStoreName(store); err != nil {
		return err
	}
	if err := s.validator.ValidateRecordID(id); err != nil {
		return err
	}

	unlock := s.locks.lock(lockKey(store, id))
	defer unlock()

	cur, err := s.backend.Get(ctx, store, id)
	if err != nil {
		return errors.StorageIO("delete read failed", err)
	}
	if cur == nil {
		return errors.NotFound(store, id)
	}

	if err := s.backend.Put(ctx, store, cur.Tombstone(s.now())); err != nil {
		return errors.StorageIO("delete write failed", err)
	}

	s.logger.Debug("record tombstoned",
		zap.String("store", store),
		zap.String("id", id))
	return nil
}

// Ping reports backend availability.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Service) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOperation(op, resultLabel(err), time.Since(start))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidName:
		return "invalid_name"
	case errors.ErrCodeMalformedInput:
		return "malformed_input"
	case errors.ErrCodeAlreadyExists:
		return "already_exists"
	case errors.ErrCodeNotFound:
		return "not_found"
	case errors.ErrCodeVersionConflict:
		return "conflict"
	default:
		return "error"
	}
}

func lockKey(store, id string) string {
	return store + "/" + id
}
