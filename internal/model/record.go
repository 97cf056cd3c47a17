// Package model defines the record and cursor types shared across the sync store.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Reserved field names owned by the store. Client-supplied values for
// version and updatedAt are discarded on write.
const (
	FieldID        = "id"
	FieldVersion   = "version"
	FieldUpdatedAt = "updatedAt"
)

// TombstoneVersion marks a record as logically deleted.
const TombstoneVersion int64 = -1

// TimestampLayout is ISO-8601 with millisecond precision, the wire format
// used for updatedAt and for list cursors.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is the unit of storage: a client-assigned id, a server-owned
// version and updatedAt, and an open set of payload fields.
type Record struct {
	ID        string
	Version   int64
	UpdatedAt time.Time
	Fields    map[string]any
}

// IsTombstone reports whether the record is logically deleted.
func (r *Record) IsTombstone() bool {
	return r.Version == TombstoneVersion
}

// Tombstone returns a tombstone for this record's id. Payload fields are
// dropped; only id, the sentinel version, and the given updatedAt survive.
func (r *Record) Tombstone(updatedAt time.Time) *Record {
	return &Record{
		ID:        r.ID,
		Version:   TombstoneVersion,
		UpdatedAt: updatedAt.UTC().Truncate(time.Millisecond),
	}
}

// Clone returns a deep-enough copy: the Fields map is copied, field values
// are shared (payloads are treated as immutable once stored).
func (r *Record) Clone() *Record {
	c := &Record{
		ID:        r.ID,
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Fields != nil {
		c.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

// Less orders records by (updatedAt, id) ascending, the change feed order.
func Less(a, b *Record) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.ID < b.ID
}

// MarshalJSON flattens payload fields and the reserved fields into a single
// JSON object. Tombstones carry only the reserved fields.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldID] = r.ID
	out[FieldVersion] = r.Version
	out[FieldUpdatedAt] = r.UpdatedAt.UTC().Format(TimestampLayout)
	return json.Marshal(out)
}

// UnmarshalJSON parses a flat JSON object into a Record. A missing version
// is left at zero; a missing updatedAt is left at the zero time. Both are
// overwritten by the store on write, but update requests carry the caller's
// expected version through here.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	rec := Record{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case FieldID:
			id, ok := v.(string)
			if !ok {
				return fmt.Errorf("field %q must be a string", FieldID)
			}
			rec.ID = id
		case FieldVersion:
			num, ok := v.(json.Number)
			if !ok {
				return fmt.Errorf("field %q must be an integer", FieldVersion)
			}
			ver, err := num.Int64()
			if err != nil {
				return fmt.Errorf("field %q must be an integer: %w", FieldVersion, err)
			}
			rec.Version = ver
		case FieldUpdatedAt:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("field %q must be a timestamp string", FieldUpdatedAt)
			}
			ts, err := ParseTimestamp(s)
			if err != nil {
				return fmt.Errorf("field %q: %w", FieldUpdatedAt, err)
			}
			rec.UpdatedAt = ts
		default:
			rec.Fields[k] = v
		}
	}

	*r = rec
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp, accepting any fractional
// second precision, and truncates to milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return ts.UTC().Truncate(time.Millisecond), nil
}

// Page is one page of the change feed.
type Page struct {
	Data    []*Record `json:"data"`
	HasMore bool      `json:"hasMore"`
}
