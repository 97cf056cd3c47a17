package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor marks the last-seen position in the change feed. A record is part
// of the page when it sorts strictly after the cursor in (updatedAt, id)
// order; see Admits.
type Cursor struct {
	After      time.Time
	AfterID    string
	HasAfter   bool
	HasAfterID bool
}

// Admits reports whether the record lies beyond the cursor. Without an
// after timestamp the cursor admits everything; an after_id supplied
// without a timestamp is ignored.
func (c Cursor) Admits(r *Record) bool {
	if !c.HasAfter {
		return true
	}
	if r.UpdatedAt.After(c.After) {
		return true
	}
	if c.HasAfterID && r.UpdatedAt.Equal(c.After) && r.ID > c.AfterID {
		return true
	}
	return false
}

// ParseCursor decodes the after/after_id query parameters. after accepts an
// ISO-8601 timestamp, an integer epoch-milliseconds value, or the legacy
// comma-joined "timestamp,id" form (in which case after_id is redundant).
func ParseCursor(after, afterID string) (Cursor, error) {
	var c Cursor

	if after == "" {
		return c, nil
	}

	if i := strings.IndexByte(after, ','); i >= 0 {
		joined := after[i+1:]
		after = after[:i]
		if afterID == "" {
			afterID = joined
		}
	}

	ts, err := parseAfter(after)
	if err != nil {
		return Cursor{}, err
	}
	c.After = ts
	c.HasAfter = true

	if afterID != "" {
		c.AfterID = afterID
		c.HasAfterID = true
	}
	return c, nil
}

func parseAfter(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid after cursor %q", s)
	}
	return ts, nil
}
