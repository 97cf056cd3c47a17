// Package validation validates store and record names before storage access.
package validation

import (
	"regexp"

	"github.com/synceddb/syncstore/internal/errors"
)

// MaxNameSize bounds store and record id length in bytes.
const MaxNameSize = 256

// namePattern restricts names to filesystem- and URL-safe characters,
// preventing path or namespace injection.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator validates store operations.
type Validator struct {
	maxNameSize int
}

// NewValidator creates a validator with default limits.
func NewValidator() *Validator {
	return &Validator{maxNameSize: MaxNameSize}
}

// ValidateStoreName checks a store (collection) name.
func (v *Validator) ValidateStoreName(name string) error {
	return v.validateName("store", name)
}

// ValidateRecordID checks a record id. Record ids appear as URL path
// segments and file names, so they follow the same rules as store names.
func (v *Validator) ValidateRecordID(id string) error {
	return v.validateName("record id", id)
}

func (v *Validator) validateName(kind, name string) error {
	if name == "" || len(name) > v.maxNameSize || !namePattern.MatchString(name) {
		return errors.InvalidName(kind, name)
	}
	return nil
}
