// Package errors provides structured errors for store operations and their
// HTTP mapping.
package errors

import (
	"errors"
	"fmt"

	"github.com/synceddb/syncstore/internal/model"
)

// ErrorCode classifies store operation failures.
type ErrorCode int

const (
	// Client errors
	ErrCodeInvalidName     ErrorCode = 1000
	ErrCodeMalformedInput  ErrorCode = 1001
	ErrCodeAlreadyExists   ErrorCode = 1002
	ErrCodeNotFound        ErrorCode = 1003
	ErrCodeVersionConflict ErrorCode = 1004

	// Server errors
	ErrCodeStorageIO ErrorCode = 2000
	ErrCodeInternal  ErrorCode = 2001
)

// StoreError is a structured error with a code and optional context. For
// version conflicts, Current carries the authoritative stored record so the
// caller can retry without a second read.
type StoreError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Current *model.Record
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a StoreError.
func NewStoreError(code ErrorCode, message string, cause error) *StoreError {
	return &StoreError{Code: code, Message: message, Cause: cause}
}

// Convenience constructors for the expected outcomes.

func InvalidName(kind, name string) *StoreError {
	return NewStoreError(ErrCodeInvalidName, fmt.Sprintf("invalid %s name %q", kind, name), nil)
}

func MalformedInput(message string, cause error) *StoreError {
	return NewStoreError(ErrCodeMalformedInput, message, cause)
}

func AlreadyExists(store, id string) *StoreError {
	return NewStoreError(ErrCodeAlreadyExists, fmt.Sprintf("record already exists: %s/%s", store, id), nil)
}

func NotFound(store, id string) *StoreError {
	return NewStoreError(ErrCodeNotFound, fmt.Sprintf("record not found: %s/%s", store, id), nil)
}

// VersionConflict reports a stale update. current is the stored record at
// the time of the check.
func VersionConflict(store, id string, submitted int64, current *model.Record) *StoreError {
	e := NewStoreError(ErrCodeVersionConflict,
		fmt.Sprintf("version conflict on %s/%s: submitted %d, stored %d", store, id, submitted, current.Version), nil)
	e.Current = current
	return e
}

func StorageIO(message string, cause error) *StoreError {
	return NewStoreError(ErrCodeStorageIO, message, cause)
}

// GetCode extracts the error code from an error, defaulting to internal.
func GetCode(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// AsStoreError unwraps err to a StoreError if possible.
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	ok := errors.As(err, &se)
	return se, ok
}
