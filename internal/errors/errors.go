// Package errors provides centralized error definitions and error handling utilities
// for logscope. It defines storage-specific errors, semantic error types,
// error constructors with context, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - StorageError: failures of a backing store (filesystem, database)
//   - CaptureError: failures at the producer boundary (logger, HTTP transport)
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	err := errors.NewStorageError("append", errors.BackendFile, ioErr).WithPath(path)
//
//	if errors.Is(err, errors.ErrStoreClosed) { ... }
//
//	var storageErr *errors.StorageError
//	if errors.As(err, &storageErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Backend names used in StorageError.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Storage-related sentinel errors
var (
	// ErrStoreClosed indicates an operation on a store that has been closed.
	ErrStoreClosed = New("store is closed")
	// ErrCorruptRecord indicates a persisted record that could not be decoded.
	ErrCorruptRecord = New("corrupt record")
	// ErrUnknownBackend indicates a storage backend name that is not supported.
	ErrUnknownBackend = New("unknown storage backend")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LogscopeError is the base interface for all logscope errors.
type LogscopeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StorageError represents a failure of a backing store operation.
//
// Example:
//
//	err := errors.NewStorageError("append", errors.BackendFile, ioErr)
//	err = err.WithPath("/var/logs/logs_3.jsonl")
//	fmt.Println(err) // "storage error [backend=file, op=append, path=/var/logs/logs_3.jsonl]: permission denied"
type StorageError struct {
	baseError
	Op      string
	Backend string
	Path    string
}

// NewStorageError creates a new StorageError for the given operation and backend.
func NewStorageError(op, backend string, cause error) *StorageError {
	return &StorageError{
		baseError: baseError{
			message:    op,
			cause:      cause,
			retryable:  false,
			userFacing: false,
		},
		Op:      op,
		Backend: backend,
	}
}

// WithPath adds a file or database path to the error context.
func (e *StorageError) WithPath(path string) *StorageError {
	e.Path = path
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StorageError) WithRetryable(r bool) *StorageError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *StorageError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "storage error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("storage error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *StorageError) Is(target error) bool {
	if _, ok := target.(*StorageError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CaptureError represents a failure to record an entry at the producer boundary.
// Capture errors are never returned to the host application; they are logged.
type CaptureError struct {
	baseError
	Source string
}

// NewCaptureError creates a new CaptureError.
func NewCaptureError(source string, cause error) *CaptureError {
	return &CaptureError{
		baseError: baseError{
			message:    "capture failed",
			cause:      cause,
			retryable:  false,
			userFacing: false,
		},
		Source: source,
	}
}

// Error returns the formatted error message.
func (e *CaptureError) Error() string {
	prefix := "capture error"
	if e.Source != "" {
		prefix = fmt.Sprintf("capture error [source=%s]", e.Source)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *CaptureError) Is(target error) bool {
	if _, ok := target.(*CaptureError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("capacity must be positive")
//	err = err.WithField("capacity").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var lsErr LogscopeError
	if As(err, &lsErr) {
		return lsErr.IsRetryable()
	}

	return Is(err, context.DeadlineExceeded)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var lsErr LogscopeError
	if As(err, &lsErr) {
		return lsErr.IsUserFacing()
	}

	return Is(err, ErrStoreClosed) || Is(err, ErrInvalidInput)
}

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return err != nil && As(err, &storageErr)
}
