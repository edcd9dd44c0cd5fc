// Package domain contains the quote collection's entities, rules and errors.
// Domain errors represent business-level failures, NOT HTTP errors.
// They are infrastructure-agnostic and can be mapped to HTTP/CLI output by adapters.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a state conflict such as an overlapping sync.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates a record or request failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrImport indicates an import payload was rejected as a whole.
	ErrImport = errors.New("import rejected")

	// ErrStorage indicates a persistence slot could not be read or written.
	ErrStorage = errors.New("storage failure")

	// ErrUnavailable indicates a required dependency is unavailable.
	ErrUnavailable = errors.New("unavailable")
)

// Validation failure reasons.
const (
	ReasonMissingText      = "missing_text"
	ReasonMissingCategory  = "missing_category"
	ReasonInvalidType      = "invalid_type"
	ReasonUnknownCategory  = "unknown_category"
	ReasonReservedCategory = "reserved_category"
)

// Import failure reasons.
const (
	ReasonNotASequence   = "not_a_sequence"
	ReasonInvalidElement = "invalid_element"
)

// Storage operations reported by StorageError.
const (
	StorageOpRead  = "read"
	StorageOpWrite = "write"
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError provides context for conflict errors.
type ConflictError struct {
	Entity  string
	Reason  string
	Details string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s conflict: %s (%s)", e.Entity, e.Reason, e.Details)
	}

	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a conflict error with context.
func NewConflictError(entity, reason string) error {
	return &ConflictError{Entity: entity, Reason: reason}
}

// ValidationError describes why a single record was rejected.
type ValidationError struct {
	Field   string
	Reason  string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with a machine-readable reason.
func NewValidationError(field, reason, message string) error {
	return &ValidationError{Field: field, Reason: reason, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, reason, message string, value any) error {
	return &ValidationError{Field: field, Reason: reason, Message: message, Value: value}
}

// ImportError rejects an entire import payload. Index is the position of the
// offending element and is -1 when the payload itself was unusable.
type ImportError struct {
	Reason string
	Index  int
	Cause  error
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	switch {
	case e.Index >= 0 && e.Cause != nil:
		return fmt.Sprintf("import rejected: %s at index %d: %v", e.Reason, e.Index, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("import rejected: %s: %v", e.Reason, e.Cause)
	default:
		return "import rejected: " + e.Reason
	}
}

// Is reports whether target is ErrImport.
func (e *ImportError) Is(target error) bool {
	return target == ErrImport
}

// Unwrap exposes the underlying cause so a nested ValidationError stays reachable.
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// NewImportError creates an import error for a payload-level failure.
func NewImportError(reason string, cause error) error {
	return &ImportError{Reason: reason, Index: -1, Cause: cause}
}

// NewInvalidElementError creates an import error pointing at one element.
func NewInvalidElementError(index int, cause error) error {
	return &ImportError{Reason: ReasonInvalidElement, Index: index, Cause: cause}
}

// StorageError reports a failed read or write of a persistence slot.
type StorageError struct {
	Op    string
	Slot  string
	Cause error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage %s of slot %q failed: %v", e.Op, e.Slot, e.Cause)
	}

	return fmt.Sprintf("storage %s of slot %q failed", e.Op, e.Slot)
}

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageReadError creates a read failure for the named slot.
func NewStorageReadError(slot string, cause error) error {
	return &StorageError{Op: StorageOpRead, Slot: slot, Cause: cause}
}

// NewStorageWriteError creates a write failure for the named slot.
func NewStorageWriteError(slot string, cause error) error {
	return &StorageError{Op: StorageOpWrite, Slot: slot, Cause: cause}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsImport checks if an error is an import rejection.
func IsImport(err error) bool {
	return errors.Is(err, ErrImport)
}

// IsStorage checks if an error is a storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ValidationReason extracts the reason of the first ValidationError in err's chain.
func ValidationReason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}

	return ""
}
