package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failures.
var (
	// ErrRetrieval marks embedder or vector index unavailability. Callers
	// match it with errors.Is and decide whether to retry or fail the
	// request; the core never retries.
	ErrRetrieval = errors.New("retrieval unavailable")

	ErrInvalidDocument   = errors.New("invalid document")
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrInvalidChunking   = errors.New("invalid chunking parameters")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// RetrievalError wraps an embedder or index failure with the operation that
// produced it. errors.Is(err, ErrRetrieval) holds for every RetrievalError.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval: %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() []error { return []error{ErrRetrieval, e.Err} }

// NewRetrievalError creates a RetrievalError.
func NewRetrievalError(op string, err error) *RetrievalError {
	return &RetrievalError{Op: op, Err: err}
}

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
