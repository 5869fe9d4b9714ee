package types

import (
	"errors"
	"fmt"
)

var (
	// Validation errors
	ErrEmptyQuery       = errors.New("query is required")
	ErrInvalidDocuments = errors.New("documents must be a list")
	ErrInvalidPolicy    = errors.New("invalid rerank policy")
	ErrUnknownBackend   = errors.New("unknown rerank backend")

	// Upstream errors
	ErrInvalidResults     = errors.New("invalid reranking results")
	ErrUpstreamStatus     = errors.New("rerank API returned an error status")
	ErrUpstreamTransport  = errors.New("rerank API request failed")
	ErrCredentialNotFound = errors.New("rerank credential not found")
)

// ValidationError reports an invalid input parameter before any network activity
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for the given parameter
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Message)
}

// Unwrap maps the failing field onto its sentinel error
func (e *ValidationError) Unwrap() error {
	switch e.Field {
	case "query":
		return ErrEmptyQuery
	case "documents":
		return ErrInvalidDocuments
	case "backend":
		return ErrUnknownBackend
	default:
		return ErrInvalidPolicy
	}
}

// UpstreamError is returned when the backend answered with a non-success status
type UpstreamError struct {
	Backend    BackendID
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("[%s] rerank API returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamStatus
}

// TransportError is returned when no structured response was received
type TransportError struct {
	Backend BackendID
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("[%s] rerank API request failed: %v", e.Backend, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause
func (e *TransportError) Unwrap() []error {
	return []error{ErrUpstreamTransport, e.Err}
}
