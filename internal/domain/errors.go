package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTransientProvider indicates a provider failure worth retrying (429, timeouts, 5xx).
	ErrTransientProvider = errors.New("transient provider error")

	// ErrDocumentUnavailable indicates that a paper's full text could not be obtained.
	ErrDocumentUnavailable = errors.New("document unavailable")

	// ErrModelQuotaExceeded indicates the language-model quota is exhausted.
	// It is fatal for the whole run.
	ErrModelQuotaExceeded = errors.New("model quota exceeded")

	// ErrModelCall indicates any other language-model failure.
	ErrModelCall = errors.New("model call failed")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// DocumentUnavailableError reports why a paper's text could not be extracted.
// Cause is a human-readable reason suitable for the ledger.
type DocumentUnavailableError struct {
	PaperID string
	Cause   string
	Err     error
}

// Error implements the error interface.
func (e *DocumentUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document unavailable for %s: %s: %v", e.PaperID, e.Cause, e.Err)
	}
	return fmt.Sprintf("document unavailable for %s: %s", e.PaperID, e.Cause)
}

// Is matches ErrDocumentUnavailable.
func (e *DocumentUnavailableError) Is(target error) bool {
	return target == ErrDocumentUnavailable
}

// Unwrap returns the underlying cause error.
func (e *DocumentUnavailableError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewDocumentUnavailableError creates a new DocumentUnavailableError.
func NewDocumentUnavailableError(paperID, cause string, err error) *DocumentUnavailableError {
	return &DocumentUnavailableError{
		PaperID: paperID,
		Cause:   cause,
		Err:     err,
	}
}

// IsQuotaExceeded reports whether err is fatal for the run.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrModelQuotaExceeded)
}
