package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "gemini", "openai").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	// Zero means no HTTP response was received.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API
	// (OpenAI/Anthropic "type", Gemini "status").
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps the error onto the domain taxonomy so callers can test it with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.IsQuotaExceeded():
		return domain.ErrModelQuotaExceeded
	case e.IsTransient():
		return domain.ErrTransientProvider
	default:
		return domain.ErrModelCall
	}
}

// IsQuotaExceeded reports whether the provider refused the call because the
// account is out of quota or credit. Retrying will not help.
func (e *APIError) IsQuotaExceeded() bool {
	if e.StatusCode == http.StatusPaymentRequired {
		return true
	}
	switch strings.ToLower(e.Type) {
	case "insufficient_quota", "resource_exhausted", "billing_error":
		return true
	}
	return strings.EqualFold(e.Code, "insufficient_quota")
}

// IsTransient returns true if the error is a transient error that may succeed
// on retry. This includes rate limiting (429), server errors (5xx), and network
// errors (StatusCode 0 indicates no HTTP response was received).
// Quota exhaustion is never transient.
func (e *APIError) IsTransient() bool {
	if e.IsQuotaExceeded() {
		return false
	}
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// isTransientError checks whether err is an APIError that is transient.
func isTransientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}
