// Package llm provides language-model text generation behind a single
// Generator interface, with Gemini, OpenAI, and Anthropic implementations.
//
// Provider failures surface as *APIError, which unwraps to
// domain.ErrModelQuotaExceeded, domain.ErrTransientProvider, or domain.ErrModelCall.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Generator produces a text completion for a single-turn prompt.
type Generator interface {
	// Generate sends prompt to model and returns the response text.
	// When jsonMode is set the provider is asked to reply with a JSON object.
	Generate(ctx context.Context, model, prompt string, jsonMode bool) (string, error)

	// Provider returns the name of the LLM provider.
	Provider() string
}

type operationKey struct{}

// WithOperation tags ctx with the pipeline operation a generation call serves
// (e.g. "classify_abstract"). It labels metrics and logs.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// OperationFromContext returns the operation set by WithOperation, or "generate".
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "generate"
}

// withRetries calls fn until it succeeds, fails with a non-transient error,
// or maxRetries retries are spent. Retry n waits retryDelay * 2^(n-1).
func withRetries(ctx context.Context, provider string, maxRetries int, retryDelay time.Duration, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%s: context cancelled during retry wait: %w", provider, ctx.Err())
			case <-time.After(delay):
			}
		}

		text, err := fn()
		if err == nil {
			return text, nil
		}

		if !isTransientError(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%s: exhausted %d retries: %w", provider, maxRetries, lastErr)
}
