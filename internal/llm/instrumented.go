package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/observability"
)

// InstrumentedGenerator records latency and failures of an underlying Generator.
type InstrumentedGenerator struct {
	next    Generator
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewInstrumentedGenerator wraps next. metrics may be nil.
func NewInstrumentedGenerator(next Generator, metrics *observability.Metrics, logger zerolog.Logger) *InstrumentedGenerator {
	return &InstrumentedGenerator{
		next:    next,
		metrics: metrics,
		logger:  logger.With().Str("component", "llm").Str("provider", next.Provider()).Logger(),
	}
}

// Generate delegates to the wrapped generator.
func (g *InstrumentedGenerator) Generate(ctx context.Context, model, prompt string, jsonMode bool) (string, error) {
	operation := OperationFromContext(ctx)
	start := time.Now()

	text, err := g.next.Generate(ctx, model, prompt, jsonMode)
	elapsed := time.Since(start)
	if err != nil {
		errType := errorType(err)
		g.metrics.RecordLLMRequestFailed(operation, model, errType)
		logger := observability.ContextLogger(ctx, g.logger)
		logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("model", model).
			Str("error_type", errType).
			Dur("elapsed", elapsed).
			Msg("generation failed")
		return "", err
	}

	g.metrics.RecordLLMRequest(operation, model, elapsed.Seconds())
	g.logger.Debug().
		Str("operation", operation).
		Str("model", model).
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(text)).
		Dur("elapsed", elapsed).
		Msg("generation completed")
	return text, nil
}

// Provider returns the wrapped provider's name.
func (g *InstrumentedGenerator) Provider() string {
	return g.next.Provider()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelQuotaExceeded):
		return "quota"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, domain.ErrTransientProvider):
		return "transient"
	default:
		return "error"
	}
}
