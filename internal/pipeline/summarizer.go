package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/llm"
	"github.com/helixir/citation-tracker-service/internal/prompts"
)

// NoFullTextPlaceholder stands in for the paper content when no structured text is available.
const NoFullTextPlaceholder = "No full text provided; summarize from the abstract."

// Summarizer produces the Markdown summaries written as artifacts.
type Summarizer struct {
	generator llm.Generator
	prompts   *prompts.Library
	model     string
	logger    zerolog.Logger
}

// NewSummarizer creates a Summarizer using model for every summary.
func NewSummarizer(generator llm.Generator, library *prompts.Library, model string, logger zerolog.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		prompts:   library,
		model:     model,
		logger:    logger.With().Str("component", "summarizer").Logger(),
	}
}

// SummarizeCitation summarizes paper relative to target. fullText is the
// structured text from the second pass and may be empty.
//
// A model failure yields an empty summary and a nil error; only quota
// exhaustion and context cancellation are returned.
func (s *Summarizer) SummarizeCitation(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper, fullText string) (string, error) {
	if strings.TrimSpace(fullText) == "" {
		fullText = NoFullTextPlaceholder
	}
	return s.generate(ctx, prompts.Summary, prompts.Data{
		TargetTitle:    target.Title,
		TargetAbstract: target.Abstract,
		Title:          paper.Title,
		Abstract:       paper.Abstract,
		FullText:       fullText,
	})
}

// SummarizeBase summarizes the target paper itself. Same error contract as SummarizeCitation.
func (s *Summarizer) SummarizeBase(ctx context.Context, target *domain.TargetPaper, fullText string) (string, error) {
	if strings.TrimSpace(fullText) == "" {
		fullText = NoFullTextPlaceholder
	}
	return s.generate(ctx, prompts.BaseSummary, prompts.Data{
		Title:    target.Title,
		Abstract: target.Abstract,
		FullText: fullText,
	})
}

func (s *Summarizer) generate(ctx context.Context, name prompts.Name, data prompts.Data) (string, error) {
	prompt, err := s.prompts.Render(name, data)
	if err != nil {
		s.logger.Error().Err(err).Str("prompt", string(name)).Msg("failed to render summary prompt")
		return "", nil
	}

	out, err := s.generator.Generate(llm.WithOperation(ctx, string(name)), s.model, prompt, false)
	if err != nil {
		if domain.IsQuotaExceeded(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn().Err(err).Str("prompt", string(name)).Msg("summary generation failed")
		return "", nil
	}
	return strings.TrimSpace(out), nil
}
