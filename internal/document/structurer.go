package document

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/llm"
	"github.com/helixir/citation-tracker-service/internal/prompts"
)

// StructurerConfig configures a Structurer.
type StructurerConfig struct {
	// Model is the structuring model name.
	Model string
	// MaxTextLength is the rune limit of raw text sent to the model.
	MaxTextLength int
	// FallbackTextLength is the rune limit of raw text returned when structuring fails.
	FallbackTextLength int
}

// Structurer converts raw paper text into Markdown sections.
type Structurer struct {
	generator llm.Generator
	prompts   *prompts.Library
	cfg       StructurerConfig
	logger    zerolog.Logger
}

// NewStructurer creates a Structurer.
func NewStructurer(cfg StructurerConfig, generator llm.Generator, library *prompts.Library, logger zerolog.Logger) *Structurer {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 30000
	}
	if cfg.FallbackTextLength <= 0 {
		cfg.FallbackTextLength = 20000
	}
	return &Structurer{
		generator: generator,
		prompts:   library,
		cfg:       cfg,
		logger:    logger.With().Str("component", "structurer").Logger(),
	}
}

// Structure returns raw rendered as "## Section" Markdown. When the model call
// fails, returns invalid JSON, or finds no section, the first FallbackTextLength
// runes of raw are returned instead. Only quota exhaustion is returned as an error.
func (s *Structurer) Structure(ctx context.Context, raw string) (string, error) {
	prompt, err := s.prompts.Render(prompts.Structure, prompts.Data{
		Text: domain.TruncateRunes(raw, s.cfg.MaxTextLength),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("structure prompt unavailable, using raw text")
		return s.fallback(raw), nil
	}

	resp, err := s.generator.Generate(llm.WithOperation(ctx, string(prompts.Structure)), s.cfg.Model, prompt, true)
	if err != nil {
		if domain.IsQuotaExceeded(err) {
			return "", err
		}
		s.logger.Warn().Err(err).Msg("structuring failed, using raw text")
		return s.fallback(raw), nil
	}

	var doc domain.StructuredDocument
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &doc); err != nil {
		s.logger.Warn().Err(err).Msg("structured response is not valid JSON, using raw text")
		return s.fallback(raw), nil
	}
	if doc.IsEmpty() {
		s.logger.Warn().Msg("structured response has no sections, using raw text")
		return s.fallback(raw), nil
	}

	out := doc.Render()
	s.logger.Debug().Int("chars", len([]rune(out))).Msg("text structured")
	return out, nil
}

func (s *Structurer) fallback(raw string) string {
	return domain.TruncateRunes(raw, s.cfg.FallbackTextLength)
}

// stripCodeFence removes a ```json ... ``` wrapper some models add even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
