// Package classifier decides whether a citing paper works on the same task
// as the target paper it cites.
//
// Classification runs in two stages. The first pass is cheap: it compares
// abstracts, or a short excerpt when the citing paper has no abstract, and
// can only accept (same_task) or escalate (uncertain). The second pass reads
// the structured full text and returns the final verdict (same_task or other).
// Survey and review papers are rejected before either stage runs.
package classifier

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/llm"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/prompts"
)

// Stage names used in results and metrics.
const (
	StageSurvey     = "survey"
	StageFirstPass  = "first_pass"
	StageSecondPass = "second_pass"
)

// Default configuration values.
const (
	DefaultSnippetPages          = 3
	DefaultAbstractBackfillChars = 1500
)

// surveyKeywords mark a title as a survey. Matched as case-insensitive substrings.
var surveyKeywords = []string{
	"survey",
	"review",
	"overview",
	"tutorial",
	"state of the art",
	"state-of-the-art",
	"systematic literature",
}

// TextExtractor extracts plain text from a paper's PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, paper *domain.Paper, maxPages int) (string, error)
}

// TextStructurer turns raw paper text into sectioned Markdown.
type TextStructurer interface {
	Structure(ctx context.Context, raw string) (string, error)
}

// Config configures a Classifier.
type Config struct {
	// Model is the classification model name.
	Model string
	// SnippetPages is how many pages the first pass reads when a paper has no abstract.
	SnippetPages int
	// AbstractBackfillChars bounds the abstract filled in from extracted text.
	AbstractBackfillChars int
}

// Result is the outcome of Classify.
type Result struct {
	Classification domain.Classification
	// Stage is the stage that produced Classification.
	Stage string
	// StructuredText is the structured full text when the second pass ran.
	StructuredText string
}

// IsSurvey returns true for papers rejected by policy without classification.
func (r *Result) IsSurvey() bool {
	return r.Stage == StageSurvey
}

// Classifier runs the two-stage classification. It is safe for concurrent use;
// the only paper field it mutates is the citing paper's abstract.
type Classifier struct {
	generator  llm.Generator
	prompts    *prompts.Library
	extractor  TextExtractor
	structurer TextStructurer
	cfg        Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a Classifier.
func New(cfg Config, generator llm.Generator, library *prompts.Library, extractor TextExtractor, structurer TextStructurer, logger zerolog.Logger, metrics *observability.Metrics) *Classifier {
	if cfg.SnippetPages <= 0 {
		cfg.SnippetPages = DefaultSnippetPages
	}
	if cfg.AbstractBackfillChars <= 0 {
		cfg.AbstractBackfillChars = DefaultAbstractBackfillChars
	}
	return &Classifier{
		generator:  generator,
		prompts:    library,
		extractor:  extractor,
		structurer: structurer,
		cfg:        cfg,
		logger:     logger.With().Str("component", "classifier").Logger(),
		metrics:    metrics,
	}
}

// IsSurvey reports whether paper is a survey or review: tagged with the
// "Review" publication type or titled with a survey keyword.
func IsSurvey(paper *domain.Paper) bool {
	if paper.HasPublicationType("Review") {
		return true
	}
	title := strings.ToLower(paper.Title)
	for _, kw := range surveyKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// Classify rejects surveys, runs the first pass, and runs the second pass
// only when the first pass is uncertain.
//
// Errors are document failures (*domain.DocumentUnavailableError), quota
// exhaustion, or context cancellation. Model failures are not errors.
func (c *Classifier) Classify(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper) (*Result, error) {
	logger := c.logger.With().Str("paper_id", paper.ID).Logger()

	if IsSurvey(&paper.Paper) {
		logger.Info().Str("title", paper.Title).Msg("survey paper rejected")
		c.metrics.RecordClassification(StageSurvey, string(domain.ClassificationOther))
		return &Result{Classification: domain.ClassificationOther, Stage: StageSurvey}, nil
	}

	first, err := c.FirstPass(ctx, target, paper)
	if err != nil {
		return nil, err
	}
	if first == domain.ClassificationSameTask {
		logger.Info().Msg("first pass accepted, skipping full-text analysis")
		return &Result{Classification: first, Stage: StageFirstPass}, nil
	}

	logger.Info().Msg("first pass uncertain, running full-text analysis")
	final, structured, err := c.SecondPass(ctx, target, paper)
	if err != nil {
		return nil, err
	}
	return &Result{Classification: final, Stage: StageSecondPass, StructuredText: structured}, nil
}

// FirstPass returns same_task or uncertain. A paper without an abstract is
// classified from the text of its first pages, which then becomes its abstract.
func (c *Classifier) FirstPass(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper) (domain.Classification, error) {
	var (
		name prompts.Name
		data = prompts.Data{
			TargetTitle:    target.Title,
			TargetAbstract: target.Abstract,
			Title:          paper.Title,
		}
	)

	if paper.HasAbstract() {
		name = prompts.ClassifyAbstract
		data.Abstract = paper.Abstract
	} else {
		snippet, err := c.extractor.ExtractText(ctx, &paper.Paper, c.cfg.SnippetPages)
		if err != nil {
			return "", err
		}
		name = prompts.ClassifySnippet
		data.Snippet = snippet
		paper.BackfillAbstract(snippet, c.cfg.AbstractBackfillChars)
	}

	verdict, err := c.ask(ctx, name, data)
	switch {
	case err == nil:
	case isFatal(ctx, err):
		return "", err
	default:
		c.logger.Warn().Err(err).Str("paper_id", paper.ID).Msg("first pass model call failed, escalating")
		verdict = false
	}

	result := domain.ClassificationUncertain
	if verdict {
		result = domain.ClassificationSameTask
	}
	c.metrics.RecordClassification(StageFirstPass, string(result))
	return result, nil
}

// SecondPass extracts and structures the full text, then returns same_task or
// other together with the structured text.
func (c *Classifier) SecondPass(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper) (domain.Classification, string, error) {
	raw, err := c.extractor.ExtractText(ctx, &paper.Paper, 0)
	if err != nil {
		return "", "", err
	}
	if !paper.HasAbstract() {
		paper.BackfillAbstract(raw, c.cfg.AbstractBackfillChars)
	}

	structured, err := c.structurer.Structure(ctx, raw)
	if err != nil {
		return "", "", err
	}

	verdict, err := c.ask(ctx, prompts.ClassifyFullText, prompts.Data{
		TargetTitle:    target.Title,
		TargetAbstract: target.Abstract,
		Title:          paper.Title,
		Abstract:       paper.Abstract,
		FullText:       structured,
	})
	switch {
	case err == nil:
	case isFatal(ctx, err):
		return "", "", err
	default:
		c.logger.Warn().Err(err).Str("paper_id", paper.ID).Msg("second pass model call failed, classifying as other")
		verdict = false
	}

	result := domain.ClassificationOther
	if verdict {
		result = domain.ClassificationSameTask
	}
	c.metrics.RecordClassification(StageSecondPass, string(result))
	return result, structured, nil
}

// ask renders a yes/no prompt and reports whether the answer contains YES.
func (c *Classifier) ask(ctx context.Context, name prompts.Name, data prompts.Data) (bool, error) {
	prompt, err := c.prompts.Render(name, data)
	if err != nil {
		return false, err
	}

	resp, err := c.generator.Generate(llm.WithOperation(ctx, string(name)), c.cfg.Model, prompt, false)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(resp), "YES"), nil
}

// isFatal reports whether a model error must abort the paper instead of
// degrading: quota exhaustion, or the caller's context ending.
func isFatal(ctx context.Context, err error) bool {
	return domain.IsQuotaExceeded(err) || ctx.Err() != nil
}
