package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/classifier"
	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/ledger"
	"github.com/helixir/citation-tracker-service/internal/notify"
	"github.com/helixir/citation-tracker-service/internal/observability"
)

// Outcome is the final disposition of one citing paper within a cycle.
type Outcome string

// Paper outcomes.
const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeSurvey    Outcome = "survey"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeAborted   Outcome = "aborted"
)

// Failure messages recorded in the ledger.
const (
	msgSummaryFailed = "summary generation failed"
)

// PaperClassifier decides a citing paper's classification.
type PaperClassifier interface {
	Classify(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper) (*classifier.Result, error)
}

// CitationSummarizer writes the summary of an accepted citing paper.
type CitationSummarizer interface {
	SummarizeCitation(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper, fullText string) (string, error)
}

// ArtifactWriter persists summaries.
type ArtifactWriter interface {
	Write(paper *domain.Paper, summary, alias, classification string) (string, error)
}

// Processor handles one citing paper end to end: classify, summarize, persist,
// and record the result in the ledger. It is safe for concurrent use.
type Processor struct {
	classifier PaperClassifier
	summarizer CitationSummarizer
	writer     ArtifactWriter
	store      ledger.Store
	publisher  notify.Publisher
	maxRetries int
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewProcessor creates a Processor bound to one ledger store. A nil publisher disables events.
func NewProcessor(
	cls PaperClassifier,
	summarizer CitationSummarizer,
	writer ArtifactWriter,
	store ledger.Store,
	publisher notify.Publisher,
	maxRetries int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Processor {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Processor{
		classifier: cls,
		summarizer: summarizer,
		writer:     writer,
		store:      store,
		publisher:  publisher,
		maxRetries: maxRetries,
		logger:     logger,
		metrics:    metrics,
	}
}

// Process runs the paper through the pipeline and records the result.
//
// Per-paper failures are written to the ledger and never returned. The only
// returned error is quota exhaustion, which must abort the cycle. When ctx is
// cancelled the paper is left untouched so the next cycle retries it.
func (p *Processor) Process(ctx context.Context, target *domain.TargetPaper, paper *domain.CitingPaper) (outcome Outcome, err error) {
	logger := observability.WithPaperContext(p.logger, paper.ID, paper.Title)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("recovered from panic while processing paper")
			outcome = p.fail(ctx, logger, paper.ID, fmt.Sprintf("unexpected error: %v", r))
			err = nil
		}
		p.metrics.RecordPaperOutcome(string(outcome))
	}()

	if ctx.Err() != nil {
		return OutcomeCancelled, nil
	}

	result, err := p.classifier.Classify(ctx, target, paper)
	if err != nil {
		return p.handleError(ctx, logger, paper.ID, err)
	}

	switch {
	case result.IsSurvey():
		logger.Info().Msg("skipping survey paper")
		p.markProcessed(ctx, logger, paper.ID)
		p.publish(ctx, logger, domain.EventTypeCitationRejected, target, paper, domain.ClassificationOther, StageReason(result), "")
		return OutcomeSurvey, nil
	case !result.Classification.IsAccepted():
		logger.Info().Str("stage", result.Stage).Msg("paper addresses a different task")
		p.markProcessed(ctx, logger, paper.ID)
		p.publish(ctx, logger, domain.EventTypeCitationRejected, target, paper, result.Classification, StageReason(result), "")
		return OutcomeRejected, nil
	}

	summary, err := p.summarizer.SummarizeCitation(ctx, target, paper, result.StructuredText)
	if err != nil {
		return p.handleError(ctx, logger, paper.ID, err)
	}
	if strings.TrimSpace(summary) == "" {
		if ctx.Err() != nil {
			return OutcomeCancelled, nil
		}
		return p.fail(ctx, logger, paper.ID, msgSummaryFailed), nil
	}

	path, err := p.writer.Write(&paper.Paper, summary, target.Alias, string(result.Classification))
	if err != nil {
		logger.Error().Err(err).Msg("failed to write summary")
		return p.fail(ctx, logger, paper.ID, fmt.Sprintf("failed to write summary: %v", err)), nil
	}
	p.metrics.RecordSummaryWritten(string(result.Classification))

	p.markProcessed(ctx, logger, paper.ID)
	p.publish(ctx, logger, domain.EventTypeCitationAccepted, target, paper, result.Classification, StageReason(result), path)
	logger.Info().Str("stage", result.Stage).Str("path", path).Msg("citing paper accepted")
	return OutcomeAccepted, nil
}

// StageReason describes which stage decided a result.
func StageReason(result *classifier.Result) string {
	switch result.Stage {
	case classifier.StageSurvey:
		return "survey or review paper"
	case classifier.StageFirstPass:
		return "decided from abstract"
	case classifier.StageSecondPass:
		return "decided from full text"
	default:
		return result.Stage
	}
}

func (p *Processor) handleError(ctx context.Context, logger zerolog.Logger, paperID string, err error) (Outcome, error) {
	if domain.IsQuotaExceeded(err) {
		logger.Error().Err(err).Msg("model quota exhausted")
		return OutcomeAborted, err
	}
	if ctx.Err() != nil {
		logger.Debug().Err(err).Msg("processing cancelled")
		return OutcomeCancelled, nil
	}

	var docErr *domain.DocumentUnavailableError
	if errors.As(err, &docErr) {
		logger.Warn().Str("cause", docErr.Cause).Msg("document unavailable")
		return p.fail(ctx, logger, paperID, docErr.Cause), nil
	}

	logger.Error().Err(err).Msg("unexpected error while processing paper")
	return p.fail(ctx, logger, paperID, fmt.Sprintf("unexpected error: %v", err)), nil
}

func (p *Processor) fail(ctx context.Context, logger zerolog.Logger, paperID, message string) Outcome {
	entry, err := p.store.RecordFailure(ctx, paperID, message, p.maxRetries)
	if err != nil {
		logger.Error().Err(err).Str("message", message).Msg("failed to record ledger failure")
		return OutcomeFailed
	}
	p.metrics.RecordLedgerFailure(string(entry.Status))
	logger.Warn().
		Str("status", string(entry.Status)).
		Int("retry_count", entry.RetryCount).
		Str("message", message).
		Msg("paper failed")
	return OutcomeFailed
}

func (p *Processor) markProcessed(ctx context.Context, logger zerolog.Logger, paperID string) {
	if err := p.store.MarkProcessed(ctx, paperID); err != nil {
		logger.Error().Err(err).Msg("failed to mark paper processed")
	}
}

func (p *Processor) publish(ctx context.Context, logger zerolog.Logger, eventType string, target *domain.TargetPaper, paper *domain.CitingPaper, cls domain.Classification, reason, path string) {
	event, err := domain.NewCitationEvent(eventType, observability.CycleIDFromContext(ctx), domain.CitationDecisionPayload{
		TargetID:       target.ID,
		TargetAlias:    target.Alias,
		PaperID:        paper.ID,
		Title:          paper.Title,
		Year:           paper.Year,
		URL:            paper.URL,
		Classification: cls,
		Reason:         reason,
		SummaryPath:    path,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to build citation event")
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish citation event")
	}
}
