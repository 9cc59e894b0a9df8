// Package pipeline runs monitoring cycles: for every target paper it discovers
// new citing papers and pushes each through classification, summarization,
// and the processing ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/citation-tracker-service/internal/classifier"
	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/ledger"
	"github.com/helixir/citation-tracker-service/internal/notify"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/papersources"
	"github.com/helixir/citation-tracker-service/internal/targets"
)

// Target results recorded in reports and metrics.
const (
	TargetProcessed           = "processed"
	TargetMetadataUnavailable = "metadata_unavailable"
	TargetNoCitations         = "no_citations"
	TargetUpToDate            = "up_to_date"
	TargetFailed              = "failed"
	TargetAborted             = "aborted"
)

// SummaryGenerator writes citation and base summaries.
type SummaryGenerator interface {
	CitationSummarizer
	SummarizeBase(ctx context.Context, target *domain.TargetPaper, fullText string) (string, error)
}

// SummaryStore persists summaries and reports whether a target's base summary exists.
type SummaryStore interface {
	ArtifactWriter
	HasBaseSummary(alias string) bool
}

// Config configures an Orchestrator.
type Config struct {
	// MaxCitationsPerRun caps the per-target worklist. Non-positive means unbounded.
	MaxCitationsPerRun int
	// Concurrency limits papers processed at once. Non-positive means unlimited.
	Concurrency int
	// MaxRetries is the failure count at which a paper becomes terminally failed.
	MaxRetries int
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Provider   papersources.BibliographicProvider
	Classifier PaperClassifier
	Summarizer SummaryGenerator
	Writer     SummaryStore
	// Extractor and Structurer prepare the target's full text for its base
	// summary. Either may be nil, in which case the abstract is used.
	Extractor  classifier.TextExtractor
	Structurer classifier.TextStructurer
	Publisher  notify.Publisher
	// LoadTargets is called at the start of every cycle.
	LoadTargets func() ([]targets.Target, error)
	// OpenLedger is called once per cycle; the cycle closes the store.
	OpenLedger func(ctx context.Context) (ledger.Store, error)
}

// CycleReport summarizes one finished cycle.
type CycleReport struct {
	CycleID    string         `json:"cycle_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Targets    []TargetReport `json:"targets"`
	Error      string         `json:"error,omitempty"`
}

// TargetReport summarizes one target within a cycle.
type TargetReport struct {
	TargetID   string          `json:"target_id"`
	Alias      string          `json:"alias"`
	Result     string          `json:"result"`
	Discovered int             `json:"discovered"`
	Queued     int             `json:"queued"`
	Outcomes   map[Outcome]int `json:"outcomes,omitempty"`
}

// Orchestrator drives monitoring cycles.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	latest *CycleReport
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config, deps Deps, logger zerolog.Logger, metrics *observability.Metrics) *Orchestrator {
	if deps.Publisher == nil {
		deps.Publisher = notify.Nop{}
	}
	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
		metrics: metrics,
	}
}

// LatestReport returns the report of the last finished cycle, or nil.
func (o *Orchestrator) LatestReport() *CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest
}

// Run executes a cycle immediately and then every interval until ctx is
// cancelled. Cycle errors are logged; quota exhaustion stops the loop and is returned.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("check interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunCycle(ctx); err != nil {
			if domain.IsQuotaExceeded(err) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			o.logger.Error().Err(err).Msg("cycle failed")
		}

		o.logger.Info().Dur("interval", interval).Msg("waiting for next cycle")
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("stopping monitoring loop")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle processes every configured target once.
func (o *Orchestrator) RunCycle(ctx context.Context) (report *CycleReport, err error) {
	cycleID := uuid.New().String()
	ctx = observability.WithCycleID(ctx, cycleID)
	logger := observability.WithCycleContext(o.logger, cycleID)

	report = &CycleReport{CycleID: cycleID, StartedAt: time.Now().UTC()}
	o.metrics.RecordCycleStarted()
	logger.Info().Msg("cycle started")

	defer func() {
		report.FinishedAt = time.Now().UTC()
		duration := report.FinishedAt.Sub(report.StartedAt).Seconds()
		if err != nil {
			report.Error = err.Error()
			o.metrics.RecordCycleFailed(duration)
			logger.Error().Err(err).Float64("duration_s", duration).Msg("cycle aborted")
		} else {
			o.metrics.RecordCycleCompleted(duration)
			logger.Info().Float64("duration_s", duration).Int("targets", len(report.Targets)).Msg("cycle completed")
		}
		o.mu.Lock()
		o.latest = report
		o.mu.Unlock()
	}()

	list, err := o.deps.LoadTargets()
	if err != nil {
		return report, fmt.Errorf("load targets: %w", err)
	}
	if len(list) == 0 {
		logger.Warn().Msg("no target papers configured")
		return report, nil
	}

	store, err := o.deps.OpenLedger(ctx)
	if err != nil {
		return report, fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close ledger")
		}
	}()

	processor := NewProcessor(o.deps.Classifier, o.deps.Summarizer, o.deps.Writer, store, o.deps.Publisher, o.cfg.MaxRetries, logger, o.metrics)

	for _, t := range list {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		tr, err := o.processTarget(ctx, logger, store, processor, t)
		report.Targets = append(report.Targets, tr)
		o.metrics.RecordTarget(tr.Result)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (o *Orchestrator) processTarget(ctx context.Context, logger zerolog.Logger, store ledger.Store, processor *Processor, t targets.Target) (TargetReport, error) {
	tr := TargetReport{TargetID: t.ID, Alias: t.Alias}
	ctx = observability.WithTargetAlias(ctx, t.Alias)
	logger = observability.WithTargetContext(logger, t.ID, t.Alias)

	meta, err := o.deps.Provider.GetPaper(ctx, t.ID)
	if err != nil {
		tr.Result = TargetAborted
		return tr, err
	}
	if meta == nil {
		logger.Warn().Msg("target metadata unavailable, skipping target")
		tr.Result = TargetMetadataUnavailable
		return tr, nil
	}
	target := &domain.TargetPaper{Paper: *meta, Alias: t.Alias}
	logger.Info().Str("title", target.Title).Msg("checking target paper")

	if err := o.ensureBaseSummary(ctx, logger, target); err != nil {
		tr.Result = TargetAborted
		return tr, err
	}

	citing, err := o.deps.Provider.GetCitingPapers(ctx, target.ID)
	if err != nil {
		tr.Result = TargetAborted
		return tr, err
	}
	tr.Discovered = len(citing)
	if len(citing) == 0 {
		logger.Info().Msg("no citing papers found")
		tr.Result = TargetNoCitations
		return tr, nil
	}

	byID := make(map[string]domain.CitingPaper, len(citing))
	ids := make([]string, 0, len(citing))
	for _, c := range citing {
		if _, dup := byID[c.ID]; dup {
			continue
		}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	pending, err := store.FilterUnprocessed(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			tr.Result = TargetAborted
			return tr, ctx.Err()
		}
		logger.Error().Err(err).Msg("failed to filter citing papers through the ledger")
		tr.Result = TargetFailed
		return tr, nil
	}
	if o.cfg.MaxCitationsPerRun > 0 && len(pending) > o.cfg.MaxCitationsPerRun {
		pending = pending[:o.cfg.MaxCitationsPerRun]
	}
	tr.Queued = len(pending)
	o.metrics.RecordCitations(tr.Discovered, tr.Queued)

	if len(pending) == 0 {
		logger.Info().Int("discovered", tr.Discovered).Msg("no new citing papers")
		tr.Result = TargetUpToDate
		return tr, nil
	}
	logger.Info().Int("discovered", tr.Discovered).Int("queued", tr.Queued).Msg("processing new citing papers")

	outcomes, err := o.processBatch(ctx, processor, target, pending, byID)
	tr.Outcomes = outcomes
	if err != nil {
		tr.Result = TargetAborted
		return tr, err
	}
	tr.Result = TargetProcessed
	return tr, nil
}

// processBatch processes papers concurrently and waits for all of them.
// Only quota exhaustion cancels the remaining papers.
func (o *Orchestrator) processBatch(ctx context.Context, processor *Processor, target *domain.TargetPaper, ids []string, byID map[string]domain.CitingPaper) (map[Outcome]int, error) {
	var (
		mu       sync.Mutex
		outcomes = make(map[Outcome]int)
	)

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}

	for _, id := range ids {
		paper := byID[id]
		g.Go(func() error {
			outcome, err := processor.Process(gctx, target, &paper)
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return outcomes, err
}

// ensureBaseSummary writes the target's own summary once per alias. Failures
// are logged; only quota exhaustion and cancellation are returned.
func (o *Orchestrator) ensureBaseSummary(ctx context.Context, logger zerolog.Logger, target *domain.TargetPaper) error {
	if o.deps.Summarizer == nil || o.deps.Writer.HasBaseSummary(target.Alias) {
		return nil
	}

	fullText := o.targetText(ctx, logger, target)
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.deps.Structurer != nil && fullText != "" {
		structured, err := o.deps.Structurer.Structure(ctx, fullText)
		if err != nil {
			return err
		}
		fullText = structured
	}

	summary, err := o.deps.Summarizer.SummarizeBase(ctx, target, fullText)
	if err != nil {
		return err
	}
	if summary == "" {
		logger.Warn().Msg("base summary generation failed")
		return nil
	}

	path, err := o.deps.Writer.Write(&target.Paper, summary, target.Alias, domain.BaseSummaryClassification)
	if err != nil {
		logger.Error().Err(err).Msg("failed to write base summary")
		return nil
	}
	o.metrics.RecordSummaryWritten(domain.BaseSummaryClassification)
	logger.Info().Str("path", path).Msg("base summary written")
	return nil
}

func (o *Orchestrator) targetText(ctx context.Context, logger zerolog.Logger, target *domain.TargetPaper) string {
	if o.deps.Extractor == nil {
		return ""
	}
	text, err := o.deps.Extractor.ExtractText(ctx, &target.Paper, 0)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Err(err).Msg("target full text unavailable, summarizing from the abstract")
		}
		return ""
	}
	return text
}
