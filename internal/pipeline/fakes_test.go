package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-tracker-service/internal/classifier"
	"github.com/helixir/citation-tracker-service/internal/config"
	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/ledger"
	"github.com/helixir/citation-tracker-service/internal/llm"
	"github.com/helixir/citation-tracker-service/internal/observability"
)

var quotaErr = &llm.APIError{Provider: "gemini", StatusCode: 429, Type: "RESOURCE_EXHAUSTED"}

var (
	metricsOnce   sync.Once
	sharedMetrics *observability.Metrics
)

func testMetrics() *observability.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = observability.NewMetrics("pipeline_test")
	})
	return sharedMetrics
}

// fakeClassifier answers by paper id. Unknown ids are accepted at the first pass.
type fakeClassifier struct {
	mu      sync.Mutex
	results map[string]*classifier.Result
	errs    map[string]error
	panics  map[string]bool
	calls   []string
	delay   time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		results: map[string]*classifier.Result{},
		errs:    map[string]error{},
		panics:  map[string]bool{},
	}
}

func (f *fakeClassifier) Classify(ctx context.Context, _ *domain.TargetPaper, paper *domain.CitingPaper) (*classifier.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, paper.ID)
	res, err, boom := f.results[paper.ID], f.errs[paper.ID], f.panics[paper.ID]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if boom {
		panic("boom")
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &classifier.Result{
			Classification: domain.ClassificationSameTask,
			Stage:          classifier.StageSecondPass,
			StructuredText: "## Method\nStructured text.",
		}
	}
	return res, nil
}

func (f *fakeClassifier) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSummarizer struct {
	mu        sync.Mutex
	summary   string
	err       error
	base      string
	baseErr   error
	fullTexts []string
	baseCalls int
	baseTexts []string
}

func (f *fakeSummarizer) SummarizeCitation(_ context.Context, _ *domain.TargetPaper, _ *domain.CitingPaper, fullText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullTexts = append(f.fullTexts, fullText)
	return f.summary, f.err
}

func (f *fakeSummarizer) SummarizeBase(_ context.Context, _ *domain.TargetPaper, fullText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseCalls++
	f.baseTexts = append(f.baseTexts, fullText)
	return f.base, f.baseErr
}

type fakeProvider struct {
	mu      sync.Mutex
	papers  map[string]*domain.Paper
	citing  map[string][]domain.CitingPaper
	fetched []string
}

func (f *fakeProvider) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	p, ok := f.papers[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProvider) GetCitingPapers(ctx context.Context, id string) ([]domain.CitingPaper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CitingPaper(nil), f.citing[id]...), nil
}

func (f *fakeProvider) Name() string { return "fake" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.CitationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.CitationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.events))
	for _, e := range p.events {
		out[e.AggregateID] = e.EventType
	}
	return out
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(context.Context, *domain.Paper, int) (string, error) {
	return f.text, f.err
}

type fakeStructurer struct {
	out string
	err error
}

func (f *fakeStructurer) Structure(context.Context, string) (string, error) {
	return f.out, f.err
}

func ledgerConfig(t *testing.T) config.LedgerConfig {
	t.Helper()
	return config.LedgerConfig{
		Driver:      "sqlite",
		SQLitePath:  filepath.Join(t.TempDir(), "ledger.db"),
		AutoMigrate: true,
	}
}

func openLedger(t *testing.T, cfg config.LedgerConfig) ledger.Store {
	t.Helper()
	store, err := ledger.Open(context.Background(), cfg, config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func citing(id, title string) domain.CitingPaper {
	return domain.CitingPaper{Paper: domain.Paper{ID: id, Title: title, Abstract: "Abstract of " + title, Year: 2024, URL: "https://example.org/" + id}}
}
