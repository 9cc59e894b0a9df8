package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_citation_tracker_new")

	assert.NotNil(t, m.CyclesStarted)
	assert.NotNil(t, m.CyclesCompleted)
	assert.NotNil(t, m.CyclesFailed)
	assert.NotNil(t, m.CycleDuration)
	assert.NotNil(t, m.PapersProcessed)
	assert.NotNil(t, m.Classifications)
	assert.NotNil(t, m.DocumentResolutions)
	assert.NotNil(t, m.LedgerFailures)
	assert.NotNil(t, m.SourceRequestsTotal)
	assert.NotNil(t, m.LLMRequestsTotal)
}

func TestRecordCycle(t *testing.T) {
	m := NewMetrics("test_cycle")

	m.RecordCycleStarted()
	m.RecordCycleCompleted(12.5)
	m.RecordCycleFailed(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CyclesStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CyclesCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CyclesFailed))

	histCount, err := getHistogramSampleCount(m.CycleDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), histCount)
}

func TestRecordCitations(t *testing.T) {
	m := NewMetrics("test_citations")

	m.RecordCitations(10, 3)
	assert.Equal(t, float64(10), testutil.ToFloat64(m.CitationsDiscovered))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.CitationsQueued))
}

func TestRecordPaperOutcome(t *testing.T) {
	m := NewMetrics("test_paper_outcome")

	m.RecordPaperOutcome("accepted")
	m.RecordPaperOutcome("accepted")
	m.RecordPaperOutcome("survey")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PapersProcessed.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PapersProcessed.WithLabelValues("survey")))
}

func TestRecordClassification(t *testing.T) {
	m := NewMetrics("test_classification")

	m.RecordClassification("stage1", "uncertain")
	m.RecordClassification("stage2", "same_task")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Classifications.WithLabelValues("stage1", "uncertain")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Classifications.WithLabelValues("stage2", "same_task")))
}

func TestRecordDocument(t *testing.T) {
	m := NewMetrics("test_document")

	m.RecordDocumentResolved("arxiv_id")
	m.RecordDocumentFailed("empty_text")
	m.RecordSummaryWritten("base")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentResolutions.WithLabelValues("arxiv_id")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentFailures.WithLabelValues("empty_text")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SummariesWritten.WithLabelValues("base")))
}

func TestRecordLedgerFailure(t *testing.T) {
	m := NewMetrics("test_ledger_failure")

	m.RecordLedgerFailure("pending")
	m.RecordLedgerFailure("failed")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LedgerFailures.WithLabelValues("pending")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LedgerFailures.WithLabelValues("failed")))
}

func TestRecordSourceRequest(t *testing.T) {
	m := NewMetrics("test_source_request")

	m.RecordSourceRequest("semantic_scholar", "citations", 0.5)
	m.RecordSourceRequestFailed("semantic_scholar", "paper", "http_500")
	m.RecordSourceRateLimited("semantic_scholar")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("semantic_scholar", "citations")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsFailed.WithLabelValues("semantic_scholar", "paper", "http_500")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRateLimited.WithLabelValues("semantic_scholar")))
}

func TestRecordLLMRequest(t *testing.T) {
	m := NewMetrics("test_llm_request")

	m.RecordLLMRequest("classify", "gemini-2.5-flash", 1.2)
	m.RecordLLMRequestFailed("summarize", "gemini-2.5-pro", "quota_exceeded")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("classify", "gemini-2.5-flash")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("summarize", "gemini-2.5-pro", "quota_exceeded")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordCycleStarted()
		m.RecordCycleCompleted(1)
		m.RecordPaperOutcome("accepted")
		m.RecordClassification("stage1", "same_task")
		m.RecordLLMRequest("classify", "model", 1)
		m.RecordSourceRateLimited("arxiv")
	})
}

func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
