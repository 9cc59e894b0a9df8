package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation tracker.
// Metrics are organized by subsystem: cycles, papers, classification, documents,
// ledger, sources, and LLM operations. All counters and histograms are registered
// via promauto with the default Prometheus registry.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// CyclesStarted counts monitoring cycles started.
	CyclesStarted prometheus.Counter

	// CyclesCompleted counts cycles that processed every target.
	CyclesCompleted prometheus.Counter

	// CyclesFailed counts cycles aborted by a fatal error.
	CyclesFailed prometheus.Counter

	// CycleDuration observes the duration of cycles in seconds.
	CycleDuration prometheus.Histogram

	// TargetsProcessed counts targets handled per cycle, labeled by result.
	TargetsProcessed *prometheus.CounterVec

	// CitationsDiscovered counts citing papers returned by the bibliographic provider.
	CitationsDiscovered prometheus.Counter

	// CitationsQueued counts citing papers dispatched for processing after ledger filtering and capping.
	CitationsQueued prometheus.Counter

	// PapersProcessed counts final per-paper outcomes (accepted, rejected, survey, failed).
	PapersProcessed *prometheus.CounterVec

	// Classifications counts classifier verdicts, labeled by stage and result.
	Classifications *prometheus.CounterVec

	// DocumentResolutions counts resolved PDF locations, labeled by resolution source.
	DocumentResolutions *prometheus.CounterVec

	// DocumentFailures counts failed text extractions, labeled by reason.
	DocumentFailures *prometheus.CounterVec

	// SummariesWritten counts written summary artifacts, labeled by kind (citation, base).
	SummariesWritten *prometheus.CounterVec

	// LedgerFailures counts recorded failures, labeled by the resulting status.
	LedgerFailures *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to external sources, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed requests to external sources, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes external source request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Cycles
		CyclesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_started_total",
			Help:      "Total number of monitoring cycles started",
		}),
		CyclesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_completed_total",
			Help:      "Total number of monitoring cycles completed",
		}),
		CyclesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_failed_total",
			Help:      "Total number of monitoring cycles aborted",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of monitoring cycles in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		TargetsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_processed_total",
			Help:      "Total number of target papers handled by result",
		}, []string{"result"}),

		// Papers
		CitationsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_discovered_total",
			Help:      "Total number of citing papers returned by the bibliographic provider",
		}),
		CitationsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_queued_total",
			Help:      "Total number of citing papers dispatched for processing",
		}),
		PapersProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Total number of citing papers by final outcome",
		}, []string{"outcome"}),
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Total number of classifier verdicts by stage and result",
		}, []string{"stage", "result"}),

		// Documents
		DocumentResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_resolutions_total",
			Help:      "Total number of resolved document locations by source",
		}, []string{"source"}),
		DocumentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_failures_total",
			Help:      "Total number of failed document extractions by reason",
		}, []string{"reason"}),
		SummariesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_written_total",
			Help:      "Total number of summary artifacts written by kind",
		}, []string{"kind"}),

		// Ledger
		LedgerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_failures_total",
			Help:      "Total number of recorded processing failures by resulting status",
		}, []string{"status"}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to external sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to external sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of external source requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited responses from external sources",
		}, []string{"source"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation", "model"}),
	}
}

// RecordCycleStarted records that a cycle has started.
func (m *Metrics) RecordCycleStarted() {
	if m == nil {
		return
	}
	m.CyclesStarted.Inc()
}

// RecordCycleCompleted records that a cycle has completed.
func (m *Metrics) RecordCycleCompleted(durationSeconds float64) {
	if m == nil {
		return
	}
	m.CyclesCompleted.Inc()
	m.CycleDuration.Observe(durationSeconds)
}

// RecordCycleFailed records that a cycle was aborted.
func (m *Metrics) RecordCycleFailed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.CyclesFailed.Inc()
	m.CycleDuration.Observe(durationSeconds)
}

// RecordTarget records the result of handling one target paper.
func (m *Metrics) RecordTarget(result string) {
	if m == nil {
		return
	}
	m.TargetsProcessed.WithLabelValues(result).Inc()
}

// RecordCitations records discovered and queued citation counts for a target.
func (m *Metrics) RecordCitations(discovered, queued int) {
	if m == nil {
		return
	}
	m.CitationsDiscovered.Add(float64(discovered))
	m.CitationsQueued.Add(float64(queued))
}

// RecordPaperOutcome records the final outcome of a citing paper.
func (m *Metrics) RecordPaperOutcome(outcome string) {
	if m == nil {
		return
	}
	m.PapersProcessed.WithLabelValues(outcome).Inc()
}

// RecordClassification records a classifier verdict.
func (m *Metrics) RecordClassification(stage, result string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(stage, result).Inc()
}

// RecordDocumentResolved records where a document URL was found.
func (m *Metrics) RecordDocumentResolved(source string) {
	if m == nil {
		return
	}
	m.DocumentResolutions.WithLabelValues(source).Inc()
}

// RecordDocumentFailed records a failed extraction.
func (m *Metrics) RecordDocumentFailed(reason string) {
	if m == nil {
		return
	}
	m.DocumentFailures.WithLabelValues(reason).Inc()
}

// RecordSummaryWritten records a written summary artifact.
func (m *Metrics) RecordSummaryWritten(kind string) {
	if m == nil {
		return
	}
	m.SummariesWritten.WithLabelValues(kind).Inc()
}

// RecordLedgerFailure records a ledger failure write and the status it produced.
func (m *Metrics) RecordLedgerFailure(status string) {
	if m == nil {
		return
	}
	m.LedgerFailures.WithLabelValues(status).Inc()
}

// RecordSourceRequest records a successful request to an external source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an external source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordLLMRequest records a successful LLM API request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM API request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
