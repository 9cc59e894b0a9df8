// Package observability provides logging and metrics support for the
// citation tracker service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for cycles, papers, documents, sources, and LLM calls
//   - Context helpers for propagating cycle and request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "agent.log",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("target_alias", alias).Msg("cycle started")
//
// A file Output is also mirrored to stdout.
//
// Add cycle and paper context to a logger:
//
//	logger = observability.WithCycleContext(logger, cycleID)
//	logger = observability.WithPaperContext(logger, paperID, title)
//
// # Metrics
//
//	metrics := observability.NewMetrics("citation_tracker")
//	metrics.RecordPaperOutcome("accepted")
//	metrics.RecordClassification("stage1", "uncertain")
//
// A nil *Metrics is accepted everywhere and records nothing.
//
// # Standard Fields
//
//   - cycle_id: Monitoring cycle identifier
//   - target_id, target_alias: Target paper being monitored
//   - paper_id, title: Citing paper being processed
//   - source: External source (semantic_scholar, arxiv, gemini, etc.)
//   - stage: Classifier stage (stage1, stage2)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
