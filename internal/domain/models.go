// Package domain provides domain models and business logic for the Citation Tracker Service.
package domain

import "time"

// LedgerStatus represents the processing state of a citing paper in the ledger.
// These values must match the status column of the history table.
type LedgerStatus string

const (
	LedgerStatusProcessed LedgerStatus = "processed"
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusFailed    LedgerStatus = "failed"
	// LedgerStatusNotFound is returned by lookups for identifiers with no row. It is never stored.
	LedgerStatusNotFound LedgerStatus = "not_found"
)

// IsTerminal returns true if the paper must never be processed again.
func (s LedgerStatus) IsTerminal() bool {
	switch s {
	case LedgerStatusProcessed, LedgerStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s LedgerStatus) String() string {
	return string(s)
}

// LedgerEntry is the durable processing record of one citing paper.
type LedgerEntry struct {
	PaperID      string       `json:"paper_id"`
	Status       LedgerStatus `json:"status"`
	RetryCount   int          `json:"retry_count"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	ProcessedAt  time.Time    `json:"processed_at"`
}

// Classification is the verdict of the two-stage classifier.
type Classification string

const (
	ClassificationSameTask Classification = "same_task"
	ClassificationOther    Classification = "other"
	// ClassificationUncertain is only produced by the first pass and means "escalate".
	ClassificationUncertain Classification = "uncertain"
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// IsAccepted returns true if the paper should be summarized.
func (c Classification) IsAccepted() bool {
	return c == ClassificationSameTask
}

// BaseSummaryClassification marks the target paper's own summary for the artifact writer.
const BaseSummaryClassification = "_base"
