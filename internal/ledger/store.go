// Package ledger records the processing outcome of every citing paper so
// that each cycle only works on papers that have not reached a terminal state.
//
// A paper is either absent, processed, pending (failed fewer than
// max_retries times) or failed. Processed and failed are terminal.
package ledger

import (
	"context"
	"time"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// filterChunkSize bounds the number of ids bound into one IN clause.
const filterChunkSize = 500

// Store is the processing ledger.
type Store interface {
	// StatusOf returns the paper's status, or LedgerStatusNotFound when it has no row.
	StatusOf(ctx context.Context, paperID string) (domain.LedgerStatus, error)

	// MarkProcessed records a terminal success.
	MarkProcessed(ctx context.Context, paperID string) error

	// RecordFailure increments the paper's retry count and stores message.
	// The status becomes failed once the count reaches maxRetries, pending before that.
	RecordFailure(ctx context.Context, paperID, message string, maxRetries int) (*domain.LedgerEntry, error)

	// FilterUnprocessed returns the ids that are not processed or failed, in input order.
	FilterUnprocessed(ctx context.Context, paperIDs []string) ([]string, error)

	// Entry returns the paper's row or a *domain.NotFoundError.
	Entry(ctx context.Context, paperID string) (*domain.LedgerEntry, error)

	// Stats counts rows per status.
	Stats(ctx context.Context) (*Stats, error)

	// Reset deletes the paper's row so the next cycle reconsiders it.
	// It reports whether a row existed.
	Reset(ctx context.Context, paperID string) (bool, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}

// Stats is a per-status row count.
type Stats struct {
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

func (s *Stats) add(status string, n int) {
	switch domain.LedgerStatus(status) {
	case domain.LedgerStatusProcessed:
		s.Processed += n
	case domain.LedgerStatusPending:
		s.Pending += n
	case domain.LedgerStatusFailed:
		s.Failed += n
	}
	s.Total += n
}

// failureStatus is the status after a failure bringing the retry count to retryCount.
func failureStatus(retryCount, maxRetries int) domain.LedgerStatus {
	if retryCount >= maxRetries {
		return domain.LedgerStatusFailed
	}
	return domain.LedgerStatusPending
}

// keepUnprocessed returns ids not in terminal, preserving order.
func keepUnprocessed(ids []string, terminal map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, done := terminal[id]; !done {
			out = append(out, id)
		}
	}
	return out
}

var terminalStatuses = []string{
	string(domain.LedgerStatusProcessed),
	string(domain.LedgerStatusFailed),
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
