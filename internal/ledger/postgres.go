package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/database"
	"github.com/helixir/citation-tracker-service/internal/domain"
)

// Compile-time interface verification.
var _ Store = (*PostgresStore)(nil)

// PgxConn is the connection surface PostgresStore needs. *database.DB and
// pgxmock pools satisfy it.
type PgxConn interface {
	database.DBTX
	Ping(ctx context.Context) error
}

// PostgresStore is the PostgreSQL ledger. Every write is a single atomic upsert.
type PostgresStore struct {
	db     PgxConn
	closer func()
	logger zerolog.Logger
}

// NewPostgresStore creates a store on db. closer, if non-nil, runs on Close.
func NewPostgresStore(db PgxConn, closer func(), logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		closer: closer,
		logger: logger.With().Str("component", "ledger").Str("driver", "postgres").Logger(),
	}
}

// StatusOf implements Store.
func (s *PostgresStore) StatusOf(ctx context.Context, paperID string) (domain.LedgerStatus, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM history WHERE paper_id = $1`, paperID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerStatusNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ledger status: %w", err)
	}
	return domain.LedgerStatus(status), nil
}

// MarkProcessed implements Store. The retry count of an earlier failure is kept.
func (s *PostgresStore) MarkProcessed(ctx context.Context, paperID string) error {
	query := `
		INSERT INTO history (paper_id, status, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (paper_id) DO UPDATE SET
			status = EXCLUDED.status,
			processed_at = EXCLUDED.processed_at`

	if _, err := s.db.Exec(ctx, query, paperID, string(domain.LedgerStatusProcessed), nowUTC()); err != nil {
		return fmt.Errorf("failed to mark paper processed: %w", err)
	}
	s.logger.Debug().Str("paper_id", paperID).Msg("paper marked processed")
	return nil
}

// RecordFailure implements Store. The increment and the status decision
// happen inside one INSERT ... ON CONFLICT statement.
func (s *PostgresStore) RecordFailure(ctx context.Context, paperID, message string, maxRetries int) (*domain.LedgerEntry, error) {
	query := `
		INSERT INTO history (paper_id, status, processed_at, retry_count, error_message)
		VALUES ($1, CASE WHEN 1 >= $3::int THEN 'failed' ELSE 'pending' END, $4, 1, $2)
		ON CONFLICT (paper_id) DO UPDATE SET
			retry_count = COALESCE(history.retry_count, 0) + 1,
			status = CASE WHEN COALESCE(history.retry_count, 0) + 1 >= $3::int THEN 'failed' ELSE 'pending' END,
			error_message = EXCLUDED.error_message,
			processed_at = EXCLUDED.processed_at
		RETURNING paper_id, status, retry_count, error_message, processed_at`

	var (
		entry  domain.LedgerEntry
		status string
	)
	err := s.db.QueryRow(ctx, query, paperID, message, maxRetries, nowUTC()).
		Scan(&entry.PaperID, &status, &entry.RetryCount, &entry.ErrorMessage, &entry.ProcessedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}
	entry.Status = domain.LedgerStatus(status)

	logFailure(s.logger, &entry, maxRetries)
	return &entry, nil
}

// FilterUnprocessed implements Store.
func (s *PostgresStore) FilterUnprocessed(ctx context.Context, paperIDs []string) ([]string, error) {
	if len(paperIDs) == 0 {
		return []string{}, nil
	}

	terminal := make(map[string]struct{})
	for start := 0; start < len(paperIDs); start += filterChunkSize {
		chunk := paperIDs[start:min(start+filterChunkSize, len(paperIDs))]

		rows, err := s.db.Query(ctx,
			`SELECT paper_id FROM history WHERE paper_id = ANY($1) AND status = ANY($2)`,
			chunk, terminalStatuses,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to filter ledger: %w", err)
		}

		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper ids: %w", err)
		}
		for _, id := range ids {
			terminal[id] = struct{}{}
		}
	}

	return keepUnprocessed(paperIDs, terminal), nil
}

// Entry implements Store.
func (s *PostgresStore) Entry(ctx context.Context, paperID string) (*domain.LedgerEntry, error) {
	var (
		entry   domain.LedgerEntry
		status  string
		retries *int
	)
	err := s.db.QueryRow(ctx,
		`SELECT paper_id, status, processed_at, retry_count, error_message FROM history WHERE paper_id = $1`,
		paperID,
	).Scan(&entry.PaperID, &status, &entry.ProcessedAt, &retries, &entry.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("ledger entry", paperID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry: %w", err)
	}

	entry.Status = domain.LedgerStatus(status)
	if retries != nil {
		entry.RetryCount = *retries
	}
	return &entry, nil
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger rows: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ledger count: %w", err)
		}
		stats.add(status, int(n))
	}
	return stats, rows.Err()
}

// Reset implements Store.
func (s *PostgresStore) Reset(ctx context.Context, paperID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM history WHERE paper_id = $1`, paperID)
	if err != nil {
		return false, fmt.Errorf("failed to reset ledger entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
