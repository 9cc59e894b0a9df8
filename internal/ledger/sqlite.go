package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// Compile-time interface verification.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite ledger. Writes are serialized by the handle's
// single connection; RecordFailure reads and writes in one transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore wraps an open SQLite handle whose schema is migrated.
func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "ledger").Str("driver", "sqlite").Logger(),
	}
}

// StatusOf implements Store.
func (s *SQLiteStore) StatusOf(ctx context.Context, paperID string) (domain.LedgerStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM history WHERE paper_id = ?`, paperID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerStatusNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ledger status: %w", err)
	}
	return domain.LedgerStatus(status), nil
}

// MarkProcessed implements Store. The retry count of an earlier failure is kept.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, paperID string) error {
	query, args, err := sq.Insert("history").
		Columns("paper_id", "status", "processed_at").
		Values(paperID, string(domain.LedgerStatusProcessed), nowUTC()).
		Suffix("ON CONFLICT(paper_id) DO UPDATE SET status = excluded.status, processed_at = excluded.processed_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark paper processed: %w", err)
	}
	s.logger.Debug().Str("paper_id", paperID).Msg("paper marked processed")
	return nil
}

// RecordFailure implements Store.
func (s *SQLiteStore) RecordFailure(ctx context.Context, paperID, message string, maxRetries int) (*domain.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT retry_count FROM history WHERE paper_id = ?`, paperID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read retry count: %w", err)
	}

	entry := &domain.LedgerEntry{
		PaperID:      paperID,
		RetryCount:   int(current.Int64) + 1,
		ErrorMessage: &message,
		ProcessedAt:  nowUTC(),
	}
	entry.Status = failureStatus(entry.RetryCount, maxRetries)

	query, args, err := sq.Insert("history").
		Columns("paper_id", "status", "processed_at", "retry_count", "error_message").
		Values(entry.PaperID, string(entry.Status), entry.ProcessedAt, entry.RetryCount, message).
		Suffix(`ON CONFLICT(paper_id) DO UPDATE SET
			status = excluded.status,
			retry_count = excluded.retry_count,
			error_message = excluded.error_message,
			processed_at = excluded.processed_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger upsert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logFailure(s.logger, entry, maxRetries)
	return entry, nil
}

// FilterUnprocessed implements Store.
func (s *SQLiteStore) FilterUnprocessed(ctx context.Context, paperIDs []string) ([]string, error) {
	terminal := make(map[string]struct{})

	for start := 0; start < len(paperIDs); start += filterChunkSize {
		chunk := paperIDs[start:min(start+filterChunkSize, len(paperIDs))]

		query, args, err := sq.Select("paper_id").
			From("history").
			Where(sq.Eq{"paper_id": chunk, "status": terminalStatuses}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build ledger filter: %w", err)
		}

		if err := s.collectIDs(ctx, query, args, terminal); err != nil {
			return nil, err
		}
	}

	return keepUnprocessed(paperIDs, terminal), nil
}

func (s *SQLiteStore) collectIDs(ctx context.Context, query string, args []any, into map[string]struct{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to filter ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan paper id: %w", err)
		}
		into[id] = struct{}{}
	}
	return rows.Err()
}

// Entry implements Store.
func (s *SQLiteStore) Entry(ctx context.Context, paperID string) (*domain.LedgerEntry, error) {
	var (
		entry    domain.LedgerEntry
		status   string
		retries  sql.NullInt64
		errMsg   sql.NullString
		procTime sqliteTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT paper_id, status, processed_at, retry_count, error_message FROM history WHERE paper_id = ?`,
		paperID,
	).Scan(&entry.PaperID, &status, &procTime, &retries, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("ledger entry", paperID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry: %w", err)
	}

	entry.Status = domain.LedgerStatus(status)
	entry.RetryCount = int(retries.Int64)
	entry.ProcessedAt = procTime.Time
	if errMsg.Valid {
		entry.ErrorMessage = &errMsg.String
	}
	return &entry, nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger rows: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ledger count: %w", err)
		}
		stats.add(status, n)
	}
	return stats, rows.Err()
}

// Reset implements Store.
func (s *SQLiteStore) Reset(ctx context.Context, paperID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE paper_id = ?`, paperID)
	if err != nil {
		return false, fmt.Errorf("failed to reset ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reset ledger entry: %w", err)
	}
	return n > 0, nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTime scans a TIMESTAMP column whether the driver yields a time.Time or text.
type sqliteTime struct {
	Time time.Time
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Scan implements sql.Scanner.
func (t *sqliteTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = x
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func logFailure(logger zerolog.Logger, entry *domain.LedgerEntry, maxRetries int) {
	if entry.Status == domain.LedgerStatusFailed {
		logger.Warn().
			Str("paper_id", entry.PaperID).
			Int("retry_count", entry.RetryCount).
			Int("max_retries", maxRetries).
			Msg("paper reached max retries and is marked failed")
		return
	}
	logger.Info().
		Str("paper_id", entry.PaperID).
		Int("retry_count", entry.RetryCount).
		Int("max_retries", maxRetries).
		Msg("paper failure recorded")
}
