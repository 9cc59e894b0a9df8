package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteBusyTimeoutMillis is how long a statement waits on a locked database file.
const SQLiteBusyTimeoutMillis = 5000

// SQLiteDSN builds a modernc.org/sqlite DSN for path with WAL journaling and
// a busy timeout.
func SQLiteDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", SQLiteBusyTimeoutMillis))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + params.Encode()
}

// OpenSQLite opens the SQLite file at path, creating its parent directory if
// needed. The handle is limited to one open connection so that writes are
// serialized in-process.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("sqlite database opened")
	return db, nil
}
