package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-tracker-service/internal/config"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(context.Background(), config.LedgerConfig{
		Driver:      "sqlite",
		SQLitePath:  filepath.Join(t.TempDir(), "paper_agent.db"),
		AutoMigrate: true,
	}, config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, newSQLiteStore)
}

func TestSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	cfg := config.LedgerConfig{
		Driver:      "sqlite",
		SQLitePath:  filepath.Join(t.TempDir(), "paper_agent.db"),
		AutoMigrate: true,
	}

	first, err := Open(ctx, cfg, config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.RecordFailure(ctx, "p1", "download failed", 3)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, cfg, config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	entry, err := second.RecordFailure(ctx, "p1", "download failed again", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.RetryCount)
	assert.WithinDuration(t, time.Now(), entry.ProcessedAt, time.Minute)
}

func TestSQLiteTime_Scan(t *testing.T) {
	ref := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		name string
		in   any
	}{
		{"time value", ref},
		{"driver text", "2026-03-01 12:30:45+00:00"},
		{"rfc3339", "2026-03-01T12:30:45Z"},
		{"bytes", []byte("2026-03-01 12:30:45")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st sqliteTime
			require.NoError(t, st.Scan(tt.in))
			assert.True(t, ref.Equal(st.Time), "got %v", st.Time)
		})
	}

	var st sqliteTime
	assert.Error(t, st.Scan("yesterday"))
	assert.Error(t, st.Scan(42))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.LedgerConfig{Driver: "mysql"}, config.DatabaseConfig{}, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported ledger driver")
}
