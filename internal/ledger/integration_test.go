//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/citation-tracker-service/internal/config"
)

func TestPostgresStore_Contract(t *testing.T) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("citation_tracker"),
		postgres.WithUsername("citetrack"),
		postgres.WithPassword("citetrack"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	parsed, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)

	dbCfg := config.DatabaseConfig{
		Host:              parsed.ConnConfig.Host,
		Port:              int(parsed.ConnConfig.Port),
		User:              "citetrack",
		Password:          "citetrack",
		Name:              "citation_tracker",
		SSLMode:           "disable",
		MaxConns:          10,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    5 * time.Second,
	}

	runStoreContract(t, func(t *testing.T) Store {
		store, err := Open(ctx, config.LedgerConfig{Driver: "postgres", AutoMigrate: true}, dbCfg, zerolog.Nop())
		require.NoError(t, err)
		_, err = store.(*PostgresStore).db.Exec(ctx, `TRUNCATE history`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
