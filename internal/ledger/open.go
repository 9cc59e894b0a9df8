package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/config"
	"github.com/helixir/citation-tracker-service/internal/database"
)

// Open connects to the ledger backend selected by cfg.Driver, applying
// migrations first when cfg.AutoMigrate is set. The caller closes the store.
func Open(ctx context.Context, cfg config.LedgerConfig, dbCfg config.DatabaseConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Driver {
	case database.DriverSQLite, "":
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, database.DriverSQLite, nil, cfg.SQLitePath, logger); err != nil {
				return nil, fmt.Errorf("failed to migrate ledger: %w", err)
			}
		}
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db, logger), nil

	case database.DriverPostgres:
		db, err := database.New(ctx, &dbCfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, database.DriverPostgres, db, "", logger); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate ledger: %w", err)
			}
		}
		return NewPostgresStore(db, db.Close, logger), nil

	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Driver)
	}
}
