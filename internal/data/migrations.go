package data

import (
	"context"
	"database/sql"

	"github.com/tdxstock/ingestd/internal/migrate"
)

// RunMigrations applies the job store schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
