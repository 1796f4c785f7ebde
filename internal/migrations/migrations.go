package migrations

import (
	"database/sql"
	"embed"

	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed sql/*.sql
var files embed.FS

// All returns the embedded schema migrations in apply order.
func All() ([]db.Migration, error) {
	return db.MigrationsFromFS(files, "sql")
}

// RunMigrations brings the schema of the given database up to date.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	migs, err := All()
	if err != nil {
		return err
	}

	return db.RunMigrationsDB(log, database, migs)
}

// Rollback reverts the last n applied migrations.
func Rollback(log *logger.Logger, database *sql.DB, n int) error {
	migs, err := All()
	if err != nil {
		return err
	}

	return db.RunMigrationsDBExtended(log, database, migs, migrate.Down, n)
}
