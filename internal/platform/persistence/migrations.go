package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

var (
	ErrMissingMigrationsPath = errors.New("migrations path cannot be empty")
	ErrMissingDatabaseURL    = errors.New("database URL cannot be empty")
	// ErrDirtyMigration means a previous run failed halfway and needs a manual `migrate force`
	ErrDirtyMigration = errors.New("database schema is dirty")
)

// RunMigrations brings the ledger schema up to date from the given directory (e.g. migrations/postgres)
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return ErrMissingMigrationsPath
	}
	if databaseURL == "" {
		return ErrMissingDatabaseURL
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrator", "source_error", sourceErr, "database_error", dbErr)
		}
	}()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return ErrDirtyMigration
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Database schema up to date", "version", version, "source", migrationsPath)
	return nil
}
