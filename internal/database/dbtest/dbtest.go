// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"librarian/internal/config"
	"librarian/internal/database"
	"librarian/pkg/logger"
)

func New(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "library_test.db"),
		BusyTimeoutMS: 10000,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.NewMigrationService(db, logger.Nop()).RunMigrations(context.Background()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
