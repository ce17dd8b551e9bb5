// Package database provides database connectivity and management for the recruitment service.
package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMigrator_Validation tests the input validation for NewMigrator.
func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		db := &DB{pool: nil}
		migrator, err := NewMigrator(db, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})

	t.Run("fails with empty migrations path", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		migrator, err := NewMigrator(db, "", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path is required")
	})

	t.Run("fails with invalid migrations path", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping integration test in short mode")
		}

		db := setupTestDB(t)
		defer db.Close()

		migrator, err := NewMigrator(db, "/nonexistent/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path validation failed")
	})
}

// TestNewMigrator_Success tests successful migrator creation.
func TestNewMigrator_Success(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	logger := zerolog.Nop()
	migrationsPath := getMigrationsPath(t)

	t.Run("successful creation with valid migrations path", func(t *testing.T) {
		migrator, err := NewMigrator(db, migrationsPath, logger)
		require.NoError(t, err)
		require.NotNil(t, migrator)
		defer func() {
			_ = migrator.Close()
		}()

		_, _, err = migrator.Version()
		// ErrNilVersion is acceptable for a fresh database
		if err != nil {
			assert.Contains(t, err.Error(), "no migration")
		}
	})
}

// getMigrationsPath locates the migrations directory relative to this package.
func getMigrationsPath(t *testing.T) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)

	if _, err := os.Stat(path); err != nil {
		t.Skipf("Skipping: migrations directory not found at %s", path)
	}

	return path
}
