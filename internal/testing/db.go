// Package testing provides testing utilities and helpers for the ballast project.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jtallis/ballast/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a file-backed SQLite database for testing with automatic
// schema migration. Returns the database instance and a cleanup function that
// closes the connection and removes the file.
//
// Supported schema names:
//   - "strategies" - applies strategies_schema.sql
//   - "ledger" - applies ledger_schema.sql
//   - "cache" - applies cache_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temporary files keep each test's database isolated
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// NewTestDBWithSchema creates a test database and executes a custom schema
// directly instead of looking one up by name.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			_ = db.Close()
			_ = os.Remove(tmpPath)
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// GetRawConnection returns the raw *sql.DB connection from a database.DB
// instance for tests that need direct access.
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
