package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	"moviehub/pkg/database"
)

// MustOpenDB opens a migrated SQLite catalog in a temp dir and registers cleanup.
func MustOpenDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate: %v", err)
	}
	return db
}

// MustCount runs a COUNT query and fails the test on error.
func MustCount(t testing.TB, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
