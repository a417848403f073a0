package database

import (
	"path/filepath"
	"strings"
	"testing"
)

func tempConfig(t *testing.T) Config {
	t.Helper()
	return Config{Path: filepath.Join(t.TempDir(), "nested", "catalog.db")}
}

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := Open(tempConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(db); err != nil {
			t.Fatalf("Migrate #%d: %v", i+1, err)
		}
	}
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != SchemaVersion() {
		t.Fatalf("expected version %d, got %d", SchemaVersion(), version)
	}

	var tables int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('movies','genres','movie_genres','users')`).Scan(&tables); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if tables != 4 {
		t.Fatalf("expected 4 tables, got %d", tables)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db, err := Open(tempConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	_, err = db.Exec(`INSERT INTO movie_genres (movie_id, genre_id) VALUES (99, 99)`)
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "foreign key") {
		t.Fatalf("expected foreign key violation, got %v", err)
	}
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	db, err := Open(tempConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := Migrate(db); err == nil {
		t.Fatal("expected error for a newer schema")
	}
}

func TestDSNCarriesPragmas(t *testing.T) {
	dsn := Config{Path: "/tmp/x.db"}.DSN()
	for _, want := range []string{"/tmp/x.db?", "_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}
