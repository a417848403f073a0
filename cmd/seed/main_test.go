package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"moviehub/internal/auth"
	"moviehub/internal/testsupport"
)

func TestSeedUsersIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.toml")
	content := `
[[users]]
username = "operator"
email = "operator@example.com"
password = "operator123"

[[users]]
username = "editor"
email = "editor@example.com"
password = "editor1234"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	users, err := readSeedFile(path)
	if err != nil || len(users) != 2 {
		t.Fatalf("readSeedFile: %v %v", users, err)
	}

	db := testsupport.MustOpenDB(t)
	repo := auth.NewRepo(db)
	created, skipped, err := seedUsers(context.Background(), repo, users)
	if err != nil || created != 2 || skipped != 0 {
		t.Fatalf("first seed: %d %d %v", created, skipped, err)
	}
	created, skipped, err = seedUsers(context.Background(), repo, users)
	if err != nil || created != 0 || skipped != 2 {
		t.Fatalf("second seed: %d %d %v", created, skipped, err)
	}

	u, err := repo.GetByEmail(context.Background(), "operator@example.com")
	if err != nil || u == nil || u.Username != "operator" {
		t.Fatalf("seeded user not found: %v %v", u, err)
	}
}

func TestSeedUsersRejectsWeakPasswords(t *testing.T) {
	repo := auth.NewRepo(testsupport.MustOpenDB(t))
	_, _, err := seedUsers(context.Background(), repo, []seedUser{{Username: "op", Email: "x@y.z", Password: "short"}})
	if err == nil {
		t.Fatal("expected validation error")
	}
}
