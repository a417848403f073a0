package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"moviehub/internal/app"
	"moviehub/internal/auth"
)

type seedFile struct {
	Users []seedUser `toml:"users"`
}

type seedUser struct {
	Username string `toml:"username"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// seed creates operator accounts from a TOML file. Accounts that already exist
// are left alone.
func main() {
	path := flag.String("file", "data/seed/users.toml", "TOML file with [[users]] entries")
	flag.Parse()

	users, err := readSeedFile(*path)
	if err != nil {
		stdlog.Fatalf("read seed file: %v", err)
	}

	env, err := app.Bootstrap("seed")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, skipped, err := seedUsers(ctx, auth.NewRepo(env.DB), users)
	if err != nil {
		env.Log.Fatal("seed failed", "error", err)
	}
	env.Log.Info("seed finished", "created", created, "skipped", skipped)
}

func readSeedFile(path string) ([]seedUser, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return f.Users, nil
}

func seedUsers(ctx context.Context, repo *auth.Repo, users []seedUser) (created, skipped int, err error) {
	for _, su := range users {
		username, email, err := auth.ValidateCredentials(su.Username, su.Email, su.Password)
		if err != nil {
			return created, skipped, fmt.Errorf("user %q: %w", su.Username, err)
		}
		hash, err := auth.HashPassword(su.Password)
		if err != nil {
			return created, skipped, fmt.Errorf("hash %q: %w", username, err)
		}
		err = repo.CreateUser(ctx, auth.User{
			ID:           uuid.NewString(),
			Username:     username,
			Email:        email,
			PasswordHash: hash,
		})
		if errors.Is(err, auth.ErrUserExists) {
			skipped++
			continue
		}
		if err != nil {
			return created, skipped, err
		}
		created++
	}
	return created, skipped, nil
}
