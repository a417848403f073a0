package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moviehub/internal/app"
	"moviehub/internal/ingest"
)

// ingest runs a single cycle against the configured feed and exits: 0 on success,
// 1 when the cycle failed, 2 when a movie was left without its genres, 3 when
// another process held the cycle lock.
func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "upper bound for the whole cycle")
	flag.Parse()

	env, err := app.Bootstrap("ingest")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pipeline, err := env.Pipeline()
	if err != nil {
		env.Log.Error("pipeline setup failed", "error", err)
		env.Close()
		os.Exit(1)
	}

	report, err := pipeline.RunCycle(ctx)
	if errors.Is(err, ingest.ErrCycleLocked) {
		env.Log.Warn("another process is running a cycle; nothing done", "lock", pipeline.LockPath)
		env.Close()
		os.Exit(3)
	}
	if err != nil {
		env.Log.Error("cycle failed", "run_id", report.RunID, "error", err)
		env.Close()
		os.Exit(1)
	}
	env.Log.Info("done",
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"partial", report.Partial,
	)
	if report.Partial > 0 {
		env.Close()
		os.Exit(2)
	}
}
