// Copyright (c) 2026 Railhound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Railhound Consist archive reprocess command.
//
// Standalone CLI tool that replays archived consist messages through
// extraction and persistence. Intended for rebuilding the derived tables
// after an extraction fix or a schema change.
//
// Usage:
//
//	go run ./cmd/reprocess/ [--start 2026-01-01T00:00:00Z] [--end 2026-02-01T00:00:00Z]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/railhound/consist/internal/config"
	"github.com/railhound/consist/internal/reprocess"
	"github.com/railhound/consist/internal/runlock"
	"github.com/railhound/consist/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	startFlag := flag.String("start", "", "Replay only envelopes received at or after this RFC3339 time (optional)")
	endFlag := flag.String("end", "", "Replay only envelopes received at or before this RFC3339 time (optional)")
	flag.Parse()

	req := reprocess.Request{}
	if *startFlag != "" {
		t, err := time.Parse(time.RFC3339, *startFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --start %q: %v\n", *startFlag, err)
			os.Exit(1)
		}
		req.Start = &t
	}
	if *endFlag != "" {
		t, err := time.Parse(time.RFC3339, *endFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --end %q: %v\n", *endFlag, err)
			os.Exit(1)
		}
		req.End = &t
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	db, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis (run lease) ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	lease, err := runlock.New(rdb).Acquire(ctx)
	if err != nil {
		slog.Error("failed to acquire reprocess lease", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			slog.Warn("release reprocess lease failed", "error", err)
		}
	}()

	// --- Run Replay ---
	runner := reprocess.NewRunner(reprocess.RunnerConfig{
		Source:     db,
		Sink:       db,
		FetchBatch: cfg.ReprocessFetchBatch,
		FlushEvery: cfg.ReprocessFlushEvery,
	})

	result, err := runner.Run(ctx, req)
	if err != nil {
		slog.Error("reprocess failed",
			"error", err,
			"processed", result.Processed,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
		)
		os.Exit(1)
	}

	// --- Summary ---
	slog.Info("reprocess complete",
		"run_id", result.RunID,
		"total", result.Total,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
}
