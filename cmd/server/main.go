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

// Railhound Consist ingestion service.
//
// Entry point for the consist ingestion service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL and Redis
//  3. Consumes consist messages from Kafka, archiving and persisting each one
//  4. Replays the archive on boot if the derived tables have fallen behind
//  5. Keeps the reporting views fresh in the background
//  6. Serves health and reprocessing endpoints
//  7. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/railhound/consist/internal/admin"
	"github.com/railhound/consist/internal/config"
	"github.com/railhound/consist/internal/consumer"
	"github.com/railhound/consist/internal/mvrefresh"
	"github.com/railhound/consist/internal/notify"
	"github.com/railhound/consist/internal/reprocess"
	"github.com/railhound/consist/internal/runlock"
	"github.com/railhound/consist/internal/store"
)

// lockAdapter narrows runlock.Lock to the admin handler's interface.
type lockAdapter struct {
	lock *runlock.Lock
}

func (a lockAdapter) Acquire(ctx context.Context) (admin.Releaser, error) {
	lease, err := a.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// runBootReplay checks whether the derived tables have fallen behind the
// envelope archive and replays it if so. The runlock keeps it from racing an
// operator-triggered run.
func runBootReplay(ctx context.Context, db *store.Store, lock *runlock.Lock, runner *reprocess.Runner) {
	// Let the consumer and admin server settle first.
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	need, err := reprocess.NeedsBootReplay(ctx, db)
	if err != nil {
		slog.Error("boot gap check failed", "error", err)
		return
	}
	if !need {
		slog.Info("boot gap check: derived tables are current")
		return
	}

	lease, err := lock.Acquire(ctx)
	if err != nil {
		slog.Warn("boot replay skipped", "error", err)
		return
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			slog.Warn("release boot replay lease failed", "error", err)
		}
	}()

	slog.Info("boot gap check: archive has envelopes but no derived services, replaying")
	if result, err := runner.Run(ctx, reprocess.Request{}); err != nil {
		slog.Error("boot replay failed", "error", err, "processed", result.Processed)
	}
}

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting consist ingestion service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.Group,
		"refresh_interval", cfg.MVRefreshInterval,
	)

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
	slog.Info("connected to PostgreSQL")

	db, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := notify.NewPublisher(rdb, cfg.UpdatesQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Kafka Consumer ---
	reader, err := consumer.NewReader(cfg.Kafka)
	if err != nil {
		slog.Error("failed to build Kafka reader", "error", err)
		os.Exit(1)
	}
	cons := consumer.New(reader, db, db, publisher)
	consumerDone := cons.Start(ctx)

	// --- View Refresher ---
	refresher := mvrefresh.New(db, cfg.MVRefreshInterval)
	go refresher.Run(ctx)

	// --- Reprocess Runner ---
	runner := reprocess.NewRunner(reprocess.RunnerConfig{
		Source:     db,
		Sink:       db,
		FetchBatch: cfg.ReprocessFetchBatch,
		FlushEvery: cfg.ReprocessFlushEvery,
	})
	lock := runlock.New(rdb)

	// --- Boot Gap Check ---
	// If the archive has envelopes but the derived tables are empty (schema
	// reset, wiped deploy), replay the archive to close the gap.
	if cfg.ReprocessOnBoot {
		go runBootReplay(ctx, db, lock, runner)
	}

	// --- Admin Server ---
	handler := admin.NewHandler(
		lockAdapter{lock: lock},
		runner,
		pgPool.Ping,
		publisher.Ping,
	)
	ready, err := admin.Serve(ctx, cfg.AdminPort, handler)
	if err != nil {
		slog.Error("failed to start admin server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()

	select {
	case <-consumerDone:
	case <-time.After(15 * time.Second):
		slog.Warn("consumer did not stop within deadline")
	}

	slog.Info("consist ingestion service stopped")
}
