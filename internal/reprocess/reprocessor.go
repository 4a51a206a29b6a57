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

// Package reprocess replays archived envelopes back through extraction and
// persistence. The archive is the system of record; after an extraction bug
// fix or schema change, a replay rebuilds the derived tables from it.
package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/railhound/consist/internal/consist"
	"github.com/railhound/consist/internal/extract"
	"github.com/railhound/consist/internal/models"
	"github.com/railhound/consist/internal/store"
)

// Source pages through the envelope archive.
type Source interface {
	CountEnvelopes(ctx context.Context, start, end *time.Time) (int64, error)
	FetchEnvelopes(ctx context.Context, start, end *time.Time, afterID int64, limit int) ([]models.RawEnvelope, error)
}

// Sink flushes converged batches to the entity tables.
type Sink interface {
	Flush(ctx context.Context, b *store.Batch) error
}

// Request bounds a replay run by archive receipt time. Nil bounds are open
// ended; both bounds are inclusive.
type Request struct {
	Start *time.Time
	End   *time.Time
}

// Result summarises a completed or aborted replay run.
type Result struct {
	RunID     string
	Total     int64
	Processed int64
	Succeeded int64
	Failed    int64
	Elapsed   time.Duration
	Start     *time.Time
	End       *time.Time
}

// Runner replays archived envelopes.
type Runner struct {
	source     Source
	sink       Sink
	fetchBatch int
	flushEvery int
}

// RunnerConfig holds dependencies and tuning for a runner.
type RunnerConfig struct {
	Source Source
	Sink   Sink

	// FetchBatch is the archive page size; zero means 500.
	FetchBatch int
	// FlushEvery is how many envelopes converge in memory between flushes.
	// Replays of one busy service collapse thousands of rows per flush, so
	// this runs much larger than the page size. Zero means 2000.
	FlushEvery int
}

// NewRunner creates a replay runner.
func NewRunner(cfg RunnerConfig) *Runner {
	fetchBatch := cfg.FetchBatch
	if fetchBatch <= 0 {
		fetchBatch = 500
	}
	flushEvery := cfg.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 2000
	}
	return &Runner{
		source:     cfg.Source,
		sink:       cfg.Sink,
		fetchBatch: fetchBatch,
		flushEvery: flushEvery,
	}
}

// Run replays every archived envelope inside the request window, oldest
// first. Individual envelopes that fail to extract or persist are counted
// and skipped. On a paging or flush failure the partial Result is returned
// alongside the error so callers can report how far the run got.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	result := &Result{
		RunID: uuid.New().String(),
		Start: req.Start,
		End:   req.End,
	}

	total, err := r.source.CountEnvelopes(ctx, req.Start, req.End)
	if err != nil {
		return result, fmt.Errorf("count envelopes: %w", err)
	}
	result.Total = total

	slog.Info("reprocess run starting",
		"run_id", result.RunID,
		"total", total,
		"start", req.Start,
		"end", req.End,
	)

	batch := store.NewBatch()
	sinceFlush := 0
	afterID := int64(0)

	for {
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(started)
			return result, err
		}

		envelopes, err := r.source.FetchEnvelopes(ctx, req.Start, req.End, afterID, r.fetchBatch)
		if err != nil {
			result.Elapsed = time.Since(started)
			return result, fmt.Errorf("fetch envelopes after id %d: %w", afterID, err)
		}
		if len(envelopes) == 0 {
			break
		}

		for _, env := range envelopes {
			afterID = env.ID
			result.Processed++

			if r.replayEnvelope(batch, env) {
				result.Succeeded++
			} else {
				result.Failed++
			}
			sinceFlush++

			if sinceFlush >= r.flushEvery {
				if err := r.sink.Flush(ctx, batch); err != nil {
					result.Elapsed = time.Since(started)
					return result, fmt.Errorf("flush at envelope %d: %w", env.ID, err)
				}
				sinceFlush = 0
			}

			if result.Processed%10000 == 0 {
				slog.Info("reprocess progress",
					"run_id", result.RunID,
					"processed", result.Processed,
					"total", result.Total,
					"failed", result.Failed,
				)
			}
		}
	}

	if err := r.sink.Flush(ctx, batch); err != nil {
		result.Elapsed = time.Since(started)
		return result, fmt.Errorf("final flush: %w", err)
	}

	result.Elapsed = time.Since(started)
	slog.Info("reprocess run complete",
		"run_id", result.RunID,
		"total", result.Total,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// replayEnvelope decodes and extracts one archived payload into the batch.
// Fallback wrappers and unextractable documents count as failures; they were
// archived for completeness, not because they carried entities.
func (r *Runner) replayEnvelope(batch *store.Batch, env models.RawEnvelope) bool {
	doc := consist.DecodeDocument(env.Payload)
	if doc.Fallback || doc.Msg == nil {
		return false
	}

	ext, err := extract.FromMessage(doc.Msg)
	if err != nil {
		if !errors.Is(err, extract.ErrNotExtractable) {
			slog.Warn("replay extraction failed", "envelope_id", env.ID, "error", err)
		}
		return false
	}

	batch.Add(ext.Service, ext.Vehicles, ext.ServiceVehicles)
	return true
}
