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

// Package mvrefresh keeps the reporting views current. It refreshes on a
// timer, but only when the archive high-water mark has advanced since the
// last refresh, so idle periods cost nothing.
package mvrefresh

import (
	"context"
	"log/slog"
	"time"
)

// Views refreshed each cycle, in dependency order.
var viewNames = []string{"trainservice_v1", "vehicle_v1"}

const minInterval = 5 * time.Second

// Store is the persistence slice the refresher needs.
type Store interface {
	MaxEnvelopeReceivedAt(ctx context.Context) (*time.Time, error)
	RefreshView(ctx context.Context, name string) error
}

// Refresher periodically rebuilds the reporting views.
type Refresher struct {
	store    Store
	interval time.Duration
	lastSeen time.Time
}

// New creates a refresher. Intervals below five seconds are clamped up;
// REFRESH is not cheap enough to run tighter than that.
func New(store Store, interval time.Duration) *Refresher {
	if interval < minInterval {
		interval = minInterval
	}
	return &Refresher{
		store:    store,
		interval: interval,
	}
}

// Run refreshes on the configured interval until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("view refresher started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("view refresher stopping")
			return
		case <-ticker.C:
			r.refreshIfStale(ctx)
		}
	}
}

// refreshIfStale rebuilds the views when new envelopes arrived since the
// last cycle. Each view refreshes independently; one failing does not block
// the other.
func (r *Refresher) refreshIfStale(ctx context.Context) {
	mark, err := r.store.MaxEnvelopeReceivedAt(ctx)
	if err != nil {
		slog.Warn("read archive high-water mark failed", "error", err)
		return
	}
	if mark == nil || !mark.After(r.lastSeen) {
		return
	}

	for _, name := range viewNames {
		if err := r.store.RefreshView(ctx, name); err != nil {
			slog.Error("view refresh failed", "view", name, "error", err)
			continue
		}
		slog.Debug("view refreshed", "view", name)
	}
	r.lastSeen = *mark
}
