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

// Package runlock provides a Redis-backed single-flight lease. Reprocessing
// walks the whole archive; two concurrent runs would double the row churn
// for no benefit, so only one lease holder runs at a time.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL caps how long a crashed run blocks the next one.
	DefaultTTL = 2 * time.Hour

	lockKey = "consist:reprocess:lock"
)

// ErrHeld reports that another run currently holds the lease.
var ErrHeld = errors.New("reprocess lock already held")

// Lock hands out reprocessing leases.
type Lock struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a lock backed by Redis.
func New(rdb *redis.Client) *Lock {
	return &Lock{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// Lease is one acquired run slot. Release it when the run finishes.
type Lease struct {
	rdb   *redis.Client
	token string
}

// Acquire takes the lease, or returns ErrHeld if a run is in progress.
func (l *Lock) Acquire(ctx context.Context) (*Lease, error) {
	token := uuid.New().String()

	set, err := l.rdb.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("runlock SETNX: %w", err)
	}
	if !set {
		return nil, ErrHeld
	}
	return &Lease{rdb: l.rdb, token: token}, nil
}

// Release frees the lease if this holder still owns it. A lease that
// expired and was re-acquired by another run is left alone.
func (l *Lease) Release(ctx context.Context) error {
	current, err := l.rdb.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("runlock GET: %w", err)
	}
	if current != l.token {
		return nil
	}
	return l.rdb.Del(ctx, lockKey).Err()
}
