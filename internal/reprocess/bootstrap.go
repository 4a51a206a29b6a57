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

package reprocess

import (
	"context"
	"fmt"
	"time"
)

// GapState exposes the archive and derived-table population the boot check
// compares.
type GapState interface {
	CountEnvelopes(ctx context.Context, start, end *time.Time) (int64, error)
	HasTrainServices(ctx context.Context) (bool, error)
}

// NeedsBootReplay reports whether the derived tables have fallen behind the
// archive: envelopes exist but no train service was ever derived from them.
// That happens after a schema reset or when a deploy wipes the entity tables
// while the append-only archive survives; a full replay closes the gap.
func NeedsBootReplay(ctx context.Context, state GapState) (bool, error) {
	total, err := state.CountEnvelopes(ctx, nil, nil)
	if err != nil {
		return false, fmt.Errorf("count archive: %w", err)
	}
	if total == 0 {
		return false, nil
	}
	populated, err := state.HasTrainServices(ctx)
	if err != nil {
		return false, fmt.Errorf("check derived tables: %w", err)
	}
	return !populated, nil
}
