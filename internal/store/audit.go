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

package store

import (
	"context"
	"fmt"
)

// AppendEnvelope archives one normalized payload in the append-only message
// log and returns the assigned envelope id. Duplicate deliveries get
// duplicate rows; the archive records what arrived, not what was distinct.
func (s *Store) AppendEnvelope(ctx context.Context, payload []byte) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO message_envelopes (payload) VALUES ($1) RETURNING id
	`, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append envelope: %w", err)
	}
	return id, nil
}
