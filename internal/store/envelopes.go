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
	"strconv"
	"strings"
	"time"

	"github.com/railhound/consist/internal/models"
)

// envelopeWindow builds the WHERE clause for an optional received_at window.
// Both bounds are inclusive.
func envelopeWindow(start, end *time.Time) (string, []any) {
	var clauses []string
	var args []any
	if start != nil {
		args = append(args, *start)
		clauses = append(clauses, "received_at >= $"+itoa(len(args)))
	}
	if end != nil {
		args = append(args, *end)
		clauses = append(clauses, "received_at <= $"+itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountEnvelopes reports how many archived envelopes fall inside the window.
// Nil bounds are open ended.
func (s *Store) CountEnvelopes(ctx context.Context, start, end *time.Time) (int64, error) {
	where, args := envelopeWindow(start, end)
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM message_envelopes"+where, args...).Scan(&n)
	return n, err
}

// FetchEnvelopes returns up to limit archived envelopes inside the window
// with id greater than afterID, in ascending id order. Replay pages through
// the archive with this, so ordering matches original arrival order.
func (s *Store) FetchEnvelopes(ctx context.Context, start, end *time.Time, afterID int64, limit int) ([]models.RawEnvelope, error) {
	where, args := envelopeWindow(start, end)
	if where == "" {
		where = " WHERE id > $1"
	} else {
		where += " AND id > $" + itoa(len(args)+1)
	}
	args = append(args, afterID)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, `
		SELECT id, received_at, payload FROM message_envelopes`+where+`
		ORDER BY id ASC
		LIMIT $`+itoa(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envelopes []models.RawEnvelope
	for rows.Next() {
		var e models.RawEnvelope
		if err := rows.Scan(&e.ID, &e.ReceivedAt, &e.Payload); err != nil {
			return nil, err
		}
		envelopes = append(envelopes, e)
	}
	return envelopes, rows.Err()
}

// MaxEnvelopeReceivedAt returns the newest archive timestamp, or nil when
// the archive is empty. The view refresher uses it to skip refreshes when
// nothing new arrived.
func (s *Store) MaxEnvelopeReceivedAt(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, "SELECT MAX(received_at) FROM message_envelopes").Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
