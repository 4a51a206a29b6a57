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
	"errors"
	"testing"
	"time"
)

type fakeGapState struct {
	envelopes   int64
	hasServices bool
	countErr    error
	hasErr      error
}

func (s *fakeGapState) CountEnvelopes(_ context.Context, _, _ *time.Time) (int64, error) {
	return s.envelopes, s.countErr
}

func (s *fakeGapState) HasTrainServices(_ context.Context) (bool, error) {
	return s.hasServices, s.hasErr
}

func TestNeedsBootReplay(t *testing.T) {
	cases := []struct {
		name  string
		state fakeGapState
		want  bool
	}{
		{"empty archive", fakeGapState{envelopes: 0}, false},
		{"archive ahead of derived tables", fakeGapState{envelopes: 1200}, true},
		{"derived tables populated", fakeGapState{envelopes: 1200, hasServices: true}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NeedsBootReplay(context.Background(), &tc.state)
			if err != nil {
				t.Fatalf("NeedsBootReplay: %v", err)
			}
			if got != tc.want {
				t.Errorf("needs replay = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNeedsBootReplay_Errors(t *testing.T) {
	boom := errors.New("connection refused")

	if _, err := NeedsBootReplay(context.Background(), &fakeGapState{countErr: boom}); !errors.Is(err, boom) {
		t.Errorf("count error not surfaced: %v", err)
	}
	if _, err := NeedsBootReplay(context.Background(), &fakeGapState{envelopes: 5, hasErr: boom}); !errors.Is(err, boom) {
		t.Errorf("derived-table error not surfaced: %v", err)
	}
}
