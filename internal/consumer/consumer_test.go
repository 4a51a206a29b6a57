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

package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"

	"github.com/railhound/consist/internal/models"
)

const validPayload = `{
	"OperationalTrainNumberIdentifier": {"OperationalTrainNumber": "1A23"},
	"TrainOperationalIdentification": {
		"TransportOperationalIdentifiers": [{"StartDate": "2026-03-14"}]
	},
	"Allocation": [{
		"TrainOriginDateTime": "2026-03-14T08:30:00Z",
		"ResourceGroup": {
			"ResourceGroupId": "390123",
			"TypeOfResource": "U",
			"Vehicle": [{"VehicleId": "69123456", "Cabs": 1}]
		}
	}]
}`

// --- Scripted reader ---

type fakeReader struct {
	mu             sync.Mutex
	messages       []kafka.Message
	committed      []int64
	commitFailures int // fail this many commits before succeeding
	closed         bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitFailures > 0 {
		r.commitFailures--
		return errors.New("group coordinator not available")
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// --- Fake archive and applier ---

type fakeArchiver struct {
	payloads [][]byte
	err      error
}

func (a *fakeArchiver) AppendEnvelope(_ context.Context, payload []byte) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.payloads = append(a.payloads, payload)
	return int64(len(a.payloads)), nil
}

type fakeApplier struct {
	applied []string // archive order of events, otn per apply
	err     error
}

func (a *fakeApplier) ApplyExtraction(_ context.Context, svc *models.TrainService, _ []models.Vehicle, _ []models.ServiceVehicle) error {
	if a.err != nil {
		return a.err
	}
	a.applied = append(a.applied, svc.OperationalTrainNumber)
	return nil
}

type fakeNotifier struct {
	events []string
	err    error
}

func (n *fakeNotifier) ServiceUpdated(_ context.Context, svc *models.TrainService) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, svc.OperationalTrainNumber)
	return nil
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Offset: offset, Value: []byte(value)}
}

// TestConsumer_PersistsAndCommits runs the happy path end to end.
func TestConsumer_PersistsAndCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(7, validPayload)}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{}
	notifier := &fakeNotifier{}

	c := New(reader, archiver, applier, notifier)
	c.Run(context.Background())

	if len(archiver.payloads) != 1 {
		t.Fatalf("archived = %d, want 1", len(archiver.payloads))
	}
	if len(applier.applied) != 1 || applier.applied[0] != "1A23" {
		t.Fatalf("applied = %v, want [1A23]", applier.applied)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 7 {
		t.Fatalf("committed = %v, want [7]", reader.committed)
	}
	if len(notifier.events) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.events))
	}
	if !reader.closed {
		t.Error("reader should be closed on exit")
	}
}

// TestConsumer_FallbackStillCommits verifies that unparseable payloads are
// archived and their offsets committed; they never reach the applier.
func TestConsumer_FallbackStillCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(3, "not json or xml")}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{}

	c := New(reader, archiver, applier, nil)
	c.Run(context.Background())

	if len(archiver.payloads) != 1 {
		t.Fatal("fallback payload must still be archived")
	}
	if len(applier.applied) != 0 {
		t.Error("fallback payload must not be applied")
	}
	if len(reader.committed) != 1 {
		t.Error("fallback payload must still be committed")
	}
}

// TestConsumer_NotExtractableCommits verifies that structurally valid but
// entity-free documents commit without persisting.
func TestConsumer_NotExtractableCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(4, `{"MessageStatus": 1}`)}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{}

	c := New(reader, archiver, applier, nil)
	c.Run(context.Background())

	if len(applier.applied) != 0 {
		t.Error("entity-free document must not be applied")
	}
	if len(reader.committed) != 1 {
		t.Error("entity-free document must still be committed")
	}
}

// TestConsumer_ApplyFailureWithholdsCommit verifies at-least-once delivery:
// a persistence failure leaves the offset uncommitted.
func TestConsumer_ApplyFailureWithholdsCommit(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(9, validPayload)}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{err: errors.New("connection reset")}

	c := New(reader, archiver, applier, nil)
	c.Run(context.Background())

	if len(reader.committed) != 0 {
		t.Fatalf("committed = %v, want none", reader.committed)
	}
}

// TestConsumer_UniqueViolationCommits verifies that losing an insert race is
// benign: the row exists, so the offset commits.
func TestConsumer_UniqueViolationCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(5, validPayload)}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{err: &pgconn.PgError{Code: "23505"}}

	c := New(reader, archiver, applier, nil)
	c.Run(context.Background())

	if len(reader.committed) != 1 {
		t.Fatalf("committed = %v, want one offset", reader.committed)
	}
}

// TestConsumer_ArchiveFailureDoesNotBlock verifies that a broken archive
// write is logged and swallowed; the message still persists and commits.
func TestConsumer_ArchiveFailureDoesNotBlock(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(2, validPayload)}}
	archiver := &fakeArchiver{err: errors.New("disk full")}
	applier := &fakeApplier{}

	c := New(reader, archiver, applier, nil)
	c.Run(context.Background())

	if len(applier.applied) != 1 {
		t.Error("message should persist despite archive failure")
	}
	if len(reader.committed) != 1 {
		t.Error("message should commit despite archive failure")
	}
}

// TestConsumer_NotifierFailureStillCommits verifies that downstream
// announcement failures never withhold the commit.
func TestConsumer_NotifierFailureStillCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{msg(6, validPayload)}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{}
	notifier := &fakeNotifier{err: errors.New("redis down")}

	c := New(reader, archiver, applier, notifier)
	c.Run(context.Background())

	if len(applier.applied) != 1 || len(reader.committed) != 1 {
		t.Error("notifier failure must not affect persistence or commit")
	}
}

// TestConsumer_CommitFailureBacksOffAndContinues verifies that a failed
// offset commit does not stop the loop: the consumer backs off, moves on,
// and the broker redelivers the uncommitted message later.
func TestConsumer_CommitFailureBacksOffAndContinues(t *testing.T) {
	reader := &fakeReader{
		messages: []kafka.Message{
			msg(1, validPayload),
			msg(2, validPayload),
		},
		commitFailures: 1,
	}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{}

	c := New(reader, archiver, applier, nil)
	c.backoff = time.Millisecond
	c.Run(context.Background())

	if len(applier.applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applier.applied))
	}
	if len(reader.committed) != 1 || reader.committed[0] != 2 {
		t.Errorf("committed = %v, want [2] (first commit failed)", reader.committed)
	}
}

// TestConsumer_ProcessesInOrder verifies that a mixed stream commits every
// message except the failing one.
func TestConsumer_ProcessesInOrder(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		msg(1, validPayload),
		msg(2, "garbage"),
		msg(3, validPayload),
	}}
	archiver := &fakeArchiver{}
	applier := &fakeApplier{}

	c := New(reader, archiver, applier, nil)
	c.Run(context.Background())

	if len(archiver.payloads) != 3 {
		t.Errorf("archived = %d, want 3 (everything is archived)", len(archiver.payloads))
	}
	if len(applier.applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applier.applied))
	}
	if len(reader.committed) != 3 {
		t.Errorf("committed = %v, want all three offsets", reader.committed)
	}
}
