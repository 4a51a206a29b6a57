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

// Package consumer runs the live ingestion loop: fetch one message from the
// consist topic, archive it, extract and persist its entities, then commit
// the offset. Commits always follow persistence, so a crash replays rather
// than drops messages.
package consumer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/railhound/consist/internal/config"
	"github.com/railhound/consist/internal/consist"
	"github.com/railhound/consist/internal/extract"
	"github.com/railhound/consist/internal/models"
	"github.com/railhound/consist/internal/store"
)

// Reader is the slice of kafka.Reader the consumer depends on.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Archiver appends raw payloads to the audit log.
type Archiver interface {
	AppendEnvelope(ctx context.Context, payload []byte) (int64, error)
}

// Applier persists one extraction's entities.
type Applier interface {
	ApplyExtraction(ctx context.Context, service *models.TrainService, vehicles []models.Vehicle, assignments []models.ServiceVehicle) error
}

// Notifier announces persisted service updates downstream.
type Notifier interface {
	ServiceUpdated(ctx context.Context, svc *models.TrainService) error
}

const (
	fetchBackoff    = 5 * time.Second
	summaryEvery    = 100
	summaryInterval = 30 * time.Second
)

// Consumer drives the ingestion pipeline for one topic partition group.
type Consumer struct {
	reader   Reader
	archiver Archiver
	applier  Applier
	notifier Notifier
	backoff  time.Duration

	processed int64
	persisted int64
	fallbacks int64
	skipped   int64
}

// New creates a consumer. The notifier may be nil, in which case updates are
// persisted without downstream announcements.
func New(reader Reader, archiver Archiver, applier Applier, notifier Notifier) *Consumer {
	return &Consumer{
		reader:   reader,
		archiver: archiver,
		applier:  applier,
		notifier: notifier,
		backoff:  fetchBackoff,
	}
}

// NewReader builds a kafka reader for the consist topic. Offsets commit
// manually, never on a timer, so the commit point stays under the
// pipeline's control.
func NewReader(cfg config.KafkaConfig) (*kafka.Reader, error) {
	rc := kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.Group,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	}

	if cfg.Username != "" {
		dialer := &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
			SASLMechanism: plain.Mechanism{
				Username: cfg.Username,
				Password: cfg.Password,
			},
		}
		if cfg.CACertPath != "" {
			pem, err := os.ReadFile(cfg.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("read kafka CA cert: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("kafka CA cert %s contains no certificates", cfg.CACertPath)
			}
			dialer.TLS = &tls.Config{RootCAs: pool}
		}
		rc.Dialer = dialer
	}

	return kafka.NewReader(rc), nil
}

// Start runs the consume loop in a goroutine and returns a channel closed
// when the loop has fully stopped.
func (c *Consumer) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	return done
}

// Run consumes until the context is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Warn("close kafka reader", "error", err)
		}
	}()

	lastSummary := time.Now()
	slog.Info("consumer started")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				slog.Info("consumer stopping",
					"processed", c.processed,
					"persisted", c.persisted,
				)
				return
			}
			slog.Error("fetch message failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		commit := c.processMessage(ctx, m)
		c.processed++

		if commit {
			// A failed commit leaves the offset behind and the broker will
			// redeliver; back off like a fetch error so a broken group
			// coordinator is not hammered in a tight loop.
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				slog.Error("commit offset failed", "offset", m.Offset, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.backoff):
				}
			}
		}

		if c.processed%summaryEvery == 0 || time.Since(lastSummary) > summaryInterval {
			slog.Info("ingestion progress",
				"processed", c.processed,
				"persisted", c.persisted,
				"fallbacks", c.fallbacks,
				"skipped", c.skipped,
			)
			lastSummary = time.Now()
		}
	}
}

// processMessage runs one payload through the pipeline and reports whether
// the offset should be committed. Only persistence failures withhold the
// commit; everything else is either archived or intentionally skipped.
func (c *Consumer) processMessage(ctx context.Context, m kafka.Message) bool {
	doc := consist.Normalize(string(m.Value))

	// The archive is best effort: a full audit trail matters, but a
	// transient insert failure must not stall live ingestion.
	if _, err := c.archiver.AppendEnvelope(ctx, doc.Canonical); err != nil {
		slog.Error("archive envelope failed", "offset", m.Offset, "error", err)
	}

	if doc.Fallback || doc.Msg == nil {
		c.fallbacks++
		slog.Warn("payload not normalizable, archived as raw", "offset", m.Offset, "bytes", len(m.Value))
		return true
	}

	ext, err := extract.FromMessage(doc.Msg)
	if err != nil {
		c.skipped++
		slog.Debug("document not extractable", "offset", m.Offset, "reason", err)
		return true
	}

	if err := c.applier.ApplyExtraction(ctx, ext.Service, ext.Vehicles, ext.ServiceVehicles); err != nil {
		if store.IsUniqueViolation(err) {
			// A concurrent writer won the insert race; the row exists.
			slog.Warn("duplicate natural key, skipping",
				"otn", ext.Service.OperationalTrainNumber,
				"service_date", ext.Service.ServiceDate,
			)
			return true
		}
		slog.Error("persist extraction failed",
			"otn", ext.Service.OperationalTrainNumber,
			"offset", m.Offset,
			"error", err,
		)
		// No commit: the broker redelivers after restart.
		return false
	}
	c.persisted++

	if c.notifier != nil {
		if err := c.notifier.ServiceUpdated(ctx, ext.Service); err != nil {
			slog.Warn("publish service update failed",
				"otn", ext.Service.OperationalTrainNumber,
				"error", err,
			)
		}
	}
	return true
}
