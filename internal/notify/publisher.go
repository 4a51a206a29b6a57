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

// Package notify publishes service-updated events to a Redis list so that
// downstream reporting workers learn about fresh consist data without
// polling Postgres.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/railhound/consist/internal/models"
)

// Publisher pushes update events onto a Redis queue.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting the given queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// serviceEvent is the wire format consumed by the reporting workers.
type serviceEvent struct {
	ID                     string `json:"id"`
	Kind                   string `json:"kind"`
	OperationalTrainNumber string `json:"otn"`
	ServiceDate            string `json:"service_date"`
	OriginSTD              string `json:"origin_std"`
	UpdatedAt              string `json:"updated_at"`
}

// ServiceUpdated publishes one event announcing that the given service's
// persisted state changed.
func (p *Publisher) ServiceUpdated(ctx context.Context, svc *models.TrainService) error {
	event := serviceEvent{
		ID:                     uuid.New().String(),
		Kind:                   "service-updated",
		OperationalTrainNumber: svc.OperationalTrainNumber,
		ServiceDate:            svc.ServiceDate,
		OriginSTD:              svc.OriginSTD,
		UpdatedAt:              time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal service event: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, body).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
