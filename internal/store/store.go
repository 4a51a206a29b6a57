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

// Package store provides the Postgres persistence layer: the append-only
// message archive, the upserted entity tables, and the batch cache that
// converges repeated updates before they hit the database.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a Postgres pool with the schema and queries for consist data.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given Postgres pool. It ensures the
// archive and entity tables exist on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure consist schema: %w", err)
	}
	slog.Info("consist store initialised")
	return s, nil
}

// Pool exposes the underlying pool for callers that need raw access, such
// as the materialized-view refresher.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS message_envelopes (
			id          BIGSERIAL PRIMARY KEY,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			payload     JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_envelopes_received ON message_envelopes(received_at);

		CREATE TABLE IF NOT EXISTS train_services (
			id                           BIGSERIAL PRIMARY KEY,
			operational_train_number     TEXT NOT NULL,
			service_date                 TEXT NOT NULL,
			origin_std                   TEXT NOT NULL,
			train_origin_datetime        TIMESTAMPTZ NOT NULL,
			train_dest_datetime          TIMESTAMPTZ,
			origin_location_primary_code TEXT,
			origin_location_name         TEXT,
			dest_location_primary_code   TEXT,
			dest_location_name           TEXT,
			fleet_id                     TEXT,
			type_of_resource             TEXT,
			resource_group_id            TEXT,
			class_code                   TEXT,
			power_type                   TEXT,
			rail_classes                 TEXT,
			toi_core                     TEXT,
			toi_variant                  TEXT,
			toi_timetable_year           INT,
			toi_start_date               DATE,
			created_at                   TIMESTAMPTZ DEFAULT NOW(),
			updated_at                   TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_services_natural_key
			ON train_services(operational_train_number, service_date, origin_std, train_origin_datetime);
		CREATE INDEX IF NOT EXISTS idx_services_otn ON train_services(operational_train_number);
		CREATE INDEX IF NOT EXISTS idx_services_date ON train_services(service_date);
		CREATE INDEX IF NOT EXISTS idx_services_origin_code ON train_services(origin_location_primary_code);
		CREATE INDEX IF NOT EXISTS idx_services_dest_code ON train_services(dest_location_primary_code);
		CREATE INDEX IF NOT EXISTS idx_services_origin_name ON train_services(origin_location_name);
		CREATE INDEX IF NOT EXISTS idx_services_dest_name ON train_services(dest_location_name);

		CREATE TABLE IF NOT EXISTS vehicles (
			id                     BIGSERIAL PRIMARY KEY,
			vehicle_id             TEXT NOT NULL UNIQUE,
			specific_type          TEXT,
			type_of_vehicle        TEXT,
			number_of_cabs         INT,
			number_of_seats        INT,
			length_unit            TEXT,
			length_mm              INT,
			weight                 INT,
			maximum_speed          INT,
			train_brake_type       TEXT,
			livery                 TEXT,
			decor                  TEXT,
			vehicle_status         TEXT,
			registered_status      TEXT,
			registered_category    TEXT,
			date_registered        TIMESTAMPTZ,
			date_entered_service   TIMESTAMPTZ,
			resource_position      INT,
			planned_resource_group TEXT,
			resource_group_id      TEXT NOT NULL DEFAULT '',
			fleet_id               TEXT NOT NULL DEFAULT '',
			type_of_resource       TEXT NOT NULL DEFAULT '',
			is_locomotive          BOOLEAN NOT NULL DEFAULT FALSE,
			class_code             TEXT,
			power_type             TEXT,
			is_driving_vehicle     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at             TIMESTAMPTZ DEFAULT NOW(),
			updated_at             TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_vehicles_class ON vehicles(class_code);
		CREATE INDEX IF NOT EXISTS idx_vehicles_specific_type ON vehicles(specific_type);
		CREATE INDEX IF NOT EXISTS idx_vehicles_is_locomotive ON vehicles(is_locomotive);

		CREATE TABLE IF NOT EXISTS service_vehicles (
			id                       BIGSERIAL PRIMARY KEY,
			operational_train_number TEXT NOT NULL,
			service_date             TEXT NOT NULL,
			origin_std               TEXT NOT NULL,
			vehicle_id               TEXT NOT NULL,
			specific_type            TEXT,
			type_of_vehicle          TEXT,
			number_of_cabs           INT,
			number_of_seats          INT,
			length_unit              TEXT,
			length_mm                INT,
			weight                   INT,
			maximum_speed            INT,
			train_brake_type         TEXT,
			livery                   TEXT,
			decor                    TEXT,
			vehicle_status           TEXT,
			registered_status        TEXT,
			registered_category      TEXT,
			date_registered          TIMESTAMPTZ,
			date_entered_service     TIMESTAMPTZ,
			resource_position        INT,
			planned_resource_group   TEXT,
			resource_group_id        TEXT NOT NULL DEFAULT '',
			fleet_id                 TEXT NOT NULL DEFAULT '',
			type_of_resource         TEXT NOT NULL DEFAULT '',
			is_locomotive            BOOLEAN NOT NULL DEFAULT FALSE,
			class_code               TEXT,
			created_at               TIMESTAMPTZ DEFAULT NOW(),
			updated_at               TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_service_vehicles_natural_key
			ON service_vehicles(operational_train_number, service_date, origin_std, vehicle_id);
		CREATE INDEX IF NOT EXISTS idx_service_vehicles_vehicle ON service_vehicles(vehicle_id);
		CREATE INDEX IF NOT EXISTS idx_service_vehicles_service ON service_vehicles(operational_train_number, service_date);
	`)
	if err != nil {
		return err
	}

	// Deduplicated reporting views, one row per key, freshest row wins.
	// Refreshed out of band by the mvrefresh loop.
	_, err = s.pool.Exec(ctx, `
		CREATE MATERIALIZED VIEW IF NOT EXISTS trainservice_v1 AS
			SELECT DISTINCT ON (operational_train_number, service_date, origin_std) *
			FROM train_services
			ORDER BY operational_train_number, service_date, origin_std, updated_at DESC;
		CREATE MATERIALIZED VIEW IF NOT EXISTS vehicle_v1 AS
			SELECT DISTINCT ON (vehicle_id) *
			FROM vehicles
			ORDER BY vehicle_id, updated_at DESC;
	`)
	return err
}

// RefreshView rebuilds one materialized view. Postgres takes an exclusive
// lock on the view for the duration, which is acceptable for the reporting
// views this schema carries.
func (s *Store) RefreshView(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW "+name)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", name, err)
	}
	return nil
}

// IsUniqueViolation reports whether the error is a Postgres unique-constraint
// violation. Concurrent writers racing on the same natural key hit this; the
// loser's row already exists, so the consumer treats it as benign.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
