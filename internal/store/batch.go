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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/railhound/consist/internal/models"
)

// Batch accumulates entity candidates keyed by their natural keys before a
// flush. Repeated updates to the same key converge in memory, last write
// wins, so a replay of thousands of messages for one service costs one row
// write instead of thousands.
//
// Batch is not safe for concurrent use; each pipeline owns its own.
type Batch struct {
	services        map[models.ServiceKey]*models.TrainService
	vehicles        map[string]*models.Vehicle
	serviceVehicles map[models.ServiceVehicleKey]*models.ServiceVehicle
}

// NewBatch returns an empty batch cache.
func NewBatch() *Batch {
	b := &Batch{}
	b.reset()
	return b
}

func (b *Batch) reset() {
	b.services = make(map[models.ServiceKey]*models.TrainService)
	b.vehicles = make(map[string]*models.Vehicle)
	b.serviceVehicles = make(map[models.ServiceVehicleKey]*models.ServiceVehicle)
}

// Add merges one extraction's candidates into the batch.
func (b *Batch) Add(service *models.TrainService, vehicles []models.Vehicle, assignments []models.ServiceVehicle) {
	if service != nil {
		b.services[service.Key()] = service
	}
	for i := range vehicles {
		v := vehicles[i]
		b.vehicles[v.VehicleID] = &v
	}
	for i := range assignments {
		sv := assignments[i]
		b.serviceVehicles[sv.Key()] = &sv
	}
}

// Pending reports how many distinct rows the next flush will write.
func (b *Batch) Pending() int {
	return len(b.services) + len(b.vehicles) + len(b.serviceVehicles)
}

// Flush writes the batch to Postgres in one transaction and clears it on
// success. Each key is resolved read-then-write: an existing row is updated
// in place, a missing one inserted. Services land before vehicles, vehicles
// before assignments, so an assignment never precedes the entities it links.
// On error the batch is left intact for a retry.
func (s *Store) Flush(ctx context.Context, b *Batch) error {
	if b.Pending() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, svc := range b.services {
		if err := upsertService(ctx, tx, svc); err != nil {
			return fmt.Errorf("upsert service %s/%s: %w", svc.OperationalTrainNumber, svc.ServiceDate, err)
		}
	}
	for _, v := range b.vehicles {
		if err := upsertVehicle(ctx, tx, v); err != nil {
			return fmt.Errorf("upsert vehicle %s: %w", v.VehicleID, err)
		}
	}
	for _, sv := range b.serviceVehicles {
		if err := upsertServiceVehicle(ctx, tx, sv); err != nil {
			return fmt.Errorf("upsert service vehicle %s/%s: %w", sv.OperationalTrainNumber, sv.VehicleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	b.reset()
	return nil
}

// ApplyExtraction writes one extraction straight through without batching.
// The stream consumer uses this so every commit covers persisted state.
func (s *Store) ApplyExtraction(ctx context.Context, service *models.TrainService, vehicles []models.Vehicle, assignments []models.ServiceVehicle) error {
	b := NewBatch()
	b.Add(service, vehicles, assignments)
	return s.Flush(ctx, b)
}

func upsertService(ctx context.Context, tx pgx.Tx, svc *models.TrainService) error {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM train_services
		WHERE operational_train_number = $1 AND service_date = $2
		  AND origin_std = $3 AND train_origin_datetime = $4
	`, svc.OperationalTrainNumber, svc.ServiceDate, svc.OriginSTD, svc.TrainOriginDateTime).Scan(&id)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
			UPDATE train_services SET
				train_dest_datetime          = $1,
				origin_location_primary_code = $2,
				origin_location_name         = $3,
				dest_location_primary_code   = $4,
				dest_location_name           = $5,
				fleet_id                     = $6,
				type_of_resource             = $7,
				resource_group_id            = $8,
				class_code                   = $9,
				power_type                   = $10,
				rail_classes                 = $11,
				toi_core                     = $12,
				toi_variant                  = $13,
				toi_timetable_year           = $14,
				toi_start_date               = $15,
				updated_at                   = NOW()
			WHERE id = $16
		`, svc.TrainDestDateTime, svc.OriginLocationPrimaryCode, svc.OriginLocationName,
			svc.DestLocationPrimaryCode, svc.DestLocationName, svc.FleetID,
			svc.TypeOfResource, svc.ResourceGroupID, svc.ClassCode, svc.PowerType,
			svc.RailClasses, svc.ToiCore, svc.ToiVariant, svc.ToiTimetableYear,
			svc.ToiStartDate, id)
		return err
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO train_services (
				operational_train_number, service_date, origin_std, train_origin_datetime,
				train_dest_datetime, origin_location_primary_code, origin_location_name,
				dest_location_primary_code, dest_location_name, fleet_id, type_of_resource,
				resource_group_id, class_code, power_type, rail_classes,
				toi_core, toi_variant, toi_timetable_year, toi_start_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`, svc.OperationalTrainNumber, svc.ServiceDate, svc.OriginSTD, svc.TrainOriginDateTime,
			svc.TrainDestDateTime, svc.OriginLocationPrimaryCode, svc.OriginLocationName,
			svc.DestLocationPrimaryCode, svc.DestLocationName, svc.FleetID, svc.TypeOfResource,
			svc.ResourceGroupID, svc.ClassCode, svc.PowerType, svc.RailClasses,
			svc.ToiCore, svc.ToiVariant, svc.ToiTimetableYear, svc.ToiStartDate)
		return err
	default:
		return err
	}
}

func upsertVehicle(ctx context.Context, tx pgx.Tx, v *models.Vehicle) error {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM vehicles WHERE vehicle_id = $1
	`, v.VehicleID).Scan(&id)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
			UPDATE vehicles SET
				specific_type          = $1,
				type_of_vehicle        = $2,
				number_of_cabs         = $3,
				number_of_seats        = $4,
				length_unit            = $5,
				length_mm              = $6,
				weight                 = $7,
				maximum_speed          = $8,
				train_brake_type       = $9,
				livery                 = $10,
				decor                  = $11,
				vehicle_status         = $12,
				registered_status      = $13,
				registered_category    = $14,
				date_registered        = $15,
				date_entered_service   = $16,
				resource_position      = $17,
				planned_resource_group = $18,
				resource_group_id      = $19,
				fleet_id               = $20,
				type_of_resource       = $21,
				is_locomotive          = $22,
				class_code             = $23,
				power_type             = $24,
				is_driving_vehicle     = $25,
				updated_at             = NOW()
			WHERE id = $26
		`, v.SpecificType, v.TypeOfVehicle, v.NumberOfCabs, v.NumberOfSeats,
			v.LengthUnit, v.LengthMM, v.Weight, v.MaximumSpeed, v.TrainBrakeType,
			v.Livery, v.Decor, v.VehicleStatus, v.RegisteredStatus, v.RegisteredCategory,
			v.DateRegistered, v.DateEnteredService, v.ResourcePosition, v.PlannedResourceGroup,
			v.ResourceGroupID, v.FleetID, v.TypeOfResource, v.IsLocomotive,
			v.ClassCode, v.PowerType, v.IsDrivingVehicle, id)
		return err
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO vehicles (
				vehicle_id, specific_type, type_of_vehicle, number_of_cabs, number_of_seats,
				length_unit, length_mm, weight, maximum_speed, train_brake_type,
				livery, decor, vehicle_status, registered_status, registered_category,
				date_registered, date_entered_service, resource_position, planned_resource_group,
				resource_group_id, fleet_id, type_of_resource, is_locomotive,
				class_code, power_type, is_driving_vehicle
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		`, v.VehicleID, v.SpecificType, v.TypeOfVehicle, v.NumberOfCabs, v.NumberOfSeats,
			v.LengthUnit, v.LengthMM, v.Weight, v.MaximumSpeed, v.TrainBrakeType,
			v.Livery, v.Decor, v.VehicleStatus, v.RegisteredStatus, v.RegisteredCategory,
			v.DateRegistered, v.DateEnteredService, v.ResourcePosition, v.PlannedResourceGroup,
			v.ResourceGroupID, v.FleetID, v.TypeOfResource, v.IsLocomotive,
			v.ClassCode, v.PowerType, v.IsDrivingVehicle)
		return err
	default:
		return err
	}
}

func upsertServiceVehicle(ctx context.Context, tx pgx.Tx, sv *models.ServiceVehicle) error {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM service_vehicles
		WHERE operational_train_number = $1 AND service_date = $2
		  AND origin_std = $3 AND vehicle_id = $4
	`, sv.OperationalTrainNumber, sv.ServiceDate, sv.OriginSTD, sv.VehicleID).Scan(&id)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
			UPDATE service_vehicles SET
				specific_type          = $1,
				type_of_vehicle        = $2,
				number_of_cabs         = $3,
				number_of_seats        = $4,
				length_unit            = $5,
				length_mm              = $6,
				weight                 = $7,
				maximum_speed          = $8,
				train_brake_type       = $9,
				livery                 = $10,
				decor                  = $11,
				vehicle_status         = $12,
				registered_status      = $13,
				registered_category    = $14,
				date_registered        = $15,
				date_entered_service   = $16,
				resource_position      = $17,
				planned_resource_group = $18,
				resource_group_id      = $19,
				fleet_id               = $20,
				type_of_resource       = $21,
				is_locomotive          = $22,
				class_code             = $23,
				updated_at             = NOW()
			WHERE id = $24
		`, sv.SpecificType, sv.TypeOfVehicle, sv.NumberOfCabs, sv.NumberOfSeats,
			sv.LengthUnit, sv.LengthMM, sv.Weight, sv.MaximumSpeed, sv.TrainBrakeType,
			sv.Livery, sv.Decor, sv.VehicleStatus, sv.RegisteredStatus, sv.RegisteredCategory,
			sv.DateRegistered, sv.DateEnteredService, sv.ResourcePosition, sv.PlannedResourceGroup,
			sv.ResourceGroupID, sv.FleetID, sv.TypeOfResource, sv.IsLocomotive,
			sv.ClassCode, id)
		return err
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO service_vehicles (
				operational_train_number, service_date, origin_std, vehicle_id,
				specific_type, type_of_vehicle, number_of_cabs, number_of_seats,
				length_unit, length_mm, weight, maximum_speed, train_brake_type,
				livery, decor, vehicle_status, registered_status, registered_category,
				date_registered, date_entered_service, resource_position, planned_resource_group,
				resource_group_id, fleet_id, type_of_resource, is_locomotive, class_code
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		`, sv.OperationalTrainNumber, sv.ServiceDate, sv.OriginSTD, sv.VehicleID,
			sv.SpecificType, sv.TypeOfVehicle, sv.NumberOfCabs, sv.NumberOfSeats,
			sv.LengthUnit, sv.LengthMM, sv.Weight, sv.MaximumSpeed, sv.TrainBrakeType,
			sv.Livery, sv.Decor, sv.VehicleStatus, sv.RegisteredStatus, sv.RegisteredCategory,
			sv.DateRegistered, sv.DateEnteredService, sv.ResourcePosition, sv.PlannedResourceGroup,
			sv.ResourceGroupID, sv.FleetID, sv.TypeOfResource, sv.IsLocomotive, sv.ClassCode)
		return err
	default:
		return err
	}
}
