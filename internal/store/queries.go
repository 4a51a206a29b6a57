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

	"github.com/jackc/pgx/v5"

	"github.com/railhound/consist/internal/models"
)

const serviceColumns = `
	id, operational_train_number, service_date, origin_std, train_origin_datetime,
	train_dest_datetime, origin_location_primary_code, origin_location_name,
	dest_location_primary_code, dest_location_name, fleet_id, type_of_resource,
	resource_group_id, class_code, power_type, rail_classes,
	toi_core, toi_variant, toi_timetable_year, toi_start_date, created_at, updated_at`

const vehicleColumns = `
	id, vehicle_id, specific_type, type_of_vehicle, number_of_cabs, number_of_seats,
	length_unit, length_mm, weight, maximum_speed, train_brake_type,
	livery, decor, vehicle_status, registered_status, registered_category,
	date_registered, date_entered_service, resource_position, planned_resource_group,
	resource_group_id, fleet_id, type_of_resource, is_locomotive,
	class_code, power_type, is_driving_vehicle, created_at, updated_at`

const serviceVehicleColumns = `
	id, operational_train_number, service_date, origin_std, vehicle_id,
	specific_type, type_of_vehicle, number_of_cabs, number_of_seats,
	length_unit, length_mm, weight, maximum_speed, train_brake_type,
	livery, decor, vehicle_status, registered_status, registered_category,
	date_registered, date_entered_service, resource_position, planned_resource_group,
	resource_group_id, fleet_id, type_of_resource, is_locomotive, class_code,
	created_at, updated_at`

// GetTrainService looks up one service by its natural key. Returns nil when
// no matching row exists.
func (s *Store) GetTrainService(ctx context.Context, key models.ServiceKey) (*models.TrainService, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM train_services
		WHERE operational_train_number = $1 AND service_date = $2
		  AND origin_std = $3 AND train_origin_datetime = $4
	`, key.OperationalTrainNumber, key.ServiceDate, key.OriginSTD, key.TrainOriginDateTime)
	return scanService(row)
}

// ListTrainServicesByDate returns all services running on one calendar date,
// ordered by scheduled departure.
func (s *Store) ListTrainServicesByDate(ctx context.Context, serviceDate string) ([]models.TrainService, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM train_services
		WHERE service_date = $1
		ORDER BY origin_std, operational_train_number
	`, serviceDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []models.TrainService
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}
	return services, rows.Err()
}

// GetVehicle looks up one vehicle by its global identifier. Returns nil when
// the vehicle has never been seen.
func (s *Store) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE vehicle_id = $1
	`, vehicleID)

	var v models.Vehicle
	err := row.Scan(
		&v.ID, &v.VehicleID, &v.SpecificType, &v.TypeOfVehicle, &v.NumberOfCabs,
		&v.NumberOfSeats, &v.LengthUnit, &v.LengthMM, &v.Weight, &v.MaximumSpeed,
		&v.TrainBrakeType, &v.Livery, &v.Decor, &v.VehicleStatus, &v.RegisteredStatus,
		&v.RegisteredCategory, &v.DateRegistered, &v.DateEnteredService,
		&v.ResourcePosition, &v.PlannedResourceGroup, &v.ResourceGroupID, &v.FleetID,
		&v.TypeOfResource, &v.IsLocomotive, &v.ClassCode, &v.PowerType,
		&v.IsDrivingVehicle, &v.CreatedAt, &v.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListServiceVehicles returns a service instance's consist in formation
// order.
func (s *Store) ListServiceVehicles(ctx context.Context, otn, serviceDate, originSTD string) ([]models.ServiceVehicle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+serviceVehicleColumns+`
		FROM service_vehicles
		WHERE operational_train_number = $1 AND service_date = $2 AND origin_std = $3
		ORDER BY resource_position NULLS LAST, vehicle_id
	`, otn, serviceDate, originSTD)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.ServiceVehicle
	for rows.Next() {
		var sv models.ServiceVehicle
		if err := rows.Scan(
			&sv.ID, &sv.OperationalTrainNumber, &sv.ServiceDate, &sv.OriginSTD, &sv.VehicleID,
			&sv.SpecificType, &sv.TypeOfVehicle, &sv.NumberOfCabs, &sv.NumberOfSeats,
			&sv.LengthUnit, &sv.LengthMM, &sv.Weight, &sv.MaximumSpeed, &sv.TrainBrakeType,
			&sv.Livery, &sv.Decor, &sv.VehicleStatus, &sv.RegisteredStatus, &sv.RegisteredCategory,
			&sv.DateRegistered, &sv.DateEnteredService, &sv.ResourcePosition, &sv.PlannedResourceGroup,
			&sv.ResourceGroupID, &sv.FleetID, &sv.TypeOfResource, &sv.IsLocomotive, &sv.ClassCode,
			&sv.CreatedAt, &sv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		assignments = append(assignments, sv)
	}
	return assignments, rows.Err()
}

// HasTrainServices reports whether any service rows have ever been derived.
// The boot-time gap check compares this against the archive to decide
// whether a replay is needed.
func (s *Store) HasTrainServices(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM train_services)").Scan(&exists)
	return exists, err
}

func scanService(row pgx.Row) (*models.TrainService, error) {
	var svc models.TrainService
	err := row.Scan(
		&svc.ID, &svc.OperationalTrainNumber, &svc.ServiceDate, &svc.OriginSTD,
		&svc.TrainOriginDateTime, &svc.TrainDestDateTime, &svc.OriginLocationPrimaryCode,
		&svc.OriginLocationName, &svc.DestLocationPrimaryCode, &svc.DestLocationName,
		&svc.FleetID, &svc.TypeOfResource, &svc.ResourceGroupID, &svc.ClassCode,
		&svc.PowerType, &svc.RailClasses, &svc.ToiCore, &svc.ToiVariant,
		&svc.ToiTimetableYear, &svc.ToiStartDate, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}
