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

// Package models defines the persisted entity records derived from consist
// messages, plus the raw audit envelope and the natural keys the upsert
// layer matches on.
package models

import "time"

// RawEnvelope is one archived inbound message. The audit table is
// append-only: envelopes are never updated or deleted, and duplicate
// deliveries produce duplicate rows.
type RawEnvelope struct {
	ID         int64
	ReceivedAt time.Time
	Payload    []byte
}

// ServiceKey is the natural key of a train service instance.
type ServiceKey struct {
	OperationalTrainNumber string
	ServiceDate            string // yyyy-MM-dd
	OriginSTD              string // HH:mm
	TrainOriginDateTime    time.Time
}

// ServiceVehicleKey is the natural key of a service-vehicle assignment.
type ServiceVehicleKey struct {
	OperationalTrainNumber string
	ServiceDate            string
	OriginSTD              string
	VehicleID              string
}

// TrainService is one scheduled run of a train on one calendar date.
type TrainService struct {
	ID                        int64
	OperationalTrainNumber    string
	ServiceDate               string // yyyy-MM-dd
	OriginSTD                 string // HH:mm
	TrainOriginDateTime       time.Time
	TrainDestDateTime         *time.Time
	OriginLocationPrimaryCode *string
	OriginLocationName        *string
	DestLocationPrimaryCode   *string
	DestLocationName          *string
	FleetID                   *string
	TypeOfResource            *string
	ResourceGroupID           *string
	ClassCode                 *string
	PowerType                 *string
	RailClasses               *string
	ToiCore                   *string
	ToiVariant                *string
	ToiTimetableYear          *int
	ToiStartDate              *time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Key returns the service's natural key.
func (t *TrainService) Key() ServiceKey {
	return ServiceKey{
		OperationalTrainNumber: t.OperationalTrainNumber,
		ServiceDate:            t.ServiceDate,
		OriginSTD:              t.OriginSTD,
		TrainOriginDateTime:    t.TrainOriginDateTime,
	}
}

// Vehicle is one physical rail vehicle, identified globally by VehicleID.
// The record is shared across every service the vehicle ever appears in and
// is fully overwritten by the most recently processed message mentioning it.
type Vehicle struct {
	ID                   int64
	VehicleID            string
	SpecificType         *string
	TypeOfVehicle        *string
	NumberOfCabs         *int
	NumberOfSeats        *int
	LengthUnit           *string
	LengthMM             *int
	Weight               *int
	MaximumSpeed         *int
	TrainBrakeType       *string
	Livery               *string
	Decor                *string
	VehicleStatus        *string
	RegisteredStatus     *string
	RegisteredCategory   *string
	DateRegistered       *time.Time
	DateEnteredService   *time.Time
	ResourcePosition     *int
	PlannedResourceGroup *string
	ResourceGroupID      string
	FleetID              string
	TypeOfResource       string
	IsLocomotive         bool
	ClassCode            *string
	PowerType            *string
	IsDrivingVehicle     bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ServiceVehicle records that a vehicle was part of one service instance's
// consist. The vehicle characteristics are a denormalized snapshot as
// observed in that service's message, not a join against the vehicles table.
type ServiceVehicle struct {
	ID                     int64
	OperationalTrainNumber string
	ServiceDate            string
	OriginSTD              string
	VehicleID              string
	SpecificType           *string
	TypeOfVehicle          *string
	NumberOfCabs           *int
	NumberOfSeats          *int
	LengthUnit             *string
	LengthMM               *int
	Weight                 *int
	MaximumSpeed           *int
	TrainBrakeType         *string
	Livery                 *string
	Decor                  *string
	VehicleStatus          *string
	RegisteredStatus       *string
	RegisteredCategory     *string
	DateRegistered         *time.Time
	DateEnteredService     *time.Time
	ResourcePosition       *int
	PlannedResourceGroup   *string
	ResourceGroupID        string
	FleetID                string
	TypeOfResource         string
	IsLocomotive           bool
	ClassCode              *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Key returns the assignment's natural key.
func (s *ServiceVehicle) Key() ServiceVehicleKey {
	return ServiceVehicleKey{
		OperationalTrainNumber: s.OperationalTrainNumber,
		ServiceDate:            s.ServiceDate,
		OriginSTD:              s.OriginSTD,
		VehicleID:              s.VehicleID,
	}
}
