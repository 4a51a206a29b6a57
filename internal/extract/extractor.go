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

// Package extract derives entity records from one canonical consist
// document. Extraction is a pure function of the document: no clock, no
// store, no hidden state, so replaying the audit log is deterministic.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railhound/consist/internal/consist"
	"github.com/railhound/consist/internal/models"
)

// ErrNotExtractable marks documents that are archived but carry too little
// structure to derive a service from. It is a normal outcome, not a fault:
// the envelope stays recoverable via reprocessing.
var ErrNotExtractable = errors.New("document not extractable")

// Extraction is the set of candidate records derived from one document.
type Extraction struct {
	Service         *models.TrainService
	Vehicles        []models.Vehicle
	ServiceVehicles []models.ServiceVehicle
}

// timeLayouts are tried in order when parsing wire timestamps. Producers
// mix RFC3339 and bare ISO forms.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FromMessage derives the service, vehicle and assignment candidates from
// one canonical message. It returns ErrNotExtractable (wrapped with the
// missing field) when the train number, the first timetable identifier's
// start date, or the first allocation's origin timestamp cannot be resolved.
func FromMessage(msg *consist.Message) (*Extraction, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty document", ErrNotExtractable)
	}

	otn := ""
	if msg.OperationalTrainNumberIdentifier != nil {
		otn = deref(msg.OperationalTrainNumberIdentifier.OperationalTrainNumber)
	}
	if otn == "" {
		return nil, fmt.Errorf("%w: missing operational train number", ErrNotExtractable)
	}

	toi := firstTransportIdentifier(msg)
	if toi == nil {
		return nil, fmt.Errorf("%w: missing transport operational identifiers for %s", ErrNotExtractable, otn)
	}
	startDate, ok := parseTime(deref(toi.StartDate))
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid start date for %s", ErrNotExtractable, otn)
	}
	serviceDate := startDate.Format("2006-01-02")

	if len(msg.Allocation) == 0 {
		return nil, fmt.Errorf("%w: missing allocations for %s", ErrNotExtractable, otn)
	}
	first := msg.Allocation[0]
	originTime, ok := parseTime(deref(first.TrainOriginDateTime))
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid origin datetime for %s", ErrNotExtractable, otn)
	}
	originSTD := originTime.Format("15:04")

	ext := &Extraction{
		Service: buildService(msg, otn, serviceDate, originSTD, originTime),
	}

	for _, alloc := range msg.Allocation {
		rg := alloc.ResourceGroup
		if rg == nil {
			continue
		}
		typeOfResource := deref(rg.TypeOfResource)
		resourceGroupID := deref(rg.ResourceGroupID)
		fleetID := deref(rg.FleetID)

		for i := range rg.Vehicle {
			veh := &rg.Vehicle[i]
			vehicleID := deref(veh.VehicleID)
			if vehicleID == "" {
				// No identity, nothing to key on.
				continue
			}
			ext.Vehicles = append(ext.Vehicles,
				buildVehicle(veh, vehicleID, typeOfResource, resourceGroupID, fleetID))
			ext.ServiceVehicles = append(ext.ServiceVehicles,
				buildServiceVehicle(veh, otn, serviceDate, originSTD, vehicleID, typeOfResource, resourceGroupID, fleetID))
		}
	}

	return ext, nil
}

// buildService assembles the TrainService candidate from the first
// allocation, the governing resource group and the first timetable
// identifier.
func buildService(msg *consist.Message, otn, serviceDate, originSTD string, originTime time.Time) *models.TrainService {
	svc := &models.TrainService{
		OperationalTrainNumber: otn,
		ServiceDate:            serviceDate,
		OriginSTD:              originSTD,
		TrainOriginDateTime:    originTime,
	}

	first := msg.Allocation[0]
	if t, ok := parseTime(deref(first.TrainDestDateTime)); ok {
		svc.TrainDestDateTime = &t
	}
	if loc := first.TrainOriginLocation; loc != nil {
		svc.OriginLocationPrimaryCode = loc.LocationPrimaryCode
		if loc.LocationSubsidiaryIdentification != nil {
			svc.OriginLocationName = loc.LocationSubsidiaryIdentification.LocationSubsidiaryCode
		}
	}
	if loc := first.TrainDestLocation; loc != nil {
		svc.DestLocationPrimaryCode = loc.LocationPrimaryCode
		if loc.LocationSubsidiaryIdentification != nil {
			svc.DestLocationName = loc.LocationSubsidiaryIdentification.LocationSubsidiaryCode
		}
	}

	if rg := governingResourceGroup(msg.Allocation); rg != nil {
		svc.FleetID = rg.FleetID
		svc.TypeOfResource = rg.TypeOfResource
		svc.ResourceGroupID = rg.ResourceGroupID

		firstVehicleID := ""
		if len(rg.Vehicle) > 0 {
			firstVehicleID = deref(rg.Vehicle[0].VehicleID)
		}
		svc.ClassCode = DeriveClassCode(deref(rg.TypeOfResource), deref(rg.ResourceGroupID), firstVehicleID)
		svc.PowerType = powerTypeFromResource(deref(rg.TypeOfResource))
		svc.RailClasses = railClasses(deref(rg.TypeOfResource))
	}

	if toi := firstTransportIdentifier(msg); toi != nil {
		svc.ToiCore = toi.Core
		svc.ToiVariant = toi.Variant
		if toi.TimetableYear != nil {
			year := int(*toi.TimetableYear)
			svc.ToiTimetableYear = &year
		}
		if t, ok := parseTime(deref(toi.StartDate)); ok {
			svc.ToiStartDate = &t
		}
	}

	return svc
}

// governingResourceGroup picks the resource group that classifies the whole
// service: the first traction unit ("L" or "U"), or failing that the first
// group seen, preserving some data over no data.
func governingResourceGroup(allocations []consist.Allocation) *consist.ResourceGroup {
	var fallback *consist.ResourceGroup
	for i := range allocations {
		rg := allocations[i].ResourceGroup
		if rg == nil {
			continue
		}
		if fallback == nil {
			fallback = rg
		}
		tor := deref(rg.TypeOfResource)
		if strings.EqualFold(tor, "L") || strings.EqualFold(tor, "U") {
			return rg
		}
	}
	return fallback
}

func buildVehicle(veh *consist.Vehicle, vehicleID, typeOfResource, resourceGroupID, fleetID string) models.Vehicle {
	lengthUnit, lengthMM := splitLength(veh.Length)
	classCode := DeriveClassCode(typeOfResource, resourceGroupID, vehicleID)

	v := models.Vehicle{
		VehicleID:            vehicleID,
		SpecificType:         veh.SpecificType,
		TypeOfVehicle:        veh.TypeOfVehicle,
		NumberOfCabs:         veh.Cabs,
		NumberOfSeats:        veh.NumberOfSeats,
		LengthUnit:           lengthUnit,
		LengthMM:             lengthMM,
		Weight:               veh.Weight,
		MaximumSpeed:         veh.MaximumSpeed,
		TrainBrakeType:       veh.TrainBrakeType,
		Livery:               veh.Livery,
		Decor:                veh.Decor,
		VehicleStatus:        veh.VehicleStatus,
		RegisteredStatus:     veh.RegisteredStatus,
		RegisteredCategory:   veh.RegisteredCategory,
		DateRegistered:       parseTimePtr(veh.DateRegistered),
		DateEnteredService:   parseTimePtr(veh.DateEnteredService),
		ResourcePosition:     veh.ResourcePosition,
		PlannedResourceGroup: veh.PlannedResourceGroup,
		ResourceGroupID:      resourceGroupID,
		FleetID:              fleetID,
		TypeOfResource:       typeOfResource,
		IsLocomotive:         strings.EqualFold(typeOfResource, "L"),
		ClassCode:            classCode,
		PowerType:            PowerTypeFromClass(classCode),
	}
	v.IsDrivingVehicle = veh.Cabs != nil && *veh.Cabs > 0
	return v
}

func buildServiceVehicle(veh *consist.Vehicle, otn, serviceDate, originSTD, vehicleID, typeOfResource, resourceGroupID, fleetID string) models.ServiceVehicle {
	lengthUnit, lengthMM := splitLength(veh.Length)

	return models.ServiceVehicle{
		OperationalTrainNumber: otn,
		ServiceDate:            serviceDate,
		OriginSTD:              originSTD,
		VehicleID:              vehicleID,
		SpecificType:           veh.SpecificType,
		TypeOfVehicle:          veh.TypeOfVehicle,
		NumberOfCabs:           veh.Cabs,
		NumberOfSeats:          veh.NumberOfSeats,
		LengthUnit:             lengthUnit,
		LengthMM:               lengthMM,
		Weight:                 veh.Weight,
		MaximumSpeed:           veh.MaximumSpeed,
		TrainBrakeType:         veh.TrainBrakeType,
		Livery:                 veh.Livery,
		Decor:                  veh.Decor,
		VehicleStatus:          veh.VehicleStatus,
		RegisteredStatus:       veh.RegisteredStatus,
		RegisteredCategory:     veh.RegisteredCategory,
		DateRegistered:         parseTimePtr(veh.DateRegistered),
		DateEnteredService:     parseTimePtr(veh.DateEnteredService),
		ResourcePosition:       veh.ResourcePosition,
		PlannedResourceGroup:   veh.PlannedResourceGroup,
		ResourceGroupID:        resourceGroupID,
		FleetID:                fleetID,
		TypeOfResource:         typeOfResource,
		IsLocomotive:           strings.EqualFold(typeOfResource, "L"),
		ClassCode:              DeriveClassCode(typeOfResource, resourceGroupID, vehicleID),
	}
}

// splitLength separates a length measure into unit and whole millimetres.
func splitLength(m *consist.Measure) (*string, *int) {
	if m == nil {
		return nil, nil
	}
	var mm *int
	if m.Value != nil {
		n := int(*m.Value)
		mm = &n
	}
	return m.Unit, mm
}

func firstTransportIdentifier(msg *consist.Message) *consist.TransportOperationalIdentifiers {
	if msg.TrainOperationalIdentification == nil {
		return nil
	}
	ids := msg.TrainOperationalIdentification.TransportOperationalIdentifiers
	if len(ids) == 0 {
		return nil
	}
	return &ids[0]
}

// parseTime tries each known wire layout and normalizes to UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	if t, ok := parseTime(*s); ok {
		return &t
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
