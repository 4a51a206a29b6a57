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

// Package consist defines the canonical train-consist document model and the
// normalizer that converts inbound payloads (canonical JSON or TAF/TSI XML)
// into it. Every "might be absent" node is a pointer or slice field, so
// optional-structure handling is an explicit branch rather than implicit
// null propagation.
package consist

import (
	"strconv"
	"strings"
)

// Message is the canonical consist document. JSON tags carry the wire
// property names; XML tags bind the TAF/TSI element names. Date and time
// values stay strings here and are parsed at extraction, because inbound
// producers are not consistent about timestamp formats.
type Message struct {
	MessageHeader                    *MessageHeader                    `json:"MessageHeader,omitempty" xml:"MessageHeader"`
	MessageStatus                    *int                              `json:"MessageStatus,omitempty" xml:"MessageStatus"`
	TrainOperationalIdentification   *TrainOperationalIdentification   `json:"TrainOperationalIdentification,omitempty" xml:"TrainOperationalIdentification"`
	OperationalTrainNumberIdentifier *OperationalTrainNumberIdentifier `json:"OperationalTrainNumberIdentifier,omitempty" xml:"OperationalTrainNumberIdentifier"`
	ResponsibleRU                    *string                           `json:"ResponsibleRU,omitempty" xml:"ResponsibleRU"`
	Allocation                       []Allocation                      `json:"Allocation,omitempty" xml:"Allocation"`
}

// MessageHeader identifies the message itself, not the train.
type MessageHeader struct {
	MessageReference *MessageReference `json:"MessageReference,omitempty" xml:"MessageReference"`
	Sender           *string           `json:"Sender,omitempty" xml:"Sender"`
	Recipient        *string           `json:"Recipient,omitempty" xml:"Recipient"`
}

type MessageReference struct {
	MessageType        *string `json:"MessageType,omitempty" xml:"MessageType"`
	MessageTypeVersion *string `json:"MessageTypeVersion,omitempty" xml:"MessageTypeVersion"`
	MessageIdentifier  *string `json:"MessageIdentifier,omitempty" xml:"MessageIdentifier"`
	MessageDateTime    *string `json:"MessageDateTime,omitempty" xml:"MessageDateTime"`
}

type TrainOperationalIdentification struct {
	TransportOperationalIdentifiers []TransportOperationalIdentifiers `json:"TransportOperationalIdentifiers,omitempty" xml:"TransportOperationalIdentifiers"`
}

type TransportOperationalIdentifiers struct {
	ObjectType    *string `json:"ObjectType,omitempty" xml:"ObjectType"`
	Company       *string `json:"Company,omitempty" xml:"Company"`
	Core          *string `json:"Core,omitempty" xml:"Core"`
	Variant       *string `json:"Variant,omitempty" xml:"Variant"`
	TimetableYear *Year   `json:"TimetableYear,omitempty" xml:"TimetableYear"`
	StartDate     *string `json:"StartDate,omitempty" xml:"StartDate"`
}

type OperationalTrainNumberIdentifier struct {
	OperationalTrainNumber      *string `json:"OperationalTrainNumber,omitempty" xml:"OperationalTrainNumber"`
	ScheduledTimeAtHandover     *string `json:"ScheduledTimeAtHandover,omitempty" xml:"ScheduledTimeAtHandover"`
	ScheduledDateTimeAtTransfer *string `json:"ScheduledDateTimeAtTransfer,omitempty" xml:"ScheduledDateTimeAtTransfer"`
}

// Allocation is one leg of a service's resource assignment.
type Allocation struct {
	AllocationSequenceNumber      *int           `json:"AllocationSequenceNumber,omitempty" xml:"AllocationSequenceNumber"`
	TrainOriginDateTime           *string        `json:"TrainOriginDateTime,omitempty" xml:"TrainOriginDateTime"`
	TrainOriginLocation           *Location      `json:"TrainOriginLocation,omitempty" xml:"TrainOriginLocation"`
	ResourceGroupPosition         *int           `json:"ResourceGroupPosition,omitempty" xml:"ResourceGroupPosition"`
	DiagramDate                   *string        `json:"DiagramDate,omitempty" xml:"DiagramDate"`
	DiagramNo                     *string        `json:"DiagramNo,omitempty" xml:"DiagramNo"`
	TrainDestLocation             *Location      `json:"TrainDestLocation,omitempty" xml:"TrainDestLocation"`
	TrainDestDateTime             *string        `json:"TrainDestDateTime,omitempty" xml:"TrainDestDateTime"`
	AllocationOriginLocation      *Location      `json:"AllocationOriginLocation,omitempty" xml:"AllocationOriginLocation"`
	AllocationOriginDateTime      *string        `json:"AllocationOriginDateTime,omitempty" xml:"AllocationOriginDateTime"`
	AllocationOriginMiles         *int           `json:"AllocationOriginMiles,omitempty" xml:"AllocationOriginMiles"`
	AllocationDestinationLocation *Location      `json:"AllocationDestinationLocation,omitempty" xml:"AllocationDestinationLocation"`
	AllocationDestinationDateTime *string        `json:"AllocationDestinationDateTime,omitempty" xml:"AllocationDestinationDateTime"`
	AllocationDestinationMiles    *int           `json:"AllocationDestinationMiles,omitempty" xml:"AllocationDestinationMiles"`
	Reversed                      *string        `json:"Reversed,omitempty" xml:"Reversed"`
	ResourceGroup                 *ResourceGroup `json:"ResourceGroup,omitempty" xml:"ResourceGroup"`
}

type Location struct {
	CountryCodeISO                   *string                           `json:"CountryCodeISO,omitempty" xml:"CountryCodeISO"`
	LocationPrimaryCode              *string                           `json:"LocationPrimaryCode,omitempty" xml:"LocationPrimaryCode"`
	LocationSubsidiaryIdentification *LocationSubsidiaryIdentification `json:"LocationSubsidiaryIdentification,omitempty" xml:"LocationSubsidiaryIdentification"`
}

type LocationSubsidiaryIdentification struct {
	LocationSubsidiaryCode *string `json:"LocationSubsidiaryCode,omitempty" xml:"LocationSubsidiaryCode"`
	AllocationCompany      *string `json:"AllocationCompany,omitempty" xml:"AllocationCompany"`
}

// ResourceGroup groups the vehicles sharing one traction/operational role
// within an allocation.
type ResourceGroup struct {
	ResourceGroupID     *string        `json:"ResourceGroupId,omitempty" xml:"ResourceGroupId"`
	TypeOfResource      *string        `json:"TypeOfResource,omitempty" xml:"TypeOfResource"`
	FleetID             *string        `json:"FleetId,omitempty" xml:"FleetId"`
	ResourceGroupStatus *string        `json:"ResourceGroupStatus,omitempty" xml:"ResourceGroupStatus"`
	EndOfDayMiles       *int64         `json:"EndOfDayMiles,omitempty" xml:"EndOfDayMiles"`
	Preassignment       *Preassignment `json:"Preassignment,omitempty" xml:"Preassignment"`
	Vehicle             []Vehicle      `json:"Vehicle,omitempty" xml:"Vehicle"`
}

type Preassignment struct {
	PreAssignmentRequiredLocation *Location `json:"PreAssignmentRequiredLocation,omitempty" xml:"PreAssignmentRequiredLocation"`
	PreAssignmentDueDateTime      *string   `json:"PreAssignmentDueDateTime,omitempty" xml:"PreAssignmentDueDateTime"`
	PreAssignmentReason           *string   `json:"PreAssignmentReason,omitempty" xml:"PreAssignmentReason"`
	PreAssignmentDateTime         *string   `json:"PreAssignmentDateTime,omitempty" xml:"PreAssignmentDateTime"`
}

type Vehicle struct {
	VehicleID              *string  `json:"VehicleId,omitempty" xml:"VehicleId"`
	TypeOfVehicle          *string  `json:"TypeOfVehicle,omitempty" xml:"TypeOfVehicle"`
	ResourcePosition       *int     `json:"ResourcePosition,omitempty" xml:"ResourcePosition"`
	PlannedResourceGroup   *string  `json:"PlannedResourceGroup,omitempty" xml:"PlannedResourceGroup"`
	SpecificType           *string  `json:"SpecificType,omitempty" xml:"SpecificType"`
	Length                 *Measure `json:"Length,omitempty" xml:"Length"`
	Weight                 *int     `json:"Weight,omitempty" xml:"Weight"`
	Livery                 *string  `json:"Livery,omitempty" xml:"Livery"`
	Decor                  *string  `json:"Decor,omitempty" xml:"Decor"`
	SpecialCharacteristics *string  `json:"SpecialCharacteristics,omitempty" xml:"SpecialCharacteristics"`
	NumberOfSeats          *int     `json:"NumberOfSeats,omitempty" xml:"NumberOfSeats"`
	VehicleStatus          *string  `json:"VehicleStatus,omitempty" xml:"VehicleStatus"`
	RegisteredStatus       *string  `json:"RegisteredStatus,omitempty" xml:"RegisteredStatus"`
	Cabs                   *int     `json:"Cabs,omitempty" xml:"Cabs"`
	DateEnteredService     *string  `json:"DateEnteredService,omitempty" xml:"DateEnteredService"`
	DateRegistered         *string  `json:"DateRegistered,omitempty" xml:"DateRegistered"`
	RegisteredCategory     *string  `json:"RegisteredCategory,omitempty" xml:"RegisteredCategory"`
	TrainBrakeType         *string  `json:"TrainBrakeType,omitempty" xml:"TrainBrakeType"`
	MaximumSpeed           *int     `json:"MaximumSpeed,omitempty" xml:"MaximumSpeed"`
	Defect                 []Defect `json:"Defect,omitempty" xml:"Defect"`
}

// Measure is a value with a unit. The wire names differ between formats:
// the XML schema nests the unit under a <Measure> element while canonical
// JSON calls it "Unit".
type Measure struct {
	Value *float64 `json:"Value,omitempty" xml:"Value"`
	Unit  *string  `json:"Unit,omitempty" xml:"Measure"`
}

type Defect struct {
	MaintenanceUID    *string `json:"MaintenanceUID,omitempty" xml:"MaintenanceUID"`
	DefectCode        *string `json:"DefectCode,omitempty" xml:"DefectCode"`
	DefectDescription *string `json:"DefectDescription,omitempty" xml:"DefectDescription"`
	DefectStatus      *string `json:"DefectStatus,omitempty" xml:"DefectStatus"`
}

// Year decodes a timetable year that arrives as either a JSON number or a
// numeric string. A non-numeric value decodes as zero rather than failing
// the whole document.
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	*y = Year(n)
	return nil
}
