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
	"testing"
	"time"

	"github.com/railhound/consist/internal/models"
)

func sampleService(otn string, seats int) (*models.TrainService, []models.Vehicle, []models.ServiceVehicle) {
	origin := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	svc := &models.TrainService{
		OperationalTrainNumber: otn,
		ServiceDate:            "2026-03-14",
		OriginSTD:              "08:30",
		TrainOriginDateTime:    origin,
	}
	vehicles := []models.Vehicle{
		{VehicleID: "82205", NumberOfSeats: &seats},
	}
	assignments := []models.ServiceVehicle{
		{
			OperationalTrainNumber: otn,
			ServiceDate:            "2026-03-14",
			OriginSTD:              "08:30",
			VehicleID:              "82205",
			NumberOfSeats:          &seats,
		},
	}
	return svc, vehicles, assignments
}

// TestBatch_Converges verifies that repeated updates to the same natural
// keys collapse to one pending row each, last write winning.
func TestBatch_Converges(t *testing.T) {
	b := NewBatch()

	svc1, veh1, asg1 := sampleService("1A23", 30)
	svc2, veh2, asg2 := sampleService("1A23", 48)

	b.Add(svc1, veh1, asg1)
	if got := b.Pending(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}

	b.Add(svc2, veh2, asg2)
	if got := b.Pending(); got != 3 {
		t.Fatalf("pending after converging update = %d, want 3", got)
	}

	cached := b.vehicles["82205"]
	if cached == nil || cached.NumberOfSeats == nil || *cached.NumberOfSeats != 48 {
		t.Error("last write should win in the vehicle cache")
	}
	sv := b.serviceVehicles[asg2[0].Key()]
	if sv == nil || *sv.NumberOfSeats != 48 {
		t.Error("last write should win in the assignment cache")
	}
}

// TestBatch_DistinctKeysAccumulate verifies that different services do not
// collide.
func TestBatch_DistinctKeysAccumulate(t *testing.T) {
	b := NewBatch()

	svc1, veh1, asg1 := sampleService("1A23", 30)
	svc2, veh2, asg2 := sampleService("2B44", 30)
	// Same vehicle appears in both services.
	b.Add(svc1, veh1, asg1)
	b.Add(svc2, veh2, asg2)

	if len(b.services) != 2 {
		t.Errorf("services = %d, want 2", len(b.services))
	}
	if len(b.vehicles) != 1 {
		t.Errorf("vehicles = %d, want 1 (shared vehicle converges)", len(b.vehicles))
	}
	if len(b.serviceVehicles) != 2 {
		t.Errorf("assignments = %d, want 2 (distinct per service)", len(b.serviceVehicles))
	}
}

// TestBatch_NilService verifies that a nil service contributes nothing but
// vehicles still land.
func TestBatch_NilService(t *testing.T) {
	b := NewBatch()
	_, veh, asg := sampleService("1A23", 30)

	b.Add(nil, veh, asg)
	if len(b.services) != 0 {
		t.Error("nil service must not be cached")
	}
	if b.Pending() != 2 {
		t.Errorf("pending = %d, want 2", b.Pending())
	}
}

// TestBatch_SameTrainDifferentDeparture verifies that the origin timestamp
// participates in the service key. The same train number departing twice on
// one date is two services.
func TestBatch_SameTrainDifferentDeparture(t *testing.T) {
	b := NewBatch()

	svc1, _, _ := sampleService("1A23", 30)
	svc2, _, _ := sampleService("1A23", 30)
	svc2.TrainOriginDateTime = svc2.TrainOriginDateTime.Add(12 * time.Hour)

	b.Add(svc1, nil, nil)
	b.Add(svc2, nil, nil)

	if len(b.services) != 2 {
		t.Errorf("services = %d, want 2", len(b.services))
	}
}

// TestBatch_AddCopies verifies that the cache is not aliased to the caller's
// slices; mutating the input after Add must not change cached rows.
func TestBatch_AddCopies(t *testing.T) {
	b := NewBatch()
	_, veh, _ := sampleService("1A23", 30)

	b.Add(nil, veh, nil)
	veh[0].VehicleID = "mutated"

	if _, ok := b.vehicles["82205"]; !ok {
		t.Error("cached vehicle should keep its original identity")
	}
}
