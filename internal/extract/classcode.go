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

package extract

import (
	"strconv"
	"strings"
)

// DeriveClassCode works out the rolling-stock class from the resource group
// and vehicle identifiers. Multiple units carry the class in the first three
// characters of the resource group id; everything else falls back to the
// first two characters of the vehicle id. Reporting relies on these exact
// rules, so change them together with the power-type table below.
func DeriveClassCode(typeOfResource, resourceGroupID, vehicleID string) *string {
	if strings.EqualFold(typeOfResource, "U") && len(resourceGroupID) >= 3 {
		code := resourceGroupID[:3]
		return &code
	}
	if len(vehicleID) >= 2 {
		code := vehicleID[:2]
		return &code
	}
	return nil
}

// PowerTypeFromClass maps numeric class-code ranges to traction categories.
// The boundaries follow the British rolling-stock numbering conventions.
func PowerTypeFromClass(classCode *string) *string {
	if classCode == nil || strings.TrimSpace(*classCode) == "" {
		return nil
	}
	cls, err := strconv.Atoi(*classCode)
	if err != nil {
		return nil
	}

	var pt string
	switch {
	case cls >= 1 && cls <= 70:
		pt = "Diesel"
	case cls >= 71 && cls <= 96:
		pt = "Electric"
	case cls == 97:
		pt = "Diesel"
	case cls == 98:
		pt = "Steam"
	case cls >= 101 && cls <= 299:
		pt = "Diesel"
	case cls >= 300 && cls <= 398:
		pt = "Electric"
	case cls == 399:
		pt = "Diesel"
	case cls >= 400 && cls <= 799:
		pt = "Electric"
	case cls == 800:
		pt = "Diesel/Electric (bi-mode)"
	case cls == 801:
		pt = "Electric"
	case cls == 802:
		pt = "Diesel/Electric (bi-mode)"
	case cls == 901:
		pt = "Diesel"
	case cls >= 910 && cls <= 939:
		pt = "Electric"
	case cls >= 950 && cls <= 999:
		pt = "Diesel"
	default:
		return nil
	}
	return &pt
}

// powerTypeFromResource classifies a service by its governing resource
// group's type. This is coarser than the class-code table and applies at the
// service level only.
func powerTypeFromResource(typeOfResource string) *string {
	if typeOfResource == "" {
		return nil
	}

	var pt string
	switch strings.ToUpper(typeOfResource) {
	case "DE", "DMU":
		pt = "Diesel"
	case "EL", "EM", "EMU":
		pt = "Electric"
	case "U":
		pt = "Electric/Diesel"
	default:
		return nil
	}
	return &pt
}

// railClasses labels the service's formation style.
func railClasses(typeOfResource string) *string {
	if typeOfResource == "" {
		return nil
	}
	label := "Loco Hauled"
	if strings.Contains(strings.ToUpper(typeOfResource), "M") {
		label = "Multiple Unit"
	}
	return &label
}
