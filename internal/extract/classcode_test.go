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

import "testing"

func strp(s string) *string { return &s }

func TestDeriveClassCode(t *testing.T) {
	cases := []struct {
		name            string
		typeOfResource  string
		resourceGroupID string
		vehicleID       string
		want            *string
	}{
		{"multiple unit takes resource group prefix", "U", "390123", "69123456", strp("390")},
		{"lowercase u accepted", "u", "390123", "69123456", strp("390")},
		{"loco takes vehicle prefix", "L", "67123", "67012", strp("67")},
		{"short resource group falls through to vehicle", "U", "39", "390123", strp("39")},
		{"no usable identifiers", "L", "", "6", nil},
		{"empty everything", "", "", "", nil},
		{"non U with long group still uses vehicle", "DM", "390123", "82205", strp("82")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveClassCode(tc.typeOfResource, tc.resourceGroupID, tc.vehicleID)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Errorf("class code = %q, want %q", *got, *tc.want)
			}
		})
	}
}

func TestPowerTypeFromClass(t *testing.T) {
	cases := []struct {
		class string
		want  string
	}{
		{"08", "Diesel"},
		{"01", "Diesel"},
		{"70", "Diesel"},
		{"71", "Electric"},
		{"90", "Electric"},
		{"96", "Electric"},
		{"97", "Diesel"},
		{"98", "Steam"},
		{"101", "Diesel"},
		{"222", "Diesel"},
		{"299", "Diesel"},
		{"300", "Electric"},
		{"390", "Electric"},
		{"398", "Electric"},
		{"399", "Diesel"},
		{"400", "Electric"},
		{"700", "Electric"},
		{"799", "Electric"},
		{"800", "Diesel/Electric (bi-mode)"},
		{"801", "Electric"},
		{"802", "Diesel/Electric (bi-mode)"},
		{"901", "Diesel"},
		{"910", "Electric"},
		{"939", "Electric"},
		{"950", "Diesel"},
		{"999", "Diesel"},
	}

	for _, tc := range cases {
		t.Run(tc.class, func(t *testing.T) {
			got := PowerTypeFromClass(strp(tc.class))
			if got == nil {
				t.Fatalf("class %s: got nil, want %s", tc.class, tc.want)
			}
			if *got != tc.want {
				t.Errorf("class %s: power type = %q, want %q", tc.class, *got, tc.want)
			}
		})
	}
}

func TestPowerTypeFromClass_Unmapped(t *testing.T) {
	for _, class := range []string{"", "  ", "ABC", "0", "99", "100", "803", "900", "940", "949", "1000"} {
		if got := PowerTypeFromClass(strp(class)); got != nil {
			t.Errorf("class %q: expected nil, got %q", class, *got)
		}
	}
	if got := PowerTypeFromClass(nil); got != nil {
		t.Errorf("nil class: expected nil, got %q", *got)
	}
}

func TestPowerTypeFromResource(t *testing.T) {
	cases := []struct {
		resource string
		want     string
	}{
		{"DE", "Diesel"},
		{"DMU", "Diesel"},
		{"dmu", "Diesel"},
		{"EL", "Electric"},
		{"EM", "Electric"},
		{"EMU", "Electric"},
		{"U", "Electric/Diesel"},
	}

	for _, tc := range cases {
		got := powerTypeFromResource(tc.resource)
		if got == nil || *got != tc.want {
			t.Errorf("resource %q: got %v, want %q", tc.resource, got, tc.want)
		}
	}

	for _, resource := range []string{"", "L", "XX"} {
		if got := powerTypeFromResource(resource); got != nil {
			t.Errorf("resource %q: expected nil, got %q", resource, *got)
		}
	}
}

func TestRailClasses(t *testing.T) {
	cases := []struct {
		resource string
		want     string
	}{
		{"DMU", "Multiple Unit"},
		{"EMU", "Multiple Unit"},
		{"EM", "Multiple Unit"},
		{"L", "Loco Hauled"},
		{"DE", "Loco Hauled"},
		{"U", "Loco Hauled"},
	}

	for _, tc := range cases {
		got := railClasses(tc.resource)
		if got == nil || *got != tc.want {
			t.Errorf("resource %q: got %v, want %q", tc.resource, got, tc.want)
		}
	}

	if got := railClasses(""); got != nil {
		t.Errorf("empty resource: expected nil, got %q", *got)
	}
}
