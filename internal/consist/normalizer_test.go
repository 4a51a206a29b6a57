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

package consist

import (
	"encoding/json"
	"strings"
	"testing"
)

const jsonSample = `{
	"MessageStatus": 1,
	"OperationalTrainNumberIdentifier": {"OperationalTrainNumber": "1A23"},
	"TrainOperationalIdentification": {
		"TransportOperationalIdentifiers": [
			{"Core": "CORE01", "TimetableYear": 2026, "StartDate": "2026-03-14"}
		]
	},
	"Allocation": [
		{
			"TrainOriginDateTime": "2026-03-14T08:30:00Z",
			"ResourceGroup": {
				"ResourceGroupId": "390123",
				"TypeOfResource": "U",
				"Vehicle": [
					{"VehicleId": "390123A", "Cabs": 1, "Length": {"Value": 24500, "Unit": "mm"}}
				]
			}
		}
	]
}`

const xmlSample = `<PassengerTrainConsistMessage>
	<MessageStatus>1</MessageStatus>
	<OperationalTrainNumberIdentifier>
		<OperationalTrainNumber>1A23</OperationalTrainNumber>
	</OperationalTrainNumberIdentifier>
	<TrainOperationalIdentification>
		<TransportOperationalIdentifiers>
			<Core>CORE01</Core>
			<TimetableYear>2026</TimetableYear>
			<StartDate>2026-03-14</StartDate>
		</TransportOperationalIdentifiers>
	</TrainOperationalIdentification>
	<Allocation>
		<TrainOriginDateTime>2026-03-14T08:30:00Z</TrainOriginDateTime>
		<ResourceGroup>
			<ResourceGroupId>390123</ResourceGroupId>
			<TypeOfResource>U</TypeOfResource>
			<Vehicle>
				<VehicleId>390123A</VehicleId>
				<Cabs>1</Cabs>
				<Length><Value>24500</Value><Measure>mm</Measure></Length>
			</Vehicle>
		</ResourceGroup>
	</Allocation>
</PassengerTrainConsistMessage>`

// TestNormalize_JSON verifies that canonical JSON passes through byte for
// byte and parses into a message.
func TestNormalize_JSON(t *testing.T) {
	doc := Normalize(jsonSample)

	if doc.Fallback {
		t.Fatal("JSON payload should not fall back")
	}
	if string(doc.Canonical) != jsonSample {
		t.Error("canonical bytes should be the original JSON, unmodified")
	}
	if doc.Msg == nil {
		t.Fatal("expected parsed message")
	}
	if got := *doc.Msg.OperationalTrainNumberIdentifier.OperationalTrainNumber; got != "1A23" {
		t.Errorf("train number = %q, want 1A23", got)
	}
	if len(doc.Msg.Allocation) != 1 {
		t.Fatalf("allocations = %d, want 1", len(doc.Msg.Allocation))
	}
	rg := doc.Msg.Allocation[0].ResourceGroup
	if rg == nil || *rg.ResourceGroupID != "390123" {
		t.Error("resource group id not parsed")
	}
	if len(rg.Vehicle) != 1 || *rg.Vehicle[0].Length.Unit != "mm" {
		t.Error("vehicle length unit not parsed")
	}
}

// TestNormalize_XML verifies that TAF/TSI XML converts to canonical JSON
// carrying the same structure.
func TestNormalize_XML(t *testing.T) {
	doc := Normalize(xmlSample)

	if doc.Fallback {
		t.Fatal("XML payload should not fall back")
	}
	if doc.Msg == nil {
		t.Fatal("expected parsed message")
	}
	if got := *doc.Msg.OperationalTrainNumberIdentifier.OperationalTrainNumber; got != "1A23" {
		t.Errorf("train number = %q, want 1A23", got)
	}

	toi := doc.Msg.TrainOperationalIdentification.TransportOperationalIdentifiers
	if len(toi) != 1 {
		t.Fatalf("identifiers = %d, want 1", len(toi))
	}
	if *toi[0].TimetableYear != 2026 {
		t.Errorf("timetable year = %d, want 2026", *toi[0].TimetableYear)
	}

	// The XML <Measure> element carries the unit.
	veh := doc.Msg.Allocation[0].ResourceGroup.Vehicle[0]
	if veh.Length == nil || veh.Length.Unit == nil || *veh.Length.Unit != "mm" {
		t.Error("length unit should come from the Measure element")
	}

	if !json.Valid(doc.Canonical) {
		t.Error("canonical form must be valid JSON")
	}
	if strings.Contains(string(doc.Canonical), "<") {
		t.Error("canonical form must not contain XML")
	}
}

// TestNormalize_XMLRoundTrip verifies that the canonical JSON produced from
// XML decodes back to the same message.
func TestNormalize_XMLRoundTrip(t *testing.T) {
	doc := Normalize(xmlSample)
	if doc.Msg == nil {
		t.Fatal("expected parsed message")
	}

	decoded := DecodeDocument(doc.Canonical)
	if decoded.Fallback || decoded.Msg == nil {
		t.Fatal("canonical JSON should decode back to a message")
	}
	if *decoded.Msg.OperationalTrainNumberIdentifier.OperationalTrainNumber != "1A23" {
		t.Error("round trip lost the train number")
	}
	if *decoded.Msg.Allocation[0].ResourceGroup.Vehicle[0].VehicleID != "390123A" {
		t.Error("round trip lost the vehicle id")
	}
}

// TestNormalize_Fallback verifies that unrecognizable payloads wrap rather
// than fail.
func TestNormalize_Fallback(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"plain text", "not a consist message at all"},
		{"truncated json", `{"MessageStatus": 1,`},
		{"json scalar", `42`},
		{"json array", `[1, 2, 3]`},
		{"unrelated xml", "<SomethingElse><Foo/></SomethingElse>"},
		{"empty", ""},
		{"whitespace", "   \n\t  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := Normalize(tc.input)
			if !doc.Fallback {
				t.Fatal("expected fallback document")
			}
			if !json.Valid(doc.Canonical) {
				t.Fatal("fallback wrapper must be valid JSON")
			}

			var wrapper struct {
				Format  string `json:"format"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(doc.Canonical, &wrapper); err != nil {
				t.Fatalf("unmarshal wrapper: %v", err)
			}
			if wrapper.Format != "raw" {
				t.Errorf("format = %q, want raw", wrapper.Format)
			}
			if wrapper.Content != tc.input {
				t.Errorf("content = %q, want original input", wrapper.Content)
			}
		})
	}
}

// TestDecodeDocument_Fallback verifies that archived raw wrappers replay as
// fallback documents, not as messages.
func TestDecodeDocument_Fallback(t *testing.T) {
	archived := Normalize("garbage payload").Canonical

	doc := DecodeDocument(archived)
	if !doc.Fallback {
		t.Error("archived wrapper should decode as fallback")
	}
	if doc.Msg != nil {
		t.Error("fallback must not carry a message")
	}
}

// TestYear_StringOrNumber verifies the lenient timetable-year decoding.
func TestYear_StringOrNumber(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Year
	}{
		{"number", `{"TimetableYear": 2026}`, 2026},
		{"string", `{"TimetableYear": "2026"}`, 2026},
		{"garbage", `{"TimetableYear": "next year"}`, 0},
		{"null", `{"TimetableYear": null}`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var toi TransportOperationalIdentifiers
			if err := json.Unmarshal([]byte(tc.input), &toi); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got := Year(0)
			if toi.TimetableYear != nil {
				got = *toi.TimetableYear
			}
			if got != tc.want {
				t.Errorf("year = %d, want %d", got, tc.want)
			}
		})
	}
}

// TestNormalize_JSONWithoutConsistFields verifies that arbitrary valid JSON
// is still archived canonically; extraction decides whether it has entities.
func TestNormalize_JSONWithoutConsistFields(t *testing.T) {
	doc := Normalize(`{"hello": "world"}`)
	if doc.Fallback {
		t.Error("valid JSON should not fall back")
	}
	if doc.Msg == nil {
		t.Error("valid JSON should still parse into an empty message")
	}
}
