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
	"encoding/xml"
	"strings"
)

// xmlSignature identifies the TAF/TSI consist schema by its root element.
const xmlSignature = "<PassengerTrainConsistMessage"

// Document is the normalized form of one inbound payload. Canonical holds
// the JSON bytes that go to the audit table; Msg is nil when the payload
// carried no recognizable consist structure. Fallback marks payloads that
// could not be converted and were wrapped verbatim instead.
type Document struct {
	Msg       *Message
	Canonical []byte
	Fallback  bool
}

// rawWrapper keeps unconvertible payloads archivable as valid JSON.
type rawWrapper struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

// Normalize converts one inbound message body into a Document. It never
// fails: payloads that parse as neither canonical JSON nor TAF/TSI XML are
// wrapped in a raw fallback document so the audit trail stays complete.
func Normalize(value string) Document {
	if strings.TrimSpace(value) == "" {
		return fallbackDocument(value)
	}

	// Canonical JSON. Any JSON object is archived as-is; whether it carries
	// enough consist structure is the extractor's concern, not the
	// archiver's.
	var msg Message
	if err := json.Unmarshal([]byte(value), &msg); err == nil {
		return Document{Msg: &msg, Canonical: []byte(value)}
	}

	// TAF/TSI XML, converted to canonical JSON.
	if strings.Contains(strings.ToLower(value), strings.ToLower(xmlSignature)) {
		var msg Message
		if err := xml.Unmarshal([]byte(value), &msg); err == nil {
			if canonical, err := json.Marshal(&msg); err == nil {
				return Document{Msg: &msg, Canonical: canonical}
			}
		}
	}

	return fallbackDocument(value)
}

// DecodeDocument reverses the archived form for replay. Fallback wrappers
// and malformed payloads decode to a document with no message.
func DecodeDocument(payload []byte) Document {
	doc := Document{Canonical: payload}

	var wrapper rawWrapper
	if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Format == "raw" {
		doc.Fallback = true
		return doc
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err == nil {
		doc.Msg = &msg
	}
	return doc
}

func fallbackDocument(value string) Document {
	canonical, err := json.Marshal(rawWrapper{Format: "raw", Content: value})
	if err != nil {
		// A string always marshals; keep the audit trail alive regardless.
		canonical = []byte(`{"format":"raw","content":""}`)
	}
	return Document{Canonical: canonical, Fallback: true}
}
