// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package ndef

import (
	"errors"
	"fmt"

	gondef "github.com/hsanjuan/go-ndef"
)

var (
	ErrNotWellKnown    = errors.New("ndef: not a well-known record")
	ErrUnsupportedType = errors.New("ndef: unsupported well-known type")
)

// WellKnownRecord is the decoded content of a Text or URI record.
type WellKnownRecord struct {
	Type     string
	Text     string // Text records
	Language string // Text records
	URI      string // URI records
}

// String returns the text or URI carried by the record.
func (w *WellKnownRecord) String() string {
	if w.Type == URIRecordType {
		return w.URI
	}
	return w.Text
}

// WellKnown decodes a well-known Text ("T") or URI ("U") record. The reader
// reports such records as KindUnexpected with the record bytes in Raw.
func (r Record) WellKnown() (*WellKnownRecord, error) {
	if r.Kind != KindUnexpected || r.Flags.TNF() != TNFWellKnown {
		return nil, ErrNotWellKnown
	}

	rec := &gondef.Record{}
	if _, err := rec.Unmarshal(r.Raw); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF record: %w", err)
	}
	payload, err := rec.Payload()
	if err != nil {
		return nil, fmt.Errorf("failed to get NDEF record payload: %w", err)
	}
	data := payload.Marshal()

	switch rec.Type() {
	case TextRecordType:
		text, err := ParseTextRecord(data)
		if err != nil {
			return nil, err
		}
		return &WellKnownRecord{Type: TextRecordType, Text: text.Text, Language: text.Language}, nil
	case URIRecordType:
		uri, err := ParseURIRecord(data)
		if err != nil {
			return nil, err
		}
		return &WellKnownRecord{Type: URIRecordType, URI: uri}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, rec.Type())
	}
}
