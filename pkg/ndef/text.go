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
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

// Text record constants.
const (
	TextRecordType   = "T"
	textUTF16Flag    = 0x80
	textLangCodeMask = 0x3F // 6 bits
)

// Text record errors.
var (
	ErrTextPayloadTooShort  = errors.New("ndef: text payload too short")
	ErrTextPayloadTruncated = errors.New("ndef: text payload truncated")
	ErrTextOddUTF16         = errors.New("ndef: UTF-16 text has an odd byte count")
)

// TextRecord represents parsed text record data.
type TextRecord struct {
	Text     string
	Language string
	UTF16    bool // true if UTF-16 encoded (rare)
}

// ParseTextRecord extracts text content from a Text record payload.
func ParseTextRecord(payload []byte) (*TextRecord, error) {
	if len(payload) < 1 {
		return nil, ErrTextPayloadTooShort
	}

	status := payload[0]
	langLen := int(status & textLangCodeMask)
	if len(payload) < 1+langLen {
		return nil, ErrTextPayloadTruncated
	}

	record := &TextRecord{
		Text:     string(payload[1+langLen:]),
		Language: string(payload[1 : 1+langLen]),
		UTF16:    status&textUTF16Flag != 0,
	}
	if record.UTF16 {
		text, err := decodeUTF16(payload[1+langLen:])
		if err != nil {
			return nil, err
		}
		record.Text = text
	}
	return record, nil
}

// decodeUTF16 honours a byte order mark and reads big-endian without one.
// Unpaired surrogates become U+FFFD.
func decodeUTF16(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", ErrTextOddUTF16
	}
	var order binary.ByteOrder = binary.BigEndian
	if len(data) >= 2 {
		switch {
		case data[0] == 0xFE && data[1] == 0xFF:
			data = data[2:]
		case data[0] == 0xFF && data[1] == 0xFE:
			order = binary.LittleEndian
			data = data[2:]
		}
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = order.Uint16(data[2*i:])
	}
	return string(utf16.Decode(units)), nil
}
