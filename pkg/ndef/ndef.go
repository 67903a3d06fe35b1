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

// Package ndef reads NDEF records from the memory image of an NFC Forum tag.
//
// The Reader walks the records of the first NDEF message lazily. Records
// reference the input slice, so the caller must keep it unchanged while
// records are in use.
package ndef

import (
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00 // Empty record
	TNFWellKnown   byte = 0x01 // NFC Forum well-known type
	TNFMedia       byte = 0x02 // Media-type (RFC 2046)
	TNFAbsoluteURI byte = 0x03 // Absolute URI (RFC 3986)
	TNFExternal    byte = 0x04 // NFC Forum external type
	TNFUnknown     byte = 0x05 // Unknown
	TNFUnchanged   byte = 0x06 // Unchanged (for chunked records)
	TNFReserved    byte = 0x07 // Reserved
)

const (
	tnfMask byte = 0x07
	flagIL  byte = 0x08
	flagSR  byte = 0x10
	flagCF  byte = 0x20
	flagME  byte = 0x40
	flagMB  byte = 0x80
)

// TLVTypeNDEF marks an NDEF message TLV in tag memory.
const TLVTypeNDEF = 0x03

// Common errors.
var (
	// ErrNotFormatted is returned for a blank tag whose memory reads as 0xFF.
	ErrNotFormatted     = errors.New("ndef: tag not formatted")
	ErrUnderflowHeader  = errors.New("ndef: not enough data for record header")
	ErrUnderflowPayload = errors.New("ndef: not enough data for record payload")
	ErrUTF8             = errors.New("ndef: invalid UTF-8")
	// ErrDone is returned by Reader.Next once the message end has been reached.
	ErrDone = errors.New("ndef: no more records")
)

// Flags is the first byte of an NDEF record header.
type Flags byte

// TNF returns the type name format field.
func (f Flags) TNF() byte { return byte(f) & tnfMask }

// HasIDLength reports whether the header carries an ID length byte.
func (f Flags) HasIDLength() bool { return byte(f)&flagIL != 0 }

// ShortRecord reports whether the payload length is a single byte.
func (f Flags) ShortRecord() bool { return byte(f)&flagSR != 0 }

// Chunk reports whether the record is a chunk of a larger payload.
func (f Flags) Chunk() bool { return byte(f)&flagCF != 0 }

// MessageEnd reports whether this is the last record of the message.
func (f Flags) MessageEnd() bool { return byte(f)&flagME != 0 }

// MessageBegin reports whether this is the first record of the message.
func (f Flags) MessageBegin() bool { return byte(f)&flagMB != 0 }

// HeaderLen returns the length of a record header carrying these flags.
func (f Flags) HeaderLen() int {
	n := 1 + 1 // flags + type length
	if f.ShortRecord() {
		n++
	} else {
		n += 4
	}
	if f.HasIDLength() {
		n++
	}
	return n
}

func (f Flags) String() string {
	return fmt.Sprintf("Flags(tnf: %x, mb: %t, me: %t, chunk: %t, shortRecord: %t, idLength: %t)",
		f.TNF(), f.MessageBegin(), f.MessageEnd(), f.Chunk(), f.ShortRecord(), f.HasIDLength())
}

// Kind classifies a decoded record.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindMimeMedia
	KindUnknown
	// KindUnexpected covers every TNF without a dedicated decoding. The
	// complete record is available in Record.Raw.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindMimeMedia:
		return "MimeMedia"
	case KindUnknown:
		return "Unknown"
	case KindUnexpected:
		return "Unexpected"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Record is a single NDEF record.
type Record struct {
	// Type and Value are set for KindMimeMedia.
	Type  string
	Value string
	// Raw holds the complete record bytes for KindUnexpected. It aliases the
	// input passed to NewReader.
	Raw   []byte
	Kind  Kind
	Flags Flags
}
