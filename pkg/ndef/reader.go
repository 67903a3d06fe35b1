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
	"iter"
	"unicode/utf8"
)

// minImageLen is the shortest memory image that can hold a TLV header and a
// record header.
const minImageLen = 8

type readerState uint8

const (
	stateFresh readerState = iota
	stateReading
	stateComplete
)

// Reader iterates over the records of an NDEF message. It is not safe for
// concurrent use.
type Reader struct {
	err   error
	data  []byte
	pos   int
	state readerState
}

// NewReader returns a Reader over a tag memory image, starting at the user
// memory area.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next returns the next record. It returns ErrDone after the record carrying
// the message end flag. Once Next returns any other error the Reader is
// stuck and keeps returning that error.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}

	switch r.state {
	case stateComplete:
		return Record{}, ErrDone
	case stateFresh:
		if err := r.start(); err != nil {
			if !errors.Is(err, ErrNotFormatted) {
				r.err = err
			}
			return Record{}, err
		}
	case stateReading:
	}

	rec, err := r.readRecord()
	if err != nil {
		if !errors.Is(err, ErrDone) {
			r.err = err
		}
		return Record{}, err
	}
	return rec, nil
}

// All returns an iterator over the remaining records. Iteration stops after
// the first error, which is yielded with a zero Record.
func (r *Reader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, ErrDone) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Parse reads every record of the message in data. On failure it returns
// the records read before the error together with the error.
func Parse(data []byte) ([]Record, error) {
	var records []Record
	for rec, err := range NewReader(data).All() {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// start locates the first record. Only a message TLV at offset 0, or one
// behind a single 5-byte TLV (such as a lock control TLV), is recognized.
func (r *Reader) start() error {
	if len(r.data) >= 4 && r.data[0] == 0xFF && r.data[1] == 0xFF && r.data[2] == 0xFF && r.data[3] == 0xFF {
		// state stays fresh so every call reports the blank tag
		return ErrNotFormatted
	}
	if len(r.data) < minImageLen {
		return ErrUnderflowHeader
	}

	switch {
	case r.data[0] == TLVTypeNDEF:
		r.pos = 2
	case r.data[5] == TLVTypeNDEF:
		r.pos = 7
	default:
		r.pos = 0
	}
	r.state = stateReading
	return nil
}

func (r *Reader) readRecord() (Record, error) {
	remaining := len(r.data) - r.pos
	if remaining == 0 {
		r.state = stateComplete
		return Record{}, ErrDone
	}

	rec := r.data[r.pos:]
	flags := Flags(rec[0])
	headerLen := flags.HeaderLen()
	if remaining < headerLen {
		return Record{}, ErrUnderflowHeader
	}

	idx := 1
	typeLen := uint64(rec[idx])
	idx++

	var payloadLen uint64
	if flags.ShortRecord() {
		payloadLen = uint64(rec[idx])
		idx++
	} else {
		payloadLen = uint64(binary.BigEndian.Uint32(rec[idx : idx+4]))
		idx += 4
	}

	var idLen uint64
	if flags.HasIDLength() {
		idLen = uint64(rec[idx])
	}

	total := uint64(headerLen) + typeLen + payloadLen + idLen
	if uint64(remaining) < total {
		return Record{}, ErrUnderflowPayload
	}
	rec = rec[:total]

	out := Record{Flags: flags}
	switch flags.TNF() {
	case TNFEmpty:
		out.Kind = KindEmpty
	case TNFMedia:
		typeStart := uint64(headerLen)
		valueStart := typeStart + typeLen + idLen
		typ := rec[typeStart : typeStart+typeLen]
		value := rec[valueStart : valueStart+payloadLen]
		if !utf8.Valid(typ) || !utf8.Valid(value) {
			return Record{}, ErrUTF8
		}
		out.Kind = KindMimeMedia
		out.Type = string(typ)
		out.Value = string(value)
	case TNFUnknown:
		out.Kind = KindUnknown
	default:
		out.Kind = KindUnexpected
		out.Raw = rec
	}

	r.pos += int(total)
	if flags.MessageEnd() {
		r.state = stateComplete
	}
	return out, nil
}
