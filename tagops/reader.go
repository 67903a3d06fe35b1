// go-pn532-lite
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn532-lite.
//
// go-pn532-lite is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn532-lite is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn532-lite; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package tagops

import (
	"context"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/pkg/ndef"
)

const (
	// firstDataPage is where the NDEF area starts on NTAG21x
	firstDataPage = 4
	// ccSizeOffset is the offset of the size byte in a page 0 read
	// (capability container on page 3, byte 2)
	ccSizeOffset = 3*pn532.NTAGPageSize + 2
	// MaxCapacity bounds the announced data area
	MaxCapacity = 1024
)

// ReadMemory reads the NDEF data area of an NTAG. The size comes from the
// capability container on page 3; the area is read in 16 byte chunks from
// page 4 and exactly that many bytes are returned.
func ReadMemory(ctx context.Context, reader PageReader) ([]byte, error) {
	header, err := readChunk(ctx, reader, 0)
	if err != nil {
		return nil, err
	}

	capacity := int(header[ccSizeOffset]) * 8
	debugf("capacity %d bytes (%d pages)", capacity, capacity/pn532.NTAGPageSize)
	if capacity >= MaxCapacity {
		return nil, fmt.Errorf("%w: %d bytes", ErrCapacityTooLarge, capacity)
	}

	// rounded up to whole chunks, then trimmed
	memory := make([]byte, 0, capacity+pn532.NTAGReadSize)
	lastPage := capacity / pn532.NTAGPageSize
	for page := firstDataPage; page <= lastPage; page += pn532.NTAGReadSize / pn532.NTAGPageSize {
		chunk, err := readChunk(ctx, reader, page)
		if err != nil {
			return nil, err
		}
		memory = append(memory, chunk...)
	}

	if len(memory) < capacity {
		memory = append(memory, make([]byte, capacity-len(memory))...)
	}
	return memory[:capacity], nil
}

func readChunk(ctx context.Context, reader PageReader, page int) ([]byte, error) {
	result, err := reader.ReadNTAGPage(ctx, byte(page))
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d: %w", page, err)
	}
	if !result.OK() {
		return nil, &ReadFailedError{Page: page, Status: result.Status}
	}
	return result.Data, nil
}

// ReadRecords reads the data area and parses it as an NDEF message. The
// records parsed before a failure are returned along with the error.
func ReadRecords(ctx context.Context, reader PageReader) ([]ndef.Record, error) {
	memory, err := ReadMemory(ctx, reader)
	if err != nil {
		return nil, err
	}
	records, err := ndef.Parse(memory)
	if err != nil {
		return records, fmt.Errorf("failed to parse NDEF: %w", err)
	}
	return records, nil
}

// ReadMemory reads the data area of the detected tag and records its size
func (t *TagOperations) ReadMemory(ctx context.Context) ([]byte, error) {
	if t.uid == nil {
		return nil, ErrNoTag
	}
	memory, err := ReadMemory(ctx, t.device)
	if err != nil {
		return nil, err
	}
	t.info = newTagInfo(t.uid.UID(), len(memory))
	return memory, nil
}

// ReadNDEF reads and parses the NDEF message of the detected tag
func (t *TagOperations) ReadNDEF(ctx context.Context) ([]ndef.Record, error) {
	memory, err := t.ReadMemory(ctx)
	if err != nil {
		return nil, err
	}
	records, err := ndef.Parse(memory)
	if err != nil {
		return records, fmt.Errorf("failed to parse NDEF: %w", err)
	}
	return records, nil
}
