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

// Package tagops reads NTAG memory through a PN532 and hands the NDEF area
// to the ndef package.
package tagops

import (
	"context"
	"errors"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
)

var (
	// ErrNoTag indicates no tag was detected
	ErrNoTag = errors.New("no tag detected")
	// ErrCapacityTooLarge is returned when the capability container announces
	// more memory than an NTAG can hold.
	ErrCapacityTooLarge = errors.New("tag capacity too large")
)

// PageReader reads four NTAG pages at a time. *pn532.Device implements it.
type PageReader interface {
	ReadNTAGPage(ctx context.Context, page byte) (pn532.DataReadResult, error)
}

// TargetReader lists a single passive target. *pn532.Device implements it.
type TargetReader interface {
	ReadPassiveTarget(ctx context.Context, cardType pn532.CardType) (*pn532.CardUID, error)
}

// Device is everything TagOperations needs from a PN532.
type Device interface {
	PageReader
	TargetReader
}

// ReadFailedError reports a read the PN532 answered with a non-zero status.
type ReadFailedError struct {
	Page   int
	Status byte
}

func (e *ReadFailedError) Error() string {
	return fmt.Sprintf("read of page %d failed: status 0x%02X (%s)", e.Page, e.Status, pn532.StatusText(e.Status))
}

// TagOperations tracks the tag currently in the field
type TagOperations struct {
	device Device
	uid    *pn532.CardUID
	info   *TagInfo
}

// New creates a new TagOperations instance
func New(device Device) *TagOperations {
	return &TagOperations{
		device: device,
	}
}

// DetectTag lists an ISO14443A target. It must be called before ReadMemory
// or ReadNDEF, and returns ErrNoTag when the field is empty.
func (t *TagOperations) DetectTag(ctx context.Context) error {
	t.uid = nil
	t.info = nil

	uid, err := t.device.ReadPassiveTarget(ctx, pn532.CardTypeISO14443A)
	if err != nil {
		return fmt.Errorf("failed to detect tag: %w", err)
	}
	if uid == nil {
		return ErrNoTag
	}
	t.uid = uid
	return nil
}

// UID returns the tag's UID, or nil before a successful DetectTag
func (t *TagOperations) UID() []byte {
	if t.uid == nil {
		return nil
	}
	return t.uid.UID()
}
