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

package testing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	gondef "github.com/hsanjuan/go-ndef"

	"github.com/ZaparooProject/go-pn532-lite/internal/syncutil"
)

const (
	pageSize     = 4
	readPages    = 4
	userStart    = 4
	tlvNDEF      = 0x03
	tlvTerminate = 0xFE
)

// TestNTAGUID is the default 7-byte UID given to virtual tags.
var TestNTAGUID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}

var errPageRange = errors.New("page out of range")

// VirtualTag is a simulated NTAG21x. Memory is laid out as on the real tag:
// UID and lock bytes in pages 0 to 2, the capability container in page 3
// and user memory from page 4.
type VirtualTag struct {
	Type    string
	uid     []byte
	memory  []byte
	mu      syncutil.Mutex
	present atomic.Bool
}

// NewVirtualNTAG213 returns a blank NTAG213 (144 bytes of user memory).
func NewVirtualNTAG213(uid []byte) *VirtualTag {
	return newVirtualNTAG("NTAG213", uid, 45, 0x12)
}

// NewVirtualNTAG215 returns a blank NTAG215 (496 bytes of user memory).
func NewVirtualNTAG215(uid []byte) *VirtualTag {
	return newVirtualNTAG("NTAG215", uid, 135, 0x3E)
}

// NewVirtualNTAG216 returns a blank NTAG216 (872 bytes of user memory).
func NewVirtualNTAG216(uid []byte) *VirtualTag {
	return newVirtualNTAG("NTAG216", uid, 231, 0x6D)
}

func newVirtualNTAG(kind string, uid []byte, pages int, ccSize byte) *VirtualTag {
	if uid == nil {
		uid = TestNTAGUID
	}
	tag := &VirtualTag{
		Type:   kind,
		uid:    append([]byte(nil), uid...),
		memory: make([]byte, pages*pageSize),
	}
	copy(tag.memory[0:3], uid)
	if len(uid) > 3 {
		copy(tag.memory[4:8], uid[3:])
	}
	copy(tag.memory[12:16], []byte{0xE1, 0x10, ccSize, 0x00})
	// an empty message, as shipped from the factory
	copy(tag.memory[16:], []byte{tlvNDEF, 0x00, tlvTerminate})
	tag.present.Store(true)
	return tag
}

// UID returns a copy of the tag UID.
func (v *VirtualTag) UID() []byte {
	return append([]byte(nil), v.uid...)
}

// UIDString returns the UID as lowercase hex.
func (v *VirtualTag) UIDString() string {
	return hex.EncodeToString(v.uid)
}

// UserMemory returns the user memory size announced by the capability
// container.
func (v *VirtualTag) UserMemory() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return int(v.memory[14]) * 8
}

// Present reports whether the tag is in the field.
func (v *VirtualTag) Present() bool {
	return v.present.Load()
}

// Remove takes the tag out of the field.
func (v *VirtualTag) Remove() {
	v.present.Store(false)
}

// Insert puts the tag back into the field.
func (v *VirtualTag) Insert() {
	v.present.Store(true)
}

// ReadPages answers an NTAG READ: four pages starting at page, rolling over
// to page 0 past the last page.
func (v *VirtualTag) ReadPages(page int) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := len(v.memory) / pageSize
	if page < 0 || page >= total {
		return nil, fmt.Errorf("read page %d of %d: %w", page, total, errPageRange)
	}
	out := make([]byte, 0, readPages*pageSize)
	for i := range readPages {
		p := (page + i) % total
		out = append(out, v.memory[p*pageSize:(p+1)*pageSize]...)
	}
	return out, nil
}

// SetCapabilitySize overwrites the size byte of the capability container.
func (v *VirtualTag) SetCapabilitySize(size byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.memory[14] = size
}

// WriteUserMemory copies data into user memory starting at page 4.
func (v *VirtualTag) WriteUserMemory(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	user := v.memory[userStart*pageSize:]
	if len(data) > len(user) {
		return fmt.Errorf("%d bytes exceed %s user memory of %d", len(data), v.Type, len(user))
	}
	copy(user, data)
	return nil
}

// Erase fills user memory with fill. 0xFF leaves the tag unformatted.
func (v *VirtualTag) Erase(fill byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := userStart * pageSize; i < len(v.memory); i++ {
		v.memory[i] = fill
	}
}

// SetNDEF stores msg as the tag's NDEF message TLV.
func (v *VirtualTag) SetNDEF(msg []byte) error {
	if len(msg) >= 0xFF {
		return fmt.Errorf("message of %d bytes needs a long TLV", len(msg))
	}
	tlv := make([]byte, 0, len(msg)+3)
	tlv = append(tlv, tlvNDEF, byte(len(msg)))
	tlv = append(tlv, msg...)
	tlv = append(tlv, tlvTerminate)

	v.Erase(0x00)
	return v.WriteUserMemory(tlv)
}

// SetNDEFText stores a single text record.
func (v *VirtualTag) SetNDEFText(text string) error {
	msg, err := gondef.NewTextMessage(text, "en").Marshal()
	if err != nil {
		return fmt.Errorf("marshal text message: %w", err)
	}
	return v.SetNDEF(msg)
}

// SetNDEFURI stores a single URI record.
func (v *VirtualTag) SetNDEFURI(uri string) error {
	msg, err := gondef.NewURIMessage(uri).Marshal()
	if err != nil {
		return fmt.Errorf("marshal URI message: %w", err)
	}
	return v.SetNDEF(msg)
}
