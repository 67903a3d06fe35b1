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
	"bytes"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
)

// TagInfo contains detailed information about a read tag
type TagInfo struct {
	NTAGType   string
	UID        []byte
	UserMemory int
	TotalPages int
}

// Info returns what is known about the tag after ReadMemory
func (t *TagOperations) Info() (*TagInfo, error) {
	if t.uid == nil {
		return nil, ErrNoTag
	}
	if t.info == nil {
		return &TagInfo{NTAGType: unknownTagName, UID: t.uid.UID()}, nil
	}
	return t.info, nil
}

const unknownTagName = "Unknown"

// newTagInfo names the NTAG variant from the data area size its capability
// container announces.
func newTagInfo(uid []byte, capacity int) *TagInfo {
	info := &TagInfo{
		UID:        uid,
		UserMemory: capacity,
	}

	switch capacity {
	case 144:
		info.NTAGType = "NTAG213"
		info.TotalPages = 45
	case 496:
		info.NTAGType = "NTAG215"
		info.TotalPages = 135
	case 872:
		info.NTAGType = "NTAG216"
		info.TotalPages = 231
	default:
		info.NTAGType = fmt.Sprintf("NTAG (unknown, %d bytes)", capacity)
		// 4 header pages plus 5 config pages
		info.TotalPages = capacity/pn532.NTAGPageSize + 9
	}
	return info
}

// IsNTAGUID reports whether a UID looks like an NXP NTAG: 7 bytes with the
// NXP manufacturer code.
func IsNTAGUID(uid []byte) bool {
	return len(uid) == 7 && uid[0] == 0x04
}

// CompareUID compares two UIDs for equality
func CompareUID(uid1, uid2 []byte) bool {
	return bytes.Equal(uid1, uid2)
}

func debugf(format string, args ...any) {
	pn532.Logger().Debug().Str("component", "tagops").Msgf(format, args...)
}
