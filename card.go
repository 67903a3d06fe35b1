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

package pn532

import (
	"encoding/hex"
	"fmt"
)

// CardType is the baud rate and modulation passed to InListPassiveTarget.
type CardType byte

const (
	// CardTypeISO14443A is 106 kbps type A (MIFARE, NTAG)
	CardTypeISO14443A CardType = 0x00
	// CardTypeFeliCa212 is 212 kbps FeliCa
	CardTypeFeliCa212 CardType = 0x01
	// CardTypeFeliCa424 is 424 kbps FeliCa
	CardTypeFeliCa424 CardType = 0x02
	// CardTypeISO14443B is 106 kbps type B
	CardTypeISO14443B CardType = 0x03
	// CardTypeJewel is 106 kbps Innovision Jewel
	CardTypeJewel CardType = 0x04
)

func (c CardType) String() string {
	switch c {
	case CardTypeISO14443A:
		return "ISO14443A"
	case CardTypeFeliCa212:
		return "FeliCa212"
	case CardTypeFeliCa424:
		return "FeliCa424"
	case CardTypeISO14443B:
		return "ISO14443B"
	case CardTypeJewel:
		return "Jewel"
	default:
		return fmt.Sprintf("CardType(0x%02X)", byte(c))
	}
}

// MaxUIDLength is the longest UID a CardUID holds.
const MaxUIDLength = 7

// CardUID is the UID of a detected target, zero-padded to MaxUIDLength.
type CardUID struct {
	Bytes  [MaxUIDLength]byte
	Length int
}

// UID returns the UID without padding.
func (u CardUID) UID() []byte {
	return u.Bytes[:u.Length]
}

func (u CardUID) String() string {
	return hex.EncodeToString(u.UID())
}
