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

import "fmt"

// SAMMode selects how the PN532 uses its Security Access Module.
type SAMMode struct {
	code    byte
	timeout byte
}

var (
	// SAMModeNormal disables the SAM (default)
	SAMModeNormal = SAMMode{code: 0x01}
	// SAMModeWiredCard connects the host to the SAM
	SAMModeWiredCard = SAMMode{code: 0x03}
	// SAMModeDualCard lets both the PN532 and the SAM be seen from the field
	SAMModeDualCard = SAMMode{code: 0x04}
)

// SAMModeVirtualCard makes the PN532 and SAM appear as a single card. The
// timeout is in units of 50ms; zero disables it.
func SAMModeVirtualCard(timeout byte) SAMMode {
	return SAMMode{code: 0x02, timeout: timeout}
}

// Code returns the mode byte sent to the PN532.
func (m SAMMode) Code() byte { return m.code }

// Timeout returns the virtual card timeout, zero for every other mode.
func (m SAMMode) Timeout() byte { return m.timeout }

func (m SAMMode) String() string {
	switch m.code {
	case 0x01:
		return "Normal"
	case 0x02:
		return fmt.Sprintf("VirtualCard(timeout=%d)", m.timeout)
	case 0x03:
		return "WiredCard"
	case 0x04:
		return "DualCard"
	default:
		return fmt.Sprintf("SAMMode(0x%02X)", m.code)
	}
}
