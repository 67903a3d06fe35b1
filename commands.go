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

// Command is a PN532 command code.
type Command byte

// Supported PN532 commands
const (
	CmdGetFirmwareVersion  Command = 0x02
	CmdSAMConfiguration    Command = 0x14
	CmdInDataExchange      Command = 0x40
	CmdInListPassiveTarget Command = 0x4A
)

// NTAG commands tunnelled through InDataExchange
const (
	NTAGRead byte = 0x30 // READ: 4 pages (16 bytes) starting at the given page
)

// Response returns the command code the PN532 answers cmd with.
func (c Command) Response() byte {
	return byte(c) + 1
}

func (c Command) String() string {
	switch c {
	case CmdGetFirmwareVersion:
		return "GetFirmwareVersion"
	case CmdSAMConfiguration:
		return "SAMConfiguration"
	case CmdInDataExchange:
		return "InDataExchange"
	case CmdInListPassiveTarget:
		return "InListPassiveTarget"
	default:
		return fmt.Sprintf("Command(0x%02X)", byte(c))
	}
}
