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

// Request is a command and its parameters. Builders return values the caller
// owns.
type Request struct {
	Data    []byte
	Command Command
}

// NewRequest creates a request for cmd with the given parameters.
func NewRequest(cmd Command, data ...byte) Request {
	return Request{Command: cmd, Data: data}
}

// GetFirmwareVersionRequest asks for the IC version and supported protocols.
func GetFirmwareVersionRequest() Request {
	return NewRequest(CmdGetFirmwareVersion)
}

// SAMConfigurationRequest configures the SAM mode. The IRQ pin is driven
// only when useIRQ is set.
func SAMConfigurationRequest(mode SAMMode, useIRQ bool) Request {
	var irq byte
	if useIRQ {
		irq = 0x01
	}
	return NewRequest(CmdSAMConfiguration, mode.Code(), mode.Timeout(), irq)
}

// NTAGReadRequest reads four pages from target 1 starting at page.
func NTAGReadRequest(page byte) Request {
	return NewRequest(CmdInDataExchange, 0x01, NTAGRead, page)
}

// InListPassiveTargetRequest detects at most one target of cardType.
func InListPassiveTargetRequest(cardType CardType) Request {
	return NewRequest(CmdInListPassiveTarget, 0x01, byte(cardType))
}
