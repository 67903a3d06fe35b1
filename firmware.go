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

// FirmwareVersion contains PN532 firmware version information
type FirmwareVersion struct {
	IC               byte
	Version          byte
	Revision         byte
	SupportIso14443a bool
	SupportIso14443b bool
	SupportIso18092  bool
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", v.IC, v.Version, v.Revision)
}

// DataReadResult is the answer to an InDataExchange read. A non-zero Status
// means the tag read failed; it is reported by the device and is not a
// transport fault.
type DataReadResult struct {
	Data   []byte
	Status byte
}

// OK reports whether the device read the data successfully.
func (r DataReadResult) OK() bool {
	return r.Status == 0x00
}
