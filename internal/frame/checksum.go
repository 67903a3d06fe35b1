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

package frame

// Sum adds up data modulo 256.
func Sum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Complement returns the byte that brings sum back to zero modulo 256. LCS
// and DCS are both computed this way.
func Complement(sum byte) byte {
	return ^sum + 1
}

// Checksum returns the DCS for a frame body (TFI, command and payload).
func Checksum(body []byte) byte {
	return Complement(Sum(body))
}

// Verify reports whether data ends in a valid checksum, that is whether the
// body followed by its checksum byte sums to zero.
func Verify(data []byte) bool {
	return len(data) > 0 && Sum(data) == 0
}
