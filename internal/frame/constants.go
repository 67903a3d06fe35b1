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

import "errors"

// Frame direction constants - these indicate the direction of data flow
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

// Frame layout
const (
	// HeaderLen is the number of bytes before the payload:
	// preamble, start code, LEN, LCS, TFI and the command byte.
	HeaderLen = 7
	// Overhead is the number of bytes a frame adds around its payload.
	Overhead = HeaderLen + 2
	// Reserved is subtracted from a buffer's capacity to get the largest
	// payload Build accepts.
	Reserved = Overhead + 1
	// AckLen is the length of an ACK frame.
	AckLen = 6
	// MaxLength is the largest value the LEN byte can carry (TFI + command + payload).
	MaxLength = 0xFF
)

// Frame size limits
const (
	DefaultBufferSize = 255
	// MaxBufferSize is the largest scratch buffer that still keeps every
	// accepted payload within a normal (non-extended) frame.
	MaxBufferSize = MaxLength - 2 + Reserved
	// MinBufferSize fits an ACK and an empty-payload frame.
	MinBufferSize = Reserved
)

// AckFrame is sent by the PN532 after every well-formed command frame.
var AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// Frame errors
var (
	ErrTooMuchData     = errors.New("too much data")
	ErrNotAcknowledged = errors.New("not acknowledged")
	ErrBadResponse     = errors.New("bad response")
	ErrBadChecksum     = errors.New("bad checksum")
	ErrBufferUnderflow = errors.New("buffer underflow")
	ErrSyntax          = errors.New("syntax error")
)
