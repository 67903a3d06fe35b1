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

import "bytes"

// Build writes a host-to-PN532 information frame for cmd and payload into
// buf and returns the number of bytes written. The payload may use at most
// len(buf)-Reserved bytes.
func Build(buf []byte, cmd byte, payload []byte) (int, error) {
	return build(buf, HostToPn532, cmd, payload)
}

// BuildResponse writes a PN532-to-host frame. It is the device side of
// Build and is used by simulators.
func BuildResponse(buf []byte, cmd byte, payload []byte) (int, error) {
	return build(buf, Pn532ToHost, cmd, payload)
}

func build(buf []byte, tfi, cmd byte, payload []byte) (int, error) {
	dataLen := len(payload)
	if dataLen > len(buf)-Reserved || dataLen+2 > MaxLength {
		return 0, ErrTooMuchData
	}
	length := byte(2 + dataLen) // TFI + CMD + payload

	buf[0] = Preamble
	buf[1] = StartCode1
	buf[2] = StartCode2
	buf[3] = length
	buf[4] = Complement(length)
	buf[5] = tfi
	buf[6] = cmd
	copy(buf[HeaderLen:], payload)
	buf[HeaderLen+dataLen] = Checksum(buf[5 : HeaderLen+dataLen])
	buf[HeaderLen+dataLen+1] = Postamble

	return Overhead + dataLen, nil
}

// Parse validates a PN532-to-host frame that starts at buf[0] and returns
// the echoed command byte and the payload. The payload aliases buf.
//
// Checks run in a fixed order so every corruption maps to one error:
// start code, length checksum, length, error frame, postamble, direction,
// data checksum.
func Parse(buf []byte) (cmd byte, payload []byte, err error) {
	if len(buf) < 5 {
		return 0, nil, ErrBufferUnderflow
	}
	if buf[0] != Preamble || buf[1] != StartCode1 || buf[2] != StartCode2 {
		return 0, nil, ErrBadResponse
	}

	length := buf[3]
	if length+buf[4] != 0 {
		return 0, nil, ErrBadChecksum
	}
	switch length {
	case 0:
		return 0, nil, ErrBadResponse
	case 1:
		// application level error frame
		return 0, nil, ErrSyntax
	}

	end := 5 + int(length) + 1
	if end >= len(buf) {
		return 0, nil, ErrBufferUnderflow
	}
	if buf[end] != Postamble {
		return 0, nil, ErrBadResponse
	}
	if buf[5] != Pn532ToHost {
		return 0, nil, ErrBadResponse
	}
	if !Verify(buf[5:end]) {
		return 0, nil, ErrBadChecksum
	}

	return buf[6], buf[HeaderLen : 5+int(length)], nil
}

// ErrorFrame is the application level error frame the PN532 sends when it
// rejects a command frame (syntax error).
var ErrorFrame = []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}

// IsAck reports whether buf is exactly an ACK frame.
func IsAck(buf []byte) bool {
	return bytes.Equal(buf, AckFrame)
}
