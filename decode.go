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

// Decoder turns a response payload into a typed value. Len is the payload
// length requested from the device. Decode must copy anything it keeps
// because data is only valid for the duration of the call.
type Decoder[T any] interface {
	Len() int
	Decode(data []byte) (T, error)
}

func decodeError(what string, want, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrDecoder, what, want, got)
}

// UnitDecoder accepts any payload and discards it.
type UnitDecoder struct{}

func (UnitDecoder) Len() int { return 0 }

func (UnitDecoder) Decode([]byte) (struct{}, error) {
	return struct{}{}, nil
}

// BlockDecoder copies a payload of exactly N bytes.
type BlockDecoder struct {
	N int
}

func (d BlockDecoder) Len() int { return d.N }

func (d BlockDecoder) Decode(data []byte) ([]byte, error) {
	if len(data) != d.N {
		return nil, decodeError("block", d.N, len(data))
	}
	return append([]byte(nil), data...), nil
}

// FirmwareVersionDecoder decodes a GetFirmwareVersion response.
type FirmwareVersionDecoder struct{}

func (FirmwareVersionDecoder) Len() int { return 4 }

func (FirmwareVersionDecoder) Decode(data []byte) (FirmwareVersion, error) {
	if len(data) != 4 {
		return FirmwareVersion{}, decodeError("firmware version", 4, len(data))
	}
	return FirmwareVersion{
		IC:               data[0],
		Version:          data[1],
		Revision:         data[2],
		SupportIso18092:  data[3]&0x04 != 0,
		SupportIso14443b: data[3]&0x02 != 0,
		SupportIso14443a: data[3]&0x01 != 0,
	}, nil
}

// DataReadDecoder decodes an InDataExchange answer carrying a status byte
// followed by N data bytes. A failed read carries only the status byte, so a
// non-zero status is accepted at any length.
type DataReadDecoder struct {
	N int
}

// Len is the receive size: status byte plus N data bytes. It is not an
// exact payload length, since a failed read is answered with the status
// byte alone.
func (d DataReadDecoder) Len() int { return d.N + 1 }

func (d DataReadDecoder) Decode(data []byte) (DataReadResult, error) {
	if len(data) == 0 {
		return DataReadResult{}, decodeError("data read", d.N+1, 0)
	}
	if data[0] != 0x00 {
		return DataReadResult{Status: data[0]}, nil
	}
	if len(data) != d.N+1 {
		return DataReadResult{}, decodeError("data read", d.N+1, len(data))
	}
	return DataReadResult{Data: append([]byte(nil), data[1:]...)}, nil
}

// CardUIDDecoder decodes an InListPassiveTarget answer for a single target.
// It yields nil when no target, or more than one, was found and when the
// UID is longer than MaxUIDLength.
type CardUIDDecoder struct{}

// cardUIDLen is the largest answer read for one ISO14443A target.
const cardUIDLen = 19

// Len is the receive size for the longest single-target answer. It is not
// an exact payload length: a PN532 answers with 1 byte for an empty field
// and 6+UID length bytes for a card, and both are accepted.
func (CardUIDDecoder) Len() int { return cardUIDLen }

func (CardUIDDecoder) Decode(data []byte) (*CardUID, error) {
	// NbTg, Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID...
	if len(data) == 0 || len(data) > cardUIDLen {
		return nil, decodeError("card UID", cardUIDLen, len(data))
	}
	if data[0] != 0x01 {
		return nil, nil //nolint:nilnil // no single target
	}
	if len(data) < 6 {
		return nil, decodeError("card UID header", 6, len(data))
	}
	uidLen := int(data[5])
	if uidLen > MaxUIDLength {
		return nil, nil //nolint:nilnil // UID does not fit
	}
	if len(data) < 6+uidLen {
		return nil, decodeError("card UID", 6+uidLen, len(data))
	}

	uid := &CardUID{Length: uidLen}
	copy(uid.Bytes[:], data[6:6+uidLen])
	return uid, nil
}
