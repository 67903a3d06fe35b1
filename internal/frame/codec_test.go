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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// firmwareResponse is a GetFirmwareVersion response frame from a PN532 v1.6.
var firmwareResponse = []byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00}

func TestBuild(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload []byte
		want    []byte
		cmd     byte
	}{
		{
			name: "get firmware version",
			cmd:  0x02,
			want: []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00},
		},
		{
			name:    "sam configuration normal mode",
			cmd:     0x14,
			payload: []byte{0x01, 0x00, 0x00},
			want:    []byte{0x00, 0x00, 0xFF, 0x05, 0xFB, 0xD4, 0x14, 0x01, 0x00, 0x00, 0x17, 0x00},
		},
		{
			name:    "ntag read page 4",
			cmd:     0x40,
			payload: []byte{0x01, 0x30, 0x04},
			want:    []byte{0x00, 0x00, 0xFF, 0x05, 0xFB, 0xD4, 0x40, 0x01, 0x30, 0x04, 0xB7, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := make([]byte, DefaultBufferSize)
			n, err := Build(buf, tt.cmd, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf[:n])
		})
	}
}

func TestBuild_TooMuchData(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 20)
	n, err := Build(buf, 0x40, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 19, n)

	_, err = Build(buf, 0x40, make([]byte, 11))
	require.ErrorIs(t, err, ErrTooMuchData)

	// LEN is a single byte even when the buffer is larger
	big := make([]byte, 600)
	_, err = Build(big, 0x40, make([]byte, 254))
	require.ErrorIs(t, err, ErrTooMuchData)
}

func TestBuild_ChecksumInvariants(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(MinBufferSize, MaxBufferSize).Draw(t, "capacity")
		payload := rapid.SliceOfN(rapid.Byte(), 0, capacity-Reserved).Draw(t, "payload")
		cmd := rapid.Byte().Draw(t, "cmd")

		buf := make([]byte, capacity)
		n, err := Build(buf, cmd, payload)
		require.NoError(t, err)
		require.Equal(t, Overhead+len(payload), n)

		assert.Equal(t, byte(0), buf[3]+buf[4], "length checksum")
		assert.True(t, Verify(buf[5:HeaderLen+len(payload)+1]), "data checksum")
		assert.Equal(t, byte(HostToPn532), buf[5])
		assert.Equal(t, cmd, buf[6])
		assert.Equal(t, payload, buf[HeaderLen:HeaderLen+len(payload)])
	})
}

func TestParse(t *testing.T) {
	t.Parallel()

	cmd, payload, err := Parse(firmwareResponse)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), cmd)
	assert.Equal(t, []byte{0x32, 0x01, 0x06, 0x07}, payload)

	// bytes after the postamble are ignored
	padded := append(append([]byte{}, firmwareResponse...), 0xAA, 0xBB, 0xCC)
	cmd, payload, err = Parse(padded)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), cmd)
	assert.Equal(t, []byte{0x32, 0x01, 0x06, 0x07}, payload)
}

func TestParse_EmptyPayload(t *testing.T) {
	t.Parallel()

	// SAMConfiguration response: no payload
	buf := []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x15, 0x16, 0x00}
	cmd, payload, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x15), cmd)
	assert.Empty(t, payload)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	withByte := func(idx int, b byte) []byte {
		out := append([]byte{}, firmwareResponse...)
		out[idx] = b
		return out
	}

	tests := []struct {
		wantErr error
		name    string
		buf     []byte
	}{
		{name: "too short for header", buf: []byte{0x00, 0x00, 0xFF}, wantErr: ErrBufferUnderflow},
		{name: "bad preamble", buf: withByte(0, 0x01), wantErr: ErrBadResponse},
		{name: "bad start code", buf: withByte(2, 0xFE), wantErr: ErrBadResponse},
		{name: "length checksum mismatch", buf: withByte(4, 0xFB), wantErr: ErrBadChecksum},
		{
			name:    "zero length",
			buf:     []byte{0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			wantErr: ErrBadResponse,
		},
		{name: "error frame", buf: ErrorFrame, wantErr: ErrSyntax},
		{name: "missing postamble", buf: firmwareResponse[:12], wantErr: ErrBufferUnderflow},
		{name: "non-zero postamble", buf: withByte(12, 0x01), wantErr: ErrBadResponse},
		{
			name:    "host direction byte",
			buf:     []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x03, 0x29, 0x00},
			wantErr: ErrBadResponse,
		},
		{name: "data checksum mismatch", buf: withByte(11, 0xE9), wantErr: ErrBadChecksum},
		{name: "payload corrupted", buf: withByte(7, 0x33), wantErr: ErrBadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tt.buf)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		cmd := rapid.Byte().Draw(t, "cmd")
		payload := rapid.SliceOfN(rapid.Byte(), 0, DefaultBufferSize-Reserved).Draw(t, "payload")
		padding := rapid.IntRange(0, Reserved).Draw(t, "padding")

		buf := make([]byte, DefaultBufferSize+padding)
		n, err := BuildResponse(buf, cmd, payload)
		require.NoError(t, err)

		gotCmd, gotPayload, err := Parse(buf[:n+padding])
		require.NoError(t, err)
		assert.Equal(t, cmd, gotCmd)
		assert.Equal(t, payload, append([]byte{}, gotPayload...))
	})
}

func TestParse_SingleByteCorruption(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		cmd := rapid.Byte().Draw(t, "cmd")
		payload := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "payload")
		delta := rapid.ByteRange(1, 0xFF).Draw(t, "delta")

		buf := make([]byte, 64)
		n, err := BuildResponse(buf, cmd, payload)
		require.NoError(t, err)
		dcs := HeaderLen + len(payload)

		positions := map[int]error{
			0:   ErrBadResponse,
			1:   ErrBadResponse,
			2:   ErrBadResponse,
			3:   ErrBadChecksum,
			4:   ErrBadChecksum,
			5:   ErrBadResponse,
			dcs: ErrBadChecksum,
		}
		pos := rapid.SampledFrom([]int{0, 1, 2, 3, 4, 5, dcs}).Draw(t, "position")

		buf[pos] ^= delta
		_, _, err = Parse(buf[:n])
		require.ErrorIs(t, err, positions[pos])
	})
}

func TestIsAck(t *testing.T) {
	t.Parallel()
	assert.True(t, IsAck([]byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}))
	assert.False(t, IsAck([]byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}), "NACK")
	assert.False(t, IsAck([]byte{0x00, 0x00, 0xFF, 0x00, 0xFF}), "short")
	assert.False(t, IsAck(nil))
}
