// go-pn532-lite
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn532-lite.
//
// go-pn532-lite is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn532-lite is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn532-lite; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package uart

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	virt "github.com/ZaparooProject/go-pn532-lite/internal/testing"
	"github.com/ZaparooProject/go-pn532-lite/tagops"
)

var _ Port = serial.Port(nil)

// mockPort is a serial link to a VirtualPN532 through a connection that
// fragments reads like a USB-UART bridge.
type mockPort struct {
	rw      io.ReadWriter
	written bytes.Buffer
	drains  int
	resets  int
	mu      sync.Mutex
	closed  bool
}

func (m *mockPort) Read(p []byte) (int, error) {
	return m.rw.Read(p) //nolint:wrapcheck // test double
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	m.written.Write(p)
	m.mu.Unlock()
	return m.rw.Write(p) //nolint:wrapcheck // test double
}

func (m *mockPort) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	return nil
}

func (m *mockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newTestTransport(t *testing.T, seed uint64) (*Transport, *mockPort, *virt.VirtualPN532) {
	t.Helper()
	sim := virt.NewVirtualPN532()
	port := &mockPort{rw: virt.NewJitteryConnection(sim, virt.JitterConfig{Fragment: true, Seed: seed})}
	return NewWithPort(port, "mock"), port, sim
}

func TestFrameComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "empty", data: nil, want: false},
		{name: "partial header", data: []byte{0x00, 0x00, 0xFF, 0x00}, want: false},
		{name: "ack", data: []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, want: true},
		{name: "nack", data: []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}, want: true},
		{name: "short ack", data: []byte{0x00, 0x00, 0xFF, 0x00, 0xFF}, want: false},
		{name: "error frame", data: []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}, want: true},
		{name: "partial response", data: []byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32}, want: false},
		{
			name: "response",
			data: []byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00},
			want: true,
		},
		{name: "garbage", data: []byte{0x55, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, frameComplete(tt.data))
		})
	}
}

func TestTransport_WakeupOnce(t *testing.T) {
	t.Parallel()

	transport, port, _ := newTestTransport(t, 1)
	device, err := pn532.New(transport)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = device.GetFirmwareVersion(ctx)
	require.NoError(t, err)
	_, err = device.GetFirmwareVersion(ctx)
	require.NoError(t, err)

	written := port.written.Bytes()
	assert.True(t, bytes.HasPrefix(written, wakeupPreamble))
	assert.Equal(t, 1, bytes.Count(written, []byte{0x55}))
	assert.Equal(t, 2, port.drains)
	assert.Equal(t, 2, port.resets)
	assert.Equal(t, pn532.TransportUART, transport.Type())
}

func TestTransport_FragmentedReads(t *testing.T) {
	t.Parallel()

	for _, seed := range []uint64{3, 99, 2024} {
		transport, _, sim := newTestTransport(t, seed)
		tag := virt.NewVirtualNTAG215(nil)
		require.NoError(t, tag.SetNDEFText("over uart"))
		sim.SetTag(tag)

		device, err := pn532.New(transport)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ops := tagops.New(device)
		require.NoError(t, ops.DetectTag(ctx), "seed %d", seed)
		records, err := ops.ReadNDEF(ctx)
		cancel()
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, records, 1)

		wk, err := records[0].WellKnown()
		require.NoError(t, err)
		assert.Equal(t, "over uart", wk.Text)
	}
}

func TestTransport_ReceiveTimesOut(t *testing.T) {
	t.Parallel()

	transport, _, _ := newTestTransport(t, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, transport.WaitReady(ctx))
	err := transport.Receive(ctx, make([]byte, 6))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_ShortResponseLeavesTailZeroed(t *testing.T) {
	t.Parallel()

	transport, _, sim := newTestTransport(t, 11)
	sim.SetTag(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// InListPassiveTarget with an empty field answers a single byte
	cmd := []byte{0x00, 0x00, 0xFF, 0x04, 0xFC, 0xD4, 0x4A, 0x01, 0x00, 0xE1, 0x00}
	require.NoError(t, transport.Send(ctx, cmd))

	ack := make([]byte, 6)
	require.NoError(t, transport.Receive(ctx, ack))
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0xAA
	}
	require.NoError(t, transport.Receive(ctx, buf))
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x03, 0xFD, 0xD5, 0x4B, 0x00, 0xE0, 0x00}, buf[:10])
	assert.Equal(t, make([]byte, 22), buf[10:])
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	transport, port, _ := newTestTransport(t, 1)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	assert.True(t, port.closed)

	ctx := context.Background()
	require.ErrorIs(t, transport.Send(ctx, []byte{0x00}), pn532.ErrTransportClosed)
	require.ErrorIs(t, transport.Receive(ctx, make([]byte, 6)), pn532.ErrTransportClosed)
	require.ErrorIs(t, transport.WaitReady(ctx), pn532.ErrTransportClosed)
}
