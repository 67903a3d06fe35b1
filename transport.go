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

package pn532

import (
	"context"
	"sync"
	"time"

	"github.com/ZaparooProject/go-pn532-lite/internal/frame"
)

// Transport moves raw bytes between the host and a PN532. Implementations
// know nothing about frames; the Protocol builds and validates them.
//
// No method applies an implicit timeout. Callers bound every operation with
// the context.
type Transport interface {
	// Send writes one complete frame.
	Send(ctx context.Context, data []byte) error
	// Receive fills buf completely with bytes read from the device.
	Receive(ctx context.Context, buf []byte) error
	// WaitReady blocks until the device has data to be read.
	WaitReady(ctx context.Context) error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport
	TransportI2C TransportType = "i2c"
	// TransportSPI represents SPI bus transport
	TransportSPI TransportType = "spi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport is a scripted Transport for tests. Every command frame it
// receives is acknowledged and answered with the response configured for
// that command, or with an empty response when none is configured.
type MockTransport struct {
	responses map[byte][]byte
	raw       map[byte][]byte
	errorMap  map[byte]error
	callCount map[byte]int
	ack       []byte
	pending   [][]byte
	sent      [][]byte
	delay     time.Duration
	mu        sync.Mutex
	stalled   bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]byte),
		raw:       make(map[byte][]byte),
		errorMap:  make(map[byte]error),
		callCount: make(map[byte]int),
		ack:       frame.AckFrame,
	}
}

// SetResponse sets the payload returned after the response opcode for cmd.
func (m *MockTransport) SetResponse(cmd byte, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = payload
}

// SetRawResponse sets the exact bytes returned as the response frame for cmd.
func (m *MockTransport) SetRawResponse(cmd byte, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[cmd] = data
}

// SetError makes Send fail with err for cmd.
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMap[cmd] = err
}

// SetAck replaces the acknowledgement returned after every command.
func (m *MockTransport) SetAck(ack []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ack = ack
}

// SetDelay adds a delay to every WaitReady call.
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// SetStalled makes WaitReady block until its context is done.
func (m *MockTransport) SetStalled(stalled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stalled = stalled
}

// GetCallCount returns how many frames carrying cmd were sent.
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[cmd]
}

// Sent returns a copy of every frame written so far.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, f := range m.sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, append([]byte(nil), data...))
	if len(data) < frame.Overhead || data[5] != frame.HostToPn532 {
		return nil
	}
	cmd := data[6]
	m.callCount[cmd]++

	if err, ok := m.errorMap[cmd]; ok {
		return err
	}

	m.pending = append(m.pending, m.ack)
	if raw, ok := m.raw[cmd]; ok {
		m.pending = append(m.pending, raw)
		return nil
	}
	payload := m.responses[cmd]
	buf := make([]byte, len(payload)+frame.Reserved)
	n, err := frame.BuildResponse(buf, cmd+1, payload)
	if err != nil {
		return err
	}
	m.pending = append(m.pending, buf[:n])
	return nil
}

// Receive implements Transport. Bytes beyond the queued chunk read as zero.
func (m *MockTransport) Receive(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return ErrTransportTimeout
	}
	chunk := m.pending[0]
	m.pending = m.pending[1:]

	n := copy(buf, chunk)
	clear(buf[n:])
	return nil
}

// WaitReady implements Transport.
func (m *MockTransport) WaitReady(ctx context.Context) error {
	m.mu.Lock()
	delay := m.delay
	stalled := m.stalled
	m.mu.Unlock()

	if stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Type returns the transport type.
func (*MockTransport) Type() TransportType {
	return TransportMock
}
