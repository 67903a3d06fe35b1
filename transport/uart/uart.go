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

// Package uart provides the UART (HSU) transport for the PN532.
//
// A serial link has no ready line or status register: the PN532 simply
// streams the ACK and response frames. Receive therefore reads until the
// buffer is full or a complete frame has arrived, and WaitReady returns at
// once.
package uart

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
)

const (
	// BaudRate is the PN532 HSU default.
	BaudRate = 115200

	readTimeout  = 50 * time.Millisecond
	idleInterval = time.Millisecond
)

// wakeupPreamble takes the PN532 out of low VBAT mode. It is sent once,
// ahead of the first frame.
var wakeupPreamble = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Port is the subset of serial.Port the transport uses.
type Port interface {
	io.ReadWriteCloser
	Drain() error
	ResetInputBuffer() error
}

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port     Port
	portName string
	mu       sync.Mutex
	awake    bool
	closed   bool
}

var _ pn532.Transport = (*Transport)(nil)

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return NewWithPort(port, portName), nil
}

// NewWithPort builds a transport on an open port. Reads from port should
// return 0, nil when no data arrives within a short timeout.
func NewWithPort(port Port, name string) *Transport {
	return &Transport{port: port, portName: name}
}

func (t *Transport) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed {
		return pn532.ErrTransportClosed
	}
	return nil
}

// Send implements pn532.Transport. Stale input is discarded first so a
// late frame from an abandoned command cannot be taken for the answer.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return err
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("UART reset input on %s failed: %w", t.portName, err)
	}
	if !t.awake {
		if err := t.write(wakeupPreamble); err != nil {
			return err
		}
		t.awake = true
	}
	if err := t.write(data); err != nil {
		return err
	}
	return t.drainWithRetry()
}

func (t *Transport) write(data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART write to %s failed: %w", t.portName, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: wrote %d of %d bytes to %s", pn532.ErrTransportWrite, n, len(data), t.portName)
	}
	return nil
}

// Receive implements pn532.Transport. The tail of buf past a complete frame
// is left zeroed.
func (t *Transport) Receive(ctx context.Context, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(buf)
	n := 0
	for n < len(buf) && !frameComplete(buf[:n]) {
		if err := t.check(ctx); err != nil {
			return err
		}
		m, err := t.port.Read(buf[n:])
		if err != nil {
			return fmt.Errorf("UART read from %s failed: %w", t.portName, err)
		}
		n += m
		if m == 0 {
			if err := sleepCtx(ctx, idleInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// WaitReady implements pn532.Transport. Receive does the waiting on a
// serial link.
func (t *Transport) WaitReady(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.check(ctx)
}

// frameComplete reports whether b holds a whole ACK, NACK or information
// frame starting at b[0].
func frameComplete(b []byte) bool {
	if len(b) < 5 || b[0] != 0x00 || b[1] != 0x00 || b[2] != 0xFF {
		return false
	}
	length, lcs := b[3], b[4]
	if (length == 0x00 && lcs == 0xFF) || (length == 0xFF && lcs == 0x00) {
		return len(b) >= 6
	}
	return len(b) >= int(length)+7
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for the output to be sent, retrying drains cut short
// by a signal.
func (t *Transport) drainWithRetry() error {
	const maxRetries = 3
	delay := 2 * time.Millisecond

	var err error
	for range maxRetries {
		err = t.port.Drain()
		if err == nil || !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	if err != nil {
		return fmt.Errorf("UART drain on %s failed: %w", t.portName, err)
	}
	return nil
}

// Close closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}
