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

// Package spi provides the SPI transport for the PN532.
//
// The PN532 shifts bytes LSB first while most SPI controllers only do MSB
// first, so every byte is bit-reversed in software. Each transaction starts
// with an operation byte: status read, data write or data read.
package spi

import (
	"context"
	"fmt"
	"sync"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/internal/frame"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	spiStatRead  = 0x02
	spiDataWrite = 0x01
	spiDataRead  = 0x03
	spiReady     = 0x01

	defaultFreq = 1 * physic.MegaHertz
	mode        = spi.Mode0

	// DefaultPollInterval is the pause between status reads in WaitReady.
	DefaultPollInterval = 5 * time.Millisecond
)

// Transport implements pn532.Transport over an SPI connection.
type Transport struct {
	port         spi.PortCloser
	conn         spi.Conn
	portName     string
	pollInterval time.Duration
	mu           sync.Mutex
	closed       bool
}

var _ pn532.Transport = (*Transport)(nil)

// New opens the SPI port (for example "/dev/spidev0.0" or "SPI0.0") and
// wakes the PN532.
func New(portName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(defaultFreq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t := NewWithConn(conn, portName)
	t.port = port
	t.wakeup()
	return t, nil
}

// NewWithConn builds a transport on an already configured connection. The
// connection must run in mode 0 with 8 bit words. Close does not close it.
func NewWithConn(conn spi.Conn, name string) *Transport {
	return &Transport{
		conn:         conn,
		portName:     name,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes the pause between status reads.
func (t *Transport) SetPollInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollInterval = d
}

// wakeup clocks a dummy byte so the PN532 leaves power down.
func (t *Transport) wakeup() {
	time.Sleep(time.Millisecond)
	_ = t.conn.Tx([]byte{0x00}, nil)
	time.Sleep(time.Millisecond)
}

// reverseBit reverses the bits in a byte (LSB <-> MSB)
func reverseBit(b byte) byte {
	var result byte
	for range 8 {
		result <<= 1
		result |= b & 1
		b >>= 1
	}
	return result
}

func reverseInto(dst, src []byte) {
	for i, b := range src {
		dst[i] = reverseBit(b)
	}
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

// Send implements pn532.Transport.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return err
	}

	w := frame.GetBuffer(len(data) + 1)
	defer frame.PutBuffer(w)
	w[0] = reverseBit(spiDataWrite)
	reverseInto(w[1:], data)

	if err := t.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("SPI write to %s failed: %w", t.portName, err)
	}
	return nil
}

// Receive implements pn532.Transport. The byte clocked in during the
// operation byte is discarded.
func (t *Transport) Receive(ctx context.Context, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return err
	}

	w := frame.GetBuffer(len(buf) + 1)
	defer frame.PutBuffer(w)
	r := frame.GetBuffer(len(buf) + 1)
	defer frame.PutBuffer(r)
	w[0] = reverseBit(spiDataRead)

	if err := t.conn.Tx(w, r); err != nil {
		return fmt.Errorf("SPI read from %s failed: %w", t.portName, err)
	}
	reverseInto(buf, r[1:])
	return nil
}

// WaitReady implements pn532.Transport by polling the status register.
func (t *Transport) WaitReady(ctx context.Context) error {
	status := []byte{reverseBit(spiStatRead), 0x00}
	resp := make([]byte, len(status))

	for {
		ready, interval, err := t.readStatus(ctx, status, resp)
		if err != nil || ready {
			return err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) readStatus(ctx context.Context, status, resp []byte) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return false, 0, err
	}
	if err := t.conn.Tx(status, resp); err != nil {
		return false, 0, fmt.Errorf("SPI status read on %s failed: %w", t.portName, err)
	}
	return reverseBit(resp[1]) == spiReady, t.pollInterval, nil
}

// Close releases the port if New opened it.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("SPI close failed: %w", err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportSPI
}
