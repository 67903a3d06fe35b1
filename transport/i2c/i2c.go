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

// Package i2c provides the I2C transport for the PN532.
//
// Every read from the PN532 starts with a status byte whose low bit is set
// once the chip has data ready. The byte is stripped before the data is
// handed to the protocol engine.
package i2c

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/internal/frame"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the 7-bit I2C address of the PN532.
	Address = 0x24

	pn532Ready = 0x01

	defaultSpeed = 400 * physic.KiloHertz

	// DefaultPollInterval is the pause between status reads in WaitReady.
	DefaultPollInterval = 5 * time.Millisecond
)

// Transport implements pn532.Transport over an I2C bus.
type Transport struct {
	bus          i2c.BusCloser
	dev          *i2c.Dev
	busName      string
	pollInterval time.Duration
	mu           sync.Mutex
	closed       bool
}

var _ pn532.Transport = (*Transport)(nil)

// parseI2CPath drops an optional ":address" suffix from a bus name such as
// "/dev/i2c-1:0x24". The PN532 always answers on Address.
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens the named bus and addresses the PN532 on it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseI2CPath(busName))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	if err := bus.SetSpeed(defaultSpeed); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to set I2C speed: %w", err)
	}

	t := NewWithBus(bus, busName)
	t.bus = bus
	return t, nil
}

// NewWithBus builds a transport on an open bus. Close does not close it.
func NewWithBus(bus i2c.Bus, name string) *Transport {
	return &Transport{
		dev:          &i2c.Dev{Bus: bus, Addr: Address},
		busName:      name,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes the pause between status reads.
func (t *Transport) SetPollInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollInterval = d
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
	if err := t.dev.Tx(data, nil); err != nil {
		return fmt.Errorf("I2C write to %s failed: %w", t.busName, err)
	}
	return nil
}

// Receive implements pn532.Transport.
func (t *Transport) Receive(ctx context.Context, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return err
	}

	r := frame.GetBuffer(len(buf) + 1)
	defer frame.PutBuffer(r)
	if err := t.dev.Tx(nil, r); err != nil {
		return fmt.Errorf("I2C read from %s failed: %w", t.busName, err)
	}
	copy(buf, r[1:])
	return nil
}

// WaitReady implements pn532.Transport by polling the status byte.
func (t *Transport) WaitReady(ctx context.Context) error {
	var status [1]byte
	for {
		ready, interval, err := t.readStatus(ctx, status[:])
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

func (t *Transport) readStatus(ctx context.Context, status []byte) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return false, 0, err
	}
	if err := t.dev.Tx(nil, status); err != nil {
		return false, 0, fmt.Errorf("I2C status read on %s failed: %w", t.busName, err)
	}
	return status[0] == pn532Ready, t.pollInterval, nil
}

// Close releases the bus if New opened it.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.bus != nil {
		if err := t.bus.Close(); err != nil {
			return fmt.Errorf("I2C close failed: %w", err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}
