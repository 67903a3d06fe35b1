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

package testing

import (
	"context"
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/internal/syncutil"
)

const readyPollInterval = time.Millisecond

// SimulatorTransport is a pn532.Transport backed by a VirtualPN532. Every
// Receive reads exactly one queued frame, as a bus transaction does.
type SimulatorTransport struct {
	sim      *VirtualPN532
	failNext error
	mu       syncutil.Mutex
	closed   bool
}

var _ pn532.Transport = (*SimulatorTransport)(nil)

// NewSimulatorTransport wraps sim.
func NewSimulatorTransport(sim *VirtualPN532) *SimulatorTransport {
	return &SimulatorTransport{sim: sim}
}

// Simulator returns the wrapped simulator.
func (t *SimulatorTransport) Simulator() *VirtualPN532 {
	return t.sim
}

// FailNext makes the next Send return err without reaching the simulator.
func (t *SimulatorTransport) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = err
}

func (t *SimulatorTransport) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pn532.ErrTransportClosed
	}
	return nil
}

// Send implements pn532.Transport.
func (t *SimulatorTransport) Send(ctx context.Context, data []byte) error {
	if err := t.check(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	injected := t.failNext
	t.failNext = nil
	t.mu.Unlock()
	if injected != nil {
		return injected
	}

	if _, err := t.sim.Write(data); err != nil {
		return fmt.Errorf("simulator write: %w", err)
	}
	return nil
}

// Receive implements pn532.Transport.
func (t *SimulatorTransport) Receive(ctx context.Context, buf []byte) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if !t.sim.ReadFrame(buf) {
		return pn532.ErrTransportTimeout
	}
	return nil
}

// WaitReady implements pn532.Transport.
func (t *SimulatorTransport) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if err := t.check(ctx); err != nil {
			return err
		}
		if t.sim.HasPendingResponse() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close marks the transport closed. Later calls fail with
// pn532.ErrTransportClosed.
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Type implements the adapters' Type method.
func (*SimulatorTransport) Type() pn532.TransportType {
	return pn532.TransportMock
}
