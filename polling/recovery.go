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

package polling

import (
	"context"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/internal/syncutil"
	"github.com/jonboulle/clockwork"
)

// DeviceRecoverer handles device recovery after sleep/wake or errors
type DeviceRecoverer interface {
	// AttemptRecovery tries to recover the device connection.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error

	// Device returns the current device reference (may change after reconnection)
	Device() *pn532.Device
}

// ReopenFunc is a function that attempts to reopen/reconnect the device
type ReopenFunc func(ctx context.Context) (*pn532.Device, error)

// DefaultRecoverer implements a tiered recovery strategy:
// 1. Soft reset via SAMConfiguration
// 2. Full reconnection via user-provided reopen function
type DefaultRecoverer struct {
	clock       clockwork.Clock
	device      *pn532.Device
	reopenFunc  ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer with tiered recovery strategy.
// If reopenFunc is nil, only soft reset will be attempted.
func NewDefaultRecoverer(
	device *pn532.Device,
	reopenFunc ReopenFunc,
	backoff time.Duration,
	maxAttempts int,
) *DefaultRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &DefaultRecoverer{
		clock:       clockwork.NewRealClock(),
		device:      device,
		reopenFunc:  reopenFunc,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// WithClock replaces the clock used for backoff between attempts
func (r *DefaultRecoverer) WithClock(clock clockwork.Clock) *DefaultRecoverer {
	r.clock = clock
	return r
}

// AttemptRecovery implements tiered recovery:
// 1. Try soft reset (SAMConfiguration) - works if the bus is still valid
// 2. If that fails and reopenFunc is provided, try full reconnection
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.backoff):
			}
		}

		err := r.device.SAMConfiguration(ctx, pn532.SAMModeNormal, false)
		if err == nil {
			return nil
		}
		lastErr = err
		pn532.Debugf("recovery attempt %d/%d: soft reset failed: %v", attempt+1, r.maxAttempts, err)

		if r.reopenFunc != nil {
			_ = r.device.Close()
			newDevice, reopenErr := r.reopenFunc(ctx)
			if reopenErr == nil {
				r.device = newDevice
				return nil
			}
			lastErr = reopenErr
		}
	}

	return lastErr
}

// Device returns the current device reference.
// This may return a different device after a successful reconnection.
func (r *DefaultRecoverer) Device() *pn532.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}
