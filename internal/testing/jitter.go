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
	"io"
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-pn532-lite/internal/syncutil"
)

// JitterConfig shapes the reads of a JitteryConnection.
type JitterConfig struct {
	// MaxLatency is the upper bound of the random delay before each read.
	MaxLatency time.Duration
	// StallDuration is slept once after StallAfterBytes have been read.
	StallDuration time.Duration
	// MinFragment is the fewest bytes a fragmented read returns.
	MinFragment     int
	StallAfterBytes int
	Seed            uint64
	Fragment        bool
}

// JitteryConnection wraps a byte stream the way a USB-UART bridge does:
// reads arrive late and split at arbitrary points. Bytes are buffered so
// fragmentation never loses data.
type JitteryConnection struct {
	backend io.ReadWriter
	rng     *rand.Rand
	pending []byte
	config  JitterConfig
	read    int
	mu      syncutil.Mutex
	stalled bool
}

// NewJitteryConnection wraps backend. A zero Seed picks a random one.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test jitter
	}
	if config.MinFragment < 1 {
		config.MinFragment = 1
	}
	return &JitteryConnection{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)), //nolint:gosec // test jitter
	}
}

// Write passes data through untouched.
func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns a random prefix of the buffered stream.
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}
	if j.config.StallAfterBytes > 0 && !j.stalled && j.read >= j.config.StallAfterBytes {
		j.stalled = true
		time.Sleep(j.config.StallDuration)
	}

	var chunk [256]byte
	n, err := j.backend.Read(chunk[:])
	j.pending = append(j.pending, chunk[:n]...)
	if len(j.pending) == 0 {
		return 0, err //nolint:wrapcheck // pass-through
	}

	want := min(len(buf), len(j.pending))
	if j.config.Fragment && want > j.config.MinFragment {
		want = j.config.MinFragment + j.rng.IntN(want-j.config.MinFragment+1)
	}
	copy(buf, j.pending[:want])
	j.pending = j.pending[want:]
	j.read += want
	return want, nil
}

// Buffered returns how many bytes were pulled from the backend but not yet
// handed out.
func (j *JitteryConnection) Buffered() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}
