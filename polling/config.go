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
	"errors"
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid polling config")

// SleepRecoveryConfig configures automatic recovery after host sleep/wake
type SleepRecoveryConfig struct {
	// Enabled enables sleep detection and recovery attempts
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the expected
	// poll interval that indicates a sleep occurred. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration
}

// DefaultSleepRecoveryConfig returns sensible defaults for sleep recovery
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
	}
}

// DetectSleep checks if the elapsed time since last poll indicates a system sleep.
// Returns true if elapsed time exceeds (pollInterval + TimeDiscontinuityThreshold).
func (cfg SleepRecoveryConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	return elapsed > pollInterval+cfg.TimeDiscontinuityThreshold
}

// Config holds polling configuration options
type Config struct {
	// Retry is applied to a whole poll cycle. Nil uses pn532.DefaultRetryConfig.
	// Backoff waits run on the actor's clock unless Retry.Clock is set.
	Retry *pn532.RetryConfig
	// PollInterval is the time between poll cycles while a card was seen recently
	PollInterval time.Duration
	// IdleInterval is used once no card has been seen for IdleAfter. Zero
	// disables adaptive polling.
	IdleInterval time.Duration
	IdleAfter    time.Duration
	// PollTimeout bounds the target search of one poll. A PN532 that finds
	// no card keeps searching without answering, so a search that outlives
	// PollTimeout counts as an empty field. Zero selects DefaultPollTimeout.
	PollTimeout time.Duration
	// RemovalPolls is the number of consecutive empty polls after which the
	// current card counts as removed
	RemovalPolls int
	// SleepRecovery configures automatic recovery after host sleep/wake cycles
	SleepRecovery SleepRecoveryConfig
}

// DefaultPollTimeout is the target search bound used when Config.PollTimeout
// is zero.
const DefaultPollTimeout = time.Second

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  250 * time.Millisecond,
		IdleInterval:  500 * time.Millisecond,
		IdleAfter:     5 * time.Second,
		PollTimeout:   DefaultPollTimeout,
		RemovalPolls:  2,
		SleepRecovery: DefaultSleepRecoveryConfig(),
		Retry:         pn532.DefaultRetryConfig(),
	}
}

// Validate checks the config for values the poll loop cannot run with
func (c *Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	case c.IdleInterval < 0 || c.IdleAfter < 0:
		return fmt.Errorf("%w: idle interval and idle after must not be negative", ErrInvalidConfig)
	case c.PollTimeout < 0:
		return fmt.Errorf("%w: poll timeout must not be negative", ErrInvalidConfig)
	case c.RemovalPolls < 1:
		return fmt.Errorf("%w: removal polls must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) pollTimeout() time.Duration {
	if c.PollTimeout == 0 {
		return DefaultPollTimeout
	}
	return c.PollTimeout
}

// intervalFor returns the poll interval to use when the last card was seen
// sinceCard ago.
func (c *Config) intervalFor(sinceCard time.Duration) time.Duration {
	if c.IdleInterval > 0 && sinceCard > c.IdleAfter {
		return c.IdleInterval
	}
	return c.PollInterval
}
