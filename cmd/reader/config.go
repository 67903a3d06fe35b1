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

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/polling"
)

// Config is the reader configuration. A TOML file provides the base values
// and command line flags override them.
type Config struct {
	Transport string        `toml:"transport" validate:"omitempty,oneof=spi i2c uart"`
	Device    string        `toml:"device" validate:"required"`
	LogFile   string        `toml:"log_file"`
	Polling   PollingConfig `toml:"polling"`
	// LogMaxSize is the size in megabytes at which the log file rotates.
	LogMaxSize    int    `toml:"log_max_size" validate:"gte=1"`
	LogMaxBackups int    `toml:"log_max_backups" validate:"gte=0"`
	MetricsEvery  string `toml:"metrics_every" validate:"omitempty,duration"`
	Debug         bool   `toml:"debug"`
	UseIRQ        bool   `toml:"use_irq"`
}

// PollingConfig holds the tunables of the poll loop. Durations use Go
// syntax such as "250ms".
type PollingConfig struct {
	Interval       string `toml:"interval" validate:"omitempty,duration"`
	IdleInterval   string `toml:"idle_interval" validate:"omitempty,duration"`
	IdleAfter      string `toml:"idle_after" validate:"omitempty,duration"`
	PollTimeout    string `toml:"poll_timeout" validate:"omitempty,duration"`
	RecoveryDelay  string `toml:"recovery_delay" validate:"omitempty,duration"`
	RemovalPolls   int    `toml:"removal_polls" validate:"gte=1"`
	RetryAttempts  int    `toml:"retry_attempts" validate:"gte=0,lte=20"`
	RecoveryTrials int    `toml:"recovery_attempts" validate:"gte=0,lte=20"`
}

func defaultConfig() Config {
	def := polling.DefaultConfig()
	return Config{
		LogMaxSize:    1,
		LogMaxBackups: 2,
		MetricsEvery:  "1m",
		Polling: PollingConfig{
			Interval:       def.PollInterval.String(),
			IdleInterval:   def.IdleInterval.String(),
			IdleAfter:      def.IdleAfter.String(),
			PollTimeout:    def.PollTimeout.String(),
			RecoveryDelay:  "500ms",
			RemovalPolls:   def.RemovalPolls,
			RetryAttempts:  def.Retry.MaxAttempts,
			RecoveryTrials: 3,
		},
	}
}

// loadConfig reads path on top of the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides file values with the flags that were set.
func (c *Config) applyFlags(f *flags) {
	if f.transport != "" {
		c.Transport = f.transport
	}
	if f.device != "" {
		c.Device = f.device
	}
	if f.logFile != "" {
		c.LogFile = f.logFile
	}
	if f.debug {
		c.Debug = true
	}
}

var errInvalidConfig = errors.New("invalid config")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", validateDuration)
	return v
}

// validateDuration checks if string is a valid Go duration.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// validate checks the config and names every offending field.
func (c *Config) validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", errInvalidConfig, strings.Join(msgs, ", "))
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// metricsInterval returns how often poll metrics are logged, zero for never.
func (c *Config) metricsInterval() time.Duration {
	return parseDuration(c.MetricsEvery, 0)
}

// pollingConfig converts the validated config for the polling actor.
func (c *Config) pollingConfig() *polling.Config {
	cfg := polling.DefaultConfig()
	cfg.PollInterval = parseDuration(c.Polling.Interval, cfg.PollInterval)
	cfg.IdleInterval = parseDuration(c.Polling.IdleInterval, cfg.IdleInterval)
	cfg.IdleAfter = parseDuration(c.Polling.IdleAfter, cfg.IdleAfter)
	cfg.PollTimeout = parseDuration(c.Polling.PollTimeout, cfg.PollTimeout)
	cfg.RemovalPolls = c.Polling.RemovalPolls

	retry := *pn532.DefaultRetryConfig()
	retry.MaxAttempts = c.Polling.RetryAttempts
	cfg.Retry = &retry
	return cfg
}

func (c *Config) recoveryDelay() time.Duration {
	return parseDuration(c.Polling.RecoveryDelay, 500*time.Millisecond)
}
