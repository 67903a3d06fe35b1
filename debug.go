// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn532

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	if os.Getenv("PN532_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		l := consoleLogger()
		logger.Store(&l)
		return
	}
	l := zerolog.Nop()
	logger.Store(&l)
}

func consoleLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Str("component", "pn532").Logger()
}

// SetLogger replaces the logger used by this package and its transports.
// The default discards everything unless PN532_DEBUG is set.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// Logger returns the package logger.
func Logger() *zerolog.Logger {
	return logger.Load()
}

// SetDebugEnabled switches the current logger between debug and info level.
// Enabling debug while logging is disabled installs a console logger on
// stderr.
func SetDebugEnabled(enabled bool) {
	var l zerolog.Logger
	switch {
	case !enabled:
		l = Logger().Level(zerolog.InfoLevel)
	case Logger().GetLevel() == zerolog.Disabled:
		l = consoleLogger()
	default:
		l = Logger().Level(zerolog.DebugLevel)
	}
	logger.Store(&l)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	Logger().Debug().Msgf(format, args...)
}

func tracef(format string, args ...any) {
	Logger().Trace().Msgf(format, args...)
}
