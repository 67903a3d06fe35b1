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

// Command reader polls a PN532 and logs every NFC tag it sees together with
// the records of its NDEF message.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/pkg/ndef"
	"github.com/ZaparooProject/go-pn532-lite/polling"
	"github.com/ZaparooProject/go-pn532-lite/transport/i2c"
	"github.com/ZaparooProject/go-pn532-lite/transport/spi"
	"github.com/ZaparooProject/go-pn532-lite/transport/uart"
)

type flags struct {
	config    string
	transport string
	device    string
	logFile   string
	debug     bool
}

func parseFlags(args []string, output io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("reader", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.config, "config", "", "Path to a TOML config file")
	fs.StringVar(&f.transport, "transport", "", "Transport: spi, i2c or uart (guessed from the device path if empty)")
	fs.StringVar(&f.device, "device", "", "Device path, e.g. /dev/ttyUSB0, /dev/i2c-1 or /dev/spidev0.0")
	fs.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file, rotated by size")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug output")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return f, nil
}

// transportKind returns kind, or guesses it from the device path.
func transportKind(kind, path string) string {
	if kind != "" {
		return kind
	}
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "i2c"):
		return string(pn532.TransportI2C)
	case strings.Contains(lower, "spi"):
		return string(pn532.TransportSPI)
	default:
		return string(pn532.TransportUART)
	}
}

// openTransport opens the device with the transport of the given kind.
func openTransport(kind, path string) (pn532.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	switch transportKind(kind, path) {
	case string(pn532.TransportI2C):
		transport, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport for %s: %w", path, err)
		}
		return transport, nil
	case string(pn532.TransportSPI):
		transport, err := spi.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport for %s: %w", path, err)
		}
		return transport, nil
	default:
		transport, err := uart.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
		}
		return transport, nil
	}
}

type opener func() (pn532.Transport, error)

// connect opens a transport and brings the PN532 up.
func connect(ctx context.Context, cfg *Config, open opener) (*pn532.Device, error) {
	transport, err := open()
	if err != nil {
		return nil, err
	}

	var opts []pn532.Option
	if cfg.UseIRQ {
		opts = append(opts, pn532.WithIRQ())
	}
	device, err := pn532.New(transport, opts...)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	if err := device.InitContext(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize PN532: %w", err)
	}
	return device, nil
}

func cardCallbacks(logger zerolog.Logger) polling.Callbacks {
	return polling.Callbacks{
		OnCard: func(_ context.Context, card *polling.Card) error {
			event := logger.Info().Hex("uid", card.UID).Int("records", len(card.Records))
			if card.ReadErr != nil {
				event = logger.Warn().Err(card.ReadErr).Hex("uid", card.UID)
			}
			event.Msg("tag detected")

			for i, rec := range card.Records {
				logRecord(logger, i, rec)
			}
			return nil
		},
		OnCardRemoved: func(uid []byte) {
			logger.Info().Hex("uid", uid).Msg("tag removed")
		},
	}
}

func logRecord(logger zerolog.Logger, index int, rec ndef.Record) {
	event := logger.Info().Int("index", index).Stringer("kind", rec.Kind)
	switch rec.Kind {
	case ndef.KindMimeMedia:
		event = event.Str("type", rec.Type).Str("value", rec.Value)
	case ndef.KindUnexpected:
		if wk, err := rec.WellKnown(); err == nil {
			event = event.Str("type", wk.Type).Str("value", wk.String())
		} else {
			event = event.Hex("raw", rec.Raw)
		}
	case ndef.KindEmpty, ndef.KindUnknown:
	}
	event.Msg("record")
}

// reportMetrics logs poll counters every interval until ctx is done.
func reportMetrics(ctx context.Context, clock clockwork.Clock, actor *polling.Actor, logger zerolog.Logger, every time.Duration) error {
	if every <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m := actor.Metrics()
			logger.Debug().
				Int64("polls", m.PollCycles).
				Int64("errors", m.PollErrors).
				Int64("cards", m.CardsDetected).
				Int64("recoveries", m.Recoveries).
				Dur("latency", m.LastPollLatency).
				Msg("poll metrics")
		}
	}
}

// run connects and polls until ctx is cancelled or the device is lost for
// good.
func run(ctx context.Context, cfg *Config, open opener, logger zerolog.Logger) error {
	device, err := connect(ctx, cfg, open)
	if err != nil {
		return err
	}
	current := func() *pn532.Device { return device }
	defer func() { _ = current().Close() }()
	logger.Info().Stringer("firmware", device.FirmwareVersion()).Msg("PN532 ready")

	reopen := func(ctx context.Context) (*pn532.Device, error) {
		logger.Warn().Msg("reconnecting to PN532")
		return connect(ctx, cfg, open)
	}
	recoverer := polling.NewDefaultRecoverer(device, reopen, cfg.recoveryDelay(), cfg.Polling.RecoveryTrials)

	actor, err := polling.NewActor(device, cfg.pollingConfig(), cardCallbacks(logger), polling.WithRecoverer(recoverer))
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	// a reconnect replaces the device
	current = recoverer.Device

	logger.Info().Msg("waiting for tags, press Ctrl+C to stop")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return actor.Run(gctx)
	})
	g.Go(func() error {
		return reportMetrics(gctx, clockwork.NewRealClock(), actor, logger, cfg.metricsInterval())
	})
	return g.Wait()
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	f, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(f.config)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg.applyFlags(f)
	if err := cfg.validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, closer := newLogger(&cfg, os.Stderr)
	defer func() { _ = closer.Close() }()
	pn532.SetLogger(logger.With().Str("component", "pn532").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func() (pn532.Transport, error) {
		return openTransport(cfg.Transport, cfg.Device)
	}
	if err := run(ctx, &cfg, open, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("reader stopped")
		return 1
	}
	return 0
}
