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

// Package polling owns a PN532 device on a single goroutine, polls it for
// NTAG cards and reports their NDEF records.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/pkg/ndef"
	"github.com/ZaparooProject/go-pn532-lite/tagops"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotRunning is returned by Do when the actor loop is not running
	ErrNotRunning = errors.New("polling actor is not running")
	// ErrAlreadyRunning is returned by Run when the loop is already running
	ErrAlreadyRunning = errors.New("polling actor is already running")
)

// Card is a card that entered the field
type Card struct {
	// ReadErr is set when the NDEF area could not be read or parsed. Records
	// holds whatever was parsed before the failure.
	ReadErr error
	UID     []byte
	Records []ndef.Record
}

// Callbacks defines callback functions for card events. They run on the
// actor goroutine and must not call Do.
type Callbacks struct {
	OnCard        func(ctx context.Context, card *Card) error
	OnCardRemoved func(uid []byte)
}

// Metrics tracks operational metrics for Actor
type Metrics struct {
	PollCycles      int64         // Number of completed polling cycles
	PollErrors      int64         // Number of polling errors
	CardsDetected   int64         // Number of cards detected
	CallbackErrors  int64         // Number of callback errors
	Recoveries      int64         // Number of successful device recoveries
	LastPollLatency time.Duration // Duration of last polling operation
}

type request struct {
	ctx  context.Context //nolint:containedctx // carried to the actor goroutine
	fn   func(ctx context.Context, device *pn532.Device) error
	done chan error
}

// Actor is the single owner of a PN532 device. Poll cycles and Do requests
// run one at a time on the actor goroutine.
type Actor struct {
	clock     clockwork.Clock
	device    *pn532.Device
	recoverer DeviceRecoverer
	config    *Config
	retry     *pn532.RetryConfig
	callbacks Callbacks
	requests  chan request
	cancel    context.CancelFunc
	done      chan struct{}
	state     CardState
	lastPoll  time.Time
	lastCard  time.Time
	interval  time.Duration
	err       error
	mu        sync.Mutex
	// Atomic counters for metrics
	pollCycles      atomic.Int64
	pollErrors      atomic.Int64
	cardsDetected   atomic.Int64
	callbackErrors  atomic.Int64
	recoveries      atomic.Int64
	lastPollLatency atomic.Int64
	currentInterval atomic.Int64
	running         atomic.Bool
}

// Option configures an Actor
type Option func(*Actor)

// WithClock sets the clock driving the poll ticker
func WithClock(clock clockwork.Clock) Option {
	return func(a *Actor) {
		a.clock = clock
	}
}

// WithRecoverer sets the recoverer used after fatal errors and host sleep
func WithRecoverer(r DeviceRecoverer) Option {
	return func(a *Actor) {
		a.recoverer = r
	}
}

// NewActor creates a new actor. A nil config uses DefaultConfig.
func NewActor(device *pn532.Device, config *Config, callbacks Callbacks, opts ...Option) (*Actor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Actor{
		clock:     clockwork.NewRealClock(),
		device:    device,
		config:    config,
		callbacks: callbacks,
		requests:  make(chan request),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.retry = pn532.DefaultRetryConfig()
	if config.Retry != nil {
		retry := *config.Retry
		a.retry = &retry
	}
	if a.retry.Clock == nil {
		a.retry.Clock = a.clock
	}
	a.interval = config.PollInterval
	a.currentInterval.Store(int64(config.PollInterval))
	return a, nil
}

// Start runs the poll loop in a new goroutine. Use Stop or cancel ctx to end it.
func (a *Actor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done, err := a.begin(cancel)
	if err != nil {
		cancel()
		return err
	}

	go func() {
		defer cancel()
		err := a.loop(ctx)
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
		close(done)
	}()
	return nil
}

// Run runs the poll loop on the calling goroutine until ctx is cancelled or
// the device fails beyond recovery. Cancellation is not an error.
func (a *Actor) Run(ctx context.Context) error {
	done, err := a.begin(nil)
	if err != nil {
		return err
	}
	defer close(done)
	return a.loop(ctx)
}

func (a *Actor) begin(cancel context.CancelFunc) (chan struct{}, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	done := make(chan struct{})
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancel = cancel
	a.done = done
	a.err = nil
	return done, nil
}

// Stop stops a loop started with Start and waits for it to exit. It returns
// the error the loop ended with.
func (a *Actor) Stop() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Done returns a channel closed when the loop exits, or nil if it was never
// started.
func (a *Actor) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Do runs fn on the actor goroutine with exclusive use of the device.
func (a *Actor) Do(ctx context.Context, fn func(ctx context.Context, device *pn532.Device) error) error {
	done := a.Done()
	if done == nil || !a.running.Load() {
		return ErrNotRunning
	}
	req := request{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case a.requests <- req:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	// an accepted request is always answered before the loop selects again
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop owns the device until ctx is done or a fatal error cannot be recovered
func (a *Actor) loop(ctx context.Context) error {
	defer a.running.Store(false)

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	a.lastPoll = a.clock.Now()
	a.lastCard = a.lastPoll

	// Perform immediate poll before entering ticker loop for responsive startup
	if err := a.poll(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-a.requests:
			req.done <- a.serve(req)
		case <-ticker.Chan():
			if err := a.poll(ctx); err != nil {
				return err
			}
			a.adjustPollInterval(ticker)
		}
	}
}

func (a *Actor) serve(req request) error {
	if err := req.ctx.Err(); err != nil {
		return err
	}
	return req.fn(req.ctx, a.device)
}

// poll runs one cycle. It returns an error only when the device is gone and
// could not be recovered.
func (a *Actor) poll(ctx context.Context) error {
	defer a.pollCycles.Add(1)

	start := a.clock.Now()
	if a.config.SleepRecovery.DetectSleep(start.Sub(a.lastPoll), a.interval) {
		pn532.Debugf("poll gap of %v, assuming host sleep", start.Sub(a.lastPoll))
		if err := a.recover(ctx, nil); err != nil {
			return err
		}
	}
	a.lastPoll = start

	var card *Card
	err := pn532.RetryWithConfig(ctx, a.retry, func() error {
		var err error
		card, err = a.readCard(ctx)
		return err
	})

	a.lastPollLatency.Store(int64(a.clock.Since(start)))

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil
	case pn532.IsFatal(err):
		a.pollErrors.Add(1)
		pn532.Debugf("poll failed with fatal error: %v", err)
		return a.recover(ctx, err)
	default:
		a.pollErrors.Add(1)
		pn532.Debugf("poll failed: %v", err)
		return nil
	}

	a.handleCard(ctx, card)
	a.lastPoll = a.clock.Now()
	return nil
}

// readCard lists a target and reads its records if it is a new card. A nil
// card means the field is empty.
func (a *Actor) readCard(ctx context.Context) (*Card, error) {
	uid, err := a.detectTarget(ctx)
	if err != nil {
		return nil, err
	}
	if uid == nil {
		return nil, nil //nolint:nilnil // empty field
	}

	card := &Card{UID: uid.UID()}
	if a.state.Present() && tagops.CompareUID(a.state.LastUID, card.UID) {
		return card, nil
	}

	records, err := tagops.ReadRecords(ctx, a.device)
	if err != nil && (pn532.IsRetryable(err) || pn532.IsFatal(err)) {
		return nil, err
	}
	card.Records = records
	card.ReadErr = err
	return card, nil
}

// detectTarget lists one ISO14443A target within PollTimeout. A search that
// times out while ctx is still live means the field is empty; the pending
// InListPassiveTarget is then aborted so the next command starts clean.
func (a *Actor) detectTarget(ctx context.Context) (*pn532.CardUID, error) {
	searchCtx, cancel := context.WithTimeout(ctx, a.config.pollTimeout())
	defer cancel()

	uid, err := a.device.ReadPassiveTarget(searchCtx, pn532.CardTypeISO14443A)
	if err == nil || ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
		return uid, err
	}

	pn532.Debugf("no target within %v, treating field as empty", a.config.pollTimeout())
	if err := a.device.AbortCommand(ctx); err != nil {
		return nil, fmt.Errorf("failed to abort target search: %w", err)
	}
	return nil, nil //nolint:nilnil // empty field
}

func (a *Actor) handleCard(ctx context.Context, card *Card) {
	if card == nil {
		if a.state.Missed(a.config.RemovalPolls) {
			uid := append([]byte(nil), a.state.LastUID...)
			pn532.Debugf("card %s removed", a.state.UIDString())
			a.state.TransitionToIdle()
			if a.callbacks.OnCardRemoved != nil {
				a.callbacks.OnCardRemoved(uid)
			}
		}
		return
	}

	now := a.clock.Now()
	a.lastCard = now
	if !a.state.Seen(card.UID, now) {
		return
	}

	a.cardsDetected.Add(1)
	pn532.Debugf("card %s detected with %d records", a.state.UIDString(), len(card.Records))
	if a.callbacks.OnCard == nil {
		return
	}
	if err := a.callbacks.OnCard(ctx, card); err != nil {
		a.callbackErrors.Add(1)
		pn532.Debugf("card callback failed: %v", err)
	}
}

// recover runs the recoverer. cause is the fatal error that triggered it,
// or nil after a host sleep.
func (a *Actor) recover(ctx context.Context, cause error) error {
	if a.recoverer == nil {
		if cause == nil {
			return nil
		}
		return fmt.Errorf("device lost: %w", cause)
	}
	if err := a.recoverer.AttemptRecovery(ctx); err != nil {
		return fmt.Errorf("device recovery failed: %w", err)
	}
	a.device = a.recoverer.Device()
	a.recoveries.Add(1)
	a.state.TransitionToIdle()
	return nil
}

// adjustPollInterval slows polling down while the field stays empty
func (a *Actor) adjustPollInterval(ticker clockwork.Ticker) {
	interval := a.config.intervalFor(a.clock.Since(a.lastCard))
	if interval == a.interval {
		return
	}
	a.interval = interval
	a.currentInterval.Store(int64(interval))
	ticker.Reset(interval)
}

// Metrics returns current operational metrics
func (a *Actor) Metrics() Metrics {
	return Metrics{
		PollCycles:      a.pollCycles.Load(),
		PollErrors:      a.pollErrors.Load(),
		CardsDetected:   a.cardsDetected.Load(),
		CallbackErrors:  a.callbackErrors.Load(),
		Recoveries:      a.recoveries.Load(),
		LastPollLatency: time.Duration(a.lastPollLatency.Load()),
	}
}

// CurrentPollInterval returns the current adaptive polling interval
func (a *Actor) CurrentPollInterval() time.Duration {
	return time.Duration(a.currentInterval.Load())
}
