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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/tagops"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActor_CardDetectionAndRemoval(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setCard(mock, testUID)

	clock := clockwork.NewFakeClock()
	cards := make(chan *Card, 4)
	removed := make(chan []byte, 4)
	actor, err := NewActor(device, testConfig(), Callbacks{
		OnCard: func(_ context.Context, card *Card) error {
			cards <- card
			return nil
		},
		OnCardRemoved: func(uid []byte) {
			removed <- uid
		},
	}, WithClock(clock))
	require.NoError(t, err)
	startActor(t, actor)

	card := receive(t, cards)
	assert.Equal(t, testUID, card.UID)
	require.NoError(t, card.ReadErr)
	require.Len(t, card.Records, 1)
	wk, err := card.Records[0].WellKnown()
	require.NoError(t, err)
	assert.Equal(t, "hi!", wk.Text)
	waitForPolls(t, actor, 1)

	// the same card stays in the field: no new report, no new reads
	reads := mock.GetCallCount(byte(pn532.CmdInDataExchange))
	tick(t, clock, actor)
	tick(t, clock, actor)
	assert.Empty(t, cards)
	assert.Equal(t, reads, mock.GetCallCount(byte(pn532.CmdInDataExchange)))

	setEmptyField(mock)
	tick(t, clock, actor)
	assert.Empty(t, removed, "one empty poll is not a removal")
	tick(t, clock, actor)
	assert.Equal(t, testUID, receive(t, removed))

	setCard(mock, testUID)
	tick(t, clock, actor)
	assert.Equal(t, testUID, receive(t, cards).UID)

	metrics := actor.Metrics()
	assert.Equal(t, int64(2), metrics.CardsDetected)
	assert.Equal(t, int64(0), metrics.PollErrors)
	require.NoError(t, actor.Stop())
}

func TestActor_CardFlickerIsNotRemoval(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setCard(mock, testUID)

	clock := clockwork.NewFakeClock()
	var detected, removals atomic.Int32
	actor, err := NewActor(device, testConfig(), Callbacks{
		OnCard: func(context.Context, *Card) error {
			detected.Add(1)
			return nil
		},
		OnCardRemoved: func([]byte) { removals.Add(1) },
	}, WithClock(clock))
	require.NoError(t, err)
	startActor(t, actor)
	waitForPolls(t, actor, 1)

	setEmptyField(mock)
	tick(t, clock, actor)
	setCard(mock, testUID)
	tick(t, clock, actor)
	setEmptyField(mock)
	tick(t, clock, actor)

	assert.Equal(t, int32(1), detected.Load())
	assert.Equal(t, int32(0), removals.Load())
}

func TestActor_NewCardReplacesOld(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setCard(mock, testUID)

	clock := clockwork.NewFakeClock()
	cards := make(chan *Card, 4)
	actor, err := NewActor(device, testConfig(), Callbacks{
		OnCard: func(_ context.Context, card *Card) error {
			cards <- card
			return nil
		},
	}, WithClock(clock))
	require.NoError(t, err)
	startActor(t, actor)
	receive(t, cards)
	waitForPolls(t, actor, 1)

	other := []byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	setCard(mock, other)
	tick(t, clock, actor)
	assert.Equal(t, other, receive(t, cards).UID)
}

func TestActor_ReadFailureIsReported(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setCard(mock, testUID)
	mock.SetResponse(byte(pn532.CmdInDataExchange), []byte{0x01})

	cards := make(chan *Card, 1)
	actor, err := NewActor(device, testConfig(), Callbacks{
		OnCard: func(_ context.Context, card *Card) error {
			cards <- card
			return nil
		},
	}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	startActor(t, actor)

	card := receive(t, cards)
	var rf *tagops.ReadFailedError
	require.ErrorAs(t, card.ReadErr, &rf)
	assert.Equal(t, byte(0x01), rf.Status)
	assert.Empty(t, card.Records)
}

func TestActor_TransientErrorsAreRetried(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	mock.SetError(byte(pn532.CmdInListPassiveTarget), errors.New("line noise"))

	clock := clockwork.NewFakeClock()
	actor, err := NewActor(device, testConfig(), Callbacks{}, WithClock(clock))
	require.NoError(t, err)
	startActor(t, actor)

	// the backoff between attempts waits on the actor clock, next to the ticker
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	assert.Equal(t, 1, mock.GetCallCount(byte(pn532.CmdInListPassiveTarget)))
	assert.Zero(t, actor.Metrics().PollCycles)

	clock.Advance(time.Millisecond)
	waitForPolls(t, actor, 1)

	assert.Equal(t, 2, mock.GetCallCount(byte(pn532.CmdInListPassiveTarget)))
	assert.Equal(t, int64(1), actor.Metrics().PollErrors)
	assert.NoError(t, actor.Stop())
}

func TestActor_CallbackErrorsAreCounted(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setCard(mock, testUID)

	actor, err := NewActor(device, testConfig(), Callbacks{
		OnCard: func(context.Context, *Card) error { return errors.New("rejected") },
	}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	startActor(t, actor)
	waitForPolls(t, actor, 1)

	metrics := actor.Metrics()
	assert.Equal(t, int64(1), metrics.CallbackErrors)
	assert.Equal(t, int64(1), metrics.CardsDetected)
}

func TestActor_FatalErrorStopsLoop(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	mock.SetError(byte(pn532.CmdInListPassiveTarget), pn532.ErrTransportClosed)

	actor, err := NewActor(device, testConfig(), Callbacks{}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	require.NoError(t, actor.Start(context.Background()))

	select {
	case <-actor.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
	err = actor.Stop()
	require.ErrorIs(t, err, pn532.ErrTransportClosed)
	assert.Contains(t, err.Error(), "device lost")
	assert.Equal(t, 1, mock.GetCallCount(byte(pn532.CmdInListPassiveTarget)), "fatal errors are not retried")

	err = actor.Do(context.Background(), func(context.Context, *pn532.Device) error { return nil })
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestActor_FatalErrorRecoversWithReopen(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	mock.SetError(byte(pn532.CmdInListPassiveTarget), pn532.ErrTransportClosed)
	mock.SetError(byte(pn532.CmdSAMConfiguration), pn532.ErrTransportClosed)

	replacement, replacementMock := createMockDeviceWithTransport(t)
	setCard(replacementMock, testUID)

	clock := clockwork.NewFakeClock()
	recoverer := NewDefaultRecoverer(device, func(context.Context) (*pn532.Device, error) {
		return replacement, nil
	}, time.Millisecond, 1).WithClock(clock)

	cards := make(chan *Card, 1)
	actor, err := NewActor(device, testConfig(), Callbacks{
		OnCard: func(_ context.Context, card *Card) error {
			cards <- card
			return nil
		},
	}, WithClock(clock), WithRecoverer(recoverer))
	require.NoError(t, err)
	startActor(t, actor)
	waitForPolls(t, actor, 1)
	assert.Equal(t, int64(1), actor.Metrics().Recoveries)

	tick(t, clock, actor)
	assert.Equal(t, testUID, receive(t, cards).UID)
	assert.Same(t, replacement, recoverer.Device())
}

func TestActor_SleepTriggersSoftReset(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setEmptyField(mock)

	config := testConfig()
	config.SleepRecovery = DefaultSleepRecoveryConfig()
	clock := clockwork.NewFakeClock()
	recoverer := NewDefaultRecoverer(device, nil, time.Millisecond, 1).WithClock(clock)

	actor, err := NewActor(device, config, Callbacks{}, WithClock(clock), WithRecoverer(recoverer))
	require.NoError(t, err)
	startActor(t, actor)
	waitForPolls(t, actor, 1)

	tick(t, clock, actor)
	assert.Equal(t, int64(0), actor.Metrics().Recoveries)

	before := actor.Metrics().PollCycles
	clock.Advance(5 * time.Second)
	waitForPolls(t, actor, before+1)
	assert.Equal(t, int64(1), actor.Metrics().Recoveries)
	assert.Equal(t, 1, mock.GetCallCount(byte(pn532.CmdSAMConfiguration)))
}

func TestActor_AdaptiveInterval(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setEmptyField(mock)

	config := testConfig()
	config.IdleAfter = 250 * time.Millisecond
	config.IdleInterval = time.Second
	clock := clockwork.NewFakeClock()

	actor, err := NewActor(device, config, Callbacks{}, WithClock(clock))
	require.NoError(t, err)
	startActor(t, actor)
	waitForPolls(t, actor, 1)

	tick(t, clock, actor)
	tick(t, clock, actor)
	assert.Equal(t, 100*time.Millisecond, actor.CurrentPollInterval())

	// the interval is adjusted after the poll completes
	tick(t, clock, actor)
	require.Eventually(t, func() bool {
		return actor.CurrentPollInterval() == time.Second
	}, 2*time.Second, time.Millisecond)

	setCard(mock, testUID)
	tick(t, clock, actor)
	require.Eventually(t, func() bool {
		return actor.CurrentPollInterval() == 100*time.Millisecond
	}, 2*time.Second, time.Millisecond)
}

func TestActor_Do(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setEmptyField(mock)
	mock.SetResponse(byte(pn532.CmdGetFirmwareVersion), []byte{0x32, 0x01, 0x06, 0x07})

	actor, err := NewActor(device, testConfig(), Callbacks{}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	err = actor.Do(context.Background(), func(context.Context, *pn532.Device) error { return nil })
	require.ErrorIs(t, err, ErrNotRunning)

	startActor(t, actor)

	var version *pn532.FirmwareVersion
	err = actor.Do(context.Background(), func(ctx context.Context, d *pn532.Device) error {
		var err error
		version, err = d.GetFirmwareVersion(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "PN532 v1.6", version.String())

	wantErr := errors.New("boom")
	err = actor.Do(context.Background(), func(context.Context, *pn532.Device) error { return wantErr })
	require.ErrorIs(t, err, wantErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = actor.Do(ctx, func(context.Context, *pn532.Device) error { return nil })
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, actor.Stop())
	err = actor.Do(context.Background(), func(context.Context, *pn532.Device) error { return nil })
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestActor_Run(t *testing.T) {
	t.Parallel()
	device, mock := createMockDeviceWithTransport(t)
	setEmptyField(mock)

	actor, err := NewActor(device, testConfig(), Callbacks{}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- actor.Run(ctx) }()
	waitForPolls(t, actor, 1)

	require.ErrorIs(t, actor.Run(ctx), ErrAlreadyRunning)
	require.ErrorIs(t, actor.Start(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, receive(t, result))
	assert.NoError(t, actor.Stop(), "Stop is a no-op for Run")
}

func TestNewActor_InvalidConfig(t *testing.T) {
	t.Parallel()
	device, _ := createMockDeviceWithTransport(t)

	_, err := NewActor(device, &Config{}, Callbacks{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	actor, err := NewActor(device, nil, Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, actor.CurrentPollInterval())
}

func TestActor_SilentSearchIsEmptyField(t *testing.T) {
	t.Parallel()
	mock := pn532.NewMockTransport()
	transport := &searchingTransport{MockTransport: mock}
	device, err := pn532.New(transport)
	require.NoError(t, err)
	setCard(mock, testUID)
	mock.SetResponse(byte(pn532.CmdGetFirmwareVersion), []byte{0x32, 0x01, 0x06, 0x07})

	config := testConfig()
	config.PollInterval = 10 * time.Millisecond
	config.PollTimeout = 20 * time.Millisecond
	cards := make(chan *Card, 4)
	removed := make(chan []byte, 4)
	actor, err := NewActor(device, config, Callbacks{
		OnCard: func(_ context.Context, card *Card) error {
			cards <- card
			return nil
		},
		OnCardRemoved: func(uid []byte) {
			removed <- uid
		},
	})
	require.NoError(t, err)
	startActor(t, actor)
	assert.Equal(t, testUID, receive(t, cards).UID)

	transport.setEmpty(true)
	assert.Equal(t, testUID, receive(t, removed))
	polls := actor.Metrics().PollCycles
	waitForPolls(t, actor, polls+2)
	assert.Zero(t, actor.Metrics().PollErrors, "a silent search is not an error")
	assert.GreaterOrEqual(t, transport.abortCount(), 2, "every abandoned search is aborted")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = actor.Do(ctx, func(ctx context.Context, d *pn532.Device) error {
		_, err := d.GetFirmwareVersion(ctx)
		return err
	})
	require.NoError(t, err, "requests are served between searches")

	transport.setEmpty(false)
	assert.Equal(t, testUID, receive(t, cards).UID)
	require.NoError(t, actor.Stop())
}
