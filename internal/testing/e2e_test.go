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

package testing_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	virt "github.com/ZaparooProject/go-pn532-lite/internal/testing"
	"github.com/ZaparooProject/go-pn532-lite/pkg/ndef"
	"github.com/ZaparooProject/go-pn532-lite/polling"
	"github.com/ZaparooProject/go-pn532-lite/tagops"
)

func newSimulatedDevice(t *testing.T) (*pn532.Device, *virt.SimulatorTransport) {
	t.Helper()
	transport := virt.NewSimulatorTransport(virt.NewVirtualPN532())
	device, err := pn532.New(transport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, transport
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func textOf(t *testing.T, rec ndef.Record) string {
	t.Helper()
	wk, err := rec.WellKnown()
	require.NoError(t, err)
	return wk.String()
}

func TestEndToEnd_InitAndFirmware(t *testing.T) {
	t.Parallel()

	device, transport := newSimulatedDevice(t)
	ctx := testContext(t)

	require.NoError(t, device.InitContext(ctx))
	fw := device.FirmwareVersion()
	require.NotNil(t, fw)
	assert.Equal(t, byte(0x32), fw.IC)
	assert.True(t, fw.SupportIso14443a)
	assert.Equal(t, byte(0x01), transport.Simulator().SAMMode())
}

func TestEndToEnd_ReadNDEF(t *testing.T) {
	t.Parallel()

	for _, newTag := range []func([]byte) *virt.VirtualTag{
		virt.NewVirtualNTAG213, virt.NewVirtualNTAG215, virt.NewVirtualNTAG216,
	} {
		tag := newTag(nil)
		t.Run(tag.Type, func(t *testing.T) {
			t.Parallel()

			device, transport := newSimulatedDevice(t)
			ctx := testContext(t)
			require.NoError(t, tag.SetNDEFText("hello from "+tag.Type))
			transport.Simulator().SetTag(tag)

			ops := tagops.New(device)
			require.NoError(t, ops.DetectTag(ctx))
			assert.Equal(t, tag.UID(), ops.UID())

			records, err := ops.ReadNDEF(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "hello from "+tag.Type, textOf(t, records[0]))

			info, err := ops.Info()
			require.NoError(t, err)
			assert.Equal(t, tag.Type, info.NTAGType)
			assert.Equal(t, tag.UserMemory(), info.UserMemory)
		})
	}
}

func TestEndToEnd_URIRecord(t *testing.T) {
	t.Parallel()

	device, transport := newSimulatedDevice(t)
	tag := virt.NewVirtualNTAG213(nil)
	require.NoError(t, tag.SetNDEFURI("https://zaparoo.org"))
	transport.Simulator().SetTag(tag)

	records, err := tagops.ReadRecords(testContext(t), device)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://zaparoo.org", textOf(t, records[0]))
}

func TestEndToEnd_UnformattedTag(t *testing.T) {
	t.Parallel()

	device, transport := newSimulatedDevice(t)
	tag := virt.NewVirtualNTAG213(nil)
	tag.Erase(0xFF)
	transport.Simulator().SetTag(tag)

	_, err := tagops.ReadRecords(testContext(t), device)
	require.ErrorIs(t, err, ndef.ErrNotFormatted)
}

func TestEndToEnd_EmptyField(t *testing.T) {
	t.Parallel()

	device, _ := newSimulatedDevice(t)
	err := tagops.New(device).DetectTag(testContext(t))
	require.ErrorIs(t, err, tagops.ErrNoTag)
}

func TestEndToEnd_TagRemovedMidRead(t *testing.T) {
	t.Parallel()

	device, transport := newSimulatedDevice(t)
	ctx := testContext(t)
	tag := virt.NewVirtualNTAG213(nil)
	transport.Simulator().SetTag(tag)

	uid, err := device.ReadPassiveTarget(ctx, pn532.CardTypeISO14443A)
	require.NoError(t, err)
	require.NotNil(t, uid)

	tag.Remove()
	result, err := device.ReadNTAGPage(ctx, 4)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, "timeout", pn532.StatusText(result.Status))

	_, err = tagops.ReadMemory(ctx, device)
	var failed *tagops.ReadFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 0, failed.Page)
}

func TestEndToEnd_WireFaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		inject func(*virt.VirtualPN532)
		want   error
		name   string
	}{
		{name: "bad checksum", inject: (*virt.VirtualPN532).InjectChecksumError, want: pn532.ErrBadChecksum},
		{name: "NACK", inject: (*virt.VirtualPN532).InjectNACK, want: pn532.ErrNotAcknowledged},
		{name: "missing ACK", inject: (*virt.VirtualPN532).DropNextACK, want: pn532.ErrNotAcknowledged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, transport := newSimulatedDevice(t)
			ctx := testContext(t)
			tt.inject(transport.Simulator())

			_, err := device.GetFirmwareVersion(ctx)
			require.ErrorIs(t, err, tt.want)

			// a fault never poisons the next command
			transport.Simulator().Reset()
			_, err = device.GetFirmwareVersion(ctx)
			require.NoError(t, err)
		})
	}
}

func TestEndToEnd_ClosedTransport(t *testing.T) {
	t.Parallel()

	device, _ := newSimulatedDevice(t)
	require.NoError(t, device.Close())

	_, err := device.GetFirmwareVersion(testContext(t))
	require.ErrorIs(t, err, pn532.ErrTransportClosed)
}

func TestEndToEnd_Polling(t *testing.T) {
	t.Parallel()

	device, transport := newSimulatedDevice(t)
	tag := virt.NewVirtualNTAG215(nil)
	require.NoError(t, tag.SetNDEFText("polled"))

	cards := make(chan *polling.Card, 4)
	removed := make(chan []byte, 4)
	config := polling.DefaultConfig()
	config.PollInterval = 5 * time.Millisecond
	config.IdleInterval = 0

	actor, err := polling.NewActor(device, config, polling.Callbacks{
		OnCard: func(_ context.Context, card *polling.Card) error {
			cards <- card
			return nil
		},
		OnCardRemoved: func(uid []byte) { removed <- uid },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, actor.Start(ctx))
	defer func() { _ = actor.Stop() }()

	transport.Simulator().SetTag(tag)
	select {
	case card := <-cards:
		require.NoError(t, card.ReadErr)
		assert.Equal(t, tag.UID(), card.UID)
		require.Len(t, card.Records, 1)
		assert.Equal(t, "polled", textOf(t, card.Records[0]))
	case <-time.After(2 * time.Second):
		t.Fatal("card not reported")
	}

	tag.Remove()
	select {
	case uid := <-removed:
		assert.Equal(t, tag.UID(), uid)
	case <-time.After(2 * time.Second):
		t.Fatal("removal not reported")
	}
}

func TestEndToEnd_PollingStopsOnDeviceLoss(t *testing.T) {
	t.Parallel()

	device, transport := newSimulatedDevice(t)
	config := polling.DefaultConfig()
	config.PollInterval = 5 * time.Millisecond
	config.Retry = &pn532.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}

	actor, err := polling.NewActor(device, config, polling.Callbacks{})
	require.NoError(t, err)

	transport.FailNext(syscall.ENODEV)
	err = actor.Run(context.Background())
	require.ErrorIs(t, err, syscall.ENODEV)
}
