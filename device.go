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

package pn532

import (
	"context"
	"fmt"
	"io"

	"github.com/ZaparooProject/go-pn532-lite/internal/frame"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// BufferSize is the size of the protocol scratch buffer
	BufferSize int
	// UseIRQ asks the PN532 to drive its IRQ pin during Init
	UseIRQ bool
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		BufferSize: frame.DefaultBufferSize,
	}
}

// Option configures a Device.
type Option func(*Device) error

// WithBufferSize sets the size of the protocol scratch buffer.
func WithBufferSize(size int) Option {
	return func(d *Device) error {
		d.config.BufferSize = size
		return nil
	}
}

// WithIRQ makes Init configure the SAM with the IRQ pin enabled.
func WithIRQ() Option {
	return func(d *Device) error {
		d.config.UseIRQ = true
		return nil
	}
}

// Device represents a PN532 NFC reader device
//
// Thread Safety: Device is NOT thread-safe. Every request borrows the single
// protocol buffer, so all methods must be called from one goroutine. The
// polling package provides an actor that serializes access.
type Device struct {
	protocol        *Protocol
	config          *DeviceConfig
	firmwareVersion *FirmwareVersion
}

// New creates a new PN532 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		config: DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	protocol, err := NewProtocol(transport, device.config.BufferSize)
	if err != nil {
		return nil, err
	}
	device.protocol = protocol
	return device, nil
}

// Protocol returns the frame engine used by the device.
func (d *Device) Protocol() *Protocol {
	return d.protocol
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.protocol.Transport()
}

// InitContext checks that a PN532 answers and puts the SAM in normal mode.
func (d *Device) InitContext(ctx context.Context) error {
	version, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get firmware version: %w", err)
	}
	Debugf("found %s (ISO14443A=%t ISO14443B=%t ISO18092=%t)", version,
		version.SupportIso14443a, version.SupportIso14443b, version.SupportIso18092)

	if err := d.SAMConfiguration(ctx, SAMModeNormal, d.config.UseIRQ); err != nil {
		return fmt.Errorf("failed to configure SAM: %w", err)
	}
	return nil
}

// FirmwareVersion returns the version read by the last successful
// GetFirmwareVersion call, or nil.
func (d *Device) FirmwareVersion() *FirmwareVersion {
	return d.firmwareVersion
}

// GetFirmwareVersion reads the IC version and supported protocols.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	version, err := Exchange(ctx, d, GetFirmwareVersionRequest(), FirmwareVersionDecoder{})
	if err != nil {
		return nil, err
	}
	d.firmwareVersion = &version
	return &version, nil
}

// SAMConfiguration sets the SAM mode.
func (d *Device) SAMConfiguration(ctx context.Context, mode SAMMode, useIRQ bool) error {
	_, err := Exchange(ctx, d, SAMConfigurationRequest(mode, useIRQ), UnitDecoder{})
	return err
}

// NTAGPageSize is the size of one NTAG memory page.
const NTAGPageSize = 4

// NTAGReadSize is the number of bytes a single NTAG READ returns.
const NTAGReadSize = 4 * NTAGPageSize

// ReadNTAGPage reads four pages starting at page from the selected target.
// A tag-level failure is reported through DataReadResult.Status.
func (d *Device) ReadNTAGPage(ctx context.Context, page byte) (DataReadResult, error) {
	return Exchange(ctx, d, NTAGReadRequest(page), DataReadDecoder{N: NTAGReadSize})
}

// ReadPassiveTarget waits for a single target of cardType and returns its
// UID. It returns nil when no usable target was reported. The PN532 keeps
// searching until a card appears, so bound the call with ctx.
func (d *Device) ReadPassiveTarget(ctx context.Context, cardType CardType) (*CardUID, error) {
	return Exchange(ctx, d, InListPassiveTargetRequest(cardType), CardUIDDecoder{})
}

// AbortCommand tells the PN532 to drop the command in progress. See
// Protocol.Abort.
func (d *Device) AbortCommand(ctx context.Context) error {
	return d.protocol.Abort(ctx)
}

// Exchange sends req and decodes the response with dec. The response opcode
// must be the request opcode plus one.
func Exchange[T any](ctx context.Context, d *Device, req Request, dec Decoder[T]) (T, error) {
	var out T
	err := d.protocol.Request(ctx, byte(req.Command), req.Data, dec.Len(), func(resp Response) error {
		if resp.Command != req.Command.Response() {
			return fmt.Errorf("%w: %s answered with 0x%02X, want 0x%02X",
				ErrInvalidResponse, req.Command, resp.Command, req.Command.Response())
		}
		v, err := dec.Decode(resp.Payload)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Close closes the transport if it holds a resource.
func (d *Device) Close() error {
	closer, ok := d.protocol.Transport().(io.Closer)
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
