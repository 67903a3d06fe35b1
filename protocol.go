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
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-pn532-lite/internal/frame"
)

// ErrInvalidBufferSize is returned for a scratch buffer outside the supported range.
var ErrInvalidBufferSize = errors.New("invalid buffer size")

const defaultTraceSize = 8

// Response is a decoded response frame. Payload aliases the Protocol's
// scratch buffer and is only valid inside the callback it was passed to.
type Response struct {
	Payload []byte
	Command byte
}

// Clone returns a copy of the response that owns its payload.
func (r Response) Clone() Response {
	return Response{
		Command: r.Command,
		Payload: append([]byte(nil), r.Payload...),
	}
}

// Protocol drives the PN532 frame handshake over a Transport using a single
// scratch buffer. It never retries. A Protocol is not safe for concurrent use.
type Protocol struct {
	transport Transport
	trace     *TraceBuffer
	buf       []byte
	ack       [frame.AckLen]byte
}

// NewProtocol creates a Protocol with a scratch buffer of size bytes. A size
// of zero selects frame.DefaultBufferSize.
func NewProtocol(transport Transport, size int) (*Protocol, error) {
	if size == 0 {
		size = frame.DefaultBufferSize
	}
	if size < frame.MinBufferSize || size > frame.MaxBufferSize {
		return nil, fmt.Errorf("%w: %d (want %d-%d)",
			ErrInvalidBufferSize, size, frame.MinBufferSize, frame.MaxBufferSize)
	}
	return &Protocol{
		transport: transport,
		buf:       make([]byte, size),
		trace:     NewTraceBuffer(defaultTraceSize),
	}, nil
}

// Transport returns the underlying transport.
func (p *Protocol) Transport() Transport {
	return p.transport
}

// Capacity returns the size of the scratch buffer.
func (p *Protocol) Capacity() int {
	return len(p.buf)
}

// MaxPayload returns the largest request payload that fits a frame.
func (p *Protocol) MaxPayload() int {
	return len(p.buf) - frame.Reserved
}

// Send writes a command frame and waits for its acknowledgement. It does not
// read a response.
func (p *Protocol) Send(ctx context.Context, cmd byte, payload []byte) error {
	p.trace.Clear()
	if err := p.sendRequest(ctx, cmd, payload); err != nil {
		return p.fail(cmd, err)
	}
	if err := p.waitReady(ctx); err != nil {
		return p.fail(cmd, err)
	}
	if err := p.readAck(ctx); err != nil {
		return p.fail(cmd, err)
	}
	return nil
}

// Abort sends an ACK frame, which makes the PN532 drop the command it is
// processing (user manual section 6.2.1.3). Use it after abandoning a
// Request, for example when its context expired while waiting for the
// response. A response the device had already queued before the abort is
// not discarded: the next Request then reads it as a stale frame and fails
// with a framing error, and the caller retries.
func (p *Protocol) Abort(ctx context.Context) error {
	n := copy(p.buf, frame.AckFrame)
	p.trace.RecordTX(p.buf[:n], "abort")
	tracef("TX %s (abort)", formatHexBytes(p.buf[:n]))
	if err := wrapTransportError("abort", p.transport.Send(ctx, p.buf[:n])); err != nil {
		return p.trace.WrapError(err)
	}
	return nil
}

// Request sends a command, waits for the acknowledgement and reads a response
// carrying responseLen payload bytes. consume receives the validated response;
// its payload must not be retained after consume returns.
func (p *Protocol) Request(
	ctx context.Context, cmd byte, payload []byte, responseLen int, consume func(Response) error,
) error {
	if responseLen < 0 || responseLen+frame.Overhead > len(p.buf) {
		return fmt.Errorf("%w: response of %d bytes exceeds %d byte buffer",
			ErrTooMuchData, responseLen, len(p.buf))
	}

	p.trace.Clear()
	if err := p.sendRequest(ctx, cmd, payload); err != nil {
		return p.fail(cmd, err)
	}
	if err := p.waitReady(ctx); err != nil {
		return p.fail(cmd, err)
	}
	if err := p.readAck(ctx); err != nil {
		return p.fail(cmd, err)
	}
	if err := p.waitReady(ctx); err != nil {
		return p.fail(cmd, err)
	}
	resp, err := p.readResponse(ctx, responseLen)
	if err != nil {
		return p.fail(cmd, err)
	}
	if err := consume(resp); err != nil {
		return p.fail(cmd, err)
	}
	return nil
}

func (p *Protocol) sendRequest(ctx context.Context, cmd byte, payload []byte) error {
	n, err := frame.Build(p.buf, cmd, payload)
	if err != nil {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", err, len(payload), p.MaxPayload())
	}
	p.trace.RecordTX(p.buf[:n], "")
	tracef("TX %s", formatHexBytes(p.buf[:n]))
	return wrapTransportError("send", p.transport.Send(ctx, p.buf[:n]))
}

func (p *Protocol) waitReady(ctx context.Context) error {
	return wrapTransportError("wait ready", p.transport.WaitReady(ctx))
}

func (p *Protocol) readAck(ctx context.Context) error {
	clear(p.ack[:])
	if err := p.transport.Receive(ctx, p.ack[:]); err != nil {
		return wrapTransportError("receive ack", err)
	}
	p.trace.RecordRX(p.ack[:], "ack")
	if !frame.IsAck(p.ack[:]) {
		return fmt.Errorf("%w: got %s", ErrNotAcknowledged, formatHexBytes(p.ack[:]))
	}
	return nil
}

func (p *Protocol) readResponse(ctx context.Context, responseLen int) (Response, error) {
	buf := p.buf[:responseLen+frame.Overhead]
	clear(buf)
	if err := p.transport.Receive(ctx, buf); err != nil {
		return Response{}, wrapTransportError("receive response", err)
	}
	p.trace.RecordRX(buf, "")
	tracef("RX %s", formatHexBytes(buf))

	cmd, payload, err := frame.Parse(buf)
	if err != nil {
		return Response{}, err
	}
	return Response{Command: cmd, Payload: payload}, nil
}

func (p *Protocol) fail(cmd byte, err error) error {
	Debugf("command %s failed: %v", Command(cmd), err)
	return p.trace.WrapError(err)
}
