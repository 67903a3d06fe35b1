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

// Package testing provides a frame level PN532 simulator and virtual NTAG
// tags for exercising the protocol engine and the transport adapters
// without hardware.
//
// VirtualPN532 answers host frames the way the chip does (PN532 User Manual
// section 6.2): an ACK, then a response frame whose opcode is the request
// opcode plus one. Responses queue as whole frames so bus adapters can read
// them one transaction at a time, while Read streams them for serial links.
package testing

import (
	"bytes"
	"errors"

	"github.com/ZaparooProject/go-pn532-lite/internal/frame"
	"github.com/ZaparooProject/go-pn532-lite/internal/syncutil"
)

// Command codes understood by the simulator.
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
)

// Status bytes placed in InDataExchange answers (PN532 User Manual table 13).
const (
	statusOK        = 0x00
	statusTimeout   = 0x01
	statusNAK       = 0x14
	statusNoCommand = 0x27
)

const (
	ntagRead      = 0x30
	brTyISO14443A = 0x00
)

// NACKFrame asks the receiver to retransmit its last frame.
var NACKFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}

var errNoFrame = errors.New("no complete frame")

// VirtualPN532 simulates a PN532 at the frame level. It is safe for
// concurrent use.
type VirtualPN532 struct {
	tag                 *VirtualTag
	lastResponse        []byte
	pending             [][]byte
	commands            []byte
	rx                  bytes.Buffer
	mu                  syncutil.Mutex
	firmware            [4]byte
	samMode             byte
	selected            bool
	injectChecksumError bool
	injectNACK          bool
	dropNextACK         bool
}

// NewVirtualPN532 returns a simulator reporting firmware 1.6 with no tag in
// the field.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{
		firmware: [4]byte{0x32, 0x01, 0x06, 0x07},
	}
}

// Write feeds host bytes to the simulator. Partial frames are buffered until
// the rest arrives, and bytes in front of a start code are skipped.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rx.Write(data)
	for {
		err := v.processFrame()
		if errors.Is(err, errNoFrame) {
			return len(data), nil
		}
	}
}

// Read streams queued frames byte by byte. It returns 0, nil when nothing is
// queued, like a serial port whose read timeout expired.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := 0
	for n < len(buf) && len(v.pending) > 0 {
		c := copy(buf[n:], v.pending[0])
		n += c
		if c == len(v.pending[0]) {
			v.pending = v.pending[1:]
		} else {
			v.pending[0] = v.pending[0][c:]
		}
	}
	return n, nil
}

// ReadFrame pops one queued frame into buf and zero-fills the rest, the way
// a bus read clocks out idle bytes past the end of a frame. It reports
// whether a frame was available.
func (v *VirtualPN532) ReadFrame(buf []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	clear(buf)
	if len(v.pending) == 0 {
		return false
	}
	copy(buf, v.pending[0])
	v.pending = v.pending[1:]
	return true
}

// HasPendingResponse reports whether a frame is waiting to be read.
func (v *VirtualPN532) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending) > 0
}

// SetTag places tag in the field, replacing any previous one. A nil tag
// empties the field.
func (v *VirtualPN532) SetTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tag = tag
	v.selected = false
}

// SetFirmwareVersion sets the answer to GetFirmwareVersion.
func (v *VirtualPN532) SetFirmwareVersion(ic, ver, rev, support byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = [4]byte{ic, ver, rev, support}
}

// InjectChecksumError corrupts the data checksum of the next response.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// InjectNACK answers the next command with a NACK and drops it.
func (v *VirtualPN532) InjectNACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectNACK = true
}

// DropNextACK answers the next command without acknowledging it first.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// SAMMode returns the mode set by the last SAMConfiguration, or zero.
func (v *VirtualPN532) SAMMode() byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.samMode
}

// Commands returns the opcodes of every command received so far.
func (v *VirtualPN532) Commands() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.commands...)
}

// CommandCount returns how many times cmd was received.
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Count(v.commands, []byte{cmd})
}

// Reset drops buffered data, queued frames and pending injections.
func (v *VirtualPN532) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rx.Reset()
	v.pending = nil
	v.lastResponse = nil
	v.commands = nil
	v.samMode = 0
	v.selected = false
	v.injectChecksumError = false
	v.injectNACK = false
	v.dropNextACK = false
}

// processFrame consumes one frame from the receive buffer. It returns
// errNoFrame when the buffer holds no complete frame.
func (v *VirtualPN532) processFrame() error {
	data := v.rx.Bytes()
	start := bytes.Index(data, []byte{0x00, 0xFF})
	if start < 0 {
		// keep a trailing zero that may begin a start code
		if n := len(data); n > 0 && data[n-1] == 0x00 {
			v.rx.Next(n - 1)
		} else {
			v.rx.Reset()
		}
		return errNoFrame
	}
	if start > 0 {
		v.rx.Next(start)
		data = v.rx.Bytes()
	}
	if len(data) < 4 {
		return errNoFrame
	}

	length, lcs := data[2], data[3]
	switch {
	case length == 0x00 && lcs == 0xFF:
		// host ACK aborts the current command; every command here completes
		// before its response is queued, so there is nothing to drop
		v.rx.Next(min(len(data), 5))
		return nil
	case length == 0xFF && lcs == 0x00:
		// host NACK
		v.rx.Next(min(len(data), 5))
		if v.lastResponse != nil {
			v.pending = append(v.pending, v.lastResponse)
		}
		return nil
	case length+lcs != 0 || length < 2:
		v.rx.Next(2)
		v.pending = append(v.pending, NACKFrame)
		return nil
	}

	total := 2 + 2 + int(length) + 2
	if len(data) < total {
		return errNoFrame
	}
	body := data[4 : 4+int(length)]
	dcs := data[4+int(length)]
	if frame.Checksum(body) != dcs || body[0] != frame.HostToPn532 {
		v.rx.Next(total)
		v.pending = append(v.pending, NACKFrame)
		return nil
	}

	cmd := body[1]
	params := append([]byte(nil), body[2:]...)
	v.rx.Next(total)
	v.dispatch(cmd, params)
	return nil
}

func (v *VirtualPN532) dispatch(cmd byte, params []byte) {
	v.commands = append(v.commands, cmd)

	if v.injectNACK {
		v.injectNACK = false
		v.pending = append(v.pending, NACKFrame)
		return
	}
	if v.dropNextACK {
		v.dropNextACK = false
	} else {
		v.pending = append(v.pending, frame.AckFrame)
	}

	var (
		answer []byte
		ok     bool
	)
	switch cmd {
	case cmdGetFirmwareVersion:
		answer, ok = v.firmware[:], true
	case cmdSAMConfiguration:
		answer, ok = v.handleSAMConfiguration(params)
	case cmdInListPassiveTarget:
		answer, ok = v.handleInListPassiveTarget(params)
	case cmdInDataExchange:
		answer, ok = v.handleInDataExchange(params)
	}
	if !ok {
		v.lastResponse = frame.ErrorFrame
		v.pending = append(v.pending, frame.ErrorFrame)
		return
	}
	v.respond(cmd+1, answer)
}

func (v *VirtualPN532) respond(code byte, payload []byte) {
	buf := make([]byte, len(payload)+frame.Reserved)
	n, err := frame.BuildResponse(buf, code, payload)
	if err != nil {
		v.pending = append(v.pending, frame.ErrorFrame)
		return
	}
	out := buf[:n]
	if v.injectChecksumError {
		v.injectChecksumError = false
		out[n-2] ^= 0xFF
	}
	v.lastResponse = out
	v.pending = append(v.pending, out)
}

// handleSAMConfiguration accepts modes 1 to 4 (section 7.2.10).
func (v *VirtualPN532) handleSAMConfiguration(params []byte) ([]byte, bool) {
	if len(params) < 1 || params[0] < 0x01 || params[0] > 0x04 {
		return nil, false
	}
	v.samMode = params[0]
	return nil, true
}

// handleInListPassiveTarget reports the tag in the field as target 1
// (section 7.3.5). Only 106 kbps type A is simulated.
func (v *VirtualPN532) handleInListPassiveTarget(params []byte) ([]byte, bool) {
	if len(params) < 2 || params[0] == 0 || params[0] > 2 {
		return nil, false
	}
	v.selected = false
	if params[1] != brTyISO14443A || v.tag == nil || !v.tag.Present() {
		return []byte{0x00}, true
	}

	v.selected = true
	uid := v.tag.UID()
	answer := []byte{0x01, 0x01, 0x44, 0x00, 0x00, byte(len(uid))}
	return append(answer, uid...), true
}

// handleInDataExchange forwards a tag command to the selected target
// (section 7.3.8). Only the NTAG READ command is simulated.
func (v *VirtualPN532) handleInDataExchange(params []byte) ([]byte, bool) {
	if len(params) < 2 {
		return nil, false
	}
	if !v.selected || params[0] != 0x01 || v.tag == nil {
		return []byte{statusNoCommand}, true
	}
	if !v.tag.Present() {
		return []byte{statusTimeout}, true
	}

	tagCmd := params[1:]
	if tagCmd[0] != ntagRead || len(tagCmd) < 2 {
		return []byte{statusNoCommand}, true
	}
	data, err := v.tag.ReadPages(int(tagCmd[1]))
	if err != nil {
		return []byte{statusNAK}, true
	}
	return append([]byte{statusOK}, data...), true
}
