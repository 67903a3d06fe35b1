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
	"bytes"
	"encoding/hex"
	"time"
)

// CardDetectionState represents the finite state machine for card detection
type CardDetectionState int

const (
	StateIdle CardDetectionState = iota
	StateTagDetected
	StateMissing
)

func (s CardDetectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTagDetected:
		return "detected"
	case StateMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// CardState tracks the card in the field across poll cycles
type CardState struct {
	LastSeenTime   time.Time
	LastUID        []byte
	MissedPolls    int
	DetectionState CardDetectionState
}

// Seen records a poll that found uid. It returns true when uid is a
// different card than the one already tracked.
func (cs *CardState) Seen(uid []byte, now time.Time) bool {
	changed := cs.DetectionState == StateIdle || !bytes.Equal(cs.LastUID, uid)
	cs.DetectionState = StateTagDetected
	cs.LastUID = append(cs.LastUID[:0], uid...)
	cs.LastSeenTime = now
	cs.MissedPolls = 0
	return changed
}

// Missed records an empty poll. It returns true when the tracked card has
// now been missing for removalPolls consecutive polls.
func (cs *CardState) Missed(removalPolls int) bool {
	if cs.DetectionState == StateIdle {
		return false
	}
	cs.MissedPolls++
	if cs.MissedPolls < removalPolls {
		cs.DetectionState = StateMissing
		return false
	}
	return true
}

// TransitionToIdle resets to idle state
func (cs *CardState) TransitionToIdle() {
	cs.DetectionState = StateIdle
	cs.LastUID = nil
	cs.MissedPolls = 0
}

// Present reports whether a card is being tracked
func (cs *CardState) Present() bool {
	return cs.DetectionState != StateIdle
}

// UIDString returns the tracked UID in hex
func (cs *CardState) UIDString() string {
	return hex.EncodeToString(cs.LastUID)
}
