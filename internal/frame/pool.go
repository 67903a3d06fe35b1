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

package frame

import "sync"

// BufferPool manages reusable byte slices for the transport adapters, which
// need short-lived copies for bit reversal and status byte stripping.
type BufferPool struct {
	// Small buffers for ACK and status processing (1-16 bytes)
	smallPool sync.Pool
	// Frame buffers for complete frames plus a transport prefix byte
	framePool sync.Pool
}

// Size thresholds for buffer categories
const (
	SmallBufferSize = 16
	FrameBufferSize = MaxBufferSize + 1
)

var defaultPool = NewBufferPool()

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		smallPool: sync.Pool{
			New: func() any {
				buf := make([]byte, SmallBufferSize)
				return &buf
			},
		},
		framePool: sync.Pool{
			New: func() any {
				buf := make([]byte, FrameBufferSize)
				return &buf
			},
		},
	}
}

// GetBuffer acquires a buffer of exactly size bytes.
// The returned buffer should be returned via PutBuffer when done
func (p *BufferPool) GetBuffer(size int) []byte {
	switch {
	case size <= SmallBufferSize:
		bufPtr, ok := p.smallPool.Get().(*[]byte)
		if !ok {
			return make([]byte, size)
		}
		return (*bufPtr)[:size]
	case size <= FrameBufferSize:
		bufPtr, ok := p.framePool.Get().(*[]byte)
		if !ok {
			return make([]byte, size)
		}
		return (*bufPtr)[:size]
	default:
		// oversized requests bypass the pool
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool for reuse.
// The buffer is cleared and must not be used after this call.
func (p *BufferPool) PutBuffer(buf []byte) {
	if buf == nil {
		return
	}
	clear(buf[:cap(buf)])

	switch cap(buf) {
	case SmallBufferSize:
		full := buf[:SmallBufferSize]
		p.smallPool.Put(&full)
	case FrameBufferSize:
		full := buf[:FrameBufferSize]
		p.framePool.Put(&full)
	default:
		return
	}
}

// GetBuffer acquires a buffer from the default pool
func GetBuffer(size int) []byte {
	return defaultPool.GetBuffer(size)
}

// PutBuffer returns a buffer to the default pool
func PutBuffer(buf []byte) {
	defaultPool.PutBuffer(buf)
}
