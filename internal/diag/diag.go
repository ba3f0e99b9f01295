// Copyright 2026 Google LLC. All Rights Reserved.
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

// Package diag buffers diagnostic trace lines so that tasks can emit them
// without waiting on a slow transport. The idle loop drains the buffer.
package diag

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// DefaultCapacity is the buffer size, in bytes, used on the device.
const DefaultCapacity = 3 * 1024

// Buffer is a bounded queue of trace lines. When full, the oldest lines are
// dropped and counted.
type Buffer struct {
	mu      sync.Mutex
	lines   []string
	size    int
	cap     int
	dropped int
}

// NewBuffer returns a Buffer holding at most capacity bytes of text.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{cap: capacity}
}

// Tracef queues a line. It never blocks on I/O.
func (b *Buffer) Tracef(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if glog.V(2) {
		glog.InfoDepth(1, line)
	}
	if b == nil {
		return
	}
	if len(line) > b.cap {
		line = line[:b.cap]
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.size+len(line) > b.cap && len(b.lines) > 0 {
		b.size -= len(b.lines[0])
		b.lines = b.lines[1:]
		b.dropped++
	}
	b.lines = append(b.lines, line)
	b.size += len(line)
}

// Len returns the number of queued lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Flush writes all queued lines to w, newline terminated, preceded by a note
// of how many lines were lost since the last flush. Lines are removed from
// the buffer even if the write fails.
func (b *Buffer) Flush(w io.Writer) error {
	b.mu.Lock()
	lines, dropped := b.lines, b.dropped
	b.lines, b.size, b.dropped = nil, 0, 0
	b.mu.Unlock()

	if len(lines) == 0 && dropped == 0 {
		return nil
	}
	var sb strings.Builder
	if dropped > 0 {
		fmt.Fprintf(&sb, "[%d lines dropped]\n", dropped)
	}
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Flusher drains a Buffer to a Sink.
type Flusher struct {
	Buffer *Buffer
	Sink   io.Writer
}

// Flush drains the buffer. Write errors are transient and only logged.
func (f Flusher) Flush() {
	if f.Buffer == nil || f.Sink == nil {
		return
	}
	if err := f.Buffer.Flush(f.Sink); err != nil {
		glog.V(2).Infof("diagnostics flush: %v", err)
	}
}

// OpenSerial opens a serial port to use as a Sink.
func OpenSerial(port string, baud int) (io.WriteCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %q: %w", port, err)
	}
	return p, nil
}
