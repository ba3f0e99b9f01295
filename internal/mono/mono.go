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

// Package mono provides the single monotonic millisecond clock which all
// deadlines and re-arm delays are expressed against.
//
// Instants are 32 bit and wrap around roughly every 49.7 days; comparisons
// are done on the signed difference so that callers never need to care.
package mono

import (
	"time"

	"github.com/google/trillian/util/clock"
)

// Instant is a point in time on the monotonic clock, in milliseconds.
type Instant uint32

// Add returns the instant d after i.
// Sub-millisecond remainders are rounded up so that a deadline is never early.
func (i Instant) Add(d time.Duration) Instant {
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return i + Instant(uint32(ms))
}

// Sub returns i-j.
// The result is only meaningful if the two instants are less than ~24 days apart.
func (i Instant) Sub(j Instant) time.Duration {
	return time.Duration(int32(i-j)) * time.Millisecond
}

// Before reports whether i is earlier than j.
func (i Instant) Before(j Instant) bool {
	return int32(i-j) < 0
}

// After reports whether i is later than j.
func (i Instant) After(j Instant) bool {
	return int32(i-j) > 0
}

// Millis returns the raw counter value.
func (i Instant) Millis() uint32 {
	return uint32(i)
}

// Clock reads Instants from a TimeSource.
type Clock struct {
	ts    clock.TimeSource
	epoch time.Time
	base  Instant
}

// New returns a Clock whose zero is the current time of ts.
func New(ts clock.TimeSource) *Clock {
	return NewAt(ts, 0)
}

// NewAt returns a Clock which reads start at the current time of ts.
// This is mostly useful to exercise wraparound.
func NewAt(ts clock.TimeSource, start Instant) *Clock {
	return &Clock{
		ts:    ts,
		epoch: ts.Now(),
		base:  start,
	}
}

// Now returns the current instant.
func (c *Clock) Now() Instant {
	ms := int64(c.ts.Now().Sub(c.epoch) / time.Millisecond)
	return c.base + Instant(uint32(ms))
}

// Since returns the time elapsed since i.
func (c *Clock) Since(i Instant) time.Duration {
	return c.Now().Sub(i)
}
