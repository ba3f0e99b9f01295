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

// Package emu provides host implementations of the board peripherals and
// drivers, so that the firmware can be brought up and run off-device.
//
// Every peripheral is a plain in-memory model. Tests and the emulator binary
// poke at them through their exported methods to simulate the outside world:
// a field appearing, a button press, a host sending a request.
package emu

import (
	"sync"
	"time"

	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/trillian/util/clock"
)

// Clocks records every frequency the system clock is configured to.
type Clocks struct {
	mu      sync.Mutex
	history []uint32
	// Err, if set, fails every Configure.
	Err error
}

// Configure implements clockpower.Configurator.
func (c *Clocks) Configure(hz uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.history = append(c.history, hz)
	return nil
}

// History returns the frequencies configured so far, oldest first.
func (c *Clocks) History() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.history...)
}

// Hz returns the current frequency, or zero if never configured.
func (c *Clocks) Hz() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return 0
	}
	return c.history[len(c.history)-1]
}

// Comparator models the supply rail window comparator.
type Comparator struct {
	mu      sync.Mutex
	low     uint32
	high    uint32
	armed   bool
	latched *clockpower.VoltageEvent
}

// Arm implements clockpower.Comparator.
func (c *Comparator) Arm(lowMV, highMV uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.low, c.high, c.armed = lowMV, highMV, true
	return nil
}

// Event implements clockpower.Comparator.
func (c *Comparator) Event() (clockpower.VoltageEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latched == nil {
		return 0, false
	}
	e := *c.latched
	c.latched = nil
	return e, true
}

// Supply sets the rail to mv. It reports whether that tripped the armed
// comparator, in which case the caller should raise the voltage interrupt.
func (c *Comparator) Supply(mv uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return false
	}
	var e clockpower.VoltageEvent
	switch {
	case mv > c.high:
		e = clockpower.VoltageHigh
	case mv < c.low:
		e = clockpower.VoltageLow
	default:
		return false
	}
	c.armed = false
	c.latched = &e
	return true
}

// Timer is a count-down timer over a TimeSource.
type Timer struct {
	mu       sync.Mutex
	ts       clock.TimeSource
	start    time.Time
	deadline time.Time
	running  bool
}

// NewTimer returns a stopped timer reading ts.
func NewTimer(ts clock.TimeSource) *Timer {
	return &Timer{ts: ts, start: ts.Now()}
}

// Start implements peripheral.Timer.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = t.ts.Now()
	t.deadline = t.start.Add(d)
	t.running = true
}

// Wait implements peripheral.Timer.
func (t *Timer) Wait() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.ts.Now().Before(t.deadline) {
		return false
	}
	t.running = false
	return true
}

// Cancel implements peripheral.Timer.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Elapsed implements peripheral.Timer.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ts.Now().Sub(t.start)
}

// RTC is the real time clock.
type RTC struct {
	mu    sync.Mutex
	ts    clock.TimeSource
	start time.Time
}

// NewRTC returns an RTC reading ts.
func NewRTC(ts clock.TimeSource) *RTC {
	return &RTC{ts: ts, start: ts.Now()}
}

// Reset implements peripheral.RTC.
func (r *RTC) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = r.ts.Now()
}

// Uptime implements peripheral.RTC.
func (r *RTC) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ts.Now().Sub(r.start)
}

// SteppingTimeSource is a fake time source which moves forward by Step every
// time it is read, so that busy-waits on it terminate.
type SteppingTimeSource struct {
	*clock.FakeTimeSource
	Step time.Duration
}

// NewSteppingTimeSource returns a source starting at t.
func NewSteppingTimeSource(t time.Time, step time.Duration) SteppingTimeSource {
	return SteppingTimeSource{FakeTimeSource: clock.NewFake(t), Step: step}
}

// Now returns the current time and then advances it.
func (s SteppingTimeSource) Now() time.Time {
	now := s.FakeTimeSource.Now()
	s.FakeTimeSource.Set(now.Add(s.Step))
	return now
}
