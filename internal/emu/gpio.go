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

package emu

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/keyrunner/internal/peripheral"
)

// Pin is a GPIO, usable as an input or an output.
type Pin struct {
	mu   sync.Mutex
	low  bool
	sets int
	// Err, if set, fails every output change.
	Err error
}

// IsLow implements peripheral.InputPin.
func (p *Pin) IsLow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.low
}

// Drive sets the level seen by IsLow.
func (p *Pin) Drive(low bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.low = low
}

// SetHigh implements peripheral.OutputPin.
func (p *Pin) SetHigh() error {
	return p.set(false)
}

// SetLow implements peripheral.OutputPin.
func (p *Pin) SetLow() error {
	return p.set(true)
}

func (p *Pin) set(low bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.low = low
	p.sets++
	return nil
}

// Driven reports whether the pin has been used as an output.
func (p *Pin) Driven() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets > 0
}

// LED is the RGB LED.
type LED struct {
	mu      sync.Mutex
	r, g, b uint8
}

// Red implements peripheral.RGB.
func (l *LED) Red(v uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = v
}

// Green implements peripheral.RGB.
func (l *LED) Green(v uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.g = v
}

// Blue implements peripheral.RGB.
func (l *LED) Blue(v uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b = v
}

// Colour returns the current red, green and blue intensities.
func (l *LED) Colour() (r, g, b uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r, l.g, l.b
}

// Buttons are the user presence buttons.
type Buttons struct {
	mu      sync.Mutex
	pressed [3]bool
}

// IsPressed implements peripheral.Buttons.
func (b *Buttons) IsPressed(x peripheral.Button) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(x) < len(b.pressed) && b.pressed[x]
}

// Press holds down the given buttons.
func (b *Buttons) Press(xs ...peripheral.Button) {
	b.setAll(true, xs)
}

// Release lets go of the given buttons.
func (b *Buttons) Release(xs ...peripheral.Button) {
	b.setAll(false, xs)
}

func (b *Buttons) setAll(v bool, xs []peripheral.Button) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, x := range xs {
		b.pressed[x] = v
	}
}

// CompanionAddr is the I2C address of the secure companion.
const CompanionAddr = 0x48

var (
	resync        = []byte{0x5a, 0xc0, 0x00, 0xff, 0xfc}
	resyncAnswer  = []byte{0xa5, 0xe0}
	errNoSuchChip = errors.New("no device acknowledged")
)

// Companion is the secure element on the I2C bus. It only knows RESYNC.
type Companion struct {
	mu      sync.Mutex
	pending bool
	// Broken makes the chip answer RESYNC with garbage.
	Broken bool
}

// Write implements peripheral.I2C.
func (c *Companion) Write(addr uint8, p []byte) error {
	if addr != CompanionAddr {
		return fmt.Errorf("write to %#x: %w", addr, errNoSuchChip)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = bytes.Equal(p, resync)
	return nil
}

// Read implements peripheral.I2C.
func (c *Companion) Read(addr uint8, p []byte) error {
	if addr != CompanionAddr {
		return fmt.Errorf("read from %#x: %w", addr, errNoSuchChip)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range p {
		p[i] = 0xff
	}
	if c.pending && !c.Broken {
		copy(p, resyncAnswer)
	}
	c.pending = false
	return nil
}

// FlashCipher is the on-the-fly flash encryption engine.
type FlashCipher struct {
	mu       sync.Mutex
	disabled bool
	// Key is the filesystem region key; nil if not provisioned.
	Key []byte
}

// DisableRegion2 implements peripheral.FlashCipher.
func (f *FlashCipher) DisableRegion2() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = true
}

// Region2Disabled reports whether DisableRegion2 has been called.
func (f *FlashCipher) Region2Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

// RegionKey implements peripheral.FlashCipher.
func (f *FlashCipher) RegionKey() ([]byte, error) {
	if f.Key == nil {
		return nil, errors.New("region key not provisioned")
	}
	return f.Key, nil
}
