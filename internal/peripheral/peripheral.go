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

package peripheral

import "time"

// InputPin is a GPIO configured as an input with its pull-up enabled.
type InputPin interface {
	IsLow() bool
}

// OutputPin is a GPIO configured as a push-pull output.
type OutputPin interface {
	SetHigh() error
	SetLow() error
}

// Timer is a non-blocking count-down timer.
type Timer interface {
	// Start (re)starts the count-down.
	Start(d time.Duration)
	// Wait returns true once the count-down has elapsed. It never blocks.
	Wait() bool
	// Cancel stops any running count-down.
	Cancel()
	// Elapsed returns the time since the last Start.
	Elapsed() time.Duration
}

// Block busy-waits on t for d.
func Block(t Timer, d time.Duration) {
	t.Start(d)
	for !t.Wait() {
	}
}

// Button identifies one of the user presence buttons.
type Button int

const (
	ButtonA Button = iota
	ButtonB
	ButtonMiddle
)

// Buttons reports the state of the user presence buttons.
type Buttons interface {
	IsPressed(b Button) bool
}

// RGB is a PWM-driven RGB LED; intensities are 0-255.
type RGB interface {
	Red(v uint8)
	Green(v uint8)
	Blue(v uint8)
}

// I2C is a blocking I2C bus master.
type I2C interface {
	Write(addr uint8, p []byte) error
	Read(addr uint8, p []byte) error
}

// SPI is a full-duplex SPI bus master.
type SPI interface {
	Transfer(tx, rx []byte) error
}

// RTC is the low-power real time counter used by the UI.
type RTC interface {
	Reset()
	Uptime() time.Duration
}

// FlashCipher is the inline flash encryption engine.
type FlashCipher interface {
	// DisableRegion2 turns off transparent decryption of the filesystem region;
	// encryption is handled by the storage layer instead.
	DisableRegion2()
	// RegionKey returns the key material provisioned for the filesystem region.
	RegionKey() ([]byte, error)
}
