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

package service

import (
	"sync"
	"time"

	"github.com/google/keyrunner/internal/peripheral"
)

// Status is what the device is doing, as shown to the user.
type Status int

const (
	Idle Status = iota
	Processing
	WaitingForUserPresence
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case WaitingForUserPresence:
		return "waiting for user presence"
	case Error:
		return "error"
	}
	return "unknown"
}

// blinkPeriod is the full on/off cycle used while waiting for the user.
const blinkPeriod = 500 * time.Millisecond

// Colour is an RGB LED setting.
type Colour struct{ R, G, B uint8 }

var (
	Off        = Colour{}
	idleColour = Colour{G: 10}
	busyColour = Colour{B: 40}
	waitColour = Colour{R: 40, G: 40, B: 40}
	errColour  = Colour{R: 60}
)

// UI is the user interface sink: an optional RGB LED, optional buttons and
// the RTC used to animate.
//
// The LED and buttons are absent when the device is field powered.
type UI struct {
	rtc         peripheral.RTC
	buttons     peripheral.Buttons
	rgb         peripheral.RGB
	provisioner bool

	mu     sync.Mutex
	status Status
	shown  Colour
}

// NewUI creates the UI. rgb and buttons may be nil.
func NewUI(rtc peripheral.RTC, buttons peripheral.Buttons, rgb peripheral.RGB, provisioner bool) *UI {
	rtc.Reset()
	return &UI{rtc: rtc, buttons: buttons, rgb: rgb, provisioner: provisioner}
}

// SetStatus changes the displayed status; it takes effect on the next Refresh.
func (u *UI) SetStatus(s Status) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = s
}

// Status returns the current status.
func (u *UI) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// UserPresence reports whether any button is pressed. Without buttons the
// user is always considered present.
func (u *UI) UserPresence() bool {
	if u.buttons == nil {
		return true
	}
	for _, b := range []peripheral.Button{peripheral.ButtonA, peripheral.ButtonB, peripheral.ButtonMiddle} {
		if u.buttons.IsPressed(b) {
			return true
		}
	}
	return false
}

// Uptime is the time since the UI was created.
func (u *UI) Uptime() time.Duration {
	return u.rtc.Uptime()
}

// Refresh advances the animation and returns the colour now shown.
func (u *UI) Refresh() Colour {
	u.mu.Lock()
	defer u.mu.Unlock()
	c := u.colourAt(u.rtc.Uptime())
	if u.rgb != nil && c != u.shown {
		u.rgb.Red(c.R)
		u.rgb.Green(c.G)
		u.rgb.Blue(c.B)
	}
	u.shown = c
	return c
}

func (u *UI) colourAt(t time.Duration) Colour {
	switch u.status {
	case Processing:
		return busyColour
	case WaitingForUserPresence:
		if t%blinkPeriod < blinkPeriod/2 {
			return waitColour
		}
		return Off
	case Error:
		return errColour
	}
	if u.provisioner {
		return Colour{R: 10, G: 10}
	}
	return idleColour
}
