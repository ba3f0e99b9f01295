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

// Package transport brings up the USB and NFC stacks and describes the
// pollable objects they produce.
//
// The protocol layers themselves (USB framing, CCID, CTAPHID, ISO 14443 and
// the dispatchers which route requests to applications) are provided by a
// Stack; this package only decides which of them a device gets.
package transport

import (
	"time"

	"github.com/google/keyrunner/internal/mono"
)

// Keepalive is a transport's answer to a poll: whether, and how soon, it
// needs to be polled again in the absence of new traffic.
type Keepalive struct {
	After  time.Duration
	Needed bool
}

// In returns a Keepalive requesting a poll after d.
func In(d time.Duration) Keepalive {
	return Keepalive{After: d, Needed: true}
}

// Interface is the transport an APDU arrived on.
type Interface int

const (
	Contact Interface = iota
	Contactless
)

func (i Interface) String() string {
	if i == Contactless {
		return "contactless"
	}
	return "contact"
}

// UsbClasses is the USB composite device with its CCID and CTAPHID classes.
type UsbClasses interface {
	// Poll services the bus. It reports whether the CCID and CTAPHID classes
	// need keepalives, for instance because a request is still being
	// processed and the host must be told to wait.
	Poll(now mono.Instant) (ccid, ctaphid Keepalive)
	CCIDKeepalive() Keepalive
	CTAPHIDKeepalive() Keepalive
}

// Iso14443 is the contactless transport.
type Iso14443 interface {
	Poll() Keepalive
	Keepalive() Keepalive
}

// ApduApp is an application reachable through APDU dispatch.
type ApduApp interface {
	AID() []byte
}

// CtaphidApp is an application reachable through CTAPHID dispatch.
type CtaphidApp interface {
	Commands() []byte
}

// ApduDispatch routes APDUs from CCID and ISO 14443 to applications.
type ApduDispatch interface {
	// Poll handles at most one request, and reports the interface it
	// answered on.
	Poll(apps []ApduApp) (Interface, bool)
}

// CtaphidDispatch routes CTAPHID messages to applications.
type CtaphidDispatch interface {
	// Poll handles at most one request, and reports whether it answered.
	Poll(apps []CtaphidApp) bool
}

// UsbNfc holds everything the transports need at runtime.
type UsbNfc struct {
	// UsbClasses is nil when the device is powered by an NFC field.
	UsbClasses UsbClasses
	// Iso14443 is nil when NFC is not in use.
	Iso14443        Iso14443
	ApduDispatch    ApduDispatch
	CtaphidDispatch CtaphidDispatch
}
