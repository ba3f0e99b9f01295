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

package runner

import (
	"time"

	"github.com/google/keyrunner/internal/mono"
	"github.com/google/keyrunner/internal/transport"
)

// Apps is the application table.
type Apps interface {
	ApduApps() []transport.ApduApp
	CtaphidApps() []transport.CtaphidApp
}

// SpawnFunc schedules a keepalive to run after d.
type SpawnFunc func(d time.Duration)

// PollDispatchers lets the dispatchers handle at most one request each and
// reports whether that produced traffic for USB and NFC.
func PollDispatchers(apdu transport.ApduDispatch, ctaphid transport.CtaphidDispatch, apps Apps) (usb, nfc bool) {
	if iface, ok := apdu.Poll(apps.ApduApps()); ok {
		switch iface {
		case transport.Contact:
			usb = true
		case transport.Contactless:
			nfc = true
		}
	}
	if ctaphid.Poll(apps.CtaphidApps()) {
		usb = true
	}
	return usb, nfc
}

// PollUSB services the USB classes and schedules whichever keepalives they
// ask for. A nil classes, as on a field powered device, does nothing.
func PollUSB(classes transport.UsbClasses, ccid, ctaphid SpawnFunc, now mono.Instant) {
	if classes == nil {
		return
	}
	c, h := classes.Poll(now)
	maybeSpawn(c, ccid)
	maybeSpawn(h, ctaphid)
}

// PollNFC services the contactless transport.
func PollNFC(iso transport.Iso14443, spawn SpawnFunc) {
	if iso == nil {
		return
	}
	maybeSpawn(iso.Poll(), spawn)
}

// CCIDKeepalive nudges the CCID class and reschedules itself if the class
// still needs it.
func CCIDKeepalive(classes transport.UsbClasses, spawn SpawnFunc) {
	if classes == nil {
		return
	}
	maybeSpawn(classes.CCIDKeepalive(), spawn)
}

// CTAPHIDKeepalive nudges the CTAPHID class and reschedules itself if the
// class still needs it.
func CTAPHIDKeepalive(classes transport.UsbClasses, spawn SpawnFunc) {
	if classes == nil {
		return
	}
	maybeSpawn(classes.CTAPHIDKeepalive(), spawn)
}

// NFCKeepalive nudges the contactless transport and reschedules itself if
// it still needs it.
func NFCKeepalive(iso transport.Iso14443, spawn SpawnFunc) {
	if iso == nil {
		return
	}
	maybeSpawn(iso.Keepalive(), spawn)
}

func maybeSpawn(k transport.Keepalive, spawn SpawnFunc) {
	if k.Needed {
		spawn(k.After)
	}
}
