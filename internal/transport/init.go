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

package transport

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/uuid"
)

// UsbBus is the USB device controller.
type UsbBus interface {
	// Enable powers the PHY and attaches to the bus.
	Enable() error
}

// NfcChip is the NFC front-end.
type NfcChip interface {
	// Configure programs the chip's registers for tag emulation.
	Configure() error
}

// USBOptions describes the USB device presented to the host.
type USBOptions struct {
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       uuid.UUID
	// AdminClass adds the vendor management interface.
	AdminClass bool
}

// SerialNumber returns the USB serial number string descriptor.
func (o USBOptions) SerialNumber() string {
	return o.Serial.String()
}

// Stack constructs the protocol layers over the raw transports.
type Stack interface {
	Dispatchers() (ApduDispatch, CtaphidDispatch)
	USB(bus UsbBus, opts USBOptions) (UsbClasses, error)
	NFC(chip NfcChip) (Iso14443, error)
}

// Init builds the transports.
//
// bus is nil when the device is field powered, since the field cannot supply
// a USB device. chip is nil when NFC is not in use. A failure to bring up NFC
// is recorded as status.NFCError and the device continues without it; USB
// failures are returned.
func Init(stack Stack, bus UsbBus, chip NfcChip, opts USBOptions, st *status.Builder) (*UsbNfc, error) {
	u := &UsbNfc{}
	u.ApduDispatch, u.CtaphidDispatch = stack.Dispatchers()

	if chip != nil {
		iso, err := initNFC(stack, chip)
		if err != nil {
			glog.Warningf("NFC unavailable: %v", err)
			st.Insert(status.NFCError)
		} else {
			u.Iso14443 = iso
		}
	}

	if bus != nil {
		if err := bus.Enable(); err != nil {
			return nil, fmt.Errorf("failed to enable USB bus: %w", err)
		}
		classes, err := stack.USB(bus, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create USB classes: %w", err)
		}
		u.UsbClasses = classes
		glog.Infof("USB %04x:%04x serial %s", opts.VendorID, opts.ProductID, opts.SerialNumber())
	}
	return u, nil
}

func initNFC(stack Stack, chip NfcChip) (Iso14443, error) {
	if err := chip.Configure(); err != nil {
		return nil, fmt.Errorf("failed to configure NFC chip: %w", err)
	}
	iso, err := stack.NFC(chip)
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO 14443 transport: %w", err)
	}
	return iso, nil
}
