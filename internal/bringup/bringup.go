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

// Package bringup takes the device from reset to a running system.
//
// Bring-up is a chain of stages, Stage0 to Stage6, ending in a Runtime. Each
// stage has a single Next method which takes the raw peripherals that step
// needs, and returns the following stage. A stage can only be obtained from
// Start or from the previous stage, so no step can be skipped, and each
// stage can be advanced once: a second Next returns ErrStageConsumed and
// touches nothing.
//
// Errors returned by Next are fatal. The device must halt rather than retry,
// since it is in an undefined security state.
package bringup

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/keyrunner/internal/config"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/service"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/storage/migrate"
	"github.com/google/keyrunner/internal/transport"
	"github.com/google/trillian/monitoring"
)

var (
	// ErrStageConsumed is returned by Next on a stage which has already
	// been advanced.
	ErrStageConsumed = errors.New("bring-up stage already advanced")
	// ErrBootROMRequested is returned if the device was asked to reboot into
	// the boot ROM and the request returned, which only happens off-device.
	ErrBootROMRequested = errors.New("boot to boot ROM requested")
	// ErrCompanionHandshake is returned when the secure companion chip gives
	// an unexpected answer to RESYNC.
	ErrCompanionHandshake = errors.New("unexpected secure companion handshake response")
)

// FatalError is an unrecoverable bring-up failure.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("bring-up %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(stage string, err error) error {
	return &FatalError{Stage: stage, Err: err}
}

const (
	// BootROMHold is how long all three buttons must be held at power on to
	// reboot into the boot ROM.
	BootROMHold = 5 * time.Second
	// PerfTimerPeriod is the span of the bring-up performance timer.
	PerfTimerPeriod = 60 * time.Second

	companionAddr   = 0x48
	companionSettle = 100 * time.Millisecond
	bootROMBlink    = 100 * time.Millisecond
)

var (
	companionResync   = []byte{0x5a, 0xc0, 0x00, 0xff, 0xfc}
	companionResponse = []byte{0xa5, 0xe0}
)

// Firmware is the SoC's boot ROM and identity.
type Firmware interface {
	// UUID returns the SoC's unique ID.
	UUID() [16]byte
	// DeviceKey returns the device-unique hardware key.
	DeviceKey() []byte
	// BootToBootROM reboots into the ROM bootloader. It does not return on
	// the device.
	BootToBootROM()
}

// Drivers constructs the board's peripheral drivers.
type Drivers interface {
	// NFC returns the NFC front-end on spi, interrupting on irq.
	NFC(spi peripheral.SPI, irq peripheral.InputPin) transport.NfcChip
	// ExternalFlash returns the external flash on spi, selected by cs.
	ExternalFlash(spi peripheral.SPI, cs peripheral.OutputPin) storage.ExternalFlash
	// Stack returns the USB and NFC protocol layers.
	Stack() transport.Stack
}

// AppContext is what applications are built from.
type AppContext struct {
	Service   service.Service
	Platform  *service.Platform
	Status    status.InitStatus
	Companion peripheral.I2C
	// FieldPowered is set when running from an NFC field.
	FieldPowered bool
}

// AppFactory creates the application table.
type AppFactory interface {
	New(c AppContext) (runner.Apps, error)
}

// Options are the build-time choices and collaborators of bring-up.
type Options struct {
	// FirmwareVersion is the encoded running version; zero skips the
	// anti-rollback ratchet.
	FirmwareVersion uint32
	// RequireKey makes a missing filesystem encryption key fatal.
	RequireKey bool
	// NoEncryptedStorage keeps the internal filesystem in the clear.
	NoEncryptedStorage bool
	NFCEnabled         bool
	BootToBootROM      bool
	Provisioner        bool
	// EraseInternalFlash wipes the internal filesystem before it is mounted.
	EraseInternalFlash bool

	InternalBlocks         uint
	ExternalFallbackBlocks uint
	USB                    transport.USBOptions

	Drivers    Drivers
	Services   service.Factory
	Apps       AppFactory
	Migrations []migrate.Migration
	// ProbeBackOff paces external flash detection. It defaults to
	// storage.DefaultProbeBackOff.
	ProbeBackOff  func() backoff.BackOff
	Thresholds    clockpower.Thresholds
	MetricFactory monitoring.MetricFactory
}

// OptionsFromProfile fills the build-time choices from a device profile.
// Collaborators are left for the caller.
func OptionsFromProfile(p config.Profile) (Options, error) {
	v, err := p.Version()
	if err != nil {
		return Options{}, err
	}
	return Options{
		FirmwareVersion:        v,
		RequireKey:             p.RequireEncryptedStorage,
		NoEncryptedStorage:     p.NoEncryptedStorage,
		NFCEnabled:             p.NFCEnabled,
		BootToBootROM:          p.BootToBootROM,
		Provisioner:            p.Provisioner,
		EraseInternalFlash:     p.EraseInternalFlash,
		InternalBlocks:         p.InternalFlash.Blocks,
		ExternalFallbackBlocks: p.ExternalFlash.Blocks,
		USB: transport.USBOptions{
			VendorID:     p.USB.VendorID,
			ProductID:    p.USB.ProductID,
			Manufacturer: p.USB.Manufacturer,
			Product:      p.USB.Product,
			AdminClass:   p.USB.AdminClass,
		},
		Thresholds: clockpower.DefaultThresholds,
	}, nil
}

func (o Options) validate() error {
	switch {
	case o.Drivers == nil:
		return errors.New("no drivers")
	case o.Services == nil:
		return errors.New("no service factory")
	case o.Apps == nil:
		return errors.New("no application factory")
	case o.InternalBlocks == 0:
		return errors.New("no internal flash")
	}
	return nil
}

func (o Options) probeBackOff() backoff.BackOff {
	if o.ProbeBackOff == nil {
		return storage.DefaultProbeBackOff()
	}
	return o.ProbeBackOff()
}

// stage guards a single advance.
type stage struct {
	name     string
	consumed bool
}

func (s *stage) consume() error {
	if s.consumed {
		return fmt.Errorf("%s: %w", s.name, ErrStageConsumed)
	}
	s.consumed = true
	return nil
}
