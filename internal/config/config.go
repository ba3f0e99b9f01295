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

// Package config describes a device profile: the build-time choices which
// the bring-up sequence consults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/keyrunner/internal/version"
	"gopkg.in/yaml.v3"
)

// Flash describes a flash chip.
type Flash struct {
	// Present is false for boards without the chip.
	Present bool `yaml:"present"`
	// Blocks is the size in 512 byte blocks.
	Blocks uint `yaml:"blocks"`
}

// USB describes the device presented to the host.
type USB struct {
	VendorID     uint16 `yaml:"vendor_id"`
	ProductID    uint16 `yaml:"product_id"`
	Manufacturer string `yaml:"manufacturer"`
	Product      string `yaml:"product"`
	AdminClass   bool   `yaml:"admin_class"`
}

// Profile is a device profile.
type Profile struct {
	// FirmwareVersion is the semantic version of the running firmware. It is
	// the candidate for the anti-rollback ratchet.
	FirmwareVersion string `yaml:"firmware_version"`
	// RequireEncryptedStorage makes a missing filesystem key fatal.
	RequireEncryptedStorage bool `yaml:"require_encrypted_storage"`
	// NoEncryptedStorage stores the internal filesystem in the clear.
	NoEncryptedStorage bool `yaml:"no_encrypted_storage"`
	NFCEnabled         bool `yaml:"nfc_enabled"`
	// BootToBootROM enables the three button hold at power on.
	BootToBootROM bool `yaml:"boot_to_bootrom"`
	Provisioner   bool `yaml:"provisioner"`
	// EraseInternalFlash wipes the internal filesystem before mounting.
	EraseInternalFlash bool  `yaml:"erase_internal_flash"`
	InternalFlash      Flash `yaml:"internal_flash"`
	ExternalFlash      Flash `yaml:"external_flash"`
	USB                USB   `yaml:"usb"`
}

// Default returns the profile of a standard production device.
func Default() Profile {
	return Profile{
		FirmwareVersion:         "v1.2.0",
		RequireEncryptedStorage: true,
		NFCEnabled:              true,
		BootToBootROM:           true,
		InternalFlash:           Flash{Present: true, Blocks: 256},
		ExternalFlash:           Flash{Present: true, Blocks: 4096},
		USB: USB{
			VendorID:     0x20a0,
			ProductID:    0x42b2,
			Manufacturer: "Keyrunner",
			Product:      "Keyrunner security key",
		},
	}
}

// Validate checks that the profile is usable.
func (p Profile) Validate() error {
	if p.FirmwareVersion == "" {
		return errors.New("missing field: firmware_version")
	}
	if _, err := version.Parse(p.FirmwareVersion); err != nil {
		return err
	}
	if !p.InternalFlash.Present || p.InternalFlash.Blocks == 0 {
		return errors.New("internal_flash is required")
	}
	if p.ExternalFlash.Present && p.ExternalFlash.Blocks == 0 {
		return errors.New("external_flash is present but has no blocks")
	}
	if p.RequireEncryptedStorage && p.NoEncryptedStorage {
		return errors.New("require_encrypted_storage and no_encrypted_storage are exclusive")
	}
	if p.USB.VendorID == 0 || p.USB.ProductID == 0 {
		return errors.New("missing field: usb vendor_id/product_id")
	}
	return nil
}

// Version returns the encoded firmware version. An empty version encodes as
// zero, which leaves the anti-rollback record alone.
func (p Profile) Version() (uint32, error) {
	if p.FirmwareVersion == "" {
		return 0, nil
	}
	v, err := version.Parse(p.FirmwareVersion)
	if err != nil {
		return 0, fmt.Errorf("firmware_version: %w", err)
	}
	return v, nil
}

// Parse decodes and validates a yaml profile. Fields missing from the
// document keep their Default values; unknown fields are an error.
func Parse(b []byte) (Profile, error) {
	p := Default()
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	if err := d.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// Load reads a profile from a file.
func Load(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(b)
}
