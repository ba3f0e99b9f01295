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

// Package clockpower owns the system clock configuration.
//
// The power source is fixed at reset: when the device is powered only by an
// NFC reader's field it must run slowly to stay within the field's power
// budget, otherwise it runs at full speed. While field powered, a
// DynamicController additionally watches the supply voltage and trades clock
// speed for headroom.
package clockpower

import (
	"fmt"

	"github.com/golang/glog"
)

// System frequencies, in Hz.
const (
	PassiveInitialHz = 4_000_000
	FullHz           = 96_000_000
	MountHz          = 48_000_000
	PassiveRunHz     = 12_000_000
)

// Configurator applies a system clock frequency.
type Configurator interface {
	Configure(hz uint32) error
}

// Source describes what is powering the device.
type Source int

const (
	// External means USB (or battery) power.
	External Source = iota
	// Field means the device is harvesting power from an NFC field.
	Field
)

func (s Source) String() string {
	if s == Field {
		return "nfc-field"
	}
	return "external"
}

// Manager applies the clock checkpoints used during bring-up.
type Manager struct {
	cfg    Configurator
	source Source
	hz     uint32
}

// Initial selects the starting frequency for the given power source.
func Initial(cfg Configurator, source Source) (*Manager, error) {
	m := &Manager{cfg: cfg, source: source}
	hz := uint32(FullHz)
	if source == Field {
		hz = PassiveInitialHz
	}
	if err := m.set(hz); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) set(hz uint32) error {
	if err := m.cfg.Configure(hz); err != nil {
		return fmt.Errorf("clock configuration to %d Hz failed: %w", hz, err)
	}
	glog.V(1).Infof("system clock %d MHz", hz/1_000_000)
	m.hz = hz
	return nil
}

// Source returns the power source this manager was configured for.
func (m *Manager) Source() Source {
	return m.source
}

// Hz returns the current system frequency.
func (m *Manager) Hz() uint32 {
	return m.hz
}

// BoostForMount temporarily raises the clock while the filesystems are
// mounted, which is otherwise painfully slow in field-powered mode.
// It is a no-op when externally powered.
func (m *Manager) BoostForMount() error {
	if m.source != Field {
		return nil
	}
	return m.set(MountHz)
}

// RestoreAfterMount returns to the steady-state field-powered frequency.
// It is a no-op when externally powered.
func (m *Manager) RestoreAfterMount() error {
	if m.source != Field {
		return nil
	}
	return m.set(PassiveRunHz)
}

// release hands the configurator over to a DynamicController.
func (m *Manager) release() (Configurator, uint32) {
	cfg, hz := m.cfg, m.hz
	m.cfg = nil
	return cfg, hz
}
