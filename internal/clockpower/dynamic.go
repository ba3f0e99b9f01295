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

package clockpower

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// ErrNotFieldPowered is returned when a DynamicController is requested for an
// externally powered device.
var ErrNotFieldPowered = errors.New("dynamic clock control is only used when field powered")

// VoltageEvent is a latched comparator crossing.
type VoltageEvent int

const (
	// VoltageHigh means the supply rose above the upper threshold.
	VoltageHigh VoltageEvent = iota
	// VoltageLow means the supply fell below the lower threshold.
	VoltageLow
)

// Comparator is an ADC configured as a window comparator on the supply rail.
type Comparator interface {
	// Arm fires an event the next time the supply leaves [lowMV, highMV].
	Arm(lowMV, highMV uint32) error
	// Event returns and clears the latched event, if any.
	Event() (VoltageEvent, bool)
}

// Thresholds is the comparator window, in millivolts.
type Thresholds struct {
	LowMV  uint32
	HighMV uint32
}

// DefaultThresholds keeps the core comfortably above brownout.
var DefaultThresholds = Thresholds{LowMV: 2500, HighMV: 2900}

// ladder lists the frequencies the controller moves between, slowest first.
var ladder = []uint32{PassiveInitialHz, PassiveRunHz, MountHz}

// DynamicController steps the system clock up when the field delivers spare
// power and back down when the supply sags.
type DynamicController struct {
	cfg  Configurator
	cmp  Comparator
	th   Thresholds
	step int
}

// NewDynamicController takes over clock configuration from m.
// m must not be used afterwards.
func NewDynamicController(m *Manager, cmp Comparator, th Thresholds) (*DynamicController, error) {
	if m.Source() != Field {
		return nil, ErrNotFieldPowered
	}
	if th.LowMV >= th.HighMV {
		return nil, fmt.Errorf("invalid comparator window [%d, %d] mV", th.LowMV, th.HighMV)
	}
	cfg, hz := m.release()
	d := &DynamicController{cfg: cfg, cmp: cmp, th: th}
	for i, f := range ladder {
		if f <= hz {
			d.step = i
		}
	}
	return d, nil
}

// Hz returns the current system frequency.
func (d *DynamicController) Hz() uint32 {
	return ladder[d.step]
}

// StartHighVoltageCompare arms the comparator for the first time.
func (d *DynamicController) StartHighVoltageCompare() error {
	return d.cmp.Arm(d.th.LowMV, d.th.HighMV)
}

// Handle services a comparator interrupt.
func (d *DynamicController) Handle() error {
	ev, ok := d.cmp.Event()
	if !ok {
		return nil
	}
	next := d.step
	switch ev {
	case VoltageHigh:
		if next < len(ladder)-1 {
			next++
		}
	case VoltageLow:
		if next > 0 {
			next--
		}
	}
	if next != d.step {
		if err := d.cfg.Configure(ladder[next]); err != nil {
			return fmt.Errorf("failed to reconfigure clock to %d Hz: %w", ladder[next], err)
		}
		glog.V(1).Infof("voltage event %d: clock %d -> %d MHz", ev, ladder[d.step]/1_000_000, ladder[next]/1_000_000)
		d.step = next
	}
	return d.cmp.Arm(d.th.LowMV, d.th.HighMV)
}
