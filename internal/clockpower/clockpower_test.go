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
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	hz   []uint32
	fail bool
}

func (r *recorder) Configure(hz uint32) error {
	if r.fail {
		return errors.New("pll did not lock")
	}
	r.hz = append(r.hz, hz)
	return nil
}

func TestCheckpoints(t *testing.T) {
	for _, test := range []struct {
		desc   string
		source Source
		want   []uint32
	}{
		{
			desc:   "external",
			source: External,
			want:   []uint32{FullHz},
		}, {
			desc:   "field",
			source: Field,
			want:   []uint32{PassiveInitialHz, MountHz, PassiveRunHz},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			r := &recorder{}
			m, err := Initial(r, test.source)
			if err != nil {
				t.Fatalf("Initial: %v", err)
			}
			if err := m.BoostForMount(); err != nil {
				t.Fatalf("BoostForMount: %v", err)
			}
			if err := m.RestoreAfterMount(); err != nil {
				t.Fatalf("RestoreAfterMount: %v", err)
			}
			if diff := cmp.Diff(test.want, r.hz); diff != "" {
				t.Errorf("configured frequencies diff (-want +got):\n%s", diff)
			}
			if got, want := m.Hz(), test.want[len(test.want)-1]; got != want {
				t.Errorf("Hz() = %d, want %d", got, want)
			}
		})
	}
}

func TestInitialFailure(t *testing.T) {
	if _, err := Initial(&recorder{fail: true}, External); err == nil {
		t.Error("Initial succeeded with a failing configurator")
	}
}

type fakeComparator struct {
	armed  int
	events []VoltageEvent
}

func (f *fakeComparator) Arm(lowMV, highMV uint32) error {
	f.armed++
	return nil
}

func (f *fakeComparator) Event() (VoltageEvent, bool) {
	if len(f.events) == 0 {
		return 0, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}

func TestDynamicControllerRequiresField(t *testing.T) {
	m, err := Initial(&recorder{}, External)
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}
	if _, err := NewDynamicController(m, &fakeComparator{}, DefaultThresholds); !errors.Is(err, ErrNotFieldPowered) {
		t.Errorf("got %v, want ErrNotFieldPowered", err)
	}
}

func TestDynamicControllerLadder(t *testing.T) {
	for _, test := range []struct {
		desc   string
		events []VoltageEvent
		wantHz uint32
		want   []uint32
	}{
		{
			desc:   "no event",
			wantHz: PassiveRunHz,
		}, {
			desc:   "step up",
			events: []VoltageEvent{VoltageHigh},
			wantHz: MountHz,
			want:   []uint32{MountHz},
		}, {
			desc:   "saturates at top",
			events: []VoltageEvent{VoltageHigh, VoltageHigh, VoltageHigh},
			wantHz: MountHz,
			want:   []uint32{MountHz},
		}, {
			desc:   "step down twice",
			events: []VoltageEvent{VoltageLow, VoltageLow, VoltageLow},
			wantHz: PassiveInitialHz,
			want:   []uint32{PassiveInitialHz},
		}, {
			desc:   "up then down",
			events: []VoltageEvent{VoltageHigh, VoltageLow},
			wantHz: PassiveRunHz,
			want:   []uint32{MountHz, PassiveRunHz},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			r := &recorder{}
			m, err := Initial(r, Field)
			if err != nil {
				t.Fatalf("Initial: %v", err)
			}
			if err := m.RestoreAfterMount(); err != nil {
				t.Fatalf("RestoreAfterMount: %v", err)
			}
			r.hz = nil

			c := &fakeComparator{events: test.events}
			d, err := NewDynamicController(m, c, DefaultThresholds)
			if err != nil {
				t.Fatalf("NewDynamicController: %v", err)
			}
			if err := d.StartHighVoltageCompare(); err != nil {
				t.Fatalf("StartHighVoltageCompare: %v", err)
			}
			for i := 0; i < len(test.events)+1; i++ {
				if err := d.Handle(); err != nil {
					t.Fatalf("Handle: %v", err)
				}
			}
			if got := d.Hz(); got != test.wantHz {
				t.Errorf("Hz() = %d, want %d", got, test.wantHz)
			}
			if diff := cmp.Diff(test.want, r.hz); diff != "" {
				t.Errorf("configured frequencies diff (-want +got):\n%s", diff)
			}
			if got, want := c.armed, len(test.events)+1; got != want {
				t.Errorf("comparator armed %d times, want %d", got, want)
			}
		})
	}
}
