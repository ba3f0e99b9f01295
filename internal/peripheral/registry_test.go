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

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type pin bool

func (p pin) IsLow() bool { return bool(p) }

func TestTakeOnce(t *testing.T) {
	r := NewRegistry()
	if err := r.Provide(NameNFCIRQ, pin(true)); err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if err := r.Provide(NameNFCIRQ, pin(false)); err == nil {
		t.Fatal("second Provide succeeded")
	}

	p, err := Take[InputPin](r, NameNFCIRQ)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !p.IsLow() {
		t.Error("got the wrong pin back")
	}
	if _, err := Take[InputPin](r, NameNFCIRQ); !errors.Is(err, ErrResourceAlreadyTaken) {
		t.Errorf("second Take: got %v, want ErrResourceAlreadyTaken", err)
	}
}

func TestTakeErrors(t *testing.T) {
	for _, test := range []struct {
		desc    string
		name    string
		take    func(r *Registry, name string) error
		wantErr error
		wantAny bool
	}{
		{
			desc:    "missing",
			name:    NameRTC,
			take:    func(r *Registry, n string) error { _, err := Take[RTC](r, n); return err },
			wantErr: ErrResourceMissing,
		}, {
			desc: "missing optional",
			name: NameRTC,
			take: func(r *Registry, n string) error { _, err := TakeOptional[RTC](r, n); return err },
		}, {
			desc:    "wrong type",
			name:    NameNFCIRQ,
			take:    func(r *Registry, n string) error { _, err := Take[Timer](r, n); return err },
			wantAny: true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Provide(NameNFCIRQ, pin(false)); err != nil {
				t.Fatalf("Provide: %v", err)
			}
			err := test.take(r, test.name)
			switch {
			case test.wantAny:
				if err == nil {
					t.Error("got nil error")
				}
			case test.wantErr == nil:
				if err != nil {
					t.Errorf("got %v, want nil", err)
				}
			default:
				if !errors.Is(err, test.wantErr) {
					t.Errorf("got %v, want %v", err, test.wantErr)
				}
			}
		})
	}
}

func TestUntaken(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{NameRTC, NameADC, NameNFCIRQ} {
		if err := r.Provide(n, pin(false)); err != nil {
			t.Fatalf("Provide(%q): %v", n, err)
		}
	}
	if _, err := Take[InputPin](r, NameNFCIRQ); err != nil {
		t.Fatalf("Take: %v", err)
	}
	if diff := cmp.Diff(r.Untaken(), []string{NameADC, NameRTC}); diff != "" {
		t.Errorf("Untaken diff: %s", diff)
	}
}
