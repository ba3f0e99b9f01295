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

// Package peripheral describes the raw hardware handles consumed by bring-up,
// and the claim-once registry through which they are handed out.
package peripheral

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrResourceAlreadyTaken is returned when a peripheral is claimed twice.
	ErrResourceAlreadyTaken = errors.New("resource already taken")
	// ErrResourceMissing is returned when a peripheral was never provided.
	ErrResourceMissing = errors.New("resource not present on this board")
)

// Well-known peripheral names.
const (
	NameClocks        = "clocks"
	NameNFCIRQ        = "nfc_irq"
	NameADC           = "adc"
	NameDelayTimer    = "delay_timer"
	NamePerfTimer     = "perf_timer"
	NameRGB           = "rgb"
	NameButtons       = "buttons"
	NamePFR           = "pfr"
	NameSPI           = "spi"
	NameCompanionI2C  = "companion_i2c"
	NameCompanionPwr  = "companion_power"
	NameUSB           = "usb"
	NameRNG           = "rng"
	NameFlashCipher   = "flash_cipher"
	NameInternalFlash = "internal_flash"
	NameFlashCS       = "flash_cs"
	NameFlashPower    = "flash_power"
	NameRTC           = "rtc"
	NamePower         = "power"
)

type slot struct {
	v     any
	taken bool
}

// Registry holds the optional peripherals of a board, each of which may be
// retrieved at most once.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*slot)}
}

// Provide registers v under name.
// It is an error to provide the same name twice.
func (r *Registry) Provide(name string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[name]; ok {
		return fmt.Errorf("peripheral %q provided twice", name)
	}
	r.slots[name] = &slot{v: v}
	return nil
}

// Untaken returns the names of peripherals which have been provided but not
// yet claimed, sorted.
func (r *Registry) Untaken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []string
	for n, s := range r.slots {
		if !s.taken {
			ret = append(ret, n)
		}
	}
	sort.Strings(ret)
	return ret
}

func (r *Registry) take(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrResourceMissing)
	}
	if s.taken {
		return nil, fmt.Errorf("%s: %w", name, ErrResourceAlreadyTaken)
	}
	s.taken = true
	v := s.v
	s.v = nil
	return v, nil
}

// Take claims the peripheral called name.
// Subsequent calls for the same name fail with ErrResourceAlreadyTaken.
func Take[T any](r *Registry, name string) (T, error) {
	var zero T
	v, err := r.take(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("peripheral %q is a %T, want %T", name, v, zero)
	}
	return t, nil
}

// TakeOptional behaves like Take, but a peripheral which the board does not
// have yields the zero value rather than an error.
func TakeOptional[T any](r *Registry, name string) (T, error) {
	t, err := Take[T](r, name)
	if errors.Is(err, ErrResourceMissing) {
		return t, nil
	}
	return t, err
}
