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

// Package service binds the cryptographic processing service to the
// platform it runs on.
package service

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/storage"
)

// Service is the cryptographic processing engine. Its request handling is
// implemented elsewhere.
type Service interface {
	// Process drains the queue of pending requests.
	Process()
	// UpdateUI pushes the service's state to the user interface.
	UpdateUI()
}

// Platform is everything the service needs from the device.
type Platform struct {
	RNG   io.Reader
	Store *storage.Store
	UI    *UI
	// Doorbell is rung by clients after queueing a request.
	Doorbell *Doorbell
}

// Doorbell signals the task which runs the service. It may be rung before
// the scheduler connects to it; such rings are remembered and delivered on
// Connect.
type Doorbell struct {
	mu     sync.Mutex
	ring   func()
	missed bool
}

// Ring requests that the service be run.
func (d *Doorbell) Ring() {
	d.mu.Lock()
	f := d.ring
	if f == nil {
		d.missed = true
	}
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

// Connect routes rings to f.
func (d *Doorbell) Connect(f func()) {
	d.mu.Lock()
	d.ring = f
	missed := d.missed
	d.missed = false
	d.mu.Unlock()
	if missed {
		f()
	}
}

// Factory creates the Service. deviceKey is the device-unique hardware key.
type Factory interface {
	New(p Platform, deviceKey []byte) (Service, error)
}

// FactoryFunc adapts a function to a Factory.
type FactoryFunc func(p Platform, deviceKey []byte) (Service, error)

// New calls f.
func (f FactoryFunc) New(p Platform, deviceKey []byte) (Service, error) {
	return f(p, deviceKey)
}

// Bind assembles the platform and creates the service on it.
func Bind(rng io.Reader, store *storage.Store, ui *UI, f Factory, deviceKey []byte) (Service, *Platform, error) {
	if rng == nil || store == nil || ui == nil {
		return nil, nil, errors.New("incomplete platform")
	}
	p := Platform{RNG: rng, Store: store, UI: ui, Doorbell: &Doorbell{}}
	s, err := f.New(p, deviceKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	glog.V(1).Info("service bound")
	return s, &p, nil
}
