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

package emu

import (
	"sync"

	"github.com/google/keyrunner/internal/bringup"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/service"
	"github.com/google/keyrunner/internal/transport"
)

// Firmware is the SoC identity and boot ROM.
type Firmware struct {
	mu      sync.Mutex
	bootROM bool
	ID      [16]byte
	Key     []byte
}

// UUID implements bringup.Firmware.
func (f *Firmware) UUID() [16]byte {
	return f.ID
}

// DeviceKey implements bringup.Firmware.
func (f *Firmware) DeviceKey() []byte {
	return f.Key
}

// BootToBootROM implements bringup.Firmware. On the host it just records the
// request.
func (f *Firmware) BootToBootROM() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootROM = true
}

// RebootedToBootROM reports whether BootToBootROM was called.
func (f *Firmware) RebootedToBootROM() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bootROM
}

// Power is the power management unit.
type Power struct {
	mu      sync.Mutex
	latched map[runner.PowerEvent]bool
}

// Latch records e, as the hardware does before raising the power interrupt.
func (p *Power) Latch(e runner.PowerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latched == nil {
		p.latched = make(map[runner.PowerEvent]bool)
	}
	p.latched[e] = true
}

// Latched implements runner.Power.
func (p *Power) Latched(e runner.PowerEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latched[e]
}

// Clear implements runner.Power.
func (p *Power) Clear(e runner.PowerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.latched, e)
}

// Service is a crypto service which only counts its work.
type Service struct {
	mu        sync.Mutex
	p         service.Platform
	processed int
	refreshes int
}

// Process implements service.Service.
func (s *Service) Process() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
}

// UpdateUI implements service.Service.
func (s *Service) UpdateUI() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	s.p.UI.Refresh()
}

// Counts returns the number of Process and UpdateUI calls.
func (s *Service) Counts() (processed, refreshes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.refreshes
}

// ServiceFactory creates Services.
type ServiceFactory struct {
	mu      sync.Mutex
	created *Service
}

// New implements service.Factory.
func (f *ServiceFactory) New(p service.Platform, deviceKey []byte) (service.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = &Service{p: p}
	return f.created, nil
}

// Created returns the last service made, or nil.
func (f *ServiceFactory) Created() *Service {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// App is an application selectable by AID and by CTAPHID command.
type App struct {
	Name string
	aid  []byte
	cmds []byte
}

// AID implements transport.ApduApp.
func (a *App) AID() []byte {
	return a.aid
}

// Commands implements transport.CtaphidApp.
func (a *App) Commands() []byte {
	return a.cmds
}

var (
	fido  = &App{Name: "fido", aid: []byte{0xa0, 0x00, 0x00, 0x06, 0x47, 0x2f, 0x00, 0x01}, cmds: []byte{0x10, 0x03}}
	piv   = &App{Name: "piv", aid: []byte{0xa0, 0x00, 0x00, 0x03, 0x08}}
	admin = &App{Name: "admin", aid: []byte{0xa0, 0x00, 0x00, 0x08, 0x47, 0x00, 0x00, 0x00, 0x01}, cmds: []byte{0x51, 0x53}}
)

// Apps is the application table.
type Apps struct {
	Context bringup.AppContext
	apdu    []transport.ApduApp
	ctaphid []transport.CtaphidApp
}

// ApduApps implements runner.Apps.
func (a *Apps) ApduApps() []transport.ApduApp {
	return a.apdu
}

// CtaphidApps implements runner.Apps.
func (a *Apps) CtaphidApps() []transport.CtaphidApp {
	return a.ctaphid
}

// AppFactory builds the application table.
type AppFactory struct {
	mu      sync.Mutex
	created *Apps
	// Err, if set, fails New.
	Err error
}

// New implements bringup.AppFactory. The admin app is always present, so
// that a degraded device can still be inspected.
func (f *AppFactory) New(c bringup.AppContext) (runner.Apps, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	a := &Apps{Context: c}
	a.apdu = append(a.apdu, admin, fido)
	a.ctaphid = append(a.ctaphid, admin, fido)
	if !c.FieldPowered {
		a.apdu = append(a.apdu, piv)
	}
	f.created = a
	return a, nil
}

// Created returns the last table made, or nil.
func (f *AppFactory) Created() *Apps {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}
