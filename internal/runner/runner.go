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

// Package runner holds the steady state of the device: the task table run
// by the scheduler, and the idle loop which polls the transports whenever no
// task is ready.
package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/keyrunner/internal/diag"
	"github.com/google/keyrunner/internal/sched"
	"github.com/google/keyrunner/internal/service"
	"github.com/google/keyrunner/internal/transport"
)

// Names of the shared resources, as seen by the lock tracer.
const (
	ResService     = "service"
	ResApps        = "apps"
	ResApdu        = "apdu_dispatch"
	ResCtaphid     = "ctaphid_dispatch"
	ResUsbClasses  = "usb_classes"
	ResContactless = "contactless"
)

// Task priorities.
const (
	PriorityVoltage   sched.Priority = 6
	PriorityButtons   sched.Priority = 5
	PriorityPower     sched.Priority = 5
	PriorityNFC       sched.Priority = 4
	PriorityUSB       sched.Priority = 3
	PriorityKeepalive sched.Priority = 3
	PriorityCrypto    sched.Priority = 2
	PriorityUI        sched.Priority = 1
)

const (
	// UIGrace is how long after boot the first UI tick runs.
	UIGrace = 2500 * time.Millisecond
	// UIPeriod is the UI animation cadence.
	UIPeriod = 125 * time.Millisecond
	// IdleWait bounds how long Run sleeps when nothing is ready.
	IdleWait = 10 * time.Millisecond
)

// NewLockTracer returns a tracer enforcing the lock order used by the tasks:
// the application table before APDU dispatch before CTAPHID dispatch, with
// the USB classes and the contactless transport never nested.
func NewLockTracer() *sched.LockTracer {
	return sched.NewLockTracer([]string{ResApps, ResApdu, ResCtaphid}, ResUsbClasses, ResContactless)
}

// IRQ is a hardware interrupt source.
type IRQ int

const (
	IRQButtons IRQ = iota
	IRQPower
	IRQUSB
	IRQVoltage
)

// PowerEvent is a latched power-supply event.
type PowerEvent int

const (
	USBDetected PowerEvent = iota
	USBPowerReady
	USBRemoved
)

var powerEvents = []struct {
	e     PowerEvent
	trace string
}{
	{USBDetected, "usb+"},
	{USBPowerReady, "usbY"},
	{USBRemoved, "usb-"},
}

// Power is the power management peripheral. Every latched event must be
// cleared or the interrupt fires again.
type Power interface {
	Latched(e PowerEvent) bool
	Clear(e PowerEvent)
}

// Config is what the runner needs from bring-up.
type Config struct {
	Service    service.Service
	Doorbell   *service.Doorbell
	Apps       Apps
	Transports *transport.UsbNfc
	// Power is nil if the board has no power events to acknowledge.
	Power Power
	// Dynamic is only set on field powered devices.
	Dynamic *clockpower.DynamicController
	Trace   *diag.Buffer
	Diag    diag.Flusher
}

// Runner owns the task table and the shared resources.
type Runner struct {
	s *sched.Scheduler

	irqs      map[IRQ]sched.TaskID
	usbTask   sched.TaskID
	crypto    sched.TaskID
	ui        sched.TaskID
	ccidKA    sched.TaskID
	ctaphidKA sched.TaskID
	nfcKA     sched.TaskID

	spawnCCID    SpawnFunc
	spawnCTAPHID SpawnFunc
	spawnNFC     SpawnFunc

	power    Power
	dynamic  *clockpower.DynamicController
	trace    *diag.Buffer
	diag     diag.Flusher
	doorbell *service.Doorbell
	started  bool

	service     *sched.Resource[service.Service]
	apps        *sched.Resource[Apps]
	apdu        *sched.Resource[transport.ApduDispatch]
	ctaphid     *sched.Resource[transport.CtaphidDispatch]
	usbClasses  *sched.Resource[transport.UsbClasses]
	contactless *sched.Resource[transport.Iso14443]
}

// New registers the task table with s. No tasks run until Start.
func New(s *sched.Scheduler, cfg Config) (*Runner, error) {
	switch {
	case cfg.Service == nil:
		return nil, errors.New("no service")
	case cfg.Apps == nil:
		return nil, errors.New("no applications")
	case cfg.Transports == nil || cfg.Transports.ApduDispatch == nil || cfg.Transports.CtaphidDispatch == nil:
		return nil, errors.New("no dispatchers")
	}
	r := &Runner{
		s:        s,
		irqs:     make(map[IRQ]sched.TaskID),
		power:    cfg.Power,
		dynamic:  cfg.Dynamic,
		trace:    cfg.Trace,
		diag:     cfg.Diag,
		doorbell: cfg.Doorbell,
	}

	if r.dynamic != nil {
		r.irqs[IRQVoltage] = s.Register(sched.Task{Name: "voltage", Priority: PriorityVoltage, Kind: sched.Interrupt, Run: r.voltageHandler})
	}
	r.irqs[IRQButtons] = s.Register(sched.Task{Name: "button_irq", Priority: PriorityButtons, Kind: sched.Interrupt, Run: r.buttonHandler})
	r.irqs[IRQPower] = s.Register(sched.Task{Name: "power", Priority: PriorityPower, Kind: sched.Interrupt, Run: r.powerHandler})
	r.nfcKA = s.Register(sched.Task{Name: "nfc_keepalive", Priority: PriorityNFC, Kind: sched.Timer, Run: r.nfcKeepalive})
	r.usbTask = s.Register(sched.Task{Name: "usb", Priority: PriorityUSB, Kind: sched.Interrupt, Run: r.usb})
	r.irqs[IRQUSB] = r.usbTask
	r.ccidKA = s.Register(sched.Task{Name: "ccid_keepalive", Priority: PriorityKeepalive, Kind: sched.Timer, Run: r.ccidKeepalive})
	r.ctaphidKA = s.Register(sched.Task{Name: "ctaphid_keepalive", Priority: PriorityKeepalive, Kind: sched.Timer, Run: r.ctaphidKeepalive})
	r.crypto = s.Register(sched.Task{Name: "crypto", Priority: PriorityCrypto, Kind: sched.Software, Run: r.runService})
	r.ui = s.Register(sched.Task{Name: "ui", Priority: PriorityUI, Kind: sched.Timer, Run: r.uiTick})

	r.spawnCCID = r.spawner(r.ccidKA)
	r.spawnCTAPHID = r.spawner(r.ctaphidKA)
	r.spawnNFC = r.spawner(r.nfcKA)

	t := cfg.Transports
	r.service = sched.NewResource(s, ResService, cfg.Service, r.crypto, r.ui)
	r.apps = sched.NewResource(s, ResApps, cfg.Apps)
	r.apdu = sched.NewResource(s, ResApdu, t.ApduDispatch)
	r.ctaphid = sched.NewResource(s, ResCtaphid, t.CtaphidDispatch)
	r.usbClasses = sched.NewResource(s, ResUsbClasses, t.UsbClasses, r.usbTask, r.ccidKA, r.ctaphidKA)
	r.contactless = sched.NewResource(s, ResContactless, t.Iso14443, r.nfcKA)
	return r, nil
}

// Start arms the first UI tick and connects the service doorbell.
func (r *Runner) Start() error {
	if r.started {
		return errors.New("runner already started")
	}
	r.started = true
	if err := r.s.SpawnAfter(r.ui, UIGrace); err != nil {
		return fmt.Errorf("failed to schedule UI: %w", err)
	}
	if r.doorbell != nil {
		r.doorbell.Connect(r.PendService)
	}
	return nil
}

// Raise signals a hardware interrupt. It is safe to call from any goroutine.
// Sources the device does not have are ignored.
func (r *Runner) Raise(irq IRQ) {
	if id, ok := r.irqs[irq]; ok {
		r.s.Pend(id)
	}
}

// PendService requests a run of the crypto service.
func (r *Runner) PendService() {
	r.s.Pend(r.crypto)
}

func (r *Runner) spawner(id sched.TaskID) SpawnFunc {
	return func(d time.Duration) {
		if err := r.s.SpawnAfter(id, d); err != nil {
			// A spawn already outstanding serves the same purpose.
			glog.V(2).Infof("keepalive: %v", err)
		}
	}
}

func (r *Runner) buttonHandler() {
	r.trace.Tracef("irq buttons")
}

func (r *Runner) powerHandler() {
	if r.power == nil {
		return
	}
	r.trace.Tracef("irq PWR")
	for _, pe := range powerEvents {
		if r.power.Latched(pe.e) {
			r.power.Clear(pe.e)
			r.trace.Tracef("%s", pe.trace)
		}
	}
}

func (r *Runner) voltageHandler() {
	if err := r.dynamic.Handle(); err != nil {
		glog.Warningf("dynamic clock: %v", err)
	}
}

func (r *Runner) usb() {
	r.usbClasses.Lock(func(c *transport.UsbClasses) {
		PollUSB(*c, r.spawnCCID, r.spawnCTAPHID, r.s.Now())
	})
}

func (r *Runner) ccidKeepalive() {
	r.usbClasses.Lock(func(c *transport.UsbClasses) {
		CCIDKeepalive(*c, r.spawnCCID)
	})
}

func (r *Runner) ctaphidKeepalive() {
	r.usbClasses.Lock(func(c *transport.UsbClasses) {
		CTAPHIDKeepalive(*c, r.spawnCTAPHID)
	})
}

func (r *Runner) nfcKeepalive() {
	r.contactless.Lock(func(iso *transport.Iso14443) {
		NFCKeepalive(*iso, r.spawnNFC)
	})
}

func (r *Runner) runService() {
	r.service.Lock(func(s *service.Service) {
		(*s).Process()
	})
}

func (r *Runner) uiTick() {
	r.service.Lock(func(s *service.Service) {
		(*s).UpdateUI()
	})
	if err := r.s.SpawnAfter(r.ui, UIPeriod); err != nil {
		glog.Errorf("ui: %v", err)
	}
}
