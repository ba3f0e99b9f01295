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
	"time"

	"github.com/google/keyrunner/internal/mono"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/transport"
)

// KeepaliveInterval is how often busy emulated classes ask to be polled.
const KeepaliveInterval = 30 * time.Millisecond

// USBBus is the USB device controller.
type USBBus struct {
	mu      sync.Mutex
	enabled bool
	// Err, if set, fails Enable.
	Err error
}

// Enable implements transport.UsbBus.
func (b *USBBus) Enable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.enabled = true
	return nil
}

// Enabled reports whether the bus was brought up.
func (b *USBBus) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// NFCChip is the NFC front-end.
type NFCChip struct {
	mu         sync.Mutex
	configured bool
	// Err, if set, fails Configure.
	Err error
}

// Configure implements transport.NfcChip.
func (c *NFCChip) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.configured = true
	return nil
}

// Configured reports whether the chip was programmed.
func (c *NFCChip) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured
}

// busy counts the keepalive rounds a class still wants.
type busy struct {
	mu     sync.Mutex
	rounds int
	polls  int
}

func (b *busy) set(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rounds = n
}

func (b *busy) peek() transport.Keepalive {
	if b.rounds > 0 {
		return transport.In(KeepaliveInterval)
	}
	return transport.Keepalive{}
}

func (b *busy) poll() transport.Keepalive {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	return b.peek()
}

func (b *busy) keepalive() transport.Keepalive {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rounds > 0 {
		b.rounds--
	}
	return b.peek()
}

// UsbClasses is the composite USB device.
type UsbClasses struct {
	ccid    busy
	ctaphid busy
	opts    transport.USBOptions
}

// Busy makes the CCID and CTAPHID classes request the given number of
// keepalive rounds, as they would while waiting on a slow operation.
func (u *UsbClasses) Busy(ccid, ctaphid int) {
	u.ccid.set(ccid)
	u.ctaphid.set(ctaphid)
}

// Poll implements transport.UsbClasses.
func (u *UsbClasses) Poll(now mono.Instant) (ccid, ctaphid transport.Keepalive) {
	return u.ccid.poll(), u.ctaphid.poll()
}

// CCIDKeepalive implements transport.UsbClasses.
func (u *UsbClasses) CCIDKeepalive() transport.Keepalive {
	return u.ccid.keepalive()
}

// CTAPHIDKeepalive implements transport.UsbClasses.
func (u *UsbClasses) CTAPHIDKeepalive() transport.Keepalive {
	return u.ctaphid.keepalive()
}

// Polls returns the number of times the bus has been serviced.
func (u *UsbClasses) Polls() int {
	u.ccid.mu.Lock()
	defer u.ccid.mu.Unlock()
	return u.ccid.polls
}

// Options returns the descriptors the device was enumerated with.
func (u *UsbClasses) Options() transport.USBOptions {
	return u.opts
}

// Contactless is the ISO 14443 transport.
type Contactless struct {
	b busy
}

// Busy makes the transport request n keepalive rounds.
func (c *Contactless) Busy(n int) {
	c.b.set(n)
}

// Poll implements transport.Iso14443.
func (c *Contactless) Poll() transport.Keepalive {
	return c.b.poll()
}

// Keepalive implements transport.Iso14443.
func (c *Contactless) Keepalive() transport.Keepalive {
	return c.b.keepalive()
}

// Polls returns the number of times the transport has been serviced.
func (c *Contactless) Polls() int {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	return c.b.polls
}

// ApduQueue holds APDUs sent by a host or reader.
type ApduQueue struct {
	mu      sync.Mutex
	pending []transport.Interface
	handled int
	// OnRequest, if set, is called for every request handed to an
	// application.
	OnRequest func()
}

// Submit queues an APDU arriving on iface.
func (q *ApduQueue) Submit(iface transport.Interface) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, iface)
}

// Poll implements transport.ApduDispatch.
func (q *ApduQueue) Poll(apps []transport.ApduApp) (transport.Interface, bool) {
	q.mu.Lock()
	if len(q.pending) == 0 || len(apps) == 0 {
		q.mu.Unlock()
		return 0, false
	}
	iface := q.pending[0]
	q.pending = q.pending[1:]
	q.handled++
	hook := q.OnRequest
	q.mu.Unlock()
	if hook != nil {
		hook()
	}
	return iface, true
}

// Handled returns the number of APDUs answered.
func (q *ApduQueue) Handled() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handled
}

// CtaphidQueue holds CTAPHID messages sent by a host.
type CtaphidQueue struct {
	mu        sync.Mutex
	pending   int
	handled   int
	OnRequest func()
}

// Submit queues a message.
func (q *CtaphidQueue) Submit() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending++
}

// Poll implements transport.CtaphidDispatch.
func (q *CtaphidQueue) Poll(apps []transport.CtaphidApp) bool {
	q.mu.Lock()
	if q.pending == 0 || len(apps) == 0 {
		q.mu.Unlock()
		return false
	}
	q.pending--
	q.handled++
	hook := q.OnRequest
	q.mu.Unlock()
	if hook != nil {
		hook()
	}
	return true
}

// Handled returns the number of messages answered.
func (q *CtaphidQueue) Handled() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handled
}

// Stack is the emulated protocol stack.
type Stack struct {
	Apdu    *ApduQueue
	Ctaphid *CtaphidQueue
	Classes *UsbClasses
	ISO     *Contactless
	// USBErr and NFCErr fail creation of the respective layer.
	USBErr error
	NFCErr error
}

// NewStack returns a stack with idle transports.
func NewStack() *Stack {
	return &Stack{
		Apdu:    &ApduQueue{},
		Ctaphid: &CtaphidQueue{},
		Classes: &UsbClasses{},
		ISO:     &Contactless{},
	}
}

// Dispatchers implements transport.Stack.
func (s *Stack) Dispatchers() (transport.ApduDispatch, transport.CtaphidDispatch) {
	return s.Apdu, s.Ctaphid
}

// USB implements transport.Stack.
func (s *Stack) USB(bus transport.UsbBus, opts transport.USBOptions) (transport.UsbClasses, error) {
	if s.USBErr != nil {
		return nil, s.USBErr
	}
	s.Classes.opts = opts
	return s.Classes, nil
}

// NFC implements transport.Stack.
func (s *Stack) NFC(chip transport.NfcChip) (transport.Iso14443, error) {
	if s.NFCErr != nil {
		return nil, s.NFCErr
	}
	return s.ISO, nil
}

// Drivers binds the emulated devices on the SPI bus to the stack.
type Drivers struct {
	stack *Stack
}

// NewDrivers returns drivers serving stack.
func NewDrivers(stack *Stack) *Drivers {
	return &Drivers{stack: stack}
}

// NFC implements bringup.Drivers.
func (d *Drivers) NFC(spi peripheral.SPI, irq peripheral.InputPin) transport.NfcChip {
	if bus, ok := spi.(*SPI); ok && bus.NFC != nil {
		return bus.NFC
	}
	return nil
}

// ExternalFlash implements bringup.Drivers.
func (d *Drivers) ExternalFlash(spi peripheral.SPI, cs peripheral.OutputPin) storage.ExternalFlash {
	if bus, ok := spi.(*SPI); ok && bus.Flash != nil {
		return bus.Flash
	}
	return nil
}

// Stack implements bringup.Drivers.
func (d *Drivers) Stack() transport.Stack {
	return d.stack
}
