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

//go:build tamago && arm
// +build tamago,arm

package armory

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/transport"
	"github.com/google/keyrunner/internal/version"
	"github.com/google/uuid"
	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
)

// ReservedStart is the first eMMC block of the area holding the version
// record and the internal filesystem, 64MiB into the card.
const ReservedStart = 64 << 20 / storage.BlockSize

var (
	regionKeyDiversifier = []byte("keyrunner filesystem region key")
	deviceKeyDiversifier = []byte("keyrunner device key")
)

// armFreq maps the firmware's clock checkpoints onto the operating points
// the i.MX6UL supports, in MHz.
var armFreq = map[uint32]uint32{
	clockpower.FullHz:           792,
	clockpower.MountHz:          528,
	clockpower.PassiveRunHz:     396,
	clockpower.PassiveInitialHz: 198,
}

// Board holds the Armory's peripherals.
type Board struct {
	internal *MMC
	pfr      *pfr
}

// New brings up the eMMC and the key derivation engine. internalBlocks is
// the size of the internal filesystem.
func New(internalBlocks uint) (*Board, error) {
	if err := usbarmory.MMC.Detect(); err != nil {
		return nil, fmt.Errorf("eMMC not detected: %v", err)
	}
	mem, err := dma.NewRegion(imx6ul.OCRAM_START, imx6ul.OCRAM_SIZE, false)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve key derivation memory: %v", err)
	}
	if imx6ul.DCP == nil {
		return nil, errors.New("no DCP on this SoC")
	}
	imx6ul.DCP.DeriveKeyMemory = mem
	imx6ul.DCP.Init()
	return &Board{
		internal: &MMC{Card: usbarmory.MMC, Start: ReservedStart + 1, Blocks: internalBlocks},
		pfr:      &pfr{dev: &MMC{Card: usbarmory.MMC, Start: ReservedStart, Blocks: 1}},
	}, nil
}

// Provide registers the Armory's peripherals with reg.
func (b *Board) Provide(reg *peripheral.Registry) error {
	for _, p := range []struct {
		name string
		v    any
	}{
		{peripheral.NameClocks, armClocks{}},
		{peripheral.NameNFCIRQ, fixedPin{}},
		{peripheral.NameDelayTimer, &sysTimer{}},
		{peripheral.NamePerfTimer, &sysTimer{}},
		{peripheral.NameRGB, &leds{}},
		{peripheral.NamePFR, b.pfr},
		{peripheral.NameCompanionI2C, companion{}},
		{peripheral.NameCompanionPwr, fixedPin{}},
		{peripheral.NameUSB, usbBus{}},
		{peripheral.NameRNG, rand.Reader},
		{peripheral.NameFlashCipher, dcpCipher{}},
		{peripheral.NameInternalFlash, b.internal},
		{peripheral.NameRTC, &sysRTC{start: time.Now()}},
	} {
		if err := reg.Provide(p.name, p.v); err != nil {
			return err
		}
	}
	return nil
}

// Firmware returns the SoC identity.
func (b *Board) Firmware() Firmware {
	return Firmware{}
}

// armClocks sets the ARM core frequency.
type armClocks struct{}

func (armClocks) Configure(hz uint32) error {
	mhz, ok := armFreq[hz]
	if !ok {
		return fmt.Errorf("no operating point for %d Hz", hz)
	}
	return imx6ul.SetARMFreq(mhz)
}

// fixedPin is a line which is never pulled low, and an output with nothing
// attached.
type fixedPin struct{}

func (fixedPin) IsLow() bool    { return false }
func (fixedPin) SetHigh() error { return nil }
func (fixedPin) SetLow() error  { return nil }

type sysTimer struct {
	mu       sync.Mutex
	start    time.Time
	deadline time.Time
	running  bool
}

func (t *sysTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = time.Now()
	t.deadline = t.start.Add(d)
	t.running = true
}

func (t *sysTimer) Wait() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || time.Now().Before(t.deadline) {
		return false
	}
	t.running = false
	return true
}

func (t *sysTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

func (t *sysTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.start)
}

type sysRTC struct {
	start time.Time
}

func (r *sysRTC) Reset()                { r.start = time.Now() }
func (r *sysRTC) Uptime() time.Duration { return time.Since(r.start) }

// leds drives the white and blue LEDs from an RGB colour: red and green
// light the white LED.
type leds struct {
	mu      sync.Mutex
	r, g, b uint8
}

func (l *leds) Red(v uint8)   { l.set(&l.r, v) }
func (l *leds) Green(v uint8) { l.set(&l.g, v) }
func (l *leds) Blue(v uint8)  { l.set(&l.b, v) }

func (l *leds) set(c *uint8, v uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*c = v
	usbarmory.LED("white", l.r|l.g != 0)
	usbarmory.LED("blue", l.b != 0)
}

// companion is the SE050 on I2C1.
type companion struct{}

func (companion) Write(addr uint8, p []byte) error {
	return imx6ul.I2C1.Write(p, addr, 0, 0)
}

func (companion) Read(addr uint8, p []byte) error {
	b, err := imx6ul.I2C1.Read(addr, 0, 0, len(p))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

type usbBus struct{}

func (usbBus) Enable() error {
	imx6ul.USB1.Init()
	imx6ul.USB1.DeviceMode()
	imx6ul.USB1.Reset()
	return nil
}

// dcpCipher derives the filesystem key from the OTP master key. The Armory
// has no inline flash decryption to turn off.
type dcpCipher struct{}

func (dcpCipher) DisableRegion2() {}

func (dcpCipher) RegionKey() ([]byte, error) {
	k, err := imx6ul.DCP.DeriveKey(regionKeyDiversifier, make([]byte, 16), -1)
	if err != nil {
		return nil, err
	}
	// XTS needs a pair of AES-128 keys.
	k2, err := imx6ul.DCP.DeriveKey(regionKeyDiversifier, k, -1)
	if err != nil {
		return nil, err
	}
	return append(k, k2...), nil
}

// pfr keeps the version record, CBOR encoded, in a single eMMC block.
type pfr struct {
	dev *MMC
}

func (p *pfr) ReadRecord() (version.Record, error) {
	var r version.Record
	b := make([]byte, p.dev.BlockSize())
	if err := p.dev.ReadBlocks(0, b); err != nil {
		return r, err
	}
	// A blank block decodes as nothing, which is the zero record.
	dec := cbor.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&r); err != nil {
		return version.Record{}, nil
	}
	return r, nil
}

func (p *pfr) WriteRecord(r version.Record) error {
	b, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	return p.dev.WriteBlocks(0, b)
}

func (p *pfr) KeyProvisioned() (bool, error) {
	return imx6ul.DCP != nil, nil
}

// Firmware is the i.MX6UL identity and reset.
type Firmware struct{}

// UUID returns a name-based UUID over the SoC unique ID.
func (Firmware) UUID() [16]byte {
	id := imx6ul.UniqueID()
	return uuid.NewSHA1(uuid.NameSpaceOID, id[:])
}

// DeviceKey derives the device-unique key, or returns nil if the DCP
// fails.
func (Firmware) DeviceKey() []byte {
	k, err := imx6ul.DCP.DeriveKey(deviceKeyDiversifier, make([]byte, 16), -1)
	if err != nil {
		return nil
	}
	return k
}

// BootToBootROM resets the SoC. With no boot image selected by the buttons
// the boot ROM falls back to serial download.
func (Firmware) BootToBootROM() {
	imx6ul.Reset()
}

// Drivers has no NFC front-end or external flash to offer.
type Drivers struct {
	S transport.Stack
}

func (Drivers) NFC(peripheral.SPI, peripheral.InputPin) transport.NfcChip { return nil }

func (Drivers) ExternalFlash(peripheral.SPI, peripheral.OutputPin) storage.ExternalFlash {
	return nil
}

func (d Drivers) Stack() transport.Stack { return d.S }
