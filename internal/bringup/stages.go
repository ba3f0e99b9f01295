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

package bringup

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/service"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/storage/encrypted"
	"github.com/google/keyrunner/internal/storage/migrate"
	"github.com/google/keyrunner/internal/storage/slots"
	"github.com/google/keyrunner/internal/transport"
	"github.com/google/keyrunner/internal/version"
	"github.com/google/uuid"
)

// state is carried from stage to stage. Fields are cleared once the
// peripheral they hold has been handed on.
type state struct {
	opts Options
	fw   Firmware
	st   status.Builder
	uuid uuid.UUID

	clocks *clockpower.Manager
	nfcIRQ peripheral.InputPin

	adc        clockpower.Comparator
	delay      peripheral.Timer
	perf       peripheral.Timer
	rgb        peripheral.RGB
	buttons    peripheral.Buttons
	oldVersion uint32

	companion peripheral.I2C
	usbNfc    *transport.UsbNfc
	spi       peripheral.SPI

	rng      io.Reader
	internal slots.BlockReaderWriter

	store *storage.Store

	service  service.Service
	platform *service.Platform
}

func (s *state) passive() bool {
	return s.clocks.Source() == clockpower.Field
}

func (s *state) elapsedMS() int64 {
	return s.perf.Elapsed().Milliseconds()
}

// Start begins bring-up.
func Start(fw Firmware, opts Options) (*Stage0, error) {
	if err := opts.validate(); err != nil {
		return nil, fatal("start", err)
	}
	once.Do(func() { setupMetrics(opts.MetricFactory) })
	return &Stage0{stage: stage{name: "stage0"}, s: &state{opts: opts, fw: fw}}, nil
}

// Stage0 decides how the device is powered.
type Stage0 struct {
	stage
	s *state
}

// Next samples the NFC interrupt line, which an NFC field holds low, and
// configures the system clock to suit the power source.
func (s0 *Stage0) Next(clocks clockpower.Configurator, nfcIRQ peripheral.InputPin) (*Stage1, error) {
	if err := s0.consume(); err != nil {
		return nil, err
	}
	s := s0.s
	if clocks == nil || nfcIRQ == nil {
		return nil, fatal(s0.name, errors.New("missing clock configurator or NFC interrupt line"))
	}
	s.uuid = uuid.UUID(s.fw.UUID())
	source := clockpower.External
	if nfcIRQ.IsLow() {
		source = clockpower.Field
	}
	m, err := clockpower.Initial(clocks, source)
	if err != nil {
		return nil, fatal(s0.name, err)
	}
	s.clocks, s.nfcIRQ = m, nfcIRQ
	glog.Infof("device %s powered by %s", s.uuid, source)
	stagesDone.Inc(s0.name)
	return &Stage1{stage: stage{name: "stage1"}, s: s}, nil
}

// Stage1Inputs are the peripherals consumed by Stage1.
type Stage1Inputs struct {
	// ADC is configured as the supply comparator. It is only used when field
	// powered, and may be nil otherwise.
	ADC        clockpower.Comparator
	DelayTimer peripheral.Timer
	PerfTimer  peripheral.Timer
	// RGB and Buttons are nil on boards without them.
	RGB     peripheral.RGB
	Buttons peripheral.Buttons
	PFR     version.PFR
}

// Stage1 brings up the basic peripherals and checks the firmware version.
type Stage1 struct {
	stage
	s *state
}

// Next starts the timers, validates the anti-rollback record and, if
// requested, checks for the boot ROM button hold.
func (s1 *Stage1) Next(in Stage1Inputs) (*Stage2, error) {
	if err := s1.consume(); err != nil {
		return nil, err
	}
	s := s1.s
	if in.DelayTimer == nil || in.PerfTimer == nil || in.PFR == nil {
		return nil, fatal(s1.name, errors.New("missing timer or protected flash region"))
	}
	s.adc = in.ADC
	s.delay, s.perf = in.DelayTimer, in.PerfTimer
	s.perf.Start(PerfTimerPeriod)
	s.rgb = in.RGB
	// The buttons draw too much to be used from the field.
	if !s.passive() {
		s.buttons = in.Buttons
	}

	requireKey := s.opts.RequireKey && !s.opts.NoEncryptedStorage
	old, err := version.NewGuard(in.PFR).Validate(s.opts.FirmwareVersion, requireKey)
	if err != nil {
		return nil, fatal(s1.name, err)
	}
	s.oldVersion = old

	if s.opts.BootToBootROM && s.buttons != nil {
		glog.Infof("bootrom request start %d ms", s.elapsedMS())
		if bootROMRequested(s.buttons, s.delay) {
			if s.rgb != nil {
				s.rgb.Red(200)
				s.rgb.Green(200)
				s.rgb.Blue(0)
			}
			peripheral.Block(s.delay, bootROMBlink)
			s.fw.BootToBootROM()
			return nil, ErrBootROMRequested
		}
	}
	stagesDone.Inc(s1.name)
	return &Stage2{stage: stage{name: "stage2"}, s: s}, nil
}

// bootROMRequested reports whether all three buttons are held for
// BootROMHold.
func bootROMRequested(b peripheral.Buttons, t peripheral.Timer) bool {
	t.Start(BootROMHold)
	for b.IsPressed(peripheral.ButtonA) && b.IsPressed(peripheral.ButtonB) && b.IsPressed(peripheral.ButtonMiddle) {
		if t.Wait() {
			return true
		}
	}
	t.Cancel()
	return false
}

// Stage2Inputs are the peripherals consumed by Stage2.
type Stage2Inputs struct {
	CompanionI2C   peripheral.I2C
	CompanionPower peripheral.OutputPin
	// SPI is shared between the NFC front-end and the external flash; only
	// one of them gets it. Nil on boards with neither.
	SPI peripheral.SPI
	// USB is ignored when field powered.
	USB transport.UsbBus
}

// Stage2 checks the secure companion and brings up the transports.
type Stage2 struct {
	stage
	s *state
}

// Next performs the secure companion handshake, decides who gets the SPI
// bus and initialises USB and NFC.
//
// NFC is only brought up when field powered, or on provisioner builds. Doing
// so on an externally powered production device is not supported.
func (s2 *Stage2) Next(in Stage2Inputs) (*Stage3, error) {
	if err := s2.consume(); err != nil {
		return nil, err
	}
	s := s2.s
	if in.CompanionI2C == nil || in.CompanionPower == nil {
		return nil, fatal(s2.name, errors.New("no secure companion"))
	}
	if err := s.companionHandshake(in.CompanionI2C, in.CompanionPower); err != nil {
		return nil, fatal(s2.name, err)
	}
	s.companion = in.CompanionI2C

	useNFC := s.opts.NFCEnabled && (s.opts.Provisioner || s.passive()) && in.SPI != nil
	var chip transport.NfcChip
	if useNFC {
		chip = s.opts.Drivers.NFC(in.SPI, s.nfcIRQ)
		s.nfcIRQ = nil
	} else {
		s.spi = in.SPI
	}

	var bus transport.UsbBus
	if !s.passive() {
		bus = in.USB
	}
	opts := s.opts.USB
	opts.Serial = s.uuid
	u, err := transport.Init(s.opts.Drivers.Stack(), bus, chip, opts, &s.st)
	if err != nil {
		return nil, fatal(s2.name, err)
	}
	s.usbNfc = u
	stagesDone.Inc(s2.name)
	return &Stage3{stage: stage{name: "stage3"}, s: s}, nil
}

func (s *state) companionHandshake(i2c peripheral.I2C, power peripheral.OutputPin) error {
	if err := power.SetHigh(); err != nil {
		return fmt.Errorf("failed to power secure companion: %w", err)
	}
	peripheral.Block(s.delay, companionSettle)
	if err := i2c.Write(companionAddr, companionResync); err != nil {
		return fmt.Errorf("failed to send RESYNC: %w", err)
	}
	peripheral.Block(s.delay, companionSettle)
	resp := make([]byte, len(companionResponse))
	if err := i2c.Read(companionAddr, resp); err != nil {
		return fmt.Errorf("failed to read RESYNC response: %w", err)
	}
	if !bytes.Equal(resp, companionResponse) {
		return fmt.Errorf("%w: % x", ErrCompanionHandshake, resp)
	}
	glog.Info("hardware checks successful")
	return nil
}

// Stage3 prepares the internal flash.
type Stage3 struct {
	stage
	s *state
}

// Next enables the RNG and wraps the internal flash, encrypting it with the
// filesystem region key unless encrypted storage is disabled.
func (s3 *Stage3) Next(rng io.Reader, cipher peripheral.FlashCipher, flash slots.BlockReaderWriter) (*Stage4, error) {
	if err := s3.consume(); err != nil {
		return nil, err
	}
	s := s3.s
	glog.Info("making flash")
	if rng == nil || cipher == nil || flash == nil {
		return nil, fatal(s3.name, errors.New("missing RNG, flash cipher or internal flash"))
	}
	cipher.DisableRegion2()
	s.rng = rng

	dev := flash
	if !s.opts.NoEncryptedStorage {
		key, err := cipher.RegionKey()
		if err != nil {
			return nil, fatal(s3.name, fmt.Errorf("failed to read filesystem key: %w", err))
		}
		if dev, err = encrypted.New(flash, key); err != nil {
			return nil, fatal(s3.name, err)
		}
	}
	s.internal = dev
	stagesDone.Inc(s3.name)
	return &Stage4{stage: stage{name: "stage4"}, s: s}, nil
}

// Stage4 assembles the store.
type Stage4 struct {
	stage
	s *state
}

// Next probes the external flash, if the SPI bus was kept for it, and mounts
// both filesystems. flashCS and flashPower may be nil when there is no
// external flash.
func (s4 *Stage4) Next(flashCS, flashPower peripheral.OutputPin) (*Stage5, error) {
	if err := s4.consume(); err != nil {
		return nil, err
	}
	s := s4.s
	glog.Info("making fs")

	fallback := s.opts.ExternalFallbackBlocks
	if fallback == 0 {
		fallback = storage.VolatileBlocks
	}
	var (
		external  storage.Volume
		simulated bool
	)
	if s.spi != nil {
		glog.Info("using external flash")
		var f storage.ExternalFlash
		if flashCS != nil && flashPower != nil {
			if err := flashPower.SetHigh(); err != nil {
				glog.Warningf("failed to power external flash: %v", err)
			} else if err := flashCS.SetHigh(); err != nil {
				glog.Warningf("failed to deselect external flash: %v", err)
			} else {
				f = s.opts.Drivers.ExternalFlash(s.spi, flashCS)
			}
		}
		s.spi = nil
		external, simulated = storage.ProbeExternal(f, s.opts.probeBackOff(), fallback, &s.st)
	} else {
		glog.Info("simulating external flash with RAM")
		external, simulated = storage.RAMVolume("external", fallback), true
	}

	internal := storage.Volume{
		Name: "internal",
		Dev:  s.internal,
		Geo:  storage.Layout(0, s.opts.InternalBlocks, storage.SlotBlocks),
	}
	s.internal = nil
	if s.opts.EraseInternalFlash {
		if err := internal.Format(); err != nil {
			return nil, fatal(s4.name, err)
		}
	}

	// Mounting at the field-powered clock takes far too long.
	if err := s.clocks.BoostForMount(); err != nil {
		return nil, fatal(s4.name, err)
	}
	glog.Infof("mount start %d ms", s.elapsedMS())
	store, err := storage.Init(internal, external, simulated, &s.st)
	if err != nil {
		return nil, fatal(s4.name, err)
	}
	glog.Infof("mount end %d ms", s.elapsedMS())
	if err := s.clocks.RestoreAfterMount(); err != nil {
		return nil, fatal(s4.name, err)
	}
	s.store = store

	// The reader has been waiting through the mount.
	if iso := s.usbNfc.Iso14443; iso != nil {
		iso.Poll()
	}
	s.delay.Cancel()
	stagesDone.Inc(s4.name)
	return &Stage5{stage: stage{name: "stage5"}, s: s}, nil
}

// Stage5 creates the crypto service.
type Stage5 struct {
	stage
	s *state
}

// Next builds the user interface and the seeded generator, and binds the
// service to them and the store.
func (s5 *Stage5) Next(rtc peripheral.RTC) (*Stage6, error) {
	if err := s5.consume(); err != nil {
		return nil, err
	}
	s := s5.s
	if rtc == nil {
		return nil, fatal(s5.name, errors.New("no RTC"))
	}
	rgb := s.rgb
	if s.passive() {
		rgb = nil
	}
	ui := service.NewUI(rtc, s.buttons, rgb, s.opts.Provisioner)
	ui.SetStatus(service.Idle)
	s.rgb, s.buttons = nil, nil

	key := s.fw.DeviceKey()
	gen, err := service.NewGenerator(s.rng, key)
	if err != nil {
		return nil, fatal(s5.name, err)
	}
	s.rng = nil
	svc, p, err := service.Bind(gen, s.store, ui, s.opts.Services, key)
	if err != nil {
		return nil, fatal(s5.name, err)
	}
	s.service, s.platform = svc, p
	stagesDone.Inc(s5.name)
	return &Stage6{stage: stage{name: "stage6"}, s: s}, nil
}

// Stage6 finishes bring-up.
type Stage6 struct {
	stage
	s *state
}

// Next migrates old data, creates the applications and, when field
// powered, starts the dynamic clock controller.
func (s6 *Stage6) Next() (*Runtime, error) {
	if err := s6.consume(); err != nil {
		return nil, err
	}
	s := s6.s
	migrate.Run(s.store, s.oldVersion, s.opts.Migrations, &s.st)

	apps, err := s.opts.Apps.New(AppContext{
		Service:      s.service,
		Platform:     s.platform,
		Status:       s.st.Status(),
		Companion:    s.companion,
		FieldPowered: s.passive(),
	})
	if err != nil {
		return nil, fatal(s6.name, fmt.Errorf("failed to create applications: %w", err))
	}

	var dc *clockpower.DynamicController
	if s.passive() {
		if s.adc == nil {
			return nil, fatal(s6.name, errors.New("no supply comparator"))
		}
		th := s.opts.Thresholds
		if th == (clockpower.Thresholds{}) {
			th = clockpower.DefaultThresholds
		}
		if dc, err = clockpower.NewDynamicController(s.clocks, s.adc, th); err != nil {
			return nil, fatal(s6.name, err)
		}
		if err := dc.StartHighVoltageCompare(); err != nil {
			return nil, fatal(s6.name, err)
		}
	}

	glog.Infof("init took %d ms", s.elapsedMS())
	final := s.st.Freeze()
	if !final.OK() {
		glog.Warningf("running degraded: %v", final)
	}
	initStatusFlags.Set(float64(final))
	stagesDone.Inc(s6.name)
	return &Runtime{
		Service:    s.service,
		Platform:   s.platform,
		Apps:       apps,
		Transports: s.usbNfc,
		Dynamic:    dc,
		Store:      s.store,
		Status:     final,
		UUID:       s.uuid,
		Companion:  s.companion,
		DelayTimer: s.delay,
		PerfTimer:  s.perf,
	}, nil
}
