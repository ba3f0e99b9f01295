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
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/storage/slots"
	"github.com/google/keyrunner/internal/storage/volatile"
	"github.com/google/trillian/util/clock"
	"github.com/google/uuid"
)

// JEDECID is the identity reported by the emulated external flash.
const JEDECID = 0xef4017

// Config describes the emulated board.
type Config struct {
	// FieldPowered holds the NFC interrupt line low at reset, as an NFC
	// field does.
	FieldPowered    bool
	NoExternalFlash bool
	NoButtons       bool
	NoRGB           bool

	InternalBlocks uint
	ExternalBlocks uint
	// InternalImage, ExternalImage and PFRPath keep state in files across
	// runs. Empty paths keep it in memory.
	InternalImage string
	ExternalImage string
	PFRPath       string

	// ID is the SoC UUID; a random one is used if unset.
	ID uuid.UUID
	// Time defaults to the system clock.
	Time clock.TimeSource
	// Entropy defaults to crypto/rand.
	Entropy io.Reader
}

// Board holds every emulated peripheral.
type Board struct {
	Firmware       *Firmware
	Clocks         *Clocks
	NFCIRQ         *Pin
	ADC            *Comparator
	DelayTimer     *Timer
	PerfTimer      *Timer
	LED            *LED
	Buttons        *Buttons
	PFR            *PFR
	SPI            *SPI
	Companion      *Companion
	CompanionPower *Pin
	USB            *USBBus
	Cipher         *FlashCipher
	Internal       slots.BlockReaderWriter
	FlashCS        *Pin
	FlashPower     *Pin
	RTC            *RTC
	Power          *Power
	Stack          *Stack

	entropy io.Reader
	closers []io.Closer
}

// New assembles a board. Close releases any image files it opened.
func New(cfg Config) (*Board, error) {
	ts := cfg.Time
	if ts == nil {
		ts = clock.System
	}
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	b := &Board{
		Firmware: &Firmware{
			ID:  id,
			Key: bytes.Repeat([]byte{id[0] ^ 0x5a}, 32),
		},
		Clocks:         &Clocks{},
		NFCIRQ:         &Pin{},
		ADC:            &Comparator{},
		DelayTimer:     NewTimer(ts),
		PerfTimer:      NewTimer(ts),
		Companion:      &Companion{},
		CompanionPower: &Pin{},
		USB:            &USBBus{},
		Cipher:         &FlashCipher{Key: bytes.Repeat([]byte{0x4b}, 32)},
		FlashCS:        &Pin{},
		FlashPower:     &Pin{},
		RTC:            NewRTC(ts),
		Power:          &Power{},
		Stack:          NewStack(),
		SPI:            &SPI{NFC: &NFCChip{}},
		entropy:        cfg.Entropy,
	}
	if b.entropy == nil {
		b.entropy = rand.Reader
	}
	b.NFCIRQ.Drive(cfg.FieldPowered)
	if !cfg.NoButtons {
		b.Buttons = &Buttons{}
	}
	if !cfg.NoRGB {
		b.LED = &LED{}
	}

	var err error
	if b.PFR, err = OpenPFR(cfg.PFRPath); err != nil {
		return nil, err
	}
	if b.Internal, err = b.device(cfg.InternalImage, cfg.InternalBlocks); err != nil {
		b.Close()
		return nil, fmt.Errorf("internal flash: %v", err)
	}
	if !cfg.NoExternalFlash {
		dev, err := b.device(cfg.ExternalImage, cfg.ExternalBlocks)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("external flash: %v", err)
		}
		b.SPI.Flash = NewNORFlash(dev, cfg.ExternalBlocks, JEDECID)
	}
	return b, nil
}

func (b *Board) device(path string, blocks uint) (slots.BlockReaderWriter, error) {
	if path == "" {
		return volatile.NewDevice(storage.BlockSize, blocks), nil
	}
	f, err := OpenFileFlash(path, blocks)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, f)
	return f, nil
}

// Provide registers the board's peripherals with reg.
func (b *Board) Provide(reg *peripheral.Registry) error {
	type provided struct {
		name string
		v    any
	}
	ps := []provided{
		{peripheral.NameClocks, b.Clocks},
		{peripheral.NameNFCIRQ, b.NFCIRQ},
		{peripheral.NameADC, b.ADC},
		{peripheral.NameDelayTimer, b.DelayTimer},
		{peripheral.NamePerfTimer, b.PerfTimer},
		{peripheral.NamePFR, b.PFR},
		{peripheral.NameSPI, b.SPI},
		{peripheral.NameCompanionI2C, b.Companion},
		{peripheral.NameCompanionPwr, b.CompanionPower},
		{peripheral.NameUSB, b.USB},
		{peripheral.NameRNG, b.entropy},
		{peripheral.NameFlashCipher, b.Cipher},
		{peripheral.NameInternalFlash, b.Internal},
		{peripheral.NameFlashCS, b.FlashCS},
		{peripheral.NameFlashPower, b.FlashPower},
		{peripheral.NameRTC, b.RTC},
		{peripheral.NamePower, b.Power},
	}
	if b.LED != nil {
		ps = append(ps, provided{peripheral.NameRGB, b.LED})
	}
	if b.Buttons != nil {
		ps = append(ps, provided{peripheral.NameButtons, b.Buttons})
	}
	for _, p := range ps {
		if err := reg.Provide(p.name, p.v); err != nil {
			return err
		}
	}
	return nil
}

// Drivers returns the drivers for the board's devices.
func (b *Board) Drivers() *Drivers {
	return NewDrivers(b.Stack)
}

// Close releases any image files.
func (b *Board) Close() error {
	var err error
	for _, c := range b.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	b.closers = nil
	return err
}
