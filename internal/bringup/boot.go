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
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/storage/slots"
	"github.com/google/keyrunner/internal/transport"
	"github.com/google/keyrunner/internal/version"
)

// claims takes peripherals from a registry, remembering the first failure.
type claims struct {
	r     *peripheral.Registry
	stage string
	err   error
}

func claim[T any](c *claims, name string) T {
	return claimWith(c, name, peripheral.Take[T])
}

func claimOptional[T any](c *claims, name string) T {
	return claimWith(c, name, peripheral.TakeOptional[T])
}

func claimWith[T any](c *claims, name string, take func(*peripheral.Registry, string) (T, error)) T {
	var zero T
	if c.err != nil {
		return zero
	}
	v, err := take(c.r, name)
	if err != nil {
		c.err = fatal(c.stage, fmt.Errorf("failed to claim peripheral: %w", err))
		return zero
	}
	return v
}

// Boot runs every stage, claiming each stage's peripherals from reg just
// before it needs them. Peripherals the runner needs, such as the power
// events, are left in reg.
func Boot(reg *peripheral.Registry, fw Firmware, opts Options) (*Runtime, error) {
	s0, err := Start(fw, opts)
	if err != nil {
		return nil, err
	}

	c := &claims{r: reg, stage: s0.name}
	clocks := claim[clockpower.Configurator](c, peripheral.NameClocks)
	irq := claim[peripheral.InputPin](c, peripheral.NameNFCIRQ)
	if c.err != nil {
		return nil, c.err
	}
	s1, err := s0.Next(clocks, irq)
	if err != nil {
		return nil, err
	}

	c.stage = s1.name
	in1 := Stage1Inputs{
		ADC:        claimOptional[clockpower.Comparator](c, peripheral.NameADC),
		DelayTimer: claim[peripheral.Timer](c, peripheral.NameDelayTimer),
		PerfTimer:  claim[peripheral.Timer](c, peripheral.NamePerfTimer),
		RGB:        claimOptional[peripheral.RGB](c, peripheral.NameRGB),
		Buttons:    claimOptional[peripheral.Buttons](c, peripheral.NameButtons),
		PFR:        claim[version.PFR](c, peripheral.NamePFR),
	}
	if c.err != nil {
		return nil, c.err
	}
	s2, err := s1.Next(in1)
	if err != nil {
		return nil, err
	}

	c.stage = s2.name
	in2 := Stage2Inputs{
		CompanionI2C:   claim[peripheral.I2C](c, peripheral.NameCompanionI2C),
		CompanionPower: claim[peripheral.OutputPin](c, peripheral.NameCompanionPwr),
		SPI:            claimOptional[peripheral.SPI](c, peripheral.NameSPI),
		USB:            claimOptional[transport.UsbBus](c, peripheral.NameUSB),
	}
	if c.err != nil {
		return nil, c.err
	}
	s3, err := s2.Next(in2)
	if err != nil {
		return nil, err
	}

	c.stage = s3.name
	rng := claim[io.Reader](c, peripheral.NameRNG)
	cipher := claim[peripheral.FlashCipher](c, peripheral.NameFlashCipher)
	flash := claim[slots.BlockReaderWriter](c, peripheral.NameInternalFlash)
	if c.err != nil {
		return nil, c.err
	}
	s4, err := s3.Next(rng, cipher, flash)
	if err != nil {
		return nil, err
	}

	c.stage = s4.name
	cs := claimOptional[peripheral.OutputPin](c, peripheral.NameFlashCS)
	pwr := claimOptional[peripheral.OutputPin](c, peripheral.NameFlashPower)
	if c.err != nil {
		return nil, c.err
	}
	s5, err := s4.Next(cs, pwr)
	if err != nil {
		return nil, err
	}

	c.stage = s5.name
	rtc := claim[peripheral.RTC](c, peripheral.NameRTC)
	if c.err != nil {
		return nil, c.err
	}
	s6, err := s5.Next(rtc)
	if err != nil {
		return nil, err
	}
	rt, err := s6.Next()
	if err != nil {
		return nil, err
	}
	if left := reg.Untaken(); len(left) > 0 {
		glog.V(1).Infof("peripherals left for the runner: %v", left)
	}
	return rt, nil
}
