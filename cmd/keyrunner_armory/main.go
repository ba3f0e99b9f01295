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

// keyrunner_armory is the device firmware composed as a unikernel for the
// USB Armory Mk II.
// To build this, `GOOS=tamago GOARCH=arm go build` with the tamago
// toolchain, then flash the resulting imx file to the device.
package main

import (
	"context"
	"flag"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/board/armory"
	"github.com/google/keyrunner/internal/bringup"
	"github.com/google/keyrunner/internal/config"
	"github.com/google/keyrunner/internal/diag"
	"github.com/google/keyrunner/internal/emu"
	"github.com/google/keyrunner/internal/mono"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/sched"
	"github.com/google/trillian/util/clock"

	_ "github.com/usbarmory/tamago/board/usbarmory/mk2"
)

func main() {
	// We parse the flags despite declaring none ourselves so libraries are
	// happy (looking at you, glog).
	flag.Parse()
	profile := config.Default()
	// The Armory has no NFC front-end or external flash.
	profile.NFCEnabled = false
	profile.ExternalFlash.Present = false

	board, err := armory.New(profile.InternalFlash.Blocks)
	if err != nil {
		glog.Exitf("Failed to init board: %v", err)
	}
	reg := peripheral.NewRegistry()
	if err := board.Provide(reg); err != nil {
		glog.Exitf("Failed to register peripherals: %v", err)
	}

	// TODO(keyrunner): replace the loopback stack with CCID and CTAPHID
	// classes on imx6ul.USB1.
	stack := emu.NewStack()
	opts, err := bringup.OptionsFromProfile(profile)
	if err != nil {
		glog.Exitf("Bad profile: %v", err)
	}
	opts.Drivers = armory.Drivers{S: stack}
	opts.Services = &emu.ServiceFactory{}
	opts.Apps = &emu.AppFactory{}
	rt, err := bringup.Boot(reg, board.Firmware(), opts)
	if err != nil {
		glog.Exitf("Bring-up failed: %v", err)
	}

	s := sched.New(mono.New(clock.System), sched.Options{Tracer: runner.NewLockTracer()})
	r, err := runner.New(s, rt.RunnerConfig(nil, nil, diag.Flusher{}))
	if err != nil {
		glog.Exitf("Failed to create runner: %v", err)
	}
	if err := r.Start(); err != nil {
		glog.Exitf("Failed to start runner: %v", err)
	}
	// Never returns.
	if err := r.Run(context.Background()); err != nil {
		glog.Exitf("Runner exited: %v", err)
	}
}
