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

// This package is the entrypoint for the keyrunner emulator.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/google/keyrunner/cmd/keyrunner_emu/impl"
	"github.com/google/keyrunner/internal/bringup"
	"github.com/google/keyrunner/internal/config"
	"github.com/google/keyrunner/internal/diag"
	"github.com/google/trillian/monitoring/prometheus"
)

var (
	profilePath     = flag.String("profile", "", "Path to a YAML device profile; the built-in defaults are used if unset")
	imageDir        = flag.String("flash_image", "", "Directory holding the flash images, which persist across runs; RAM is used if unset")
	poweredBy       = flag.String("powered_by", "usb", "Power source at reset, one of usb or field")
	noExternalFlash = flag.Bool("no_external_flash", false, "Emulate a board without external flash")
	attestationCert = flag.String("attestation_cert", "", "Path to a DER certificate installed when upgrading from old firmware")
	listenAddr      = flag.String("metrics_endpoint", "localhost:8099", "address:port serving /metrics, /status and the stimulus endpoints; empty disables")
	serialPort      = flag.String("serial_port", "", "Serial port receiving the interrupt trace; stderr is used if unset")
	serialBaud      = flag.Int("serial_baud", 115200, "Baud rate of --serial_port")
)

func main() {
	flag.Parse()

	profile := config.Default()
	if *profilePath != "" {
		var err error
		if profile, err = config.Load(*profilePath); err != nil {
			glog.Exitf("Failed to load profile: %v", err)
		}
	}
	if *poweredBy != "usb" && *poweredBy != "field" {
		glog.Exitf("--powered_by must be usb or field, got %q", *poweredBy)
	}
	opts := impl.EmuOpts{
		Profile:         profile,
		ImageDir:        *imageDir,
		FieldPowered:    *poweredBy == "field",
		NoExternalFlash: *noExternalFlash,
		ListenAddr:      *listenAddr,
		DiagSink:        os.Stderr,
		MetricFactory:   prometheus.MetricFactory{Prefix: "keyrunner_"},
	}
	if *attestationCert != "" {
		cert, err := os.ReadFile(*attestationCert)
		if err != nil {
			glog.Exitf("Failed to read attestation certificate: %v", err)
		}
		opts.AttestationCert = cert
	}
	if *serialPort != "" {
		port, err := diag.OpenSerial(*serialPort, *serialBaud)
		if err != nil {
			glog.Exitf("Failed to open trace port: %v", err)
		}
		defer port.Close()
		opts.DiagSink = port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := impl.Main(ctx, opts); err != nil {
		var fe *bringup.FatalError
		if errors.As(err, &fe) {
			glog.Exitf("Halting in %s: %v", fe.Stage, fe.Err)
		}
		glog.Exit(err.Error())
	}
}
