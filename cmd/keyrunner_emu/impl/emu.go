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

// Package impl is the implementation of the keyrunner emulator: the device
// firmware brought up on emulated peripherals and run on the host, with an
// HTTP interface for poking at it.
package impl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/bringup"
	"github.com/google/keyrunner/internal/config"
	"github.com/google/keyrunner/internal/diag"
	"github.com/google/keyrunner/internal/emu"
	"github.com/google/keyrunner/internal/mono"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/sched"
	"github.com/google/keyrunner/internal/storage/migrate"
	"github.com/google/trillian/monitoring"
	"github.com/google/trillian/util/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// EmuOpts encapsulates options for running the emulator.
type EmuOpts struct {
	Profile config.Profile
	// ImageDir holds the flash images and version record. If empty, all
	// state is kept in memory and lost on exit.
	ImageDir        string
	FieldPowered    bool
	NoExternalFlash bool
	// AttestationCert, if set, is written by the attestation certificate
	// migration on upgrade from old firmware.
	AttestationCert []byte
	// ListenAddr serves /metrics, /status and the stimulus endpoints.
	ListenAddr string
	// DiagSink receives the interrupt trace. It may be nil.
	DiagSink      io.Writer
	MetricFactory monitoring.MetricFactory
}

func (o EmuOpts) imagePath(name string) string {
	if o.ImageDir == "" {
		return ""
	}
	return filepath.Join(o.ImageDir, name)
}

// Main brings up the emulated device and runs it until ctx is done.
// Bring-up failures are returned as *bringup.FatalError.
func Main(ctx context.Context, opts EmuOpts) error {
	if opts.ImageDir != "" {
		if err := os.MkdirAll(opts.ImageDir, 0o700); err != nil {
			return fmt.Errorf("failed to create image directory: %v", err)
		}
	}
	board, err := emu.New(emu.Config{
		FieldPowered:    opts.FieldPowered,
		NoExternalFlash: opts.NoExternalFlash || !opts.Profile.ExternalFlash.Present,
		InternalBlocks:  opts.Profile.InternalFlash.Blocks,
		ExternalBlocks:  opts.Profile.ExternalFlash.Blocks,
		InternalImage:   opts.imagePath("internal.img"),
		ExternalImage:   opts.imagePath("external.img"),
		PFRPath:         opts.imagePath("pfr.cbor"),
	})
	if err != nil {
		return fmt.Errorf("failed to create board: %v", err)
	}
	defer board.Close()
	reg := peripheral.NewRegistry()
	if err := board.Provide(reg); err != nil {
		return err
	}

	svcs := &emu.ServiceFactory{}
	bo, err := bringup.OptionsFromProfile(opts.Profile)
	if err != nil {
		return fmt.Errorf("invalid profile: %v", err)
	}
	bo.Drivers = board.Drivers()
	bo.Services = svcs
	bo.Apps = &emu.AppFactory{}
	bo.MetricFactory = opts.MetricFactory
	if len(opts.AttestationCert) > 0 {
		bo.Migrations = append(bo.Migrations, migrate.AttestationCert(opts.AttestationCert))
	}
	rt, err := bringup.Boot(reg, board.Firmware, bo)
	if err != nil {
		return err
	}
	glog.Infof("device %s up, status %v", rt.UUID, rt.Status)

	power, err := peripheral.TakeOptional[runner.Power](reg, peripheral.NamePower)
	if err != nil {
		return err
	}
	trace := diag.NewBuffer(diag.DefaultCapacity)
	s := sched.New(mono.New(clock.System), sched.Options{
		Tracer:        runner.NewLockTracer(),
		MetricFactory: opts.MetricFactory,
	})
	r, err := runner.New(s, rt.RunnerConfig(power, trace, diag.Flusher{Buffer: trace, Sink: opts.DiagSink}))
	if err != nil {
		return fmt.Errorf("failed to create runner: %v", err)
	}
	board.Stack.Apdu.OnRequest = rt.Platform.Doorbell.Ring
	board.Stack.Ctaphid.OnRequest = rt.Platform.Doorbell.Ring
	if err := r.Start(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(ctx)
	})
	if opts.ListenAddr != "" {
		srv := &server{board: board, rt: rt, services: svcs, raise: r.Raise}
		router := mux.NewRouter()
		router.Handle("/metrics", promhttp.Handler())
		srv.registerHandlers(router)
		hServer := &http.Server{Addr: opts.ListenAddr, Handler: router}
		g.Go(func() error {
			glog.Infof("Serving on %s", opts.ListenAddr)
			if err := hServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			glog.Info("Server shutting down")
			return hServer.Shutdown(context.Background())
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
