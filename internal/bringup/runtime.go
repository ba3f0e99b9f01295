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
	"github.com/google/keyrunner/internal/clockpower"
	"github.com/google/keyrunner/internal/diag"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/service"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/transport"
	"github.com/google/uuid"
)

// Runtime is the fully initialised device, ready to be handed to the
// runner.
type Runtime struct {
	Service    service.Service
	Platform   *service.Platform
	Apps       runner.Apps
	Transports *transport.UsbNfc
	// Dynamic is nil unless field powered.
	Dynamic *clockpower.DynamicController
	Store   *storage.Store
	Status  status.InitStatus
	UUID    uuid.UUID

	Companion  peripheral.I2C
	DelayTimer peripheral.Timer
	PerfTimer  peripheral.Timer
}

// FieldPowered reports whether the device is running from an NFC field.
func (r *Runtime) FieldPowered() bool {
	return r.Dynamic != nil
}

// RunnerConfig returns the runner configuration for r. power may be nil.
func (r *Runtime) RunnerConfig(power runner.Power, trace *diag.Buffer, d diag.Flusher) runner.Config {
	return runner.Config{
		Service:    r.Service,
		Doorbell:   r.Platform.Doorbell,
		Apps:       r.Apps,
		Transports: r.Transports,
		Power:      power,
		Dynamic:    r.Dynamic,
		Trace:      trace,
		Diag:       d,
	}
}
