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

package impl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/google/keyrunner/internal/bringup"
	"github.com/google/keyrunner/internal/config"
	"github.com/google/keyrunner/internal/emu"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func newServer(t *testing.T, fieldPowered bool) (*mux.Router, *emu.Board, *[]runner.IRQ) {
	t.Helper()
	board, err := emu.New(emu.Config{
		FieldPowered:   fieldPowered,
		InternalBlocks: 128,
		ExternalBlocks: 128,
		Time:           emu.NewSteppingTimeSource(time.Unix(0, 0), time.Millisecond),
		Entropy:        bytes.NewReader(make([]byte, service.EntropySize)),
	})
	if err != nil {
		t.Fatalf("emu.New: %v", err)
	}
	t.Cleanup(func() { board.Close() })
	reg := peripheral.NewRegistry()
	if err := board.Provide(reg); err != nil {
		t.Fatalf("Provide: %v", err)
	}
	svcs := &emu.ServiceFactory{}
	opts, err := bringup.OptionsFromProfile(config.Default())
	if err != nil {
		t.Fatalf("OptionsFromProfile: %v", err)
	}
	opts.InternalBlocks = 128
	opts.Drivers = board.Drivers()
	opts.Services = svcs
	opts.Apps = &emu.AppFactory{}
	opts.ProbeBackOff = func() backoff.BackOff { return &backoff.StopBackOff{} }
	rt, err := bringup.Boot(reg, board.Firmware, opts)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}

	var raised []runner.IRQ
	s := &server{board: board, rt: rt, services: svcs, raise: func(i runner.IRQ) { raised = append(raised, i) }}
	r := mux.NewRouter()
	s.registerHandlers(r)
	return r, board, &raised
}

func do(t *testing.T, r *mux.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestStimulus(t *testing.T) {
	for _, test := range []struct {
		desc       string
		field      bool
		path       string
		wantCode   int
		wantRaised []runner.IRQ
	}{
		{desc: "contact APDU", path: "/apdu/contact", wantCode: http.StatusOK, wantRaised: []runner.IRQ{runner.IRQUSB}},
		{desc: "contactless APDU over USB", path: "/apdu/contactless", wantCode: http.StatusConflict},
		{desc: "contactless APDU in field", field: true, path: "/apdu/contactless", wantCode: http.StatusOK},
		{desc: "CTAPHID in field", field: true, path: "/ctaphid", wantCode: http.StatusConflict},
		{desc: "CTAPHID", path: "/ctaphid", wantCode: http.StatusOK, wantRaised: []runner.IRQ{runner.IRQUSB}},
		{desc: "button", path: "/buttons/middle/press", wantCode: http.StatusOK, wantRaised: []runner.IRQ{runner.IRQButtons}},
		{desc: "bad button", path: "/buttons/left/press", wantCode: http.StatusNotFound},
		{desc: "power", path: "/power/usb_detected", wantCode: http.StatusOK, wantRaised: []runner.IRQ{runner.IRQPower}},
		{desc: "bad power event", path: "/power/lightning", wantCode: http.StatusNotFound},
		{desc: "supply externally powered", path: "/supply/3300", wantCode: http.StatusOK},
		{desc: "supply rises in field", field: true, path: "/supply/3300", wantCode: http.StatusOK, wantRaised: []runner.IRQ{runner.IRQVoltage}},
		{desc: "supply within window", field: true, path: "/supply/2700", wantCode: http.StatusOK},
	} {
		t.Run(test.desc, func(t *testing.T) {
			r, _, raised := newServer(t, test.field)
			w := do(t, r, http.MethodPost, test.path)
			if w.Code != test.wantCode {
				t.Fatalf("POST %s = %d, want %d (%s)", test.path, w.Code, test.wantCode, w.Body)
			}
			if diff := cmp.Diff(test.wantRaised, *raised); diff != "" {
				t.Errorf("raised IRQs diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	r, board, _ := newServer(t, false)
	do(t, r, http.MethodPost, "/power/usb_removed")
	if !board.Power.Latched(runner.USBRemoved) {
		t.Error("power event not latched")
	}

	w := do(t, r, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d", w.Code)
	}
	var got Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad status JSON: %v", err)
	}
	if got.InitStatus != "OK" || got.FieldPowered || got.UUID != uuid.UUID(board.Firmware.ID).String() {
		t.Errorf("status = %+v", got)
	}
}
