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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/bringup"
	"github.com/google/keyrunner/internal/emu"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/runner"
	"github.com/google/keyrunner/internal/transport"
	"github.com/gorilla/mux"
)

// Status is the JSON body served at /status.
type Status struct {
	UUID         string   `json:"uuid"`
	InitStatus   string   `json:"init_status"`
	FieldPowered bool     `json:"field_powered"`
	ClockHz      uint32   `json:"clock_hz"`
	LED          [3]uint8 `json:"led"`
	APDUs        int      `json:"apdus_handled"`
	CTAPHID      int      `json:"ctaphid_handled"`
	USBPolls     int      `json:"usb_polls"`
	NFCPolls     int      `json:"nfc_polls"`
	ServiceRuns  int      `json:"service_runs"`
	UIRefreshes  int      `json:"ui_refreshes"`
}

var (
	buttons = map[string]peripheral.Button{
		"a":      peripheral.ButtonA,
		"b":      peripheral.ButtonB,
		"middle": peripheral.ButtonMiddle,
	}
	powerEvents = map[string]runner.PowerEvent{
		"usb_detected": runner.USBDetected,
		"usb_ready":    runner.USBPowerReady,
		"usb_removed":  runner.USBRemoved,
	}
)

// server lets a test harness play the outside world: hosts, readers, the
// user and the power supply.
type server struct {
	board    *emu.Board
	rt       *bringup.Runtime
	services *emu.ServiceFactory
	raise    func(runner.IRQ)
}

func (s *server) registerHandlers(r *mux.Router) {
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/apdu/{iface:contact|contactless}", s.postAPDU).Methods(http.MethodPost)
	r.HandleFunc("/ctaphid", s.postCTAPHID).Methods(http.MethodPost)
	r.HandleFunc("/buttons/{button:a|b|middle}/{action:press|release}", s.postButton).Methods(http.MethodPost)
	r.HandleFunc("/power/{event}", s.postPower).Methods(http.MethodPost)
	r.HandleFunc("/supply/{mv:[0-9]+}", s.postSupply).Methods(http.MethodPost)
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	st := Status{
		UUID:         s.rt.UUID.String(),
		InitStatus:   s.rt.Status.String(),
		FieldPowered: s.rt.FieldPowered(),
		ClockHz:      s.board.Clocks.Hz(),
		APDUs:        s.board.Stack.Apdu.Handled(),
		CTAPHID:      s.board.Stack.Ctaphid.Handled(),
		USBPolls:     s.board.Stack.Classes.Polls(),
		NFCPolls:     s.board.Stack.ISO.Polls(),
	}
	if s.board.LED != nil {
		st.LED[0], st.LED[1], st.LED[2] = s.board.LED.Colour()
	}
	if svc := s.services.Created(); svc != nil {
		st.ServiceRuns, st.UIRefreshes = svc.Counts()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		glog.Warningf("failed to write status: %v", err)
	}
}

func (s *server) postAPDU(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["iface"] == "contactless" {
		if s.rt.Transports.Iso14443 == nil {
			http.Error(w, "NFC is not in use", http.StatusConflict)
			return
		}
		// The reader is serviced from the idle loop.
		s.board.Stack.Apdu.Submit(transport.Contactless)
		return
	}
	if s.rt.Transports.UsbClasses == nil {
		http.Error(w, "USB is not in use", http.StatusConflict)
		return
	}
	s.board.Stack.Apdu.Submit(transport.Contact)
	s.raise(runner.IRQUSB)
}

func (s *server) postCTAPHID(w http.ResponseWriter, r *http.Request) {
	if s.rt.Transports.UsbClasses == nil {
		http.Error(w, "USB is not in use", http.StatusConflict)
		return
	}
	s.board.Stack.Ctaphid.Submit()
	s.raise(runner.IRQUSB)
}

func (s *server) postButton(w http.ResponseWriter, r *http.Request) {
	if s.board.Buttons == nil {
		http.Error(w, "board has no buttons", http.StatusNotFound)
		return
	}
	v := mux.Vars(r)
	b := buttons[v["button"]]
	if v["action"] == "press" {
		s.board.Buttons.Press(b)
	} else {
		s.board.Buttons.Release(b)
	}
	s.raise(runner.IRQButtons)
}

func (s *server) postPower(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["event"]
	e, ok := powerEvents[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown power event %q", name), http.StatusNotFound)
		return
	}
	s.board.Power.Latch(e)
	s.raise(runner.IRQPower)
}

func (s *server) postSupply(w http.ResponseWriter, r *http.Request) {
	mv, err := strconv.ParseUint(mux.Vars(r)["mv"], 10, 32)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.board.ADC.Supply(uint32(mv)) {
		s.raise(runner.IRQVoltage)
	}
}
