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

package service

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/keyrunner/internal/peripheral"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage"
)

func stream(t *testing.T, entropy, key []byte) []byte {
	t.Helper()
	g, err := NewGenerator(bytes.NewReader(entropy), key)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	b := make([]byte, 64)
	if _, err := io.ReadFull(g, b); err != nil {
		t.Fatalf("Read: %v", err)
	}
	return b
}

func TestGenerator(t *testing.T) {
	e1 := bytes.Repeat([]byte{1}, EntropySize)
	e2 := bytes.Repeat([]byte{2}, EntropySize)
	k1 := []byte("device key one!!")
	k2 := []byte("device key two!!")

	base := stream(t, e1, k1)
	if !bytes.Equal(base, stream(t, e1, k1)) {
		t.Error("same inputs gave different streams")
	}
	if bytes.Equal(base, stream(t, e2, k1)) {
		t.Error("different entropy gave the same stream")
	}
	if bytes.Equal(base, stream(t, e1, k2)) {
		t.Error("different device key gave the same stream")
	}
	if bytes.Equal(base, make([]byte, len(base))) {
		t.Error("stream is all zeroes")
	}
}

func TestGeneratorContinues(t *testing.T) {
	e := bytes.Repeat([]byte{7}, EntropySize)
	g, err := NewGenerator(bytes.NewReader(e), nil)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	a, b := make([]byte, 32), make([]byte, 32)
	g.Read(a)
	g.Read(b)
	if bytes.Equal(a, b) {
		t.Error("consecutive reads returned the same bytes")
	}
	if got, want := append(a, b...), stream(t, e, nil); !bytes.Equal(got, want) {
		t.Error("split reads differ from a single read")
	}
}

func TestGeneratorShortEntropy(t *testing.T) {
	if _, err := NewGenerator(bytes.NewReader(make([]byte, EntropySize-1)), nil); err == nil {
		t.Error("NewGenerator with short entropy succeeded")
	}
}

type fakeService struct {
	p   Platform
	key []byte
}

func (*fakeService) Process()  {}
func (*fakeService) UpdateUI() {}

func TestBind(t *testing.T) {
	var st status.Builder
	store, err := storage.Init(storage.RAMVolume("internal", 64), storage.RAMVolume("external", 64), true, &st)
	if err != nil {
		t.Fatalf("storage.Init: %v", err)
	}
	ui := NewUI(&fakeRTC{}, nil, nil, false)
	rng := bytes.NewReader(nil)

	var created *fakeService
	f := FactoryFunc(func(p Platform, key []byte) (Service, error) {
		created = &fakeService{p: p, key: key}
		return created, nil
	})
	s, p, err := Bind(rng, store, ui, f, []byte("hw"))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if s != Service(created) {
		t.Error("Bind did not return the factory's service")
	}
	if p.Store != store || p.UI != ui || p.RNG != io.Reader(rng) {
		t.Errorf("platform = %+v", p)
	}
	if p.Doorbell == nil || created.p.Doorbell != p.Doorbell {
		t.Error("service was not given the platform doorbell")
	}
	if got := string(created.key); got != "hw" {
		t.Errorf("device key = %q", got)
	}

	fail := FactoryFunc(func(Platform, []byte) (Service, error) { return nil, errors.New("boom") })
	if _, _, err := Bind(rng, store, ui, fail, nil); err == nil {
		t.Error("Bind with failing factory succeeded")
	}
	if _, _, err := Bind(nil, store, ui, f, nil); err == nil {
		t.Error("Bind without RNG succeeded")
	}
}

type fakeRTC struct{ now time.Duration }

func (r *fakeRTC) Reset()                { r.now = 0 }
func (r *fakeRTC) Uptime() time.Duration { return r.now }

type led struct{ writes []Colour }

func (l *led) Red(v uint8)   { l.writes = append(l.writes, Colour{R: v}) }
func (l *led) Green(v uint8) { l.writes[len(l.writes)-1].G = v }
func (l *led) Blue(v uint8)  { l.writes[len(l.writes)-1].B = v }

type buttons map[peripheral.Button]bool

func (b buttons) IsPressed(x peripheral.Button) bool { return b[x] }

func TestDoorbell(t *testing.T) {
	var d Doorbell
	d.Ring()
	rings := 0
	d.Connect(func() { rings++ })
	if rings != 1 {
		t.Errorf("early ring delivered %d times, want 1", rings)
	}
	d.Ring()
	d.Ring()
	if rings != 3 {
		t.Errorf("rings = %d, want 3", rings)
	}
}

func TestUIRefresh(t *testing.T) {
	rtc := &fakeRTC{}
	l := &led{}
	ui := NewUI(rtc, nil, l, false)

	ui.Refresh()
	ui.Refresh()
	ui.SetStatus(WaitingForUserPresence)
	ui.Refresh()
	rtc.now = blinkPeriod * 3 / 4
	ui.Refresh()
	ui.SetStatus(Error)
	ui.Refresh()

	want := []Colour{idleColour, waitColour, Off, errColour}
	if diff := cmp.Diff(want, l.writes); diff != "" {
		t.Errorf("LED writes diff (-want +got):\n%s", diff)
	}
}

func TestUIWithoutLED(t *testing.T) {
	ui := NewUI(&fakeRTC{}, nil, nil, true)
	ui.SetStatus(Processing)
	if got := ui.Refresh(); got != busyColour {
		t.Errorf("Refresh() = %v, want %v", got, busyColour)
	}
	if !ui.UserPresence() {
		t.Error("UI without buttons should report presence")
	}
}

func TestUserPresence(t *testing.T) {
	b := buttons{}
	ui := NewUI(&fakeRTC{}, b, nil, false)
	if ui.UserPresence() {
		t.Error("presence with no button pressed")
	}
	b[peripheral.ButtonMiddle] = true
	if !ui.UserPresence() {
		t.Error("no presence with middle button pressed")
	}
}
