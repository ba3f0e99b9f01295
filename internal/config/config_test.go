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

package config

import (
	"strings"
	"testing"
)

func TestExampleProfile(t *testing.T) {
	p, err := Load("example_profile.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, err := p.Version(); err != nil || got != uint32(1<<22|3<<6|1) {
		t.Errorf("Version() = %#x, %v, want %#x", got, err, uint32(1<<22|3<<6|1))
	}
	if !p.ExternalFlash.Present || p.ExternalFlash.Blocks != 4096 {
		t.Errorf("ExternalFlash = %+v", p.ExternalFlash)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestParse(t *testing.T) {
	for _, test := range []struct {
		desc    string
		doc     string
		wantErr string
	}{
		{desc: "empty keeps defaults", doc: ""},
		{desc: "override", doc: "provisioner: true\nnfc_enabled: false\n"},
		{desc: "unknown field", doc: "wibble: 1\n", wantErr: "wibble"},
		{desc: "bad version", doc: "firmware_version: one\n", wantErr: "invalid firmware version"},
		{desc: "no internal flash", doc: "internal_flash: {present: false}\n", wantErr: "internal_flash"},
		{desc: "external without blocks", doc: "external_flash: {present: true, blocks: 0}\n", wantErr: "no blocks"},
		{desc: "contradictory encryption", doc: "no_encrypted_storage: true\n", wantErr: "exclusive"},
		{desc: "unencrypted", doc: "no_encrypted_storage: true\nrequire_encrypted_storage: false\n"},
	} {
		t.Run(test.desc, func(t *testing.T) {
			_, err := Parse([]byte(test.doc))
			switch {
			case test.wantErr == "" && err != nil:
				t.Errorf("Parse: %v", err)
			case test.wantErr != "" && (err == nil || !strings.Contains(err.Error(), test.wantErr)):
				t.Errorf("Parse = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "v1.0.2", want: 4194306},
		{in: "1.0.2", want: 4194306},
		{in: "v1.2.3.4", wantErr: true},
		{in: "banana", wantErr: true},
	} {
		t.Run(test.in, func(t *testing.T) {
			got, err := Profile{FirmwareVersion: test.in}.Version()
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Version() err = %v, want err %t", err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("Version() = %d, want %d", got, test.want)
			}
		})
	}
}
