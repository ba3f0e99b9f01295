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

// Package migrate updates persisted data written by older firmware.
package migrate

import (
	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/version"
)

// AttestationCertPath is where the FIDO2 attestation certificate lives on the
// internal filesystem.
const AttestationCertPath = "fido/x5c/00"

// Migration is a data fixup for devices upgrading from firmware at or below
// MaxVersion.
type Migration struct {
	Name       string
	MaxVersion uint32
	Apply      func(*storage.Store) error
}

// AttestationCert replaces the FIDO2 attestation certificate shipped with
// firmware up to v1.0.2.
func AttestationCert(cert []byte) Migration {
	return Migration{
		Name:       "FIDO2 attestation certificate",
		MaxVersion: 4194306,
		Apply: func(s *storage.Store) error {
			return s.Location(storage.Internal).Write(AttestationCertPath, cert)
		},
	}
}

// Run applies every migration applicable to a device previously running
// firmware version old, and returns the number applied.
//
// Failures are logged and recorded as status.MigrationError; the device
// carries on with the old data.
func Run(s *storage.Store, old uint32, ms []Migration, st *status.Builder) int {
	n := 0
	for _, m := range ms {
		if old > m.MaxVersion {
			continue
		}
		glog.Infof("data migration from %s: %s", version.String(old), m.Name)
		if err := m.Apply(s); err != nil {
			glog.Errorf("data migration %q failed: %v", m.Name, err)
			st.Insert(status.MigrationError)
			continue
		}
		n++
	}
	return n
}
