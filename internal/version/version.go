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

// Package version implements the anti-rollback ratchet kept in the protected
// flash region, and the packed firmware version numbers it compares.
package version

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/mod/semver"
)

// ErrKeyNotProvisioned is returned when the flash encryption key for the
// filesystem region is required but absent.
var ErrKeyNotProvisioned = errors.New("filesystem encryption key not provisioned")

// ErrCounterExhausted is returned when the record's write counter cannot be
// advanced any further.
var ErrCounterExhausted = errors.New("version record counter exhausted")

const (
	majorShift = 22
	minorShift = 6
	minorMask  = 1<<(majorShift-minorShift) - 1
	patchMask  = 1<<minorShift - 1
	maxMajor   = 1<<(32-majorShift) - 1
)

// Encode packs a major.minor.patch triple into the on-device representation.
func Encode(major, minor, patch uint32) (uint32, error) {
	if major > maxMajor || minor > minorMask || patch > patchMask {
		return 0, fmt.Errorf("version %d.%d.%d out of range", major, minor, patch)
	}
	return major<<majorShift | minor<<minorShift | patch, nil
}

// Parse encodes a semantic version string such as "v1.0.2" or "1.0.2".
// Prerelease and build suffixes are ignored.
func Parse(s string) (uint32, error) {
	v := s
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return 0, fmt.Errorf("invalid firmware version %q", s)
	}
	core := strings.TrimPrefix(semver.Canonical(v), "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	parts := strings.Split(core, ".")
	var n [3]uint32
	for i, p := range parts {
		x, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid firmware version %q: %v", s, err)
		}
		n[i] = uint32(x)
	}
	return Encode(n[0], n[1], n[2])
}

// String renders an encoded version as vMAJOR.MINOR.PATCH.
func String(v uint32) string {
	return fmt.Sprintf("v%d.%d.%d", v>>majorShift, v>>minorShift&minorMask, v&patchMask)
}

// Record is the anti-rollback record persisted in the protected flash region.
type Record struct {
	// Counter increases on every write.
	Counter  uint32
	SecureFW uint32
	NSFW     uint32
}

// Ratchet returns the record which should be persisted when running firmware
// with the given candidate version, and whether it differs from r. The
// counter never wraps; a record whose counter is at its maximum cannot be
// advanced.
func Ratchet(r Record, candidate uint32) (Record, bool, error) {
	if r.SecureFW >= candidate && r.NSFW >= candidate {
		return r, false, nil
	}
	if r.Counter == math.MaxUint32 {
		return r, false, ErrCounterExhausted
	}
	return Record{Counter: r.Counter + 1, SecureFW: candidate, NSFW: candidate}, true, nil
}

// PFR is the protected flash region.
type PFR interface {
	ReadRecord() (Record, error)
	WriteRecord(Record) error
	// KeyProvisioned reports whether the filesystem region encryption key
	// has been provisioned.
	KeyProvisioned() (bool, error)
}

// Guard validates the running firmware against the persisted record.
type Guard struct {
	pfr PFR
}

// NewGuard returns a Guard over the given protected flash region.
func NewGuard(pfr PFR) *Guard {
	return &Guard{pfr: pfr}
}

// Validate advances the persisted record to candidate if it is behind, and
// returns the secure firmware version which was recorded before this boot.
// A zero candidate leaves the record untouched.
//
// When requireKey is set a missing filesystem encryption key is reported as
// ErrKeyNotProvisioned.
func (g *Guard) Validate(candidate uint32, requireKey bool) (uint32, error) {
	r, err := g.pfr.ReadRecord()
	if err != nil {
		return 0, fmt.Errorf("failed to read version record: %w", err)
	}
	old := r.SecureFW
	if candidate != 0 {
		next, changed, err := Ratchet(r, candidate)
		if err != nil {
			return 0, err
		}
		if changed {
			glog.Infof("updating version record from %s to %s", String(r.SecureFW), String(candidate))
			if err := g.pfr.WriteRecord(next); err != nil {
				return 0, fmt.Errorf("failed to write version record: %w", err)
			}
		} else {
			glog.Infof("version record %s is current", String(r.SecureFW))
		}
	}
	if requireKey {
		ok, err := g.pfr.KeyProvisioned()
		if err != nil {
			return 0, fmt.Errorf("failed to read key provisioning state: %w", err)
		}
		if !ok {
			return 0, ErrKeyNotProvisioned
		}
	}
	return old, nil
}
