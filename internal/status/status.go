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

// Package status holds the set of degraded-mode and fault flags accumulated
// while the device is being brought up.
//
// Flags can only be added through a Builder, which is owned by the bring-up
// chain. Once bring-up finishes the Builder is frozen and the resulting
// InitStatus value is handed, read-only, to the applications and UI.
package status

import "strings"

// InitStatus is a set of flags describing how bring-up went.
// The zero value means everything came up as expected.
type InitStatus uint8

const (
	// NFCError is set when the contactless frontend could not be configured.
	NFCError InitStatus = 1 << iota
	// InternalFlashError is set when the internal filesystem had to be reformatted.
	InternalFlashError
	// ExternalFlashError is set when the external flash was missing or
	// unusable and a volatile store was substituted for it.
	ExternalFlashError
	// MigrationError is set when one or more data migrations failed.
	MigrationError
)

var names = []struct {
	f    InitStatus
	name string
}{
	{NFCError, "NFC_ERROR"},
	{InternalFlashError, "INTERNAL_FLASH_ERROR"},
	{ExternalFlashError, "EXTERNAL_FLASH_ERROR"},
	{MigrationError, "MIGRATION_ERROR"},
}

// Has returns true if all flags in f are set.
func (s InitStatus) Has(f InitStatus) bool {
	return s&f == f
}

// OK returns true if no flag is set.
func (s InitStatus) OK() bool {
	return s == 0
}

func (s InitStatus) String() string {
	if s == 0 {
		return "OK"
	}
	var parts []string
	for _, n := range names {
		if s.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Builder accumulates flags during bring-up.
// The zero value is ready to use.
type Builder struct {
	s      InitStatus
	frozen bool
}

// Insert adds f to the set.
// Inserting into a frozen Builder is a programming error and panics.
func (b *Builder) Insert(f InitStatus) {
	if b.frozen {
		panic("status: Insert called after bring-up finished")
	}
	b.s |= f
}

// Status returns a snapshot of the flags set so far.
func (b *Builder) Status() InitStatus {
	return b.s
}

// Freeze prevents any further changes and returns the final set.
func (b *Builder) Freeze() InitStatus {
	b.frozen = true
	return b.s
}
