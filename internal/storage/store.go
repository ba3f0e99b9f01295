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

package storage

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage/slots"
	"github.com/google/keyrunner/internal/storage/volatile"
	"github.com/inhies/go-bytesize"
)

const (
	// BlockSize is the block size used for RAM volumes.
	BlockSize = 512
	// SlotBlocks is the default number of blocks per file.
	SlotBlocks = 8
	// VolatileBlocks is the size of the volatile location.
	VolatileBlocks = 128
)

// Location selects one of the filesystems in a Store.
type Location int

const (
	Internal Location = iota
	External
	Volatile
)

func (l Location) String() string {
	switch l {
	case Internal:
		return "internal"
	case External:
		return "external"
	case Volatile:
		return "volatile"
	}
	return fmt.Sprintf("Location(%d)", int(l))
}

// Store is the device's complete persistent store.
type Store struct {
	internal Filesystem
	external Filesystem
	volatile Filesystem

	externalIsRAM bool
}

// Location returns the filesystem for l.
func (s *Store) Location(l Location) Filesystem {
	switch l {
	case Internal:
		return s.internal
	case External:
		return s.external
	default:
		return s.volatile
	}
}

// IsVolatileExternal reports whether the external filesystem is held in RAM.
func (s *Store) IsVolatileExternal() bool {
	return s.externalIsRAM
}

// Volume is a region of a block device which holds a SlotFS.
type Volume struct {
	Name string
	Dev  slots.BlockReaderWriter
	Geo  slots.Geometry
}

// Layout returns a geometry covering blocks from start, split into files of
// slotBlocks blocks each.
func Layout(start, blocks, slotBlocks uint) slots.Geometry {
	return slots.Uniform(start, blocks, blocks/slotBlocks)
}

// RAMVolume returns a volume over a fresh volatile device.
func RAMVolume(name string, blocks uint) Volume {
	return Volume{
		Name: name,
		Dev:  volatile.NewDevice(BlockSize, blocks),
		Geo:  Layout(0, blocks, SlotBlocks),
	}
}

// Mount opens the filesystem on v.
func (v Volume) Mount() (*SlotFS, error) {
	p, err := slots.OpenPartition(v.Dev, v.Geo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.Name, err)
	}
	return newSlotFS(v.Name, p)
}

// Format erases v, leaving an empty filesystem.
func (v Volume) Format() error {
	glog.Infof("%s: formatting %v", v.Name, v.size())
	return slots.Erase(v.Dev, v.Geo)
}

func (v Volume) size() bytesize.ByteSize {
	return bytesize.New(float64(v.Geo.Length * v.Dev.BlockSize()))
}

// NewVolatileFS returns an empty filesystem held in RAM.
func NewVolatileFS(name string, blocks uint) (*SlotFS, error) {
	return RAMVolume(name, blocks).Mount()
}

func mountOrFormat(v Volume) (*SlotFS, error) {
	fs, err := v.Mount()
	if err == nil {
		return fs, nil
	}
	glog.Warningf("%s: mount failed, formatting: %v", v.Name, err)
	if err := v.Format(); err != nil {
		return nil, err
	}
	return v.Mount()
}

// Init mounts the internal and external volumes and assembles the Store.
//
// The internal volume is formatted if it cannot be mounted, and failure after
// that is returned as an error with status.InternalFlashError set. A physical
// external volume which cannot be mounted even after formatting is replaced by
// a RAM volume and status.ExternalFlashError is set; simulatedExternal marks
// an external volume which is already RAM backed.
func Init(internal, external Volume, simulatedExternal bool, st *status.Builder) (*Store, error) {
	in, err := mountOrFormat(internal)
	if err != nil {
		st.Insert(status.InternalFlashError)
		return nil, fmt.Errorf("failed to mount internal filesystem: %w", err)
	}
	glog.Infof("%s: mounted %v, %d files", internal.Name, internal.size(), len(in.Paths()))

	s := &Store{internal: in, externalIsRAM: simulatedExternal}
	ex, err := mountOrFormat(external)
	if err != nil {
		glog.Warningf("%s: unusable, falling back to RAM: %v", external.Name, err)
		st.Insert(status.ExternalFlashError)
		ram := RAMVolume(external.Name, external.Geo.Length)
		if ex, err = ram.Mount(); err != nil {
			return nil, fmt.Errorf("failed to create volatile external filesystem: %w", err)
		}
		s.externalIsRAM = true
	}
	s.external = ex
	glog.Infof("%s: mounted %v (volatile %t)", external.Name, external.size(), s.externalIsRAM)

	if s.volatile, err = NewVolatileFS("volatile", VolatileBlocks); err != nil {
		return nil, fmt.Errorf("failed to create volatile filesystem: %w", err)
	}
	return s, nil
}
