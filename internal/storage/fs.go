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

// Package storage assembles the device's persistent store.
//
// Each flash component holds a SlotFS: a small path-addressed file store in
// which every file occupies one slot of a slots.Partition, and slot 0 maps
// paths to slots.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/storage/slots"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when reading a path which does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrNoSpace is returned when every slot is in use.
	ErrNoSpace = errors.New("no free slot")
)

// Filesystem is the path-addressed file store seen by everything above the
// storage layer.
type Filesystem interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Remove(path string) error
	Exists(path string) bool
	// Paths lists every file, sorted.
	Paths() []string
}

const dirSlot = 0

// SlotFS is a Filesystem over a slots.Partition.
type SlotFS struct {
	name string
	part *slots.Partition

	// mu guards everything below.
	mu       sync.RWMutex
	dir      map[string]uint
	dirToken uint32
	free     []uint
}

func newSlotFS(name string, part *slots.Partition) (*SlotFS, error) {
	if part.NumSlots() < 2 {
		return nil, fmt.Errorf("%s: partition needs at least two slots, has %d", name, part.NumSlots())
	}
	fs := &SlotFS{name: name, part: part, dir: make(map[string]uint)}
	s, err := part.Open(dirSlot)
	if err != nil {
		return nil, err
	}
	raw, tok := s.Read()
	if err := yaml.Unmarshal(raw, &fs.dir); err != nil {
		return nil, fmt.Errorf("%s: corrupt directory: %v", name, err)
	}
	if fs.dir == nil {
		fs.dir = make(map[string]uint)
	}
	fs.dirToken = tok

	used := make([]bool, part.NumSlots())
	used[dirSlot] = true
	for p, i := range fs.dir {
		if i == dirSlot || i >= uint(len(used)) || used[i] {
			return nil, fmt.Errorf("%s: corrupt directory: %q maps to slot %d", name, p, i)
		}
		used[i] = true
	}
	for i, u := range used {
		if !u {
			fs.free = append(fs.free, uint(i))
		}
	}
	glog.V(2).Infof("%s: mounted with %d files, %d free slots", name, len(fs.dir), len(fs.free))
	return fs, nil
}

// Name returns the name the filesystem was mounted with.
func (fs *SlotFS) Name() string {
	return fs.name
}

func (fs *SlotFS) storeDir() error {
	raw, err := yaml.Marshal(fs.dir)
	if err != nil {
		return fmt.Errorf("failed to marshal directory: %v", err)
	}
	s, err := fs.part.Open(dirSlot)
	if err != nil {
		return err
	}
	tok, err := s.CheckAndWrite(fs.dirToken, raw)
	if err != nil {
		return fmt.Errorf("failed to store directory: %w", err)
	}
	fs.dirToken = tok
	return nil
}

// Read returns a copy of the contents of path.
func (fs *SlotFS) Read(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	i, ok := fs.dir[path]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", fs.name, path, ErrNotFound)
	}
	s, err := fs.part.Open(i)
	if err != nil {
		return nil, err
	}
	d, _ := s.Read()
	return d, nil
}

// Write creates or replaces path.
func (fs *SlotFS) Write(path string, data []byte) error {
	if path == "" {
		return errors.New("empty path")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	i, ok := fs.dir[path]
	if !ok {
		if len(fs.free) == 0 {
			return fmt.Errorf("%s: %q: %w", fs.name, path, ErrNoSpace)
		}
		i = fs.free[0]
		s, err := fs.part.Open(i)
		if err != nil {
			return err
		}
		// Write the data before publishing the mapping, so that a torn
		// update never exposes a half written file.
		if err := s.Write(data); err != nil {
			return fmt.Errorf("%s: %q: %w", fs.name, path, err)
		}
		fs.dir[path] = i
		if err := fs.storeDir(); err != nil {
			delete(fs.dir, path)
			return fmt.Errorf("%s: %q: %w", fs.name, path, err)
		}
		fs.free = fs.free[1:]
		glog.V(2).Infof("%s: created %q in slot %d", fs.name, path, i)
		return nil
	}
	s, err := fs.part.Open(i)
	if err != nil {
		return err
	}
	if err := s.Write(data); err != nil {
		return fmt.Errorf("%s: %q: %w", fs.name, path, err)
	}
	return nil
}

// Remove deletes path.
func (fs *SlotFS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	i, ok := fs.dir[path]
	if !ok {
		return fmt.Errorf("%s: %q: %w", fs.name, path, ErrNotFound)
	}
	delete(fs.dir, path)
	if err := fs.storeDir(); err != nil {
		fs.dir[path] = i
		return err
	}
	s, err := fs.part.Open(i)
	if err != nil {
		return err
	}
	if err := s.Erase(); err != nil {
		// The slot is unreachable now, so leaking it until the next format
		// is the worst outcome.
		glog.Warningf("%s: failed to erase slot %d: %v", fs.name, i, err)
		return nil
	}
	fs.free = append(fs.free, i)
	return nil
}

// Exists reports whether path exists.
func (fs *SlotFS) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.dir[path]
	return ok
}

// Paths lists every file, sorted.
func (fs *SlotFS) Paths() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	r := make([]string, 0, len(fs.dir))
	for p := range fs.dir {
		r = append(r, p)
	}
	sort.Strings(r)
	return r
}

// ReadObject decodes the CBOR object stored at path into a T.
func ReadObject[T any](fs Filesystem, path string) (T, error) {
	var v T
	raw, err := fs.Read(path)
	if err != nil {
		return v, err
	}
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode %q: %v", path, err)
	}
	return v, nil
}

// WriteObject stores v at path, CBOR encoded.
func WriteObject(fs Filesystem, path string, v any) error {
	raw, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %v", path, err)
	}
	return fs.Write(path, raw)
}
