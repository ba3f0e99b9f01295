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

package slots

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrStaleToken is returned by CheckAndWrite when the slot has been written
// since the token was obtained.
var ErrStaleToken = errors.New("slot updated since token was issued")

// Geometry describes the layout of a partition on a device.
type Geometry struct {
	// Start is the first block of the partition.
	Start uint
	// Length is the number of blocks in the partition.
	Length uint
	// SlotLengths holds the size in blocks of each slot, in order.
	// Changing this once data has been written loses that data.
	SlotLengths []uint
}

// Validate checks that the slots fit within the partition.
func (g Geometry) Validate() error {
	if len(g.SlotLengths) == 0 {
		return errors.New("invalid geometry: no slots")
	}
	var t uint
	for _, l := range g.SlotLengths {
		t += l
	}
	if t > g.Length {
		return fmt.Errorf("invalid geometry: slots need %d blocks but partition has %d", t, g.Length)
	}
	return nil
}

// Uniform returns a geometry of n equally sized slots covering length blocks
// from start.
func Uniform(start, length, n uint) Geometry {
	g := Geometry{Start: start, Length: length}
	if n == 0 {
		return g
	}
	for i := uint(0); i < n; i++ {
		g.SlotLengths = append(g.SlotLengths, length/n)
	}
	return g
}

// Partition is a set of slots on a device.
type Partition struct {
	dev   BlockReaderWriter
	slots []*Slot
}

// OpenPartition scans each slot described by geo and returns the partition.
// It fails if any slot holds a corrupt journal.
func OpenPartition(dev BlockReaderWriter, geo Geometry) (*Partition, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	p := &Partition{dev: dev}
	lba := geo.Start
	for i, l := range geo.SlotLengths {
		j, err := openJournal(dev, lba, l)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		p.slots = append(p.slots, &Slot{j: j})
		lba += l
	}
	return p, nil
}

// Open returns the slot with the given index.
func (p *Partition) Open(i uint) (*Slot, error) {
	if n := uint(len(p.slots)); i >= n {
		return nil, fmt.Errorf("slot %d out of range, partition has %d", i, n)
	}
	return p.slots[i], nil
}

// NumSlots returns the number of slots in the partition.
func (p *Partition) NumSlots() int {
	return len(p.slots)
}

// Format erases every slot.
func (p *Partition) Format() error {
	for i, s := range p.slots {
		if err := s.Erase(); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// Erase zeroes the whole partition described by geo without reading it, which
// recovers a partition too damaged to open.
func Erase(dev BlockReaderWriter, geo Geometry) error {
	if err := geo.Validate(); err != nil {
		return err
	}
	return zeroBlocks(dev, geo.Start, geo.Start+geo.Length)
}

// Slot is a single record store within a partition.
type Slot struct {
	mu sync.RWMutex
	j  *journal
}

// Read returns a copy of the slot's current contents along with a token for
// use with CheckAndWrite. An empty slot returns no data and a zero token.
func (s *Slot) Read() ([]byte, uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.j.data), s.j.rev
}

// Write replaces the slot's contents.
func (s *Slot) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.j.append(p)
}

// CheckAndWrite replaces the slot's contents only if it has not been written
// since token was returned by Read. It returns the new token.
func (s *Slot) CheckAndWrite(token uint32, p []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.j.rev != token {
		return s.j.rev, ErrStaleToken
	}
	if err := s.j.append(p); err != nil {
		return s.j.rev, err
	}
	return s.j.rev, nil
}

// Erase discards the slot's contents and history.
func (s *Slot) Erase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.j.erase()
}
