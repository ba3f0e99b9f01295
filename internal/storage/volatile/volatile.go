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

// Package volatile provides a RAM-backed block device.
//
// It stands in for external flash when none is fitted or it fails to come
// up; contents are lost at reset.
package volatile

import (
	"fmt"
	"sync"
)

// Device is a block device held in memory.
type Device struct {
	mu  sync.Mutex
	bs  uint
	mem []byte
}

// NewDevice returns a zeroed device of n blocks of bs bytes each.
func NewDevice(bs, n uint) *Device {
	return &Device{bs: bs, mem: make([]byte, bs*n)}
}

// BlockSize returns the device block size.
func (d *Device) BlockSize() uint {
	return d.bs
}

// NumBlocks returns the device size in blocks.
func (d *Device) NumBlocks() uint {
	return uint(len(d.mem)) / d.bs
}

func (d *Device) span(lba uint, n int) (uint, uint, error) {
	off := lba * d.bs
	end := off + uint(n)
	if end > uint(len(d.mem)) || end < off {
		return 0, 0, fmt.Errorf("access to [%d, %d) beyond end of %d byte device", off, end, len(d.mem))
	}
	return off, end, nil
}

// ReadBlocks copies len(b) bytes starting at block lba into b.
func (d *Device) ReadBlocks(lba uint, b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	off, end, err := d.span(lba, len(b))
	if err != nil {
		return err
	}
	copy(b, d.mem[off:end])
	return nil
}

// WriteBlocks stores b starting at block lba, zero-padding the final block.
func (d *Device) WriteBlocks(lba uint, b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(b)
	if r := uint(n) % d.bs; r != 0 {
		n += int(d.bs - r)
	}
	off, end, err := d.span(lba, n)
	if err != nil {
		return err
	}
	clear(d.mem[off+uint(len(b)) : end])
	copy(d.mem[off:], b)
	return nil
}

// Bytes returns the raw device contents. The slice aliases the device.
func (d *Device) Bytes() []byte {
	return d.mem
}
