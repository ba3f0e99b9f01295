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

package emu

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
	"github.com/google/keyrunner/internal/storage"
	"github.com/google/keyrunner/internal/storage/slots"
	"github.com/google/keyrunner/internal/version"
)

// FileFlash is a block device kept in an image file, so that its contents
// survive emulator restarts. The image is locked while open, as two
// emulators sharing one image would corrupt it.
type FileFlash struct {
	mu   sync.Mutex
	f    *os.File
	lock *flock.Flock
	n    uint
}

// OpenFileFlash opens, creating if needed, an image of blocks blocks.
func OpenFileFlash(path string, blocks uint) (*FileFlash, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %q: %v", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("flash image %q is in use", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to open flash image: %v", err)
	}
	size := int64(blocks * storage.BlockSize)
	fi, err := f.Stat()
	if err == nil && fi.Size() < size {
		err = f.Truncate(size)
	}
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, fmt.Errorf("failed to size flash image: %v", err)
	}
	return &FileFlash{f: f, lock: lock, n: blocks}, nil
}

// BlockSize implements slots.BlockReaderWriter.
func (d *FileFlash) BlockSize() uint {
	return storage.BlockSize
}

// NumBlocks returns the image size in blocks.
func (d *FileFlash) NumBlocks() uint {
	return d.n
}

func (d *FileFlash) check(lba uint, n int) (int64, error) {
	off := lba * storage.BlockSize
	if end := off + uint(n); end > d.n*storage.BlockSize || end < off {
		return 0, fmt.Errorf("access to [%d, %d) beyond end of image", off, end)
	}
	return int64(off), nil
}

// ReadBlocks implements slots.BlockReaderWriter.
func (d *FileFlash) ReadBlocks(lba uint, b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	off, err := d.check(lba, len(b))
	if err != nil {
		return err
	}
	_, err = d.f.ReadAt(b, off)
	return err
}

// WriteBlocks implements slots.BlockReaderWriter.
func (d *FileFlash) WriteBlocks(lba uint, b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r := len(b) % storage.BlockSize; r != 0 {
		b = append(b[:len(b):len(b)], make([]byte, storage.BlockSize-r)...)
	}
	off, err := d.check(lba, len(b))
	if err != nil {
		return err
	}
	if _, err := d.f.WriteAt(b, off); err != nil {
		return err
	}
	return d.f.Sync()
}

// Close releases the image.
func (d *FileFlash) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.f.Close()
	if uerr := d.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// NORFlash is an external SPI flash chip.
type NORFlash struct {
	slots.BlockReaderWriter
	blocks uint
	// ID is the JEDEC ID. Zero models a chip which never answers.
	ID uint32
}

// NewNORFlash returns a chip of blocks blocks stored on dev.
func NewNORFlash(dev slots.BlockReaderWriter, blocks uint, id uint32) *NORFlash {
	return &NORFlash{BlockReaderWriter: dev, blocks: blocks, ID: id}
}

// JEDECID implements storage.ExternalFlash.
func (n *NORFlash) JEDECID() (uint32, error) {
	if n.ID == 0 {
		return 0, errors.New("no response from flash")
	}
	return n.ID, nil
}

// NumBlocks implements storage.ExternalFlash.
func (n *NORFlash) NumBlocks() uint {
	return n.blocks
}

// SPI is the SPI bus, along with whatever hangs off it.
type SPI struct {
	// Flash is the external flash, nil if not fitted.
	Flash *NORFlash
	// NFC is the NFC front-end, nil if not fitted.
	NFC *NFCChip
}

// Transfer implements peripheral.SPI. Raw transfers are not modelled; the
// drivers talk to the attached devices directly.
func (*SPI) Transfer(tx, rx []byte) error {
	return errors.New("raw SPI transfers are not emulated")
}

// PFR is the protected flash region holding the anti-rollback record. It is
// kept in memory, and also in a file if one was given.
type PFR struct {
	mu   sync.Mutex
	path string
	rec  version.Record
	// KeyMissing models a device whose filesystem key was never provisioned.
	KeyMissing bool
}

// OpenPFR loads the record from path, which need not exist yet. An empty path
// gives a fresh in-memory region.
func OpenPFR(path string) (*PFR, error) {
	p := &PFR{path: path}
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read PFR: %v", err)
	}
	if err := cbor.Unmarshal(raw, &p.rec); err != nil {
		return nil, fmt.Errorf("failed to decode PFR %q: %v", path, err)
	}
	return p, nil
}

// ReadRecord implements version.PFR.
func (p *PFR) ReadRecord() (version.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, nil
}

// WriteRecord implements version.PFR.
func (p *PFR) WriteRecord(r version.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path != "" {
		raw, err := cbor.Marshal(r)
		if err != nil {
			return err
		}
		if err := os.WriteFile(p.path, raw, 0o600); err != nil {
			return fmt.Errorf("failed to write PFR: %v", err)
		}
	}
	p.rec = r
	return nil
}

// KeyProvisioned implements version.PFR.
func (p *PFR) KeyProvisioned() (bool, error) {
	return !p.KeyMissing, nil
}
