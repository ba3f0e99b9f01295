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

// Package encrypted wraps a block device with AES-XTS sector encryption,
// using the block address as the tweak.
package encrypted

import (
	"crypto/aes"
	"fmt"

	"github.com/google/keyrunner/internal/storage/slots"
	"golang.org/x/crypto/xts"
)

// Device encrypts blocks on their way to the underlying device.
type Device struct {
	dev slots.BlockReaderWriter
	c   *xts.Cipher
}

// New returns a Device over dev. key must be 32 or 64 bytes, selecting
// AES-128 or AES-256.
func New(dev slots.BlockReaderWriter, key []byte) (*Device, error) {
	if bs := dev.BlockSize(); bs%16 != 0 {
		return nil, fmt.Errorf("block size %d is not a multiple of the AES block size", bs)
	}
	c, err := xts.NewCipher(aes.NewCipher, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XTS cipher: %w", err)
	}
	return &Device{dev: dev, c: c}, nil
}

// BlockSize returns the underlying block size.
func (d *Device) BlockSize() uint {
	return d.dev.BlockSize()
}

// ReadBlocks reads and decrypts len(b) bytes starting at lba.
func (d *Device) ReadBlocks(lba uint, b []byte) error {
	bs := d.dev.BlockSize()
	if uint(len(b))%bs != 0 {
		return fmt.Errorf("read of %d bytes is not block aligned", len(b))
	}
	if err := d.dev.ReadBlocks(lba, b); err != nil {
		return err
	}
	for i := uint(0); i*bs < uint(len(b)); i++ {
		blk := b[i*bs : (i+1)*bs]
		d.c.Decrypt(blk, blk, uint64(lba+i))
	}
	return nil
}

// WriteBlocks encrypts and writes b starting at lba.
func (d *Device) WriteBlocks(lba uint, b []byte) error {
	bs := d.dev.BlockSize()
	n := (uint(len(b)) + bs - 1) / bs
	out := make([]byte, n*bs)
	copy(out, b)
	for i := uint(0); i < n; i++ {
		blk := out[i*bs : (i+1)*bs]
		d.c.Encrypt(blk, blk, uint64(lba+i))
	}
	return d.dev.WriteBlocks(lba, out)
}
