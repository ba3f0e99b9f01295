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

//go:build tamago && arm
// +build tamago,arm

// Package armory runs the device firmware on a USB Armory Mk II.
//
// The Armory has neither an NFC front-end nor external flash, so it always
// comes up externally powered, with the filesystems kept on a reserved area
// of the eMMC. Care must be taken that this area does not overlap the
// firmware image itself.
package armory

import (
	"fmt"

	"github.com/usbarmory/tamago/soc/nxp/usdhc"
)

// maxTransferBytes is the largest single transfer attempted, bounded by the
// DMA memory available.
const maxTransferBytes = 32 * 1024

// MMC is a window of blocks on the eMMC.
type MMC struct {
	Card *usdhc.USDHC
	// Start is the first card block of the window.
	Start uint
	// Blocks is the size of the window.
	Blocks uint
}

// BlockSize implements slots.BlockReaderWriter.
func (d *MMC) BlockSize() uint {
	return uint(d.Card.Info().BlockSize)
}

func (d *MMC) check(lba uint, n int) error {
	bs := d.BlockSize()
	if end := lba + (uint(n)+bs-1)/bs; end > d.Blocks {
		return fmt.Errorf("access to blocks [%d, %d) beyond window of %d", lba, end, d.Blocks)
	}
	return nil
}

// WriteBlocks implements slots.BlockReaderWriter.
func (d *MMC) WriteBlocks(lba uint, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	bs := int(d.BlockSize())
	if r := len(b) % bs; r != 0 {
		b = append(b[:len(b):len(b)], make([]byte, bs-r)...)
	}
	if err := d.check(lba, len(b)); err != nil {
		return err
	}
	lba += d.Start
	for len(b) > 0 {
		n := min(len(b), maxTransferBytes)
		if err := d.Card.WriteBlocks(int(lba), b[:n]); err != nil {
			return err
		}
		b = b[n:]
		lba += uint(n / bs)
	}
	return nil
}

// ReadBlocks implements slots.BlockReaderWriter.
func (d *MMC) ReadBlocks(lba uint, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := d.check(lba, len(b)); err != nil {
		return err
	}
	bs := int(d.BlockSize())
	lba += d.Start
	for len(b) > 0 {
		n := min(len(b), maxTransferBytes)
		if err := d.Card.ReadBlocks(int(lba), b[:n]); err != nil {
			return err
		}
		b = b[n:]
		lba += uint(n / bs)
	}
	return nil
}
