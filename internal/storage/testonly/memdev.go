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

// Package testonly holds storage test helpers.
package testonly

import (
	"errors"
	"testing"

	"github.com/google/keyrunner/internal/storage/volatile"
)

// BlockSize is the block size of devices returned by NewMemDev.
const BlockSize = 512

// NewMemDev returns an in-memory device of numBlocks blocks.
func NewMemDev(t *testing.T, numBlocks uint) *volatile.Device {
	t.Helper()
	return volatile.NewDevice(BlockSize, numBlocks)
}

// ErrInjected is the error returned by a FaultyDev.
var ErrInjected = errors.New("injected device fault")

// FaultyDev wraps a device and fails operations on request.
type FaultyDev struct {
	*volatile.Device
	// FailReads and FailWrites cause the respective operations to fail.
	FailReads, FailWrites bool
	// WriteBudget, when positive, is the number of blocks which may be
	// written before writes start failing. It simulates a torn write.
	WriteBudget int
}

func (f *FaultyDev) ReadBlocks(lba uint, b []byte) error {
	if f.FailReads {
		return ErrInjected
	}
	return f.Device.ReadBlocks(lba, b)
}

func (f *FaultyDev) WriteBlocks(lba uint, b []byte) error {
	if f.FailWrites {
		return ErrInjected
	}
	if f.WriteBudget > 0 {
		n := (len(b) + BlockSize - 1) / BlockSize
		if n > f.WriteBudget {
			err := f.Device.WriteBlocks(lba, b[:f.WriteBudget*BlockSize])
			f.WriteBudget = 0
			f.FailWrites = true
			if err != nil {
				return err
			}
			return ErrInjected
		}
		f.WriteBudget -= n
	}
	return f.Device.WriteBlocks(lba, b)
}
