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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/status"
	"github.com/google/keyrunner/internal/storage/slots"
)

// ExternalFlash is an SPI NOR flash chip.
type ExternalFlash interface {
	slots.BlockReaderWriter
	// JEDECID reads the manufacturer and device identification.
	JEDECID() (uint32, error)
	// NumBlocks returns the chip size in blocks.
	NumBlocks() uint
}

// DefaultProbeBackOff polls for the chip for up to 200ms after power-up.
func DefaultProbeBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(20*time.Millisecond), 10)
}

// ProbeExternal waits for a freshly powered external flash to identify
// itself and returns a volume over it.
//
// A missing or unresponsive chip is replaced by a RAM volume of fallbackBlocks
// blocks, and status.ExternalFlashError is set. The second return value
// reports whether the volume is RAM backed.
func ProbeExternal(f ExternalFlash, bo backoff.BackOff, fallbackBlocks uint, st *status.Builder) (Volume, bool) {
	const name = "external"
	if f == nil {
		glog.Warning("no external flash fitted, using fallback")
		st.Insert(status.ExternalFlashError)
		return RAMVolume(name, fallbackBlocks), true
	}
	var id uint32
	err := backoff.Retry(func() error {
		var err error
		if id, err = f.JEDECID(); err != nil {
			return err
		}
		if id == 0 || id == 0xffffff {
			return fmt.Errorf("implausible JEDEC ID %06x", id)
		}
		return nil
	}, bo)
	if err != nil {
		glog.Warningf("failed to initialize external flash, using fallback: %v", err)
		st.Insert(status.ExternalFlashError)
		return RAMVolume(name, fallbackBlocks), true
	}
	glog.Infof("external flash %06x, %d blocks", id, f.NumBlocks())
	return Volume{Name: name, Dev: f, Geo: Layout(0, f.NumBlocks(), SlotBlocks)}, false
}
