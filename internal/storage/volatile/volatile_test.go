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

package volatile

import (
	"bytes"
	"testing"
)

func TestDevice(t *testing.T) {
	d := NewDevice(16, 4)
	if got := d.NumBlocks(); got != 4 {
		t.Errorf("NumBlocks() = %d, want 4", got)
	}
	if err := d.WriteBlocks(1, bytes.Repeat([]byte{0xff}, 32)); err != nil {
		t.Fatalf("WriteBlocks: %v", err)
	}
	// A short write pads the rest of its final block with zeros.
	if err := d.WriteBlocks(2, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBlocks: %v", err)
	}
	got := make([]byte, 32)
	if err := d.ReadBlocks(1, got); err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}
	want := append(bytes.Repeat([]byte{0xff}, 16), 1, 2, 3)
	want = append(want, make([]byte, 13)...)
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBlocks = %x, want %x", got, want)
	}

	for _, lba := range []uint{4, 3} {
		if err := d.WriteBlocks(lba, make([]byte, 32)); err == nil {
			t.Errorf("WriteBlocks(%d) past end succeeded", lba)
		}
	}
	if err := d.ReadBlocks(4, make([]byte, 16)); err == nil {
		t.Error("ReadBlocks past end succeeded")
	}
}
