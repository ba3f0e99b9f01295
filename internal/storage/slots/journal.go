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

// Package slots provides a simple, power-fail resilient record store on top
// of a raw block device.
//
// A device is divided into a Partition of fixed-size Slots. Each slot is an
// append-only journal of records; only the most recent intact record is
// visible, so an interrupted write leaves the previous contents in place.
package slots

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// BlockReaderWriter is the raw storage device.
type BlockReaderWriter interface {
	// BlockSize returns the size in bytes of a single block.
	BlockSize() uint
	// ReadBlocks fills b from consecutive blocks starting at lba.
	// len(b) must be a multiple of the block size.
	ReadBlocks(lba uint, b []byte) error
	// WriteBlocks writes b to consecutive blocks starting at lba.
	// b is padded with zeros to a multiple of the block size.
	WriteBlocks(lba uint, b []byte) error
}

const recordMagic = "KRJ1"

// errNoRecord means a block does not start an intact record.
var errNoRecord = errors.New("no intact record")

// header precedes the payload of every record on the device.
type header struct {
	Magic    [4]byte
	Revision uint32
	Len      uint32
	Sum      [32]byte
}

const (
	headerSize = 4 + 4 + 4 + 32

	// minRecords is the number of maximally sized records a journal must be
	// able to hold. Records never straddle the end of the journal, so with
	// fewer than three a torn write could clobber the only intact record.
	minRecords = 3
)

// journal is the record log backing a single slot.
type journal struct {
	dev   BlockReaderWriter
	first uint
	end   uint
	max   uint

	rev  uint32
	data []byte
	next uint
}

func openJournal(dev BlockReaderWriter, start, length uint) (*journal, error) {
	bs := dev.BlockSize()
	if length*bs/minRecords <= headerSize {
		return nil, fmt.Errorf("journal of %d blocks is too small", length)
	}
	j := &journal{
		dev:   dev,
		first: start,
		end:   start + length,
		max:   length*bs/minRecords - headerSize,
	}
	if err := j.scan(); err != nil {
		return nil, err
	}
	return j, nil
}

// scan locates the newest intact record and the block after it.
func (j *journal) scan() error {
	j.rev, j.data, j.next = 0, nil, j.first
	lba := j.first
loop:
	for lba < j.end {
		h, data, n, err := j.readRecord(lba)
		switch {
		case err != nil && !errors.Is(err, errNoRecord):
			return fmt.Errorf("failed to read block %d: %w", lba, err)
		case err != nil:
			if j.rev > 0 {
				break loop
			}
			// Nothing found yet: either the journal is empty or the first
			// records were damaged by a torn write. Keep looking.
			lba++
		case h.Revision > j.rev:
			j.rev, j.data = h.Revision, data
			lba += n
			j.next = lba
		case h.Revision < j.rev:
			j.next = lba
			break loop
		default:
			return fmt.Errorf("corrupt journal at block %d: revision %d seen twice", lba, h.Revision)
		}
	}
	if j.next >= j.end {
		j.next = j.first
	}
	return nil
}

// readRecord decodes the record starting at lba, returning it along with the
// number of blocks it occupies.
func (j *journal) readRecord(lba uint) (header, []byte, uint, error) {
	var h header
	bs := j.dev.BlockSize()
	blk := make([]byte, bs)
	if err := j.dev.ReadBlocks(lba, blk); err != nil {
		return h, nil, 0, err
	}
	if err := binary.Read(bytes.NewReader(blk), binary.LittleEndian, &h); err != nil {
		return h, nil, 0, err
	}
	if string(h.Magic[:]) != recordMagic {
		return h, nil, 0, errNoRecord
	}
	if uint(h.Len) > j.max {
		return h, nil, 0, fmt.Errorf("%w: block %d claims %d bytes", errNoRecord, lba, h.Len)
	}
	n := blocksFor(headerSize+uint(h.Len), bs)
	if lba+n > j.end {
		return h, nil, 0, fmt.Errorf("%w: block %d overruns journal", errNoRecord, lba)
	}
	if n > 1 {
		blk = make([]byte, n*bs)
		if err := j.dev.ReadBlocks(lba, blk); err != nil {
			return h, nil, 0, err
		}
	}
	data := blk[headerSize : headerSize+h.Len]
	if blake3.Sum256(data) != h.Sum {
		return h, nil, 0, fmt.Errorf("%w: checksum mismatch at block %d", errNoRecord, lba)
	}
	return h, append([]byte(nil), data...), n, nil
}

func (j *journal) append(data []byte) error {
	if uint(len(data)) > j.max {
		return fmt.Errorf("record of %d bytes exceeds slot capacity of %d bytes", len(data), j.max)
	}
	h := header{
		Revision: j.rev + 1,
		Len:      uint32(len(data)),
		Sum:      blake3.Sum256(data),
	}
	copy(h.Magic[:], recordMagic)

	bs := j.dev.BlockSize()
	n := blocksFor(headerSize+uint(len(data)), bs)
	buf := bytes.NewBuffer(make([]byte, 0, n*bs))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return err
	}
	buf.Write(data)
	buf.Write(make([]byte, n*bs-uint(buf.Len())))

	at := j.next
	if at+n > j.end {
		at = j.first
	}
	if err := j.dev.WriteBlocks(at, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write record at block %d: %w", at, err)
	}
	j.rev, j.data = h.Revision, append([]byte(nil), data...)
	j.next = at + n
	if j.next >= j.end {
		j.next = j.first
	}
	return nil
}

// erase zeroes every block of the journal.
func (j *journal) erase() error {
	if err := zeroBlocks(j.dev, j.first, j.end); err != nil {
		return err
	}
	j.rev, j.data, j.next = 0, nil, j.first
	return nil
}

func zeroBlocks(dev BlockReaderWriter, from, to uint) error {
	const chunk = 16
	bs := dev.BlockSize()
	zero := make([]byte, chunk*bs)
	for lba := from; lba < to; lba += chunk {
		n := min(chunk, to-lba)
		if err := dev.WriteBlocks(lba, zero[:n*bs]); err != nil {
			return fmt.Errorf("failed to erase block %d: %w", lba, err)
		}
	}
	return nil
}

func blocksFor(n, bs uint) uint {
	return (n + bs - 1) / bs
}
