// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package microdrive resolves MicroDrive IDE card partition maps.
package microdrive

import (
	"encoding/binary"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Layout constants.
const (
	Magic = 0xccca

	// MaxPartitions is the number of slots in each of the two halves of the map.
	MaxPartitions = 8

	// FirstStart is the block where the first partition always begins.
	FirstStart = 256
)

// Header is the partition map in block 0.
type Header []byte

// Magic returns the map signature.
func (h Header) Magic() uint16 { return binary.LittleEndian.Uint16(h[0x00:]) }

// Cylinders returns the drive geometry.
func (h Header) Cylinders() uint16 { return binary.LittleEndian.Uint16(h[0x02:]) }

// Heads returns the drive geometry.
func (h Header) Heads() uint16 { return binary.LittleEndian.Uint16(h[0x06:]) }

// Sectors returns the drive geometry.
func (h Header) Sectors() uint16 { return binary.LittleEndian.Uint16(h[0x08:]) }

// NumPartitions returns the number of partitions in the first and the second half of the map.
func (h Header) NumPartitions() (int, int) { return int(h[0x0c]), int(h[0x0d]) }

// RomVersion returns the firmware version which wrote the map.
func (h Header) RomVersion() uint16 { return binary.LittleEndian.Uint16(h[0x18:]) }

// Start returns the start block of the partition in the slot (0-15).
func (h Header) Start(slot int) uint32 { return h.field(0x20, 0x80, slot) }

// Size returns the size in blocks of the partition in the slot (0-15).
func (h Header) Size(slot int) uint32 { return h.field(0x40, 0xa0, slot) }

func (h Header) field(first, second, slot int) uint32 {
	offset := first
	if slot >= MaxPartitions {
		offset, slot = second, slot-MaxPartitions
	}

	return binary.LittleEndian.Uint32(h[offset+slot*4:])
}

func (h Header) valid() bool {
	first, second := h.NumPartitions()

	return h.Magic() == Magic && first <= MaxPartitions && second <= MaxPartitions && first+second > 0
}

// Scheme for the partition map.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "microdrive"
}

// Detect does a cheap check of the image.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) {
		return scheme.No
	}

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(0, buf); err != nil || !Header(buf).valid() || Header(buf).Start(0) != FirstStart {
		return scheme.No
	}

	return scheme.Yes
}

// Resolve parses the partition map.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	log := opts.Notes
	total := chunk.NumBlocks(acc)

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(0, buf); err != nil {
		return nil, err
	}

	hdr := Header(buf)

	if hdr.Magic() != Magic {
		return nil, scheme.Incompatible("signature mismatch 0x%04x", hdr.Magic())
	}

	if !hdr.valid() {
		first, second := hdr.NumPartitions()

		return nil, scheme.Incompatible("invalid partition counts %d+%d", first, second)
	}

	if hdr.Start(0) != FirstStart {
		return nil, scheme.Incompatible("first partition starts at %d", hdr.Start(0))
	}

	log.AddI("MicroDrive geometry %d/%d/%d, ROM version %d", hdr.Cylinders(), hdr.Heads(), hdr.Sectors(), hdr.RomVersion())

	first, second := hdr.NumPartitions()

	slots := make([]int, 0, first+second)

	for i := range first {
		slots = append(slots, i)
	}

	for i := range second {
		slots = append(slots, MaxPartitions+i)
	}

	result := &scheme.Result{}

	for i, slot := range slots {
		index := uint(i + 1)

		start, count := uint64(hdr.Start(slot)), uint64(hdr.Size(slot))

		if count == 0 {
			log.AddW("partition #%d has zero length, skipping", index)

			continue
		}

		count, ok := scheme.Clamp(log, index, start, count, total)
		if !ok {
			continue
		}

		p, err := scheme.NewBlockPartition(acc, start, count, s.Name(), index, opts)
		if err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	return result, nil
}
