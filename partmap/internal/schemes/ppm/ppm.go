// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ppm resolves Pascal ProFile Manager volumes stored inside a ProDOS volume.
package ppm

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/prodos"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Layout constants.
const (
	AreaName     = "PASCAL.AREA"
	AreaFileType = 0xef
	Magic        = "\x03PPM"

	// MaxVolumes is the number of volume records after the area record.
	MaxVolumes = 31

	headerBlocks = 2
	recordSize   = 8
	descSize     = 16
	countOffset  = 0x100
)

// Header is the two block header at the start of the Pascal area.
type Header []byte

// Record returns the volume record (0 describes the area itself).
func (h Header) Record(idx int) Record { return Record(h[idx*recordSize : (idx+1)*recordSize]) }

// Magic returns the signature stored in the area record.
func (h Header) Magic() string { return string(h[0x04:0x08]) }

// NumVolumes returns the number of volumes.
func (h Header) NumVolumes() int { return int(binary.LittleEndian.Uint16(h[countOffset:])) }

// Description returns the description of the volume.
func (h Header) Description(idx int) string {
	slot := h[chunk.BlockSize+idx*descSize : chunk.BlockSize+(idx+1)*descSize]

	return string(slot[1 : 1+min(int(slot[0]), descSize-1)])
}

// Record is a volume record.
type Record []byte

// Start returns the first block of the volume on the disk.
func (r Record) Start() uint16 { return binary.LittleEndian.Uint16(r[0x00:]) }

// Length returns the size of the volume in blocks.
func (r Record) Length() uint16 { return binary.LittleEndian.Uint16(r[0x02:]) }

// DefaultUnit returns the Pascal unit number the volume is mounted on.
func (r Record) DefaultUnit() byte { return r[0x04] }

// WriteProtected returns true if the volume is write-protected.
func (r Record) WriteProtected() bool { return r[0x05]&0x80 != 0 }

// findArea returns the directory entry of the Pascal area.
func findArea(acc chunk.Access) (*prodos.Entry, error) {
	_, entries, err := prodos.ReadVolumeDirectory(acc)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.StorageType == prodos.StoragePascalArea && entry.FileType == AreaFileType && strings.EqualFold(entry.Name, AreaName) {
			return &entry, nil
		}
	}

	return nil, nil //nolint:nilnil
}

// Scheme for the Pascal area.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "ppm"
}

// Detect does a cheap check of the image.
//
// A Pascal area is an ordinary file of a ProDOS volume, so it is never more than a Maybe.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) {
		return scheme.No
	}

	if area, err := findArea(acc); err != nil || area == nil {
		return scheme.No
	}

	return scheme.Maybe
}

// Resolve parses the header of the Pascal area.
//
// Volume addresses are relative to the start of the enclosing ProDOS volume,
// so acc must be the raw accessor of that volume.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	log := opts.Notes
	total := chunk.NumBlocks(acc)

	area, err := findArea(acc)
	if err != nil {
		if errors.Is(err, prodos.ErrNotProDOS) {
			return nil, scheme.Incompatible("%s", err)
		}

		return nil, err
	}

	if area == nil {
		return nil, scheme.Incompatible("no %s file", AreaName)
	}

	areaStart, areaLength := uint64(area.KeyPointer), uint64(area.BlocksUsed)

	if areaLength < headerBlocks || areaStart+areaLength > total {
		return nil, scheme.Incompatible("%s at %d+%d doesn't fit the volume", AreaName, areaStart, areaLength)
	}

	buf := make([]byte, headerBlocks*chunk.BlockSize)

	for i := range uint64(headerBlocks) {
		if err = acc.ReadBlock(areaStart+i, buf[i*chunk.BlockSize:(i+1)*chunk.BlockSize]); err != nil {
			return nil, err
		}
	}

	hdr := Header(buf)

	if hdr.Magic() != Magic {
		return nil, scheme.Incompatible("header signature mismatch")
	}

	if rec := hdr.Record(0); uint64(rec.Start()) != areaStart || uint64(rec.Length()) != areaLength {
		log.AddW("area header declares %d+%d, directory entry declares %d+%d", rec.Start(), rec.Length(), areaStart, areaLength)
	}

	count := hdr.NumVolumes()
	if count > MaxVolumes {
		return nil, scheme.Incompatible("invalid volume count %d", count)
	}

	result := &scheme.Result{}
	units := map[byte]uint{}

	for idx := 1; idx <= count; idx++ {
		index := uint(idx)
		rec := hdr.Record(idx)

		start, length := uint64(rec.Start()), uint64(rec.Length())

		if length == 0 {
			log.AddW("volume #%d has zero length, skipping", index)

			continue
		}

		if start < areaStart+headerBlocks || start+length > areaStart+areaLength {
			log.AddW("volume #%d (start=%d, length=%d) lies outside of %s", index, start, length, AreaName)
		}

		length, ok := scheme.Clamp(log, index, start, length, total)
		if !ok {
			continue
		}

		if rec.WriteProtected() {
			log.AddI("volume #%d is write-protected", index)
		}

		if unit := rec.DefaultUnit(); unit != 0 {
			if other, ok := units[unit]; ok {
				log.AddW("volumes #%d and #%d both default to unit #%d", other, index, unit)
			} else {
				units[unit] = index
			}
		}

		var extra []partition.Option

		if desc := hdr.Description(idx); desc != "" {
			extra = append(extra, partition.WithName(desc))
		}

		p, err := scheme.NewBlockPartition(acc, start, length, s.Name(), index, opts, extra...)
		if err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	return result, nil
}
