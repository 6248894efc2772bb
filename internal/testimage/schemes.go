// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package testimage

import (
	"encoding/binary"
)

// APMDDR writes an Apple Partition Map driver descriptor record to block 0.
func APMDDR(b Image, totalBlocks uint32) {
	blk := b.Block(0)

	binary.BigEndian.PutUint16(blk[0x00:], 0x4552)
	binary.BigEndian.PutUint16(blk[0x02:], BlockSize)
	binary.BigEndian.PutUint32(blk[0x04:], totalBlocks)
}

// APMEntry writes the Apple Partition Map entry #index (1-based) to block index.
func APMEntry(b Image, index, mapBlocks, start, count uint32, name, typ string) {
	blk := b.Block(uint64(index))

	binary.BigEndian.PutUint16(blk[0x00:], 0x504d)
	binary.BigEndian.PutUint32(blk[0x04:], mapBlocks)
	binary.BigEndian.PutUint32(blk[0x08:], start)
	binary.BigEndian.PutUint32(blk[0x0c:], count)
	copy(blk[0x10:0x30], name)
	copy(blk[0x30:0x50], typ)
	binary.BigEndian.PutUint32(blk[0x54:], count)
	binary.BigEndian.PutUint32(blk[0x58:], 0x37)
}

// Extent is a partition start and size in blocks.
type Extent struct {
	Start, Count uint32
}

// MicroDriveHeader writes a MicroDrive partition header to block 0.
func MicroDriveHeader(b Image, first, second []Extent) {
	blk := b.Block(0)

	binary.LittleEndian.PutUint16(blk[0x00:], 0xccca)
	binary.LittleEndian.PutUint16(blk[0x02:], 1000)
	binary.LittleEndian.PutUint16(blk[0x06:], 16)
	binary.LittleEndian.PutUint16(blk[0x08:], 63)
	blk[0x0c] = byte(len(first))
	blk[0x0d] = byte(len(second))

	for i, ext := range first {
		binary.LittleEndian.PutUint32(blk[0x20+i*4:], ext.Start)
		binary.LittleEndian.PutUint32(blk[0x40+i*4:], ext.Count)
	}

	for i, ext := range second {
		binary.LittleEndian.PutUint32(blk[0x80+i*4:], ext.Start)
		binary.LittleEndian.PutUint32(blk[0xa0+i*4:], ext.Count)
	}
}

// FocusDriveMap writes a FocusDrive partition map to blocks 0-2.
func FocusDriveMap(b Image, extents []Extent, names []string) {
	blk := b.Block(0)

	copy(blk, "Parsons Engin.")
	blk[0x10] = byte(len(extents))

	for i, ext := range extents {
		binary.LittleEndian.PutUint32(blk[0x20+i*16:], ext.Start)
		binary.LittleEndian.PutUint32(blk[0x24+i*16:], ext.Count)
	}

	for i, name := range names {
		offset := i * 32
		copy(b.Block(1 + uint64(offset/BlockSize))[offset%BlockSize:offset%BlockSize+32], name)
	}
}

// MacTSEntry is a MacTS partition list entry.
type MacTSEntry struct {
	Start, Length, FSID uint32
}

// MacTSMap writes a MacTS partition list to block 1, followed by the terminator.
func MacTSMap(b Image, entries []MacTSEntry) {
	blk := b.Block(1)

	binary.BigEndian.PutUint16(blk[0x00:], 0x5453)

	for i, entry := range entries {
		binary.BigEndian.PutUint32(blk[2+i*12:], entry.Start)
		binary.BigEndian.PutUint32(blk[6+i*12:], entry.Length)
		binary.BigEndian.PutUint32(blk[10+i*12:], entry.FSID)
	}
}

// PPMVolume is a volume of a Pascal ProFile Manager area.
type PPMVolume struct {
	Description  string
	Start        uint16
	Length       uint16
	WriteProtect bool

	// Unit is the default Pascal unit, volumes get 4, 5, ... if zero.
	Unit byte
}

// PPMArea writes the Pascal ProFile Manager header at block areaStart.
func PPMArea(b Image, areaStart, areaLength uint16, volumes []PPMVolume) {
	hdr := b.Block(uint64(areaStart))

	binary.LittleEndian.PutUint16(hdr[0x00:], areaStart)
	binary.LittleEndian.PutUint16(hdr[0x02:], areaLength)
	copy(hdr[0x04:0x08], "\x03PPM")
	binary.LittleEndian.PutUint16(hdr[0x100:], uint16(len(volumes)))

	desc := b.Block(uint64(areaStart) + 1)

	for i, vol := range volumes {
		rec := hdr[(i+1)*8 : (i+2)*8]

		binary.LittleEndian.PutUint16(rec[0x00:], vol.Start)
		binary.LittleEndian.PutUint16(rec[0x02:], vol.Length)
		rec[0x04] = byte(i + 4)

		if vol.Unit != 0 {
			rec[0x04] = vol.Unit
		}

		if vol.WriteProtect {
			rec[0x05] = 0x80
		}

		slot := desc[(i+1)*16 : (i+2)*16]
		slot[0] = byte(len(vol.Description))
		copy(slot[1:], vol.Description)
	}
}
