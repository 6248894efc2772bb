// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package testimage builds synthetic disk images for tests.
package testimage

import (
	"encoding/binary"
	"io"
)

// Block and sector sizes.
const (
	BlockSize  = 512
	SectorSize = 256
)

// Buffer is an in-memory image implementing io.ReaderAt and io.WriterAt.
type Buffer []byte

// New allocates a zeroed image of the specified number of blocks.
func New(blocks uint64) Buffer {
	return make(Buffer, blocks*BlockSize)
}

// ReadAt implements io.ReaderAt.
func (b Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}

	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt implements io.WriterAt.
func (b Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > int64(len(b)) {
		return 0, io.ErrShortWrite
	}

	return copy(b[off:], p), nil
}

// Size returns the image size in bytes.
func (b Buffer) Size() uint64 {
	return uint64(len(b))
}

// Block returns the slice holding a block.
func (b Buffer) Block(block uint64) []byte {
	return b[block*BlockSize : (block+1)*BlockSize]
}

// Fill sets every byte of the block range to v.
func (b Buffer) Fill(start, count uint64, v byte) {
	region := b[start*BlockSize : (start+count)*BlockSize]

	for i := range region {
		region[i] = v
	}
}

// Image is an in-memory image with direct access to its blocks.
type Image interface {
	Block(block uint64) []byte
}

// ProDOSVolume writes a ProDOS volume directory header at block start+2.
func ProDOSVolume(b Image, start uint64, totalBlocks uint16, name string) {
	blk := b.Block(start + 2)

	binary.LittleEndian.PutUint16(blk[0x00:], 0)
	binary.LittleEndian.PutUint16(blk[0x02:], 0)
	blk[0x04] = 0xf0 | byte(len(name))
	copy(blk[0x05:0x14], name)
	blk[0x22] = 0xc3
	blk[0x23] = 0x27
	blk[0x24] = 0x0d
	binary.LittleEndian.PutUint16(blk[0x27:], 6)
	binary.LittleEndian.PutUint16(blk[0x29:], totalBlocks)
}

// ProDOSEntry writes a file entry into the first volume directory block (index 1..12).
func ProDOSEntry(b Image, start uint64, index int, storageType byte, name string, fileType byte, keyBlock, blocksUsed uint16) {
	blk := b.Block(start + 2)
	entry := blk[0x04+index*0x27 : 0x04+(index+1)*0x27]

	entry[0x00] = storageType<<4 | byte(len(name))
	copy(entry[0x01:0x10], name)
	entry[0x10] = fileType
	binary.LittleEndian.PutUint16(entry[0x11:], keyBlock)
	binary.LittleEndian.PutUint16(entry[0x13:], blocksUsed)
	entry[0x1e] = 0xc3

	binary.LittleEndian.PutUint16(blk[0x25:], binary.LittleEndian.Uint16(blk[0x25:])+1)
}

// HFSVolume writes an HFS master directory block at block start+2.
func HFSVolume(b Image, start uint64, allocBlocks uint16, name string) {
	blk := b.Block(start + 2)

	binary.BigEndian.PutUint16(blk[0x00:], 0x4244)
	binary.BigEndian.PutUint16(blk[0x12:], allocBlocks)
	binary.BigEndian.PutUint32(blk[0x14:], BlockSize)
	blk[0x24] = byte(len(name))
	copy(blk[0x25:0x40], name)
}

// PascalVolume writes an Apple Pascal volume header at block start+2.
func PascalVolume(b Image, start uint64, totalBlocks uint16, name string) {
	blk := b.Block(start + 2)

	binary.LittleEndian.PutUint16(blk[0x00:], 0)
	binary.LittleEndian.PutUint16(blk[0x02:], 6)
	binary.LittleEndian.PutUint16(blk[0x04:], 0)
	blk[0x06] = byte(len(name))
	copy(blk[0x07:0x0e], name)
	binary.LittleEndian.PutUint16(blk[0x0e:], totalBlocks)
}

// DOSVTOC returns a DOS 3.3 volume table of contents sector.
func DOSVTOC(tracks, sectors byte) []byte {
	vtoc := make([]byte, SectorSize)

	vtoc[0x01] = 17
	vtoc[0x02] = sectors - 1
	vtoc[0x03] = 3
	vtoc[0x06] = 254
	vtoc[0x27] = 122
	vtoc[0x34] = tracks
	vtoc[0x35] = sectors
	binary.LittleEndian.PutUint16(vtoc[0x36:], SectorSize)

	return vtoc
}

// DOSCatalog returns a catalog sector linking to the next catalog sector (0/0 ends the chain).
func DOSCatalog(nextTrack, nextSector byte) []byte {
	cat := make([]byte, SectorSize)

	cat[0x01] = nextTrack
	cat[0x02] = nextSector

	return cat
}
