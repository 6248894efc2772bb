// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package prodos reads the volume directory of ProDOS volumes.
package prodos

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/siderolabs/go-retrodisk/chunk"
)

// ErrNotProDOS is returned when the volume directory header is not valid.
var ErrNotProDOS = errors.New("not a ProDOS volume")

// Storage types.
const (
	StorageDeleted    = 0x0
	StorageSeedling   = 0x1
	StorageSapling    = 0x2
	StorageTree       = 0x3
	StoragePascalArea = 0x4
	StorageSubdir     = 0xd
	StorageVolumeDir  = 0xf
)

// Layout constants.
const (
	VolumeDirBlock  = 2
	EntryLength     = 0x27
	EntriesPerBlock = 0x0d

	entriesOffset = 0x04
	maxDirBlocks  = 64
	maxNameLength = 15
)

// VolumeHeader is the decoded volume directory header.
type VolumeHeader struct {
	Name          string
	FileCount     uint16
	BitmapPointer uint16
	TotalBlocks   uint16
}

// Entry is a volume directory file entry.
type Entry struct {
	StorageType byte
	Name        string
	FileType    byte
	KeyPointer  uint16
	BlocksUsed  uint16
	EOF         uint32
	AuxType     uint16
}

func validName(name []byte) bool {
	if len(name) == 0 || len(name) > maxNameLength {
		return false
	}

	for i, ch := range name {
		switch {
		case ch >= 'A' && ch <= 'Z':
		case i > 0 && (ch >= '0' && ch <= '9' || ch == '.'):
		default:
			return false
		}
	}

	return true
}

// ReadVolumeHeader reads and checks the volume directory header in block 2.
func ReadVolumeHeader(acc chunk.Access) (*VolumeHeader, error) {
	if !acc.HasBlocks() || chunk.NumBlocks(acc) <= VolumeDirBlock+1 {
		return nil, ErrNotProDOS
	}

	blk := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(VolumeDirBlock, blk); err != nil {
		return nil, err
	}

	return parseHeader(blk, chunk.NumBlocks(acc))
}

func parseHeader(blk []byte, numBlocks uint64) (*VolumeHeader, error) {
	if binary.LittleEndian.Uint16(blk[0x00:]) != 0 {
		return nil, ErrNotProDOS
	}

	if blk[0x04]>>4 != StorageVolumeDir {
		return nil, ErrNotProDOS
	}

	name := blk[0x05 : 0x05+int(blk[0x04]&0x0f)]
	if !validName(name) {
		return nil, ErrNotProDOS
	}

	if blk[0x23] != EntryLength || blk[0x24] != EntriesPerBlock {
		return nil, ErrNotProDOS
	}

	hdr := &VolumeHeader{
		Name:          string(name),
		FileCount:     binary.LittleEndian.Uint16(blk[0x25:]),
		BitmapPointer: binary.LittleEndian.Uint16(blk[0x27:]),
		TotalBlocks:   binary.LittleEndian.Uint16(blk[0x29:]),
	}

	if hdr.TotalBlocks <= VolumeDirBlock || uint64(hdr.TotalBlocks) > numBlocks {
		return nil, fmt.Errorf("volume claims %d blocks of %d: %w", hdr.TotalBlocks, numBlocks, ErrNotProDOS)
	}

	if hdr.BitmapPointer <= VolumeDirBlock || hdr.BitmapPointer >= hdr.TotalBlocks {
		return nil, fmt.Errorf("bitmap pointer %d out of range: %w", hdr.BitmapPointer, ErrNotProDOS)
	}

	return hdr, nil
}

// ReadVolumeDirectory reads the volume directory header and all active entries of the volume directory.
func ReadVolumeDirectory(acc chunk.Access) (*VolumeHeader, []Entry, error) {
	hdr, err := ReadVolumeHeader(acc)
	if err != nil {
		return nil, nil, err
	}

	var entries []Entry

	blk := make([]byte, chunk.BlockSize)
	visited := map[uint64]struct{}{}

	for block := uint64(VolumeDirBlock); block != 0; block = uint64(binary.LittleEndian.Uint16(blk[0x02:])) {
		if _, seen := visited[block]; seen || len(visited) >= maxDirBlocks {
			return nil, nil, fmt.Errorf("volume directory chain loops at block %d", block)
		}

		visited[block] = struct{}{}

		if block >= uint64(hdr.TotalBlocks) {
			return nil, nil, fmt.Errorf("volume directory block %d out of range", block)
		}

		if err = acc.ReadBlock(block, blk); err != nil {
			return nil, nil, err
		}

		for idx := range EntriesPerBlock {
			if block == VolumeDirBlock && idx == 0 {
				// volume directory header
				continue
			}

			raw := blk[entriesOffset+idx*EntryLength : entriesOffset+(idx+1)*EntryLength]

			storageType := raw[0x00] >> 4
			if storageType == StorageDeleted {
				continue
			}

			entries = append(entries, Entry{
				StorageType: storageType,
				Name:        string(raw[0x01 : 0x01+int(raw[0x00]&0x0f)]),
				FileType:    raw[0x10],
				KeyPointer:  binary.LittleEndian.Uint16(raw[0x11:]),
				BlocksUsed:  binary.LittleEndian.Uint16(raw[0x13:]),
				EOF:         uint32(raw[0x15]) | uint32(raw[0x16])<<8 | uint32(raw[0x17])<<16,
				AuxType:     binary.LittleEndian.Uint16(raw[0x1f:]),
			})
		}
	}

	return hdr, entries, nil
}
