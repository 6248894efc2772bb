// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chunk provides uniform block and track/sector access to disk image data.
//
// A base accessor (Image) maps a byte stream to blocks and/or sectors,
// a Subset translates addresses into a region of another accessor, and
// GatedAccess restricts raw I/O once a filesystem owns a region.
//
// Accessors never cache: every call is translated and passed straight
// through to the underlying stream.
package chunk

import (
	"errors"
)

// Unit sizes in bytes.
const (
	BlockSize  = 512
	SectorSize = 256
)

// Common errors.
var (
	ErrOutOfRange   = errors.New("chunk address out of range")
	ErrReadOnly     = errors.New("chunk access is read-only")
	ErrNotSupported = errors.New("operation not supported by chunk access")
	ErrSectorOrder  = errors.New("unsupported sector order")
	ErrBufferSize   = errors.New("buffer is too small")
)

// Access is the uniform interface to blocks and track/sector units of a storage stream.
type Access interface {
	// HasBlocks is true if the accessor can address 512-byte blocks.
	HasBlocks() bool
	// HasSectors is true if the accessor can address 256-byte track/sector units.
	HasSectors() bool

	// FormattedLength is the size of the addressable area in bytes.
	FormattedLength() uint64
	// NumTracks returns the number of tracks (zero if sectors are not supported).
	NumTracks() uint
	// NumSectorsPerTrack returns the number of sectors per track (zero if sectors are not supported).
	NumSectorsPerTrack() uint
	// FileOrder returns the order in which sectors are laid out in the underlying stream.
	FileOrder() SectorOrder

	IsReadOnly() bool
	IsModified() bool

	ReadBlock(block uint64, buf []byte) error
	WriteBlock(block uint64, buf []byte) error

	// ReadSector reads a sector, translating the sector number from the specified order.
	ReadSector(track, sector uint, buf []byte, order SectorOrder) error
	// WriteSector writes a sector, translating the sector number from the specified order.
	WriteSector(track, sector uint, buf []byte, order SectorOrder) error

	// Initialize zero-fills every addressable unit.
	Initialize() error

	// Parent returns the accessor this one was derived from, nil for a base accessor.
	Parent() Access
}

// IsDerived returns true if the accessor is a view derived from another accessor.
func IsDerived(a Access) bool {
	return a.Parent() != nil
}

// NumBlocks returns the number of blocks addressable through the accessor.
func NumBlocks(a Access) uint64 {
	if !a.HasBlocks() {
		return 0
	}

	return a.FormattedLength() / BlockSize
}

func checkBuf(buf []byte, size int) error {
	if len(buf) < size {
		return ErrBufferSize
	}

	return nil
}
