// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

import (
	"errors"
	"fmt"
	"io"

	"github.com/siderolabs/go-retrodisk/internal/ioutil"
)

// Image is a base accessor over a byte stream.
//
// Block images expose blocks, and additionally 16-sector tracks if their size
// matches a 5.25" floppy. Track/sector images expose sectors, and blocks if
// the track holds an even number of sectors.
type Image struct {
	r io.ReaderAt
	w io.WriterAt

	length uint64

	tracks          uint
	sectorsPerTrack uint
	order           SectorOrder

	hasBlocks  bool
	hasSectors bool

	readOnly bool
	modified bool
}

// Floppy sizes which allow sector access to a block image.
var floppyTracks = map[uint64]uint{
	35 * skewedSectors * SectorSize: 35,
	40 * skewedSectors * SectorSize: 40,
}

// NewImage creates a base accessor for size bytes of r.
//
// The image is writable only if r also implements io.WriterAt.
func NewImage(r io.ReaderAt, size uint64, opts ...Option) (*Image, error) {
	var options Options

	for _, opt := range opts {
		opt(&options)
	}

	img := &Image{
		r:        r,
		length:   size,
		readOnly: options.ReadOnly,
	}

	if w, ok := r.(io.WriterAt); ok && !options.ReadOnly {
		img.w = w
	} else {
		img.readOnly = true
	}

	if options.Tracks == 0 {
		if size == 0 || size%BlockSize != 0 {
			return nil, fmt.Errorf("image size %d is not a multiple of the block size", size)
		}

		img.hasBlocks = true

		if tracks, ok := floppyTracks[size]; ok {
			img.hasSectors = true
			img.tracks = tracks
			img.sectorsPerTrack = skewedSectors
			img.order = OrderProDOS
		}

		return img, nil
	}

	switch options.SectorsPerTrack {
	case 13, 16, 32:
	default:
		return nil, fmt.Errorf("unsupported number of sectors per track: %d", options.SectorsPerTrack)
	}

	if _, ok := toPhysical[options.Order]; !ok {
		return nil, fmt.Errorf("image file order: %w", ErrSectorOrder)
	}

	expected := uint64(options.Tracks) * uint64(options.SectorsPerTrack) * SectorSize
	if size != expected {
		return nil, fmt.Errorf("image size %d doesn't match geometry %dx%d (%d)", size, options.Tracks, options.SectorsPerTrack, expected)
	}

	img.hasSectors = true
	img.tracks = options.Tracks
	img.sectorsPerTrack = options.SectorsPerTrack
	img.order = options.Order
	img.hasBlocks = options.SectorsPerTrack%2 == 0

	return img, nil
}

// HasBlocks implements Access.
func (img *Image) HasBlocks() bool { return img.hasBlocks }

// HasSectors implements Access.
func (img *Image) HasSectors() bool { return img.hasSectors }

// FormattedLength implements Access.
func (img *Image) FormattedLength() uint64 { return img.length }

// NumTracks implements Access.
func (img *Image) NumTracks() uint { return img.tracks }

// NumSectorsPerTrack implements Access.
func (img *Image) NumSectorsPerTrack() uint { return img.sectorsPerTrack }

// FileOrder implements Access.
func (img *Image) FileOrder() SectorOrder { return img.order }

// IsReadOnly implements Access.
func (img *Image) IsReadOnly() bool { return img.readOnly }

// IsModified implements Access.
func (img *Image) IsModified() bool { return img.modified }

// Parent implements Access.
func (img *Image) Parent() Access { return nil }

// ReadBlock implements Access.
func (img *Image) ReadBlock(block uint64, buf []byte) error {
	if err := checkBuf(buf, BlockSize); err != nil {
		return err
	}

	if !img.hasBlocks {
		return ErrNotSupported
	}

	if block >= img.length/BlockSize {
		return fmt.Errorf("block %d: %w", block, ErrOutOfRange)
	}

	if img.tracks != 0 && img.order != OrderProDOS {
		return img.blockSectors(block, buf, img.ReadSector)
	}

	return ioutil.ReadFullAt(img.r, buf[:BlockSize], int64(block)*BlockSize)
}

// WriteBlock implements Access.
func (img *Image) WriteBlock(block uint64, buf []byte) error {
	if err := checkBuf(buf, BlockSize); err != nil {
		return err
	}

	if !img.hasBlocks {
		return ErrNotSupported
	}

	if img.readOnly {
		return ErrReadOnly
	}

	if block >= img.length/BlockSize {
		return fmt.Errorf("block %d: %w", block, ErrOutOfRange)
	}

	if img.tracks != 0 && img.order != OrderProDOS {
		return img.blockSectors(block, buf, img.WriteSector)
	}

	img.modified = true

	return ioutil.WriteFullAt(img.w, buf[:BlockSize], int64(block)*BlockSize)
}

// blockSectors maps a block onto the sector pair that holds it.
func (img *Image) blockSectors(block uint64, buf []byte, op func(track, sector uint, buf []byte, order SectorOrder) error) error {
	perTrack := uint64(img.sectorsPerTrack / 2)
	track := uint(block / perTrack)
	first := uint(block%perTrack) * 2

	order := OrderProDOS
	if img.sectorsPerTrack != skewedSectors {
		order = OrderPhysical
	}

	if err := op(track, first, buf[:SectorSize], order); err != nil {
		return err
	}

	return op(track, first+1, buf[SectorSize:BlockSize], order)
}

func (img *Image) sectorOffset(track, sector uint, order SectorOrder) (int64, error) {
	if !img.hasSectors {
		return 0, ErrNotSupported
	}

	if track >= img.tracks || sector >= img.sectorsPerTrack {
		return 0, fmt.Errorf("track %d sector %d: %w", track, sector, ErrOutOfRange)
	}

	pos, err := translateSector(sector, img.sectorsPerTrack, order, img.order)
	if err != nil {
		return 0, err
	}

	return (int64(track)*int64(img.sectorsPerTrack) + int64(pos)) * SectorSize, nil
}

// ReadSector implements Access.
func (img *Image) ReadSector(track, sector uint, buf []byte, order SectorOrder) error {
	if err := checkBuf(buf, SectorSize); err != nil {
		return err
	}

	offset, err := img.sectorOffset(track, sector, order)
	if err != nil {
		return err
	}

	return ioutil.ReadFullAt(img.r, buf[:SectorSize], offset)
}

// WriteSector implements Access.
func (img *Image) WriteSector(track, sector uint, buf []byte, order SectorOrder) error {
	if err := checkBuf(buf, SectorSize); err != nil {
		return err
	}

	if img.readOnly {
		return ErrReadOnly
	}

	offset, err := img.sectorOffset(track, sector, order)
	if err != nil {
		return err
	}

	img.modified = true

	return ioutil.WriteFullAt(img.w, buf[:SectorSize], offset)
}

// Initialize implements Access.
func (img *Image) Initialize() error {
	if img.readOnly {
		return ErrReadOnly
	}

	return initialize(img)
}

// initialize zero-fills every block, or every sector if blocks are not available.
func initialize(a Access) error {
	if a.HasBlocks() {
		zero := make([]byte, BlockSize)

		for block := range NumBlocks(a) {
			if err := a.WriteBlock(block, zero); err != nil {
				return fmt.Errorf("error zeroing block %d: %w", block, err)
			}
		}

		return nil
	}

	if !a.HasSectors() {
		return errors.New("accessor exposes neither blocks nor sectors")
	}

	zero := make([]byte, SectorSize)
	order := a.FileOrder()

	for track := range a.NumTracks() {
		for sector := range a.NumSectorsPerTrack() {
			if err := a.WriteSector(track, sector, zero, order); err != nil {
				return fmt.Errorf("error zeroing track %d sector %d: %w", track, sector, err)
			}
		}
	}

	return nil
}
