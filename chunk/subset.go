// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

import (
	"fmt"
)

// Mode is the address translation rule of a Subset.
type Mode int

// Subset modes.
const (
	// ModeBlocks is a contiguous range of the base's blocks.
	ModeBlocks Mode = iota
	// ModeBlocksOnTracks merges pairs of the base's sectors into blocks.
	ModeBlocksOnTracks
	// ModeTracksOnBlocks splits each of the base's blocks into two DOS-order sectors.
	ModeTracksOnBlocks
	// ModeSplitBlockHalves uses one half of each of the base's blocks as a sector.
	ModeSplitBlockHalves
)

func (m Mode) String() string {
	switch m {
	case ModeBlocks:
		return "blocks"
	case ModeBlocksOnTracks:
		return "blocks-on-tracks"
	case ModeTracksOnBlocks:
		return "tracks-on-blocks"
	case ModeSplitBlockHalves:
		return "split-block-halves"
	}

	return fmt.Sprintf("mode(%d)", int(m))
}

// Subset is an address-translating view over a region of another accessor.
//
// The subset doesn't own the base, and the base must stay open for as long
// as the subset is in use. The declared range is checked against the base
// once, on construction.
type Subset struct {
	base Access
	mode Mode

	// block range in the base (all modes except ModeBlocksOnTracks)
	startBlock uint64
	numBlocks  uint64

	// first track in the base (ModeBlocksOnTracks)
	startTrack uint

	// geometry exposed by the subset
	tracks          uint
	sectorsPerTrack uint

	secondHalf bool
	modified   bool
}

// NewBlockSubset creates a view of count blocks starting at block start.
func NewBlockSubset(base Access, start, count uint64) (*Subset, error) {
	if !base.HasBlocks() {
		return nil, fmt.Errorf("block subset: base has no blocks: %w", ErrNotSupported)
	}

	if count == 0 || start+count > NumBlocks(base) || start+count < start {
		return nil, fmt.Errorf("block subset %d+%d exceeds %d blocks: %w", start, count, NumBlocks(base), ErrOutOfRange)
	}

	return &Subset{
		base:       base,
		mode:       ModeBlocks,
		startBlock: start,
		numBlocks:  count,
	}, nil
}

// NewBlocksOnTracks creates a block view of numTracks tracks of a sector accessor.
//
// On 16-sector tracks blocks use the ProDOS sector pairing, otherwise
// consecutive physical sectors are paired.
func NewBlocksOnTracks(base Access, startTrack, numTracks uint) (*Subset, error) {
	if !base.HasSectors() {
		return nil, fmt.Errorf("blocks-on-tracks: base has no sectors: %w", ErrNotSupported)
	}

	spt := base.NumSectorsPerTrack()
	if spt%2 != 0 {
		return nil, fmt.Errorf("blocks-on-tracks: odd number of sectors per track %d: %w", spt, ErrNotSupported)
	}

	if numTracks == 0 || startTrack+numTracks > base.NumTracks() {
		return nil, fmt.Errorf("blocks-on-tracks %d+%d exceeds %d tracks: %w", startTrack, numTracks, base.NumTracks(), ErrOutOfRange)
	}

	return &Subset{
		base:            base,
		mode:            ModeBlocksOnTracks,
		startTrack:      startTrack,
		numBlocks:       uint64(numTracks) * uint64(spt) / 2,
		tracks:          numTracks,
		sectorsPerTrack: spt,
	}, nil
}

// NewTracksOnBlocks creates a DOS-order sector view of a block accessor, two sectors per block.
func NewTracksOnBlocks(base Access, startBlock uint64, numTracks, sectorsPerTrack uint) (*Subset, error) {
	if !base.HasBlocks() {
		return nil, fmt.Errorf("tracks-on-blocks: base has no blocks: %w", ErrNotSupported)
	}

	if sectorsPerTrack == 0 || sectorsPerTrack%2 != 0 || numTracks == 0 {
		return nil, fmt.Errorf("tracks-on-blocks: invalid geometry %dx%d: %w", numTracks, sectorsPerTrack, ErrNotSupported)
	}

	count := uint64(numTracks) * uint64(sectorsPerTrack) / 2

	if startBlock+count > NumBlocks(base) {
		return nil, fmt.Errorf("tracks-on-blocks %d+%d exceeds %d blocks: %w", startBlock, count, NumBlocks(base), ErrOutOfRange)
	}

	return &Subset{
		base:            base,
		mode:            ModeTracksOnBlocks,
		startBlock:      startBlock,
		numBlocks:       count,
		tracks:          numTracks,
		sectorsPerTrack: sectorsPerTrack,
	}, nil
}

// NewSplitBlockHalves creates a DOS-order sector view from one half of each block of a block accessor.
func NewSplitBlockHalves(base Access, startBlock uint64, numTracks, sectorsPerTrack uint, secondHalf bool) (*Subset, error) {
	if !base.HasBlocks() {
		return nil, fmt.Errorf("split-block halves: base has no blocks: %w", ErrNotSupported)
	}

	if sectorsPerTrack == 0 || numTracks == 0 {
		return nil, fmt.Errorf("split-block halves: invalid geometry %dx%d: %w", numTracks, sectorsPerTrack, ErrNotSupported)
	}

	count := uint64(numTracks) * uint64(sectorsPerTrack)

	if startBlock+count > NumBlocks(base) {
		return nil, fmt.Errorf("split-block halves %d+%d exceeds %d blocks: %w", startBlock, count, NumBlocks(base), ErrOutOfRange)
	}

	return &Subset{
		base:            base,
		mode:            ModeSplitBlockHalves,
		startBlock:      startBlock,
		numBlocks:       count,
		tracks:          numTracks,
		sectorsPerTrack: sectorsPerTrack,
		secondHalf:      secondHalf,
	}, nil
}

// Mode returns the translation mode of the subset.
func (s *Subset) Mode() Mode { return s.mode }

// HasBlocks implements Access.
func (s *Subset) HasBlocks() bool {
	return s.mode == ModeBlocks || s.mode == ModeBlocksOnTracks
}

// HasSectors implements Access.
func (s *Subset) HasSectors() bool {
	return s.mode != ModeBlocks
}

// FormattedLength implements Access.
func (s *Subset) FormattedLength() uint64 {
	if s.mode == ModeBlocks {
		return s.numBlocks * BlockSize
	}

	return uint64(s.tracks) * uint64(s.sectorsPerTrack) * SectorSize
}

// NumTracks implements Access.
func (s *Subset) NumTracks() uint { return s.tracks }

// NumSectorsPerTrack implements Access.
func (s *Subset) NumSectorsPerTrack() uint { return s.sectorsPerTrack }

// FileOrder implements Access.
func (s *Subset) FileOrder() SectorOrder {
	switch s.mode {
	case ModeTracksOnBlocks, ModeSplitBlockHalves:
		return OrderDOS
	case ModeBlocks, ModeBlocksOnTracks:
	}

	return s.base.FileOrder()
}

// IsReadOnly implements Access.
func (s *Subset) IsReadOnly() bool { return s.base.IsReadOnly() }

// IsModified implements Access.
func (s *Subset) IsModified() bool { return s.modified }

// Parent implements Access.
func (s *Subset) Parent() Access { return s.base }

// ReadBlock implements Access.
func (s *Subset) ReadBlock(block uint64, buf []byte) error {
	if err := s.checkBlock(block, buf); err != nil {
		return err
	}

	if s.mode == ModeBlocks {
		return s.base.ReadBlock(s.startBlock+block, buf)
	}

	return s.pairSectors(block, buf, s.base.ReadSector)
}

// WriteBlock implements Access.
func (s *Subset) WriteBlock(block uint64, buf []byte) error {
	if err := s.checkBlock(block, buf); err != nil {
		return err
	}

	if s.IsReadOnly() {
		return ErrReadOnly
	}

	s.modified = true

	if s.mode == ModeBlocks {
		return s.base.WriteBlock(s.startBlock+block, buf)
	}

	return s.pairSectors(block, buf, s.base.WriteSector)
}

func (s *Subset) checkBlock(block uint64, buf []byte) error {
	if err := checkBuf(buf, BlockSize); err != nil {
		return err
	}

	if !s.HasBlocks() {
		return ErrNotSupported
	}

	if block >= s.numBlocks {
		return fmt.Errorf("block %d: %w", block, ErrOutOfRange)
	}

	return nil
}

func (s *Subset) pairSectors(block uint64, buf []byte, op func(track, sector uint, buf []byte, order SectorOrder) error) error {
	perTrack := uint64(s.sectorsPerTrack / 2)
	track := s.startTrack + uint(block/perTrack)
	first := uint(block%perTrack) * 2

	order := OrderProDOS
	if s.sectorsPerTrack != skewedSectors {
		order = OrderPhysical
	}

	if err := op(track, first, buf[:SectorSize], order); err != nil {
		return err
	}

	return op(track, first+1, buf[SectorSize:BlockSize], order)
}

// sectorLocation returns the base block and byte offset within it holding a sector.
func (s *Subset) sectorLocation(track, sector uint, order SectorOrder) (uint64, int, error) {
	if order != OrderDOS {
		return 0, 0, fmt.Errorf("%s subset accessed in %s order: %w", s.mode, order, ErrSectorOrder)
	}

	switch s.mode { //nolint:exhaustive
	case ModeTracksOnBlocks:
		block := s.startBlock + uint64(track)*uint64(s.sectorsPerTrack/2) + uint64(sector/2)

		return block, int(sector%2) * SectorSize, nil
	case ModeSplitBlockHalves:
		block := s.startBlock + uint64(track)*uint64(s.sectorsPerTrack) + uint64(sector)

		offset := 0
		if s.secondHalf {
			offset = SectorSize
		}

		return block, offset, nil
	}

	return 0, 0, ErrNotSupported
}

func (s *Subset) checkSector(track, sector uint, buf []byte) error {
	if err := checkBuf(buf, SectorSize); err != nil {
		return err
	}

	if !s.HasSectors() {
		return ErrNotSupported
	}

	if track >= s.tracks || sector >= s.sectorsPerTrack {
		return fmt.Errorf("track %d sector %d: %w", track, sector, ErrOutOfRange)
	}

	return nil
}

// ReadSector implements Access.
func (s *Subset) ReadSector(track, sector uint, buf []byte, order SectorOrder) error {
	if err := s.checkSector(track, sector, buf); err != nil {
		return err
	}

	if s.mode == ModeBlocksOnTracks {
		return s.base.ReadSector(s.startTrack+track, sector, buf, order)
	}

	block, offset, err := s.sectorLocation(track, sector, order)
	if err != nil {
		return err
	}

	tmp := make([]byte, BlockSize)

	if err = s.base.ReadBlock(block, tmp); err != nil {
		return err
	}

	copy(buf[:SectorSize], tmp[offset:offset+SectorSize])

	return nil
}

// WriteSector implements Access.
func (s *Subset) WriteSector(track, sector uint, buf []byte, order SectorOrder) error {
	if err := s.checkSector(track, sector, buf); err != nil {
		return err
	}

	if s.IsReadOnly() {
		return ErrReadOnly
	}

	if s.mode == ModeBlocksOnTracks {
		s.modified = true

		return s.base.WriteSector(s.startTrack+track, sector, buf, order)
	}

	block, offset, err := s.sectorLocation(track, sector, order)
	if err != nil {
		return err
	}

	tmp := make([]byte, BlockSize)

	if err = s.base.ReadBlock(block, tmp); err != nil {
		return err
	}

	copy(tmp[offset:offset+SectorSize], buf[:SectorSize])

	s.modified = true

	return s.base.WriteBlock(block, tmp)
}

// Initialize implements Access.
func (s *Subset) Initialize() error {
	if s.IsReadOnly() {
		return ErrReadOnly
	}

	return initialize(s)
}
