// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package hfs probes Macintosh HFS volumes.
package hfs

import (
	"encoding/binary"

	"github.com/siderolabs/go-pointer"
	"golang.org/x/text/encoding/charmap"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/magic"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/probe"
)

const (
	mdbBlock = 2

	// alternate MDB and a reserved block follow the allocation blocks
	trailerBlocks = 2
)

var hfsMagic = magic.Magic{
	Block:  mdbBlock,
	Offset: 0,
	Value:  []byte("BD"),
}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&hfsMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "hfs"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r chunk.Access) (*probe.Result, error) {
	if !r.HasBlocks() || chunk.NumBlocks(r) <= mdbBlock {
		return nil, nil //nolint:nilnil
	}

	mdb := make([]byte, chunk.BlockSize)

	if err := r.ReadBlock(mdbBlock, mdb); err != nil {
		return nil, err
	}

	if !hfsMagic.Matches(mdb) {
		return nil, nil //nolint:nilnil
	}

	allocBlocks := binary.BigEndian.Uint16(mdb[0x12:])
	allocSize := binary.BigEndian.Uint32(mdb[0x14:])

	if allocBlocks == 0 || allocSize == 0 || allocSize%chunk.BlockSize != 0 {
		return nil, nil //nolint:nilnil
	}

	blocks := uint64(allocBlocks) * uint64(allocSize/chunk.BlockSize)
	allocStart := uint64(binary.BigEndian.Uint16(mdb[0x1c:]))

	if allocStart+blocks+trailerBlocks > chunk.NumBlocks(r) {
		return nil, nil //nolint:nilnil
	}

	nameLen := int(mdb[0x24])
	if nameLen == 0 || nameLen > 27 {
		return nil, nil //nolint:nilnil
	}

	name, err := charmap.Macintosh.NewDecoder().Bytes(mdb[0x25 : 0x25+nameLen])
	if err != nil {
		return nil, err
	}

	return &probe.Result{
		Label:  pointer.To(string(name)),
		Blocks: blocks,
	}, nil
}
