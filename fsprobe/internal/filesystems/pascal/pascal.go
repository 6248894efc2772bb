// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pascal probes Apple Pascal volumes.
package pascal

import (
	"bytes"
	"encoding/binary"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/magic"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/probe"
)

const (
	volumeBlock   = 2
	maxNameLength = 7
)

var nullMagic = magic.Magic{}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&nullMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "pascal"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r chunk.Access) (*probe.Result, error) {
	if !r.HasBlocks() || chunk.NumBlocks(r) <= volumeBlock {
		return nil, nil //nolint:nilnil
	}

	data := make([]byte, chunk.BlockSize)

	if err := r.ReadBlock(volumeBlock, data); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint16(data[0x00:]) != 0 || binary.LittleEndian.Uint16(data[0x04:]) != 0 {
		return nil, nil //nolint:nilnil
	}

	nameLen := int(data[0x06])
	if nameLen == 0 || nameLen > maxNameLength {
		return nil, nil //nolint:nilnil
	}

	name := data[0x07 : 0x07+nameLen]

	for _, ch := range name {
		if ch <= 0x20 || ch >= 0x7f || bytes.IndexByte([]byte("$=?,[#:"), ch) >= 0 {
			return nil, nil //nolint:nilnil
		}
	}

	totalBlocks := binary.LittleEndian.Uint16(data[0x0e:])
	if totalBlocks <= volumeBlock || uint64(totalBlocks) > chunk.NumBlocks(r) {
		return nil, nil //nolint:nilnil
	}

	return &probe.Result{
		Label:  pointer.To(string(name)),
		Blocks: uint64(totalBlocks),
	}, nil
}
