// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dos probes Apple DOS 3.x volumes.
package dos

import (
	"encoding/binary"
	"fmt"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/magic"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/probe"
)

const (
	vtocTrack  = 17
	vtocSector = 0
)

// DOS lives on tracks, there is nothing to match in a block.
var nullMagic = magic.Magic{}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&nullMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "dos"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r chunk.Access) (*probe.Result, error) {
	if !r.HasSectors() || r.NumTracks() <= vtocTrack {
		return nil, nil //nolint:nilnil
	}

	tracks, sectors := r.NumTracks(), r.NumSectorsPerTrack()

	vtoc := make([]byte, chunk.SectorSize)

	if err := r.ReadSector(vtocTrack, vtocSector, vtoc, chunk.OrderDOS); err != nil {
		return nil, err
	}

	catTrack, catSector := uint(vtoc[0x01]), uint(vtoc[0x02])

	if catTrack == 0 || catTrack >= tracks || catSector >= sectors {
		return nil, nil //nolint:nilnil
	}

	if uint(vtoc[0x34]) != tracks || uint(vtoc[0x35]) != sectors {
		return nil, nil //nolint:nilnil
	}

	if binary.LittleEndian.Uint16(vtoc[0x36:]) != chunk.SectorSize {
		return nil, nil //nolint:nilnil
	}

	// walk the catalog chain to make sure it stays on the disk
	cat := make([]byte, chunk.SectorSize)

	for range tracks * sectors {
		if err := r.ReadSector(catTrack, catSector, cat, chunk.OrderDOS); err != nil {
			return nil, err
		}

		catTrack, catSector = uint(cat[0x01]), uint(cat[0x02])

		if catTrack == 0 {
			return &probe.Result{
				Label:  pointer.To(fmt.Sprintf("DOS 3.%d volume %d", vtoc[0x03], vtoc[0x06])),
				Blocks: r.FormattedLength() / chunk.BlockSize,
			}, nil
		}

		if catTrack >= tracks || catSector >= sectors {
			return nil, nil //nolint:nilnil
		}
	}

	// catalog loops
	return nil, nil //nolint:nilnil
}
