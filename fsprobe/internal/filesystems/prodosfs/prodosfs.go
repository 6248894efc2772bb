// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package prodosfs probes ProDOS volumes.
package prodosfs

import (
	"errors"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/magic"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/probe"
	"github.com/siderolabs/go-retrodisk/fsprobe/prodos"
)

// the volume directory header has no fixed signature bytes.
var nullMagic = magic.Magic{}

// Probe for the filesystem.
type Probe struct{}

// Magic returns the magic value for the filesystem.
func (p *Probe) Magic() []*magic.Magic {
	return []*magic.Magic{&nullMagic}
}

// Name returns the name of the filesystem.
func (p *Probe) Name() string {
	return "prodos"
}

// Probe runs the further inspection and returns the result if successful.
func (p *Probe) Probe(r chunk.Access) (*probe.Result, error) {
	hdr, err := prodos.ReadVolumeHeader(r)
	if err != nil {
		if errors.Is(err, prodos.ErrNotProDOS) {
			return nil, nil //nolint:nilnil
		}

		return nil, err
	}

	return &probe.Result{
		Label:  pointer.To(hdr.Name),
		Blocks: uint64(hdr.TotalBlocks),
	}, nil
}
