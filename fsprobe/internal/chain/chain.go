// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chain provides a list of probers for different filesystems.
package chain

import (
	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/filesystems/dos"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/filesystems/hfs"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/filesystems/pascal"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/filesystems/prodosfs"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/probe"
)

// Chain is a list of probers.
type Chain []probe.Prober

// MagicMatches returns the probers whose magic value matches the accessor.
func (chain Chain) MagicMatches(r chunk.Access) []probe.Prober {
	var matches []probe.Prober

	blocks := map[uint64][]byte{}

	readBlock := func(block uint64) []byte {
		if buf, ok := blocks[block]; ok {
			return buf
		}

		buf := make([]byte, chunk.BlockSize)

		if err := r.ReadBlock(block, buf); err != nil {
			buf = nil
		}

		blocks[block] = buf

		return buf
	}

	for _, prober := range chain {
		for _, magic := range prober.Magic() {
			if magic.IsNull() {
				matches = append(matches, prober)

				break
			}

			if !r.HasBlocks() || magic.Block >= chunk.NumBlocks(r) {
				continue
			}

			if buf := readBlock(magic.Block); buf != nil && magic.Matches(buf) {
				matches = append(matches, prober)

				break
			}
		}
	}

	return matches
}

// Lookup returns the prober with the specified name.
func (chain Chain) Lookup(name string) probe.Prober {
	for _, prober := range chain {
		if prober.Name() == name {
			return prober
		}
	}

	return nil
}

// Default returns a list of probers for the filesystems.
func Default() Chain {
	return Chain{
		&hfs.Probe{},
		&prodosfs.Probe{},
		&pascal.Probe{},
		&dos.Probe{},
	}
}
