// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package probe defines common probe interfaces.
package probe

import (
	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/magic"
)

// Prober is an interface for probing filesystems.
type Prober interface {
	// Name returns the name of the filesystem.
	Name() string
	// Magic returns the magic values for the filesystem, a null magic matches always.
	Magic() []*magic.Magic
	// Probe runs the further inspection and returns the result if successful.
	//
	// Probe returns nil, nil if the filesystem is not recognized.
	Probe(chunk.Access) (*Result, error)
}

// Result is a probe result.
type Result struct {
	Label *string

	// Blocks is the size of the filesystem in 512-byte blocks.
	Blocks uint64
}
