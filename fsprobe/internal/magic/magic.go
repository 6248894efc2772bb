// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package magic implements the magic number detection for filesystems.
package magic

import "bytes"

// Magic defines a filesystem magic value.
//
// A Magic with an empty Value matches always.
type Magic struct {
	// Value to search for.
	Value []byte

	// Block which holds the magic value.
	Block uint64
	// Offset in the block where the magic value is located.
	Offset int
}

// IsNull returns true if the magic value matches always.
func (magic *Magic) IsNull() bool {
	return len(magic.Value) == 0
}

// Matches returns true if the magic value is found at the specified offset in the block.
func (magic *Magic) Matches(block []byte) bool {
	if len(block) < magic.Offset+len(magic.Value) {
		return false
	}

	return bytes.Equal(block[magic.Offset:magic.Offset+len(magic.Value)], magic.Value)
}
