// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

import (
	"errors"
	"fmt"
)

// Gate errors.
var (
	ErrAccessDenied = errors.New("raw access denied: region is owned by a filesystem")
	ErrClosed       = errors.New("chunk access is closed")
)

// AccessLevel is the state of a GatedAccess.
type AccessLevel int

// Access levels.
const (
	// AccessClosed refuses all I/O.
	AccessClosed AccessLevel = iota
	// AccessOpen allows raw reads and writes.
	AccessOpen
	// AccessReadOnly allows raw reads only, a filesystem owns the region.
	AccessReadOnly
)

func (l AccessLevel) String() string {
	switch l {
	case AccessClosed:
		return "closed"
	case AccessOpen:
		return "open"
	case AccessReadOnly:
		return "read-only"
	}

	return fmt.Sprintf("level(%d)", int(l))
}

// GatedAccess wraps an accessor with an access level state machine:
//
//	Closed -> Open <-> ReadOnly -> Closed
//
// Once disposed (closed after having been opened) the gate stays closed.
type GatedAccess struct {
	inner    Access
	level    AccessLevel
	disposed bool
}

// NewGated wraps the accessor, the gate starts closed.
func NewGated(inner Access) *GatedAccess {
	return &GatedAccess{inner: inner}
}

// Level returns the current access level.
func (g *GatedAccess) Level() AccessLevel { return g.level }

// Open allows raw reads and writes.
//
// Valid from Closed (initial) and ReadOnly.
func (g *GatedAccess) Open() error {
	if g.disposed {
		return ErrClosed
	}

	g.level = AccessOpen

	return nil
}

// Protect restricts raw access to reads. Valid from Open only.
func (g *GatedAccess) Protect() error {
	switch g.level {
	case AccessOpen:
		g.level = AccessReadOnly

		return nil
	case AccessReadOnly:
		return nil
	case AccessClosed:
	}

	return ErrClosed
}

// Close disposes the gate, any further I/O fails.
func (g *GatedAccess) Close() {
	g.level = AccessClosed
	g.disposed = true
}

func (g *GatedAccess) checkRead() error {
	if g.level == AccessClosed {
		return ErrClosed
	}

	return nil
}

func (g *GatedAccess) checkWrite() error {
	switch g.level {
	case AccessClosed:
		return ErrClosed
	case AccessReadOnly:
		return ErrAccessDenied
	case AccessOpen:
	}

	return nil
}

// HasBlocks implements Access.
func (g *GatedAccess) HasBlocks() bool { return g.inner.HasBlocks() }

// HasSectors implements Access.
func (g *GatedAccess) HasSectors() bool { return g.inner.HasSectors() }

// FormattedLength implements Access.
func (g *GatedAccess) FormattedLength() uint64 { return g.inner.FormattedLength() }

// NumTracks implements Access.
func (g *GatedAccess) NumTracks() uint { return g.inner.NumTracks() }

// NumSectorsPerTrack implements Access.
func (g *GatedAccess) NumSectorsPerTrack() uint { return g.inner.NumSectorsPerTrack() }

// FileOrder implements Access.
func (g *GatedAccess) FileOrder() SectorOrder { return g.inner.FileOrder() }

// IsReadOnly implements Access.
func (g *GatedAccess) IsReadOnly() bool {
	return g.level != AccessOpen || g.inner.IsReadOnly()
}

// IsModified implements Access.
func (g *GatedAccess) IsModified() bool { return g.inner.IsModified() }

// Parent implements Access.
func (g *GatedAccess) Parent() Access { return g.inner.Parent() }

// ReadBlock implements Access.
func (g *GatedAccess) ReadBlock(block uint64, buf []byte) error {
	if err := g.checkRead(); err != nil {
		return err
	}

	return g.inner.ReadBlock(block, buf)
}

// WriteBlock implements Access.
func (g *GatedAccess) WriteBlock(block uint64, buf []byte) error {
	if err := g.checkWrite(); err != nil {
		return err
	}

	return g.inner.WriteBlock(block, buf)
}

// ReadSector implements Access.
func (g *GatedAccess) ReadSector(track, sector uint, buf []byte, order SectorOrder) error {
	if err := g.checkRead(); err != nil {
		return err
	}

	return g.inner.ReadSector(track, sector, buf, order)
}

// WriteSector implements Access.
func (g *GatedAccess) WriteSector(track, sector uint, buf []byte, order SectorOrder) error {
	if err := g.checkWrite(); err != nil {
		return err
	}

	return g.inner.WriteSector(track, sector, buf, order)
}

// Initialize implements Access.
func (g *GatedAccess) Initialize() error {
	if err := g.checkWrite(); err != nil {
		return err
	}

	return g.inner.Initialize()
}
