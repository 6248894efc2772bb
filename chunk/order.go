// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

// SectorOrder describes how logical sector numbers map to physical sectors on a 16-sector track.
type SectorOrder int

// Sector orders.
const (
	OrderUnknown SectorOrder = iota
	OrderPhysical
	OrderDOS
	OrderProDOS
	OrderCPM
)

func (o SectorOrder) String() string {
	switch o {
	case OrderPhysical:
		return "physical"
	case OrderDOS:
		return "DOS"
	case OrderProDOS:
		return "ProDOS"
	case OrderCPM:
		return "CP/M"
	case OrderUnknown:
	}

	return "unknown"
}

// skewedSectors is the only track geometry with a sector skew.
const skewedSectors = 16

// logical sector -> physical sector.
var toPhysical = map[SectorOrder][skewedSectors]uint8{
	OrderPhysical: {0x0, 0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8, 0x9, 0xa, 0xb, 0xc, 0xd, 0xe, 0xf},
	OrderDOS:      {0x0, 0xd, 0xb, 0x9, 0x7, 0x5, 0x3, 0x1, 0xe, 0xc, 0xa, 0x8, 0x6, 0x4, 0x2, 0xf},
	OrderProDOS:   {0x0, 0x2, 0x4, 0x6, 0x8, 0xa, 0xc, 0xe, 0x1, 0x3, 0x5, 0x7, 0x9, 0xb, 0xd, 0xf},
	OrderCPM:      {0x0, 0x3, 0x6, 0x9, 0xc, 0xf, 0x2, 0x5, 0x8, 0xb, 0xe, 0x1, 0x4, 0x7, 0xa, 0xd},
}

// physical sector -> logical sector.
var fromPhysical = func() map[SectorOrder][skewedSectors]uint8 {
	m := make(map[SectorOrder][skewedSectors]uint8, len(toPhysical))

	for order, table := range toPhysical {
		var inv [skewedSectors]uint8

		for logical, physical := range table {
			inv[physical] = uint8(logical)
		}

		m[order] = inv
	}

	return m
}()

// translateSector converts a sector number in the requested order to its position
// within a track stored in fileOrder.
func translateSector(sector, sectorsPerTrack uint, requested, fileOrder SectorOrder) (uint, error) {
	if _, ok := toPhysical[requested]; !ok {
		return 0, ErrSectorOrder
	}

	if sectorsPerTrack != skewedSectors || requested == fileOrder {
		return sector, nil
	}

	inv, ok := fromPhysical[fileOrder]
	if !ok {
		return 0, ErrSectorOrder
	}

	return uint(inv[toPhysical[requested][sector]]), nil
}
