// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition

import (
	"cmp"
	"slices"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/notes"
)

// Report is the outcome of Validate.
type Report struct {
	// Valid is false if partitions overlap or run past the end of the disk.
	Valid bool

	// GapBytes is the total size of the areas between partitions not claimed by any.
	GapBytes uint64
	// TailBytes is the size of the unclaimed area after the last partition.
	TailBytes uint64
}

// Validate checks a partition list for overlaps, gaps and coverage of a disk of formattedLength bytes.
//
// Findings are logged to the notes; the list itself is left untouched.
func Validate(parts []*Partition, formattedLength uint64, log *notes.Notes, allowOverlap bool) Report {
	report := Report{Valid: true}

	sorted := slices.Clone(parts)
	slices.SortStableFunc(sorted, func(a, b *Partition) int {
		return cmp.Compare(a.start, b.start)
	})

	var end uint64

	for _, p := range sorted {
		switch {
		case p.start < end:
			if !allowOverlap {
				log.AddE("partition #%d (start=%d, length=%d) overlaps the previous partition ending at %d",
					p.options.Index, p.start, p.length, end)

				report.Valid = false
			}
		case p.start > end:
			gap := p.start - end

			log.AddI("unused area of %d bytes (%d blocks) before partition #%d", gap, gap/chunk.BlockSize, p.options.Index)

			report.GapBytes += gap
		}

		end = max(end, p.End())
	}

	switch {
	case end < formattedLength:
		report.TailBytes = formattedLength - end

		log.AddW("last %d bytes of the disk are not used by any partition", report.TailBytes)
	case end > formattedLength:
		log.AddE("last partition ends at %d, past the end of the disk at %d", end, formattedLength)

		report.Valid = false
	}

	return report
}
