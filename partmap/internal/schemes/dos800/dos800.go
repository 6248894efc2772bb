// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dos800 resolves 800K disks holding two 400K DOS volumes.
//
// UniDOS and AmDOS store the volumes one after the other, OzDOS interleaves
// them with the first volume in the first half of every block.
package dos800

import (
	"fmt"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Geometry of the disk and of each volume.
const (
	DiskBlocks      = 1600
	Tracks          = 50
	SectorsPerTrack = 32
)

// Variant names.
const (
	VariantUniDOS = "UniDOS/AmDOS"
	VariantOzDOS  = "OzDOS"
)

// FileSystemType is the type the analyzer must report for each volume.
const FileSystemType = "dos"

// Scheme for the 800K DOS layouts.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "dos800"
}

// Detect does a cheap check of the image.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) || chunk.NumBlocks(acc) != DiskBlocks {
		return scheme.No
	}

	return scheme.Maybe
}

type layout struct {
	variant string
	volumes func(chunk.Access) ([2]chunk.Access, error)
	extent  func(idx int) (uint64, uint64)
	overlap bool
}

var layouts = []layout{
	{
		variant: VariantUniDOS,
		volumes: func(acc chunk.Access) ([2]chunk.Access, error) {
			var vols [2]chunk.Access

			for i := range vols {
				sub, err := chunk.NewTracksOnBlocks(acc, uint64(i)*DiskBlocks/2, Tracks, SectorsPerTrack)
				if err != nil {
					return vols, err
				}

				vols[i] = sub
			}

			return vols, nil
		},
		extent: func(idx int) (uint64, uint64) {
			return uint64(idx) * DiskBlocks / 2, DiskBlocks / 2
		},
	},
	{
		variant: VariantOzDOS,
		volumes: func(acc chunk.Access) ([2]chunk.Access, error) {
			var vols [2]chunk.Access

			for i := range vols {
				sub, err := chunk.NewSplitBlockHalves(acc, 0, Tracks, SectorsPerTrack, i == 1)
				if err != nil {
					return vols, err
				}

				vols[i] = sub
			}

			return vols, nil
		},
		extent: func(int) (uint64, uint64) {
			return 0, DiskBlocks
		},
		overlap: true,
	},
}

// Resolve finds the layout whose both volumes hold a DOS filesystem.
//
// The filesystems are bound to the partitions, which can't be re-probed:
// the outer disk may hold a filesystem of its own.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	if chunk.NumBlocks(acc) != DiskBlocks {
		return nil, scheme.Incompatible("image is not %d blocks", DiskBlocks)
	}

	if opts.Analyzer == nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), partition.ErrNoAnalyzer)
	}

	for _, l := range layouts {
		result, err := s.try(acc, l, opts)
		if err != nil {
			return nil, err
		}

		if result != nil {
			return result, nil
		}
	}

	return nil, scheme.Incompatible("no DOS volumes found")
}

func (s *Scheme) try(acc chunk.Access, l layout, opts scheme.Options) (*scheme.Result, error) {
	vols, err := l.volumes(acc)
	if err != nil {
		return nil, err
	}

	var filesystems [2]partition.FileSystem

	closeAll := func() {
		for _, fs := range filesystems {
			if fs != nil {
				fs.Close() //nolint:errcheck
			}
		}
	}

	for i, vol := range vols {
		fs, err := opts.Analyzer.Analyze(vol)
		if err != nil {
			closeAll()

			return nil, err
		}

		if fs == nil {
			closeAll()

			return nil, nil //nolint:nilnil
		}

		filesystems[i] = fs

		if fs.Type() != FileSystemType {
			closeAll()

			return nil, nil //nolint:nilnil
		}
	}

	result := &scheme.Result{
		Variant:     l.variant,
		Overlapping: l.overlap,
	}

	for i, vol := range vols {
		start, count := l.extent(i)

		p, err := partition.New(vol, start*chunk.BlockSize, count*chunk.BlockSize,
			append(opts.PartitionOptions(s.Name(), uint(i+1)), partition.WithFileSystem(filesystems[i]))...)
		if err != nil {
			result.Close() //nolint:errcheck

			for _, fs := range filesystems[i:] {
				fs.Close() //nolint:errcheck
			}

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	opts.Notes.AddI("found %s volumes", l.variant)

	return result, nil
}
