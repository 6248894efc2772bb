// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cffa resolves CFFA CompactFlash card layouts.
//
// The card has no partition map: the firmware splits it into fixed 32MB
// regions, either four regions plus up to two large ones (the 4/6 setting)
// or eight regions. The layout is guessed by looking for filesystems.
package cffa

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Layout constants, in blocks.
const (
	RegionBlocks   = 65536
	ExtendedBlocks = 2 * 1024 * 1024

	// MinRegionBlocks is the shortest tail region kept.
	MinRegionBlocks = 1600

	maxExtended = 2
)

// Hypothesis names.
const (
	Layout4 = "4/6"
	Layout8 = "8"
)

type extent struct {
	start, count uint64
}

// layout4 returns the regions of the 4/6 setting.
func layout4(total uint64) []extent {
	regions := fixedRegions(total, 4)

	start := uint64(4 * RegionBlocks)

	for range maxExtended {
		if start >= total {
			break
		}

		regions = append(regions, extent{start, min(ExtendedBlocks, total-start)})
		start += ExtendedBlocks
	}

	return regions
}

// layout8 returns the regions of the 8 setting.
func layout8(total uint64) []extent {
	return fixedRegions(total, 8)
}

func fixedRegions(total uint64, n int) []extent {
	var regions []extent

	for i := range uint64(n) {
		start := i * RegionBlocks
		if start >= total {
			break
		}

		regions = append(regions, extent{start, min(RegionBlocks, total-start)})
	}

	return regions
}

// trial is the outcome of evaluating one layout.
type trial struct {
	name    string
	regions []extent
	dropped []extent
	good    int
}

// evaluate scores a layout by the number of regions holding a recognized filesystem.
//
// It creates no partitions and keeps nothing open.
func evaluate(acc chunk.Access, analyzer partition.Analyzer, name string, regions []extent) (trial, error) {
	t := trial{name: name}

	for _, region := range regions {
		if region.count < MinRegionBlocks {
			t.dropped = append(t.dropped, region)

			continue
		}

		t.regions = append(t.regions, region)

		sub, err := chunk.NewBlockSubset(acc, region.start, region.count)
		if err != nil {
			return t, err
		}

		fsType, err := scheme.Analyze(analyzer, sub)
		if err != nil {
			return t, err
		}

		if fsType != "" {
			t.good++
		}
	}

	return t, nil
}

// Scheme for CFFA cards.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "cffa"
}

// Detect does a cheap check of the image.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) || chunk.NumBlocks(acc) <= RegionBlocks {
		return scheme.No
	}

	return scheme.Maybe
}

// Resolve picks the layout with more recognized filesystems, preferring the 4/6 setting.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	total := chunk.NumBlocks(acc)

	if total <= RegionBlocks {
		return nil, scheme.Incompatible("image fits in a single region")
	}

	if opts.Analyzer == nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), partition.ErrNoAnalyzer)
	}

	best, err := evaluate(acc, opts.Analyzer, Layout4, layout4(total))
	if err != nil {
		return nil, err
	}

	if total > 4*RegionBlocks {
		alt, err := evaluate(acc, opts.Analyzer, Layout8, layout8(total))
		if err != nil {
			return nil, err
		}

		if opts.Logger != nil {
			opts.Logger.Debug("cffa layouts scored",
				zap.Int(Layout4, best.good),
				zap.Int(Layout8, alt.good),
			)
		}

		if alt.good > best.good {
			best = alt
		}
	}

	if best.good == 0 {
		return nil, scheme.Incompatible("no filesystems found in any region")
	}

	for _, region := range best.dropped {
		opts.Notes.AddI("ignoring %d blocks at the end of the card (block %d)", region.count, region.start)
	}

	result := &scheme.Result{Variant: best.name}

	for i, region := range best.regions {
		p, err := scheme.NewBlockPartition(acc, region.start, region.count, s.Name(), uint(i+1), opts)
		if err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	return result, nil
}
