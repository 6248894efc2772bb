// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/block"
	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap"
)

type probeFlags struct {
	order       string
	skipLocking bool
}

func (a *app) probeCommand() *cobra.Command {
	var flags probeFlags

	cmd := &cobra.Command{
		Use:   "probe <image>...",
		Short: "Find the partition scheme of disk images and list the partitions",
		Long: `Find the partition scheme of disk images and list the partitions.

Examples:
  # list the partitions of a CFFA card image
  retrodisk probe cffa.hdv

  # recognize the filesystems too, as JSON
  retrodisk probe --analyze -o json disk.po

  # a 140K image in DOS order without a partition scheme
  retrodisk probe --analyze game.do`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]*Report, 0, len(args))

			for _, path := range args {
				report, err := a.probe(path, flags)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				reports = append(reports, report)
			}

			return writeReports(cmd.OutOrStdout(), a.cfg.Output, reports)
		},
	}

	cmd.Flags().StringVar(&flags.order, "order", "", "sector order of a track/sector image (dos, prodos, physical, cpm), guessed from the file name if empty")
	cmd.Flags().BoolVar(&flags.skipLocking, "skip-locking", false, "don't lock the image file")
	cmd.Flags().StringSlice("skip", nil, "partition schemes to skip")
	cmd.Flags().Bool("analyze", false, "recognize the filesystem of every partition")
	cmd.Flags().Bool("read-only", true, "open images read-only")

	a.v.BindPFlag("skip_schemes", cmd.Flags().Lookup("skip"))   //nolint:errcheck
	a.v.BindPFlag("analyze", cmd.Flags().Lookup("analyze"))     //nolint:errcheck
	a.v.BindPFlag("read_only", cmd.Flags().Lookup("read-only")) //nolint:errcheck

	return cmd
}

func (a *app) probe(path string, flags probeFlags) (*Report, error) {
	dev, err := block.Open(path,
		block.WithReadOnly(a.cfg.ReadOnly),
		block.WithSkipLocking(flags.skipLocking),
		block.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	defer dev.Close() //nolint:errcheck

	size, err := dev.GetSize()
	if err != nil {
		return nil, err
	}

	opts, err := imageOptions(path, size, flags.order)
	if err != nil {
		return nil, err
	}

	if dev.IsReadOnly() {
		opts = append(opts, chunk.WithReadOnly())
	}

	img, err := chunk.NewImage(dev, size, opts...)
	if err != nil {
		return nil, err
	}

	analyzer := fsprobe.New(fsprobe.WithLogger(a.logger))
	report := &Report{
		Image: path,
		Size:  size,
	}

	result, err := partmap.Probe(img,
		partmap.WithLogger(a.logger),
		partmap.WithAnalyzer(analyzer),
		partmap.WithSkipSchemes(a.cfg.SkipSchemes...),
	)

	switch {
	case errors.Is(err, partmap.ErrNoScheme):
		if !a.cfg.Analyze {
			return report, nil
		}

		report.FileSystem, err = a.analyzeImage(analyzer, img)

		return report, err
	case err != nil:
		return nil, err
	}

	defer result.Close() //nolint:errcheck

	report.Scheme = result.Scheme
	report.Variant = result.Variant
	report.Dubious = result.Dubious
	report.Notes = noteReports(result.Notes)

	for _, p := range result.Partitions {
		if a.cfg.Analyze && p.FileSystem() == nil {
			if err = p.AnalyzePartition(); err != nil && !errors.Is(err, partition.ErrNoFileSystem) {
				a.logger.Warn("error analyzing partition", zap.Stringer("partition", p), zap.Error(err))
			}
		}

		report.Partitions = append(report.Partitions, partitionReport(p))
	}

	return report, nil
}

func (a *app) analyzeImage(analyzer *fsprobe.Analyzer, img chunk.Access) (*FileSystemReport, error) {
	fs, err := analyzer.Analyze(img)
	if err != nil || fs == nil {
		return nil, err
	}

	defer fs.Close() //nolint:errcheck

	return fileSystemReport(fs), nil
}

// Geometry of 5.25" floppy images.
const (
	floppySectorSize = 256
	floppyTracks     = 35
)

var sectorOrders = map[string]chunk.SectorOrder{
	"dos":      chunk.OrderDOS,
	"prodos":   chunk.OrderProDOS,
	"physical": chunk.OrderPhysical,
	"cpm":      chunk.OrderCPM,
}

// imageOptions picks the geometry of track/sector images.
//
// Without an explicit order, .do/.dsk floppies are DOS order and .d13 are 13-sector physical order,
// everything else is a block image.
func imageOptions(path string, size uint64, order string) ([]chunk.Option, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, block.CompressedSuffix)))

	sectors := uint64(16)
	if ext == ".d13" {
		sectors = 13
	}

	if order == "" {
		if size%(sectors*floppySectorSize) != 0 {
			return nil, nil
		}

		switch tracks := size / (sectors * floppySectorSize); {
		case tracks != floppyTracks && tracks != floppyTracks+5:
			return nil, nil
		case ext == ".do" || ext == ".dsk":
			order = "dos"
		case ext == ".d13":
			order = "physical"
		default:
			return nil, nil
		}
	}

	sectorOrder, ok := sectorOrders[order]
	if !ok {
		return nil, fmt.Errorf("unknown sector order %q", order)
	}

	return []chunk.Option{
		chunk.WithGeometry(uint(size/(sectors*floppySectorSize)), uint(sectors), sectorOrder),
	}, nil
}
