// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package scheme defines the common interface of partition scheme resolvers.
package scheme

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partition"
)

// ErrFormatIncompatible is returned by Resolve when the image doesn't hold the scheme.
var ErrFormatIncompatible = errors.New("format incompatible with partition scheme")

// Confidence of a Detect call.
type Confidence int

// Confidence levels.
const (
	No Confidence = iota
	Maybe
	Yes
)

func (c Confidence) String() string {
	switch c {
	case No:
		return "no"
	case Maybe:
		return "maybe"
	case Yes:
		return "yes"
	}

	return fmt.Sprintf("confidence(%d)", int(c))
}

// Scheme is a partition scheme resolver.
type Scheme interface {
	// Name returns the name of the partition scheme.
	Name() string
	// Detect does a cheap check of the image.
	//
	// Detect never fails, and returns No for accessors derived from another accessor.
	Detect(chunk.Access) Confidence
	// Resolve parses the partition map.
	//
	// Partitions are returned in the scheme's own directory order.
	Resolve(chunk.Access, Options) (*Result, error)
}

// Options are passed by the prober to Resolve.
type Options struct {
	// Analyzer recognizes filesystems, required by the schemes without a partition map.
	Analyzer partition.Analyzer
	Notes    *notes.Notes
	Logger   *zap.Logger
}

// Result of Resolve.
type Result struct {
	// Variant is set by schemes with several flavors, e.g. OzDOS.
	Variant string

	Partitions []*partition.Partition

	// Overlapping is set if the scheme lays out partitions on top of each other.
	Overlapping bool
}

// Close closes all partitions of the result.
func (r *Result) Close() error {
	var err error

	for _, p := range r.Partitions {
		err = multierr.Append(err, p.Close())
	}

	r.Partitions = nil

	return err
}

// Incompatible wraps ErrFormatIncompatible with the details.
func Incompatible(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrFormatIncompatible)
}

// CheckBase returns true if the accessor is a block-addressable base accessor.
func CheckBase(acc chunk.Access) bool {
	return acc.HasBlocks() && !chunk.IsDerived(acc)
}

// Clamp checks a partition of count blocks at block start against a disk of total blocks.
//
// A partition starting past the end is skipped with an error note,
// a partition running past the end is shortened with a warning.
func Clamp(log *notes.Notes, index uint, start, count, total uint64) (uint64, bool) {
	if start >= total {
		log.AddE("partition #%d starts at block %d past the end of the disk (%d blocks), skipping", index, start, total)

		return 0, false
	}

	if count > total-start {
		log.AddW("partition #%d (start=%d, count=%d) runs past the end of the disk, clamping to %d blocks",
			index, start, count, total-start)

		count = total - start
	}

	return count, true
}

// PartitionOptions returns the partition options shared by all partitions of a scheme.
func (o Options) PartitionOptions(schemeName string, index uint) []partition.Option {
	opts := []partition.Option{
		partition.WithScheme(schemeName, index),
		partition.WithAnalyzer(o.Analyzer),
	}

	if o.Logger != nil {
		opts = append(opts, partition.WithLogger(o.Logger))
	}

	return opts
}

// NewBlockPartition creates a partition of count blocks at block start of the base accessor.
func NewBlockPartition(base chunk.Access, start, count uint64, schemeName string, index uint, opts Options, extra ...partition.Option) (*partition.Partition, error) {
	sub, err := chunk.NewBlockSubset(base, start, count)
	if err != nil {
		return nil, err
	}

	return partition.New(sub, start*chunk.BlockSize, count*chunk.BlockSize, append(opts.PartitionOptions(schemeName, index), extra...)...)
}

// Analyze runs the analyzer on the accessor and reports the filesystem type, or "" if nothing was recognized.
//
// The filesystem is closed before returning.
func Analyze(analyzer partition.Analyzer, acc chunk.Access) (string, error) {
	if analyzer == nil {
		return "", partition.ErrNoAnalyzer
	}

	fs, err := analyzer.Analyze(acc)
	if err != nil || fs == nil {
		return "", err
	}

	fsType := fs.Type()

	return fsType, fs.Close()
}
