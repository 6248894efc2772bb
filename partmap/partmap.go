// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partmap finds the partitions of a disk image.
package partmap

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/chain"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Common errors.
var (
	ErrNoScheme = errors.New("no partition scheme recognized")
	ErrDerived  = errors.New("partition schemes are only probed on a base accessor")
)

// ErrFormatIncompatible is returned when an image doesn't hold the partition scheme.
var ErrFormatIncompatible = scheme.ErrFormatIncompatible

// Result is a resolved partition list.
//
// The caller owns the partitions and should Close the result.
type Result struct {
	// Scheme is the name of the partition scheme.
	Scheme string
	// Variant is set for schemes with several flavors.
	Variant string

	// Partitions in the order of the scheme's directory.
	Partitions []*partition.Partition

	Notes *notes.Notes

	// Dubious is set if the partitions failed validation.
	Dubious bool
	Report  partition.Report
}

// Close closes all partitions.
func (r *Result) Close() error {
	res := scheme.Result{Partitions: r.Partitions}

	r.Partitions = nil

	return res.Close()
}

// Schemes returns the names of the supported schemes in probing order.
func Schemes() []string {
	return chain.Default().Names()
}

type candidate struct {
	scheme     scheme.Scheme
	confidence scheme.Confidence
}

// Probe finds the partition scheme of the image and resolves its partitions.
//
// Every scheme is asked to Detect the image, then the candidates are resolved
// in order of confidence, ties broken by the scheme order. The first scheme
// which resolves wins.
//
// A ProDOS volume holding a Pascal ProFile Manager area resolves to the Pascal
// volumes of the area, the enclosing ProDOS volume is not part of the result.
// Skip "ppm" to keep such disks whole.
func Probe(acc chunk.Access, opts ...Option) (*Result, error) {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Analyzer == nil {
		options.Analyzer = fsprobe.New(fsprobe.WithLogger(options.Logger))
	}

	if chunk.IsDerived(acc) {
		return nil, ErrDerived
	}

	schemes := xslices.Filter(chain.Default(), func(s scheme.Scheme) bool {
		return !slices.Contains(options.Skip, s.Name())
	})

	var candidates []candidate

	for _, s := range schemes {
		confidence := s.Detect(acc)

		options.Logger.Debug("scheme detection", zap.String("scheme", s.Name()), zap.Stringer("confidence", confidence))

		if confidence != scheme.No {
			candidates = append(candidates, candidate{scheme: s, confidence: confidence})
		}
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.confidence, a.confidence)
	})

	for _, c := range candidates {
		logger := options.Logger.With(zap.String("scheme", c.scheme.Name()))
		log := notes.New(logger)

		resolved, err := c.scheme.Resolve(acc, scheme.Options{
			Analyzer: options.Analyzer,
			Notes:    log,
			Logger:   logger,
		})
		if err != nil {
			if errors.Is(err, scheme.ErrFormatIncompatible) {
				logger.Debug("scheme rejected", zap.Error(err))

				continue
			}

			return nil, fmt.Errorf("error resolving %s: %w", c.scheme.Name(), err)
		}

		report := partition.Validate(resolved.Partitions, acc.FormattedLength(), log, resolved.Overlapping)

		return &Result{
			Scheme:     c.scheme.Name(),
			Variant:    resolved.Variant,
			Partitions: resolved.Partitions,
			Notes:      log,
			Dubious:    !report.Valid,
			Report:     report,
		}, nil
	}

	return nil, ErrNoScheme
}
