// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fsprobe recognizes the filesystems found in partitions.
package fsprobe

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/internal/chain"
	"github.com/siderolabs/go-retrodisk/partition"
)

// Filesystem type tags.
const (
	TypeProDOS = "prodos"
	TypeHFS    = "hfs"
	TypePascal = "pascal"
	TypeDOS    = "dos"
)

// ErrUnknownType is returned by Open for a filesystem type with no prober.
var ErrUnknownType = errors.New("unknown filesystem type")

// Volume is a recognized filesystem.
//
// Volume only records what probing found, it doesn't own the accessor.
type Volume struct {
	access chunk.Access

	typ    string
	label  *string
	blocks uint64
	closed bool
}

// Type implements partition.FileSystem.
func (v *Volume) Type() string { return v.typ }

// Label returns the volume name, if the filesystem has one.
func (v *Volume) Label() *string { return v.label }

// Blocks returns the size claimed by the filesystem in 512-byte blocks.
func (v *Volume) Blocks() uint64 { return v.blocks }

// Access returns the accessor the volume was found on.
func (v *Volume) Access() chunk.Access { return v.access }

// Close implements partition.FileSystem.
func (v *Volume) Close() error {
	if v.closed {
		return errors.New("volume already closed")
	}

	v.closed = true

	return nil
}

// Options for the Analyzer.
type Options struct {
	Logger *zap.Logger
}

// Option configures the Analyzer.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Analyzer implements partition.Analyzer with the built-in filesystem probers.
type Analyzer struct {
	chain  chain.Chain
	logger *zap.Logger
}

var _ partition.Analyzer = (*Analyzer)(nil)

// New returns an Analyzer.
func New(opts ...Option) *Analyzer {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Analyzer{
		chain:  chain.Default(),
		logger: options.Logger,
	}
}

// Analyze returns the first filesystem recognized on the accessor, or nil, nil.
func (a *Analyzer) Analyze(acc chunk.Access) (partition.FileSystem, error) {
	for _, matched := range a.chain.MagicMatches(acc) {
		res, err := matched.Probe(acc)
		if err != nil {
			// skip failed probes
			a.logger.Debug("probe failed", zap.String("fs", matched.Name()), zap.Error(err))

			continue
		}

		if res == nil {
			continue
		}

		a.logger.Debug("filesystem recognized", zap.String("fs", matched.Name()), zap.Uint64("blocks", res.Blocks))

		return &Volume{
			access: acc,
			typ:    matched.Name(),
			label:  res.Label,
			blocks: res.Blocks,
		}, nil
	}

	return nil, nil //nolint:nilnil
}

// Open binds a filesystem of the specified type without trying the others.
func (a *Analyzer) Open(acc chunk.Access, fsType string) (partition.FileSystem, error) {
	prober := a.chain.Lookup(fsType)
	if prober == nil {
		return nil, fmt.Errorf("%q: %w", fsType, ErrUnknownType)
	}

	res, err := prober.Probe(acc)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, fmt.Errorf("%s: %w", fsType, partition.ErrNoFileSystem)
	}

	return &Volume{
		access: acc,
		typ:    fsType,
		label:  res.Label,
		blocks: res.Blocks,
	}, nil
}
