// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition

import (
	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"
)

// Options configure a partition.
type Options struct {
	Analyzer Analyzer
	Logger   *zap.Logger

	// Scheme is the name of the partition scheme which produced the partition.
	Scheme string
	// Index is the 1-based position in the scheme's directory.
	Index uint

	Name *string
	Type *string

	// FileSystem is bound on creation, the partition is then never re-probed.
	FileSystem FileSystem
}

// Option is a function that sets some option.
type Option func(*Options)

// WithAnalyzer sets the filesystem analyzer used by AnalyzePartition.
func WithAnalyzer(analyzer Analyzer) Option {
	return func(o *Options) {
		o.Analyzer = analyzer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithScheme records the scheme name and directory index.
func WithScheme(scheme string, index uint) Option {
	return func(o *Options) {
		o.Scheme = scheme
		o.Index = index
	}
}

// WithName sets the partition name.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = pointer.To(name)
	}
}

// WithType sets the partition type.
func WithType(typ string) Option {
	return func(o *Options) {
		o.Type = pointer.To(typ)
	}
}

// WithFileSystem binds an already recognized filesystem and disables re-probing.
//
// Used for partitions whose inner and outer views a probe can't tell apart.
func WithFileSystem(fs FileSystem) Option {
	return func(o *Options) {
		o.FileSystem = fs
	}
}
