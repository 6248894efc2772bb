// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partmap

import (
	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/partition"
)

// Options for Probe.
type Options struct {
	Logger   *zap.Logger
	Analyzer partition.Analyzer

	// Skip lists the schemes which are not tried.
	Skip []string
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithAnalyzer sets the filesystem analyzer.
//
// The analyzer is used by the schemes without a partition map, and is passed to the partitions.
func WithAnalyzer(analyzer partition.Analyzer) Option {
	return func(o *Options) {
		o.Analyzer = analyzer
	}
}

// WithSkipSchemes disables the schemes with the specified names.
func WithSkipSchemes(names ...string) Option {
	return func(o *Options) {
		o.Skip = append(o.Skip, names...)
	}
}
