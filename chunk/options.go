// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chunk

// Options configure a base image accessor.
type Options struct {
	ReadOnly bool

	// Geometry of a track/sector image.
	//
	// If Tracks is zero, the image is treated as a sequence of blocks.
	Tracks          uint
	SectorsPerTrack uint
	Order           SectorOrder
}

// Option is a function that sets some option.
type Option func(*Options)

// WithReadOnly opens the image for reading only.
func WithReadOnly() Option {
	return func(o *Options) {
		o.ReadOnly = true
	}
}

// WithGeometry declares the image to be a track/sector image stored in the specified order.
func WithGeometry(tracks, sectorsPerTrack uint, order SectorOrder) Option {
	return func(o *Options) {
		o.Tracks = tracks
		o.SectorsPerTrack = sectorsPerTrack
		o.Order = order
	}
}
