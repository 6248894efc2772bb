// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partition implements a region of a disk image expected to hold one filesystem.
package partition

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-retrodisk/chunk"
)

// Common errors.
var (
	ErrMisaligned   = errors.New("partition start or length is not a multiple of the block size")
	ErrNoAnalyzer   = errors.New("no filesystem analyzer configured")
	ErrNoFileSystem = errors.New("no filesystem found")
)

// FileSystem is a filesystem bound to a partition.
type FileSystem interface {
	// Type returns the filesystem type tag, e.g. "prodos".
	Type() string
	Close() error
}

// Analyzer recognizes filesystems.
type Analyzer interface {
	// Analyze probes the accessor, it returns nil, nil if nothing was recognized.
	Analyze(chunk.Access) (FileSystem, error)
	// Open binds a filesystem of a known type without probing for others.
	Open(access chunk.Access, fsType string) (FileSystem, error)
}

// idNamespace is the namespace for partition identifiers.
var idNamespace = uuid.MustParse("5a0e2b0c-3c1d-4b8e-9a57-41d0c2f1e6a3")

// Partition is a contiguous block-aligned region of a disk image.
type Partition struct {
	start, length uint64

	// inner is handed to filesystems, gate to everyone else.
	inner chunk.Access
	gate  *chunk.GatedAccess

	fs       FileSystem
	analyzer Analyzer
	logger   *zap.Logger

	reanalyzable bool
	lastFSType   string

	closed bool

	options Options
	id      uuid.UUID
}

// New creates a partition covering length bytes at offset start of the disk, accessed via access.
//
// The partition takes ownership of the accessor, and the caller should Close the partition.
func New(access chunk.Access, start, length uint64, opts ...Option) (*Partition, error) {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if start%chunk.BlockSize != 0 || length%chunk.BlockSize != 0 {
		return nil, fmt.Errorf("start %d length %d: %w", start, length, ErrMisaligned)
	}

	p := &Partition{
		start:        start,
		length:       length,
		inner:        access,
		gate:         chunk.NewGated(access),
		analyzer:     options.Analyzer,
		logger:       options.Logger,
		reanalyzable: true,
		options:      options,
		id:           uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%s/%d/%d/%d", options.Scheme, options.Index, start, length)),
	}

	if err := p.gate.Open(); err != nil {
		return nil, err
	}

	if options.FileSystem != nil {
		p.reanalyzable = false
		p.bind(options.FileSystem)
	}

	runtime.SetFinalizer(p, (*Partition).leaked)

	return p, nil
}

func (p *Partition) leaked() {
	p.logger.Error("partition was never closed",
		zap.Uint64("start", p.start),
		zap.Uint64("length", p.length),
		zap.String("scheme", p.options.Scheme),
	)
}

// ID returns a stable identifier derived from the scheme, index and extent.
func (p *Partition) ID() uuid.UUID { return p.id }

// Index returns the 1-based position in the scheme's directory.
func (p *Partition) Index() uint { return p.options.Index }

// Name returns the partition name, if the scheme records one.
func (p *Partition) Name() *string { return p.options.Name }

// Type returns the partition type, if the scheme records one.
func (p *Partition) Type() *string { return p.options.Type }

// Start returns the offset of the partition on the disk in bytes.
func (p *Partition) Start() uint64 { return p.start }

// Length returns the size of the partition in bytes.
func (p *Partition) Length() uint64 { return p.length }

// End returns the offset just past the partition in bytes.
func (p *Partition) End() uint64 { return p.start + p.length }

// Access returns the gated accessor for the partition contents.
func (p *Partition) Access() chunk.Access { return p.gate }

// Level returns the current access level of the partition.
func (p *Partition) Level() chunk.AccessLevel { return p.gate.Level() }

// FileSystem returns the bound filesystem, or nil.
func (p *Partition) FileSystem() FileSystem { return p.fs }

// IsReanalyzable is false if the partition must be re-bound to the filesystem type it was created with.
func (p *Partition) IsReanalyzable() bool { return p.reanalyzable }

// LastFileSystemType returns the type of the most recently bound filesystem.
func (p *Partition) LastFileSystemType() string { return p.lastFSType }

func (p *Partition) bind(fs FileSystem) {
	p.fs = fs
	p.lastFSType = fs.Type()

	p.gate.Protect() //nolint:errcheck // the gate is open here
}

// AnalyzePartition looks for a filesystem in the partition and binds it.
//
// On success raw writes through Access are refused until CloseContents.
// Partitions that can't be re-probed are re-bound to the last filesystem type.
func (p *Partition) AnalyzePartition() error {
	if p.closed {
		return chunk.ErrClosed
	}

	if p.analyzer == nil {
		return ErrNoAnalyzer
	}

	if err := p.CloseContents(); err != nil {
		p.logger.Warn("error closing previous filesystem", zap.Error(err))
	}

	var (
		fs  FileSystem
		err error
	)

	if p.reanalyzable {
		fs, err = p.analyzer.Analyze(p.inner)
	} else {
		fs, err = p.analyzer.Open(p.inner, p.lastFSType)
	}

	if err != nil {
		return fmt.Errorf("error analyzing partition at %d: %w", p.start, err)
	}

	if fs == nil {
		return ErrNoFileSystem
	}

	p.bind(fs)

	p.logger.Debug("bound filesystem", zap.Uint64("start", p.start), zap.String("type", fs.Type()))

	return nil
}

// CloseContents closes the bound filesystem (if any) and reopens raw access.
func (p *Partition) CloseContents() error {
	if p.fs == nil {
		return nil
	}

	err := p.fs.Close()
	p.fs = nil

	if p.closed {
		return err
	}

	if openErr := p.gate.Open(); openErr != nil {
		return openErr
	}

	return err
}

// Close releases the filesystem and the accessor.
func (p *Partition) Close() error {
	if p.closed {
		return nil
	}

	runtime.SetFinalizer(p, nil)

	err := p.CloseContents()

	p.closed = true
	p.gate.Close()

	return err
}

func (p *Partition) String() string {
	s := fmt.Sprintf("#%d start=%d length=%d", p.options.Index, p.start, p.length)

	if p.options.Name != nil {
		s += fmt.Sprintf(" name=%q", *p.options.Name)
	}

	if p.fs != nil {
		s += " fs=" + p.fs.Type()
	}

	return s
}
