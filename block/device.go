// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides access to disk image files and block devices.
package block

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Common errors.
var (
	ErrReadOnly   = errors.New("device is opened read-only")
	ErrFailedLock = errors.New("failed to acquire lock on the image")
)

// CompressedSuffix is the file name suffix of zstd-compressed images.
const CompressedSuffix = ".zst"

// Device is an opened disk image or block device.
type Device struct {
	f *os.File

	// data holds the decompressed contents of compressed images.
	data *bytes.Reader

	readOnly bool
	locked   bool
}

// Options for Open.
type Options struct {
	Logger *zap.Logger

	ReadOnly    bool
	SkipLocking bool
}

// Option is a function that sets some option.
type Option func(*Options)

// WithReadOnly opens the image for reading only.
func WithReadOnly(readOnly bool) Option {
	return func(o *Options) {
		o.ReadOnly = readOnly
	}
}

// WithSkipLocking skips locking the image file.
func WithSkipLocking(skip bool) Option {
	return func(o *Options) {
		o.SkipLocking = skip
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Open opens a disk image.
//
// Images with the CompressedSuffix are decompressed into memory and are always read-only.
// Unless skipped, the image is locked: shared for read-only access, exclusive otherwise.
func Open(path string, opts ...Option) (*Device, error) {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	compressed := strings.HasSuffix(path, CompressedSuffix)
	if compressed {
		options.ReadOnly = true
	}

	flag := os.O_RDWR
	if options.ReadOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flag|openFlags, 0)
	if err != nil {
		return nil, err
	}

	d := &Device{
		f:        f,
		readOnly: options.ReadOnly,
	}

	if !options.SkipLocking {
		if err = d.TryLock(!options.ReadOnly); err != nil {
			f.Close() //nolint:errcheck

			return nil, fmt.Errorf("%w: %w", ErrFailedLock, err)
		}

		d.locked = true
	}

	if compressed {
		if err = d.decompress(); err != nil {
			d.Close() //nolint:errcheck

			return nil, err
		}

		options.Logger.Debug("decompressed image", zap.String("path", path), zap.Int64("size", d.data.Size()))
	}

	return d, nil
}

func (d *Device) decompress() error {
	zr, err := zstd.NewReader(d.f)
	if err != nil {
		return err
	}

	defer zr.Close()

	contents, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("error decompressing image: %w", err)
	}

	d.data = bytes.NewReader(contents)

	return nil
}

// IsReadOnly returns true if the device was opened read-only.
func (d *Device) IsReadOnly() bool {
	return d.readOnly
}

// GetSize returns the size of the image in bytes.
func (d *Device) GetSize() (uint64, error) {
	if d.data != nil {
		return uint64(d.data.Size()), nil
	}

	st, err := d.f.Stat()
	if err != nil {
		return 0, err
	}

	if st.Mode()&os.ModeDevice != 0 {
		return d.getDeviceSize()
	}

	return uint64(st.Size()), nil
}

// ReadAt implements io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if d.data != nil {
		return d.data.ReadAt(p, off)
	}

	return d.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if d.readOnly {
		return 0, ErrReadOnly
	}

	return d.f.WriteAt(p, off)
}

// Close releases the lock and closes the file.
func (d *Device) Close() error {
	if d.locked {
		d.Unlock() //nolint:errcheck

		d.locked = false
	}

	d.data = nil

	return d.f.Close()
}
