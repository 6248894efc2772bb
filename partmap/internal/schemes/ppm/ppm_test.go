// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ppm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe/prodos"
	"github.com/siderolabs/go-retrodisk/internal/testimage"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/ppm"
)

const (
	totalBlocks = 1600
	areaStart   = 600
	areaLength  = 1000
)

func newVolume(volumes []testimage.PPMVolume) testimage.Buffer {
	buf := testimage.New(totalBlocks)

	testimage.ProDOSVolume(buf, 0, totalBlocks, "PROFILE")
	testimage.ProDOSEntry(buf, 0, 1, prodos.StorageSeedling, "PRODOS", 0xff, 40, 1)
	testimage.ProDOSEntry(buf, 0, 2, prodos.StoragePascalArea, "PASCAL.AREA", ppm.AreaFileType, areaStart, areaLength)
	testimage.PPMArea(buf, areaStart, areaLength, volumes)

	return buf
}

func setup(t *testing.T, buf testimage.Buffer) (*chunk.Image, scheme.Options) {
	t.Helper()

	img, err := chunk.NewImage(buf, buf.Size())
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)

	return img, scheme.Options{Notes: notes.New(logger), Logger: logger}
}

func TestResolve(t *testing.T) {
	volumes := []testimage.PPMVolume{
		{Description: "SYSTEM", Start: 602, Length: 280},
		{Description: "WORK", Start: 882, Length: 280, WriteProtect: true},
		{Description: "SPARE", Start: 1162, Length: 438},
	}

	img, opts := setup(t, newVolume(volumes))

	assert.Equal(t, scheme.Maybe, (&ppm.Scheme{}).Detect(img))

	result, err := (&ppm.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, len(volumes))

	for i, vol := range volumes {
		p := result.Partitions[i]

		assert.EqualValues(t, i+1, p.Index())
		assert.EqualValues(t, uint64(vol.Start)*chunk.BlockSize, p.Start())
		assert.EqualValues(t, uint64(vol.Length)*chunk.BlockSize, p.Length())
		assert.Equal(t, vol.Description, *p.Name())
	}

	assert.Zero(t, opts.Notes.Count(notes.Warning), opts.Notes.String())
	assert.Equal(t, 1, opts.Notes.Count(notes.Info), opts.Notes.String())
}

func TestResolveUnitConflict(t *testing.T) {
	img, opts := setup(t, newVolume([]testimage.PPMVolume{
		{Description: "ONE", Start: 602, Length: 100, Unit: 5},
		{Description: "TWO", Start: 702, Length: 100, Unit: 5},
		{Description: "THREE", Start: 802, Length: 100},
	}))

	result, err := (&ppm.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, 3)
	assert.Equal(t, 1, opts.Notes.Count(notes.Warning), opts.Notes.String())
	assert.Contains(t, opts.Notes.String(), "volumes #1 and #2 both default to unit #5")
}

func TestResolveOutsideArea(t *testing.T) {
	img, opts := setup(t, newVolume([]testimage.PPMVolume{
		{Description: "LOW", Start: 100, Length: 50},
		{Description: "EMPTY", Start: 700, Length: 0},
	}))

	result, err := (&ppm.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, 1)
	assert.EqualValues(t, 100*chunk.BlockSize, result.Partitions[0].Start())
	assert.Equal(t, 2, opts.Notes.Count(notes.Warning), opts.Notes.String())
}

func TestResolveIncompatible(t *testing.T) {
	for _, test := range []struct {
		name  string
		setup func() testimage.Buffer
	}{
		{
			name: "not prodos",
			setup: func() testimage.Buffer {
				return testimage.New(totalBlocks)
			},
		},
		{
			name: "no area",
			setup: func() testimage.Buffer {
				buf := testimage.New(totalBlocks)
				testimage.ProDOSVolume(buf, 0, totalBlocks, "PLAIN")

				return buf
			},
		},
		{
			name: "bad magic",
			setup: func() testimage.Buffer {
				buf := newVolume(nil)
				copy(buf.Block(areaStart)[4:], "\x03PPX")

				return buf
			},
		},
		{
			name: "too many volumes",
			setup: func() testimage.Buffer {
				buf := newVolume(nil)
				buf.Block(areaStart)[0x100] = ppm.MaxVolumes + 1

				return buf
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			img, opts := setup(t, test.setup())

			_, err := (&ppm.Scheme{}).Resolve(img, opts)
			assert.ErrorIs(t, err, scheme.ErrFormatIncompatible)
		})
	}
}
