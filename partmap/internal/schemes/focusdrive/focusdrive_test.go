// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package focusdrive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/internal/testimage"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/focusdrive"
)

const totalBlocks = 2048

func setup(t *testing.T, buf testimage.Buffer) (*chunk.Image, scheme.Options) {
	t.Helper()

	img, err := chunk.NewImage(buf, buf.Size())
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)

	return img, scheme.Options{Notes: notes.New(logger), Logger: logger}
}

func TestResolve(t *testing.T) {
	buf := testimage.New(totalBlocks)

	extents := []testimage.Extent{{Start: 3, Count: 1600}, {Start: 1603, Count: 400}}
	testimage.FocusDriveMap(buf, extents, []string{"Boot", "Work"})

	// unknown fields are left alone
	buf.Block(0)[0x0e] = 0x5a
	buf.Block(0)[0x28] = 0xa5

	img, opts := setup(t, buf)

	assert.Equal(t, scheme.Yes, (&focusdrive.Scheme{}).Detect(img))

	result, err := (&focusdrive.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, 2)

	for i, ext := range extents {
		assert.EqualValues(t, uint64(ext.Start)*chunk.BlockSize, result.Partitions[i].Start())
		assert.EqualValues(t, uint64(ext.Count)*chunk.BlockSize, result.Partitions[i].Length())
	}

	assert.Equal(t, "Boot", *result.Partitions[0].Name())
	assert.Equal(t, "Work", *result.Partitions[1].Name())

	report := partition.Validate(result.Partitions, img.FormattedLength(), opts.Notes, false)
	assert.True(t, report.Valid)
	assert.EqualValues(t, 45*chunk.BlockSize, report.TailBytes)

	m := focusdrive.Map(buf[:3*chunk.BlockSize])
	assert.EqualValues(t, 0x5a, m.Reserved()[0])
	assert.EqualValues(t, 0xa5, m.Entry(0).Reserved()[0])
}

func TestNamesSpanBlocks(t *testing.T) {
	buf := testimage.New(totalBlocks)

	extents := make([]testimage.Extent, focusdrive.MaxPartitions)
	names := make([]string, focusdrive.MaxPartitions)

	for i := range extents {
		extents[i] = testimage.Extent{Start: uint32(3 + i*64), Count: 64}
		names[i] = string(rune('A' + i%26))
	}

	names[len(names)-1] = "Last"

	testimage.FocusDriveMap(buf, extents, names)

	img, opts := setup(t, buf)

	result, err := (&focusdrive.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, focusdrive.MaxPartitions)
	assert.Equal(t, "Last", *result.Partitions[focusdrive.MaxPartitions-1].Name())
}

func TestResolveIncompatible(t *testing.T) {
	for _, test := range []struct {
		name  string
		setup func(testimage.Buffer)
	}{
		{
			name:  "blank",
			setup: func(testimage.Buffer) {},
		},
		{
			name: "too many partitions",
			setup: func(buf testimage.Buffer) {
				testimage.FocusDriveMap(buf, []testimage.Extent{{Start: 3, Count: 100}}, nil)
				buf.Block(0)[0x10] = focusdrive.MaxPartitions + 1
			},
		},
		{
			name: "no partitions",
			setup: func(buf testimage.Buffer) {
				testimage.FocusDriveMap(buf, nil, nil)
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			buf := testimage.New(totalBlocks)
			test.setup(buf)

			img, opts := setup(t, buf)

			_, err := (&focusdrive.Scheme{}).Resolve(img, opts)
			assert.ErrorIs(t, err, scheme.ErrFormatIncompatible)
		})
	}
}
