// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package macts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/internal/testimage"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/macts"
)

const (
	totalBlocks = 400
	tfs1        = 0x54465331 // "TFS1"
)

func setup(t *testing.T, entries []testimage.MacTSEntry) (*chunk.Image, scheme.Options) {
	t.Helper()

	buf := testimage.New(totalBlocks)
	testimage.MacTSMap(buf, entries)

	img, err := chunk.NewImage(buf, buf.Size())
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)

	return img, scheme.Options{Notes: notes.New(logger), Logger: logger}
}

func TestResolveTerminator(t *testing.T) {
	img, opts := setup(t, []testimage.MacTSEntry{
		{Start: 10, Length: 20, FSID: tfs1},
		{Start: 0, Length: 0, FSID: 0},
		{Start: 30, Length: 20, FSID: tfs1},
	})

	assert.Equal(t, scheme.Yes, (&macts.Scheme{}).Detect(img))

	result, err := (&macts.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, 1)

	p := result.Partitions[0]
	assert.EqualValues(t, 10*chunk.BlockSize, p.Start())
	assert.EqualValues(t, 20*chunk.BlockSize, p.Length())
	assert.Equal(t, "TFS1", *p.Type())
}

func TestResolveRoundTrip(t *testing.T) {
	entries := []testimage.MacTSEntry{
		{Start: 2, Length: 198, FSID: tfs1},
		{Start: 200, Length: 100, FSID: 1},
		{Start: 300, Length: 100, FSID: tfs1},
	}

	img, opts := setup(t, entries)

	result, err := (&macts.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	require.Len(t, result.Partitions, len(entries))

	for i, entry := range entries {
		assert.EqualValues(t, uint64(entry.Start)*chunk.BlockSize, result.Partitions[i].Start())
		assert.EqualValues(t, uint64(entry.Length)*chunk.BlockSize, result.Partitions[i].Length())
	}

	assert.Nil(t, result.Partitions[1].Type())
}

func TestResolveOffDisk(t *testing.T) {
	img, opts := setup(t, []testimage.MacTSEntry{
		{Start: 10, Length: 20, FSID: tfs1},
		{Start: 390, Length: 11, FSID: tfs1},
	})

	_, err := (&macts.Scheme{}).Resolve(img, opts)
	assert.ErrorIs(t, err, scheme.ErrFormatIncompatible)
}

func TestResolveFullBlock(t *testing.T) {
	entries := make([]testimage.MacTSEntry, 42)

	for i := range entries {
		entries[i] = testimage.MacTSEntry{Start: uint32(2 + i*9), Length: 9, FSID: tfs1}
	}

	img, opts := setup(t, entries)

	result, err := (&macts.Scheme{}).Resolve(img, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	assert.Len(t, result.Partitions, 42)
}
