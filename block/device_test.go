// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-retrodisk/block"
	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/internal/testimage"
	"github.com/siderolabs/go-retrodisk/partmap"
)

func macTSImage() testimage.Buffer {
	buf := testimage.New(400)

	testimage.MacTSMap(buf, []testimage.MacTSEntry{
		{Start: 2, Length: 198, FSID: 0x54465331},
		{Start: 200, Length: 200, FSID: 0x54465331},
	})

	return buf
}

func writeImage(t *testing.T, name string, contents []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	return path
}

func writeCompressed(t *testing.T, name string, contents []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	require.NoError(t, err)

	zw, err := zstd.NewWriter(f)
	require.NoError(t, err)

	_, err = zw.Write(contents)
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return path
}

func probe(t *testing.T, dev *block.Device) *partmap.Result {
	t.Helper()

	size, err := dev.GetSize()
	require.NoError(t, err)

	var opts []chunk.Option

	if dev.IsReadOnly() {
		opts = append(opts, chunk.WithReadOnly())
	}

	img, err := chunk.NewImage(dev, size, opts...)
	require.NoError(t, err)

	result, err := partmap.Probe(img, partmap.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	return result
}

func TestOpenRaw(t *testing.T) {
	path := writeImage(t, "disk.img", macTSImage())

	dev, err := block.Open(path, block.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, dev.Close()) })

	assert.False(t, dev.IsReadOnly())

	size, err := dev.GetSize()
	require.NoError(t, err)
	assert.EqualValues(t, 400*chunk.BlockSize, size)

	result := probe(t, dev)
	assert.Equal(t, "macts", result.Scheme)
	require.Len(t, result.Partitions, 2)

	data := make([]byte, chunk.BlockSize)
	data[0] = 0x42

	require.NoError(t, result.Partitions[1].Access().WriteBlock(0, data))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 0x42, contents[200*chunk.BlockSize])
}

func TestOpenCompressed(t *testing.T) {
	raw := writeImage(t, "disk.img", macTSImage())
	compressed := writeCompressed(t, "disk.img"+block.CompressedSuffix, macTSImage())

	rawDev, err := block.Open(raw, block.WithReadOnly(true))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, rawDev.Close()) })

	dev, err := block.Open(compressed)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, dev.Close()) })

	assert.True(t, dev.IsReadOnly())

	size, err := dev.GetSize()
	require.NoError(t, err)
	assert.EqualValues(t, 400*chunk.BlockSize, size)

	_, err = dev.WriteAt(make([]byte, 16), 0)
	assert.ErrorIs(t, err, block.ErrReadOnly)

	expected := probe(t, rawDev)
	actual := probe(t, dev)

	assert.Equal(t, expected.Scheme, actual.Scheme)
	require.Len(t, actual.Partitions, len(expected.Partitions))

	for i := range expected.Partitions {
		assert.Equal(t, expected.Partitions[i].Start(), actual.Partitions[i].Start())
		assert.Equal(t, expected.Partitions[i].Length(), actual.Partitions[i].Length())
		assert.Equal(t, expected.Partitions[i].ID(), actual.Partitions[i].ID())
	}

	assert.ErrorIs(t, actual.Partitions[0].Access().WriteBlock(0, make([]byte, chunk.BlockSize)), chunk.ErrReadOnly)
}

func TestOpenCorrupt(t *testing.T) {
	path := writeImage(t, "disk.img"+block.CompressedSuffix, []byte("not zstd at all"))

	_, err := block.Open(path)
	assert.Error(t, err)
}

func TestLocking(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no advisory locks")
	}

	path := writeImage(t, "disk.img", macTSImage())

	dev, err := block.Open(path)
	require.NoError(t, err)

	_, err = block.Open(path, block.WithReadOnly(true))
	assert.ErrorIs(t, err, block.ErrFailedLock)

	other, err := block.Open(path, block.WithSkipLocking(true))
	require.NoError(t, err)
	assert.NoError(t, other.Close())

	require.NoError(t, dev.Close())

	reader1, err := block.Open(path, block.WithReadOnly(true))
	require.NoError(t, err)

	reader2, err := block.Open(path, block.WithReadOnly(true))
	require.NoError(t, err)

	assert.NoError(t, reader1.Close())
	assert.NoError(t, reader2.Close())
}
