// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/fsprobe"
	"github.com/siderolabs/go-retrodisk/fsprobe/prodos"
	"github.com/siderolabs/go-retrodisk/internal/testimage"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partmap"
)

func newImage(t *testing.T, buf testimage.Buffer) *chunk.Image {
	t.Helper()

	img, err := chunk.NewImage(buf, buf.Size())
	require.NoError(t, err)

	return img
}

func probe(t *testing.T, acc chunk.Access, opts ...partmap.Option) *partmap.Result {
	t.Helper()

	result, err := partmap.Probe(acc, append([]partmap.Option{partmap.WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, result.Close()) })

	return result
}

func apmImage() testimage.Buffer {
	buf := testimage.New(1600)

	testimage.APMDDR(buf, 1600)
	testimage.APMEntry(buf, 1, 2, 1, 2, "Apple", "Apple_partition_map")
	testimage.APMEntry(buf, 2, 2, 3, 1597, "Disk", "Apple_HFS")
	testimage.HFSVolume(buf, 3, 1595, "Disk")

	return buf
}

func TestProbeAPM(t *testing.T) {
	result := probe(t, newImage(t, apmImage()))

	assert.Equal(t, "apm", result.Scheme)
	assert.False(t, result.Dubious)
	require.Len(t, result.Partitions, 2)

	p := result.Partitions[1]

	require.NoError(t, p.AnalyzePartition())
	assert.Equal(t, fsprobe.TypeHFS, p.FileSystem().Type())
	assert.Equal(t, "Disk", *p.FileSystem().(*fsprobe.Volume).Label()) //nolint:forcetypeassert,errcheck

	assert.ErrorIs(t, p.Access().WriteBlock(0, make([]byte, chunk.BlockSize)), chunk.ErrAccessDenied)

	require.NoError(t, result.Close())
	assert.Equal(t, chunk.AccessClosed, p.Level())
}

func TestProbeOrder(t *testing.T) {
	// a map without DDR is a Maybe, same as the 800K DOS layouts, and APM comes first
	buf := apmImage()
	clear(buf.Block(0))

	result := probe(t, newImage(t, buf))

	assert.Equal(t, "apm", result.Scheme)
	assert.Equal(t, 1, result.Notes.Count(notes.Warning), result.Notes.String())
}

func TestProbeSkip(t *testing.T) {
	_, err := partmap.Probe(newImage(t, apmImage()), partmap.WithSkipSchemes("apm"))
	assert.ErrorIs(t, err, partmap.ErrNoScheme)
}

func TestProbeNoScheme(t *testing.T) {
	_, err := partmap.Probe(newImage(t, testimage.New(1600)))
	assert.ErrorIs(t, err, partmap.ErrNoScheme)
}

func TestUnpartitionedHFS(t *testing.T) {
	// an HFS disk larger than a CFFA region must not be split into regions
	img := testimage.NewSparse(2 * 65536)
	testimage.HFSVolume(img, 0, 65535, "BigDisk")

	acc, err := chunk.NewImage(img, img.Size())
	require.NoError(t, err)

	_, err = partmap.Probe(acc, partmap.WithLogger(zaptest.NewLogger(t)))
	assert.ErrorIs(t, err, partmap.ErrNoScheme)

	fs, err := fsprobe.New().Analyze(acc)
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Equal(t, fsprobe.TypeHFS, fs.Type())
	assert.NoError(t, fs.Close())
}

func TestProbeDerived(t *testing.T) {
	sub, err := chunk.NewBlockSubset(newImage(t, apmImage()), 0, 1600)
	require.NoError(t, err)

	_, err = partmap.Probe(sub)
	assert.ErrorIs(t, err, partmap.ErrDerived)
}

func TestProbeDubious(t *testing.T) {
	buf := testimage.New(4096)
	testimage.MicroDriveHeader(buf, []testimage.Extent{{Start: 256, Count: 1024}, {Start: 1279, Count: 1024}}, nil)

	result := probe(t, newImage(t, buf))

	assert.Equal(t, "microdrive", result.Scheme)
	assert.True(t, result.Dubious)
	assert.True(t, result.Notes.HasErrors())
}

func TestProbeDisjoint(t *testing.T) {
	buf := testimage.New(4096)
	testimage.FocusDriveMap(buf, []testimage.Extent{{Start: 3, Count: 1000}, {Start: 1003, Count: 1000}, {Start: 2003, Count: 2093}}, nil)

	result := probe(t, newImage(t, buf))

	assert.Equal(t, "focusdrive", result.Scheme)
	assert.False(t, result.Dubious)

	for i, a := range result.Partitions {
		for _, b := range result.Partitions[i+1:] {
			assert.True(t, a.End() <= b.Start() || b.End() <= a.Start(), "%s overlaps %s", a, b)
		}
	}
}

func TestProbePPM(t *testing.T) {
	buf := testimage.New(1600)

	testimage.ProDOSVolume(buf, 0, 1600, "PROFILE")
	testimage.ProDOSEntry(buf, 0, 1, prodos.StoragePascalArea, "PASCAL.AREA", 0xef, 800, 800)
	testimage.PPMArea(buf, 800, 800, []testimage.PPMVolume{
		{Description: "APPLE0", Start: 802, Length: 400},
		{Description: "APPLE1", Start: 1202, Length: 398},
	})
	testimage.PascalVolume(buf, 802, 400, "APPLE0")

	result := probe(t, newImage(t, buf))

	assert.Equal(t, "ppm", result.Scheme)
	require.Len(t, result.Partitions, 2)

	require.NoError(t, result.Partitions[0].AnalyzePartition())
	assert.Equal(t, fsprobe.TypePascal, result.Partitions[0].FileSystem().Type())

	// without ppm the disk is a plain ProDOS volume
	_, err := partmap.Probe(newImage(t, buf), partmap.WithSkipSchemes("ppm"))
	assert.ErrorIs(t, err, partmap.ErrNoScheme)
}

func TestSchemes(t *testing.T) {
	assert.Contains(t, partmap.Schemes(), "dos800")
}
