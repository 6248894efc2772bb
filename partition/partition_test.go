// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/internal/testimage"
	"github.com/siderolabs/go-retrodisk/partition"
)

type mockFS struct {
	typ    string
	closed bool
}

func (fs *mockFS) Type() string { return fs.typ }

func (fs *mockFS) Close() error {
	fs.closed = true

	return nil
}

type mockAnalyzer struct {
	result *mockFS
	err    error

	analyzed int
	opened   []string
}

func (a *mockAnalyzer) Analyze(chunk.Access) (partition.FileSystem, error) {
	a.analyzed++

	if a.result == nil {
		return nil, a.err
	}

	return a.result, a.err
}

func (a *mockAnalyzer) Open(_ chunk.Access, fsType string) (partition.FileSystem, error) {
	a.opened = append(a.opened, fsType)

	return &mockFS{typ: fsType}, nil
}

func newSubset(t *testing.T, start, count uint64) chunk.Access {
	t.Helper()

	buf := testimage.New(64)

	img, err := chunk.NewImage(buf, buf.Size())
	require.NoError(t, err)

	sub, err := chunk.NewBlockSubset(img, start, count)
	require.NoError(t, err)

	return sub
}

func TestNewMisaligned(t *testing.T) {
	acc := newSubset(t, 0, 4)

	_, err := partition.New(acc, 100, 4*chunk.BlockSize)
	assert.ErrorIs(t, err, partition.ErrMisaligned)

	_, err = partition.New(acc, 0, 4*chunk.BlockSize+1)
	assert.ErrorIs(t, err, partition.ErrMisaligned)
}

func TestAccessGating(t *testing.T) {
	fs := &mockFS{typ: "prodos"}
	analyzer := &mockAnalyzer{result: fs}

	p, err := partition.New(newSubset(t, 8, 8), 8*chunk.BlockSize, 8*chunk.BlockSize,
		partition.WithAnalyzer(analyzer),
		partition.WithScheme("test", 1),
		partition.WithName("VOL"),
		partition.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, p.Close()) })

	assert.Equal(t, "VOL", *p.Name())
	assert.Nil(t, p.Type())
	assert.EqualValues(t, 1, p.Index())
	assert.EqualValues(t, 16*chunk.BlockSize, p.End())

	data := make([]byte, chunk.BlockSize)

	assert.Equal(t, chunk.AccessOpen, p.Level())
	require.NoError(t, p.Access().WriteBlock(0, data))

	require.NoError(t, p.AnalyzePartition())
	assert.Equal(t, chunk.AccessReadOnly, p.Level())
	assert.Same(t, fs, p.FileSystem())
	assert.Equal(t, "prodos", p.LastFileSystemType())

	assert.ErrorIs(t, p.Access().WriteBlock(0, data), chunk.ErrAccessDenied)
	require.NoError(t, p.Access().ReadBlock(0, data))

	require.NoError(t, p.CloseContents())
	assert.True(t, fs.closed)
	assert.Nil(t, p.FileSystem())
	assert.Equal(t, chunk.AccessOpen, p.Level())

	require.NoError(t, p.Access().WriteBlock(0, data))
}

func TestAnalyzeFailure(t *testing.T) {
	analyzer := &mockAnalyzer{}

	p, err := partition.New(newSubset(t, 0, 8), 0, 8*chunk.BlockSize, partition.WithAnalyzer(analyzer))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, p.Close()) })

	assert.ErrorIs(t, p.AnalyzePartition(), partition.ErrNoFileSystem)
	assert.Equal(t, chunk.AccessOpen, p.Level())

	analyzer.err = errors.New("boom")
	assert.Error(t, p.AnalyzePartition())
	assert.Equal(t, chunk.AccessOpen, p.Level())

	noAnalyzer, err := partition.New(newSubset(t, 0, 8), 0, 8*chunk.BlockSize)
	require.NoError(t, err)

	assert.ErrorIs(t, noAnalyzer.AnalyzePartition(), partition.ErrNoAnalyzer)
	assert.NoError(t, noAnalyzer.Close())
}

func TestNoReanalysis(t *testing.T) {
	analyzer := &mockAnalyzer{result: &mockFS{typ: "hfs"}}
	dos := &mockFS{typ: "dos33"}

	p, err := partition.New(newSubset(t, 0, 8), 0, 8*chunk.BlockSize,
		partition.WithAnalyzer(analyzer),
		partition.WithFileSystem(dos),
	)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, p.Close()) })

	assert.False(t, p.IsReanalyzable())
	assert.Equal(t, chunk.AccessReadOnly, p.Level())
	assert.Equal(t, "dos33", p.FileSystem().Type())

	require.NoError(t, p.CloseContents())
	assert.True(t, dos.closed)

	// re-analysis rebinds the same type instead of probing
	require.NoError(t, p.AnalyzePartition())
	assert.Equal(t, 0, analyzer.analyzed)
	assert.Equal(t, []string{"dos33"}, analyzer.opened)
	assert.Equal(t, "dos33", p.FileSystem().Type())
}

func TestClose(t *testing.T) {
	fs := &mockFS{typ: "prodos"}

	p, err := partition.New(newSubset(t, 0, 8), 0, 8*chunk.BlockSize, partition.WithAnalyzer(&mockAnalyzer{result: fs}))
	require.NoError(t, err)

	require.NoError(t, p.AnalyzePartition())
	require.NoError(t, p.Close())

	assert.True(t, fs.closed)
	assert.Equal(t, chunk.AccessClosed, p.Level())
	assert.ErrorIs(t, p.Access().ReadBlock(0, make([]byte, chunk.BlockSize)), chunk.ErrClosed)
	assert.ErrorIs(t, p.AnalyzePartition(), chunk.ErrClosed)

	// idempotent
	assert.NoError(t, p.Close())
}

func TestStableID(t *testing.T) {
	acc := newSubset(t, 0, 8)

	p1, err := partition.New(acc, 0, 8*chunk.BlockSize, partition.WithScheme("apm", 2))
	require.NoError(t, err)

	p2, err := partition.New(acc, 0, 8*chunk.BlockSize, partition.WithScheme("apm", 2))
	require.NoError(t, err)

	p3, err := partition.New(acc, 0, 8*chunk.BlockSize, partition.WithScheme("cffa", 2))
	require.NoError(t, err)

	assert.Equal(t, p1.ID(), p2.ID())
	assert.NotEqual(t, p1.ID(), p3.ID())

	for _, p := range []*partition.Partition{p1, p2, p3} {
		assert.NoError(t, p.Close())
	}
}

func TestLeakedPartition(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	acc := newSubset(t, 0, 8)

	func() {
		_, err := partition.New(acc, 0, 8*chunk.BlockSize, partition.WithLogger(zap.New(core)))
		require.NoError(t, err)
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()

		return logs.FilterMessage("partition was never closed").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)
}
