// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partition"
)

func makeParts(t *testing.T, extents ...[2]uint64) []*partition.Partition {
	t.Helper()

	acc := newSubset(t, 0, 8)

	parts := make([]*partition.Partition, 0, len(extents))

	for i, ext := range extents {
		p, err := partition.New(acc, ext[0]*chunk.BlockSize, ext[1]*chunk.BlockSize, partition.WithScheme("test", uint(i+1)))
		require.NoError(t, err)

		t.Cleanup(func() { p.Close() }) //nolint:errcheck

		parts = append(parts, p)
	}

	return parts
}

func TestValidate(t *testing.T) {
	for _, test := range []struct { //nolint:govet
		name    string
		extents [][2]uint64
		total   uint64
		overlap bool

		expected partition.Report
		errors   int
		warnings int
		infos    int
	}{
		{
			name:     "exact",
			extents:  [][2]uint64{{0, 10}, {10, 20}},
			total:    30,
			expected: partition.Report{Valid: true},
		},
		{
			name:     "unsorted with gap and tail",
			extents:  [][2]uint64{{20, 5}, {1, 10}},
			total:    40,
			expected: partition.Report{Valid: true, GapBytes: 10 * chunk.BlockSize, TailBytes: 15 * chunk.BlockSize},
			warnings: 1,
			infos:    2,
		},
		{
			name:     "overlap",
			extents:  [][2]uint64{{0, 10}, {9, 10}},
			total:    19,
			expected: partition.Report{Valid: false},
			errors:   1,
		},
		{
			name:     "declared overlap",
			extents:  [][2]uint64{{0, 10}, {0, 10}},
			total:    10,
			overlap:  true,
			expected: partition.Report{Valid: true},
		},
		{
			name:     "past the end",
			extents:  [][2]uint64{{0, 10}, {10, 10}},
			total:    15,
			expected: partition.Report{Valid: false},
			errors:   1,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			var log notes.Notes

			report := partition.Validate(makeParts(t, test.extents...), test.total*chunk.BlockSize, &log, test.overlap)

			assert.Equal(t, test.expected, report)
			assert.Equal(t, test.errors, log.Count(notes.Error), log.String())
			assert.Equal(t, test.warnings, log.Count(notes.Warning), log.String())
			assert.Equal(t, test.infos, log.Count(notes.Info), log.String())
		})
	}
}

func TestValidateOneByteOverlap(t *testing.T) {
	acc := newSubset(t, 0, 8)

	// partitions are block aligned, so a one byte overlap can only come from
	// an unaligned start which New refuses
	_, err := partition.New(acc, 10*chunk.BlockSize-1, chunk.BlockSize)
	require.ErrorIs(t, err, partition.ErrMisaligned)

	var log notes.Notes

	report := partition.Validate(makeParts(t, [2]uint64{0, 10}, [2]uint64{9, 1}), 10*chunk.BlockSize, &log, false)
	assert.False(t, report.Valid)
	assert.True(t, log.HasErrors())
}

func TestValidateGapNote(t *testing.T) {
	var log notes.Notes

	report := partition.Validate(makeParts(t, [2]uint64{3, 5}), 8*chunk.BlockSize, &log, false)

	assert.True(t, report.Valid)
	assert.EqualValues(t, 3*chunk.BlockSize, report.GapBytes)
	assert.Contains(t, log.String(), "unused area of 1536 bytes (3 blocks) before partition #1")
}
