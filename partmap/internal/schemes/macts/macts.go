// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package macts resolves the early Macintosh "TS" partition list.
package macts

import (
	"encoding/binary"
	"strings"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Layout constants.
const (
	Signature = 0x5453 // "TS"

	listBlock    = 1
	entriesStart = 2
	entrySize    = 12
)

// Entry is a partition list entry.
type Entry []byte

// Start returns the first block of the partition.
func (e Entry) Start() uint32 { return binary.BigEndian.Uint32(e[0x00:]) }

// Length returns the size of the partition in blocks.
func (e Entry) Length() uint32 { return binary.BigEndian.Uint32(e[0x04:]) }

// FSID returns the filesystem identifier.
func (e Entry) FSID() uint32 { return binary.BigEndian.Uint32(e[0x08:]) }

// fsidString renders a printable four character code.
func fsidString(id uint32) string {
	var b [4]byte

	binary.BigEndian.PutUint32(b[:], id)

	for _, ch := range b {
		if ch < 0x20 || ch >= 0x7f {
			return ""
		}
	}

	return strings.TrimRight(string(b[:]), " ")
}

// Scheme for the partition list.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "macts"
}

// Detect does a cheap check of the image.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) || chunk.NumBlocks(acc) <= listBlock {
		return scheme.No
	}

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(listBlock, buf); err != nil || binary.BigEndian.Uint16(buf) != Signature {
		return scheme.No
	}

	return scheme.Yes
}

// Resolve parses the partition list.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	total := chunk.NumBlocks(acc)

	if total <= listBlock {
		return nil, scheme.Incompatible("image too small for a partition list")
	}

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(listBlock, buf); err != nil {
		return nil, err
	}

	if sig := binary.BigEndian.Uint16(buf); sig != Signature {
		return nil, scheme.Incompatible("signature mismatch 0x%04x", sig)
	}

	var entries []Entry

	for offset := entriesStart; offset+entrySize <= chunk.BlockSize; offset += entrySize {
		entry := Entry(buf[offset : offset+entrySize])

		if entry.Start() == 0 {
			break
		}

		if uint64(entry.Start())+uint64(entry.Length()) > total {
			return nil, scheme.Incompatible("partition #%d (start=%d, length=%d) runs off the disk (%d blocks)",
				len(entries)+1, entry.Start(), entry.Length(), total)
		}

		entries = append(entries, entry)
	}

	result := &scheme.Result{}

	for i, entry := range entries {
		index := uint(i + 1)

		if entry.Length() == 0 {
			opts.Notes.AddW("partition #%d has zero length, skipping", index)

			continue
		}

		var extra []partition.Option

		if fsid := fsidString(entry.FSID()); fsid != "" {
			extra = append(extra, partition.WithType(fsid))
		}

		p, err := scheme.NewBlockPartition(acc, uint64(entry.Start()), uint64(entry.Length()), s.Name(), index, opts, extra...)
		if err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	return result, nil
}
