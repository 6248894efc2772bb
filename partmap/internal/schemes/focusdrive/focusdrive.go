// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package focusdrive resolves Parsons Engineering FocusDrive partition maps.
package focusdrive

import (
	"bytes"
	"encoding/binary"
	"slices"
	"strings"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

// Layout constants.
const (
	Signature = "Parsons Engin."

	// MaxPartitions is the number of entries in the map.
	MaxPartitions = 30

	mapBlocks     = 3
	entriesOffset = 0x20
	entrySize     = 16
	nameSize      = 32
)

// Map is the partition map in blocks 0-2.
type Map []byte

// Signature returns the map signature.
func (m Map) Signature() []byte { return m[0x00:0x0e] }

// Reserved returns the header bytes with unknown meaning.
func (m Map) Reserved() []byte { return slices.Concat(m[0x0e:0x10], m[0x11:entriesOffset]) }

// NumPartitions returns the number of partitions.
func (m Map) NumPartitions() int { return int(m[0x10]) }

// Entry returns the map entry (0-based).
func (m Map) Entry(idx int) Entry {
	return Entry(m[entriesOffset+idx*entrySize : entriesOffset+(idx+1)*entrySize])
}

// PartitionName returns the partition name (0-based).
func (m Map) PartitionName(idx int) string {
	offset := chunk.BlockSize + idx*nameSize
	name := m[offset : offset+nameSize]

	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return strings.TrimRight(string(name), " ")
}

// Entry is a partition map entry.
type Entry []byte

// Start returns the first block of the partition.
func (e Entry) Start() uint32 { return binary.LittleEndian.Uint32(e[0x00:]) }

// Count returns the size of the partition in blocks.
func (e Entry) Count() uint32 { return binary.LittleEndian.Uint32(e[0x04:]) }

// Reserved returns the entry bytes with unknown meaning.
func (e Entry) Reserved() []byte { return e[0x08:0x10] }

// Scheme for the partition map.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "focusdrive"
}

func readMap(acc chunk.Access) (Map, error) {
	if chunk.NumBlocks(acc) < mapBlocks {
		return nil, scheme.Incompatible("image too small for a partition map")
	}

	buf := make([]byte, mapBlocks*chunk.BlockSize)

	for block := range uint64(mapBlocks) {
		if err := acc.ReadBlock(block, buf[block*chunk.BlockSize:(block+1)*chunk.BlockSize]); err != nil {
			return nil, err
		}
	}

	return Map(buf), nil
}

// Detect does a cheap check of the image.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) || chunk.NumBlocks(acc) < mapBlocks {
		return scheme.No
	}

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(0, buf); err != nil || string(Map(buf).Signature()) != Signature {
		return scheme.No
	}

	return scheme.Yes
}

// Resolve parses the partition map.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	log := opts.Notes
	total := chunk.NumBlocks(acc)

	m, err := readMap(acc)
	if err != nil {
		return nil, err
	}

	if string(m.Signature()) != Signature {
		return nil, scheme.Incompatible("signature mismatch")
	}

	count := m.NumPartitions()
	if count == 0 || count > MaxPartitions {
		return nil, scheme.Incompatible("invalid partition count %d", count)
	}

	result := &scheme.Result{}

	for idx := range count {
		index := uint(idx + 1)
		entry := m.Entry(idx)

		start, length := uint64(entry.Start()), uint64(entry.Count())

		if length == 0 {
			log.AddW("partition #%d has zero length, skipping", index)

			continue
		}

		length, ok := scheme.Clamp(log, index, start, length, total)
		if !ok {
			continue
		}

		var extra []partition.Option

		if name := m.PartitionName(idx); name != "" {
			extra = append(extra, partition.WithName(name))
		}

		p, err := scheme.NewBlockPartition(acc, start, length, s.Name(), index, opts, extra...)
		if err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	return result, nil
}
