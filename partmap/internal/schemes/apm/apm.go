// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package apm resolves Apple Partition Map images.
package apm

import (
	"strings"

	"github.com/siderolabs/go-retrodisk/chunk"
	"github.com/siderolabs/go-retrodisk/partition"
	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
)

const (
	ddrBlock      = 0
	firstMapBlock = 1

	// MaxMapBlocks is the largest partition map accepted.
	MaxMapBlocks = 256

	// StatusValid is the pmPartStatus bit set on entries in use.
	StatusValid = 0x1
)

// TypePartitionMap is the type of the entry describing the map itself.
const TypePartitionMap = "Apple_partition_map"

// Scheme for the partition map.
type Scheme struct{}

// Name returns the name of the partition scheme.
func (s *Scheme) Name() string {
	return "apm"
}

// Detect does a cheap check of the image.
func (s *Scheme) Detect(acc chunk.Access) scheme.Confidence {
	if !scheme.CheckBase(acc) || chunk.NumBlocks(acc) <= firstMapBlock {
		return scheme.No
	}

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(firstMapBlock, buf); err != nil || Entry(buf).Signature() != EntrySignature {
		return scheme.No
	}

	if err := acc.ReadBlock(ddrBlock, buf); err != nil || DDR(buf).Signature() != DDRSignature {
		return scheme.Maybe
	}

	return scheme.Yes
}

// Resolve parses the partition map.
func (s *Scheme) Resolve(acc chunk.Access, opts scheme.Options) (*scheme.Result, error) {
	log := opts.Notes
	total := chunk.NumBlocks(acc)

	if total <= firstMapBlock {
		return nil, scheme.Incompatible("image too small for a partition map")
	}

	buf := make([]byte, chunk.BlockSize)

	if err := acc.ReadBlock(ddrBlock, buf); err != nil {
		return nil, err
	}

	ddr := DDR(buf)

	switch {
	case ddr.Signature() != DDRSignature:
		log.AddW("driver descriptor record signature mismatch (0x%04x)", ddr.Signature())
	case ddr.BlockSize() != chunk.BlockSize:
		log.AddW("driver descriptor record declares block size %d, using %d", ddr.BlockSize(), chunk.BlockSize)
	case uint64(ddr.BlockCount()) != total:
		log.AddI("driver descriptor record declares %d blocks, image has %d", ddr.BlockCount(), total)
	}

	if err := acc.ReadBlock(firstMapBlock, buf); err != nil {
		return nil, err
	}

	first := Entry(buf)

	if first.Signature() != EntrySignature {
		return nil, scheme.Incompatible("no partition map entry in block %d", firstMapBlock)
	}

	mapBlocks := uint64(first.MapBlockCount())

	if mapBlocks == 0 || mapBlocks > MaxMapBlocks || mapBlocks > total-firstMapBlock {
		return nil, scheme.Incompatible("invalid partition map length %d", mapBlocks)
	}

	result := &scheme.Result{}

	for idx := range mapBlocks {
		index := uint(idx + 1)

		if err := acc.ReadBlock(firstMapBlock+idx, buf); err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		entry := Entry(buf)

		if entry.Signature() != EntrySignature {
			log.AddE("partition map entry #%d has invalid signature 0x%04x, skipping", index, entry.Signature())

			continue
		}

		if n := uint64(entry.MapBlockCount()); n != mapBlocks {
			log.AddW("partition map entry #%d declares map length %d, first entry declares %d", index, n, mapBlocks)
		}

		start, count := uint64(entry.Start()), uint64(entry.Count())
		name, typ := entry.Name(), entry.Type()

		if count == 0 {
			log.AddW("partition #%d %q has zero length, skipping", index, name)

			continue
		}

		if entry.Status()&StatusValid == 0 {
			log.AddW("partition #%d %q is not marked valid (status 0x%08x)", index, name, entry.Status())
		}

		if strings.EqualFold(typ, TypePartitionMap) && (start != firstMapBlock || count < mapBlocks) {
			log.AddW("partition map entry #%d covers blocks %d+%d, map occupies %d+%d", index, start, count, firstMapBlock, mapBlocks)
		}

		count, ok := scheme.Clamp(log, index, start, count, total)
		if !ok {
			continue
		}

		p, err := scheme.NewBlockPartition(acc, start, count, s.Name(), index, opts,
			partition.WithName(name),
			partition.WithType(typ),
		)
		if err != nil {
			result.Close() //nolint:errcheck

			return nil, err
		}

		result.Partitions = append(result.Partitions, p)
	}

	return result, nil
}
