// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package testimage

import (
	"io"
)

// Sparse is a large in-memory image which only stores the blocks written to.
type Sparse struct {
	blocks map[uint64][]byte
	size   uint64
}

// NewSparse creates a zeroed sparse image of the specified number of blocks.
func NewSparse(blocks uint64) *Sparse {
	return &Sparse{
		blocks: map[uint64][]byte{},
		size:   blocks * BlockSize,
	}
}

// Size returns the image size in bytes.
func (s *Sparse) Size() uint64 {
	return s.size
}

// Block returns the slice holding a block, allocating it on first use.
func (s *Sparse) Block(block uint64) []byte {
	if buf, ok := s.blocks[block]; ok {
		return buf
	}

	buf := make([]byte, BlockSize)
	s.blocks[block] = buf

	return buf
}

// ReadAt implements io.ReaderAt.
func (s *Sparse) ReadAt(p []byte, off int64) (int, error) {
	n := 0

	for n < len(p) {
		pos := uint64(off) + uint64(n)
		if pos >= s.size {
			return n, io.EOF
		}

		chunk := p[n:min(len(p), n+int(BlockSize-pos%BlockSize))]

		if buf, ok := s.blocks[pos/BlockSize]; ok {
			copy(chunk, buf[pos%BlockSize:])
		} else {
			clear(chunk)
		}

		n += len(chunk)
	}

	return n, nil
}

// WriteAt implements io.WriterAt.
func (s *Sparse) WriteAt(p []byte, off int64) (int, error) {
	if uint64(off)+uint64(len(p)) > s.size {
		return 0, io.ErrShortWrite
	}

	n := 0

	for n < len(p) {
		pos := uint64(off) + uint64(n)
		n += copy(s.Block(pos / BlockSize)[pos%BlockSize:], p[n:])
	}

	return n, nil
}
