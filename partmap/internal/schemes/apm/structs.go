// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package apm

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// Signatures.
const (
	DDRSignature   = 0x4552 // "ER"
	EntrySignature = 0x504d // "PM"
)

// DDR is the driver descriptor record in block 0.
type DDR []byte

// Signature returns sbSig.
func (d DDR) Signature() uint16 { return binary.BigEndian.Uint16(d[0x00:]) }

// BlockSize returns sbBlkSize.
func (d DDR) BlockSize() uint16 { return binary.BigEndian.Uint16(d[0x02:]) }

// BlockCount returns sbBlkCount.
func (d DDR) BlockCount() uint32 { return binary.BigEndian.Uint32(d[0x04:]) }

// Entry is a partition map entry, one per block starting at block 1.
type Entry []byte

// Signature returns pmSig.
func (e Entry) Signature() uint16 { return binary.BigEndian.Uint16(e[0x00:]) }

// MapBlockCount returns pmMapBlkCnt.
func (e Entry) MapBlockCount() uint32 { return binary.BigEndian.Uint32(e[0x04:]) }

// Start returns pmPyPartStart.
func (e Entry) Start() uint32 { return binary.BigEndian.Uint32(e[0x08:]) }

// Count returns pmPartBlkCnt.
func (e Entry) Count() uint32 { return binary.BigEndian.Uint32(e[0x0c:]) }

// Name returns pmPartName.
func (e Entry) Name() string { return macString(e[0x10:0x30]) }

// Type returns pmParType.
func (e Entry) Type() string { return macString(e[0x30:0x50]) }

// Status returns pmPartStatus.
func (e Entry) Status() uint32 { return binary.BigEndian.Uint32(e[0x58:]) }

// macString decodes a NUL-terminated Mac OS Roman string.
func macString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}

	s, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}

	return string(s)
}
