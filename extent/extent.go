// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package extent implements the block-index-to-extent map and its on-disk
// footer codec. Block indices are dense (0..N-1), so the map is a plain
// slice rather than the teacher's hashed key/value structures.
package extent

import (
	"encoding/binary"

	"github.com/blocklayer/blockstream/berrors"
)

// trailerLen is the fixed size of the footer trailer: footer body length
// (i64 LE) followed by logical stream length (i64 LE).
const trailerLen = 16

// recordLen is the size of one footer body record: offset (i64 LE),
// length (i16 LE).
const recordLen = 10

// Extent is the on-disk location of one transformed logical block: the
// byte offset within the substrate where it begins, and its transformed
// length. A tombstone extent has Offset < 0 or Length < 0 and marks a
// half-committed append to be discarded on recovery.
type Extent struct {
	Offset int64
	Length int16
}

// IsTombstone reports whether e marks a discarded half-committed append.
func (e Extent) IsTombstone() bool {
	return e.Offset < 0 || e.Length < 0
}

// Map is a dense, block-index-ordered sequence of extents. Index i holds
// the extent for logical block i; there are no gaps.
type Map struct {
	extents []Extent
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// Count returns the number of blocks in the map (N).
func (m *Map) Count() int {
	return len(m.extents)
}

// Get returns the extent at block index, and whether it exists.
func (m *Map) Get(index int) (Extent, bool) {
	if index < 0 || index >= len(m.extents) {
		return Extent{}, false
	}
	return m.extents[index], true
}

// Put sets the extent at block index, which must be either an existing
// index (mutate in place) or exactly len(m.extents) (append a new block).
func (m *Map) Put(index int, e Extent) {
	switch {
	case index == len(m.extents):
		m.extents = append(m.extents, e)
	case index >= 0 && index < len(m.extents):
		m.extents[index] = e
	default:
		panic("extent: Put index out of range")
	}
}

// Truncate drops all blocks with index >= n.
func (m *Map) Truncate(n int) {
	if n < len(m.extents) {
		m.extents = m.extents[:n]
	}
}

// Reset empties the map.
func (m *Map) Reset() {
	m.extents = nil
}

// Sum returns the sum of all extent lengths, i.e. the on-disk byte offset
// one past the last data extent (relative to the container's start).
func (m *Map) Sum() int64 {
	var total int64
	for _, e := range m.extents {
		total += int64(e.Length)
	}
	return total
}

// EncodeFooterBody serializes the map, in ascending block-index order, as
// a sequence of (offset: i64 LE, length: i16 LE) records.
func (m *Map) EncodeFooterBody() []byte {
	out := make([]byte, len(m.extents)*recordLen)
	for i, e := range m.extents {
		rec := out[i*recordLen:]
		binary.LittleEndian.PutUint64(rec, uint64(e.Offset))
		binary.LittleEndian.PutUint16(rec[8:], uint16(e.Length))
	}
	return out
}

// EncodeTrailer serializes the footer trailer (footerBodyLength, L).
func EncodeTrailer(footerBodyLength, logicalLength int64) []byte {
	out := make([]byte, trailerLen)
	binary.LittleEndian.PutUint64(out, uint64(footerBodyLength))
	binary.LittleEndian.PutUint64(out[8:], uint64(logicalLength))
	return out
}

// DecodeTrailer parses the trailing 16 bytes of a footer.
func DecodeTrailer(b []byte) (footerBodyLength, logicalLength int64, err error) {
	if len(b) != trailerLen {
		return 0, 0, berrors.E(berrors.Corruption, "extent: trailer has wrong length")
	}
	footerBodyLength = int64(binary.LittleEndian.Uint64(b))
	logicalLength = int64(binary.LittleEndian.Uint64(b[8:]))
	if footerBodyLength < 0 {
		return 0, 0, berrors.E(berrors.Corruption, "extent: negative footer body length")
	}
	return footerBodyLength, logicalLength, nil
}

// DecodeFooterBody parses a footer body into a dense Map, skipping
// tombstone records (which may only legitimately appear at the tail) and
// reporting how many were skipped, so callers can log append-recovery as
// the spec's sole recovery behavior requires.
func DecodeFooterBody(b []byte) (*Map, int, error) {
	if len(b)%recordLen != 0 {
		return nil, 0, berrors.E(berrors.Corruption, "extent: footer body length not a multiple of the record size")
	}
	m := &Map{}
	tombstones := 0
	n := len(b) / recordLen
	for i := 0; i < n; i++ {
		rec := b[i*recordLen:]
		offset := int64(binary.LittleEndian.Uint64(rec))
		length := int16(binary.LittleEndian.Uint16(rec[8:]))
		e := Extent{Offset: offset, Length: length}
		if e.IsTombstone() {
			tombstones++
			continue
		}
		m.extents = append(m.extents, e)
	}
	return m, tombstones, nil
}

// TrailerLen is the fixed size of the footer trailer.
const TrailerLen = trailerLen

// RecordLen is the fixed size of one footer body record.
const RecordLen = recordLen
