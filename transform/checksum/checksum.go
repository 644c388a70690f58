// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package checksum implements a block transformer that appends a 64-bit CRC
// trailer to each block, modeled on the chunk-level CRC check in the
// teacher's recordio/internal chunk format but applied at the
// transformer-pipeline level instead of a fixed chunk header.
package checksum

import (
	"encoding/binary"
	"hash/crc64"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/transform"
)

// Polynomial is the CRC-64 polynomial this transformer uses, matching
// hash/crc64.ISO. Computed via crc64.Checksum, the stdlib algorithm already
// reflects input and output and complements the initial and final value,
// exactly the construction this transformer's on-disk format requires.
const Polynomial = crc64.ISO

const trailerLen = 8

// Name is the registered transformer name.
const Name = "checksum"

func init() {
	transform.Register(Name, func(config string) (transform.Transformer, error) {
		return New(), nil
	})
}

// Transformer appends an 8-byte little-endian CRC-64 trailer to each block
// and verifies it on decode.
type Transformer struct {
	table *crc64.Table
}

// New returns a checksum Transformer.
func New() *Transformer {
	return &Transformer{table: crc64.MakeTable(Polynomial)}
}

// Transform implements transform.Transformer.
func (t *Transformer) Transform(in []byte) ([]byte, error) {
	sum := crc64.Checksum(in, t.table)
	out := make([]byte, len(in)+trailerLen)
	copy(out, in)
	binary.LittleEndian.PutUint64(out[len(in):], sum)
	return out, nil
}

// Untransform implements transform.Transformer.
func (t *Transformer) Untransform(in, scratch []byte) (int, error) {
	if len(in) < trailerLen {
		return 0, berrors.E(berrors.Corruption, "checksum: block shorter than trailer")
	}
	n := len(in) - trailerLen
	want := binary.LittleEndian.Uint64(in[n:])
	got := crc64.Checksum(in[:n], t.table)
	if got != want {
		return 0, berrors.E(berrors.Corruption, "checksum: mismatch")
	}
	return copy(scratch, in[:n]), nil
}

// MayChangeSize implements transform.Transformer.
func (t *Transformer) MayChangeSize() bool {
	return true
}
