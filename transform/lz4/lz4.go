// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package lz4 implements the LZ4 block-compression transformer, following
// the registration shape of the teacher's recordioflate package but
// delegating to the LZ4 block codec instead of flate.
package lz4

import (
	"github.com/pierrec/lz4/v4"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/transform"
)

// Name is the registered transformer name.
const Name = "lz4"

func init() {
	transform.Register(Name, func(config string) (transform.Transformer, error) {
		return New(), nil
	})
}

// Transformer compresses each block with the LZ4 block codec. Each
// transformed block starts with a 4-byte little-endian prefix holding its
// decompressed length, or 0 when the block is stored verbatim; Untransform
// reads the prefix only to tell those two cases apart. The prefix is
// internal to the transformer and has no bearing on the container's own
// length/size bookkeeping.
type Transformer struct {
	compressor lz4.Compressor
}

// New returns an LZ4 Transformer.
func New() *Transformer {
	return &Transformer{}
}

// Transform implements transform.Transformer.
func (t *Transformer) Transform(in []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(in))
	out := make([]byte, 4+bound)
	putUint32(out, uint32(len(in)))
	n, err := t.compressor.CompressBlock(in, out[4:])
	if err != nil {
		return nil, berrors.E(berrors.Corruption, "lz4: compress", err)
	}
	if n == 0 {
		// Incompressible input: lz4 leaves the destination untouched and
		// reports 0; store the block verbatim with a sentinel length of 0
		// in the prefix so Untransform can tell the cases apart.
		out = out[:4+len(in)]
		putUint32(out, 0)
		copy(out[4:], in)
		return out, nil
	}
	return out[:4+n], nil
}

// Untransform implements transform.Transformer.
func (t *Transformer) Untransform(in, scratch []byte) (int, error) {
	if len(in) < 4 {
		return 0, berrors.E(berrors.Corruption, "lz4: block shorter than length prefix")
	}
	originalLen := getUint32(in)
	payload := in[4:]
	if originalLen == 0 {
		return copy(scratch, payload), nil
	}
	if len(scratch) > 0 && &in[0] == &scratch[0] {
		// scratch aliases in: decompress from a copy so output bytes do not
		// overwrite compressed input that has not been read yet.
		payload = append([]byte(nil), payload...)
	}
	n, err := lz4.UncompressBlock(payload, scratch)
	if err != nil || n < 0 {
		return 0, berrors.E(berrors.Corruption, "lz4: decompress", err)
	}
	return n, nil
}

// MayChangeSize implements transform.Transformer.
func (t *Transformer) MayChangeSize() bool {
	return true
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
