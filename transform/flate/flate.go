// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package flate provides a secondary pluggable compressor, adapted from the
// teacher's recordioflate transformer to the block transformer interface.
// It exists alongside lz4 to exercise the transformer registry with more
// than one interchangeable codec.
package flate

import (
	"bytes"
	"io"
	"strconv"

	kflate "github.com/klauspost/compress/flate"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/transform"
)

// Name is the registered transformer name.
const Name = "flate"

func init() {
	transform.Register(Name, func(config string) (transform.Transformer, error) {
		level := kflate.DefaultCompression
		if config != "" {
			l, err := strconv.Atoi(config)
			if err != nil {
				return nil, berrors.E(berrors.ArgumentOutOfRange, "flate: bad level", err)
			}
			level = l
		}
		return New(level), nil
	})
}

// Transformer compresses each block with flate at a fixed level.
type Transformer struct {
	level int
}

// New returns a flate Transformer at the given compression level (see
// compress/flate for valid values; kflate.DefaultCompression is a sensible
// default).
func New(level int) *Transformer {
	return &Transformer{level: level}
}

// Transform implements transform.Transformer.
func (t *Transformer) Transform(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	wr, err := kflate.NewWriter(&buf, t.level)
	if err != nil {
		return nil, berrors.E(berrors.Corruption, "flate: compress", err)
	}
	if _, err := wr.Write(in); err != nil {
		return nil, berrors.E(berrors.Corruption, "flate: compress", err)
	}
	if err := wr.Close(); err != nil {
		return nil, berrors.E(berrors.Corruption, "flate: compress", err)
	}
	return buf.Bytes(), nil
}

// Untransform implements transform.Transformer.
func (t *Transformer) Untransform(in, scratch []byte) (int, error) {
	rd := kflate.NewReader(bytes.NewReader(in))
	defer rd.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return 0, berrors.E(berrors.Corruption, "flate: decompress", err)
	}
	return copy(scratch, buf.Bytes()), nil
}

// MayChangeSize implements transform.Transformer.
func (t *Transformer) MayChangeSize() bool {
	return true
}
