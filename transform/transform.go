// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package transform defines the block transformer contract used by every
// stream mode: a pair of pure functions over byte ranges, plus a flag
// describing whether the transformation may change a block's length.
package transform

// Transformer converts a logical block to and from its on-disk
// representation.
//
// Transform produces the on-disk representation of a logical block. Its
// input is a full block (length B) in extent-indexed modes, or up to B
// bytes for the sequential writer's trailing block.
//
// Untransform reverses the transformation into scratch, returning the
// number of valid bytes written. It must tolerate in and scratch aliasing
// when they begin at the same address; otherwise it must detect overlap
// and copy to a fresh buffer.
//
// MayChangeSize reports whether len(Transform(x)) can differ from len(x).
// When false, Transform must always produce output the same length as its
// input, which permits in-place random overwrite; when true, overwriting
// already-written logical range is restricted (see the stream packages).
type Transformer interface {
	Transform(in []byte) ([]byte, error)
	Untransform(in, scratch []byte) (int, error)
	MayChangeSize() bool
}

// Factory builds a Transformer from a configuration string, as registered
// with Register.
type Factory func(config string) (Transformer, error)

var registry = map[string]Factory{}

// Register associates name with factory, so that transformer pipelines can
// be described by configuration strings such as "lz4" or "aead
// chacha20poly1305 <passphrase>". Register is intended to be called from
// package init functions; it is not safe for concurrent use with Lookup.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Lookup returns the factory registered under name, or false if none was
// registered.
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}

// Identity is the no-op transformer: Transform returns its input unchanged
// and MayChangeSize is always false, which permits in-place random
// overwrite.
type Identity struct{}

// Transform implements Transformer.
func (Identity) Transform(in []byte) ([]byte, error) {
	return in, nil
}

// Untransform implements Transformer.
func (Identity) Untransform(in, scratch []byte) (int, error) {
	if &in[0] == &scratch[0] {
		return len(in), nil
	}
	n := copy(scratch, in)
	return n, nil
}

// MayChangeSize implements Transformer.
func (Identity) MayChangeSize() bool {
	return false
}

// Composite chains a list of transformers, applying them in order on
// Transform and in reverse order on Untransform. Its MayChangeSize is the
// disjunction of its stages.
type Composite struct {
	Stages []Transformer
}

// NewComposite returns a Composite applying stages in the given order.
func NewComposite(stages ...Transformer) *Composite {
	return &Composite{Stages: stages}
}

// Transform implements Transformer.
func (c *Composite) Transform(in []byte) ([]byte, error) {
	cur := in
	for _, stage := range c.Stages {
		out, err := stage.Transform(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// Untransform implements Transformer.
//
// Each stage's decoded length is bounded by len(scratch) (callers size
// scratch generously, e.g. to the maximum transformed block length), so an
// intermediate buffer the same size as scratch is large enough for every
// stage regardless of how much a middle stage (such as decompression)
// expands its input.
func (c *Composite) Untransform(in, scratch []byte) (int, error) {
	if len(c.Stages) == 0 {
		if &in[0] == &scratch[0] {
			return len(in), nil
		}
		return copy(scratch, in), nil
	}
	cur := in
	for i := len(c.Stages) - 1; i >= 0; i-- {
		buf := scratch
		if i != 0 {
			buf = make([]byte, len(scratch))
		}
		n, err := c.Stages[i].Untransform(cur, buf)
		if err != nil {
			return 0, err
		}
		cur = buf[:n]
	}
	if len(cur) > 0 && len(scratch) > 0 && &cur[0] == &scratch[0] {
		return len(cur), nil
	}
	return copy(scratch, cur), nil
}

// MayChangeSize implements Transformer.
func (c *Composite) MayChangeSize() bool {
	for _, stage := range c.Stages {
		if stage.MayChangeSize() {
			return true
		}
	}
	return false
}
