// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockstream

import (
	"io"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/blog"
	"github.com/blocklayer/blockstream/extent"
	"github.com/blocklayer/blockstream/substrate"
)

// ReadOnly is a read-only block stream (§4.5): an immutable extent map
// shared by any number of independent Cursors, each with its own read
// position and block buffer. When the substrate supports it, data extents
// are served from a memory map instead of per-read ReadAt calls.
type ReadOnly struct {
	c *container

	mapping mapping
}

// mapping is the portable-vs-mmap-backed data access strategy, implemented
// per platform in mmap_unix.go / mmap_other.go.
type mapping interface {
	// readAt reads length bytes at the substrate-absolute offset into dst,
	// which must have len(dst) == length.
	readAt(dst []byte, offset int64, length int) error
	close() error
}

// NewReadOnly opens a read-only stream over sub.
func NewReadOnly(sub substrate.Substrate, opts Options) (*ReadOnly, error) {
	c, err := newContainer(sub, opts)
	if err != nil {
		return nil, err
	}
	if err := c.readFooter(false); err != nil {
		return nil, err
	}
	m := newMapping(sub, c.start, c.extents.Sum())
	return &ReadOnly{c: c, mapping: m}, nil
}

// Len returns the logical stream length L.
func (r *ReadOnly) Len() int64 { return r.c.l }

// NewCursor returns a new independent read cursor positioned at the start
// of the stream. Cursors share the stream's extent map and mapping but
// each maintains its own position and decode buffer, so concurrent use of
// distinct cursors over the same ReadOnly is safe.
func (r *ReadOnly) NewCursor() *Cursor {
	return &Cursor{
		r:            r,
		currentBlock: make([]byte, r.c.blockSize),
		idx:          idxUnused,
	}
}

// Inspect returns the number of blocks and a copy of their extents, in
// block-index order, for diagnostic tooling.
func (r *ReadOnly) Inspect() (int, []extent.Extent) {
	n := r.c.extents.Count()
	out := make([]extent.Extent, 0, n)
	for i := 0; i < n; i++ {
		e, _ := r.c.extents.Get(i)
		out = append(out, e)
	}
	return n, out
}

// Close releases the stream's resources: the mapping, the cache, and the
// substrate unless LeaveOpen was requested.
func (r *ReadOnly) Close() error {
	if err := r.mapping.close(); err != nil {
		return err
	}
	return r.c.dispose()
}

// Cursor is an independent read position into a ReadOnly stream.
type Cursor struct {
	r            *ReadOnly
	currentBlock []byte
	idx          int64
	position     int64
}

// Seek implements io.Seeker.
func (cur *Cursor) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = cur.position
	case io.SeekEnd:
		base = cur.r.c.l
	default:
		return 0, berrors.E(berrors.ArgumentOutOfRange, "blockstream: invalid whence")
	}
	pos := base + offset
	if pos < 0 {
		return 0, berrors.E(berrors.ArgumentOutOfRange, "blockstream: negative seek result")
	}
	cur.position = pos
	return pos, nil
}

func (cur *Cursor) fill(block int64) error {
	if cur.idx == block {
		return nil
	}
	c := cur.r.c
	e, ok := c.extents.Get(int(block))
	if !ok {
		return berrors.E(berrors.Corruption, "blockstream: read past known extents")
	}
	if e.IsTombstone() {
		return berrors.E(berrors.Corruption, "blockstream: block is an unfinished append tombstone")
	}
	if e.Length == 0 {
		for i := range cur.currentBlock {
			cur.currentBlock[i] = 0
		}
		cur.idx = block
		return nil
	}
	if c.cache != nil {
		if _, ok := c.cache.TryRead(block, cur.currentBlock); ok {
			cur.idx = block
			return nil
		}
	}
	raw := make([]byte, e.Length)
	if err := cur.r.mapping.readAt(raw, e.Offset, int(e.Length)); err != nil {
		return err
	}
	n, err := c.transformer.Untransform(raw, cur.currentBlock)
	if err != nil {
		blog.Corruption("block", err)
		return err
	}
	if n != c.blockSize {
		err := berrors.E(berrors.Corruption, "blockstream: decoded block length mismatch")
		blog.Corruption("block", err)
		return err
	}
	if c.cache != nil {
		c.cache.Store(block, cur.currentBlock)
	}
	cur.idx = block
	return nil
}

// Read implements io.Reader.
func (cur *Cursor) Read(p []byte) (int, error) {
	l := cur.r.c.l
	bs := int64(cur.r.c.blockSize)
	if cur.position >= l {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) && cur.position < l {
		block := cur.position / bs
		off := cur.position % bs
		if err := cur.fill(block); err != nil {
			return total, err
		}
		want := len(p) - total
		if avail := l - cur.position; int64(want) > avail {
			want = int(avail)
		}
		if int64(want) > bs-off {
			want = int(bs - off)
		}
		n := copy(p[total:total+want], cur.currentBlock[off:int64(off)+int64(want)])
		total += n
		cur.position += int64(n)
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}
