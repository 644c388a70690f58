// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockstream

import (
	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/extent"
	"github.com/blocklayer/blockstream/substrate"
)

// WriteOnce is the append-only block stream (§4.6): cheaper than
// RandomAccess because it never needs to re-read or re-transform an
// already-written block, at the cost of forbidding any operation but
// sequential append. It produces the same on-disk extent-indexed format
// RandomAccess and ReadOnly consume.
type WriteOnce struct {
	c *container

	buf    []byte
	filled int

	// sticky latches the first error this writer encounters, other than an
	// argument-out-of-range or illegal-write rejection (see stickyWorthy), so repeated
	// calls after a failed flush or transform don't keep hammering an
	// already-broken substrate.
	sticky berrors.Once
}

// NewWriteOnce opens an append-only writer over sub. The substrate must
// either be empty past opts' implicit start offset or already hold a
// well-formed footer written by this package; appends continue from the
// end of whatever is already there.
func NewWriteOnce(sub substrate.Substrate, opts Options) (*WriteOnce, error) {
	c, err := newContainer(sub, opts)
	if err != nil {
		return nil, err
	}
	if err := c.readFooter(true); err != nil {
		return nil, err
	}
	// Truncate away the old footer/trailer now, rather than leaving it in
	// place until the first flush: new block payloads are about to be
	// written starting at dataEnd(), and a stale footer sitting past them
	// would otherwise decode as well-formed if a crash struck before this
	// writer ever flushed its own footer.
	if err := c.sub.Truncate(c.dataEnd()); err != nil {
		return nil, berrors.E(berrors.SubstrateIO, "blockstream: truncating stale footer at open", err)
	}
	return &WriteOnce{
		c:   c,
		buf: make([]byte, c.blockSize),
	}, nil
}

// Len returns the logical length written so far.
func (w *WriteOnce) Len() int64 { return w.c.l }

// Write appends p to the stream, buffering partial blocks and flushing
// full ones as they accumulate. It never revisits a previously written
// block.
func (w *WriteOnce) Write(p []byte) (int, error) {
	if err := w.sticky.Err(); err != nil {
		return 0, err
	}
	n, err := w.write(p)
	if stickyWorthy(err) {
		w.sticky.Set(err)
	}
	return n, err
}

func (w *WriteOnce) write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := copy(w.buf[w.filled:], p)
		w.filled += n
		p = p[n:]
		total += n
		w.c.l += int64(n)
		if w.filled == len(w.buf) {
			if err := w.flushBlock(w.buf); err != nil {
				return total, err
			}
			w.filled = 0
		}
	}
	return total, nil
}

func (w *WriteOnce) flushBlock(block []byte) error {
	c := w.c
	newIndex := c.extents.Count()
	offset := c.dataEnd()
	out, err := c.transformer.Transform(block)
	if err != nil {
		return err
	}
	if len(out) > MaxTransformedLen {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: transformed block too large")
	}
	if _, err := c.sub.WriteAt(out, offset); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: writing appended block", err)
	}
	c.extents.Put(newIndex, extent.Extent{Offset: offset, Length: int16(len(out))})
	return nil
}

// Flush writes the footer reflecting all fully-written blocks so far,
// without finalizing a partial trailing block. Safe to call repeatedly.
func (w *WriteOnce) Flush(durable bool) error {
	if err := w.sticky.Err(); err != nil {
		return err
	}
	if err := w.flush(durable); err != nil {
		if stickyWorthy(err) {
			w.sticky.Set(err)
		}
		return err
	}
	return nil
}

func (w *WriteOnce) flush(durable bool) error {
	// The footer's logical length covers only the blocks already written,
	// not the bytes still buffered for the partial trailing block.
	l := w.c.l
	w.c.l -= int64(w.filled)
	err := w.c.writeFooter()
	w.c.l = l
	if err != nil {
		return err
	}
	return w.c.flush(durable)
}

// Close pads and flushes any partial final block with zeros, writes the
// final footer, and disposes the stream. Dispose always runs, even after an
// earlier sticky error; if both the final flush and the dispose fail, the
// dispose error is chained onto it.
func (w *WriteOnce) Close() (err error) {
	defer berrors.CleanUp(w.c.dispose, &err)
	if err = w.sticky.Err(); err != nil {
		return err
	}
	if w.filled > 0 {
		for i := w.filled; i < len(w.buf); i++ {
			w.buf[i] = 0
		}
		if err = w.flushBlock(w.buf); err != nil {
			if stickyWorthy(err) {
				w.sticky.Set(err)
			}
			return err
		}
		w.filled = 0
	}
	if err = w.c.writeFooter(); err != nil {
		if stickyWorthy(err) {
			w.sticky.Set(err)
		}
		return err
	}
	return nil
}
