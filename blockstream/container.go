// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package blockstream implements the block-oriented container over an
// arbitrary seekable byte stream: the extent-indexed random-access
// read/write and read-only stream modes, and the cheaper write-once mode,
// all sharing the same on-disk extent/footer format and the base container
// lifecycle in this file.
package blockstream

import (
	"io"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/blockcache"
	"github.com/blocklayer/blockstream/blog"
	"github.com/blocklayer/blockstream/extent"
	"github.com/blocklayer/blockstream/substrate"
	"github.com/blocklayer/blockstream/transform"
)

// Size bounds from the on-disk format.
const (
	MinBlockSize  = 512
	MaxBlockSize  = 28671
	DefaultBlockSize = 16384

	// MaxTransformedLen is the largest transformed block length the footer
	// format can represent (the extent length field is a 16-bit signed
	// integer).
	MaxTransformedLen = 32767
)

// Options configure a container. All fields are optional; the zero value
// selects identity transformation, the default block size, no cache, and
// substrate ownership transferred to the container.
type Options struct {
	// Transformer is the block transformer pipeline. Defaults to
	// transform.Identity{}.
	Transformer transform.Transformer
	// BlockSize is B, the logical block size. Defaults to
	// DefaultBlockSize. Must be in [MinBlockSize, MaxBlockSize].
	BlockSize int
	// Cache, if non-nil, is consulted on block fill and populated on
	// decode; see blockcache.Cache.
	Cache *blockcache.Cache
	// LeaveOpen, if true, leaves the substrate open on Close/Dispose
	// instead of closing it.
	LeaveOpen bool
}

func (o Options) transformer() transform.Transformer {
	if o.Transformer != nil {
		return o.Transformer
	}
	return transform.Identity{}
}

func (o Options) blockSize() int {
	if o.BlockSize != 0 {
		return o.BlockSize
	}
	return DefaultBlockSize
}

func validateBlockSize(b int) error {
	if b < MinBlockSize || b > MaxBlockSize {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: block size out of range")
	}
	return nil
}

// container holds the state shared by every stream mode: substrate
// ownership, the transformer pipeline, the block size, the optional read
// cache, and the extent map with its footer bookkeeping.
type container struct {
	sub         substrate.Substrate
	transformer transform.Transformer
	blockSize   int
	cache       *blockcache.Cache
	leaveOpen   bool

	// start is the container's base offset within the substrate, captured
	// at construction to allow blob-in-blob nesting.
	start int64

	extents *extent.Map
	// l is the in-memory logical stream length.
	l int64
	// footerBodyLen is the size in bytes of the currently persisted footer
	// body (the serialized extent map, excluding the 16-byte trailer).
	footerBodyLen int64
	// onDiskL is the logical length value currently persisted in the
	// trailer. It lags l while a dirty block that extended the stream in
	// place is still buffered, and catches up when that block is flushed
	// (writeFooter or writeLengthTrailer).
	onDiskL int64
}

func newContainer(sub substrate.Substrate, opts Options) (*container, error) {
	b := opts.blockSize()
	if err := validateBlockSize(b); err != nil {
		return nil, err
	}
	start, err := sub.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, berrors.E(berrors.SubstrateIO, "blockstream: locating start offset", err)
	}
	return &container{
		sub:         sub,
		transformer: opts.transformer(),
		blockSize:   b,
		cache:       opts.Cache,
		leaveOpen:   opts.LeaveOpen,
		start:       start,
	}, nil
}

// substrateLen returns the substrate's total byte length, leaving the
// substrate's seek position where it was.
func (c *container) substrateLen() (int64, error) {
	cur, err := c.sub.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, berrors.E(berrors.SubstrateIO, "blockstream: measuring substrate length", err)
	}
	n, err := c.sub.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, berrors.E(berrors.SubstrateIO, "blockstream: measuring substrate length", err)
	}
	if _, err := c.sub.Seek(cur, io.SeekStart); err != nil {
		return 0, berrors.E(berrors.SubstrateIO, "blockstream: measuring substrate length", err)
	}
	return n, nil
}

// dataEnd returns the offset one past the last data extent, i.e. where the
// footer body begins.
func (c *container) dataEnd() int64 {
	return c.start + c.extents.Sum()
}

// readFooter loads the extent map and logical length from the substrate,
// initializing an empty map (and, if writable, a fresh empty footer) when
// the substrate contains nothing past start.
func (c *container) readFooter(writable bool) error {
	end, err := c.substrateLen()
	if err != nil {
		return err
	}
	if end == c.start {
		c.extents = extent.NewMap()
		c.l = 0
		c.footerBodyLen = 0
		c.onDiskL = 0
		if writable {
			return c.writeFooter()
		}
		return nil
	}
	if end-c.start < extent.TrailerLen {
		err := berrors.E(berrors.Corruption, "blockstream: substrate too short for a footer trailer")
		blog.Corruption("footer trailer", err)
		return err
	}
	trailer := make([]byte, extent.TrailerLen)
	if _, err := readFullAt(c.sub, trailer, end-extent.TrailerLen); err != nil {
		return err
	}
	bodyLen, l, err := extent.DecodeTrailer(trailer)
	if err != nil {
		blog.Corruption("footer trailer", err)
		return err
	}
	bodyOffset := end - extent.TrailerLen - bodyLen
	if bodyOffset < c.start {
		err := berrors.E(berrors.Corruption, "blockstream: footer body length exceeds substrate")
		blog.Corruption("footer body", err)
		return err
	}
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := readFullAt(c.sub, body, bodyOffset); err != nil {
			return err
		}
	}
	m, tombstones, err := extent.DecodeFooterBody(body)
	if err != nil {
		blog.Corruption("footer body", err)
		return err
	}
	blog.TombstoneRecovered(tombstones)
	// Decoded offsets are substrate-absolute, exactly as the writer stored
	// them, so they are used as-is. Invariant 1 (each extent starts where
	// the previous one ends) is not re-validated here: the base container
	// trusts a footer it wrote itself.
	c.extents = m
	c.l = l
	c.footerBodyLen = bodyLen
	c.onDiskL = l
	return nil
}

// writeFooter serializes the extent map and trailer and writes them at the
// tail of the substrate, truncating away any stale trailing bytes.
func (c *container) writeFooter() error {
	body := c.extents.EncodeFooterBody()
	trailer := extent.EncodeTrailer(int64(len(body)), c.l)

	dataEnd := c.dataEnd()
	blog.FooterRewrite(dataEnd, c.extents.Count(), c.l)
	if len(body) > 0 {
		if _, err := c.sub.WriteAt(body, dataEnd); err != nil {
			return berrors.E(berrors.SubstrateIO, "blockstream: writing footer body", err)
		}
	}
	trailerOffset := dataEnd + int64(len(body))
	if _, err := c.sub.WriteAt(trailer, trailerOffset); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: writing footer trailer", err)
	}
	if err := c.sub.Truncate(trailerOffset + extent.TrailerLen); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: truncating after footer", err)
	}
	c.footerBodyLen = int64(len(body))
	c.onDiskL = c.l
	return nil
}

// writeLengthTrailer rewrites only the logical-length half of the trailer,
// legal only when the footer body bytes have not changed.
func (c *container) writeLengthTrailer() error {
	end, err := c.substrateLen()
	if err != nil {
		return err
	}
	lenBytes := make([]byte, 8)
	putUint64(lenBytes, uint64(c.l))
	if _, err := c.sub.WriteAt(lenBytes, end-8); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: writing length trailer", err)
	}
	c.onDiskL = c.l
	return nil
}

// flush forces the substrate to make previously written data durable when
// durable is true and the substrate supports it; otherwise it is a no-op
// beyond whatever buffering the substrate itself performs.
func (c *container) flush(durable bool) error {
	if !durable {
		return nil
	}
	if err := c.sub.Sync(); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: sync", err)
	}
	return nil
}

// dispose releases the container's resources: the cache, and the
// substrate unless leaveOpen was requested.
func (c *container) dispose() error {
	if c.cache != nil {
		c.cache.Dispose()
	}
	c.extents.Reset()
	if c.leaveOpen {
		return nil
	}
	if err := c.sub.Close(); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: closing substrate", err)
	}
	return nil
}

// stickyWorthy reports whether err reflects the stream having entered a
// bad state (corruption, a failed substrate operation) rather than a
// caller mistake on a single call (a bad argument, a disallowed write);
// only the former should latch as a stream's sticky error.
func stickyWorthy(err error) bool {
	if err == nil {
		return false
	}
	return !berrors.Is(berrors.ArgumentOutOfRange, err) && !berrors.Is(berrors.IllegalWrite, err)
}

func readFullAt(sub substrate.Substrate, buf []byte, offset int64) (int, error) {
	n, err := sub.ReadAt(buf, offset)
	if err != nil && n < len(buf) {
		return n, berrors.E(berrors.TruncatedRead, "blockstream: short read from substrate", err)
	}
	if err != nil {
		return n, berrors.E(berrors.SubstrateIO, err)
	}
	return n, nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
