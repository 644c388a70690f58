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

// block-buffer index sentinels.
const (
	idxUnused = -2
	idxFresh  = -1
)

// RandomAccess is the random-access read/write stream (§4.4): a single
// logical block buffer, flushed according to the container's extent
// bookkeeping, with the asymmetric restrictions size-changing transformers
// impose on overwrite.
type RandomAccess struct {
	c *container

	currentBlock []byte
	idx          int64
	dirty        bool
	position     int64

	// sticky latches the first corruption or substrate-IO error this stream
	// encounters; once set, every subsequent Read/Write/Flush/Close/SetLength
	// fails immediately with it rather than risking further damage against a
	// stream already known to be in a bad state.
	sticky berrors.Once
}

// NewRandomAccess opens a random-access read/write stream over sub,
// reading any existing footer or initializing a fresh empty one.
func NewRandomAccess(sub substrate.Substrate, opts Options) (*RandomAccess, error) {
	c, err := newContainer(sub, opts)
	if err != nil {
		return nil, err
	}
	if err := c.readFooter(true); err != nil {
		return nil, err
	}
	s := &RandomAccess{
		c:            c,
		currentBlock: make([]byte, MaxTransformedLen),
		idx:          idxUnused,
	}
	s.sticky.Ignored = []error{io.EOF}
	return s, nil
}

// Len returns the current logical stream length L.
func (s *RandomAccess) Len() int64 { return s.c.l }

// Seek implements io.Seeker over the logical stream. Negative resulting
// positions fail with an argument-out-of-range error; positions beyond L
// are legal.
func (s *RandomAccess) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.position
	case io.SeekEnd:
		base = s.c.l
	default:
		return 0, berrors.E(berrors.ArgumentOutOfRange, "blockstream: invalid whence")
	}
	pos := base + offset
	if pos < 0 {
		return 0, berrors.E(berrors.ArgumentOutOfRange, "blockstream: negative seek result")
	}
	s.position = pos
	return pos, nil
}

// fill ensures block is materialized in currentBlock. It reports whether
// the block exists in the map; a false return with a nil error means the
// block is absent (short read / append target), not an error.
func (s *RandomAccess) fill(block int64) (bool, error) {
	if s.idx == block {
		return true, nil
	}
	if s.dirty {
		if err := s.flushDirty(s.c.l); err != nil {
			return false, err
		}
	}
	e, ok := s.c.extents.Get(int(block))
	if !ok {
		return false, nil
	}
	if e.Length == 0 {
		if !s.c.transformer.MayChangeSize() {
			return false, berrors.E(berrors.Corruption, "blockstream: zero-length extent under a fixed-size transformer")
		}
		for i := range s.currentBlock[:s.c.blockSize] {
			s.currentBlock[i] = 0
		}
		s.idx = block
		return true, nil
	}
	if s.c.cache != nil {
		if n, ok := s.c.cache.TryRead(block, s.currentBlock[:s.c.blockSize]); ok {
			_ = n
			s.idx = block
			return true, nil
		}
	}
	raw := make([]byte, e.Length)
	if _, err := readFullAt(s.c.sub, raw, e.Offset); err != nil {
		return false, err
	}
	n, err := s.c.transformer.Untransform(raw, s.currentBlock)
	if err != nil {
		blog.Corruption("block", err)
		return false, err
	}
	if n != s.c.blockSize {
		err := berrors.E(berrors.Corruption, "blockstream: decoded block length mismatch")
		blog.Corruption("block", err)
		return false, err
	}
	if s.c.cache != nil {
		s.c.cache.Store(block, s.currentBlock[:s.c.blockSize])
	}
	s.idx = block
	return true, nil
}

// Read implements io.Reader over the logical stream.
func (s *RandomAccess) Read(p []byte) (int, error) {
	if err := s.sticky.Err(); err != nil {
		return 0, err
	}
	n, err := s.read(p)
	if stickyWorthy(err) {
		s.sticky.Set(err)
	}
	return n, err
}

func (s *RandomAccess) read(p []byte) (int, error) {
	if s.position >= s.c.l {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) {
		if s.position >= s.c.l {
			break
		}
		block := s.position / int64(s.c.blockSize)
		off := s.position % int64(s.c.blockSize)
		ok, err := s.fill(block)
		if err != nil {
			return total, err
		}
		if !ok {
			break
		}
		want := len(p) - total
		avail := s.c.l - s.position
		if int64(want) > avail {
			want = int(avail)
		}
		if int64(want) > int64(s.c.blockSize)-off {
			want = int(int64(s.c.blockSize) - off)
		}
		n := copy(p[total:total+want], s.currentBlock[off:int64(off)+int64(want)])
		total += n
		s.position += int64(n)
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// Write implements io.Writer over the logical stream, subject to the
// size-changing transformer's overwrite restriction: once the transformer
// may change a block's size, any write starting before L is rejected.
func (s *RandomAccess) Write(p []byte) (int, error) {
	if err := s.sticky.Err(); err != nil {
		return 0, err
	}
	n, err := s.write(p)
	if stickyWorthy(err) {
		s.sticky.Set(err)
	}
	return n, err
}

func (s *RandomAccess) write(p []byte) (int, error) {
	if s.c.transformer.MayChangeSize() && s.position < s.c.l {
		return 0, berrors.E(berrors.IllegalWrite, "blockstream: overwrite of already-written range under a size-changing transformer")
	}
	total := 0
	for total < len(p) {
		block := s.position / int64(s.c.blockSize)
		off := s.position % int64(s.c.blockSize)

		if _, ok := s.c.extents.Get(int(block)); ok {
			if _, err := s.fill(block); err != nil {
				return total, err
			}
			n := copy(s.currentBlock[off:s.c.blockSize], p[total:])
			copy(s.currentBlock[off:], p[total:total+n])
			s.dirty = true
			if s.c.cache != nil {
				s.c.cache.Invalidate(block)
			}
			total += n
			s.position += int64(n)
			if s.position > s.c.l {
				s.c.l = s.position
			}
			continue
		}

		if block > int64(s.c.extents.Count()) {
			if err := s.setLength(s.position); err != nil {
				return total, err
			}
			if s.dirty {
				if err := s.flushDirty(s.c.l); err != nil {
					return total, err
				}
			}
			continue
		}

		// Appending a fresh block. s.c.l is left at its pre-append value
		// until flushDirty's tombstone prelude footer has been written, so
		// that footer and the extent map it names agree on what is
		// actually committed if a crash strikes between the two footer
		// writes.
		for i := range s.currentBlock[:s.c.blockSize] {
			s.currentBlock[i] = 0
		}
		n := copy(s.currentBlock[off:s.c.blockSize], p[total:])
		s.idx = idxFresh
		s.dirty = true
		total += n
		s.position += int64(n)
		newL := s.c.l
		if s.position > newL {
			newL = s.position
		}
		if err := s.flushDirty(newL); err != nil {
			return total, err
		}
	}
	return total, nil
}

// flushDirty flushes currentBlock if dirty, per §4.4's two cases (existing
// block in place, or a fresh append via the two-phase tombstone protocol).
// targetL is the logical length to persist once the flush completes; it is
// only consulted for a fresh append, where committing it early (before the
// block is durably in place) would let a crash leave the footer naming more
// bytes than its extent map actually covers.
func (s *RandomAccess) flushDirty(targetL int64) error {
	if !s.dirty {
		return nil
	}
	if s.idx == idxFresh {
		if err := s.appendCurrentBlock(targetL); err != nil {
			return err
		}
	} else {
		if err := s.rewriteCurrentBlock(); err != nil {
			return err
		}
	}
	s.idx = idxUnused
	s.dirty = false
	return s.c.flush(false)
}

func (s *RandomAccess) rewriteCurrentBlock() error {
	idx := s.idx
	e, ok := s.c.extents.Get(int(idx))
	if !ok {
		return berrors.E(berrors.Corruption, "blockstream: dirty block has no extent")
	}
	out, err := s.c.transformer.Transform(s.currentBlock[:s.c.blockSize])
	if err != nil {
		return err
	}
	if len(out) > MaxTransformedLen {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: transformed block too large")
	}
	isLast := int(idx) == s.c.extents.Count()-1
	if len(out) > int(e.Length) && !isLast {
		return berrors.E(berrors.IllegalWrite, "blockstream: rewrite would overflow a non-last extent")
	}
	if _, err := s.c.sub.WriteAt(out, e.Offset); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: writing block", err)
	}
	newExtent := extent.Extent{Offset: e.Offset, Length: int16(len(out))}
	s.c.extents.Put(int(idx), newExtent)
	if int16(len(out)) != e.Length {
		if !isLast {
			return berrors.E(berrors.Corruption, "blockstream: non-last extent changed size unexpectedly")
		}
		return s.c.writeFooter()
	}
	if s.c.footerBodyLen != 0 && s.c.onDiskL != s.c.l {
		return s.c.writeLengthTrailer()
	}
	return nil
}

func (s *RandomAccess) appendCurrentBlock(targetL int64) error {
	newIndex := s.c.extents.Count()
	offset := s.c.dataEnd()
	out, err := s.c.transformer.Transform(s.currentBlock[:s.c.blockSize])
	if err != nil {
		return err
	}
	if len(out) > MaxTransformedLen {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: transformed block too large")
	}

	// Crash-safety prelude: record a tombstone for the new block and
	// persist the footer — still at s.c.l's pre-append value — before the
	// payload itself is written, so a process that dies mid-append leaves a
	// footer whose length and extent map agree on what was actually
	// committed, not a corrupt one.
	s.c.extents.Put(newIndex, extent.Extent{Offset: -1, Length: int16(len(out))})
	if err := s.c.writeFooter(); err != nil {
		return err
	}
	blog.TombstoneAppend(int64(newIndex))

	if _, err := s.c.sub.WriteAt(out, offset); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: writing appended block", err)
	}
	s.c.extents.Put(newIndex, extent.Extent{Offset: offset, Length: int16(len(out))})
	s.c.l = targetL
	return s.c.writeFooter()
}

// SetLength truncates or extends the logical stream to v bytes.
func (s *RandomAccess) SetLength(v int64) error {
	if err := s.sticky.Err(); err != nil {
		return err
	}
	if err := s.setLength(v); err != nil {
		if stickyWorthy(err) {
			s.sticky.Set(err)
		}
		return err
	}
	return nil
}

func (s *RandomAccess) setLength(v int64) error {
	if v < 0 {
		return berrors.E(berrors.ArgumentOutOfRange, "blockstream: negative length")
	}
	if v == s.c.l {
		return nil
	}
	if v == 0 {
		s.c.extents.Reset()
		s.c.l = 0
		s.idx = idxUnused
		s.dirty = false
		s.position = 0
		return s.c.writeFooter()
	}
	if v > s.c.l {
		savedPos := s.position
		s.position = s.c.l
		zero := make([]byte, s.c.blockSize)
		remaining := v - s.c.l
		for remaining > 0 {
			n := int64(len(zero))
			if n > remaining {
				n = remaining
			}
			written, err := s.Write(zero[:n])
			if err != nil {
				return err
			}
			remaining -= int64(written)
		}
		s.position = savedPos
		return nil
	}
	maxBlocks := (v + int64(s.c.blockSize) - 1) / int64(s.c.blockSize)
	s.c.extents.Truncate(int(maxBlocks))
	s.c.l = v
	if s.position > v {
		s.position = v
	}
	if s.idx >= maxBlocks {
		s.idx = idxUnused
		s.dirty = false
	}
	return s.c.writeFooter()
}

// Flush flushes any dirty block and, if durable is true, requests the
// substrate make previously written data durable.
func (s *RandomAccess) Flush(durable bool) error {
	if err := s.sticky.Err(); err != nil {
		return err
	}
	if err := s.flush(durable); err != nil {
		if stickyWorthy(err) {
			s.sticky.Set(err)
		}
		return err
	}
	return nil
}

func (s *RandomAccess) flush(durable bool) error {
	if err := s.flushDirty(s.c.l); err != nil {
		return err
	}
	return s.c.flush(durable)
}

// Close flushes and disposes the stream, releasing the substrate unless
// LeaveOpen was requested. Once a sticky error is latched, Close skips the
// flush and returns that error. Dispose always runs, even after an earlier
// sticky error, since it only releases local resources; if both the flush
// and the dispose fail, the dispose error is chained onto the flush error.
func (s *RandomAccess) Close() (err error) {
	defer berrors.CleanUp(s.c.dispose, &err)
	if err = s.sticky.Err(); err != nil {
		return err
	}
	if err = s.flush(false); err != nil {
		if stickyWorthy(err) {
			s.sticky.Set(err)
		}
		return err
	}
	return s.sticky.Err()
}
