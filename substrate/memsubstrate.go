// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package substrate

import (
	"sync"

	"github.com/blocklayer/blockstream/berrors"
)

// Buffer is an in-memory Substrate, useful for tests and for embedding a
// container in a process with no filesystem. It is safe for concurrent
// use, serializing all access under a mutex, matching the portable
// seek+read fallback the read-only stream uses for non-file substrates.
type Buffer struct {
	mu   sync.Mutex
	buf  []byte
	pos  int64
}

// NewBuffer returns an empty in-memory Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Bytes returns a copy of the buffer's current contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// ReadAt implements io.ReaderAt.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if off < 0 {
		return 0, berrors.E(berrors.ArgumentOutOfRange, "substrate: negative ReadAt offset")
	}
	if off >= int64(len(b.buf)) {
		return 0, berrors.E(berrors.TruncatedRead, "EOF")
	}
	n := copy(p, b.buf[off:])
	if n < len(p) {
		return n, berrors.E(berrors.TruncatedRead, "short read")
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if off < 0 {
		return 0, berrors.E(berrors.ArgumentOutOfRange, "substrate: negative WriteAt offset")
	}
	end := off + int64(len(p))
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var base int64
	switch whence {
	case 0:
		base = 0
	case 1:
		base = b.pos
	case 2:
		base = int64(len(b.buf))
	default:
		return 0, berrors.E(berrors.ArgumentOutOfRange, "substrate: invalid whence")
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, berrors.E(berrors.ArgumentOutOfRange, "substrate: negative seek result")
	}
	b.pos = newPos
	return newPos, nil
}

// Truncate implements Substrate.
func (b *Buffer) Truncate(size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if size < 0 {
		return berrors.E(berrors.ArgumentOutOfRange, "substrate: negative truncate size")
	}
	if size <= int64(len(b.buf)) {
		b.buf = b.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, b.buf)
	b.buf = grown
	return nil
}

// Sync implements Substrate. Buffer has no durability concept, so Sync is
// a no-op.
func (b *Buffer) Sync() error {
	return nil
}

// Close implements Substrate. Buffer holds no external resource, so Close
// is a no-op.
func (b *Buffer) Close() error {
	return nil
}
