// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockstream

import (
	"io"
	"testing"

	"github.com/blocklayer/blockstream/extent"
	"github.com/blocklayer/blockstream/substrate"
	"github.com/stretchr/testify/require"
)

// buildFooterWithTombstone writes block 0's payload followed by a footer
// naming block 0's real extent and a tombstone for a second block whose
// payload was never written, mimicking the on-disk state left by a crash
// between the two footer writes of the append protocol.
func buildFooterWithTombstone(t *testing.T, blockSize int) *substrate.Buffer {
	t.Helper()
	sub := substrate.NewBuffer()

	block0 := make([]byte, blockSize)
	for i := range block0 {
		block0[i] = 'A'
	}
	_, err := sub.WriteAt(block0, 0)
	require.NoError(t, err)

	m := extent.NewMap()
	m.Put(0, extent.Extent{Offset: 0, Length: int16(blockSize)})
	m.Put(1, extent.Extent{Offset: -1, Length: int16(blockSize)})

	body := m.EncodeFooterBody()
	_, err = sub.WriteAt(body, int64(blockSize))
	require.NoError(t, err)

	trailer := extent.EncodeTrailer(int64(len(body)), int64(blockSize))
	_, err = sub.WriteAt(trailer, int64(blockSize)+int64(len(body)))
	require.NoError(t, err)

	return sub
}

func TestRecoveryDiscardsTombstoneOnReadOnlyOpen(t *testing.T) {
	sub := buildFooterWithTombstone(t, 512)

	r, err := NewReadOnly(sub, Options{BlockSize: 512, LeaveOpen: true})
	require.NoError(t, err)
	n, extents := r.Inspect()
	require.Equal(t, 1, n, "the tombstoned block must not be assigned an index")
	require.Len(t, extents, 1)
	require.Equal(t, int64(512), r.Len())

	cur := r.NewCursor()
	out := make([]byte, 512)
	_, err = io.ReadFull(cur, out)
	require.NoError(t, err)
	for _, b := range out {
		require.Equal(t, byte('A'), b)
	}
	require.NoError(t, r.Close())
}

func TestRecoveryAllowsConsistentAppendAfterTombstone(t *testing.T) {
	sub := buildFooterWithTombstone(t, 512)

	s, err := NewRandomAccess(sub, Options{BlockSize: 512, LeaveOpen: true})
	require.NoError(t, err)
	require.Equal(t, int64(512), s.Len(), "recovered length must reflect only the committed block")

	more := make([]byte, 512)
	for i := range more {
		more[i] = 'B'
	}
	_, err = s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	_, err = s.Write(more)
	require.NoError(t, err)
	require.Equal(t, int64(1024), s.Len())
	require.NoError(t, s.Close())

	r, err := NewReadOnly(sub, Options{BlockSize: 512})
	require.NoError(t, err)
	n, extents := r.Inspect()
	require.Equal(t, 2, n)
	require.Len(t, extents, 2)
	for _, e := range extents {
		require.False(t, e.IsTombstone())
	}
	require.Equal(t, int64(1024), r.Len())

	cur := r.NewCursor()
	out := make([]byte, 1024)
	_, err = io.ReadFull(cur, out)
	require.NoError(t, err)
	for _, b := range out[:512] {
		require.Equal(t, byte('A'), b)
	}
	for _, b := range out[512:] {
		require.Equal(t, byte('B'), b)
	}
	require.NoError(t, r.Close())
}
