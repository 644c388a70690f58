package blockstream

import (
	"io"
	"testing"

	"github.com/blocklayer/blockstream/substrate"
	"github.com/stretchr/testify/require"
)

func TestReadOnlyReadsWhatRandomAccessWrote(t *testing.T) {
	sub := substrate.NewBuffer()
	w, err := NewRandomAccess(sub, Options{BlockSize: 512, LeaveOpen: true})
	require.NoError(t, err)
	data := []byte("the quick brown fox jumps over the lazy dog")
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReadOnly(sub, Options{BlockSize: 512})
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), r.Len())

	cur := r.NewCursor()
	out := make([]byte, len(data))
	_, err = io.ReadFull(cur, out)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestReadOnlyIndependentCursors(t *testing.T) {
	sub := substrate.NewBuffer()
	w, err := NewRandomAccess(sub, Options{BlockSize: 512, LeaveOpen: true})
	require.NoError(t, err)
	data := make([]byte, 2000)
	for i := range data {
		data[i] = byte(i)
	}
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReadOnly(sub, Options{BlockSize: 512})
	require.NoError(t, err)

	c1 := r.NewCursor()
	c2 := r.NewCursor()
	_, err = c1.Seek(1000, io.SeekStart)
	require.NoError(t, err)

	b1 := make([]byte, 10)
	_, err = io.ReadFull(c1, b1)
	require.NoError(t, err)
	require.Equal(t, data[1000:1010], b1)

	b2 := make([]byte, 10)
	_, err = io.ReadFull(c2, b2)
	require.NoError(t, err)
	require.Equal(t, data[0:10], b2)
}
