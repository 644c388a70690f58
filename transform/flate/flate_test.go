package flate_test

import (
	"testing"

	kflate "github.com/klauspost/compress/flate"

	"github.com/blocklayer/blockstream/transform"
	"github.com/blocklayer/blockstream/transform/flate"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tr := flate.New(kflate.DefaultCompression)
	x := bytesOf('A', 16384)
	out, err := tr.Transform(x)
	require.NoError(t, err)
	require.Less(t, len(out), len(x))

	scratch := make([]byte, len(x))
	n, err := tr.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, x, scratch[:n])
	require.True(t, tr.MayChangeSize())
}

func TestRegisteredWithLevel(t *testing.T) {
	factory, ok := transform.Lookup(flate.Name)
	require.True(t, ok)
	tr, err := factory("9")
	require.NoError(t, err)

	x := bytesOf('B', 4096)
	out, err := tr.Transform(x)
	require.NoError(t, err)
	scratch := make([]byte, len(x))
	n, err := tr.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, x, scratch[:n])
}

func TestBadLevelRejected(t *testing.T) {
	factory, ok := transform.Lookup(flate.Name)
	require.True(t, ok)
	_, err := factory("not-a-number")
	require.Error(t, err)
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
