package aead_test

import (
	"testing"

	"github.com/blocklayer/blockstream/transform"
	"github.com/blocklayer/blockstream/transform/aead"
	"github.com/stretchr/testify/require"
)

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	tr, err := aead.NewChaCha20Poly1305("correct horse battery staple")
	require.NoError(t, err)

	x := make([]byte, 512)
	for i := range x {
		x[i] = byte(i)
	}
	out, err := tr.Transform(x)
	require.NoError(t, err)
	require.Len(t, out, 12+16+len(x))

	scratch := make([]byte, len(x))
	n, err := tr.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, x, scratch[:n])
}

func TestChaCha20Poly1305TamperDetected(t *testing.T) {
	tr, err := aead.NewChaCha20Poly1305("passphrase")
	require.NoError(t, err)
	x := make([]byte, 64)
	out, err := tr.Transform(x)
	require.NoError(t, err)
	out[len(out)-1] ^= 0xFF

	scratch := make([]byte, len(x))
	_, err = tr.Untransform(out, scratch)
	require.Error(t, err)
}

func TestAESCTRHMACRoundTrip(t *testing.T) {
	tr, err := aead.NewAESCTRHMAC("correct horse battery staple")
	require.NoError(t, err)

	x := make([]byte, 512)
	for i := range x {
		x[i] = byte(255 - i)
	}
	out, err := tr.Transform(x)
	require.NoError(t, err)
	require.Len(t, out, 12+16+len(x))

	scratch := make([]byte, len(x))
	n, err := tr.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, x, scratch[:n])
}

func TestAESCTRHMACTamperDetected(t *testing.T) {
	tr, err := aead.NewAESCTRHMAC("passphrase")
	require.NoError(t, err)
	x := make([]byte, 64)
	out, err := tr.Transform(x)
	require.NoError(t, err)
	out[20] ^= 0xFF

	scratch := make([]byte, len(x))
	_, err = tr.Untransform(out, scratch)
	require.Error(t, err)
}

func TestRegisteredViaTransformLookup(t *testing.T) {
	factory, ok := transform.Lookup("aead")
	require.True(t, ok)

	tr, err := factory("aesctrhmac hunter2")
	require.NoError(t, err)
	require.True(t, tr.MayChangeSize())

	x := make([]byte, 128)
	out, err := tr.Transform(x)
	require.NoError(t, err)
	scratch := make([]byte, len(x))
	n, err := tr.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, x, scratch[:n])
}

func TestDifferentConstructionsAreNotInterchangeableKeys(t *testing.T) {
	a, err := aead.NewChaCha20Poly1305("same passphrase")
	require.NoError(t, err)
	b, err := aead.NewAESCTRHMAC("same passphrase")
	require.NoError(t, err)

	x := make([]byte, 64)
	out, err := a.Transform(x)
	require.NoError(t, err)
	scratch := make([]byte, len(x))
	_, err = b.Untransform(out, scratch)
	require.Error(t, err)
}
