package transform_test

import (
	"testing"

	"github.com/blocklayer/blockstream/transform"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTrip(t *testing.T) {
	var id transform.Identity
	x := []byte("hello, block")
	out, err := id.Transform(x)
	require.NoError(t, err)
	require.Equal(t, x, out)

	scratch := make([]byte, len(x))
	n, err := id.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, len(x), n)
	require.Equal(t, x, scratch[:n])
	require.False(t, id.MayChangeSize())
}

type addSuffix struct {
	suffix   []byte
	mayGrow  bool
}

func (a addSuffix) Transform(in []byte) ([]byte, error) {
	return append(append([]byte{}, in...), a.suffix...), nil
}

func (a addSuffix) Untransform(in, scratch []byte) (int, error) {
	n := len(in) - len(a.suffix)
	return copy(scratch, in[:n]), nil
}

func (a addSuffix) MayChangeSize() bool { return a.mayGrow }

func TestCompositeRoundTrip(t *testing.T) {
	c := transform.NewComposite(
		addSuffix{suffix: []byte("A"), mayGrow: true},
		addSuffix{suffix: []byte("BB"), mayGrow: true},
	)
	require.True(t, c.MayChangeSize())

	x := []byte("payload")
	out, err := c.Transform(x)
	require.NoError(t, err)
	require.Equal(t, "payloadABB", string(out))

	scratch := make([]byte, len(x)+8)
	n, err := c.Untransform(out, scratch)
	require.NoError(t, err)
	require.Equal(t, x, scratch[:n])
}

func TestIdentityUntransformToleratesAliasing(t *testing.T) {
	var id transform.Identity
	buf := []byte("hello, block")
	n, err := id.Untransform(buf, buf)
	require.NoError(t, err)
	require.Equal(t, "hello, block", string(buf[:n]))
}

func TestCompositeUntransformToleratesAliasing(t *testing.T) {
	// addSuffix shrinks in place (it only reads a prefix of in), so a
	// Composite built from it can decode directly into a scratch buffer
	// that aliases its input.
	c := transform.NewComposite(addSuffix{suffix: []byte("A"), mayGrow: true})
	buf := make([]byte, 0, 16)
	buf = append(buf, "payloadA"...)
	n, err := c.Untransform(buf, buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf[:n]))
}

func TestCompositeWithNoStagesUntransformToleratesAliasing(t *testing.T) {
	c := transform.NewComposite()
	buf := []byte("passthrough")
	n, err := c.Untransform(buf, buf)
	require.NoError(t, err)
	require.Equal(t, "passthrough", string(buf[:n]))
}

func TestRegisterAndLookup(t *testing.T) {
	transform.Register("test/noop-xyz", func(config string) (transform.Transformer, error) {
		return transform.Identity{}, nil
	})
	factory, ok := transform.Lookup("test/noop-xyz")
	require.True(t, ok)
	tr, err := factory("")
	require.NoError(t, err)
	require.False(t, tr.MayChangeSize())

	_, ok = transform.Lookup("does-not-exist")
	require.False(t, ok)
}
