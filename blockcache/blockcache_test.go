package blockcache_test

import (
	"testing"

	"github.com/blocklayer/blockstream/blockcache"
	"github.com/stretchr/testify/require"
)

func TestTryReadMiss(t *testing.T) {
	c := blockcache.New(2)
	buf := make([]byte, 4)
	_, ok := c.TryRead(0, buf)
	require.False(t, ok)
}

func TestStoreAndTryRead(t *testing.T) {
	c := blockcache.New(2)
	c.Store(3, []byte("abcd"))
	buf := make([]byte, 4)
	n, ok := c.TryRead(3, buf)
	require.True(t, ok)
	require.Equal(t, "abcd", string(buf[:n]))
}

func TestInvalidate(t *testing.T) {
	c := blockcache.New(2)
	c.Store(3, []byte("abcd"))
	c.Invalidate(3)
	buf := make([]byte, 4)
	_, ok := c.TryRead(3, buf)
	require.False(t, ok)
}

func TestEvictsAtCapacity(t *testing.T) {
	c := blockcache.New(1)
	c.Store(1, []byte("a"))
	c.Store(2, []byte("b"))
	buf := make([]byte, 1)
	_, ok1 := c.TryRead(1, buf)
	_, ok2 := c.TryRead(2, buf)
	require.True(t, ok1 != ok2, "exactly one of the two entries should survive a capacity-1 cache")
}

func TestZeroCapacityDisablesCache(t *testing.T) {
	c := blockcache.New(0)
	c.Store(1, []byte("a"))
	buf := make([]byte, 1)
	_, ok := c.TryRead(1, buf)
	require.False(t, ok)
}

func TestDispose(t *testing.T) {
	c := blockcache.New(2)
	c.Store(1, []byte("a"))
	c.Dispose()
	buf := make([]byte, 1)
	_, ok := c.TryRead(1, buf)
	require.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *blockcache.Cache
	c.Store(1, []byte("a"))
	c.Invalidate(1)
	c.Dispose()
	buf := make([]byte, 1)
	_, ok := c.TryRead(1, buf)
	require.False(t, ok)
}
