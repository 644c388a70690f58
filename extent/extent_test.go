package extent_test

import (
	"testing"

	"github.com/blocklayer/blockstream/extent"
	"github.com/stretchr/testify/require"
)

func TestPutGetCount(t *testing.T) {
	m := extent.NewMap()
	require.Equal(t, 0, m.Count())
	m.Put(0, extent.Extent{Offset: 0, Length: 100})
	m.Put(1, extent.Extent{Offset: 100, Length: 50})
	require.Equal(t, 2, m.Count())

	e, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, extent.Extent{Offset: 100, Length: 50}, e)

	_, ok = m.Get(2)
	require.False(t, ok)
}

func TestTruncate(t *testing.T) {
	m := extent.NewMap()
	m.Put(0, extent.Extent{Offset: 0, Length: 10})
	m.Put(1, extent.Extent{Offset: 10, Length: 10})
	m.Put(2, extent.Extent{Offset: 20, Length: 10})
	m.Truncate(1)
	require.Equal(t, 1, m.Count())
	require.Equal(t, int64(10), m.Sum())
}

func TestFooterRoundTrip(t *testing.T) {
	m := extent.NewMap()
	m.Put(0, extent.Extent{Offset: 0, Length: 16384})
	m.Put(1, extent.Extent{Offset: 16384, Length: 200})

	body := m.EncodeFooterBody()
	require.Len(t, body, 2*extent.RecordLen)

	decoded, tombstones, err := extent.DecodeFooterBody(body)
	require.NoError(t, err)
	require.Equal(t, 0, tombstones)
	require.Equal(t, 2, decoded.Count())
	e0, _ := decoded.Get(0)
	require.Equal(t, extent.Extent{Offset: 0, Length: 16384}, e0)
}

func TestTrailerRoundTrip(t *testing.T) {
	trailer := extent.EncodeTrailer(42, 12345)
	require.Len(t, trailer, extent.TrailerLen)

	bodyLen, logicalLen, err := extent.DecodeTrailer(trailer)
	require.NoError(t, err)
	require.Equal(t, int64(42), bodyLen)
	require.Equal(t, int64(12345), logicalLen)
}

func TestNegativeFooterBodyLengthIsCorruption(t *testing.T) {
	trailer := extent.EncodeTrailer(-1, 0)
	_, _, err := extent.DecodeTrailer(trailer)
	require.Error(t, err)
}

func TestTombstoneSkippedOnDecode(t *testing.T) {
	m := extent.NewMap()
	m.Put(0, extent.Extent{Offset: 0, Length: 100})
	m.Put(1, extent.Extent{Offset: 100, Length: 50})
	body := m.EncodeFooterBody()
	// Append a tombstone record for a half-committed append.
	tombstone := extent.Extent{Offset: -1, Length: 30}
	tm := extent.NewMap()
	tm.Put(0, tombstone)
	body = append(body, tm.EncodeFooterBody()...)

	decoded, tombstones, err := extent.DecodeFooterBody(body)
	require.NoError(t, err)
	require.Equal(t, 1, tombstones)
	require.Equal(t, 2, decoded.Count())
}
