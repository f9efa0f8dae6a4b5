package nsindex

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rciorba/borgindex/hashtable"
)

func key(n uint32) []byte {
	k := make([]byte, hashtable.KeySize)
	binary.LittleEndian.PutUint32(k[0:4], n)
	return k
}

func TestSetGetDelete(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Set(k, Entry{Segment: 3, Offset: 9000}))

	e, ok := idx.Get(k)
	require.True(t, ok)
	require.Equal(t, Entry{Segment: 3, Offset: 9000}, e)

	require.True(t, idx.Contains(k))
	require.NoError(t, idx.Delete(k))
	require.False(t, idx.Contains(k))
}

func TestLookupRaisesNotFound(t *testing.T) {
	idx := New()
	_, err := idx.Lookup(key(1))
	require.ErrorIs(t, err, hashtable.ErrNotFound)
}

func TestSetRejectsSegmentAboveMaxValue(t *testing.T) {
	idx := New()
	err := idx.Set(key(1), Entry{Segment: hashtable.MaxValue + 1, Offset: 0})
	var rangeErr *hashtable.RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "segment", rangeErr.Field)
}

func TestWriteToOpenRoundTrip(t *testing.T) {
	idx := New()
	for i := uint32(0); i < 200; i++ {
		require.NoError(t, idx.Set(key(i), Entry{Segment: i, Offset: i * 10}))
	}
	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	reopened, err := Open(&buf)
	require.NoError(t, err)
	require.Equal(t, idx.Len(), reopened.Len())
	for i := uint32(0); i < 200; i++ {
		e, ok := reopened.Get(key(i))
		require.True(t, ok)
		require.Equal(t, Entry{Segment: i, Offset: i * 10}, e)
	}
}

func TestIteritemsRestartFromMarker(t *testing.T) {
	idx := New()
	for i := uint32(0); i < 10; i++ {
		require.NoError(t, idx.Set(key(i), Entry{Segment: i, Offset: 0}))
	}
	it, err := idx.Iteritems(nil)
	require.NoError(t, err)
	var keys [][]byte
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, append([]byte(nil), k...))
	}
	require.Len(t, keys, 10)

	it2, err := idx.Iteritems(keys[3])
	require.NoError(t, err)
	var resumed [][]byte
	for {
		k, _, ok := it2.Next()
		if !ok {
			break
		}
		resumed = append(resumed, k)
	}
	require.Equal(t, keys[4:], resumed)
}

func TestCompact(t *testing.T) {
	idx := New()
	for i := uint32(0); i < 40; i++ {
		require.NoError(t, idx.Set(key(i), Entry{Segment: i, Offset: 0}))
	}
	for i := uint32(0); i < 15; i++ {
		require.NoError(t, idx.Delete(key(i)))
	}
	remaining := idx.Len()
	require.NoError(t, idx.Compact())
	require.Equal(t, int64(18+remaining*(32+ValueSize)), idx.Size())
}

func TestClear(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Set(key(1), Entry{Segment: 1, Offset: 1}))
	idx.Clear()
	require.Equal(t, 0, idx.Len())
	require.False(t, idx.Contains(key(1)))
}
