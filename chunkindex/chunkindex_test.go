package chunkindex

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

func TestAddInsertsWhenAbsent(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Add(k, 1, 100, 50))
	e, ok := idx.Get(k)
	require.True(t, ok)
	require.Equal(t, Entry{Refcount: 1, Size: 100, CSize: 50}, e)
}

func TestAddAccumulatesRefcountAndOverwritesSize(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Add(k, 1, 100, 50))
	require.NoError(t, idx.Add(k, 2, 200, 60))
	e, ok := idx.Get(k)
	require.True(t, ok)
	require.Equal(t, Entry{Refcount: 3, Size: 200, CSize: 60}, e)
}

func TestAddRejectsNegativeDelta(t *testing.T) {
	idx := New()
	err := idx.Add(key(1), -1, 0, 0)
	var rangeErr *hashtable.RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "rc_delta", rangeErr.Field)
}

func TestRefcountSaturatesAtMaxValue(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Set(k, Entry{Refcount: MaxValue - 1, Size: 1, CSize: 1}))

	e, err := idx.Incref(k)
	require.NoError(t, err)
	require.Equal(t, uint32(MaxValue), e.Refcount)

	// Once saturated, further increfs are no-ops on the refcount.
	e, err = idx.Incref(k)
	require.NoError(t, err)
	require.Equal(t, uint32(MaxValue), e.Refcount)
}

func TestDecrefStickyOnceSaturated(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Set(k, Entry{Refcount: MaxValue, Size: 1, CSize: 1}))

	e, err := idx.Decref(k)
	require.NoError(t, err)
	require.Equal(t, uint32(MaxValue), e.Refcount, "a saturated count's true value is unknown, so decref must not move it")
}

func TestDecrefOnZeroIsInvariantViolation(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Set(k, Entry{Refcount: 0, Size: 1, CSize: 1}))
	_, err := idx.Decref(k)
	require.ErrorIs(t, err, hashtable.ErrInvariantViolation)
}

func TestDecrefNotFound(t *testing.T) {
	idx := New()
	_, err := idx.Decref(key(1))
	require.ErrorIs(t, err, hashtable.ErrNotFound)
}

func TestDecrefDecrementsNormally(t *testing.T) {
	idx := New()
	k := key(1)
	require.NoError(t, idx.Set(k, Entry{Refcount: 5, Size: 1, CSize: 1}))
	e, err := idx.Decref(k)
	require.NoError(t, err)
	require.Equal(t, uint32(4), e.Refcount)
}

// TestMergeRefcountSaturationIsCommutative checks that merging a into b
// yields the same saturated refcount as merging b into a, for entries
// present in both sides.
func TestMergeRefcountSaturationIsCommutative(t *testing.T) {
	k := key(1)
	buildA := func() *Index {
		idx := New()
		require.NoError(t, idx.Set(k, Entry{Refcount: MaxValue - 2, Size: 10, CSize: 5}))
		return idx
	}
	buildB := func() *Index {
		idx := New()
		require.NoError(t, idx.Set(k, Entry{Refcount: 10, Size: 20, CSize: 8}))
		return idx
	}

	aIntoB := buildB()
	require.NoError(t, aIntoB.Merge(buildA()))
	bIntoA := buildA()
	require.NoError(t, bIntoA.Merge(buildB()))

	ea, _ := aIntoB.Get(k)
	eb, _ := bIntoA.Get(k)
	require.Equal(t, uint32(MaxValue), ea.Refcount)
	require.Equal(t, uint32(MaxValue), eb.Refcount)
}

func TestMergeKeepsOwnSizeOnConflict(t *testing.T) {
	k := key(1)
	a := New()
	require.NoError(t, a.Set(k, Entry{Refcount: 1, Size: 111, CSize: 11}))
	b := New()
	require.NoError(t, b.Set(k, Entry{Refcount: 1, Size: 222, CSize: 22}))

	require.NoError(t, a.Merge(b))
	e, ok := a.Get(k)
	require.True(t, ok)
	require.Equal(t, uint32(2), e.Refcount)
	require.Equal(t, uint32(111), e.Size)
	require.Equal(t, uint32(11), e.CSize)
}

func TestSummarize(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Set(key(1), Entry{Refcount: 2, Size: 100, CSize: 40}))
	require.NoError(t, idx.Set(key(2), Entry{Refcount: 3, Size: 200, CSize: 80}))

	s, err := idx.Summarize()
	require.NoError(t, err)
	require.Equal(t, uint64(5), s.Chunks)
	require.Equal(t, uint64(2), s.UniqueChunks)
	require.Equal(t, uint64(2*100+3*200), s.Size)
	require.Equal(t, uint64(2*40+3*80), s.CSize)
	require.Equal(t, uint64(300), s.UniqueSize)
	require.Equal(t, uint64(120), s.UniqueCSize)
}

func TestWriteToOpenRoundTrip(t *testing.T) {
	idx := New()
	for i := uint32(0); i < 150; i++ {
		require.NoError(t, idx.Set(key(i), Entry{Refcount: i, Size: i * 2, CSize: i * 3}))
	}
	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	reopened, err := Open(&buf)
	require.NoError(t, err)
	require.Equal(t, idx.Len(), reopened.Len())
	for i := uint32(0); i < 150; i++ {
		e, ok := reopened.Get(key(i))
		require.True(t, ok)
		require.Equal(t, Entry{Refcount: i, Size: i * 2, CSize: i * 3}, e)
	}
}
