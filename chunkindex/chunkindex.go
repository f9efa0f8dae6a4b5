// Package chunkindex implements ChunkIndex: a persistent map from a
// 32-byte content hash to a (refcount, size, csize) triple, with saturating
// reference-count arithmetic. It is a thin typed wrapper over
// hashtable.Table.
package chunkindex

import (
	"encoding/binary"
	"io"

	"github.com/rciorba/borgindex/hashtable"
	"github.com/rciorba/borgindex/metrics"
)

// ValueSize is the on-disk width of a ChunkIndex value: three uint32 words.
const ValueSize = 12

// MaxValue is the saturation ceiling for refcounts, re-exported from
// hashtable for callers that don't otherwise import it.
const MaxValue = hashtable.MaxValue

// Entry is the (refcount, size, csize) triple ChunkIndex stores per key.
type Entry struct {
	Refcount uint32
	Size     uint32
	CSize    uint32
}

func (e Entry) encode() []byte {
	buf := make([]byte, ValueSize)
	binary.LittleEndian.PutUint32(buf[0:4], e.Refcount)
	binary.LittleEndian.PutUint32(buf[4:8], e.Size)
	binary.LittleEndian.PutUint32(buf[8:12], e.CSize)
	return buf
}

func decodeEntry(buf []byte) Entry {
	return Entry{
		Refcount: binary.LittleEndian.Uint32(buf[0:4]),
		Size:     binary.LittleEndian.Uint32(buf[4:8]),
		CSize:    binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// saturate clamps x at MaxValue: because MaxValue is odd,
// MaxValue/2 + MaxValue/2 == MaxValue-1 is the largest non-saturating sum.
func saturate(x uint64) uint32 {
	if x >= uint64(MaxValue) {
		return MaxValue
	}
	return uint32(x)
}

// Index is the ChunkIndex facade.
type Index struct {
	table   *hashtable.Table
	metrics *metrics.Recorder
}

// SetMetrics attaches a metrics.Recorder that both the underlying table and
// ChunkIndex-specific events (refcount saturation) report to.
func (idx *Index) SetMetrics(r *metrics.Recorder) {
	idx.metrics = r
	idx.table.SetMetrics(r)
}

// New creates an empty ChunkIndex, pre-allocated to hashtable.MinBuckets.
func New() *Index {
	return &Index{table: hashtable.New(ValueSize)}
}

// NewSized creates an empty ChunkIndex sized to hold at least capacityHint
// entries without an immediate grow.
func NewSized(capacityHint uint32) *Index {
	return &Index{table: hashtable.NewSized(ValueSize, capacityHint)}
}

// Open reads a ChunkIndex from its on-disk representation.
func Open(r io.Reader) (*Index, error) {
	t, err := hashtable.Open(r)
	if err != nil {
		return nil, err
	}
	return &Index{table: t}, nil
}

// OpenMMAP opens a ChunkIndex file as a read-only memory mapping.
func OpenMMAP(path string) (*Index, error) {
	t, err := hashtable.OpenMMAP(path)
	if err != nil {
		return nil, err
	}
	return &Index{table: t}, nil
}

// Close releases the memory mapping backing an index opened via OpenMMAP.
func (idx *Index) Close() error { return idx.table.Close() }

// WriteTo serializes the index to its on-disk representation.
func (idx *Index) WriteTo(w io.Writer) (int64, error) { return idx.table.WriteTo(w) }

// Len returns the number of entries.
func (idx *Index) Len() int { return idx.table.Len() }

// Size returns the exact on-disk footprint.
func (idx *Index) Size() int64 { return idx.table.Size() }

// Clear empties the index in place.
func (idx *Index) Clear() { idx.table.Clear() }

// Contains reports whether key is present.
func (idx *Index) Contains(key []byte) bool { return idx.table.Contains(key) }

// Get returns the entry for key, or ok=false if absent.
func (idx *Index) Get(key []byte) (Entry, bool) {
	v, ok := idx.table.Get(key)
	if !ok {
		return Entry{}, false
	}
	return decodeEntry(v), true
}

// Lookup is the raising counterpart of Get.
func (idx *Index) Lookup(key []byte) (Entry, error) {
	e, ok := idx.Get(key)
	if !ok {
		return Entry{}, hashtable.ErrNotFound
	}
	return e, nil
}

// Set directly assigns key to entry, failing with a *hashtable.RangeError
// if entry.Refcount exceeds MaxValue.
func (idx *Index) Set(key []byte, entry Entry) error {
	if entry.Refcount > MaxValue {
		return &hashtable.RangeError{Field: "refcount", Got: int64(entry.Refcount), Max: MaxValue}
	}
	return idx.table.Insert(key, entry.encode())
}

// Add inserts or accumulates: if key is absent it inserts
// (saturate(rcDelta), size, csize); if present, the stored refcount becomes saturate(old_rc +
// rcDelta) and size/csize are overwritten with the new values. rcDelta must
// be non-negative.
func (idx *Index) Add(key []byte, rcDelta int64, size, csize uint32) error {
	if rcDelta < 0 {
		return &hashtable.RangeError{Field: "rc_delta", Got: rcDelta, Max: MaxValue}
	}
	existing, found := idx.Get(key)
	if !found {
		rc := saturate(uint64(rcDelta))
		idx.noteSaturation(rc)
		return idx.Set(key, Entry{Refcount: rc, Size: size, CSize: csize})
	}
	rc := saturate(uint64(existing.Refcount) + uint64(rcDelta))
	idx.noteSaturation(rc)
	return idx.Set(key, Entry{
		Refcount: rc,
		Size:     size,
		CSize:    csize,
	})
}

// noteSaturation reports a metrics event when a refcount update clamped at
// MaxValue, i.e. its true count is no longer representable.
func (idx *Index) noteSaturation(rc uint32) {
	if rc == MaxValue {
		idx.metrics.Saturation()
	}
}

// Incref requires key to be present (else hashtable.ErrNotFound), sets
// refcount := saturate(old+1), and returns the updated entry.
func (idx *Index) Incref(key []byte) (Entry, error) {
	e, ok := idx.Get(key)
	if !ok {
		return Entry{}, hashtable.ErrNotFound
	}
	e.Refcount = saturate(uint64(e.Refcount) + 1)
	idx.noteSaturation(e.Refcount)
	if err := idx.Set(key, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Decref requires key to be present (else hashtable.ErrNotFound) and its
// refcount to be nonzero (else hashtable.ErrInvariantViolation). A
// refcount already at MaxValue is sticky: its true count is unknown, so it
// stays at MaxValue forever rather than risk freeing a live chunk.
func (idx *Index) Decref(key []byte) (Entry, error) {
	e, ok := idx.Get(key)
	if !ok {
		return Entry{}, hashtable.ErrNotFound
	}
	if e.Refcount == 0 {
		return Entry{}, hashtable.ErrInvariantViolation
	}
	if e.Refcount != MaxValue {
		e.Refcount--
		if err := idx.Set(key, e); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// Delete removes key, failing with hashtable.ErrNotFound if absent.
func (idx *Index) Delete(key []byte) error { return idx.table.Delete(key) }

// Compact rewrites the index so occupied entries fill the first Len()
// buckets; see hashtable.Table.Compact for the caveat about subsequent
// mutation.
func (idx *Index) Compact() error { return idx.table.Compact() }

// Merge combines other into idx: for a key absent in idx, other's entry is
// copied in; for a key present in both, the refcounts saturate-add and
// idx's own size/csize are kept (they are authoritative because they were
// written by the local chunker at ingestion). Merge is commutative in
// refcount and non-commutative in (size, csize).
func (idx *Index) Merge(other *Index) error {
	return idx.table.Merge(other.table, func(existing, incoming []byte) []byte {
		selfEntry := decodeEntry(existing)
		otherEntry := decodeEntry(incoming)
		return Entry{
			Refcount: saturate(uint64(selfEntry.Refcount) + uint64(otherEntry.Refcount)),
			Size:     selfEntry.Size,
			CSize:    selfEntry.CSize,
		}.encode()
	})
}

// Summary is the aggregate result of Summarize.
type Summary struct {
	Size         uint64
	CSize        uint64
	UniqueSize   uint64
	UniqueCSize  uint64
	UniqueChunks uint64
	Chunks       uint64
}

// Summarize computes aggregate statistics over every entry: chunks = Σrc,
// size = Σrc*size, csize = Σrc*csize, unique_chunks = num_entries,
// unique_size = Σsize, unique_csize = Σcsize. A sticky (saturated) refcount
// contributes MaxValue to chunks/size/csize as-is.
func (idx *Index) Summarize() (Summary, error) {
	var s Summary
	it, err := idx.table.Iterator(nil)
	if err != nil {
		return Summary{}, err
	}
	for {
		_, v, ok := it.Next()
		if !ok {
			break
		}
		e := decodeEntry(v)
		rc := uint64(e.Refcount)
		s.Chunks += rc
		s.Size += rc * uint64(e.Size)
		s.CSize += rc * uint64(e.CSize)
		s.UniqueSize += uint64(e.Size)
		s.UniqueCSize += uint64(e.CSize)
		s.UniqueChunks++
	}
	return s, nil
}

// Iterator yields (key, Entry) pairs in ascending bucket-position order.
type Iterator struct{ it *hashtable.Iterator }

// Iteritems returns an iterator over all entries. If marker is non-nil,
// iteration begins after the bucket containing marker.
func (idx *Index) Iteritems(marker []byte) (*Iterator, error) {
	it, err := idx.table.Iterator(marker)
	if err != nil {
		return nil, err
	}
	return &Iterator{it: it}, nil
}

// Next returns the next (key, Entry) pair, or ok=false once exhausted.
func (it *Iterator) Next() (key []byte, entry Entry, ok bool) {
	k, v, ok := it.it.Next()
	if !ok {
		return nil, Entry{}, false
	}
	return k, decodeEntry(v), true
}
