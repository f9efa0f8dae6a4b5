// Package nsindex implements NSIndex: a persistent map from a 32-byte
// content hash to a (segment, offset) pair locating a stored chunk. It is a
// thin typed wrapper over hashtable.Table with no refcount semantics.
package nsindex

import (
	"encoding/binary"
	"io"

	"github.com/rciorba/borgindex/hashtable"
	"github.com/rciorba/borgindex/metrics"
)

// ValueSize is the on-disk width of an NSIndex value: two uint32 words.
const ValueSize = 8

// Entry is the (segment, offset) pair NSIndex stores per key.
type Entry struct {
	Segment uint32
	Offset  uint32
}

func (e Entry) encode() []byte {
	buf := make([]byte, ValueSize)
	binary.LittleEndian.PutUint32(buf[0:4], e.Segment)
	binary.LittleEndian.PutUint32(buf[4:8], e.Offset)
	return buf
}

func decodeEntry(buf []byte) Entry {
	return Entry{
		Segment: binary.LittleEndian.Uint32(buf[0:4]),
		Offset:  binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// Index is the NSIndex facade.
type Index struct {
	table *hashtable.Table
}

// SetMetrics attaches a metrics.Recorder that the underlying table reports
// inserts, lookups, deletes, resizes, and compactions to.
func (idx *Index) SetMetrics(r *metrics.Recorder) { idx.table.SetMetrics(r) }

// New creates an empty NSIndex, pre-allocated to hashtable.MinBuckets.
func New() *Index {
	return &Index{table: hashtable.New(ValueSize)}
}

// NewSized creates an empty NSIndex sized to hold at least capacityHint
// entries without an immediate grow.
func NewSized(capacityHint uint32) *Index {
	return &Index{table: hashtable.NewSized(ValueSize, capacityHint)}
}

// Open reads an NSIndex from its on-disk representation.
func Open(r io.Reader) (*Index, error) {
	t, err := hashtable.Open(r)
	if err != nil {
		return nil, err
	}
	return &Index{table: t}, nil
}

// OpenMMAP opens an NSIndex file as a read-only memory mapping.
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

// Set assigns key to entry, failing with a *hashtable.RangeError if
// entry.Segment exceeds hashtable.MaxValue.
func (idx *Index) Set(key []byte, entry Entry) error {
	if entry.Segment > hashtable.MaxValue {
		return &hashtable.RangeError{Field: "segment", Got: int64(entry.Segment), Max: hashtable.MaxValue}
	}
	return idx.table.Insert(key, entry.encode())
}

// Delete removes key, failing with hashtable.ErrNotFound if absent.
func (idx *Index) Delete(key []byte) error { return idx.table.Delete(key) }

// Compact rewrites the index so occupied entries fill the first Len()
// buckets; see hashtable.Table.Compact for the caveat about subsequent
// mutation.
func (idx *Index) Compact() error { return idx.table.Compact() }

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
