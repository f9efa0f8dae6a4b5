// Package hashtable implements the persistent, memory-mappable
// open-addressed hash table engine shared by NSIndex and ChunkIndex: Robin
// Hood insertion, backshift deletion, resizing, compaction, and restartable
// iteration over a flat bucket array with a bit-exact on-disk layout.
//
// The engine is parameterized by value width only; it never branches on
// "which facade" it is serving. NSIndex and ChunkIndex (in the sibling
// nsindex and chunkindex packages) build their typed semantics on top.
package hashtable

import (
	"fmt"
	"io"

	"golang.org/x/exp/mmap"

	"github.com/rciorba/borgindex/metrics"
)

// MinBuckets is the minimum bucket-array length for a non-empty table.
const MinBuckets = 1031

// MaxLoadFactor is the load factor above which Insert triggers a grow.
const MaxLoadFactor = 0.75

// Table is the shared bucket-array engine. It is not safe for concurrent
// use: callers must serialize all mutating operations and must not mutate
// while an Iterator is outstanding.
type Table struct {
	valueSize  int
	stride     int
	numBuckets uint32
	numEntries uint32

	// buckets holds the flat bucket array: numBuckets*stride bytes, each
	// bucket laid out as KeySize bytes of key followed by valueSize bytes
	// of value. It is always an owned []byte; for a table opened via
	// OpenMMAP it is a copy of the mapped bucket array.
	buckets []byte

	mmapFile *mmap.ReaderAt // non-nil only for a memory-mapped read-only table
	readOnly bool

	metrics *metrics.Recorder // optional; every call is nil-safe
}

// SetMetrics attaches a metrics.Recorder that subsequent operations report
// to. Passing nil disables reporting (the default for New/NewSized/Open).
func (t *Table) SetMetrics(r *metrics.Recorder) { t.metrics = r }

// New creates an empty table with the given value width (8 for NSIndex, 12
// for ChunkIndex), pre-allocated to MinBuckets.
func New(valueSize int) *Table {
	if valueSize != 8 && valueSize != 12 {
		panic(fmt.Sprintf("hashtable: unsupported value size %d", valueSize))
	}
	t := &Table{
		valueSize: valueSize,
		stride:    bucketStride(valueSize),
	}
	t.resizeTo(MinBuckets)
	return t
}

// NewSized creates an empty table pre-allocated to accommodate at least
// capacityHint entries without an immediate grow.
func NewSized(valueSize int, capacityHint uint32) *Table {
	t := New(valueSize)
	if size := bucketSizeFor(capacityHint); size > t.numBuckets {
		t.resizeTo(size)
	}
	return t
}

// ValueSize returns the fixed per-entry value width.
func (t *Table) ValueSize() int { return t.valueSize }

// Len returns the number of occupied buckets.
func (t *Table) Len() int { return int(t.numEntries) }

// NumBuckets returns the current bucket array length.
func (t *Table) NumBuckets() int { return int(t.numBuckets) }

// Size returns the exact on-disk footprint this table would occupy if
// written now.
func (t *Table) Size() int64 {
	return fileSize(t.numBuckets, t.valueSize)
}

func (t *Table) bucketOffset(i uint32) int {
	return int(i) * t.stride
}

func (t *Table) bucketKey(i uint32) []byte {
	off := t.bucketOffset(i)
	return t.buckets[off : off+KeySize]
}

func (t *Table) bucketValue(i uint32) []byte {
	off := t.bucketOffset(i)
	return t.buckets[off+KeySize : off+t.stride]
}

func (t *Table) setBucket(i uint32, key, value []byte) {
	off := t.bucketOffset(i)
	copy(t.buckets[off:off+KeySize], key)
	copy(t.buckets[off+KeySize:off+t.stride], value)
}

// hash32 is the deliberately trivial engine hash: the first 4 bytes of the
// key, read little-endian. Keys are already cryptographic digests, so no
// further mixing is needed.
func hash32(key []byte) uint32 {
	return uint32(key[0]) | uint32(key[1])<<8 | uint32(key[2])<<16 | uint32(key[3])<<24
}

func (t *Table) idealPos(key []byte) uint32 {
	if t.numBuckets == 0 {
		return 0
	}
	return hash32(key) % t.numBuckets
}

func probeDistance(pos, ideal, numBuckets uint32) uint32 {
	if pos >= ideal {
		return pos - ideal
	}
	return numBuckets - ideal + pos
}

func (t *Table) checkMutable() error {
	if t.readOnly {
		return fmt.Errorf("hashtable: table opened read-only (memory-mapped)")
	}
	return nil
}

// Clear empties the table in place without requiring a subsequent grow to
// use it again immediately at MinBuckets size; it keeps the current bucket
// array length but marks every bucket EMPTY.
func (t *Table) Clear() {
	for i := uint32(0); i < t.numBuckets; i++ {
		markEmpty(t.bucketValue(i))
	}
	t.numEntries = 0
}

// Contains reports whether key is present.
func (t *Table) Contains(key []byte) bool {
	_, ok := t.Get(key)
	return ok
}

// Get is the non-raising lookup: it returns the stored value and true, or
// nil and false if the key is absent. The returned slice aliases the
// table's storage and must not be retained across mutation.
func (t *Table) Get(key []byte) ([]byte, bool) {
	pos, ok := t.find(key)
	if !ok {
		t.metrics.LookupMiss()
		return nil, false
	}
	t.metrics.LookupHit()
	return t.bucketValue(pos), true
}

// Lookup is the raising counterpart of Get, used by facades whose public
// contract raises ErrNotFound.
func (t *Table) Lookup(key []byte) ([]byte, error) {
	v, ok := t.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// find returns the bucket position of key if present. It implements the
// periodic Robin Hood short-circuit.
const probePeriod = 128

func (t *Table) find(key []byte) (uint32, bool) {
	if t.numBuckets == 0 {
		return 0, false
	}
	ideal := t.idealPos(key)
	pos := ideal
	var d uint32
	for i := uint32(0); i < t.numBuckets; i++ {
		value := t.bucketValue(pos)
		if isEmptyValue(value) {
			return 0, false
		}
		if isOccupiedValue(value) || isDeletedValue(value) {
			// Tombstones never terminate lookup but are also never a match.
			if isOccupiedValue(value) {
				if bytesEqual(t.bucketKey(pos), key) {
					return pos, true
				}
				// Robin Hood short-circuit: a tombstone's recorded key may
				// no longer reflect a real probe distance, so only occupied
				// buckets participate in the early-exit check.
				if i > 0 && i%probePeriod == 0 {
					hereIdeal := t.idealPos(t.bucketKey(pos))
					hereDist := probeDistance(pos, hereIdeal, t.numBuckets)
					if hereDist < d {
						return 0, false
					}
				}
			}
		}
		pos++
		if pos == t.numBuckets {
			pos = 0
		}
		d++
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Insert implements Robin Hood displacement insertion. value's first word
// must already be outside the sentinel range; callers (the facades) are
// responsible for that check.
func (t *Table) Insert(key, value []byte) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	if t.numBuckets == 0 || float64(t.numEntries+1) > MaxLoadFactor*float64(t.numBuckets) {
		if err := t.grow(t.numEntries + 1); err != nil {
			return err
		}
	}
	t.insertNoGrow(key, value)
	t.metrics.Insert()
	t.metrics.SetLoadFactor(float64(t.numEntries) / float64(t.numBuckets))
	return nil
}

// insertNoGrow assumes capacity has already been ensured; it is also used
// internally by resizeTo (grow, shrink, ensureProbeable) to reinsert
// existing entries.
func (t *Table) insertNoGrow(key, value []byte) {
	candidateKey := append([]byte(nil), key...)
	candidateValue := append([]byte(nil), value...)

	pos := t.idealPos(candidateKey)
	var d uint32
	for {
		cur := t.bucketValue(pos)
		switch {
		case isEmptyValue(cur) || isDeletedValue(cur):
			t.setBucket(pos, candidateKey, candidateValue)
			t.numEntries++
			return
		case bytesEqual(t.bucketKey(pos), candidateKey):
			copy(cur, candidateValue)
			return
		default:
			hereIdeal := t.idealPos(t.bucketKey(pos))
			hereDist := probeDistance(pos, hereIdeal, t.numBuckets)
			if hereDist < d {
				// Swap: the poorer-off candidate takes this slot, the
				// displaced entry continues probing with its own distance
				// reset to hereDist+1.
				evictedKey := append([]byte(nil), t.bucketKey(pos)...)
				evictedValue := append([]byte(nil), cur...)
				t.setBucket(pos, candidateKey, candidateValue)
				candidateKey, candidateValue = evictedKey, evictedValue
				d = hereDist + 1
			} else {
				d++
			}
		}
		pos++
		if pos == t.numBuckets {
			pos = 0
		}
	}
}

// Delete implements backshift deletion.
func (t *Table) Delete(key []byte) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	pos, ok := t.find(key)
	if !ok {
		return ErrNotFound
	}
	t.numEntries--

	prev := pos
	cur := pos + 1
	if cur == t.numBuckets {
		cur = 0
	}
	for {
		curValue := t.bucketValue(cur)
		if isEmptyValue(curValue) || isDeletedValue(curValue) {
			markEmpty(t.bucketValue(prev))
			break
		}
		dist := probeDistance(cur, t.idealPos(t.bucketKey(cur)), t.numBuckets)
		if dist == 0 {
			markEmpty(t.bucketValue(prev))
			break
		}
		t.setBucket(prev, t.bucketKey(cur), curValue)
		prev = cur
		cur++
		if cur == t.numBuckets {
			cur = 0
		}
	}
	t.maybeShrink()
	t.metrics.Delete()
	if t.numBuckets > 0 {
		t.metrics.SetLoadFactor(float64(t.numEntries) / float64(t.numBuckets))
	}
	return nil
}

// Iterator yields (key, value) pairs in ascending bucket-position order.
type Iterator struct {
	t   *Table
	pos uint32
	done bool
}

// Iterator returns an iterator over all occupied buckets. If marker is
// non-nil, iteration begins after the bucket containing marker (which must
// be present, else ErrNotFound); the marker itself is excluded.
func (t *Table) Iterator(marker []byte) (*Iterator, error) {
	start := uint32(0)
	if marker != nil {
		pos, ok := t.find(marker)
		if !ok {
			return nil, ErrNotFound
		}
		start = pos + 1
	}
	return &Iterator{t: t, pos: start}, nil
}

// Next returns the next (key, value) pair, or ok=false once exhausted.
// Consuming an exhausted iterator keeps returning ok=false (the Go
// equivalent of the Python generator's StopIteration).
func (it *Iterator) Next() (key, value []byte, ok bool) {
	if it.done {
		return nil, nil, false
	}
	for it.pos < it.t.numBuckets {
		v := it.t.bucketValue(it.pos)
		if isOccupiedValue(v) {
			k := it.t.bucketKey(it.pos)
			it.pos++
			return k, v, true
		}
		it.pos++
	}
	it.done = true
	return nil, nil, false
}

// WriteTo serializes the table to w. It is deterministic for a given
// in-memory bucket layout (it writes the buckets in physical array order;
// compact the table first if byte-exact reproducibility across different
// insertion histories is required).
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	h := header{
		NumEntries: t.numEntries,
		NumBuckets: t.numBuckets,
		KeySize:    KeySize,
		ValueSize:  uint8(t.valueSize),
	}
	n, err := w.Write(h.bytes())
	total := int64(n)
	if err != nil {
		return total, err
	}
	if t.numBuckets > 0 {
		n, err = w.Write(t.buckets)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Open reads a table from r. Any num_buckets is accepted, including zero
// and values below MinBuckets; load factor is not validated on read.
func Open(r io.Reader) (*Table, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	t := &Table{
		valueSize:  int(h.ValueSize),
		stride:     bucketStride(int(h.ValueSize)),
		numBuckets: h.NumBuckets,
		numEntries: h.NumEntries,
	}
	if h.NumBuckets > 0 {
		t.buckets = make([]byte, int64(h.NumBuckets)*int64(t.stride))
		if _, err := io.ReadFull(r, t.buckets); err != nil {
			return nil, fmt.Errorf("%w: short bucket array: %v", ErrFormatError, err)
		}
	}
	return t, nil
}
