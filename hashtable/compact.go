package hashtable

// Compact rewrites the table so all occupied entries occupy the first
// num_entries buckets, in the ascending bucket-position order of the
// pre-compaction layout, with every tombstone removed. The result is
// truncated to exactly num_entries buckets (zero if empty).
//
// A compacted table is valid only as a read-back source: because the new
// bucket count generally no longer matches the hash-derived ideal
// positions of its entries, Lookup/Insert/Delete against a freshly
// compacted table are not guaranteed correct until it is next grown (which
// happens automatically on the next Insert that crosses the load factor).
func (t *Table) Compact() error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	n := t.numEntries
	if n == 0 {
		t.buckets = nil
		t.numBuckets = 0
		t.metrics.Compaction()
		return nil
	}
	newBuckets := make([]byte, int64(n)*int64(t.stride))
	var idx uint32
	for i := uint32(0); i < t.numBuckets; i++ {
		value := t.bucketValue(i)
		if isOccupiedValue(value) {
			key := t.bucketKey(i)
			off := int(idx) * t.stride
			copy(newBuckets[off:off+KeySize], key)
			copy(newBuckets[off+KeySize:off+t.stride], value)
			idx++
		}
	}
	t.buckets = newBuckets
	t.numBuckets = n
	t.metrics.Compaction()
	return nil
}
