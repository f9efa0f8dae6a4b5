package hashtable

// Merge iterates every occupied entry of other and, for each key absent in
// t, inserts a copy; for each key already present in t, overwrites it with
// combine(existing, incoming). combine's first argument aliases t's
// storage and must not be retained past the call. Used by chunkindex.Merge
// to implement its saturating-refcount merge; nsindex has no merge
// operation.
//
// If t was produced by Compact and never regrown, its bucket count no
// longer matches its entries' hash-derived ideal positions; Merge regrows
// it first so the Get/Insert probes below see a consistent table instead
// of silently missing an existing key and duplicating it.
func (t *Table) Merge(other *Table, combine func(existing, incoming []byte) []byte) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	t.ensureProbeable()
	it, err := other.Iterator(nil)
	if err != nil {
		return err
	}
	for {
		key, incoming, ok := it.Next()
		if !ok {
			break
		}
		if existing, found := t.Get(key); found {
			merged := combine(existing, incoming)
			if err := t.Insert(key, merged); err != nil {
				return err
			}
		} else {
			if err := t.Insert(key, incoming); err != nil {
				return err
			}
		}
	}
	return nil
}
