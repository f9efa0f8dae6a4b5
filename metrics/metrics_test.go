package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, "borgindex")

	r.Insert()
	r.Insert()
	r.LookupHit()
	r.LookupMiss()
	r.LookupMiss()
	r.LookupMiss()
	r.Delete()
	r.Grow()
	r.Compaction()
	r.Saturation()
	r.SetLoadFactor(0.5)

	require.NoError(t, testutil.CollectAndCompare(reg, strings.NewReader(`
		# HELP borgindex_hashtable_inserts_total Number of successful Insert calls.
		# TYPE borgindex_hashtable_inserts_total counter
		borgindex_hashtable_inserts_total 2
		# HELP borgindex_hashtable_lookup_hits_total Number of Lookup/Get calls that found the key.
		# TYPE borgindex_hashtable_lookup_hits_total counter
		borgindex_hashtable_lookup_hits_total 1
		# HELP borgindex_hashtable_lookup_misses_total Number of Lookup/Get calls that did not find the key.
		# TYPE borgindex_hashtable_lookup_misses_total counter
		borgindex_hashtable_lookup_misses_total 3
		# HELP borgindex_hashtable_deletes_total Number of successful Delete calls.
		# TYPE borgindex_hashtable_deletes_total counter
		borgindex_hashtable_deletes_total 1
	`), "borgindex_hashtable_inserts_total", "borgindex_hashtable_lookup_hits_total",
		"borgindex_hashtable_lookup_misses_total", "borgindex_hashtable_deletes_total"))

	require.Equal(t, 1, testutil.CollectAndCount(reg, "borgindex_hashtable_resizes_grow_total"))
	require.InDelta(t, 1, testutil.ToFloat64(r.grows), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.compactions), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.saturations), 0)
	require.InDelta(t, 0.5, testutil.ToFloat64(r.loadFactor), 0)
}

// TestRecorderNilIsSafe checks that every method on a nil *Recorder is a
// no-op rather than a nil pointer dereference, so callers can pass a nil
// Recorder unconditionally.
func TestRecorderNilIsSafe(t *testing.T) {
	var r *Recorder
	r.Insert()
	r.LookupHit()
	r.LookupMiss()
	r.Delete()
	r.Grow()
	r.Shrink()
	r.Compaction()
	r.Saturation()
	r.SetLoadFactor(0.9)
}

// TestNewRecorderWithoutRegistry checks that a nil Registerer skips
// registration but still returns a usable Recorder, for callers that only
// want in-process counters without exposing a /metrics endpoint.
func TestNewRecorderWithoutRegistry(t *testing.T) {
	r := NewRecorder(nil, "borgindex")
	require.NotPanics(t, func() { r.Insert() })
	require.Equal(t, float64(1), testutil.ToFloat64(r.inserts))
}
