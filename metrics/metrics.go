// Package metrics provides optional Prometheus instrumentation for
// hashtable/nsindex/chunkindex: counters/gauges registered against an
// injected registry rather than reached for via global state. Every
// method is nil-receiver safe so callers that don't want metrics can pass
// a nil *Recorder and pay no instrumentation cost.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds the counters and gauges a hashtable.Table reports to, if
// configured with one via (*hashtable.Table).SetMetrics. A nil *Recorder is valid
// and every method on it is a no-op.
type Recorder struct {
	inserts     prometheus.Counter
	lookupHits  prometheus.Counter
	lookupMiss  prometheus.Counter
	deletes     prometheus.Counter
	grows       prometheus.Counter
	shrinks     prometheus.Counter
	compactions prometheus.Counter
	saturations prometheus.Counter
	loadFactor  prometheus.Gauge
}

// NewRecorder builds a Recorder and registers its metrics under namespace
// (typically "borgindex") against reg. Passing a fresh
// prometheus.NewRegistry() keeps index metrics isolated from the process's
// default registry rather than relying on prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer, namespace string) *Recorder {
	r := &Recorder{
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "inserts_total",
			Help: "Number of successful Insert calls.",
		}),
		lookupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "lookup_hits_total",
			Help: "Number of Lookup/Get calls that found the key.",
		}),
		lookupMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "lookup_misses_total",
			Help: "Number of Lookup/Get calls that did not find the key.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "deletes_total",
			Help: "Number of successful Delete calls.",
		}),
		grows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "resizes_grow_total",
			Help: "Number of times the bucket array was grown.",
		}),
		shrinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "resizes_shrink_total",
			Help: "Number of times the bucket array was shrunk.",
		}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "compactions_total",
			Help: "Number of Compact calls.",
		}),
		saturations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chunkindex", Name: "refcount_saturations_total",
			Help: "Number of Add/Incref calls whose refcount clamped at MaxValue.",
		}),
		loadFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "hashtable", Name: "load_factor",
			Help: "Current num_entries / num_buckets ratio.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.inserts, r.lookupHits, r.lookupMiss, r.deletes,
			r.grows, r.shrinks, r.compactions, r.saturations, r.loadFactor)
	}
	return r
}

func (r *Recorder) Insert() {
	if r != nil {
		r.inserts.Inc()
	}
}

func (r *Recorder) LookupHit() {
	if r != nil {
		r.lookupHits.Inc()
	}
}

func (r *Recorder) LookupMiss() {
	if r != nil {
		r.lookupMiss.Inc()
	}
}

func (r *Recorder) Delete() {
	if r != nil {
		r.deletes.Inc()
	}
}

func (r *Recorder) Grow() {
	if r != nil {
		r.grows.Inc()
	}
}

func (r *Recorder) Shrink() {
	if r != nil {
		r.shrinks.Inc()
	}
}

func (r *Recorder) Compaction() {
	if r != nil {
		r.compactions.Inc()
	}
}

func (r *Recorder) Saturation() {
	if r != nil {
		r.saturations.Inc()
	}
}

func (r *Recorder) SetLoadFactor(f float64) {
	if r != nil {
		r.loadFactor.Set(f)
	}
}
