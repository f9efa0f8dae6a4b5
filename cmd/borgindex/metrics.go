package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rciorba/borgindex/metrics"
)

// metricsRecorder is populated by main's App.Before once flags are parsed,
// so every command's Action can attach it to the index it opens.
var metricsRecorder *metrics.Recorder

func newMetricsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "If non-empty, serve Prometheus metrics at /metrics on this address (e.g. :9090)",
			EnvVars: []string{"BORGINDEX_METRICS_ADDR"},
		},
	}
}

// newMetricsRecorder builds a Recorder against a fresh registry and, if
// addr is non-empty, serves that registry at /metrics on addr in the
// background for the lifetime of the command.
func newMetricsRecorder(addr string) *metrics.Recorder {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg, "borgindex")
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				klog.Errorf("metrics: server on %s stopped: %v", addr, err)
			}
		}()
	}
	return rec
}
