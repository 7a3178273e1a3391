// Package metrics exposes Prometheus counters and gauges for trace
// lifecycle events, WHOIS latency, and ASN cache effectiveness.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TracesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ktr_traces_started_total",
		Help: "Number of traces started.",
	})

	TracesDone = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ktr_traces_done_total",
		Help: "Number of traces that finished, by termination reason.",
	}, []string{"reason"})

	TracesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ktr_traces_active",
		Help: "Number of trace slots currently occupied.",
	})

	WhoisLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ktr_whois_lookup_duration_seconds",
		Help:    "Time from issuing a WHOIS lookup to it resolving Found or NotFound.",
		Buckets: prometheus.DefBuckets,
	})

	AsnCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ktr_asn_cache_hits_total",
		Help: "Number of hop resolutions served from the per-trace ASN cache.",
	})

	AsnCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ktr_asn_cache_misses_total",
		Help: "Number of hop resolutions that required a fresh WHOIS lookup.",
	})
)

// WhoisTimer starts a stopwatch for one WHOIS lookup; call the returned
// function when it resolves to record the elapsed time.
func WhoisTimer() func() {
	start := time.Now()
	return func() {
		WhoisLookupDuration.Observe(time.Since(start).Seconds())
	}
}
