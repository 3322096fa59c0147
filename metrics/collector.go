package metrics

import (
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the Prometheus series the proxy exports plus a
// rolling requests/sec counter (paulbellamy/ratecounter), read through
// RequestsPerSecond and reported in the /debug/cache response; it is
// not logged.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	CacheEvictions  prometheus.Counter
	BytesRelayed    prometheus.Counter
	UpstreamLatency prometheus.Histogram

	rate *ratecounter.RateCounter
}

// NewCollector registers the proxy's metrics under the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tavern_proxy_requests_total",
			Help: "Total proxied requests by cache outcome (hit, miss, skip).",
		}, []string{"outcome"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tavern_proxy_cache_evictions_total",
			Help: "Total cache slot evictions.",
		}),
		BytesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tavern_proxy_bytes_relayed_total",
			Help: "Total response bytes relayed to clients.",
		}),
		UpstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tavern_proxy_upstream_duration_seconds",
			Help:    "Upstream dial+forward+read latency.",
			Buckets: prometheus.DefBuckets,
		}),
		rate: ratecounter.NewRateCounter(time.Second),
	}

	reg.MustRegister(c.RequestsTotal, c.CacheEvictions, c.BytesRelayed, c.UpstreamLatency)
	return c
}

// Observe records one completed request: cache outcome, bytes relayed
// to the client, and (on a miss) the upstream round-trip duration.
func (c *Collector) Observe(outcome string, bytesSent int, upstreamLatency time.Duration) {
	c.RequestsTotal.WithLabelValues(outcome).Inc()
	c.BytesRelayed.Add(float64(bytesSent))
	c.rate.Incr(1)
	if upstreamLatency > 0 {
		c.UpstreamLatency.Observe(upstreamLatency.Seconds())
	}
}

// RequestsPerSecond returns the rolling one-second request rate.
func (c *Collector) RequestsPerSecond() int64 {
	return c.rate.Rate()
}
