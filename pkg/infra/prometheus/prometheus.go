package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds. The gate itself is pure computation;
	// the upper buckets exist for the store round trip and the proxied app.
	latencyBuckets = []float64{
		1, 2, 5, // gate-only decisions
		10, 25, 50, // store round trips
		100, 250, 500, // downstream renders
		1000, 2500, 5000, // slow upstream
	}

	RequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_requests_total",
			Help: "Total number of requests processed by the gate",
		},
		[]string{"method", "status"},
	)

	RequestLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"outcome"}, // forwarded, rate_limited, forbidden, redirected, unavailable
	)

	RateLimitDenials = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_denials_total",
			Help: "Requests denied because a limit class quota was exhausted",
		},
		[]string{"class"},
	)

	// StoreFailures is the mandatory degraded-enforcement signal: every
	// request evaluated while the counter store is unreachable increments it,
	// whichever failure policy is active.
	StoreFailures = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_store_failures_total",
			Help: "Rate limit store failures, labeled by the failure policy applied",
		},
		[]string{"policy"},
	)

	Redirects = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_redirects_total",
			Help: "Redirects issued by the auth-aware router",
		},
		[]string{"kind"}, // login, away
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Handler serves the gate registry, for mounting on the metrics port.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
