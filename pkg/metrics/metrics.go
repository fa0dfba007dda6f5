package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stub handler match outcomes.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
)

// StatusError is the dispatch status label used when no response was received.
const StatusError = "error"

// UnknownMethod is the bridge method label for calls to methods outside the schema.
const UnknownMethod = "unknown"

// Registry holds every protomock collector.
var Registry = prometheus.NewRegistry()

var (
	// StubRequestsTotal counts requests served by the stub handler.
	StubRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protomock_stub_requests_total",
			Help: "Total requests served by the stub handler",
		},
		[]string{"method", "outcome"},
	)

	// Stubs tracks the number of registered stubs.
	Stubs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "protomock_stubs",
			Help: "Number of stubs currently registered",
		},
	)

	// DispatchRequestsTotal counts outbound dispatcher requests by response status.
	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protomock_dispatch_requests_total",
			Help: "Total requests sent by the dispatcher",
		},
		[]string{"status"},
	)

	// DispatchDuration observes dispatcher round-trip latency in seconds.
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "protomock_dispatch_duration_seconds",
			Help:    "Dispatcher round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BridgeCallsTotal counts gRPC calls handled by the bridge.
	BridgeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protomock_bridge_calls_total",
			Help: "Total gRPC calls handled by the bridge",
		},
		[]string{"method", "code"},
	)
)

func init() {
	Registry.MustRegister(
		StubRequestsTotal,
		Stubs,
		DispatchRequestsTotal,
		DispatchDuration,
		BridgeCallsTotal,
		collectors.NewGoCollector(),
	)
}

// StatusLabel converts an HTTP status code into a label value.
func StatusLabel(code int) string {
	return strconv.Itoa(code)
}

// Handler returns an http.Handler that serves the protomock registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
