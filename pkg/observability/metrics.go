// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring view renders.
package observability

import "github.com/prometheus/client_golang/prometheus"

// RenderBuckets covers template renders from sub-millisecond cache hits to
// renders parked on slow pending values.
var RenderBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

var (
	// RendersTotal counts finished renders by view and outcome (ok, fault, error).
	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "views_renders_total",
			Help: "Finished renders",
		},
		[]string{"view", "outcome"},
	)

	// RenderDuration records render duration in seconds by view.
	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "views_render_duration_seconds",
			Help:    "Render duration",
			Buckets: RenderBuckets,
		},
		[]string{"view"},
	)

	// RenderBytesTotal counts bytes produced by successful renders.
	RenderBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "views_render_bytes_total",
			Help: "Rendered bytes",
		},
		[]string{"view"},
	)

	// RenderSignalsTotal counts continuation signals seen by the render loop.
	RenderSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "views_render_signals_total",
			Help: "Render continuation signals",
		},
		[]string{"signal"},
	)

	// RendersActive tracks renders in flight, including detached ones.
	RendersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "views_renders_active",
			Help: "Active renders",
		},
	)

	// RequestsTotal counts HTTP requests by method, status class and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "views_http_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "views_http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: RenderBuckets,
		},
		[]string{"method", "route"},
	)

	// RequestsInFlight tracks HTTP requests being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "views_http_requests_in_flight",
			Help: "In-flight requests",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RendersTotal,
		RenderDuration,
		RenderBytesTotal,
		RenderSignalsTotal,
		RendersActive,
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
	)
}
