// Package metrics exposes Prometheus collectors for request counts,
// latency, and in-flight cancellable streams (spec.md names caching,
// retries, connection multiplexing, and token accounting out of scope, but
// says nothing about observability, so it gets the same ecosystem library
// treatment as the rest of the ambient stack).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups every metric the gateway records. Labeled by provider
// format (reasoner/anthropic/openai) and path (direct/composite) so a
// dashboard can break down latency and error rate per upstream family.
type Collectors struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlightStreams prometheus.GaugeFunc
}

// New builds a fresh registry and registers every collector against it.
// inFlight is polled on scrape, not pushed, so it stays accurate even if a
// stream's goroutine never calls back into this package directly —
// dispatcher.Dispatcher exposes its cancellation registry size for exactly
// this purpose.
func New(inFlight func() int) *Collectors {
	registry := prometheus.NewRegistry()

	c := &Collectors{
		registry: registry,
		requestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "deepgate",
			Name:      "requests_total",
			Help:      "Total chat completion requests by provider format, path, and outcome.",
		}, []string{"format", "path", "outcome"}),
		requestDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deepgate",
			Name:      "request_duration_seconds",
			Help:      "Request latency by provider format and path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format", "path"}),
	}
	c.inFlightStreams = promauto.With(registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "deepgate",
		Name:      "in_flight_streams",
		Help:      "Number of chat completions currently cancellable.",
	}, func() float64 { return float64(inFlight()) })

	return c
}

// ObserveRequest records one completed request's outcome and latency.
func (c *Collectors) ObserveRequest(format, path, outcome string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(format, path, outcome).Inc()
	c.requestDuration.WithLabelValues(format, path).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
