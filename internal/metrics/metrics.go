// Package metrics exposes client-side Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the request client, session layer and check-in service report to.
type Recorder interface {
	RecordRequest(operation, profile string, status int, duration time.Duration)
	RecordTeardown(reason string)
	RecordCheckIn(actor, verification, outcome string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	teardowns *prometheus.CounterVec
	checkIns  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_client_requests_total",
			Help: "Outbound API requests by operation, client profile and HTTP status (0 = transport failure).",
		}, []string{"operation", "profile", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusattend_client_request_seconds",
			Help:    "Outbound API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "profile"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_session_teardowns_total",
			Help: "Sessions torn down after an authorization failure.",
		}, []string{"reason"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_checkins_total",
			Help: "Attendance check-in attempts by actor mode, verification mode and outcome.",
		}, []string{"actor", "verification", "outcome"}),
	}
	reg.MustRegister(c.requests, c.latency, c.teardowns, c.checkIns)
	return c
}

// RecordRequest counts one request and observes its latency.
func (c *Collector) RecordRequest(operation, profile string, status int, duration time.Duration) {
	c.requests.WithLabelValues(operation, profile, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(operation, profile).Observe(duration.Seconds())
}

// RecordTeardown counts a session teardown.
func (c *Collector) RecordTeardown(reason string) {
	c.teardowns.WithLabelValues(reason).Inc()
}

// RecordCheckIn counts a check-in attempt.
func (c *Collector) RecordCheckIn(actor, verification, outcome string) {
	c.checkIns.WithLabelValues(actor, verification, outcome).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordTeardown(string)                           {}
func (Nop) RecordCheckIn(string, string, string)            {}
