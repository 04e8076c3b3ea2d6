// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IntakesRecorded counts intake submissions by outcome.
	IntakesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dosetrack",
		Name:      "intakes_recorded_total",
		Help:      "Intake records written, by taken state.",
	}, []string{"taken"})

	// MissedDetected counts doses flagged as missed in day views.
	MissedDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dosetrack",
		Name:      "missed_doses_detected_total",
		Help:      "Doses reported as missed by the day view.",
	})

	// StatsQueryFailures counts failed statistics sub-queries.
	StatsQueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dosetrack",
		Name:      "stats_query_failures_total",
		Help:      "Statistics sub-queries that returned an error.",
	}, []string{"metric"})

	// AggregateRuns counts nightly aggregation runs by result.
	AggregateRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dosetrack",
		Name:      "aggregate_runs_total",
		Help:      "Nightly daily-aggregate runs, by result.",
	}, []string{"result"})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dosetrack",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
