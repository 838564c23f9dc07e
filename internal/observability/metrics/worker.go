// Package metrics provides conversion worker metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bucket layouts shared by the duration histograms.
const (
	BucketStart10ms  = 0.01
	BucketStart100ms = 0.1
	BucketFactor2    = 2
	BucketCount12    = 12
)

// Label values.
const (
	ResultApplied = "applied"
	ResultStale   = "stale"
	ResultError   = "error"
)

// WorkerMetrics contains Prometheus metrics for the conversion pipeline.
//
// All record methods are safe on a nil receiver so components can run without a registry.
type WorkerMetrics struct {
	registry *prometheus.Registry

	// Job lifecycle metrics
	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	malformedPayload prometheus.Counter

	// Track lookup metrics
	lookupsTotal    *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	lookupsInFlight prometheus.Gauge

	// Store metrics
	statusPublishTotal *prometheus.CounterVec
	historyWritesTotal *prometheus.CounterVec
}

// NewWorkerMetrics creates and registers new worker metrics
func NewWorkerMetrics(registry *prometheus.Registry) (*WorkerMetrics, error) {
	m := &WorkerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *WorkerMetrics) initMetrics() {
	m.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plconv_jobs_total",
			Help: "Total number of conversion jobs that reached a terminal status",
		},
		[]string{"status", "cause"}, // status: completed, failed
	)

	m.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "plconv_job_duration_seconds",
			Help: "Wall time from dequeue to terminal status",
			// 100ms up to ~3.4 minutes
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12),
		},
		[]string{"status"},
	)

	m.malformedPayload = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plconv_malformed_payloads_total",
			Help: "Total number of queue payloads discarded as malformed",
		},
	)

	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plconv_lookups_total",
			Help: "Total number of destination catalog lookups by outcome",
		},
		[]string{"outcome", "cause"},
	)

	m.lookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "plconv_lookup_duration_seconds",
			Help: "Time taken by one destination catalog lookup",
			// 10ms up to ~20s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
	)

	m.lookupsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "plconv_lookups_in_flight",
			Help: "Number of destination catalog lookups currently running",
		},
	)

	m.statusPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plconv_status_publish_total",
			Help: "Total number of status projection writes",
		},
		[]string{"result"}, // result: applied, stale, error
	)

	m.historyWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plconv_history_writes_total",
			Help: "Total number of durable history writes",
		},
		[]string{"kind", "result"}, // kind: record, failure
	)
}

// Describe implements the Collector interface
func (m *WorkerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.jobsTotal.Describe(ch)
	m.jobDuration.Describe(ch)
	m.malformedPayload.Describe(ch)
	m.lookupsTotal.Describe(ch)
	m.lookupDuration.Describe(ch)
	m.lookupsInFlight.Describe(ch)
	m.statusPublishTotal.Describe(ch)
	m.historyWritesTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *WorkerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.jobsTotal.Collect(ch)
	m.jobDuration.Collect(ch)
	m.malformedPayload.Collect(ch)
	m.lookupsTotal.Collect(ch)
	m.lookupDuration.Collect(ch)
	m.lookupsInFlight.Collect(ch)
	m.statusPublishTotal.Collect(ch)
	m.historyWritesTotal.Collect(ch)
}

// RecordJob records a job reaching a terminal status.
func (m *WorkerMetrics) RecordJob(status, cause string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status, cause).Inc()
	m.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordMalformedPayload records a discarded queue payload.
func (m *WorkerMetrics) RecordMalformedPayload() {
	if m == nil {
		return
	}
	m.malformedPayload.Inc()
}

// RecordLookup records one finished lookup.
func (m *WorkerMetrics) RecordLookup(outcome, cause string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(outcome, cause).Inc()
	m.lookupDuration.Observe(duration.Seconds())
}

// LookupStarted increments the in-flight gauge.
func (m *WorkerMetrics) LookupStarted() {
	if m == nil {
		return
	}
	m.lookupsInFlight.Inc()
}

// LookupFinished decrements the in-flight gauge.
func (m *WorkerMetrics) LookupFinished() {
	if m == nil {
		return
	}
	m.lookupsInFlight.Dec()
}

// RecordStatusPublish records a status write result: applied, stale or error.
func (m *WorkerMetrics) RecordStatusPublish(result string) {
	if m == nil {
		return
	}
	m.statusPublishTotal.WithLabelValues(result).Inc()
}

// RecordHistoryWrite records a durable write of kind "record" or "failure".
func (m *WorkerMetrics) RecordHistoryWrite(kind string, err error) {
	if m == nil {
		return
	}
	result := ResultApplied
	if err != nil {
		result = ResultError
	}
	m.historyWritesTotal.WithLabelValues(kind, result).Inc()
}
