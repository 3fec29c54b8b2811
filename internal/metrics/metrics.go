// Package metrics holds the Prometheus collectors of the web front-end.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attendance_web"

// Metrics is passed to the components that record measurements. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	PageRequests     *prometheus.CounterVec
	PageDuration     *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	QueryLookups     *prometheus.CounterVec
	QueryDiscarded   prometheus.Counter
	QueryEntries     prometheus.Gauge
	SessionLogins    prometheus.Counter
	SessionLogouts   prometheus.Counter
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		PageRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_requests_total",
				Help:      "Total number of page requests served",
			},
			[]string{"route", "code"},
		),
		PageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_duration_seconds",
				Help:      "Page request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		UpstreamRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of requests sent to the attendance API",
			},
			[]string{"method", "status"}, // status=2xx/4xx/5xx/error
		),
		UpstreamDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Attendance API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		QueryLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_lookups_total",
				Help:      "Query cache lookups by result",
			},
			[]string{"result"}, // result=fresh/stale/miss
		),
		QueryDiscarded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_discarded_total",
				Help:      "Fetch results dropped because a newer fetch superseded them",
			},
		),
		QueryEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "query_entries",
				Help:      "Number of entries held by the query cache",
			},
		),
		SessionLogins: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_logins_total",
				Help:      "Successful logins",
			},
		),
		SessionLogouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_logouts_total",
				Help:      "Logouts",
			},
		),
	}
}

// StatusClass buckets an HTTP status code into "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
