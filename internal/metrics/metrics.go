// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes used as the result label of SnapshotFetches.
const (
	ResultOK          = "ok"
	ResultNetwork     = "network_failure"
	ResultApplication = "application_failure"
	ResultStale       = "stale"
)

// Metrics groups the dashboard collectors so tests can register them against
// a private registry.
type Metrics struct {
	SnapshotFetches  *prometheus.CounterVec
	FetchesInFlight  prometheus.Gauge
	FetchDuration    prometheus.Histogram
	LiveEvents       prometheus.Counter
	LiveDropped      prometheus.Counter
	LiveReconnects   prometheus.Counter
	LiveJoined       prometheus.Gauge
	TimelineRecords  prometheus.Gauge
	Submissions      *prometheus.CounterVec
	SchedulerEnabled prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SnapshotFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_snapshot_fetches_total",
			Help: "Snapshot fetches by outcome",
		}, []string{"result"}),
		FetchesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_snapshot_fetches_in_flight",
			Help: "Snapshot fetches issued and not yet resolved",
		}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_snapshot_fetch_duration_seconds",
			Help:    "Duration of snapshot pulls",
			Buckets: prometheus.DefBuckets,
		}),
		LiveEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_live_events_total",
			Help: "Live telemetry events merged into the timeline",
		}),
		LiveDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_live_events_dropped_total",
			Help: "Live frames that could not be decoded or lacked a device",
		}),
		LiveReconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_live_reconnects_total",
			Help: "Live channel reconnect attempts",
		}),
		LiveJoined: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_live_joined",
			Help: "1 while the live channel is joined to its room",
		}),
		TimelineRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_timeline_records",
			Help: "Current number of records in the timeline store",
		}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_submissions_total",
			Help: "Telemetry submissions by outcome",
		}, []string{"result"}),
		SchedulerEnabled: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_auto_refresh_enabled",
			Help: "1 while periodic refresh is armed",
		}),
	}
}
