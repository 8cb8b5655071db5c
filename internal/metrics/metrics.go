// README: Prometheus collectors for the ingestion and geofence pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics owns every collector used by the engine. One instance is built at
// startup and passed by reference so tests get isolated registries.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal     prometheus.Counter
	RequestReplays    prometheus.Counter
	PointsAccepted    prometheus.Counter
	PointsDropped     *prometheus.CounterVec   // reason: invalid|stale|jitter|teleport
	GeofenceEvents    *prometheus.CounterVec   // org, type
	QuotaBlocked      *prometheus.CounterVec   // org
	DwellSuppressed   prometheus.Counter
	CandidateCount    *prometheus.GaugeVec     // org
	EvalDuration      *prometheus.HistogramVec // org, shape
	SettingsAppliedAt *prometheus.GaugeVec     // org
	CacheSize         *prometheus.GaugeVec     // cache
	CacheEvictions    *prometheus.CounterVec   // cache, reason: ttl|size
	MiniAggUpdatedAt  prometheus.Gauge
	SnapshotWrites    prometheus.Counter
	SnapshotFailures  prometheus.Counter
	EventsPublished   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_ingest_requests_total",
			Help: "Ingest requests received.",
		}),
		RequestReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_ingest_request_replays_total",
			Help: "Ingest requests answered from the idempotency-key cache.",
		}),
		PointsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_points_accepted_total",
			Help: "Points that passed the sequencer and jitter filter.",
		}),
		PointsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_points_dropped_total",
			Help: "Points dropped before evaluation, by reason.",
		}, []string{"reason"}),
		GeofenceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_geofence_events_total",
			Help: "Committed geofence transitions, by tenant and type.",
		}, []string{"org", "type"}),
		QuotaBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_quota_blocked_total",
			Help: "Transitions blocked by the per-tenant daily event cap.",
		}, []string{"org"}),
		DwellSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_dwell_suppressed_total",
			Help: "Dwell timers reset by a condition flip before commit.",
		}),
		CandidateCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleettrack_geofence_candidates",
			Help: "Candidate geofences returned by the last index lookup.",
		}, []string{"org"}),
		EvalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleettrack_geofence_eval_seconds",
			Help:    "Exact containment evaluation latency.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"org", "shape"}),
		SettingsAppliedAt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleettrack_org_settings_applied_seconds",
			Help: "Unix time the tenant settings were last refreshed.",
		}, []string{"org"}),
		CacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleettrack_cache_entries",
			Help: "Entries per in-memory cache after the last sweep.",
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_cache_evictions_total",
			Help: "Cache eviction counts, by cache and reason.",
		}, []string{"cache", "reason"}),
		MiniAggUpdatedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettrack_miniagg_updated_seconds",
			Help: "Unix time of the most recent mini-aggregate update.",
		}),
		SnapshotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_snapshot_writes_total",
			Help: "Geofence-state snapshots written.",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_snapshot_failures_total",
			Help: "Snapshot loads or writes rejected or failed.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_events_published_total",
			Help: "Transitions handed to the event publisher.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		m.RequestsTotal, m.RequestReplays,
		m.PointsAccepted, m.PointsDropped,
		m.GeofenceEvents, m.QuotaBlocked, m.DwellSuppressed,
		m.CandidateCount, m.EvalDuration, m.SettingsAppliedAt,
		m.CacheSize, m.CacheEvictions,
		m.MiniAggUpdatedAt,
		m.SnapshotWrites, m.SnapshotFailures,
		m.EventsPublished,
	)
	return m
}
