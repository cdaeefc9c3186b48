package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	probes      *prometheus.CounterVec
	skipped     prometheus.Counter
	stale       prometheus.Counter
	probeDur    prometheus.Histogram
	transitions *prometheus.CounterVec
	active      prometheus.Gauge
	notified    *prometheus.CounterVec
	saves       *prometheus.CounterVec
}

// newMetrics registers on reg; a nil reg leaves the collectors unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_probes_total", Help: "Probe results applied to status records",
		}, []string{"result"}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_probe_skipped_total", Help: "Scheduled firings skipped because a probe was in flight",
		}),
		stale: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_probe_stale_total", Help: "Probe results dropped for removed or paused targets",
		}),
		probeDur: f.NewHistogram(prometheus.HistogramOpts{
			Name: "monitor_probe_duration_seconds", Help: "Wall time of a probe",
			Buckets: prometheus.DefBuckets,
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_transitions_total", Help: "UP/DOWN transitions",
		}, []string{"to"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_active_targets", Help: "Targets with a running schedule",
		}),
		notified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_notifications_total", Help: "Transition notifications by outcome",
		}, []string{"outcome"}),
		saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_snapshot_saves_total", Help: "Snapshot saves by outcome",
		}, []string{"outcome"}),
	}
}
