package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PointsSpent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilltree_points_spent_total",
		Help: "Total number of points invested, labelled by tree ID.",
	}, []string{"tree_id"})

	SpendsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilltree_spends_rejected_total",
		Help: "Total number of spend attempts on nodes that were not eligible.",
	}, []string{"tree_id"})

	PointsRefunded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilltree_points_refunded_total",
		Help: "Total number of refund operations, labelled by tree ID.",
	}, []string{"tree_id"})

	CascadeResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilltree_cascade_resets_total",
		Help: "Total number of descendant nodes zeroed by refund cascades.",
	}, []string{"tree_id"})

	LinksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skilltree_links_rejected_total",
		Help: "Total number of link attempts rejected as self, duplicate or cycle.",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skilltree_sessions_active",
		Help: "Number of sessions currently held in memory.",
	})

	SessionLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilltree_session_loads_total",
		Help: "Session loads from the snapshot store, labelled by result.",
	}, []string{"result"})

	SnapshotsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilltree_snapshots_saved_total",
		Help: "Snapshot writes, labelled by status (ok, error, dropped).",
	}, []string{"status"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skilltree_command_duration_ms",
		Help:    "Time spent holding a session lock per command, in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	}, []string{"command"})

	PersistQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skilltree_persist_queue_utilization_ratio",
		Help: "Current snapshot write queue utilization (0–1).",
	})

	TemplatesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skilltree_templates_loaded",
		Help: "Number of tree templates in the active catalog.",
	})
)
