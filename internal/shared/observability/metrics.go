package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treeline_graph_nodes_total",
		Help: "Total number of nodes in the note graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treeline_graph_edges_total",
		Help: "Total number of resolved outgoing edges in the note graph.",
	})

	UnresolvedLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treeline_unresolved_links_total",
		Help: "Number of distinct wikilink texts awaiting a target node.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treeline_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	SuppressedEchoesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treeline_suppressed_echoes_total",
		Help: "Total number of filesystem events dropped as echoes of our own writes.",
	})

	DeltasAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treeline_deltas_applied_total",
		Help: "Total number of graph deltas applied, by origin.",
	}, []string{"origin"})

	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "treeline_commit_seconds",
		Help:    "Time spent applying and persisting an interactive commit.",
		Buckets: prometheus.DefBuckets,
	})

	UndoDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treeline_undo_depth",
		Help: "Current number of deltas held on the undo stack.",
	})

	LedgerPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "treeline_ledger_pending_entries",
		Help: "Current number of pending self-write entries in the echo ledger.",
	})
)
