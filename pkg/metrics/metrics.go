package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. Operations Applied (Counter)
	// Counts graph mutations as they are applied, labeled by operation name
	// and by mode ("local" or "remote").
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relcache_operations_total",
			Help: "Total number of graph operations applied",
		},
		[]string{"op", "mode"}, // Labels
	)

	// 2. Remote Flushes (Counter)
	// One increment per coalesced remote batch. Comparing against
	// relcache_pushed_operations_total shows how well coalescing is working.
	RemoteFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relcache_remote_flushes_total",
			Help: "Total number of remote queue flushes executed",
		},
	)

	// 3. Pushed Operations (Counter)
	// Remote operations accepted into the pending queues, labeled by bucket.
	PushedOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relcache_pushed_operations_total",
			Help: "Total number of remote operations enqueued for flush",
		},
		[]string{"bucket"},
	)

	// 4. Local Syncs (Counter)
	// One increment per local resync pass over the dirty to-many edges.
	LocalSyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relcache_local_syncs_total",
			Help: "Total number of local queue flushes executed",
		},
	)

	// 5. Edges Created (Counter)
	// Lazily materialized edges, labeled by kind.
	EdgesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relcache_edges_created_total",
			Help: "Total number of relationship edges materialized",
		},
		[]string{"kind"},
	)

	// 6. Nodes (Gauge)
	// Tracks how many identities currently hold materialized relationship state.
	Nodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relcache_nodes",
			Help: "Number of identities with materialized relationship state",
		},
	)
)
