package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pointsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrun_ingest_points_accepted_total",
		Help: "Metric points accepted for persistence.",
	})
	pointsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrun_ingest_points_dropped_total",
		Help: "Metric points dropped by validation or cardinality limits.",
	})
	batchesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrun_ingest_batches_deduplicated_total",
		Help: "Batches recognized by the idempotency ledger as retries.",
	})
	cardinalityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrun_ingest_cardinality_rejections_total",
		Help: "Points rejected by the cardinality guard's hard limits.",
	})
	reorderDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mlrun_ingest_reorder_buffered_batches",
		Help: "Batches currently parked in reorder windows.",
	})
	runsCrashed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrun_ingest_runs_crashed_total",
		Help: "Runs transitioned to crashed by the heartbeat watchdog.",
	})
	runsResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrun_ingest_runs_resumed_total",
		Help: "Crashed runs successfully resumed with a resume token.",
	})
)
