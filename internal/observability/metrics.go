package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PredictLedger.
type Metrics struct {
	// --- Engine operations ---
	OpsApplied     *prometheus.CounterVec
	OpsRejected    *prometheus.CounterVec
	OpDuration     *prometheus.HistogramVec
	EngineSequence prometheus.Gauge

	// --- Markets ---
	MarketsCreated      prometheus.Counter
	MarketsResolved     *prometheus.CounterVec
	StakeVolume         *prometheus.CounterVec
	ProposalsChallenged prometheus.Counter
	TransferFailures    prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- Outbound publishing ---
	PublishDrops  prometheus.Counter
	PublishErrors prometheus.Counter

	// --- Projections ---
	ProjectionDrops prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_engine_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_engine_ops_rejected_total",
			Help: "Operations rejected by precondition checks",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predict_engine_op_duration_seconds",
			Help:    "Time to apply a single engine operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "predict_engine_sequence",
			Help: "Current global event sequence number",
		}),

		MarketsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_markets_created_total",
			Help: "Markets opened",
		}),

		MarketsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_markets_resolved_total",
			Help: "Markets resolved, by final outcome",
		}, []string{"outcome"}),

		StakeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_stake_volume_total",
			Help: "Gross staked value (fixed-point), by side",
		}, []string{"outcome"}),

		ProposalsChallenged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_proposals_challenged_total",
			Help: "Proposals that received at least one challenge bond",
		}),

		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_transfer_failures_total",
			Help: "Outbound withdrawal transfers that failed and rolled back",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_persist_events_written_total",
			Help: "Events committed to the Postgres event log",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "predict_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "predict_persist_batch_size",
			Help:    "Events per persisted batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "predict_persist_last_sequence",
			Help: "Highest sequence committed to the event log",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_publish_drops_total",
			Help: "Events dropped from the outbound publish channel",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_publish_errors_total",
			Help: "NATS publish failures (best-effort, not retried)",
		}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predict_projection_drops_total",
			Help: "Events dropped from the projection channel",
		}),
	}
}
