package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the sync engine and the
// average-cost ledger.
type Metrics struct {
	// SyncEntities counts reconciliation writes, labelled by kind
	// (holdings/earn_positions/earn_rewards) and op (added/updated/deleted).
	SyncEntities *prometheus.CounterVec
	// SyncErrors counts non-fatal per-asset errors accumulated during a sync.
	SyncErrors *prometheus.CounterVec
	// LedgerOversold counts replays where a SELL exceeded the quantity held.
	// Non-zero values point at transactions imported out of band.
	LedgerOversold prometheus.Counter
	// PriceFallbacks counts symbols missing from the bulk price response
	// that were resolved via an individual lookup.
	PriceFallbacks prometheus.Counter
	// RewardDuplicates counts reward records skipped by the dedup check.
	RewardDuplicates prometheus.Counter
	// EmptySnapshots counts syncs that returned a zero diff because the
	// external snapshot was empty while local state existed.
	EmptySnapshots *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptofolio_sync_entities_total",
			Help: "Entities written by reconciliation",
		}, []string{"kind", "op"}),

		SyncErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptofolio_sync_errors_total",
			Help: "Non-fatal per-asset sync errors",
		}, []string{"kind"}),

		LedgerOversold: factory.NewCounter(prometheus.CounterOpts{
			Name: "cryptofolio_ledger_oversold_total",
			Help: "Replays where a SELL exceeded the held quantity",
		}),

		PriceFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "cryptofolio_price_fallbacks_total",
			Help: "Individual price lookups after a bulk miss",
		}),

		RewardDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "cryptofolio_reward_duplicates_total",
			Help: "Reward records skipped as duplicates",
		}),

		EmptySnapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptofolio_empty_snapshots_total",
			Help: "Empty external snapshots received while local state existed",
		}, []string{"kind"}),
	}
}
