package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the accounting engine.
type Metrics struct {
	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec

	// Journal metrics
	EntriesCreated  prometheus.Counter
	EntriesReversed prometheus.Counter
	EntryAmount     prometheus.Histogram

	// Balance cache metrics
	BalanceCacheHits   prometheus.Counter
	BalanceCacheMisses prometheus.Counter
	BalanceFallbacks   prometheus.Counter

	// Memoizer metrics
	MemoHits      prometheus.Counter
	MemoMisses    prometheus.Counter
	MemoEvictions prometheus.Counter

	// Trial balance metrics
	TrialBalancesGenerated prometheus.Counter
	TrialBalanceDuration   prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounting_validations_total",
				Help: "Total number of validation runs by check",
			},
			[]string{"check"},
		),
		ValidationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounting_validation_failures_total",
				Help: "Total number of failed validations by check",
			},
			[]string{"check"},
		),
		EntriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_journal_entries_created_total",
			Help: "Total number of journal entries created",
		}),
		EntriesReversed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_journal_entries_reversed_total",
			Help: "Total number of journal entries reversed",
		}),
		EntryAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounting_journal_entry_amount",
			Help:    "Total debit amount of created journal entries",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		BalanceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_balance_cache_hits_total",
			Help: "Total number of balance reads served from cache",
		}),
		BalanceCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_balance_cache_misses_total",
			Help: "Total number of balance reads recomputed from the store",
		}),
		BalanceFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_balance_cache_fallbacks_total",
			Help: "Total number of balance reads that fell back after a cache error",
		}),
		MemoHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_memoizer_hits_total",
			Help: "Total number of memoized calculation hits",
		}),
		MemoMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_memoizer_misses_total",
			Help: "Total number of memoized calculation misses",
		}),
		MemoEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_memoizer_evictions_total",
			Help: "Total number of expired memoizer entries removed",
		}),
		TrialBalancesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounting_trial_balances_generated_total",
			Help: "Total number of trial balance snapshots generated",
		}),
		TrialBalanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounting_trial_balance_duration_seconds",
			Help:    "Duration of trial balance generation",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
