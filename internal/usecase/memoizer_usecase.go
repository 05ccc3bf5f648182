package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/finbooks/accounting/internal/infrastructure/metrics"
)

// DefaultMemoTTL is how long a memoized calculation stays valid.
const DefaultMemoTTL = 10 * time.Minute

// DefaultMemoSweepInterval is how often expired memo entries are swept.
const DefaultMemoSweepInterval = 5 * time.Minute

type memoEntry struct {
	calc      TrialBalanceCalculation
	expiresAt time.Time
}

// MemoStats is a point-in-time snapshot of memoizer counters. Expired counts
// entries still resident but past their TTL; the sweeper has not reached
// them yet. Size is Active plus Expired.
type MemoStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Active    int
	Expired   int
}

// MemoizerUseCase caches trial balance calculations keyed by the exact
// transaction sequence. The key is order sensitive: the same lines in a
// different order produce a different key, because the rendered expression
// differs even though the totals do not.
type MemoizerUseCase struct {
	calc    *CalculationUseCase
	logger  zerolog.Logger
	metrics *metrics.Metrics

	ttl           time.Duration
	sweepInterval time.Duration

	mu      sync.RWMutex
	entries map[string]memoEntry

	hits      uint64
	misses    uint64
	evictions uint64

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// MemoizerOption configures a MemoizerUseCase.
type MemoizerOption func(*MemoizerUseCase)

// WithMemoTTL overrides the entry lifetime.
func WithMemoTTL(ttl time.Duration) MemoizerOption {
	return func(uc *MemoizerUseCase) { uc.ttl = ttl }
}

// WithMemoSweepInterval overrides how often expired entries are swept.
func WithMemoSweepInterval(interval time.Duration) MemoizerOption {
	return func(uc *MemoizerUseCase) { uc.sweepInterval = interval }
}

// NewMemoizerUseCase creates a new MemoizerUseCase. Call Start to launch the
// background sweeper and Stop to shut it down.
func NewMemoizerUseCase(calc *CalculationUseCase, logger zerolog.Logger, m *metrics.Metrics, opts ...MemoizerOption) *MemoizerUseCase {
	uc := &MemoizerUseCase{
		calc:          calc,
		logger:        logger,
		metrics:       m,
		ttl:           DefaultMemoTTL,
		sweepInterval: DefaultMemoSweepInterval,
		entries:       make(map[string]memoEntry),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// CalculateTrialBalance returns the memoized calculation for the given
// transaction sequence, computing and storing it on a miss.
func (uc *MemoizerUseCase) CalculateTrialBalance(transactions []TransactionData) TrialBalanceCalculation {
	key := uc.Key(transactions)
	now := time.Now()

	uc.mu.RLock()
	entry, ok := uc.entries[key]
	uc.mu.RUnlock()

	if ok && now.Before(entry.expiresAt) {
		uc.mu.Lock()
		uc.hits++
		uc.mu.Unlock()

		if uc.metrics != nil {
			uc.metrics.MemoHits.Inc()
		}

		return entry.calc
	}

	calc := uc.calc.CalculateTrialBalance(transactions)

	uc.mu.Lock()
	uc.misses++
	uc.entries[key] = memoEntry{calc: calc, expiresAt: now.Add(uc.ttl)}
	uc.mu.Unlock()

	if uc.metrics != nil {
		uc.metrics.MemoMisses.Inc()
	}

	return calc
}

// Key derives the cache key for a transaction sequence. Each line
// contributes its account ID and exact amounts, in order, so any
// reordering or amount change produces a new key.
func (uc *MemoizerUseCase) Key(transactions []TransactionData) string {
	h := sha256.New()

	for _, tx := range transactions {
		h.Write([]byte(tx.AccountID))
		h.Write([]byte{':'})
		h.Write([]byte(tx.Debit.String()))
		h.Write([]byte{':'})
		h.Write([]byte(tx.Credit.String()))
		h.Write([]byte{'|'})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Start launches the background sweeper that evicts expired entries.
func (uc *MemoizerUseCase) Start() {
	uc.mu.Lock()
	if uc.started {
		uc.mu.Unlock()

		return
	}
	uc.started = true
	uc.mu.Unlock()

	go func() {
		defer close(uc.done)

		ticker := time.NewTicker(uc.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				uc.sweep()
			case <-uc.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweeper. Safe to call more than once.
func (uc *MemoizerUseCase) Stop() {
	uc.mu.RLock()
	started := uc.started
	uc.mu.RUnlock()

	if !started {
		return
	}

	uc.stopOnce.Do(func() {
		close(uc.stop)
	})
	<-uc.done
}

func (uc *MemoizerUseCase) sweep() {
	now := time.Now()

	uc.mu.Lock()

	evicted := 0
	for key, entry := range uc.entries {
		if now.After(entry.expiresAt) {
			delete(uc.entries, key)
			evicted++
		}
	}

	uc.evictions += uint64(evicted)
	remaining := len(uc.entries)
	uc.mu.Unlock()

	if evicted > 0 {
		if uc.metrics != nil {
			uc.metrics.MemoEvictions.Add(float64(evicted))
		}

		uc.logger.Debug().
			Int("evicted", evicted).
			Int("remaining", remaining).
			Msg("swept expired memo entries")
	}
}

// Clear drops every memoized entry.
func (uc *MemoizerUseCase) Clear() {
	uc.mu.Lock()
	uc.entries = make(map[string]memoEntry)
	uc.mu.Unlock()
}

// Stats returns a snapshot of the memoizer counters.
func (uc *MemoizerUseCase) Stats() MemoStats {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	now := time.Now()
	expired := 0
	for _, entry := range uc.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}

	return MemoStats{
		Hits:      uc.hits,
		Misses:    uc.misses,
		Evictions: uc.evictions,
		Size:      len(uc.entries),
		Active:    len(uc.entries) - expired,
		Expired:   expired,
	}
}
