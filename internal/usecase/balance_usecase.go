package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/infrastructure/metrics"
)

// Cache keys for computed balances.
const (
	bankBalanceKey    = "balance:bank"
	cashBalanceKey    = "balance:cash"
	balanceSummaryKey = "balance:summary"
	accountBalancePfx = "balance:account:"
)

// DefaultAccountBalanceTTL is the cache lifetime for single balances.
const DefaultAccountBalanceTTL = 5 * time.Minute

// DefaultBalanceSummaryTTL is the cache lifetime for the aggregate summary.
const DefaultBalanceSummaryTTL = 30 * time.Minute

// BalanceSummary aggregates headline balances for dashboards. NetIncome is
// revenue minus expenses over everything posted so far.
type BalanceSummary struct {
	BankBalance      decimal.Decimal `json:"bank_balance"`
	CashOnHand       decimal.Decimal `json:"cash_on_hand"`
	TotalLiquid      decimal.Decimal `json:"total_liquid"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetIncome        decimal.Decimal `json:"net_income"`
	GeneratedAt      time.Time       `json:"generated_at"`
	AccountCount     int             `json:"account_count"`
}

// BalanceUseCase serves account balances through a cache-aside layer. Every
// read falls back to recomputing from the ledger when the cache is
// unavailable, so a cache outage degrades performance but never
// correctness.
type BalanceUseCase struct {
	accountRepo AccountRepository
	journalRepo JournalRepository
	cache       Cache
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	balanceTTL time.Duration
	summaryTTL time.Duration
}

// BalanceOption configures a BalanceUseCase.
type BalanceOption func(*BalanceUseCase)

// WithBalanceTTL overrides the single-balance cache lifetime.
func WithBalanceTTL(ttl time.Duration) BalanceOption {
	return func(uc *BalanceUseCase) { uc.balanceTTL = ttl }
}

// WithSummaryTTL overrides the summary cache lifetime.
func WithSummaryTTL(ttl time.Duration) BalanceOption {
	return func(uc *BalanceUseCase) { uc.summaryTTL = ttl }
}

// NewBalanceUseCase creates a new BalanceUseCase.
func NewBalanceUseCase(
	accountRepo AccountRepository,
	journalRepo JournalRepository,
	cache Cache,
	logger zerolog.Logger,
	m *metrics.Metrics,
	opts ...BalanceOption,
) *BalanceUseCase {
	uc := &BalanceUseCase{
		accountRepo: accountRepo,
		journalRepo: journalRepo,
		cache:       cache,
		logger:      logger,
		metrics:     m,
		balanceTTL:  DefaultAccountBalanceTTL,
		summaryTTL:  DefaultBalanceSummaryTTL,
	}
	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// GetAccountBalance returns the current balance of one account, serving
// from cache when possible.
func (uc *BalanceUseCase) GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	key := accountBalancePfx + accountID

	if cached, ok := uc.cachedDecimal(ctx, key); ok {
		return cached, nil
	}

	balance, err := uc.computeAccountBalance(ctx, accountID, nil)
	if err != nil {
		return decimal.Zero, err
	}

	uc.storeDecimal(ctx, key, balance, uc.balanceTTL)

	return balance, nil
}

// GetRealTimeAccountBalance recomputes the balance from the ledger,
// bypassing the cache, and refreshes the cached value on the way out.
func (uc *BalanceUseCase) GetRealTimeAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	balance, err := uc.computeAccountBalance(ctx, accountID, nil)
	if err != nil {
		return decimal.Zero, err
	}

	uc.storeDecimal(ctx, accountBalancePfx+accountID, balance, uc.balanceTTL)

	return balance, nil
}

// GetAccountBalanceAsOf returns the balance at the end of the given date.
// Historical balances are never cached.
func (uc *BalanceUseCase) GetAccountBalanceAsOf(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	dateRange := &DateRange{To: asOf}

	return uc.computeAccountBalance(ctx, accountID, dateRange)
}

// GetBankBalance returns the combined balance of all bank accounts.
func (uc *BalanceUseCase) GetBankBalance(ctx context.Context) (decimal.Decimal, error) {
	return uc.groupBalance(ctx, bankBalanceKey, func(a *domain.Account) bool { return a.IsBankAccount })
}

// GetCashOnHandBalance returns the combined balance of all cash accounts.
func (uc *BalanceUseCase) GetCashOnHandBalance(ctx context.Context) (decimal.Decimal, error) {
	return uc.groupBalance(ctx, cashBalanceKey, func(a *domain.Account) bool { return a.IsCashAccount })
}

// GetBalanceSummary returns the headline balances, cached as one JSON
// document.
func (uc *BalanceUseCase) GetBalanceSummary(ctx context.Context) (*BalanceSummary, error) {
	if raw, err := uc.cache.Get(ctx, balanceSummaryKey); err == nil {
		var summary BalanceSummary
		if jsonErr := json.Unmarshal([]byte(raw), &summary); jsonErr == nil {
			uc.hit()

			return &summary, nil
		}

		// Corrupt cache entry, drop it and recompute.
		uc.dropKey(ctx, balanceSummaryKey)
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		uc.fallback(err, balanceSummaryKey)
	}

	uc.miss()

	summary, err := uc.computeSummary(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(summary); err == nil {
		if setErr := uc.cache.Set(ctx, balanceSummaryKey, string(raw), uc.summaryTTL); setErr != nil {
			uc.fallback(setErr, balanceSummaryKey)
		}
	}

	return summary, nil
}

// UpdateBalanceCache applies a journal entry's lines to the cached balances
// incrementally, so hot balances stay warm without a full recompute. The
// summary is invalidated rather than patched.
func (uc *BalanceUseCase) UpdateBalanceCache(ctx context.Context, entry *domain.JournalEntry) {
	accounts := make(map[string]*domain.Account)
	bankDelta := decimal.Zero
	cashDelta := decimal.Zero

	for _, line := range entry.Lines {
		account, ok := accounts[line.AccountID]
		if !ok {
			var err error

			account, err = uc.accountRepo.GetByID(ctx, line.AccountID)
			if err != nil {
				uc.logger.Warn().Err(err).Str("account_id", line.AccountID).Msg("skipping balance cache update")

				uc.dropKey(ctx, accountBalancePfx+line.AccountID)

				continue
			}
			accounts[line.AccountID] = account
		}

		delta := uc.lineDelta(account, line)
		uc.adjustKey(ctx, accountBalancePfx+line.AccountID, delta)

		if account.IsBankAccount {
			bankDelta = bankDelta.Add(delta)
		}

		if account.IsCashAccount {
			cashDelta = cashDelta.Add(delta)
		}
	}

	if !bankDelta.IsZero() {
		uc.adjustKey(ctx, bankBalanceKey, bankDelta)
	}

	if !cashDelta.IsZero() {
		uc.adjustKey(ctx, cashBalanceKey, cashDelta)
	}

	uc.dropKey(ctx, balanceSummaryKey)
}

// ClearAccountBalanceCache evicts the cached balance of one account along
// with the aggregates it feeds.
func (uc *BalanceUseCase) ClearAccountBalanceCache(ctx context.Context, accountID string) {
	uc.dropKey(ctx, accountBalancePfx+accountID)
	uc.dropKey(ctx, bankBalanceKey)
	uc.dropKey(ctx, cashBalanceKey)
	uc.dropKey(ctx, balanceSummaryKey)
}

// RefreshBalanceCache recomputes and rewrites every cached balance.
func (uc *BalanceUseCase) RefreshBalanceCache(ctx context.Context) error {
	accounts, err := uc.accountRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	bank := decimal.Zero
	cash := decimal.Zero

	for _, account := range accounts {
		balance, err := uc.computeAccountBalance(ctx, account.ID, nil)
		if err != nil {
			return fmt.Errorf("compute balance for %s: %w", account.Code, err)
		}

		uc.storeDecimal(ctx, accountBalancePfx+account.ID, balance, uc.balanceTTL)

		if account.IsBankAccount {
			bank = bank.Add(balance)
		}

		if account.IsCashAccount {
			cash = cash.Add(balance)
		}
	}

	uc.storeDecimal(ctx, bankBalanceKey, bank, uc.balanceTTL)
	uc.storeDecimal(ctx, cashBalanceKey, cash, uc.balanceTTL)
	uc.dropKey(ctx, balanceSummaryKey)

	uc.logger.Info().Int("accounts", len(accounts)).Msg("balance cache refreshed")

	return nil
}

// computeAccountBalance derives a balance from the ledger: opening balance
// plus movements, oriented by the account's normal balance side.
func (uc *BalanceUseCase) computeAccountBalance(ctx context.Context, accountID string, dateRange *DateRange) (decimal.Decimal, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	debits, credits, err := uc.journalRepo.SumLinesForAccount(ctx, accountID, dateRange, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum lines for %s: %w", account.Code, err)
	}

	switch account.Type.NormalBalance() {
	case domain.CreditNormal:
		return account.OpeningBalance.Add(credits).Sub(debits), nil
	default:
		return account.OpeningBalance.Add(debits).Sub(credits), nil
	}
}

func (uc *BalanceUseCase) computeSummary(ctx context.Context) (*BalanceSummary, error) {
	accounts, err := uc.accountRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	bank := decimal.Zero
	cash := decimal.Zero
	byType := map[domain.AccountType]decimal.Decimal{}

	for _, account := range accounts {
		balance, err := uc.computeAccountBalance(ctx, account.ID, nil)
		if err != nil {
			return nil, err
		}

		byType[account.Type] = byType[account.Type].Add(balance)

		if account.IsBankAccount {
			bank = bank.Add(balance)
		}

		if account.IsCashAccount {
			cash = cash.Add(balance)
		}
	}

	revenue := byType[domain.AccountTypeRevenue]
	expenses := byType[domain.AccountTypeExpense]

	return &BalanceSummary{
		BankBalance:      bank,
		CashOnHand:       cash,
		TotalLiquid:      bank.Add(cash),
		TotalAssets:      byType[domain.AccountTypeAsset],
		TotalLiabilities: byType[domain.AccountTypeLiability],
		TotalEquity:      byType[domain.AccountTypeEquity],
		TotalRevenue:     revenue,
		TotalExpenses:    expenses,
		NetIncome:        revenue.Sub(expenses),
		GeneratedAt:      time.Now().UTC(),
		AccountCount:     len(accounts),
	}, nil
}

// groupBalance serves a summed balance over a filtered set of accounts
// through the cache.
func (uc *BalanceUseCase) groupBalance(ctx context.Context, key string, include func(*domain.Account) bool) (decimal.Decimal, error) {
	if cached, ok := uc.cachedDecimal(ctx, key); ok {
		return cached, nil
	}

	accounts, err := uc.accountRepo.ListActive(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list accounts: %w", err)
	}

	total := decimal.Zero

	for _, account := range accounts {
		if !include(account) {
			continue
		}

		balance, err := uc.computeAccountBalance(ctx, account.ID, nil)
		if err != nil {
			return decimal.Zero, err
		}

		total = total.Add(balance)
	}

	uc.storeDecimal(ctx, key, total, uc.balanceTTL)

	return total, nil
}

// lineDelta converts one journal line into a signed balance movement for
// the line's account.
func (uc *BalanceUseCase) lineDelta(account *domain.Account, line domain.JournalEntryLine) decimal.Decimal {
	if account.Type.NormalBalance() == domain.CreditNormal {
		return line.Credit.Sub(line.Debit)
	}

	return line.Debit.Sub(line.Credit)
}

func (uc *BalanceUseCase) cachedDecimal(ctx context.Context, key string) (decimal.Decimal, bool) {
	raw, err := uc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			uc.miss()
		} else {
			uc.fallback(err, key)
		}

		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		uc.dropKey(ctx, key)
		uc.miss()

		return decimal.Zero, false
	}

	uc.hit()

	return value, true
}

func (uc *BalanceUseCase) storeDecimal(ctx context.Context, key string, value decimal.Decimal, ttl time.Duration) {
	if err := uc.cache.Set(ctx, key, value.String(), ttl); err != nil {
		uc.fallback(err, key)
	}
}

// adjustKey shifts a cached decimal in place. A missing or unreadable value
// is simply dropped; the next read recomputes it.
func (uc *BalanceUseCase) adjustKey(ctx context.Context, key string, delta decimal.Decimal) {
	raw, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			uc.fallback(err, key)
		}

		return
	}

	current, err := decimal.NewFromString(raw)
	if err != nil {
		uc.dropKey(ctx, key)

		return
	}

	if err := uc.cache.Set(ctx, key, current.Add(delta).String(), uc.balanceTTL); err != nil {
		uc.fallback(err, key)
	}
}

func (uc *BalanceUseCase) dropKey(ctx context.Context, key string) {
	if err := uc.cache.Delete(ctx, key); err != nil {
		uc.fallback(err, key)
	}
}

func (uc *BalanceUseCase) hit() {
	if uc.metrics != nil {
		uc.metrics.BalanceCacheHits.Inc()
	}
}

func (uc *BalanceUseCase) miss() {
	if uc.metrics != nil {
		uc.metrics.BalanceCacheMisses.Inc()
	}
}

func (uc *BalanceUseCase) fallback(err error, key string) {
	if uc.metrics != nil {
		uc.metrics.BalanceFallbacks.Inc()
	}

	uc.logger.Warn().Err(err).Str("key", key).Msg("balance cache unavailable, recomputing")
}
