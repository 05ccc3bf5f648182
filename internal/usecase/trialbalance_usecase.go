package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/infrastructure/metrics"
)

// ChangeType classifies an account's movement between two trial balances.
type ChangeType string

const (
	ChangeNew     ChangeType = "new"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// AccountDifference is one account's delta between two trial balances.
type AccountDifference struct {
	AccountCode string
	AccountName string
	BalanceA    decimal.Decimal
	BalanceB    decimal.Decimal
	Difference  decimal.Decimal
	Change      ChangeType
}

// TrialBalanceComparison is the result of comparing two trial balances.
// Differences are sorted by absolute delta, largest first; accounts with
// identical balances are omitted.
type TrialBalanceComparison struct {
	PeriodA         string
	PeriodB         string
	Differences     []AccountDifference
	TotalDifference decimal.Decimal
}

// TrialBalanceUseCase generates, validates, approves and compares monthly
// trial balance snapshots.
type TrialBalanceUseCase struct {
	txManager   TransactionManager
	tbRepo      TrialBalanceRepository
	accountRepo AccountRepository
	journalRepo JournalRepository
	memoizer    *MemoizerUseCase
	idGen       IDGenerator
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	companyName string
	now         func() time.Time
}

// NewTrialBalanceUseCase creates a new TrialBalanceUseCase.
func NewTrialBalanceUseCase(
	txManager TransactionManager,
	tbRepo TrialBalanceRepository,
	accountRepo AccountRepository,
	journalRepo JournalRepository,
	memoizer *MemoizerUseCase,
	idGen IDGenerator,
	logger zerolog.Logger,
	m *metrics.Metrics,
	companyName string,
) *TrialBalanceUseCase {
	return &TrialBalanceUseCase{
		txManager:   txManager,
		tbRepo:      tbRepo,
		accountRepo: accountRepo,
		journalRepo: journalRepo,
		memoizer:    memoizer,
		idGen:       idGen,
		logger:      logger,
		metrics:     m,
		companyName: companyName,
		now:         time.Now,
	}
}

// Generate builds the trial balance snapshot for a period and persists it.
// Generation is idempotent per period: a second call for the same year and
// month returns ErrTrialBalanceExists.
func (uc *TrialBalanceUseCase) Generate(ctx context.Context, year, month int, generatedBy string) (*domain.TrialBalance, error) {
	if err := uc.validatePeriod(year, month); err != nil {
		return nil, err
	}

	if existing, err := uc.tbRepo.GetByPeriod(ctx, year, month); err == nil && existing != nil {
		return nil, domain.ErrTrialBalanceExists
	} else if err != nil && !errors.Is(err, domain.ErrTrialBalanceNotFound) {
		return nil, fmt.Errorf("check existing trial balance: %w", err)
	}

	start := uc.now()

	periodStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	accounts, err := uc.accountRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	tb := &domain.TrialBalance{
		ID:          uc.idGen.Generate(),
		Year:        year,
		Month:       month,
		CompanyName: uc.companyName,
		Status:      domain.TrialBalanceStatusGenerated,
		GeneratedBy: generatedBy,
		GeneratedAt: uc.now().UTC(),
	}

	totalDebits := decimal.Zero
	totalCredits := decimal.Zero

	for _, account := range accounts {
		entry, err := uc.buildEntry(ctx, account, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}

		if entry == nil {
			continue
		}

		entry.TrialBalanceID = tb.ID
		tb.Entries = append(tb.Entries, *entry)

		debitSide := account.Type.NormalBalance() == domain.DebitNormal
		switch {
		case debitSide && !entry.ClosingBalance.IsNegative():
			totalDebits = totalDebits.Add(entry.ClosingBalance)
		case debitSide:
			totalCredits = totalCredits.Add(entry.ClosingBalance.Abs())
		case entry.ClosingBalance.IsNegative():
			totalDebits = totalDebits.Add(entry.ClosingBalance.Abs())
		default:
			totalCredits = totalCredits.Add(entry.ClosingBalance)
		}
	}

	tb.TotalDebits = totalDebits
	tb.TotalCredits = totalCredits

	uc.auditPeriodMovements(ctx, tb)

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.tbRepo.Create(ctx, tx, tb); err != nil {
		return nil, fmt.Errorf("persist trial balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	elapsed := uc.now().Sub(start)

	if uc.metrics != nil {
		uc.metrics.TrialBalancesGenerated.Inc()
		uc.metrics.TrialBalanceDuration.Observe(elapsed.Seconds())
	}

	uc.logger.Info().
		Int("year", year).
		Int("month", month).
		Int("accounts", len(tb.Entries)).
		Str("total_debits", totalDebits.StringFixed(2)).
		Str("total_credits", totalCredits.StringFixed(2)).
		Dur("elapsed", elapsed).
		Msg("trial balance generated")

	return tb, nil
}

// buildEntry computes one account's snapshot line. Accounts with no opening
// balance and no movements in the period are skipped.
func (uc *TrialBalanceUseCase) buildEntry(ctx context.Context, account *domain.Account, periodStart, periodEnd time.Time) (*domain.TrialBalanceEntry, error) {
	priorDebits, priorCredits, err := uc.journalRepo.SumLinesForAccount(ctx, account.ID,
		&DateRange{To: periodStart.Add(-time.Nanosecond)}, true)
	if err != nil {
		return nil, fmt.Errorf("sum prior movements for %s: %w", account.Code, err)
	}

	debits, credits, err := uc.journalRepo.SumLinesForAccount(ctx, account.ID,
		&DateRange{From: periodStart, To: periodEnd}, true)
	if err != nil {
		return nil, fmt.Errorf("sum period movements for %s: %w", account.Code, err)
	}

	var opening decimal.Decimal
	if account.Type.NormalBalance() == domain.CreditNormal {
		opening = account.OpeningBalance.Add(priorCredits).Sub(priorDebits)
	} else {
		opening = account.OpeningBalance.Add(priorDebits).Sub(priorCredits)
	}

	if opening.IsZero() && debits.IsZero() && credits.IsZero() {
		return nil, nil
	}

	var closing decimal.Decimal
	if account.Type.NormalBalance() == domain.CreditNormal {
		closing = opening.Add(credits).Sub(debits)
	} else {
		closing = opening.Add(debits).Sub(credits)
	}

	return &domain.TrialBalanceEntry{
		ID:              uc.idGen.Generate(),
		AccountID:       account.ID,
		AccountCode:     account.Code,
		AccountName:     account.Name,
		AccountType:     account.Type,
		OpeningBalance:  opening,
		DebitMovements:  debits,
		CreditMovements: credits,
		ClosingBalance:  closing,
		SortOrder:       account.SortOrder,
	}, nil
}

// auditPeriodMovements runs the memoized balance calculation over the
// period's journal lines and logs the rendered expression. A mismatch here
// points at unbalanced entries slipping past validation.
func (uc *TrialBalanceUseCase) auditPeriodMovements(ctx context.Context, tb *domain.TrialBalance) {
	entries, err := uc.journalRepo.GetEntriesByPeriod(ctx, tb.Year, tb.Month)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("skipping period movement audit")

		return
	}

	var transactions []TransactionData
	for _, entry := range entries {
		for _, line := range entry.Lines {
			transactions = append(transactions, TransactionData{
				AccountID: line.AccountID,
				Debit:     line.Debit,
				Credit:    line.Credit,
			})
		}
	}

	calc := uc.memoizer.CalculateTrialBalance(transactions)

	event := uc.logger.Info()
	if !calc.IsBalanced {
		event = uc.logger.Warn()
	}

	event.
		Int("year", tb.Year).
		Int("month", tb.Month).
		Int("transactions", calc.TransactionCount).
		Str("expression", calc.Expression).
		Bool("balanced", calc.IsBalanced).
		Msg("period movement audit")
}

// GetByID returns one trial balance with its entries.
func (uc *TrialBalanceUseCase) GetByID(ctx context.Context, id string) (*domain.TrialBalance, error) {
	return uc.tbRepo.GetByID(ctx, id)
}

// GetByPeriod returns the trial balance for a year and month.
func (uc *TrialBalanceUseCase) GetByPeriod(ctx context.Context, year, month int) (*domain.TrialBalance, error) {
	if err := uc.validatePeriod(year, month); err != nil {
		return nil, err
	}

	return uc.tbRepo.GetByPeriod(ctx, year, month)
}

// List returns trial balances, newest period first.
func (uc *TrialBalanceUseCase) List(ctx context.Context, limit, offset int) ([]*domain.TrialBalance, error) {
	if limit <= 0 {
		limit = 20
	}

	if limit > 100 {
		limit = 100
	}

	return uc.tbRepo.List(ctx, limit, offset)
}

// Validate checks a trial balance's internal consistency. A variance under
// the balance tolerance passes, a small variance up to the rounding ceiling
// passes with a warning, anything larger fails.
func (uc *TrialBalanceUseCase) Validate(tb *domain.TrialBalance) *domain.ValidationResult {
	result := domain.NewValidationResult()

	variance := tb.TotalDebits.Sub(tb.TotalCredits).Abs()

	switch {
	case variance.LessThan(domain.BalanceTolerance):
		// Balanced.
	case variance.LessThanOrEqual(RoundingVarianceCeiling):
		result.AddWarning("Totals",
			fmt.Sprintf("Debits and credits differ by %s, within rounding variance", variance.StringFixed(2)),
			CodeRoundingVariance)
	default:
		result.AddError("Totals",
			fmt.Sprintf("Trial balance is out of balance by %s", variance.StringFixed(2)),
			CodeUnbalancedTrialBalance)
	}

	return result
}

// Approve marks a generated trial balance as approved. Approval is refused
// when the snapshot is already approved or fails validation; the returned
// result carries the reason.
func (uc *TrialBalanceUseCase) Approve(ctx context.Context, id, approvedBy, notes string) (*domain.ValidationResult, error) {
	tb, err := uc.tbRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if tb.Status == domain.TrialBalanceStatusApproved {
		result := domain.NewValidationResult()
		result.AddError("Status", "Trial balance is already approved", CodeTrialBalanceApproved)

		return result, nil
	}

	result := uc.Validate(tb)
	if !result.Valid {
		return result, nil
	}

	if err := uc.tbRepo.Approve(ctx, id, approvedBy, notes, uc.now().UTC()); err != nil {
		return nil, fmt.Errorf("approve trial balance: %w", err)
	}

	uc.logger.Info().
		Str("id", id).
		Str("approved_by", approvedBy).
		Int("year", tb.Year).
		Int("month", tb.Month).
		Msg("trial balance approved")

	return result, nil
}

// UpdateNotes replaces a snapshot's notes. Notes are the one field approval
// does not freeze, so this works regardless of status.
func (uc *TrialBalanceUseCase) UpdateNotes(ctx context.Context, id, notes string) error {
	if _, err := uc.tbRepo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := uc.tbRepo.UpdateNotes(ctx, id, notes, uc.now().UTC()); err != nil {
		return fmt.Errorf("update trial balance notes: %w", err)
	}

	uc.logger.Info().Str("id", id).Msg("trial balance notes updated")

	return nil
}

// Delete removes a generated trial balance and its entries. Approved
// snapshots cannot be deleted.
func (uc *TrialBalanceUseCase) Delete(ctx context.Context, id string) error {
	tb, err := uc.tbRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if tb.Status == domain.TrialBalanceStatusApproved {
		return domain.ErrTrialBalanceApproved
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.tbRepo.Delete(ctx, tx, id); err != nil {
		return fmt.Errorf("delete trial balance: %w", err)
	}

	return tx.Commit(ctx)
}

// Compare diffs two trial balances account by account, joined on account
// code. Accounts whose closing balance did not move are omitted.
func (uc *TrialBalanceUseCase) Compare(ctx context.Context, idA, idB string) (*TrialBalanceComparison, error) {
	a, err := uc.tbRepo.GetByID(ctx, idA)
	if err != nil {
		return nil, err
	}

	b, err := uc.tbRepo.GetByID(ctx, idB)
	if err != nil {
		return nil, err
	}

	return uc.compare(a, b), nil
}

// ComparePeriods diffs the trial balances of two periods.
func (uc *TrialBalanceUseCase) ComparePeriods(ctx context.Context, yearA, monthA, yearB, monthB int) (*TrialBalanceComparison, error) {
	a, err := uc.GetByPeriod(ctx, yearA, monthA)
	if err != nil {
		return nil, err
	}

	b, err := uc.GetByPeriod(ctx, yearB, monthB)
	if err != nil {
		return nil, err
	}

	return uc.compare(a, b), nil
}

func (uc *TrialBalanceUseCase) compare(a, b *domain.TrialBalance) *TrialBalanceComparison {
	comparison := &TrialBalanceComparison{
		PeriodA:         fmt.Sprintf("%04d-%02d", a.Year, a.Month),
		PeriodB:         fmt.Sprintf("%04d-%02d", b.Year, b.Month),
		TotalDifference: decimal.Zero,
	}

	inB := make(map[string]domain.TrialBalanceEntry, len(b.Entries))
	for _, entry := range b.Entries {
		inB[entry.AccountCode] = entry
	}

	for _, entryA := range a.Entries {
		entryB, ok := inB[entryA.AccountCode]
		if !ok {
			comparison.Differences = append(comparison.Differences, AccountDifference{
				AccountCode: entryA.AccountCode,
				AccountName: entryA.AccountName,
				BalanceA:    entryA.ClosingBalance,
				Difference:  entryA.ClosingBalance.Neg(),
				Change:      ChangeRemoved,
			})

			continue
		}

		delete(inB, entryA.AccountCode)

		diff := entryB.ClosingBalance.Sub(entryA.ClosingBalance)
		if diff.IsZero() {
			continue
		}

		comparison.Differences = append(comparison.Differences, AccountDifference{
			AccountCode: entryA.AccountCode,
			AccountName: entryA.AccountName,
			BalanceA:    entryA.ClosingBalance,
			BalanceB:    entryB.ClosingBalance,
			Difference:  diff,
			Change:      ChangeChanged,
		})
	}

	for _, entryB := range inB {
		comparison.Differences = append(comparison.Differences, AccountDifference{
			AccountCode: entryB.AccountCode,
			AccountName: entryB.AccountName,
			BalanceB:    entryB.ClosingBalance,
			Difference:  entryB.ClosingBalance,
			Change:      ChangeNew,
		})
	}

	for _, diff := range comparison.Differences {
		comparison.TotalDifference = comparison.TotalDifference.Add(diff.Difference.Abs())
	}

	sort.SliceStable(comparison.Differences, func(i, j int) bool {
		return comparison.Differences[i].Difference.Abs().GreaterThan(comparison.Differences[j].Difference.Abs())
	})

	return comparison
}

func (uc *TrialBalanceUseCase) validatePeriod(year, month int) error {
	if month < 1 || month > 12 {
		return domain.ErrInvalidPeriod
	}

	if year < 1900 || year > 2200 {
		return domain.ErrInvalidPeriod
	}

	now := uc.now().UTC()
	if year > now.Year() || (year == now.Year() && month > int(now.Month())) {
		return domain.ErrInvalidPeriod
	}

	return nil
}
