package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/infrastructure/metrics"
)

// ValidatorUseCase enforces double-entry and business rules on journal
// entries before they are persisted. All checks accumulate errors and
// warnings instead of failing fast, so callers see every problem at once.
type ValidatorUseCase struct {
	accountRepo AccountRepository
	contactRepo ContactRepository
	journalRepo JournalRepository
	metrics     *metrics.Metrics

	materialityThreshold decimal.Decimal
	largeAmountThreshold decimal.Decimal
	pastDateHorizonDays  int
	now                  func() time.Time
}

// ValidatorOption configures a ValidatorUseCase.
type ValidatorOption func(*ValidatorUseCase)

// WithMaterialityThreshold overrides the unusual-balance warning threshold.
func WithMaterialityThreshold(t decimal.Decimal) ValidatorOption {
	return func(uc *ValidatorUseCase) { uc.materialityThreshold = t }
}

// WithLargeAmountThreshold overrides the large-transaction warning threshold.
func WithLargeAmountThreshold(t decimal.Decimal) ValidatorOption {
	return func(uc *ValidatorUseCase) { uc.largeAmountThreshold = t }
}

// WithPastDateHorizon overrides how many days back a transaction date may
// lie before the validator warns.
func WithPastDateHorizon(days int) ValidatorOption {
	return func(uc *ValidatorUseCase) { uc.pastDateHorizonDays = days }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ValidatorOption {
	return func(uc *ValidatorUseCase) { uc.now = now }
}

// NewValidatorUseCase creates a new ValidatorUseCase.
func NewValidatorUseCase(
	accountRepo AccountRepository,
	contactRepo ContactRepository,
	journalRepo JournalRepository,
	m *metrics.Metrics,
	opts ...ValidatorOption,
) *ValidatorUseCase {
	uc := &ValidatorUseCase{
		accountRepo:          accountRepo,
		contactRepo:          contactRepo,
		journalRepo:          journalRepo,
		metrics:              m,
		materialityThreshold: DefaultMaterialityThreshold,
		largeAmountThreshold: DefaultLargeAmountThreshold,
		pastDateHorizonDays:  DefaultPastDateHorizonDays,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ValidateDoubleEntry checks the structural double-entry rules of an entry:
// line presence, exactly one of debit or credit per line, balanced totals
// within tolerance, and duplicate account usage.
func (uc *ValidatorUseCase) ValidateDoubleEntry(entry *domain.JournalEntry) *domain.ValidationResult {
	result := domain.NewValidationResult()

	if len(entry.Lines) == 0 {
		result.AddError("Lines", "Journal entry must have at least one line", CodeNoLines)
		uc.observe("double_entry", result)

		return result
	}

	if len(entry.Lines) < 2 {
		result.AddError("Lines", "Journal entry must have at least two lines for double-entry", CodeInsufficientLines)
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	accountUse := make(map[string]int)

	for i, line := range entry.Lines {
		field := fmt.Sprintf("Lines[%d]", i)

		hasDebit := line.Debit.GreaterThan(decimal.Zero)
		hasCredit := line.Credit.GreaterThan(decimal.Zero)

		switch {
		case hasDebit && hasCredit:
			result.AddError(field, "Line cannot have both debit and credit amounts", CodeBothDebitCredit)
		case !hasDebit && !hasCredit:
			result.AddError(field, "Line must have either a debit or a credit amount", CodeNoAmount)
		}

		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
		accountUse[line.AccountID]++
	}

	diff := totalDebit.Sub(totalCredit).Abs()
	if diff.GreaterThan(domain.BalanceTolerance) {
		result.AddError("Lines",
			fmt.Sprintf("Entry is not balanced: debits %s do not equal credits %s", totalDebit.StringFixed(2), totalCredit.StringFixed(2)),
			CodeUnbalancedTransaction)
	}

	for accountID, count := range accountUse {
		if count > 1 {
			result.AddWarning("Lines",
				fmt.Sprintf("Account %s appears on %d lines", accountID, count),
				CodeDuplicateAccounts)
		}
	}

	uc.observe("double_entry", result)

	return result
}

// ValidateAccountTypeRules checks each line's account: existence, active
// status, transaction permission, and whether the amount sits on the
// account's unusual side above the materiality threshold.
func (uc *ValidatorUseCase) ValidateAccountTypeRules(ctx context.Context, entry *domain.JournalEntry) (*domain.ValidationResult, error) {
	result := domain.NewValidationResult()

	for i, line := range entry.Lines {
		field := fmt.Sprintf("Lines[%d].AccountID", i)

		account, err := uc.accountRepo.GetByID(ctx, line.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				result.AddError(field, fmt.Sprintf("Account %s does not exist", line.AccountID), CodeAccountNotFound)

				continue
			}

			return nil, fmt.Errorf("look up account %s: %w", line.AccountID, err)
		}

		if !account.IsActive {
			result.AddError(field, fmt.Sprintf("Account %s is inactive", account.Code), CodeInactiveAccount)
		}

		if !account.AllowTransactions {
			result.AddError(field, fmt.Sprintf("Account %s does not allow direct transactions", account.Code), CodeTransactionsNotAllowed)
		}

		uc.checkUnusualBalance(result, i, account, line)
	}

	uc.observe("account_rules", result)

	return result, nil
}

// checkUnusualBalance warns when a material amount lands on the side
// opposite the account's normal balance. A large credit to an asset account
// is legal but worth a second look.
func (uc *ValidatorUseCase) checkUnusualBalance(result *domain.ValidationResult, lineIdx int, account *domain.Account, line domain.JournalEntryLine) {
	var unusual decimal.Decimal

	switch account.Type.NormalBalance() {
	case domain.DebitNormal:
		unusual = line.Credit
	case domain.CreditNormal:
		unusual = line.Debit
	}

	if unusual.GreaterThan(uc.materialityThreshold) {
		result.AddWarning(fmt.Sprintf("Lines[%d]", lineIdx),
			fmt.Sprintf("Amount %s is on the unusual side for %s account %s", unusual.StringFixed(2), account.Type, account.Code),
			CodeUnusualBalance)
	}
}

// ValidateTransactionDate checks the entry date: future dates are rejected,
// dates older than the horizon and weekend dates draw warnings.
func (uc *ValidatorUseCase) ValidateTransactionDate(entry *domain.JournalEntry) *domain.ValidationResult {
	result := domain.NewValidationResult()
	now := uc.now().UTC()

	date := entry.TransactionDate
	if date.After(now) {
		result.AddError("TransactionDate", "Transaction date cannot be in the future", CodeFutureDate)
	}

	horizon := now.AddDate(0, 0, -uc.pastDateHorizonDays)
	if date.Before(horizon) {
		result.AddWarning("TransactionDate",
			fmt.Sprintf("Transaction date is more than %d days in the past", uc.pastDateHorizonDays),
			CodeOldDate)
	}

	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		result.AddWarning("TransactionDate", "Transaction date falls on a weekend", CodeWeekendDate)
	}

	uc.observe("transaction_date", result)

	return result
}

// ValidateContactAssignment checks that each line's contact, when set,
// exists, is active and is linked to the line's account.
func (uc *ValidatorUseCase) ValidateContactAssignment(ctx context.Context, entry *domain.JournalEntry) (*domain.ValidationResult, error) {
	result := domain.NewValidationResult()

	for i, line := range entry.Lines {
		if line.ContactID == "" {
			continue
		}

		field := fmt.Sprintf("Lines[%d].ContactID", i)

		contact, err := uc.contactRepo.GetByID(ctx, line.ContactID)
		if err != nil {
			if errors.Is(err, domain.ErrContactNotFound) {
				result.AddError(field, fmt.Sprintf("Contact %s does not exist", line.ContactID), CodeContactNotFound)

				continue
			}

			return nil, fmt.Errorf("look up contact %s: %w", line.ContactID, err)
		}

		if !contact.IsActive {
			result.AddError(field, fmt.Sprintf("Contact %s is inactive", contact.Name), CodeInactiveContact)
		}

		linked, err := uc.contactRepo.IsLinkedToAccount(ctx, line.ContactID, line.AccountID)
		if err != nil {
			return nil, fmt.Errorf("check contact link for %s: %w", line.ContactID, err)
		}

		if !linked {
			result.AddWarning(field,
				fmt.Sprintf("Contact %s is not assigned to account %s", contact.Name, line.AccountID),
				CodeContactNotAssigned)
		}
	}

	uc.observe("contact_assignment", result)

	return result, nil
}

// ValidateBusinessRules checks reference number and description presence,
// flags lines whose single amount exceeds the large-transaction threshold,
// and warns when the reference number already appears on another entry
// dated the same day. A missing reference number is a blocking error; a
// missing description is advisory.
func (uc *ValidatorUseCase) ValidateBusinessRules(ctx context.Context, entry *domain.JournalEntry) (*domain.ValidationResult, error) {
	result := domain.NewValidationResult()

	if entry.ReferenceNumber == "" {
		result.AddError("ReferenceNumber", "Reference number is required", CodeMissingReference)
	} else {
		exists, err := uc.journalRepo.ExistsByReference(ctx, entry.ReferenceNumber, entry.TransactionDate, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("check duplicate reference: %w", err)
		}

		if exists {
			result.AddWarning("ReferenceNumber",
				fmt.Sprintf("Reference %s already used on another entry dated %s", entry.ReferenceNumber, entry.TransactionDate.Format("2006-01-02")),
				CodeDuplicateReference)
		}
	}

	if entry.Description == "" {
		result.AddWarning("Description", "Entry has no description", CodeMissingDescription)
	}

	for i, line := range entry.Lines {
		amount := decimal.Max(line.Debit, line.Credit)
		if amount.GreaterThan(uc.largeAmountThreshold) {
			result.AddWarning(fmt.Sprintf("Lines[%d]", i),
				fmt.Sprintf("Large transaction amount %s, please verify", amount.StringFixed(2)),
				CodeLargeAmount)
		}
	}

	uc.observe("business_rules", result)

	return result, nil
}

// ValidateCompleteTransaction runs every check and merges the results. The
// merged result keeps the per-check ordering: structure, accounts, date,
// contacts, business rules.
func (uc *ValidatorUseCase) ValidateCompleteTransaction(ctx context.Context, entry *domain.JournalEntry) (*domain.ValidationResult, error) {
	result := uc.ValidateDoubleEntry(entry)

	accountResult, err := uc.ValidateAccountTypeRules(ctx, entry)
	if err != nil {
		return nil, err
	}
	result.Merge(accountResult)

	result.Merge(uc.ValidateTransactionDate(entry))

	contactResult, err := uc.ValidateContactAssignment(ctx, entry)
	if err != nil {
		return nil, err
	}
	result.Merge(contactResult)

	businessResult, err := uc.ValidateBusinessRules(ctx, entry)
	if err != nil {
		return nil, err
	}
	result.Merge(businessResult)

	return result, nil
}

func (uc *ValidatorUseCase) observe(check string, result *domain.ValidationResult) {
	if uc.metrics == nil {
		return
	}

	uc.metrics.ValidationsTotal.WithLabelValues(check).Inc()
	if !result.Valid {
		uc.metrics.ValidationFailures.WithLabelValues(check).Inc()
	}
}
