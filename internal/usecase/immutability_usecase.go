package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbooks/accounting/internal/domain"
)

// ImmutabilityUseCase decides whether a posted journal entry may still be
// modified. Two gates apply: the transaction status and the journal status.
// An entry is mutable only when both gates allow it.
type ImmutabilityUseCase struct {
	journalRepo JournalRepository
}

// NewImmutabilityUseCase creates a new ImmutabilityUseCase.
func NewImmutabilityUseCase(journalRepo JournalRepository) *ImmutabilityUseCase {
	return &ImmutabilityUseCase{
		journalRepo: journalRepo,
	}
}

// CheckEntry evaluates the gates on an already loaded entry.
func (uc *ImmutabilityUseCase) CheckEntry(entry *domain.JournalEntry) *domain.ValidationResult {
	result := domain.NewValidationResult()

	switch entry.TransactionStatus {
	case domain.TransactionStatusCompleted:
		result.AddError("TransactionStatus", "Completed transactions cannot be modified", CodeTransactionCompleted)
	case domain.TransactionStatusLocked:
		result.AddError("TransactionStatus", "Locked transactions cannot be modified", CodeTransactionLocked)
	case domain.TransactionStatusReversed:
		result.AddError("TransactionStatus", "Reversed transactions cannot be modified", CodeTransactionReversed)
	}

	if entry.Status == domain.JournalStatusApproved {
		result.AddError("Status", "Approved journal entries cannot be modified", CodeJournalApproved)
	}

	return result
}

// CheckEntryByID loads the entry and evaluates the gates. A missing entry
// is reported as a validation error rather than a transport error, so
// callers handle every outcome through the same result type.
func (uc *ImmutabilityUseCase) CheckEntryByID(ctx context.Context, entryID string) (*domain.ValidationResult, error) {
	entry, err := uc.journalRepo.GetEntryByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, domain.ErrJournalEntryNotFound) {
			result := domain.NewValidationResult()
			result.AddError("ID", fmt.Sprintf("Journal entry %s does not exist", entryID), CodeEntryNotFound)

			return result, nil
		}

		return nil, fmt.Errorf("load journal entry %s: %w", entryID, err)
	}

	return uc.CheckEntry(entry), nil
}

// CanModify is a convenience wrapper returning only the boolean verdict.
func (uc *ImmutabilityUseCase) CanModify(ctx context.Context, entryID string) (bool, error) {
	result, err := uc.CheckEntryByID(ctx, entryID)
	if err != nil {
		return false, err
	}

	return result.Valid, nil
}

// CheckStatusTransition validates a requested transaction status change
// against the allowed lifecycle.
func (uc *ImmutabilityUseCase) CheckStatusTransition(entry *domain.JournalEntry, target domain.TransactionStatus) *domain.ValidationResult {
	result := domain.NewValidationResult()

	if !entry.TransactionStatus.CanTransitionTo(target) {
		result.AddError("TransactionStatus",
			fmt.Sprintf("Cannot change status from %s to %s", entry.TransactionStatus, target),
			CodeInvalidStatusTransition)
	}

	return result
}
