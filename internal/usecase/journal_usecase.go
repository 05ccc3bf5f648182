package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/infrastructure/metrics"
)

// JournalUseCase writes journal entries and drives them through their
// lifecycle. Every write re-validates through the full rule set; entries
// that fail validation are returned with the result and never persisted.
type JournalUseCase struct {
	txManager    TransactionManager
	journalRepo  JournalRepository
	validator    *ValidatorUseCase
	immutability *ImmutabilityUseCase
	balances     *BalanceUseCase
	idGen        IDGenerator
	logger       zerolog.Logger
	metrics      *metrics.Metrics

	now func() time.Time
}

// NewJournalUseCase creates a new JournalUseCase.
func NewJournalUseCase(
	txManager TransactionManager,
	journalRepo JournalRepository,
	validator *ValidatorUseCase,
	immutability *ImmutabilityUseCase,
	balances *BalanceUseCase,
	idGen IDGenerator,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *JournalUseCase {
	return &JournalUseCase{
		txManager:    txManager,
		journalRepo:  journalRepo,
		validator:    validator,
		immutability: immutability,
		balances:     balances,
		idGen:        idGen,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// CreateEntryLineInput is one leg of a new journal entry.
type CreateEntryLineInput struct {
	AccountID   string
	ContactID   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Reference   string
}

// CreateEntryInput represents input for creating a journal entry.
type CreateEntryInput struct {
	TransactionDate time.Time
	Type            domain.JournalType
	ReferenceNumber string
	Description     string
	CreatedBy       string
	Lines           []CreateEntryLineInput
}

// CreateEntry validates and persists a new journal entry in Draft status.
// When validation fails, the entry is not persisted and the result carries
// every violation.
func (uc *JournalUseCase) CreateEntry(ctx context.Context, input CreateEntryInput) (*domain.JournalEntry, *domain.ValidationResult, error) {
	now := uc.now().UTC()

	entry := &domain.JournalEntry{
		ID:                uc.idGen.Generate(),
		TransactionDate:   input.TransactionDate,
		Type:              input.Type,
		ReferenceNumber:   input.ReferenceNumber,
		Description:       input.Description,
		Status:            domain.JournalStatusDraft,
		TransactionStatus: domain.TransactionStatusDraft,
		CreatedBy:         input.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	entry.JournalNumber = fmt.Sprintf("JE-%d%02d-%s", input.TransactionDate.Year(), input.TransactionDate.Month(), entry.ID)

	for i, line := range input.Lines {
		entry.Lines = append(entry.Lines, domain.JournalEntryLine{
			ID:             uc.idGen.Generate(),
			JournalEntryID: entry.ID,
			AccountID:      line.AccountID,
			ContactID:      line.ContactID,
			Debit:          line.Debit,
			Credit:         line.Credit,
			Description:    line.Description,
			Reference:      line.Reference,
			LineOrder:      i,
		})
	}

	entry.ComputeTotals()

	result, err := uc.validator.ValidateCompleteTransaction(ctx, entry)
	if err != nil {
		return nil, nil, err
	}

	if !result.Valid {
		return nil, result, nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.journalRepo.CreateEntry(ctx, tx, entry); err != nil {
		return nil, nil, fmt.Errorf("persist journal entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesCreated.Inc()
		amount, _ := entry.TotalDebit.Float64()
		uc.metrics.EntryAmount.Observe(amount)
	}

	uc.logger.Info().
		Str("id", entry.ID).
		Str("journal_number", entry.JournalNumber).
		Str("total", entry.TotalDebit.StringFixed(2)).
		Int("lines", len(entry.Lines)).
		Msg("journal entry created")

	return entry, result, nil
}

// GetEntry returns one journal entry with its lines.
func (uc *JournalUseCase) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return uc.journalRepo.GetEntryByID(ctx, id)
}

// CompleteEntry transitions an entry's transaction status to Completed and
// applies it to the cached balances. The entry must pass the full rule set
// again at this point; completion is where a reference number stops being
// optional. Once completed the entry is immutable.
func (uc *JournalUseCase) CompleteEntry(ctx context.Context, id string) (*domain.ValidationResult, error) {
	entry, err := uc.journalRepo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := uc.immutability.CheckStatusTransition(entry, domain.TransactionStatusCompleted)
	if !result.Valid {
		return result, nil
	}

	validation, err := uc.validator.ValidateCompleteTransaction(ctx, entry)
	if err != nil {
		return nil, err
	}

	result.Merge(validation)
	if !result.Valid {
		return result, nil
	}

	if err := uc.setTransactionStatus(ctx, id, domain.TransactionStatusCompleted); err != nil {
		return nil, err
	}

	entry.TransactionStatus = domain.TransactionStatusCompleted
	uc.balances.UpdateBalanceCache(ctx, entry)

	uc.logger.Info().Str("id", id).Msg("journal entry completed")

	return result, nil
}

// LockEntry transitions a completed entry to Locked, the terminal
// operational state.
func (uc *JournalUseCase) LockEntry(ctx context.Context, id string) (*domain.ValidationResult, error) {
	entry, err := uc.journalRepo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := uc.immutability.CheckStatusTransition(entry, domain.TransactionStatusLocked)
	if !result.Valid {
		return result, nil
	}

	if err := uc.setTransactionStatus(ctx, id, domain.TransactionStatusLocked); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("id", id).Msg("journal entry locked")

	return result, nil
}

// PostEntry moves a draft entry's journal status to Posted, making it
// visible to balance and trial balance computations.
func (uc *JournalUseCase) PostEntry(ctx context.Context, id string) (*domain.ValidationResult, error) {
	entry, err := uc.journalRepo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := domain.NewValidationResult()
	if entry.Status != domain.JournalStatusDraft {
		result.AddError("Status", fmt.Sprintf("Only draft entries can be posted, entry is %s", entry.Status), CodeInvalidStatusTransition)

		return result, nil
	}

	if err := uc.setJournalStatus(ctx, id, domain.JournalStatusPosted, ""); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("id", id).Msg("journal entry posted")

	return result, nil
}

// ApproveEntry moves a posted entry to Approved. Approved entries cannot be
// modified regardless of transaction status.
func (uc *JournalUseCase) ApproveEntry(ctx context.Context, id, approvedBy string) (*domain.ValidationResult, error) {
	entry, err := uc.journalRepo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := domain.NewValidationResult()

	switch entry.Status {
	case domain.JournalStatusApproved:
		result.AddError("Status", "Journal entry is already approved", CodeJournalApproved)

		return result, nil
	case domain.JournalStatusPosted:
		// Approvable.
	default:
		result.AddError("Status", fmt.Sprintf("Only posted entries can be approved, entry is %s", entry.Status), CodeInvalidStatusTransition)

		return result, nil
	}

	if err := uc.setJournalStatus(ctx, id, domain.JournalStatusApproved, approvedBy); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("id", id).Str("approved_by", approvedBy).Msg("journal entry approved")

	return result, nil
}

// ReverseEntry creates a mirror entry with debits and credits swapped and
// marks the original as reversed, in one transaction. The original must be
// completed; reversal is the only way to undo a completed entry.
func (uc *JournalUseCase) ReverseEntry(ctx context.Context, id, requestedBy string) (*domain.JournalEntry, *domain.ValidationResult, error) {
	original, err := uc.journalRepo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	result := uc.immutability.CheckStatusTransition(original, domain.TransactionStatusReversed)
	if !result.Valid {
		return nil, result, nil
	}

	now := uc.now().UTC()

	reversal := &domain.JournalEntry{
		ID:                uc.idGen.Generate(),
		TransactionDate:   now,
		Type:              original.Type,
		ReferenceNumber:   original.ReferenceNumber,
		Description:       fmt.Sprintf("Reversal of %s: %s", original.JournalNumber, original.Description),
		Status:            domain.JournalStatusPosted,
		TransactionStatus: domain.TransactionStatusCompleted,
		ReversalOfID:      original.ID,
		CreatedBy:         requestedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	reversal.JournalNumber = fmt.Sprintf("JE-%d%02d-%s", now.Year(), now.Month(), reversal.ID)

	for i, line := range original.Lines {
		reversal.Lines = append(reversal.Lines, domain.JournalEntryLine{
			ID:             uc.idGen.Generate(),
			JournalEntryID: reversal.ID,
			AccountID:      line.AccountID,
			ContactID:      line.ContactID,
			Debit:          line.Credit,
			Credit:         line.Debit,
			Description:    line.Description,
			Reference:      line.Reference,
			LineOrder:      i,
		})
	}

	reversal.ComputeTotals()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.journalRepo.CreateEntry(ctx, tx, reversal); err != nil {
		return nil, nil, fmt.Errorf("persist reversal entry: %w", err)
	}

	if err := uc.journalRepo.MarkReversed(ctx, tx, original.ID, now); err != nil {
		return nil, nil, fmt.Errorf("mark original reversed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	uc.balances.UpdateBalanceCache(ctx, reversal)

	if uc.metrics != nil {
		uc.metrics.EntriesReversed.Inc()
	}

	uc.logger.Info().
		Str("original_id", original.ID).
		Str("reversal_id", reversal.ID).
		Str("requested_by", requestedBy).
		Msg("journal entry reversed")

	return reversal, result, nil
}

func (uc *JournalUseCase) setTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.journalRepo.SetTransactionStatus(ctx, tx, id, status, uc.now().UTC()); err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}

	return tx.Commit(ctx)
}

func (uc *JournalUseCase) setJournalStatus(ctx context.Context, id string, status domain.JournalStatus, approvedBy string) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.journalRepo.SetJournalStatus(ctx, tx, id, status, approvedBy, uc.now().UTC()); err != nil {
		return fmt.Errorf("set journal status: %w", err)
	}

	return tx.Commit(ctx)
}
