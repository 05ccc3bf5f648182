package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/usecase"
	"github.com/finbooks/accounting/internal/usecase/mocks"
)

type journalFixture struct {
	uc          *usecase.JournalUseCase
	txManager   *mocks.MockTransactionManager
	journalRepo *mocks.MockJournalRepository
	accountRepo *mocks.MockAccountRepository
	contactRepo *mocks.MockContactRepository
	cache       *mocks.MockCache
	idGen       *mocks.MockIDGenerator
}

func newJournalFixture(t *testing.T) *journalFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &journalFixture{
		txManager:   mocks.NewMockTransactionManager(ctrl),
		journalRepo: mocks.NewMockJournalRepository(ctrl),
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		contactRepo: mocks.NewMockContactRepository(ctrl),
		cache:       mocks.NewMockCache(ctrl),
		idGen:       mocks.NewMockIDGenerator(ctrl),
	}

	validator := usecase.NewValidatorUseCase(f.accountRepo, f.contactRepo, f.journalRepo, nil,
		usecase.WithClock(fixedClock("2026-08-14T12:00:00Z")))
	immutability := usecase.NewImmutabilityUseCase(f.journalRepo)
	balances := usecase.NewBalanceUseCase(f.accountRepo, f.journalRepo, f.cache, zerolog.Nop(), nil)

	f.uc = usecase.NewJournalUseCase(
		f.txManager, f.journalRepo, validator, immutability, balances,
		f.idGen, zerolog.Nop(), nil,
	)

	return f
}

func (f *journalFixture) expectTx(t *testing.T) {
	t.Helper()

	ctrl := gomock.NewController(t)
	tx := mocks.NewMockTransaction(ctrl)
	tx.EXPECT().Commit(gomock.Any()).Return(nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()
	f.txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
}

func (f *journalFixture) expectValidAccounts() {
	f.accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{
		ID: "acc-1", Code: "1000", Type: domain.AccountTypeAsset,
		IsActive: true, AllowTransactions: true,
	}, nil).AnyTimes()
	f.accountRepo.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{
		ID: "acc-2", Code: "4000", Type: domain.AccountTypeRevenue,
		IsActive: true, AllowTransactions: true,
	}, nil).AnyTimes()
}

func createInput() usecase.CreateEntryInput {
	return usecase.CreateEntryInput{
		TransactionDate: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Type:            domain.JournalTypeSales,
		ReferenceNumber: "INV-2001",
		Description:     "August sales",
		CreatedBy:       "user-1",
		Lines: []usecase.CreateEntryLineInput{
			{AccountID: "acc-1", Debit: dec("150")},
			{AccountID: "acc-2", Credit: dec("150")},
		},
	}
}

func TestJournal_CreateEntry(t *testing.T) {
	f := newJournalFixture(t)

	f.idGen.EXPECT().Generate().Return("je-1")
	f.idGen.EXPECT().Generate().Return("jel-1")
	f.idGen.EXPECT().Generate().Return("jel-2")

	f.expectValidAccounts()
	f.journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-2001", gomock.Any(), "je-1").
		Return(false, nil)

	f.expectTx(t)
	f.journalRepo.EXPECT().CreateEntry(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	entry, result, err := f.uc.CreateEntry(context.Background(), createInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Fatalf("expected valid, got %+v", result.Errors)
	}

	if entry.Status != domain.JournalStatusDraft || entry.TransactionStatus != domain.TransactionStatusDraft {
		t.Errorf("new entries must start as draft, got %+v", entry)
	}

	if !entry.TotalDebit.Equal(dec("150")) || !entry.TotalCredit.Equal(dec("150")) {
		t.Errorf("unexpected totals %s / %s", entry.TotalDebit, entry.TotalCredit)
	}

	if entry.JournalNumber != "JE-202608-je-1" {
		t.Errorf("unexpected journal number %s", entry.JournalNumber)
	}

	if entry.Lines[0].LineOrder != 0 || entry.Lines[1].LineOrder != 1 {
		t.Errorf("line order must follow input order, got %+v", entry.Lines)
	}
}

func TestJournal_CreateEntryInvalidNotPersisted(t *testing.T) {
	f := newJournalFixture(t)

	f.idGen.EXPECT().Generate().Return("je-1").AnyTimes()
	f.expectValidAccounts()
	f.journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-2001", gomock.Any(), gomock.Any()).
		Return(false, nil)

	input := createInput()
	input.Lines[1].Credit = dec("120")

	entry, result, err := f.uc.CreateEntry(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry != nil {
		t.Error("invalid entries must not be returned")
	}

	if result.Valid || !result.HasCode(usecase.CodeUnbalancedTransaction) {
		t.Errorf("expected UNBALANCED_TRANSACTION, got %+v", result)
	}
}

func TestJournal_CompleteEntry(t *testing.T) {
	f := newJournalFixture(t)

	entry := &domain.JournalEntry{
		ID:                "je-1",
		TransactionDate:   time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		ReferenceNumber:   "INV-2001",
		Description:       "August sales",
		Status:            domain.JournalStatusPosted,
		TransactionStatus: domain.TransactionStatusPending,
		Lines: []domain.JournalEntryLine{
			{AccountID: "acc-1", Debit: dec("150")},
			{AccountID: "acc-2", Credit: dec("150")},
		},
	}

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(entry, nil)

	// Completion re-runs the full rule set.
	f.expectValidAccounts()
	f.journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-2001", entry.TransactionDate, "je-1").
		Return(false, nil)

	f.expectTx(t)
	f.journalRepo.EXPECT().
		SetTransactionStatus(gomock.Any(), gomock.Any(), "je-1", domain.TransactionStatusCompleted, gomock.Any()).
		Return(nil)

	// Cache update after completion.
	f.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", domain.ErrCacheMiss).AnyTimes()
	f.cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := f.uc.CompleteEntry(context.Background(), "je-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Errorf("expected completion, got %+v", result)
	}
}

func TestJournal_CompleteEntryWithoutReferenceRefused(t *testing.T) {
	f := newJournalFixture(t)

	// Draft entries may lack a reference number, but one is required before
	// the entry can complete.
	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:                "je-1",
		TransactionDate:   time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Description:       "August sales",
		Status:            domain.JournalStatusPosted,
		TransactionStatus: domain.TransactionStatusPending,
		Lines: []domain.JournalEntryLine{
			{AccountID: "acc-1", Debit: dec("150")},
			{AccountID: "acc-2", Credit: dec("150")},
		},
	}, nil)
	f.expectValidAccounts()

	result, err := f.uc.CompleteEntry(context.Background(), "je-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Fatal("entries without a reference number must not complete")
	}

	if !result.HasCode(usecase.CodeMissingReference) {
		t.Errorf("expected MISSING_REFERENCE, got %+v", result.Errors)
	}
}

func TestJournal_CompleteLockedEntryRefused(t *testing.T) {
	f := newJournalFixture(t)

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:                "je-1",
		TransactionStatus: domain.TransactionStatusLocked,
	}, nil)

	result, err := f.uc.CompleteEntry(context.Background(), "je-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Errorf("locked entries cannot complete, got %+v", result)
	}
}

func TestJournal_PostEntry(t *testing.T) {
	f := newJournalFixture(t)

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:     "je-1",
		Status: domain.JournalStatusDraft,
	}, nil)
	f.expectTx(t)
	f.journalRepo.EXPECT().
		SetJournalStatus(gomock.Any(), gomock.Any(), "je-1", domain.JournalStatusPosted, "", gomock.Any()).
		Return(nil)

	result, err := f.uc.PostEntry(context.Background(), "je-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Errorf("expected post to succeed, got %+v", result)
	}
}

func TestJournal_ApproveEntry(t *testing.T) {
	f := newJournalFixture(t)

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:     "je-1",
		Status: domain.JournalStatusPosted,
	}, nil)
	f.expectTx(t)
	f.journalRepo.EXPECT().
		SetJournalStatus(gomock.Any(), gomock.Any(), "je-1", domain.JournalStatusApproved, "cfo", gomock.Any()).
		Return(nil)

	result, err := f.uc.ApproveEntry(context.Background(), "je-1", "cfo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Errorf("expected approval, got %+v", result)
	}
}

func TestJournal_ApproveDraftRefused(t *testing.T) {
	f := newJournalFixture(t)

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:     "je-1",
		Status: domain.JournalStatusDraft,
	}, nil)

	result, err := f.uc.ApproveEntry(context.Background(), "je-1", "cfo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid || !result.HasCode(usecase.CodeInvalidStatusTransition) {
		t.Errorf("expected INVALID_STATUS_TRANSITION, got %+v", result)
	}
}

func TestJournal_ApproveTwiceRefused(t *testing.T) {
	f := newJournalFixture(t)

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:     "je-1",
		Status: domain.JournalStatusApproved,
	}, nil)

	result, err := f.uc.ApproveEntry(context.Background(), "je-1", "cfo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid || !result.HasCode(usecase.CodeJournalApproved) {
		t.Errorf("expected JOURNAL_APPROVED, got %+v", result)
	}
}

func TestJournal_ReverseEntry(t *testing.T) {
	f := newJournalFixture(t)

	original := &domain.JournalEntry{
		ID:                "je-1",
		JournalNumber:     "JE-202608-je-1",
		Status:            domain.JournalStatusPosted,
		TransactionStatus: domain.TransactionStatusCompleted,
		Description:       "August sales",
		Lines: []domain.JournalEntryLine{
			{AccountID: "acc-1", Debit: dec("150")},
			{AccountID: "acc-2", Credit: dec("150")},
		},
	}

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(original, nil)

	f.idGen.EXPECT().Generate().Return("je-2")
	f.idGen.EXPECT().Generate().Return("jel-3")
	f.idGen.EXPECT().Generate().Return("jel-4")

	f.expectTx(t)
	f.journalRepo.EXPECT().CreateEntry(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.journalRepo.EXPECT().MarkReversed(gomock.Any(), gomock.Any(), "je-1", gomock.Any()).Return(nil)

	f.expectValidAccounts()
	f.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", domain.ErrCacheMiss).AnyTimes()
	f.cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	reversal, result, err := f.uc.ReverseEntry(context.Background(), "je-1", "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Fatalf("expected reversal, got %+v", result)
	}

	if reversal.ReversalOfID != "je-1" {
		t.Errorf("reversal must point at the original, got %q", reversal.ReversalOfID)
	}

	// Debits and credits swap sides.
	if !reversal.Lines[0].Credit.Equal(dec("150")) || !reversal.Lines[1].Debit.Equal(dec("150")) {
		t.Errorf("expected mirrored lines, got %+v", reversal.Lines)
	}

	if !reversal.TotalDebit.Equal(original.TotalCredit) && !reversal.TotalDebit.Equal(dec("150")) {
		t.Errorf("unexpected reversal totals %s / %s", reversal.TotalDebit, reversal.TotalCredit)
	}
}

func TestJournal_ReverseDraftRefused(t *testing.T) {
	f := newJournalFixture(t)

	f.journalRepo.EXPECT().GetEntryByID(gomock.Any(), "je-1").Return(&domain.JournalEntry{
		ID:                "je-1",
		TransactionStatus: domain.TransactionStatusDraft,
	}, nil)

	reversal, result, err := f.uc.ReverseEntry(context.Background(), "je-1", "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reversal != nil || result.Valid {
		t.Errorf("draft entries cannot be reversed, got %+v", result)
	}
}
