package usecase_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/usecase"
	"github.com/finbooks/accounting/internal/usecase/mocks"
)

func fixedClock(s string) func() time.Time {
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}

	return func() time.Time { return at }
}

func balancedEntry() *domain.JournalEntry {
	return &domain.JournalEntry{
		ID:              "je-1",
		TransactionDate: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), // a Monday
		ReferenceNumber: "INV-1001",
		Description:     "Office supplies",
		Lines: []domain.JournalEntryLine{
			{AccountID: "acc-1", Debit: dec("100")},
			{AccountID: "acc-2", Credit: dec("100")},
		},
	}
}

func newValidator(t *testing.T) (*usecase.ValidatorUseCase, *mocks.MockAccountRepository, *mocks.MockContactRepository, *mocks.MockJournalRepository) {
	t.Helper()

	ctrl := gomock.NewController(t)
	accountRepo := mocks.NewMockAccountRepository(ctrl)
	contactRepo := mocks.NewMockContactRepository(ctrl)
	journalRepo := mocks.NewMockJournalRepository(ctrl)

	uc := usecase.NewValidatorUseCase(accountRepo, contactRepo, journalRepo, nil,
		usecase.WithClock(fixedClock("2026-08-14T12:00:00Z")))

	return uc, accountRepo, contactRepo, journalRepo
}

func TestValidateDoubleEntry_Balanced(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	result := uc.ValidateDoubleEntry(balancedEntry())

	if !result.Valid {
		t.Fatalf("expected valid, got errors %+v", result.Errors)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", result.Warnings)
	}
}

func TestValidateDoubleEntry_Unbalanced(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines[1].Credit = dec("99")

	result := uc.ValidateDoubleEntry(entry)

	if result.Valid {
		t.Fatal("expected invalid result")
	}

	if !result.HasCode(usecase.CodeUnbalancedTransaction) {
		t.Errorf("expected UNBALANCED_TRANSACTION, got %+v", result.Errors)
	}
}

func TestValidateDoubleEntry_WithinTolerance(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines[1].Credit = dec("100.005")

	result := uc.ValidateDoubleEntry(entry)

	if result.HasCode(usecase.CodeUnbalancedTransaction) {
		t.Errorf("difference under tolerance should pass, got %+v", result.Errors)
	}
}

func TestValidateDoubleEntry_ExactToleranceBoundary(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	// A difference of exactly 0.01 is within tolerance; only a larger
	// difference is unbalanced.
	entry := balancedEntry()
	entry.Lines[1].Credit = dec("100.01")

	result := uc.ValidateDoubleEntry(entry)

	if result.HasCode(usecase.CodeUnbalancedTransaction) {
		t.Errorf("difference of exactly 0.01 should pass, got %+v", result.Errors)
	}

	entry.Lines[1].Credit = dec("100.02")
	if !uc.ValidateDoubleEntry(entry).HasCode(usecase.CodeUnbalancedTransaction) {
		t.Error("difference of 0.02 should be unbalanced")
	}
}

func TestValidateDoubleEntry_LineAmountRules(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines = append(entry.Lines,
		domain.JournalEntryLine{AccountID: "acc-3", Debit: dec("50"), Credit: dec("50")},
		domain.JournalEntryLine{AccountID: "acc-4"},
	)

	result := uc.ValidateDoubleEntry(entry)

	if !result.HasCode(usecase.CodeBothDebitCredit) {
		t.Error("expected BOTH_DEBIT_CREDIT")
	}

	if !result.HasCode(usecase.CodeNoAmount) {
		t.Error("expected NO_AMOUNT")
	}
}

func TestValidateDoubleEntry_NoLines(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines = nil

	result := uc.ValidateDoubleEntry(entry)

	if !result.HasCode(usecase.CodeNoLines) {
		t.Errorf("expected NO_LINES, got %+v", result.Errors)
	}

	if len(result.Errors) != 1 {
		t.Errorf("empty entry should short-circuit, got %+v", result.Errors)
	}
}

func TestValidateDoubleEntry_SingleLine(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines = entry.Lines[:1]

	result := uc.ValidateDoubleEntry(entry)

	if !result.HasCode(usecase.CodeInsufficientLines) {
		t.Error("expected INSUFFICIENT_LINES")
	}

	if !result.HasCode(usecase.CodeUnbalancedTransaction) {
		t.Error("single debit line must also be unbalanced")
	}
}

func TestValidateDoubleEntry_DuplicateAccountsWarns(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines = append(entry.Lines,
		domain.JournalEntryLine{AccountID: "acc-1", Debit: dec("20")},
		domain.JournalEntryLine{AccountID: "acc-2", Credit: dec("20")},
	)

	result := uc.ValidateDoubleEntry(entry)

	if !result.Valid {
		t.Fatalf("duplicates are advisory only, got %+v", result.Errors)
	}

	if !result.HasWarningCode(usecase.CodeDuplicateAccounts) {
		t.Error("expected DUPLICATE_ACCOUNTS warning")
	}
}

func TestValidateBusinessRules_LargeLineWarns(t *testing.T) {
	uc, _, _, journalRepo := newValidator(t)

	entry := balancedEntry()
	entry.Lines[0].Debit = dec("2000000")
	entry.Lines[1].Credit = dec("2000000")
	journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-1001", entry.TransactionDate, "je-1").
		Return(false, nil)

	result, err := uc.ValidateBusinessRules(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Fatalf("large amounts are advisory only, got %+v", result.Errors)
	}

	if len(result.Warnings) != 2 {
		t.Fatalf("expected a warning per large line, got %+v", result.Warnings)
	}

	if !result.HasWarningCode(usecase.CodeLargeAmount) {
		t.Error("expected LARGE_AMOUNT warning")
	}
}

func TestValidateBusinessRules_LargeTotalAcrossSmallLinesPasses(t *testing.T) {
	uc, _, _, journalRepo := newValidator(t)

	// Six 400k legs total well past the threshold, but no single line
	// crosses it, so nothing is flagged.
	entry := balancedEntry()
	entry.Lines = nil
	for i := 0; i < 3; i++ {
		entry.Lines = append(entry.Lines,
			domain.JournalEntryLine{AccountID: "acc-1", Debit: dec("400000")},
			domain.JournalEntryLine{AccountID: "acc-2", Credit: dec("400000")},
		)
	}
	journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-1001", entry.TransactionDate, "je-1").
		Return(false, nil)

	result, err := uc.ValidateBusinessRules(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.HasWarningCode(usecase.CodeLargeAmount) {
		t.Errorf("no single line is large, got %+v", result.Warnings)
	}
}

func TestValidateAccountTypeRules(t *testing.T) {
	uc, accountRepo, _, _ := newValidator(t)

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{
		ID: "acc-1", Code: "1000", Type: domain.AccountTypeAsset,
		IsActive: true, AllowTransactions: true,
	}, nil)
	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{
		ID: "acc-2", Code: "4000", Type: domain.AccountTypeRevenue,
		IsActive: true, AllowTransactions: true,
	}, nil)

	result, err := uc.ValidateAccountTypeRules(context.Background(), balancedEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Errorf("expected valid, got %+v", result.Errors)
	}
}

func TestValidateAccountTypeRules_MissingAndInactive(t *testing.T) {
	uc, accountRepo, _, _ := newValidator(t)

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(nil, domain.ErrAccountNotFound)
	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{
		ID: "acc-2", Code: "4000", Type: domain.AccountTypeRevenue,
		IsActive: false, AllowTransactions: false,
	}, nil)

	result, err := uc.ValidateAccountTypeRules(context.Background(), balancedEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.HasCode(usecase.CodeAccountNotFound) {
		t.Error("expected ACCOUNT_NOT_FOUND")
	}

	if !result.HasCode(usecase.CodeInactiveAccount) {
		t.Error("expected INACTIVE_ACCOUNT")
	}

	if !result.HasCode(usecase.CodeTransactionsNotAllowed) {
		t.Error("expected TRANSACTIONS_NOT_ALLOWED")
	}
}

func TestValidateAccountTypeRules_UnusualBalanceWarns(t *testing.T) {
	uc, accountRepo, _, _ := newValidator(t)

	// Material credit landing on a debit-normal asset account.
	entry := &domain.JournalEntry{
		Lines: []domain.JournalEntryLine{
			{AccountID: "acc-1", Credit: dec("5000")},
			{AccountID: "acc-2", Debit: dec("5000")},
		},
	}

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{
		ID: "acc-1", Code: "1000", Type: domain.AccountTypeAsset,
		IsActive: true, AllowTransactions: true,
	}, nil)
	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{
		ID: "acc-2", Code: "4000", Type: domain.AccountTypeRevenue,
		IsActive: true, AllowTransactions: true,
	}, nil)

	result, err := uc.ValidateAccountTypeRules(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Fatalf("unusual balances are advisory only, got %+v", result.Errors)
	}

	if len(result.Warnings) != 2 {
		t.Fatalf("expected warnings for both lines, got %+v", result.Warnings)
	}

	if !result.HasWarningCode(usecase.CodeUnusualBalance) {
		t.Error("expected UNUSUAL_BALANCE warning")
	}
}

func TestValidateTransactionDate(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	tests := []struct {
		name        string
		date        time.Time
		wantError   string
		wantWarning string
	}{
		{
			name:      "future date rejected",
			date:      time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			wantError: usecase.CodeFutureDate,
		},
		{
			name:        "old date warns",
			date:        time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			wantWarning: usecase.CodeOldDate,
		},
		{
			name:        "weekend warns",
			date:        time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC), // a Saturday
			wantWarning: usecase.CodeWeekendDate,
		},
		{
			name: "recent weekday passes",
			date: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := balancedEntry()
			entry.TransactionDate = tt.date

			result := uc.ValidateTransactionDate(entry)

			if tt.wantError != "" && !result.HasCode(tt.wantError) {
				t.Errorf("expected error %s, got %+v", tt.wantError, result.Errors)
			}

			if tt.wantError == "" && !result.Valid {
				t.Errorf("expected valid, got %+v", result.Errors)
			}

			if tt.wantWarning != "" && !result.HasWarningCode(tt.wantWarning) {
				t.Errorf("expected warning %s, got %+v", tt.wantWarning, result.Warnings)
			}
		})
	}
}

func TestValidateContactAssignment(t *testing.T) {
	uc, _, contactRepo, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines[0].ContactID = "con-1"

	contactRepo.EXPECT().GetByID(gomock.Any(), "con-1").Return(&domain.Contact{
		ID: "con-1", Name: "Acme Textiles", IsActive: true,
	}, nil)
	contactRepo.EXPECT().IsLinkedToAccount(gomock.Any(), "con-1", "acc-1").Return(true, nil)

	result, err := uc.ValidateContactAssignment(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid || len(result.Warnings) != 0 {
		t.Errorf("expected clean result, got %+v", result)
	}
}

func TestValidateContactAssignment_Violations(t *testing.T) {
	uc, _, contactRepo, _ := newValidator(t)

	entry := balancedEntry()
	entry.Lines[0].ContactID = "con-missing"
	entry.Lines[1].ContactID = "con-2"

	contactRepo.EXPECT().GetByID(gomock.Any(), "con-missing").Return(nil, domain.ErrContactNotFound)
	contactRepo.EXPECT().GetByID(gomock.Any(), "con-2").Return(&domain.Contact{
		ID: "con-2", Name: "Smith", IsActive: false,
	}, nil)
	contactRepo.EXPECT().IsLinkedToAccount(gomock.Any(), "con-2", "acc-2").Return(false, nil)

	result, err := uc.ValidateContactAssignment(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.HasCode(usecase.CodeContactNotFound) {
		t.Error("expected CONTACT_NOT_FOUND")
	}

	if !result.HasCode(usecase.CodeInactiveContact) {
		t.Error("expected INACTIVE_CONTACT")
	}

	if !result.HasWarningCode(usecase.CodeContactNotAssigned) {
		t.Error("expected CONTACT_NOT_ASSIGNED warning")
	}
}

func TestValidateContactAssignment_SkipsEmptyContact(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	result, err := uc.ValidateContactAssignment(context.Background(), balancedEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Errorf("lines without contacts need no lookups, got %+v", result.Errors)
	}
}

func TestValidateBusinessRules(t *testing.T) {
	uc, _, _, journalRepo := newValidator(t)

	entry := balancedEntry()
	journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-1001", entry.TransactionDate, "je-1").
		Return(false, nil)

	result, err := uc.ValidateBusinessRules(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid || len(result.Warnings) != 0 {
		t.Errorf("expected clean result, got %+v", result)
	}
}

func TestValidateBusinessRules_MissingReferenceBlocks(t *testing.T) {
	uc, _, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.ReferenceNumber = ""
	entry.Description = ""

	result, err := uc.ValidateBusinessRules(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Fatal("a missing reference number must block the entry")
	}

	if !result.HasCode(usecase.CodeMissingReference) {
		t.Errorf("expected MISSING_REFERENCE error, got %+v", result.Errors)
	}

	if !result.HasWarningCode(usecase.CodeMissingDescription) {
		t.Error("expected MISSING_DESCRIPTION warning")
	}
}

func TestValidateCompleteTransaction_MissingReferenceBlocks(t *testing.T) {
	uc, accountRepo, _, _ := newValidator(t)

	entry := balancedEntry()
	entry.ReferenceNumber = ""

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{
		ID: "acc-1", Code: "1000", Type: domain.AccountTypeAsset,
		IsActive: true, AllowTransactions: true,
	}, nil)
	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{
		ID: "acc-2", Code: "4000", Type: domain.AccountTypeRevenue,
		IsActive: true, AllowTransactions: true,
	}, nil)

	result, err := uc.ValidateCompleteTransaction(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Fatal("a balanced entry with no reference number must not validate")
	}

	if !result.HasCode(usecase.CodeMissingReference) {
		t.Errorf("expected MISSING_REFERENCE error, got %+v", result.Errors)
	}
}

func TestValidateBusinessRules_DuplicateReferenceWarns(t *testing.T) {
	uc, _, _, journalRepo := newValidator(t)

	entry := balancedEntry()
	journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-1001", entry.TransactionDate, "je-1").
		Return(true, nil)

	result, err := uc.ValidateBusinessRules(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Fatalf("duplicate references are advisory, got %+v", result.Errors)
	}

	if !result.HasWarningCode(usecase.CodeDuplicateReference) {
		t.Error("expected DUPLICATE_REFERENCE warning")
	}
}

func TestValidateCompleteTransaction(t *testing.T) {
	uc, accountRepo, _, journalRepo := newValidator(t)

	entry := balancedEntry()
	entry.Lines[1].Credit = dec("90")

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(nil, domain.ErrAccountNotFound)
	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{
		ID: "acc-2", Code: "4000", Type: domain.AccountTypeRevenue,
		IsActive: true, AllowTransactions: true,
	}, nil)
	journalRepo.EXPECT().
		ExistsByReference(gomock.Any(), "INV-1001", entry.TransactionDate, "je-1").
		Return(false, nil)

	result, err := uc.ValidateCompleteTransaction(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Valid {
		t.Fatal("expected invalid result")
	}

	// Structural errors come before account lookups in the merged result.
	if result.Errors[0].Code != usecase.CodeUnbalancedTransaction {
		t.Errorf("expected UNBALANCED_TRANSACTION first, got %s", result.Errors[0].Code)
	}

	if !result.HasCode(usecase.CodeAccountNotFound) {
		t.Error("expected ACCOUNT_NOT_FOUND in merged result")
	}
}
