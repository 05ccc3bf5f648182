package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransactionStatusCanModify(t *testing.T) {
	t.Parallel()

	modifiable := []TransactionStatus{TransactionStatusDraft, TransactionStatusPending}
	for _, s := range modifiable {
		if !s.CanModify() {
			t.Errorf("expected %s to be modifiable", s)
		}
	}

	frozen := []TransactionStatus{TransactionStatusCompleted, TransactionStatusLocked, TransactionStatusReversed}
	for _, s := range frozen {
		if s.CanModify() {
			t.Errorf("expected %s to be immutable", s)
		}
	}
}

func TestTransactionStatusTransitions(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to TransactionStatus }{
		{TransactionStatusDraft, TransactionStatusPending},
		{TransactionStatusDraft, TransactionStatusCompleted},
		{TransactionStatusPending, TransactionStatusCompleted},
		{TransactionStatusCompleted, TransactionStatusLocked},
		{TransactionStatusCompleted, TransactionStatusReversed},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to TransactionStatus }{
		{TransactionStatusCompleted, TransactionStatusDraft},
		{TransactionStatusLocked, TransactionStatusCompleted},
		{TransactionStatusReversed, TransactionStatusDraft},
		{TransactionStatusPending, TransactionStatusDraft},
	}
	for _, tr := range denied {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be denied", tr.from, tr.to)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	entry := JournalEntry{
		Lines: []JournalEntryLine{
			{Debit: decimal.NewFromInt(1000)},
			{Credit: decimal.NewFromInt(600)},
			{Credit: decimal.NewFromInt(400)},
		},
	}
	entry.ComputeTotals()

	if !entry.TotalDebit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected total debit 1000, got %s", entry.TotalDebit)
	}
	if !entry.TotalCredit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected total credit 1000, got %s", entry.TotalCredit)
	}
}

func TestTrialBalanceIsBalanced(t *testing.T) {
	t.Parallel()

	tb := TrialBalance{
		TotalDebits:  decimal.RequireFromString("1000.00"),
		TotalCredits: decimal.RequireFromString("1000.005"),
	}
	if !tb.IsBalanced() {
		t.Fatal("expected variance below tolerance to balance")
	}

	tb.TotalCredits = decimal.RequireFromString("1000.02")
	if tb.IsBalanced() {
		t.Fatal("expected variance above tolerance to be unbalanced")
	}
}
