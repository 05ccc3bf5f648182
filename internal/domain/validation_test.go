package domain

import "testing"

func TestValidationResultAddError(t *testing.T) {
	t.Parallel()

	r := NewValidationResult()
	if !r.Valid {
		t.Fatal("new result should be valid")
	}

	r.AddWarning("Description", "description is recommended", "MISSING_DESCRIPTION")
	if !r.Valid {
		t.Fatal("warnings must not flip validity")
	}

	r.AddError("Lines", "transaction is not balanced", "UNBALANCED_TRANSACTION")
	if r.Valid {
		t.Fatal("errors must flip validity")
	}
	if !r.HasCode("UNBALANCED_TRANSACTION") {
		t.Fatal("expected error code to be recorded")
	}
	if !r.HasWarningCode("MISSING_DESCRIPTION") {
		t.Fatal("expected warning code to be recorded")
	}
}

func TestValidationResultMerge(t *testing.T) {
	t.Parallel()

	first := NewValidationResult()
	first.AddError("Lines[0]", "no amount", "NO_AMOUNT")
	first.AddWarning("Lines", "duplicate accounts", "DUPLICATE_ACCOUNTS")

	second := NewValidationResult()
	second.AddError("TransactionDate", "future date", "FUTURE_DATE")

	combined := NewValidationResult()
	combined.Merge(first)
	combined.Merge(second)
	combined.Merge(nil)

	if combined.Valid {
		t.Fatal("merged result should carry invalidity")
	}
	if len(combined.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(combined.Errors))
	}
	// Collection order is part of the contract.
	if combined.Errors[0].Code != "NO_AMOUNT" || combined.Errors[1].Code != "FUTURE_DATE" {
		t.Fatalf("unexpected error order: %+v", combined.Errors)
	}
	if len(combined.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(combined.Warnings))
	}
}
