package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalType identifies the book a journal entry originates from.
type JournalType string

const (
	JournalTypeGeneral      JournalType = "general"
	JournalTypeSales        JournalType = "sales"
	JournalTypePurchase     JournalType = "purchase"
	JournalTypeCashReceipt  JournalType = "cash_receipt"
	JournalTypeCashPayment  JournalType = "cash_payment"
	JournalTypeBankTransfer JournalType = "bank_transfer"
	JournalTypeAdjustment   JournalType = "adjustment"
	JournalTypeOpening      JournalType = "opening"
	JournalTypeClosing      JournalType = "closing"
)

// JournalStatus tracks the approval workflow of a journal entry.
type JournalStatus string

const (
	JournalStatusDraft    JournalStatus = "draft"
	JournalStatusPosted   JournalStatus = "posted"
	JournalStatusApproved JournalStatus = "approved"
	JournalStatusReversed JournalStatus = "reversed"
)

// TransactionStatus tracks the operational lifecycle of a journal entry,
// independent of the approval workflow.
type TransactionStatus string

const (
	TransactionStatusDraft     TransactionStatus = "draft"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusLocked    TransactionStatus = "locked"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// CanModify reports whether an entry in this status may still be edited.
func (s TransactionStatus) CanModify() bool {
	return s == TransactionStatusDraft || s == TransactionStatusPending
}

// CanTransitionTo reports whether the status machine permits moving to next.
// Locked and Reversed are terminal.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusDraft:
		return next == TransactionStatusPending || next == TransactionStatusCompleted
	case TransactionStatusPending:
		return next == TransactionStatusCompleted
	case TransactionStatusCompleted:
		return next == TransactionStatusLocked || next == TransactionStatusReversed
	}
	return false
}

// JournalEntry is the header of one double-entry transaction.
type JournalEntry struct {
	ID                string
	JournalNumber     string
	TransactionDate   time.Time
	Type              JournalType
	ReferenceNumber   string
	Description       string
	TotalDebit        decimal.Decimal
	TotalCredit       decimal.Decimal
	Status            JournalStatus
	TransactionStatus TransactionStatus
	ReversalOfID      string
	CreatedBy         string
	ApprovedBy        string
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []JournalEntryLine
}

// JournalEntryLine is one leg of a transaction. Exactly one of Debit and
// Credit is positive on a valid line.
type JournalEntryLine struct {
	ID             string
	JournalEntryID string
	AccountID      string
	ContactID      string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Description    string
	Reference      string
	LineOrder      int
}

// ComputeTotals recalculates TotalDebit and TotalCredit from the lines.
func (e *JournalEntry) ComputeTotals() {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
}
