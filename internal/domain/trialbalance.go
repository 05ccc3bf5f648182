package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the threshold under which a debit/credit difference is
// treated as balanced. Matches the currency's two decimal places.
var BalanceTolerance = decimal.RequireFromString("0.01")

// TrialBalanceStatus tracks the snapshot lifecycle. Approved is terminal;
// only notes remain editable afterwards.
type TrialBalanceStatus string

const (
	TrialBalanceStatusGenerated TrialBalanceStatus = "generated"
	TrialBalanceStatusApproved  TrialBalanceStatus = "approved"
)

// TrialBalance is an approvable period-end snapshot of all account balances.
// At most one snapshot exists per (year, month).
type TrialBalance struct {
	ID           string
	Year         int
	Month        int
	CompanyName  string
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	Status       TrialBalanceStatus
	Notes        string
	GeneratedBy  string
	GeneratedAt  time.Time
	ApprovedBy   string
	ApprovedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Entries      []TrialBalanceEntry
}

// IsBalanced reports whether total debits equal total credits within the
// balance tolerance.
func (tb *TrialBalance) IsBalanced() bool {
	return tb.TotalDebits.Sub(tb.TotalCredits).Abs().LessThan(BalanceTolerance)
}

// TrialBalanceEntry is one account's row in a snapshot. Zero-activity
// accounts are omitted from snapshots, not zero-filled.
type TrialBalanceEntry struct {
	ID              string
	TrialBalanceID  string
	AccountID       string
	AccountCode     string
	AccountName     string
	AccountType     AccountType
	OpeningBalance  decimal.Decimal
	DebitMovements  decimal.Decimal
	CreditMovements decimal.Decimal
	ClosingBalance  decimal.Decimal
	SortOrder       int
}
