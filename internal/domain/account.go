package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// BalanceSide is the side on which an account type normally carries a
// positive balance.
type BalanceSide string

const (
	DebitNormal  BalanceSide = "debit"
	CreditNormal BalanceSide = "credit"
)

// NormalBalance returns the normal balance side for the account type.
func (t AccountType) NormalBalance() BalanceSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return DebitNormal
	default:
		return CreditNormal
	}
}

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account is a ledger account. Balance fields derived from journal lines are
// owned by the balance cache; the engine never mutates accounts otherwise.
type Account struct {
	ID                string
	Code              string
	Name              string
	Type              AccountType
	ParentID          string
	Description       string
	OpeningBalance    decimal.Decimal
	IsActive          bool
	AllowTransactions bool
	IsBankAccount     bool
	IsCashAccount     bool
	SortOrder         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ClassifyAccount infers bank/cash tagging from account code prefixes and
// name substrings. It exists only as a migration aid for charts created
// before the explicit IsBankAccount/IsCashAccount flags; new accounts must
// carry the flags directly.
func ClassifyAccount(a *Account) (isBank, isCash bool) {
	if a.Type != AccountTypeAsset {
		return false, false
	}

	name := strings.ToLower(a.Name)

	isBank = strings.HasPrefix(a.Code, "1010") ||
		strings.HasPrefix(a.Code, "1011") ||
		strings.Contains(name, "bank")

	isCash = strings.HasPrefix(a.Code, "1000") ||
		strings.HasPrefix(a.Code, "1001") ||
		strings.Contains(name, "cash")

	return isBank, isCash
}

// Contact is a counterparty that may be referenced by a journal line.
// Contact management lives outside the engine; only the fields needed for
// validation are modelled.
type Contact struct {
	ID       string
	Name     string
	IsActive bool
}
