package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
)

// DateRange bounds a query by transaction date, inclusive on both ends.
type DateRange struct {
	From time.Time
	To   time.Time
}

// AccountRepository defines data access for the chart of accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByCode(ctx context.Context, code string) (*domain.Account, error)
	ListActive(ctx context.Context) ([]*domain.Account, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// ContactRepository defines data access for counterparties.
type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	IsLinkedToAccount(ctx context.Context, contactID, accountID string) (bool, error)
}

// JournalRepository defines data access for journal entries and their lines.
// CreateEntry persists the header and all lines atomically within tx.
type JournalRepository interface {
	CreateEntry(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetEntryByID(ctx context.Context, id string) (*domain.JournalEntry, error)
	SetTransactionStatus(ctx context.Context, tx Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) error
	SetJournalStatus(ctx context.Context, tx Transaction, id string, status domain.JournalStatus, approvedBy string, updatedAt time.Time) error
	MarkReversed(ctx context.Context, tx Transaction, id string, updatedAt time.Time) error
	// SumLinesForAccount returns total debits and credits for an account,
	// optionally bounded by date range and restricted to Posted entries.
	SumLinesForAccount(ctx context.Context, accountID string, dateRange *DateRange, postedOnly bool) (debits, credits decimal.Decimal, err error)
	GetEntriesByPeriod(ctx context.Context, year, month int) ([]*domain.JournalEntry, error)
	// ExistsByReference reports whether another entry carries the same
	// reference number on the same transaction date.
	ExistsByReference(ctx context.Context, referenceNumber string, date time.Time, excludeID string) (bool, error)
}

// TrialBalanceRepository defines data access for trial balance snapshots.
// Create persists the snapshot and its entries atomically within tx.
type TrialBalanceRepository interface {
	Create(ctx context.Context, tx Transaction, tb *domain.TrialBalance) error
	GetByID(ctx context.Context, id string) (*domain.TrialBalance, error)
	GetByPeriod(ctx context.Context, year, month int) (*domain.TrialBalance, error)
	Approve(ctx context.Context, id, approvedBy, notes string, approvedAt time.Time) error
	UpdateNotes(ctx context.Context, id, notes string, updatedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, id string) error
	List(ctx context.Context, limit, offset int) ([]*domain.TrialBalance, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations against the shared cache backend. The
// engine must keep functioning, degraded to direct recomputation, when every
// call returns an error.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
