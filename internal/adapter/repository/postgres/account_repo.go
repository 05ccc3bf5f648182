package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, code, name, type, parent_id, description, opening_balance,
	is_active, allow_transactions, is_bank_account, is_cash_account, sort_order,
	created_at, updated_at`

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		account.ID,
		account.Code,
		account.Name,
		string(account.Type),
		textOrNull(account.ParentID),
		account.Description,
		decimalToNumeric(account.OpeningBalance),
		account.IsActive,
		account.AllowTransactions,
		account.IsBankAccount,
		account.IsCashAccount,
		account.SortOrder,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	return scanAccount(row)
}

// GetByCode retrieves an account by its chart-of-accounts code.
func (r *AccountRepository) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)

	return scanAccount(row)
}

// ListActive lists all active accounts in chart order.
func (r *AccountRepository) ListActive(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE is_active ORDER BY sort_order, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY sort_order, code LIMIT $1 OFFSET $2`,
		int32(limit), int32(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

func scanAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0)

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account        domain.Account
		accountType    string
		parentID       pgtype.Text
		openingBalance pgtype.Numeric
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
	)

	err := row.Scan(
		&account.ID,
		&account.Code,
		&account.Name,
		&accountType,
		&parentID,
		&account.Description,
		&openingBalance,
		&account.IsActive,
		&account.AllowTransactions,
		&account.IsBankAccount,
		&account.IsCashAccount,
		&account.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	account.Type = domain.AccountType(accountType)
	account.ParentID = parentID.String
	account.OpeningBalance = numericToDecimal(openingBalance)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time

	return &account, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
