package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// TrialBalanceRepository implements usecase.TrialBalanceRepository.
type TrialBalanceRepository struct {
	pool *pgxpool.Pool
}

// NewTrialBalanceRepository creates a new TrialBalanceRepository.
func NewTrialBalanceRepository(pool *pgxpool.Pool) *TrialBalanceRepository {
	return &TrialBalanceRepository{pool: pool}
}

const trialBalanceColumns = `id, year, month, company_name, total_debits, total_credits,
	status, notes, generated_by, generated_at, approved_by, approved_at,
	created_at, updated_at`

// Create persists the snapshot header and all its entries within tx. A
// snapshot already covering the same period maps to ErrTrialBalanceExists.
func (r *TrialBalanceRepository) Create(ctx context.Context, tx usecase.Transaction, tb *domain.TrialBalance) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO trial_balances (`+trialBalanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		tb.ID,
		tb.Year,
		tb.Month,
		tb.CompanyName,
		decimalToNumeric(tb.TotalDebits),
		decimalToNumeric(tb.TotalCredits),
		string(tb.Status),
		tb.Notes,
		tb.GeneratedBy,
		timeToPgTimestamptz(tb.GeneratedAt),
		textOrNull(tb.ApprovedBy),
		timePtrToPgTimestamptz(tb.ApprovedAt),
		timeToPgTimestamptz(tb.CreatedAt),
		timeToPgTimestamptz(tb.UpdatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrTrialBalanceExists
		}

		return fmt.Errorf("insert trial balance: %w", err)
	}

	for _, entry := range tb.Entries {
		_, err := pgxTx.Exec(ctx, `
			INSERT INTO trial_balance_entries (
				id, trial_balance_id, account_id, account_code, account_name,
				account_type, opening_balance, debit_movements, credit_movements,
				closing_balance, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			entry.ID,
			entry.TrialBalanceID,
			entry.AccountID,
			entry.AccountCode,
			entry.AccountName,
			string(entry.AccountType),
			decimalToNumeric(entry.OpeningBalance),
			decimalToNumeric(entry.DebitMovements),
			decimalToNumeric(entry.CreditMovements),
			decimalToNumeric(entry.ClosingBalance),
			entry.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("insert trial balance entry: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a snapshot and its entries.
func (r *TrialBalanceRepository) GetByID(ctx context.Context, id string) (*domain.TrialBalance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+trialBalanceColumns+` FROM trial_balances WHERE id = $1`, id)

	return r.withEntries(ctx, row)
}

// GetByPeriod retrieves the snapshot for a calendar month.
func (r *TrialBalanceRepository) GetByPeriod(ctx context.Context, year, month int) (*domain.TrialBalance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+trialBalanceColumns+` FROM trial_balances
		WHERE year = $1 AND month = $2`, year, month)

	return r.withEntries(ctx, row)
}

// Approve marks a snapshot approved and records the approver.
func (r *TrialBalanceRepository) Approve(ctx context.Context, id, approvedBy, notes string, approvedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trial_balances
		SET status = 'approved', approved_by = $2, approved_at = $3,
		    notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END, updated_at = $3
		WHERE id = $1`,
		id, approvedBy, timeToPgTimestamptz(approvedAt), notes)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTrialBalanceNotFound
	}

	return nil
}

// UpdateNotes replaces the notes of a snapshot.
func (r *TrialBalanceRepository) UpdateNotes(ctx context.Context, id, notes string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trial_balances SET notes = $2, updated_at = $3 WHERE id = $1`,
		id, notes, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTrialBalanceNotFound
	}

	return nil
}

// Delete removes a snapshot and its entries within tx.
func (r *TrialBalanceRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx := tx.(*Tx).PgxTx()

	if _, err := pgxTx.Exec(ctx, `
		DELETE FROM trial_balance_entries WHERE trial_balance_id = $1`, id); err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `DELETE FROM trial_balances WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTrialBalanceNotFound
	}

	return nil
}

// List retrieves snapshot headers without entries, newest period first.
func (r *TrialBalanceRepository) List(ctx context.Context, limit, offset int) ([]*domain.TrialBalance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trialBalanceColumns+` FROM trial_balances
		ORDER BY year DESC, month DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tbs []*domain.TrialBalance

	for rows.Next() {
		tb, err := scanTrialBalance(rows)
		if err != nil {
			return nil, err
		}

		tbs = append(tbs, tb)
	}

	return tbs, rows.Err()
}

func (r *TrialBalanceRepository) withEntries(ctx context.Context, row pgx.Row) (*domain.TrialBalance, error) {
	tb, err := scanTrialBalance(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, trial_balance_id, account_id, account_code, account_name,
		       account_type, opening_balance, debit_movements, credit_movements,
		       closing_balance, sort_order
		FROM trial_balance_entries
		WHERE trial_balance_id = $1
		ORDER BY sort_order, account_code`, tb.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry       domain.TrialBalanceEntry
			accountType string
			opening     pgtype.Numeric
			debits      pgtype.Numeric
			credits     pgtype.Numeric
			closing     pgtype.Numeric
		)

		err := rows.Scan(
			&entry.ID,
			&entry.TrialBalanceID,
			&entry.AccountID,
			&entry.AccountCode,
			&entry.AccountName,
			&accountType,
			&opening,
			&debits,
			&credits,
			&closing,
			&entry.SortOrder,
		)
		if err != nil {
			return nil, err
		}

		entry.AccountType = domain.AccountType(accountType)
		entry.OpeningBalance = numericToDecimal(opening)
		entry.DebitMovements = numericToDecimal(debits)
		entry.CreditMovements = numericToDecimal(credits)
		entry.ClosingBalance = numericToDecimal(closing)
		tb.Entries = append(tb.Entries, entry)
	}

	return tb, rows.Err()
}

func scanTrialBalance(row pgx.Row) (*domain.TrialBalance, error) {
	var (
		tb           domain.TrialBalance
		status       string
		totalDebits  pgtype.Numeric
		totalCredits pgtype.Numeric
		approvedBy   pgtype.Text
		approvedAt   pgtype.Timestamptz
		generatedAt  pgtype.Timestamptz
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&tb.ID,
		&tb.Year,
		&tb.Month,
		&tb.CompanyName,
		&totalDebits,
		&totalCredits,
		&status,
		&tb.Notes,
		&tb.GeneratedBy,
		&generatedAt,
		&approvedBy,
		&approvedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTrialBalanceNotFound
		}

		return nil, err
	}

	tb.TotalDebits = numericToDecimal(totalDebits)
	tb.TotalCredits = numericToDecimal(totalCredits)
	tb.Status = domain.TrialBalanceStatus(status)
	tb.ApprovedBy = approvedBy.String
	tb.GeneratedAt = generatedAt.Time
	tb.CreatedAt = createdAt.Time
	tb.UpdatedAt = updatedAt.Time

	if approvedAt.Valid {
		at := approvedAt.Time
		tb.ApprovedAt = &at
	}

	return &tb, nil
}
