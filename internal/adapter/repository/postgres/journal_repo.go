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
	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
	"github.com/finbooks/accounting/internal/usecase"
)

// JournalRepository implements usecase.JournalRepository.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

const entryColumns = `id, journal_number, transaction_date, type, reference_number,
	description, total_debit, total_credit, status, transaction_status,
	reversal_of_id, created_by, approved_by, approved_at, created_at, updated_at`

// CreateEntry persists the entry header and all its lines within tx.
func (r *JournalRepository) CreateEntry(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO journal_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		entry.ID,
		entry.JournalNumber,
		timeToPgTimestamptz(entry.TransactionDate),
		string(entry.Type),
		entry.ReferenceNumber,
		entry.Description,
		decimalToNumeric(entry.TotalDebit),
		decimalToNumeric(entry.TotalCredit),
		string(entry.Status),
		string(entry.TransactionStatus),
		textOrNull(entry.ReversalOfID),
		entry.CreatedBy,
		textOrNull(entry.ApprovedBy),
		timePtrToPgTimestamptz(entry.ApprovedAt),
		timeToPgTimestamptz(entry.CreatedAt),
		timeToPgTimestamptz(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	for _, line := range entry.Lines {
		_, err := pgxTx.Exec(ctx, `
			INSERT INTO journal_entry_lines (
				id, journal_entry_id, account_id, contact_id, debit, credit,
				description, reference, line_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			line.ID,
			line.JournalEntryID,
			line.AccountID,
			textOrNull(line.ContactID),
			decimalToNumeric(line.Debit),
			decimalToNumeric(line.Credit),
			line.Description,
			line.Reference,
			line.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert journal entry line: %w", err)
		}
	}

	return nil
}

// GetEntryByID retrieves an entry and its lines, lines in line order.
func (r *JournalRepository) GetEntryByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}

	lines, err := r.linesForEntries(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	entry.Lines = lines[id]

	return entry, nil
}

// SetTransactionStatus updates the operational status within tx.
func (r *JournalRepository) SetTransactionStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE journal_entries SET transaction_status = $2, updated_at = $3
		WHERE id = $1`,
		id, string(status), timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrJournalEntryNotFound
	}

	return nil
}

// SetJournalStatus updates the approval workflow status within tx. The
// approver is recorded only when the new status is Approved.
func (r *JournalRepository) SetJournalStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.JournalStatus, approvedBy string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	var tag pgconn.CommandTag
	var err error

	if status == domain.JournalStatusApproved {
		tag, err = pgxTx.Exec(ctx, `
			UPDATE journal_entries
			SET status = $2, approved_by = $3, approved_at = $4, updated_at = $4
			WHERE id = $1`,
			id, string(status), approvedBy, timeToPgTimestamptz(updatedAt))
	} else {
		tag, err = pgxTx.Exec(ctx, `
			UPDATE journal_entries SET status = $2, updated_at = $3
			WHERE id = $1`,
			id, string(status), timeToPgTimestamptz(updatedAt))
	}

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrJournalEntryNotFound
	}

	return nil
}

// MarkReversed flips both status gates of the original entry to reversed.
func (r *JournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE journal_entries
		SET status = 'reversed', transaction_status = 'reversed', updated_at = $2
		WHERE id = $1`,
		id, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrJournalEntryNotFound
	}

	return nil
}

// SumLinesForAccount totals debits and credits for an account, optionally
// bounded by transaction date and restricted to posted or approved entries.
// A zero From or To bound is open on that side.
func (r *JournalRepository) SumLinesForAccount(ctx context.Context, accountID string, dateRange *usecase.DateRange, postedOnly bool) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.journal_entry_id
		WHERE l.account_id = $1
		  AND e.transaction_status <> 'reversed'`
	args := []any{accountID}

	if postedOnly {
		query += ` AND e.status IN ('posted', 'approved')`
	}

	if dateRange != nil {
		if !dateRange.From.IsZero() {
			args = append(args, timeToPgTimestamptz(dateRange.From))
			query += fmt.Sprintf(` AND e.transaction_date >= $%d`, len(args))
		}

		if !dateRange.To.IsZero() {
			args = append(args, timeToPgTimestamptz(dateRange.To))
			query += fmt.Sprintf(` AND e.transaction_date <= $%d`, len(args))
		}
	}

	var debits, credits pgtype.Numeric

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&debits, &credits); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(debits), numericToDecimal(credits), nil
}

// GetEntriesByPeriod retrieves all non-reversed entries of a calendar month,
// with lines, ordered by transaction date.
func (r *JournalRepository) GetEntriesByPeriod(ctx context.Context, year, month int) ([]*domain.JournalEntry, error) {
	periodStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE transaction_date >= $1 AND transaction_date < $2
		  AND transaction_status <> 'reversed'
		ORDER BY transaction_date, journal_number`,
		timeToPgTimestamptz(periodStart), timeToPgTimestamptz(periodEnd))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.JournalEntry
	var ids []string

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return entries, nil
	}

	lines, err := r.linesForEntries(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		entry.Lines = lines[entry.ID]
	}

	return entries, nil
}

// ExistsByReference reports whether another entry with the same reference
// number exists on the same calendar day.
func (r *JournalRepository) ExistsByReference(ctx context.Context, referenceNumber string, date time.Time, excludeID string) (bool, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var exists bool

	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM journal_entries
			WHERE reference_number = $1
			  AND transaction_date >= $2 AND transaction_date < $3
			  AND id <> $4
		)`,
		referenceNumber,
		timeToPgTimestamptz(day),
		timeToPgTimestamptz(day.AddDate(0, 0, 1)),
		excludeID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *JournalRepository) linesForEntries(ctx context.Context, entryIDs []string) (map[string][]domain.JournalEntryLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, journal_entry_id, account_id, contact_id, debit, credit,
		       description, reference, line_order
		FROM journal_entry_lines
		WHERE journal_entry_id = ANY($1)
		ORDER BY journal_entry_id, line_order`,
		entryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make(map[string][]domain.JournalEntryLine)

	for rows.Next() {
		var (
			line      domain.JournalEntryLine
			contactID pgtype.Text
			debit     pgtype.Numeric
			credit    pgtype.Numeric
		)

		err := rows.Scan(
			&line.ID,
			&line.JournalEntryID,
			&line.AccountID,
			&contactID,
			&debit,
			&credit,
			&line.Description,
			&line.Reference,
			&line.LineOrder,
		)
		if err != nil {
			return nil, err
		}

		line.ContactID = contactID.String
		line.Debit = numericToDecimal(debit)
		line.Credit = numericToDecimal(credit)
		lines[line.JournalEntryID] = append(lines[line.JournalEntryID], line)
	}

	return lines, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		entry           domain.JournalEntry
		entryType       string
		status          string
		txStatus        string
		totalDebit      pgtype.Numeric
		totalCredit     pgtype.Numeric
		reversalOfID    pgtype.Text
		approvedBy      pgtype.Text
		approvedAt      pgtype.Timestamptz
		transactionDate pgtype.Timestamptz
		createdAt       pgtype.Timestamptz
		updatedAt       pgtype.Timestamptz
	)

	err := row.Scan(
		&entry.ID,
		&entry.JournalNumber,
		&transactionDate,
		&entryType,
		&entry.ReferenceNumber,
		&entry.Description,
		&totalDebit,
		&totalCredit,
		&status,
		&txStatus,
		&reversalOfID,
		&entry.CreatedBy,
		&approvedBy,
		&approvedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJournalEntryNotFound
		}

		return nil, err
	}

	entry.TransactionDate = transactionDate.Time
	entry.Type = domain.JournalType(entryType)
	entry.TotalDebit = numericToDecimal(totalDebit)
	entry.TotalCredit = numericToDecimal(totalCredit)
	entry.Status = domain.JournalStatus(status)
	entry.TransactionStatus = domain.TransactionStatus(txStatus)
	entry.ReversalOfID = reversalOfID.String
	entry.ApprovedBy = approvedBy.String
	entry.CreatedAt = createdAt.Time
	entry.UpdatedAt = updatedAt.Time

	if approvedAt.Valid {
		at := approvedAt.Time
		entry.ApprovedAt = &at
	}

	return &entry, nil
}

func timePtrToPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}

	return pgtype.Timestamptz{Time: *t, Valid: true}
}
