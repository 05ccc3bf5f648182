package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbooks/accounting/internal/domain"
)

// ContactRepository implements usecase.ContactRepository.
type ContactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// GetByID retrieves a contact by ID.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	var contact domain.Contact

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, is_active FROM contacts WHERE id = $1`, id).
		Scan(&contact.ID, &contact.Name, &contact.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}

		return nil, err
	}

	return &contact, nil
}

// IsLinkedToAccount reports whether the contact is assigned to the account.
func (r *ContactRepository) IsLinkedToAccount(ctx context.Context, contactID, accountID string) (bool, error) {
	var linked bool

	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM contact_accounts
			WHERE contact_id = $1 AND account_id = $2
		)`, contactID, accountID).Scan(&linked)
	if err != nil {
		return false, err
	}

	return linked, nil
}
