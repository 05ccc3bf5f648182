package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrContactNotFound = errors.New("contact not found")

	// Journal errors
	ErrJournalEntryNotFound = errors.New("journal entry not found")
	ErrInvalidStatusChange  = errors.New("status transition not permitted")

	// Trial balance errors
	ErrTrialBalanceNotFound = errors.New("trial balance not found")
	ErrTrialBalanceExists   = errors.New("trial balance already exists for period")
	ErrTrialBalanceApproved = errors.New("cannot delete an approved trial balance")
	ErrInvalidPeriod        = errors.New("invalid trial balance period")

	// Cache errors
	ErrCacheMiss = errors.New("cache miss")
)
