package usecase

import "github.com/shopspring/decimal"

// Validation codes attached to validator results. Consumers branch on codes,
// not messages.
const (
	CodeUnbalancedTransaction  = "UNBALANCED_TRANSACTION"
	CodeBothDebitCredit        = "BOTH_DEBIT_CREDIT"
	CodeNoAmount               = "NO_AMOUNT"
	CodeNoLines                = "NO_LINES"
	CodeInsufficientLines      = "INSUFFICIENT_LINES"
	CodeDuplicateAccounts      = "DUPLICATE_ACCOUNTS"
	CodeUnusualBalance         = "UNUSUAL_BALANCE"
	CodeLargeAmount            = "LARGE_AMOUNT"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeInactiveAccount        = "INACTIVE_ACCOUNT"
	CodeTransactionsNotAllowed = "TRANSACTIONS_NOT_ALLOWED"
	CodeFutureDate             = "FUTURE_DATE"
	CodeOldDate                = "OLD_DATE"
	CodeWeekendDate            = "WEEKEND_DATE"
	CodeContactNotFound        = "CONTACT_NOT_FOUND"
	CodeInactiveContact        = "INACTIVE_CONTACT"
	CodeContactNotAssigned     = "CONTACT_NOT_ASSIGNED"
	CodeMissingReference       = "MISSING_REFERENCE"
	CodeMissingDescription     = "MISSING_DESCRIPTION"
	CodeDuplicateReference     = "DUPLICATE_REFERENCE"

	CodeTransactionCompleted = "TRANSACTION_COMPLETED"
	CodeTransactionLocked    = "TRANSACTION_LOCKED"
	CodeTransactionReversed  = "TRANSACTION_REVERSED"
	CodeJournalApproved      = "JOURNAL_APPROVED"
	CodeEntryNotFound        = "ENTRY_NOT_FOUND"

	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"

	CodeRoundingVariance       = "ROUNDING_VARIANCE"
	CodeUnbalancedTrialBalance = "UNBALANCED_TRIAL_BALANCE"
	CodeTrialBalanceApproved   = "TRIAL_BALANCE_ALREADY_APPROVED"
)

// Default thresholds. The daemon overrides these from configuration.
var (
	// DefaultMaterialityThreshold marks line amounts worth flagging for
	// review when they carry an unusual sign for the account type.
	DefaultMaterialityThreshold = decimal.NewFromInt(1000)

	// DefaultLargeAmountThreshold marks transactions large enough to warn
	// about regardless of balance.
	DefaultLargeAmountThreshold = decimal.NewFromInt(1000000)

	// RoundingVarianceCeiling is the largest trial balance variance still
	// treated as a rounding artifact rather than a hard failure.
	RoundingVarianceCeiling = decimal.NewFromInt(1)
)

// DefaultPastDateHorizonDays is how far back a transaction date may lie
// before the validator warns.
const DefaultPastDateHorizonDays = 365
