package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finbooks/accounting/internal/domain"
)

// expressionTermLimit caps how many terms a calculation expression renders
// before collapsing the tail into a count.
const expressionTermLimit = 10

// TransactionData is the minimal per-line slice of a journal entry the
// calculation engine works on.
type TransactionData struct {
	AccountID string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalanceCalculation is the result of running the balance calculation
// over a set of transactions. Debits contribute negatively and credits
// positively, so a FinalBalance of zero means the books are balanced.
type TrialBalanceCalculation struct {
	TotalDebits      decimal.Decimal
	TotalCredits     decimal.Decimal
	FinalBalance     decimal.Decimal
	Expression       string
	IsBalanced       bool
	TransactionCount int
}

// CalculationStep is one leg of the running calculation: a debit leg
// carries its amount negated, a credit leg carries it as-is.
type CalculationStep struct {
	AccountID    string
	Type         string
	Amount       decimal.Decimal
	RunningTotal decimal.Decimal
}

// CalculationSummary totals a breakdown.
type CalculationSummary struct {
	TotalDebits      decimal.Decimal
	TotalCredits     decimal.Decimal
	FinalBalance     decimal.Decimal
	TransactionCount int
}

// CalculationBreakdown is the audit trail of a calculation: one step per
// non-zero leg, in input order, each carrying the total so far.
type CalculationBreakdown struct {
	Steps   []CalculationStep
	Summary CalculationSummary
}

// CalculationUseCase computes trial balance figures from raw transaction
// data. It is purely arithmetic and holds no repositories; memoization is
// layered on top by MemoizerUseCase.
type CalculationUseCase struct{}

// NewCalculationUseCase creates a new CalculationUseCase.
func NewCalculationUseCase() *CalculationUseCase {
	return &CalculationUseCase{}
}

// CalculateTrialBalance sums the transactions with debit legs negative and
// credit legs positive. The result is balanced when the final balance is
// within tolerance of zero. TransactionCount counts legs, not input rows; a
// row carrying both sides contributes two.
func (uc *CalculationUseCase) CalculateTrialBalance(transactions []TransactionData) TrialBalanceCalculation {
	totalDebits := decimal.Zero
	totalCredits := decimal.Zero
	finalBalance := decimal.Zero

	values := calculationValues(transactions)
	for _, value := range values {
		if value.IsNegative() {
			totalDebits = totalDebits.Add(value.Abs())
		} else {
			totalCredits = totalCredits.Add(value)
		}

		finalBalance = finalBalance.Add(value)
	}

	return TrialBalanceCalculation{
		TotalDebits:      totalDebits,
		TotalCredits:     totalCredits,
		FinalBalance:     finalBalance,
		Expression:       uc.GenerateCalculationExpression(transactions),
		IsBalanced:       finalBalance.Abs().LessThan(domain.BalanceTolerance),
		TransactionCount: len(values),
	}
}

// calculationValues flattens the transactions into the per-leg value list
// the calculation runs on. Each positive debit contributes its amount
// negated and each positive credit contributes its amount as-is, in input
// order.
func calculationValues(transactions []TransactionData) []decimal.Decimal {
	values := make([]decimal.Decimal, 0, len(transactions))

	for _, tx := range transactions {
		if tx.Debit.GreaterThan(decimal.Zero) {
			values = append(values, tx.Debit.Neg())
		}

		if tx.Credit.GreaterThan(decimal.Zero) {
			values = append(values, tx.Credit)
		}
	}

	return values
}

// GenerateCalculationExpression renders the running calculation as a
// human-readable arithmetic string, e.g. "-1000 + 1100 - 11000 + 1000 = -9900".
// Each debit leg is a negative term and each credit leg a positive one. Only
// the first ten terms are rendered; the rest collapse into a count. Amounts
// are rounded to whole units for display.
func (uc *CalculationUseCase) GenerateCalculationExpression(transactions []TransactionData) string {
	values := calculationValues(transactions)
	if len(values) == 0 {
		return "0 = 0"
	}

	total := decimal.Zero

	var sb strings.Builder

	for i, value := range values {
		total = total.Add(value)

		if i >= expressionTermLimit {
			continue
		}

		if i == 0 {
			sb.WriteString(value.StringFixed(0))

			continue
		}

		if value.IsNegative() {
			sb.WriteString(" - ")
			sb.WriteString(value.Abs().StringFixed(0))
		} else {
			sb.WriteString(" + ")
			sb.WriteString(value.StringFixed(0))
		}
	}

	if len(values) > expressionTermLimit {
		fmt.Fprintf(&sb, " + ... (%d more)", len(values)-expressionTermLimit)
	}

	sb.WriteString(" = ")
	sb.WriteString(total.StringFixed(0))

	return sb.String()
}

// ValidateTransactionSigns checks the raw data for impossible values:
// negative amounts and lines carrying both a debit and a credit.
func (uc *CalculationUseCase) ValidateTransactionSigns(transactions []TransactionData) *domain.ValidationResult {
	result := domain.NewValidationResult()

	for i, tx := range transactions {
		field := fmt.Sprintf("Transactions[%d]", i)

		if tx.Debit.IsNegative() || tx.Credit.IsNegative() {
			result.AddError(field, "Amounts cannot be negative", CodeNoAmount)
		}

		if tx.Debit.GreaterThan(decimal.Zero) && tx.Credit.GreaterThan(decimal.Zero) {
			result.AddError(field, "Transaction cannot carry both a debit and a credit", CodeBothDebitCredit)
		}
	}

	return result
}

// CreateCalculationBreakdown walks the transactions leg by leg, recording
// each leg's contribution and the running total after it, for audit trails.
func (uc *CalculationUseCase) CreateCalculationBreakdown(transactions []TransactionData) CalculationBreakdown {
	steps := make([]CalculationStep, 0, len(transactions))
	runningTotal := decimal.Zero
	totalDebits := decimal.Zero
	totalCredits := decimal.Zero

	for _, tx := range transactions {
		if tx.Debit.GreaterThan(decimal.Zero) {
			value := tx.Debit.Neg()
			runningTotal = runningTotal.Add(value)
			totalDebits = totalDebits.Add(tx.Debit)

			steps = append(steps, CalculationStep{
				AccountID:    tx.AccountID,
				Type:         "Debit",
				Amount:       value,
				RunningTotal: runningTotal,
			})
		}

		if tx.Credit.GreaterThan(decimal.Zero) {
			runningTotal = runningTotal.Add(tx.Credit)
			totalCredits = totalCredits.Add(tx.Credit)

			steps = append(steps, CalculationStep{
				AccountID:    tx.AccountID,
				Type:         "Credit",
				Amount:       tx.Credit,
				RunningTotal: runningTotal,
			})
		}
	}

	return CalculationBreakdown{
		Steps: steps,
		Summary: CalculationSummary{
			TotalDebits:      totalDebits,
			TotalCredits:     totalCredits,
			FinalBalance:     runningTotal,
			TransactionCount: len(steps),
		},
	}
}
