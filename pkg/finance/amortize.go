// Package finance implements the calculation engine for installment loans:
// flat-rate amortization, due-date projection, compounding late-payment fines,
// and payment allocation. All functions are pure except AllocatePayment, which
// mutates the transaction it is given; none of them touch the clock or do I/O.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/eximouse/cicilan/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// Totals is the static repayment schedule of a transaction.
type Totals struct {
	TotalInterest  decimal.Decimal `json:"total_interest"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PerInstallment decimal.Decimal `json:"per_installment"`
}

// CalculateTotals derives total interest, total payable and the per-installment
// amount under the flat-rate model: interest is charged on the original
// principal once per period for the full tenor and never reduces as the
// balance is paid down. Historical records depend on this exact model.
//
// Inputs that are not yet computable (non-positive principal or tenor,
// negative rate) yield a zeroed result rather than an error, so callers can
// run it against half-filled forms.
func CalculateTotals(principal, rate decimal.Decimal, count int) Totals {
	if principal.LessThanOrEqual(decimal.Zero) || rate.IsNegative() || count <= 0 {
		return Totals{
			TotalInterest:  decimal.Zero,
			TotalAmount:    decimal.Zero,
			PerInstallment: decimal.Zero,
		}
	}

	periods := decimal.NewFromInt(int64(count))
	totalInterest := principal.Mul(rate).Div(hundred).Mul(periods)
	totalAmount := principal.Add(totalInterest)

	return Totals{
		TotalInterest:  totalInterest,
		TotalAmount:    totalAmount,
		PerInstallment: totalAmount.Div(periods),
	}
}

// TotalsFor is shorthand for the schedule of an existing transaction.
func TotalsFor(tx *models.Transaction) Totals {
	return CalculateTotals(tx.Principal, tx.InterestRate, tx.InstallmentCount)
}
