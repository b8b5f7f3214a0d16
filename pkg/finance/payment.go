package finance

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eximouse/cicilan/pkg/models"
)

var (
	// ErrNotActive is returned when a payment targets a settled transaction.
	ErrNotActive = errors.New("transaction is not active")

	// ErrInvalidPayment is returned when the amount or date is missing.
	ErrInvalidPayment = errors.New("payment amount must be positive and date must be set")

	// ErrNothingApplied is returned when the payment is too small to cover any
	// fine or installment. The transaction is left unchanged.
	ErrNothingApplied = errors.New("payment too small to cover any fine or installment")
)

// AllocatePayment applies a payment against tx and appends the resulting
// record to its payment history. Money goes to fines first, then to overdue
// installments; only when there are no arrears may it retire the next (and at
// most one) upcoming installment. Whatever is left after whole installments is
// recorded as change, not carried forward.
//
// asOf is the reference date for the arrears computation (normally "today"
// from the caller's clock); paymentDate is the user-supplied record date and
// is deliberately not validated against asOf. When the cumulative retired
// installments reach the tenor the transaction settles, dated paymentDate.
func AllocatePayment(tx *models.Transaction, amount decimal.Decimal, paymentDate, asOf models.Date) (models.PaymentRecord, error) {
	if !tx.IsActive() {
		return models.PaymentRecord{}, ErrNotActive
	}
	if amount.LessThanOrEqual(decimal.Zero) || paymentDate.IsZero() {
		return models.PaymentRecord{}, ErrInvalidPayment
	}

	totals := TotalsFor(tx)
	arrears := AccrueArrears(tx, asOf)

	remaining := amount

	finePaid := decimal.Zero
	if arrears.TotalFine.IsPositive() {
		finePaid = decimal.Min(remaining, arrears.TotalFine)
		remaining = remaining.Sub(finePaid)
	}

	covered := 0
	if remaining.IsPositive() && totals.PerInstallment.IsPositive() {
		maxCoverable := int(remaining.Div(totals.PerInstallment).IntPart())
		if arrears.OverdueCount > 0 {
			// Arrears must be cleared before advancing; future installments
			// cannot be prepaid while any installment is overdue.
			covered = min(maxCoverable, arrears.OverdueCount)
		} else {
			covered = min(maxCoverable, 1)
		}
		covered = min(covered, tx.RemainingInstallments())
		remaining = remaining.Sub(totals.PerInstallment.Mul(decimal.NewFromInt(int64(covered))))
	}

	if covered == 0 && !finePaid.IsPositive() {
		return models.PaymentRecord{}, ErrNothingApplied
	}

	record := models.PaymentRecord{
		ID:               uuid.New(),
		Date:             paymentDate,
		Amount:           amount.Sub(finePaid).Round(0),
		Fine:             finePaid.Round(0),
		InstallmentsPaid: covered,
		RemainingBalance: remaining.Round(0),
	}
	tx.PaymentHistory = append(tx.PaymentHistory, record)

	if tx.InstallmentsPaid() >= tx.InstallmentCount {
		tx.Status = models.StatusSettled
		completed := paymentDate
		tx.DateCompleted = &completed
	}

	return record, nil
}
