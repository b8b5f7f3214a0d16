package finance

import (
	"time"

	"github.com/eximouse/cicilan/pkg/models"
)

// InstallmentDueDate projects the due date of installment index (1-based):
// the start date shifted forward by index calendar months. When the start day
// does not exist in the target month (e.g. Jan 31 + 1 month), the date is
// clamped to the last day of that month instead of overflowing into the next.
// ok is false when index < 1.
func InstallmentDueDate(start models.Date, index int) (due models.Date, ok bool) {
	if index < 1 {
		return models.Date{}, false
	}

	monthOffset := int(start.Month()) - 1 + index
	targetYear := start.Year() + monthOffset/12
	targetMonth := time.Month(monthOffset%12 + 1)

	d := time.Date(targetYear, targetMonth, start.Day(), 0, 0, 0, 0, time.UTC)
	if d.Month() != targetMonth {
		// Day overflowed; day zero of the following month is the last day of
		// the target month.
		d = time.Date(targetYear, targetMonth+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return models.DateOf(d), true
}

// NextDueDate returns the due date of the next unpaid installment, or
// ok=false when every installment has been retired.
func NextDueDate(tx *models.Transaction) (due models.Date, ok bool) {
	next := tx.InstallmentsPaid() + 1
	if next > tx.InstallmentCount {
		return models.Date{}, false
	}
	return InstallmentDueDate(tx.StartDate, next)
}

// FinalDueDate returns the due date of the last installment.
func FinalDueDate(start models.Date, count int) (models.Date, bool) {
	return InstallmentDueDate(start, count)
}
