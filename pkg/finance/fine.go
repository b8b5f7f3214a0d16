package finance

import (
	"github.com/shopspring/decimal"

	"github.com/eximouse/cicilan/pkg/models"
)

// FineRate is the fixed penalty rate applied per late period: 5% of the
// overdue balance, compounding.
var FineRate = decimal.New(5, -2)

// fineDaysPerPeriod is the length of one late period. Lateness is bucketed
// into fixed 30-day periods counted from the first overdue due date, not true
// calendar months; historical fines were computed this way.
const fineDaysPerPeriod = 30

// FineDetail is one late period's penalty. Fine and Basis are rounded for
// reporting; the compounding chain itself runs at full precision.
type FineDetail struct {
	Period int             `json:"period"`
	Fine   decimal.Decimal `json:"fine"`
	Basis  decimal.Decimal `json:"basis"` // overdue balance the fine was computed on
}

// Arrears is the dynamic state of a transaction as of a reference date. All
// amounts are rounded to whole currency units.
type Arrears struct {
	OverdueBalance decimal.Decimal `json:"overdue_balance"`
	TotalFine      decimal.Decimal `json:"total_fine"`
	OverdueCount   int             `json:"overdue_count"`
	RemainingTotal decimal.Decimal `json:"remaining_total"`
	FineDetails    []FineDetail    `json:"fine_details,omitempty"`
}

// AccrueArrears determines which installments are overdue as of asOf and
// compounds the periodic penalty against the overdue balance. Settled
// transactions yield an all-zero result.
//
// Installments are examined strictly in order starting after the last paid
// one; the walk stops at the first installment whose due date has not passed.
// Each full 30-day period since the first overdue due date adds a 5% fine to
// the running balance, so later periods compound on earlier fines.
// Intermediate compounding keeps full precision; only the returned quantities
// are rounded.
func AccrueArrears(tx *models.Transaction, asOf models.Date) Arrears {
	if !tx.IsActive() {
		return Arrears{
			OverdueBalance: decimal.Zero,
			TotalFine:      decimal.Zero,
			RemainingTotal: decimal.Zero,
		}
	}

	totals := TotalsFor(tx)
	paid := tx.InstallmentsPaid()

	overdueBalance := decimal.Zero
	overdueCount := 0
	var firstOverdue models.Date

	for i := paid + 1; i <= tx.InstallmentCount; i++ {
		due, ok := InstallmentDueDate(tx.StartDate, i)
		if !ok || !asOf.After(due.Time) {
			break
		}
		overdueBalance = overdueBalance.Add(totals.PerInstallment)
		overdueCount++
		if overdueCount == 1 {
			firstOverdue = due
		}
	}

	totalFine := decimal.Zero
	var details []FineDetail
	if overdueCount > 0 {
		periodsLate := asOf.DaysSince(firstOverdue) / fineDaysPerPeriod
		balance := overdueBalance
		for p := 1; p <= periodsLate; p++ {
			fine := balance.Mul(FineRate)
			details = append(details, FineDetail{
				Period: p,
				Fine:   fine.Round(0),
				Basis:  balance.Round(0),
			})
			balance = balance.Add(fine)
			totalFine = totalFine.Add(fine)
		}
	}

	paidAmount := totals.PerInstallment.Mul(decimal.NewFromInt(int64(paid)))

	return Arrears{
		OverdueBalance: overdueBalance.Round(0),
		TotalFine:      totalFine.Round(0),
		OverdueCount:   overdueCount,
		RemainingTotal: totals.TotalAmount.Sub(paidAmount).Round(0),
		FineDetails:    details,
	}
}
