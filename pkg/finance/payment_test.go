package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eximouse/cicilan/pkg/models"
)

func TestAllocatePayment_FineThenInstallmentThenChange(t *testing.T) {
	// One installment of 1,000,000 due 2024-02-15, one late period as of
	// 2024-03-20 => fine 50,000.
	tx := newTestTx(1_000_000, 0, 1, models.NewDate(2024, time.January, 15))
	asOf := models.NewDate(2024, time.March, 20)
	payDate := models.NewDate(2024, time.March, 20)

	record, err := AllocatePayment(tx, decimal.NewFromInt(1_200_000), payDate, asOf)
	require.NoError(t, err)

	assert.True(t, record.Fine.Equal(decimal.NewFromInt(50_000)), "fine paid: %s", record.Fine)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(1_150_000)), "amount: %s", record.Amount)
	assert.Equal(t, 1, record.InstallmentsPaid)
	assert.True(t, record.RemainingBalance.Equal(decimal.NewFromInt(150_000)), "change: %s", record.RemainingBalance)

	// The single installment is retired, so the transaction settles.
	assert.Equal(t, models.StatusSettled, tx.Status)
	require.NotNil(t, tx.DateCompleted)
	assert.Equal(t, payDate.String(), tx.DateCompleted.String())
}

func TestAllocatePayment_ClearsMultipleOverdue(t *testing.T) {
	// Installments due Feb 15 and Mar 15 are overdue as of Mar 16; the first
	// is exactly one 30-day period late, so 5% of the 2,000,000 arrears is
	// due as fine before any installment is retired.
	tx := newTestTx(3_000_000, 0, 3, models.NewDate(2024, time.January, 15))
	asOf := models.NewDate(2024, time.March, 16)

	record, err := AllocatePayment(tx, decimal.NewFromInt(2_100_000), asOf, asOf)
	require.NoError(t, err)

	assert.True(t, record.Fine.Equal(decimal.NewFromInt(100_000)), "fine: %s", record.Fine)
	assert.Equal(t, 2, record.InstallmentsPaid)
	assert.True(t, record.RemainingBalance.IsZero())
	assert.Equal(t, models.StatusActive, tx.Status)
	assert.Equal(t, 1, tx.RemainingInstallments())
}

func TestAllocatePayment_NoPrepayBeyondOneWhenCurrent(t *testing.T) {
	// Nothing overdue: even a payment covering three installments retires
	// only the next one. The excess is recorded as change.
	tx := newTestTx(3_000_000, 0, 3, models.NewDate(2024, time.January, 15))
	asOf := models.NewDate(2024, time.February, 1)

	record, err := AllocatePayment(tx, decimal.NewFromInt(3_000_000), asOf, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, record.InstallmentsPaid)
	assert.True(t, record.RemainingBalance.Equal(decimal.NewFromInt(2_000_000)))
	assert.Equal(t, models.StatusActive, tx.Status)
}

func TestAllocatePayment_CoveredClampedToRemaining(t *testing.T) {
	// Two of three installments already retired; a large payment while the
	// last one is overdue can only cover that last installment.
	tx := newTestTx(3_000_000, 0, 3, models.NewDate(2024, time.January, 15))
	tx.PaymentHistory = []models.PaymentRecord{{InstallmentsPaid: 2}}
	asOf := models.NewDate(2024, time.April, 20)

	record, err := AllocatePayment(tx, decimal.NewFromInt(5_000_000), asOf, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, record.InstallmentsPaid)
	assert.Equal(t, models.StatusSettled, tx.Status)
}

func TestAllocatePayment_FineOnlyPayment(t *testing.T) {
	// 60 days late: fine 102,500 on one overdue installment. A payment that
	// cannot reach a whole installment still retires fine first.
	tx := newTestTx(1_000_000, 0, 1, models.NewDate(2024, time.January, 15))
	asOf := models.NewDate(2024, time.April, 15)

	record, err := AllocatePayment(tx, decimal.NewFromInt(102_500), asOf, asOf)
	require.NoError(t, err)

	assert.True(t, record.Fine.Equal(decimal.NewFromInt(102_500)))
	assert.True(t, record.Amount.IsZero())
	assert.Equal(t, 0, record.InstallmentsPaid)
	assert.Equal(t, models.StatusActive, tx.Status)
}

func TestAllocatePayment_TooSmallRejected(t *testing.T) {
	// No fine due and the amount is below one installment: nothing can be
	// applied and the transaction must stay untouched.
	tx := newTestTx(1_000_000, 0, 1, models.NewDate(2024, time.January, 15))
	asOf := models.NewDate(2024, time.February, 1)

	_, err := AllocatePayment(tx, decimal.NewFromInt(999_999), asOf, asOf)

	assert.ErrorIs(t, err, ErrNothingApplied)
	assert.Empty(t, tx.PaymentHistory)
	assert.Equal(t, models.StatusActive, tx.Status)
}

func TestAllocatePayment_InvalidInputs(t *testing.T) {
	tx := newTestTx(1_000_000, 0, 1, models.NewDate(2024, time.January, 15))
	asOf := models.NewDate(2024, time.February, 1)

	_, err := AllocatePayment(tx, decimal.Zero, asOf, asOf)
	assert.ErrorIs(t, err, ErrInvalidPayment)

	_, err = AllocatePayment(tx, decimal.NewFromInt(-500), asOf, asOf)
	assert.ErrorIs(t, err, ErrInvalidPayment)

	_, err = AllocatePayment(tx, decimal.NewFromInt(1_000_000), models.Date{}, asOf)
	assert.ErrorIs(t, err, ErrInvalidPayment)

	assert.Empty(t, tx.PaymentHistory)
}

func TestAllocatePayment_SettledRejected(t *testing.T) {
	tx := newTestTx(1_000_000, 0, 1, models.NewDate(2024, time.January, 15))
	tx.Status = models.StatusSettled
	asOf := models.NewDate(2024, time.February, 1)

	_, err := AllocatePayment(tx, decimal.NewFromInt(1_000_000), asOf, asOf)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestAllocatePayment_SettlementBoundary(t *testing.T) {
	// Settlement flips exactly when cumulative installments reach the tenor,
	// never before.
	tx := newTestTx(3_000_000, 0, 3, models.NewDate(2024, time.January, 15))
	per := decimal.NewFromInt(1_000_000)

	for i := 1; i <= 3; i++ {
		asOf := models.NewDate(2024, time.January, 20+i) // before anything is due
		_, err := AllocatePayment(tx, per, asOf, asOf)
		require.NoError(t, err)

		if i < 3 {
			assert.Equal(t, models.StatusActive, tx.Status, "after payment %d", i)
			assert.Nil(t, tx.DateCompleted)
		} else {
			assert.Equal(t, models.StatusSettled, tx.Status)
			require.NotNil(t, tx.DateCompleted)
		}
	}
	assert.Equal(t, 3, tx.InstallmentsPaid())
}
