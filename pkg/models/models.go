package models

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeReceivable TransactionType = "receivable" // piutang: money owed to the ledger owner
	TypePayable    TransactionType = "payable"    // utang: money the ledger owner owes
)

func (t TransactionType) Valid() bool {
	return t == TypeReceivable || t == TypePayable
}

type TransactionStatus string

const (
	StatusActive  TransactionStatus = "active"
	StatusSettled TransactionStatus = "settled"
)

// Transaction is a single ledger entry: an ad-hoc loan or debt repaid in fixed
// monthly installments with flat interest. It is mutated only through payment
// allocation or explicit edit/delete; settlement is one-way.
type Transaction struct {
	ID               string            `json:"id"`
	Type             TransactionType   `json:"type"`
	Counterparty     string            `json:"counterparty"`
	Principal        decimal.Decimal   `json:"principal"`
	InterestRate     decimal.Decimal   `json:"interest_rate"` // flat percent per installment period
	InstallmentCount int               `json:"installment_count"`
	StartDate        Date              `json:"start_date"`
	Status           TransactionStatus `json:"status"`
	DateCompleted    *Date             `json:"date_completed,omitempty"`
	PaymentHistory   []PaymentRecord   `json:"payment_history"`
}

// NewTransactionID returns a monotonic, timestamp-derived identifier.
func NewTransactionID() string {
	return xid.New().String()
}

// InstallmentsPaid sums the installment periods retired across the payment
// history. Records that only paid fines contribute zero.
func (t *Transaction) InstallmentsPaid() int {
	total := 0
	for _, p := range t.PaymentHistory {
		total += p.InstallmentsPaid
	}
	return total
}

// RemainingInstallments returns how many installment periods are still owed.
func (t *Transaction) RemainingInstallments() int {
	remaining := t.InstallmentCount - t.InstallmentsPaid()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *Transaction) IsActive() bool {
	return t.Status == StatusActive
}

// PaymentRecord is an immutable entry in a transaction's payment history.
// Amount excludes the fine portion; RemainingBalance is change returned to the
// payer, never carried forward as credit.
type PaymentRecord struct {
	ID               uuid.UUID       `json:"id"`
	Date             Date            `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	Fine             decimal.Decimal `json:"fine"`
	InstallmentsPaid int             `json:"installments_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}
