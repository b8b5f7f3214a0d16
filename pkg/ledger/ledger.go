package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eximouse/cicilan/pkg/finance"
	"github.com/eximouse/cicilan/pkg/models"
	"github.com/eximouse/cicilan/pkg/store"
)

// ErrInvalidInput is returned when a create/update request fails validation.
var ErrInvalidInput = errors.New("invalid input")

// dueSoonWindowDays bounds the reminder feed: transactions whose next due
// date falls within this many days (either side) of today, plus anything
// overdue.
const dueSoonWindowDays = 30

// Ledger owns the transaction collection and orchestrates the finance engine
// against it. All date-sensitive computations read "today" from the injected
// clock, never from the system clock directly.
type Ledger struct {
	storage store.Storage
	logger  *logrus.Logger
	now     func() time.Time
}

// NewLedger creates a Ledger over the given Storage implementation.
func NewLedger(s store.Storage, logger *logrus.Logger) *Ledger {
	return &Ledger{
		storage: s,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests use this to pin "today".
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Today returns the current calendar date from the injected clock.
func (l *Ledger) Today() models.Date {
	return models.DateOf(l.now())
}

// TransactionInput carries the user-editable fields of a transaction.
type TransactionInput struct {
	Type             models.TransactionType
	Counterparty     string
	Principal        decimal.Decimal
	InterestRate     decimal.Decimal
	InstallmentCount int
	StartDate        models.Date
}

func (in TransactionInput) validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: type must be receivable or payable", ErrInvalidInput)
	}
	if in.Counterparty == "" {
		return fmt.Errorf("%w: counterparty is required", ErrInvalidInput)
	}
	if in.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	}
	if in.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate cannot be negative", ErrInvalidInput)
	}
	if in.InstallmentCount <= 0 {
		return fmt.Errorf("%w: installment count must be positive", ErrInvalidInput)
	}
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidInput)
	}
	return nil
}

// CreateTransaction validates the input and stores a new active transaction.
func (l *Ledger) CreateTransaction(in TransactionInput) (*models.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:               models.NewTransactionID(),
		Type:             in.Type,
		Counterparty:     in.Counterparty,
		Principal:        in.Principal,
		InterestRate:     in.InterestRate,
		InstallmentCount: in.InstallmentCount,
		StartDate:        in.StartDate,
		Status:           models.StatusActive,
		PaymentHistory:   []models.PaymentRecord{},
	}

	if err := l.storage.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"id":           tx.ID,
		"type":         tx.Type,
		"counterparty": tx.Counterparty,
	}).Info("Transaction created")

	return tx, nil
}

// GetTransaction retrieves a transaction by id.
func (l *Ledger) GetTransaction(id string) (*models.Transaction, error) {
	return l.storage.GetTransaction(id)
}

// ListTransactions returns the collection, optionally filtered by status and
// type (empty values match everything). Active transactions are ordered by
// next due date, settled ones by completion date descending.
func (l *Ledger) ListTransactions(status models.TransactionStatus, txType models.TransactionType) ([]*models.Transaction, error) {
	all, err := l.storage.GetAllTransactions()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Transaction, 0, len(all))
	for _, tx := range all {
		if status != "" && tx.Status != status {
			continue
		}
		if txType != "" && tx.Type != txType {
			continue
		}
		filtered = append(filtered, tx)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.IsActive() && b.IsActive() {
			dueA, okA := finance.NextDueDate(a)
			dueB, okB := finance.NextDueDate(b)
			if okA && okB {
				return dueA.Before(dueB.Time)
			}
			return okA
		}
		if !a.IsActive() && !b.IsActive() {
			if a.DateCompleted != nil && b.DateCompleted != nil {
				return b.DateCompleted.Before(a.DateCompleted.Time)
			}
			return a.DateCompleted != nil
		}
		return a.IsActive()
	})

	return filtered, nil
}

// UpdateTransaction replaces the descriptive terms of an active transaction.
// The id, status and payment history are preserved; the new tenor cannot fall
// below what has already been paid.
func (l *Ledger) UpdateTransaction(id string, in TransactionInput) (*models.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := l.storage.GetTransaction(id)
	if err != nil {
		return nil, err
	}
	if !tx.IsActive() {
		return nil, finance.ErrNotActive
	}
	if in.InstallmentCount < tx.InstallmentsPaid() {
		return nil, fmt.Errorf("%w: installment count cannot be below the %d already paid", ErrInvalidInput, tx.InstallmentsPaid())
	}

	tx.Type = in.Type
	tx.Counterparty = in.Counterparty
	tx.Principal = in.Principal
	tx.InterestRate = in.InterestRate
	tx.InstallmentCount = in.InstallmentCount
	tx.StartDate = in.StartDate

	if err := l.storage.UpdateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	l.logger.WithField("id", tx.ID).Info("Transaction updated")
	return tx, nil
}

// DeleteTransaction removes a transaction permanently.
func (l *Ledger) DeleteTransaction(id string) error {
	if err := l.storage.DeleteTransaction(id); err != nil {
		return err
	}
	l.logger.WithField("id", id).Info("Transaction deleted")
	return nil
}

// DeleteAll wipes the whole collection.
func (l *Ledger) DeleteAll() error {
	if err := l.storage.ReplaceAll(nil); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	l.logger.Warn("All transactions deleted")
	return nil
}

// RecordPayment allocates a payment against a transaction as of today and
// persists the result. The payment date is the user-supplied record date.
func (l *Ledger) RecordPayment(id string, amount decimal.Decimal, date models.Date) (*models.PaymentRecord, error) {
	tx, err := l.storage.GetTransaction(id)
	if err != nil {
		return nil, err
	}

	record, err := finance.AllocatePayment(tx, amount, date, l.Today())
	if err != nil {
		return nil, err
	}

	if err := l.storage.UpdateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}

	entry := l.logger.WithFields(logrus.Fields{
		"id":                tx.ID,
		"fine_paid":         record.Fine.String(),
		"installments_paid": record.InstallmentsPaid,
		"change":            record.RemainingBalance.String(),
	})
	if tx.Status == models.StatusSettled {
		entry.Info("Payment recorded, transaction settled")
	} else {
		entry.Info("Payment recorded")
	}

	return &record, nil
}

// TransactionDetail is the full view of one transaction: its static schedule
// plus the arrears state as of today.
type TransactionDetail struct {
	Transaction *models.Transaction `json:"transaction"`
	Totals      finance.Totals      `json:"totals"`
	Arrears     finance.Arrears     `json:"arrears"`
	NextDueDate *models.Date        `json:"next_due_date,omitempty"`
	PaidCount   int                 `json:"paid_count"`
	TotalDue    decimal.Decimal     `json:"total_due"` // overdue balance + fine
}

// Detail assembles the detail view for a transaction.
func (l *Ledger) Detail(id string) (*TransactionDetail, error) {
	tx, err := l.storage.GetTransaction(id)
	if err != nil {
		return nil, err
	}

	arrears := finance.AccrueArrears(tx, l.Today())
	detail := &TransactionDetail{
		Transaction: tx,
		Totals:      finance.TotalsFor(tx),
		Arrears:     arrears,
		PaidCount:   tx.InstallmentsPaid(),
		TotalDue:    arrears.OverdueBalance.Add(arrears.TotalFine),
	}
	if due, ok := finance.NextDueDate(tx); ok {
		detail.NextDueDate = &due
	}
	return detail, nil
}

// FinancialSummary aggregates the ledger by direction. Initial exposure
// counts every transaction's total payable; outstanding counts only active
// transactions, fines included. All amounts are rounded.
type FinancialSummary struct {
	ReceivableInitial     decimal.Decimal `json:"receivable_initial"`
	ReceivableOutstanding decimal.Decimal `json:"receivable_outstanding"`
	PayableInitial        decimal.Decimal `json:"payable_initial"`
	PayableOutstanding    decimal.Decimal `json:"payable_outstanding"`
	NetPosition           decimal.Decimal `json:"net_position"` // receivable outstanding - payable outstanding
}

// Summary computes the ledger-wide financial totals as of today.
func (l *Ledger) Summary() (*FinancialSummary, error) {
	all, err := l.storage.GetAllTransactions()
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{
		ReceivableInitial:     decimal.Zero,
		ReceivableOutstanding: decimal.Zero,
		PayableInitial:        decimal.Zero,
		PayableOutstanding:    decimal.Zero,
	}
	today := l.Today()

	for _, tx := range all {
		totals := finance.TotalsFor(tx)
		if tx.Type == models.TypeReceivable {
			summary.ReceivableInitial = summary.ReceivableInitial.Add(totals.TotalAmount)
		} else {
			summary.PayableInitial = summary.PayableInitial.Add(totals.TotalAmount)
		}

		if !tx.IsActive() {
			continue
		}
		arrears := finance.AccrueArrears(tx, today)
		outstanding := arrears.RemainingTotal.Add(arrears.TotalFine)
		if tx.Type == models.TypeReceivable {
			summary.ReceivableOutstanding = summary.ReceivableOutstanding.Add(outstanding)
		} else {
			summary.PayableOutstanding = summary.PayableOutstanding.Add(outstanding)
		}
	}

	summary.ReceivableInitial = summary.ReceivableInitial.Round(0)
	summary.PayableInitial = summary.PayableInitial.Round(0)
	summary.NetPosition = summary.ReceivableOutstanding.Sub(summary.PayableOutstanding)
	return summary, nil
}

// DueSoonEntry annotates an active transaction for the reminder feed.
type DueSoonEntry struct {
	Transaction  *models.Transaction `json:"transaction"`
	NextDueDate  models.Date         `json:"next_due_date"`
	DaysUntilDue int                 `json:"days_until_due"` // negative when past due
	Overdue      bool                `json:"overdue"`
	TotalFine    decimal.Decimal     `json:"total_fine"`
	TotalDue     decimal.Decimal     `json:"total_due"`
}

// DueSoon returns active transactions whose next installment falls within the
// reminder window, or that are already overdue. Overdue entries sort first,
// then by proximity of the due date.
func (l *Ledger) DueSoon() ([]DueSoonEntry, error) {
	active, err := l.storage.GetActiveTransactions()
	if err != nil {
		return nil, err
	}

	today := l.Today()
	var entries []DueSoonEntry
	for _, tx := range active {
		due, ok := finance.NextDueDate(tx)
		if !ok {
			continue
		}
		arrears := finance.AccrueArrears(tx, today)
		days := due.DaysSince(today)
		overdue := arrears.OverdueCount > 0
		if !overdue && (days < -dueSoonWindowDays || days > dueSoonWindowDays) {
			continue
		}
		entries = append(entries, DueSoonEntry{
			Transaction:  tx,
			NextDueDate:  due,
			DaysUntilDue: days,
			Overdue:      overdue,
			TotalFine:    arrears.TotalFine,
			TotalDue:     arrears.OverdueBalance.Add(arrears.TotalFine),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Overdue != entries[j].Overdue {
			return entries[i].Overdue
		}
		return entries[i].DaysUntilDue < entries[j].DaysUntilDue
	})

	return entries, nil
}

// Estimate is the live preview for a candidate loan: the static schedule plus
// the final due date. Inputs that are not yet computable yield zero totals.
type Estimate struct {
	Totals       finance.Totals `json:"totals"`
	FinalDueDate *models.Date   `json:"final_due_date,omitempty"`
}

// EstimateLoan previews totals for a candidate transaction without storing
// anything.
func (l *Ledger) EstimateLoan(principal, rate decimal.Decimal, count int, start models.Date) Estimate {
	est := Estimate{Totals: finance.CalculateTotals(principal, rate, count)}
	if !start.IsZero() && count > 0 {
		if due, ok := finance.FinalDueDate(start, count); ok {
			est.FinalDueDate = &due
		}
	}
	return est
}

// Import replaces the whole collection with the given records after shape
// validation. There is no merge; existing data is discarded.
func (l *Ledger) Import(txs []*models.Transaction) error {
	for i, tx := range txs {
		if err := validateImported(tx); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err := l.storage.ReplaceAll(txs); err != nil {
		return fmt.Errorf("failed to import transactions: %w", err)
	}
	l.logger.WithField("count", len(txs)).Info("Transaction collection imported")
	return nil
}

// validateImported checks the shape of an externally supplied record. Records
// keep their ids so re-imports of an export are stable; missing ids get fresh
// ones.
func validateImported(tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: empty record", ErrInvalidInput)
	}
	if tx.ID == "" {
		tx.ID = models.NewTransactionID()
	}
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, tx.Type)
	}
	if tx.Status != models.StatusActive && tx.Status != models.StatusSettled {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, tx.Status)
	}
	if tx.Counterparty == "" {
		return fmt.Errorf("%w: counterparty is required", ErrInvalidInput)
	}
	if tx.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	}
	if tx.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate cannot be negative", ErrInvalidInput)
	}
	if tx.InstallmentCount <= 0 {
		return fmt.Errorf("%w: installment count must be positive", ErrInvalidInput)
	}
	if tx.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidInput)
	}
	if tx.InstallmentsPaid() > tx.InstallmentCount {
		return fmt.Errorf("%w: payment history retires more installments than the tenor", ErrInvalidInput)
	}
	return nil
}
