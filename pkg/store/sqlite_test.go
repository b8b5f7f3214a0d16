package store

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eximouse/cicilan/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testTransaction() *models.Transaction {
	return &models.Transaction{
		ID:               models.NewTransactionID(),
		Type:             models.TypeReceivable,
		Counterparty:     "Budi Santoso",
		Principal:        decimal.NewFromInt(2_000_000),
		InterestRate:     decimal.NewFromFloat(2.5),
		InstallmentCount: 4,
		StartDate:        models.NewDate(2024, time.March, 31),
		Status:           models.StatusActive,
	}
}

func TestSQLiteStore_CreateAndGetTransaction(t *testing.T) {
	dbFile := "test_store_create.db"
	os.Remove(dbFile)
	defer os.Remove(dbFile)

	s, err := NewSQLiteStore(dbFile, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	tx := testTransaction()
	if err := s.CreateTransaction(tx); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	fetched, err := s.GetTransaction(tx.ID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}

	if fetched.Counterparty != tx.Counterparty {
		t.Errorf("Expected counterparty %s, got %s", tx.Counterparty, fetched.Counterparty)
	}
	if !fetched.Principal.Equal(tx.Principal) {
		t.Errorf("Expected principal %s, got %s", tx.Principal, fetched.Principal)
	}
	if !fetched.InterestRate.Equal(tx.InterestRate) {
		t.Errorf("Expected rate %s, got %s", tx.InterestRate, fetched.InterestRate)
	}
	if fetched.StartDate.String() != "2024-03-31" {
		t.Errorf("Expected start date 2024-03-31, got %s", fetched.StartDate)
	}
	if len(fetched.PaymentHistory) != 0 {
		t.Errorf("Expected empty payment history, got %d records", len(fetched.PaymentHistory))
	}
}

func TestSQLiteStore_GetTransaction_NotFound(t *testing.T) {
	dbFile := "test_store_notfound.db"
	os.Remove(dbFile)
	defer os.Remove(dbFile)

	s, err := NewSQLiteStore(dbFile, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	_, err = s.GetTransaction("does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_UpdatePersistsPaymentHistory(t *testing.T) {
	dbFile := "test_store_history.db"
	os.Remove(dbFile)
	defer os.Remove(dbFile)

	s, err := NewSQLiteStore(dbFile, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	tx := testTransaction()
	if err := s.CreateTransaction(tx); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	paid := models.NewDate(2024, time.April, 30)
	tx.PaymentHistory = append(tx.PaymentHistory, models.PaymentRecord{
		ID:               uuid.New(),
		Date:             paid,
		Amount:           decimal.NewFromInt(550_000),
		Fine:             decimal.NewFromInt(25_000),
		InstallmentsPaid: 1,
		RemainingBalance: decimal.Zero,
	})
	tx.Status = models.StatusSettled
	tx.DateCompleted = &paid

	if err := s.UpdateTransaction(tx); err != nil {
		t.Fatalf("Failed to update transaction: %v", err)
	}

	fetched, err := s.GetTransaction(tx.ID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}

	if len(fetched.PaymentHistory) != 1 {
		t.Fatalf("Expected 1 payment record, got %d", len(fetched.PaymentHistory))
	}
	rec := fetched.PaymentHistory[0]
	if !rec.Fine.Equal(decimal.NewFromInt(25_000)) {
		t.Errorf("Expected fine 25000, got %s", rec.Fine)
	}
	if rec.Date.String() != "2024-04-30" {
		t.Errorf("Expected payment date 2024-04-30, got %s", rec.Date)
	}
	if fetched.Status != models.StatusSettled {
		t.Errorf("Expected status settled, got %s", fetched.Status)
	}
	if fetched.DateCompleted == nil || fetched.DateCompleted.String() != "2024-04-30" {
		t.Errorf("Expected completion date 2024-04-30, got %v", fetched.DateCompleted)
	}
}

func TestSQLiteStore_ActiveFilterAndDelete(t *testing.T) {
	dbFile := "test_store_filter.db"
	os.Remove(dbFile)
	defer os.Remove(dbFile)

	s, err := NewSQLiteStore(dbFile, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	active := testTransaction()
	settled := testTransaction()
	settled.Status = models.StatusSettled

	if err := s.CreateTransaction(active); err != nil {
		t.Fatalf("Failed to create active transaction: %v", err)
	}
	if err := s.CreateTransaction(settled); err != nil {
		t.Fatalf("Failed to create settled transaction: %v", err)
	}

	activeTxs, err := s.GetActiveTransactions()
	if err != nil {
		t.Fatalf("Failed to get active transactions: %v", err)
	}
	if len(activeTxs) != 1 || activeTxs[0].ID != active.ID {
		t.Errorf("Expected only the active transaction, got %d", len(activeTxs))
	}

	if err := s.DeleteTransaction(active.ID); err != nil {
		t.Fatalf("Failed to delete transaction: %v", err)
	}
	if err := s.DeleteTransaction(active.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on double delete, got %v", err)
	}

	all, err := s.GetAllTransactions()
	if err != nil {
		t.Fatalf("Failed to get all transactions: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 remaining transaction, got %d", len(all))
	}
}

func TestSQLiteStore_ReplaceAll(t *testing.T) {
	dbFile := "test_store_replace.db"
	os.Remove(dbFile)
	defer os.Remove(dbFile)

	s, err := NewSQLiteStore(dbFile, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if err := s.CreateTransaction(testTransaction()); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	replacement := []*models.Transaction{testTransaction(), testTransaction()}
	if err := s.ReplaceAll(replacement); err != nil {
		t.Fatalf("Failed to replace collection: %v", err)
	}

	all, err := s.GetAllTransactions()
	if err != nil {
		t.Fatalf("Failed to get all transactions: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 transactions after replace, got %d", len(all))
	}

	if err := s.ReplaceAll(nil); err != nil {
		t.Fatalf("Failed to clear collection: %v", err)
	}
	all, _ = s.GetAllTransactions()
	if len(all) != 0 {
		t.Errorf("Expected empty collection after clear, got %d", len(all))
	}
}
