package store

import (
	"errors"

	"github.com/eximouse/cicilan/pkg/models"
)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

// Storage defines the persistence boundary for the transaction collection.
// Implementations persist whole transaction records including their payment
// history; there are no partial writes below the record level.
type Storage interface {
	CreateTransaction(tx *models.Transaction) error
	GetTransaction(id string) (*models.Transaction, error)
	UpdateTransaction(tx *models.Transaction) error
	DeleteTransaction(id string) error
	GetAllTransactions() ([]*models.Transaction, error)
	GetActiveTransactions() ([]*models.Transaction, error)

	// ReplaceAll overwrites the entire collection (import semantics, no
	// merge). ReplaceAll(nil) clears it.
	ReplaceAll(txs []*models.Transaction) error

	Close() error
}
