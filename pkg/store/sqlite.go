package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eximouse/cicilan/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the transaction collection in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (or creates) the database and initializes the schema.
func NewSQLiteStore(dataSourceName string, logger *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	logger.Info("Database connection established and schema initialized")
	return s, nil
}

// initSchema creates the transactions table if it does not exist. Decimal
// fields are TEXT so no precision is lost; the payment history is stored as a
// JSON blob because it is only ever read and written together with its
// transaction.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		installment_count INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL,
		date_completed TEXT,
		payment_history TEXT NOT NULL DEFAULT '[]'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func encodeHistory(history []models.PaymentRecord) (string, error) {
	if history == nil {
		history = []models.PaymentRecord{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment history: %w", err)
	}
	return string(raw), nil
}

func decodeHistory(raw string) ([]models.PaymentRecord, error) {
	var history []models.PaymentRecord
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("failed to decode payment history: %w", err)
	}
	return history, nil
}

func completedString(tx *models.Transaction) sql.NullString {
	if tx.DateCompleted == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tx.DateCompleted.String(), Valid: true}
}

// CreateTransaction inserts a new transaction.
func (s *SQLiteStore) CreateTransaction(tx *models.Transaction) error {
	history, err := encodeHistory(tx.PaymentHistory)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO transactions (id, type, counterparty, principal, interest_rate, installment_count, start_date, status, date_completed, payment_history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Type), tx.Counterparty, tx.Principal.String(), tx.InterestRate.String(),
		tx.InstallmentCount, tx.StartDate.String(), string(tx.Status), completedString(tx), history,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by id.
func (s *SQLiteStore) GetTransaction(id string) (*models.Transaction, error) {
	row := s.db.QueryRow(
		`SELECT id, type, counterparty, principal, interest_rate, installment_count, start_date, status, date_completed, payment_history
		FROM transactions WHERE id = ?`, id)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransaction rewrites a transaction record in full.
func (s *SQLiteStore) UpdateTransaction(tx *models.Transaction) error {
	history, err := encodeHistory(tx.PaymentHistory)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(
		`UPDATE transactions SET type = ?, counterparty = ?, principal = ?, interest_rate = ?, installment_count = ?, start_date = ?, status = ?, date_completed = ?, payment_history = ? WHERE id = ?`,
		string(tx.Type), tx.Counterparty, tx.Principal.String(), tx.InterestRate.String(),
		tx.InstallmentCount, tx.StartDate.String(), string(tx.Status), completedString(tx), history, tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction and its payment history.
func (s *SQLiteStore) DeleteTransaction(id string) error {
	result, err := s.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAllTransactions retrieves the whole collection in insertion order.
func (s *SQLiteStore) GetAllTransactions() ([]*models.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, type, counterparty, principal, interest_rate, installment_count, start_date, status, date_completed, payment_history
		FROM transactions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetActiveTransactions retrieves all transactions that are not yet settled.
func (s *SQLiteStore) GetActiveTransactions() ([]*models.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, type, counterparty, principal, interest_rate, installment_count, start_date, status, date_completed, payment_history
		FROM transactions WHERE status = ? ORDER BY id ASC`, string(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to get active transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ReplaceAll wipes the collection and inserts the given records atomically.
func (s *SQLiteStore) ReplaceAll(txs []*models.Transaction) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}

	for _, tx := range txs {
		history, err := encodeHistory(tx.PaymentHistory)
		if err != nil {
			return err
		}
		_, err = dbTx.Exec(
			`INSERT INTO transactions (id, type, counterparty, principal, interest_rate, installment_count, start_date, status, date_completed, payment_history)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, string(tx.Type), tx.Counterparty, tx.Principal.String(), tx.InterestRate.String(),
			tx.InstallmentCount, tx.StartDate.String(), string(tx.Status), completedString(tx), history,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
	}

	s.logger.WithField("count", len(txs)).Info("Replaced transaction collection")
	return dbTx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx            models.Transaction
		txType        string
		status        string
		principal     string
		interestRate  string
		startDate     string
		dateCompleted sql.NullString
		history       string
	)

	err := row.Scan(&tx.ID, &txType, &tx.Counterparty, &principal, &interestRate,
		&tx.InstallmentCount, &startDate, &status, &dateCompleted, &history)
	if err != nil {
		return nil, err
	}

	tx.Type = models.TransactionType(txType)
	tx.Status = models.TransactionStatus(status)

	if tx.Principal, err = parseDecimal(principal); err != nil {
		return nil, fmt.Errorf("bad principal for %s: %w", tx.ID, err)
	}
	if tx.InterestRate, err = parseDecimal(interestRate); err != nil {
		return nil, fmt.Errorf("bad interest rate for %s: %w", tx.ID, err)
	}
	if tx.StartDate, err = models.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("bad start date for %s: %w", tx.ID, err)
	}
	if dateCompleted.Valid && dateCompleted.String != "" {
		completed, err := models.ParseDate(dateCompleted.String)
		if err != nil {
			return nil, fmt.Errorf("bad completion date for %s: %w", tx.ID, err)
		}
		tx.DateCompleted = &completed
	}
	if tx.PaymentHistory, err = decodeHistory(history); err != nil {
		return nil, fmt.Errorf("bad payment history for %s: %w", tx.ID, err)
	}

	return &tx, nil
}

func scanTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return txs, nil
}
