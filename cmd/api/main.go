package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	validator "github.com/avrebarra/minivalidator"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eximouse/cicilan/pkg/config"
	"github.com/eximouse/cicilan/pkg/export"
	"github.com/eximouse/cicilan/pkg/finance"
	"github.com/eximouse/cicilan/pkg/ledger"
	"github.com/eximouse/cicilan/pkg/models"
	"github.com/eximouse/cicilan/pkg/store"
)

// Server holds the ledger instance and shared dependencies.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage
	logger  *logrus.Logger
}

func NewServer(s store.Storage, logger *logrus.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, logger),
		storage: s,
		logger:  logger,
	}
}

type transactionRequest struct {
	Type             string          `json:"type" validate:"required"`
	Counterparty     string          `json:"counterparty" validate:"required"`
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	InstallmentCount int             `json:"installment_count" validate:"required"`
	StartDate        string          `json:"start_date" validate:"required"`
}

func (r transactionRequest) toInput() (ledger.TransactionInput, error) {
	startDate, err := models.ParseDate(r.StartDate)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	return ledger.TransactionInput{
		Type:             models.TransactionType(r.Type),
		Counterparty:     r.Counterparty,
		Principal:        r.Principal,
		InterestRate:     r.InterestRate,
		InstallmentCount: r.InstallmentCount,
		StartDate:        startDate,
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps engine and storage errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, finance.ErrInvalidPayment):
		status = http.StatusBadRequest
	case errors.Is(err, finance.ErrNotActive):
		status = http.StatusConflict
	case errors.Is(err, finance.ErrNothingApplied):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) createTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validator.Validate(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in, err := req.toInput()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := s.ledger.CreateTransaction(in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) listTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.TransactionStatus(r.URL.Query().Get("status"))
	txType := models.TransactionType(r.URL.Query().Get("type"))

	txs, err := s.ledger.ListTransactions(status, txType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) dueSoonHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.DueSoon()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.DueSoonEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getTransactionHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := s.ledger.Detail(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) updateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validator.Validate(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in, err := req.toInput()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := s.ledger.UpdateTransaction(mux.Vars(r)["id"], in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) deleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAll(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date" validate:"required"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validator.Validate(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := s.ledger.RecordPayment(mux.Vars(r)["id"], req.Amount, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, record)
}

type estimateRequest struct {
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	InstallmentCount int             `json:"installment_count"`
	StartDate        string          `json:"start_date"`
}

// estimateHandler is the live preview: half-filled input yields a zeroed
// estimate, never an error.
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var start models.Date
	if req.StartDate != "" {
		if parsed, err := models.ParseDate(req.StartDate); err == nil {
			start = parsed
		}
	}

	est := s.ledger.EstimateLoan(req.Principal, req.InterestRate, req.InstallmentCount, start)
	s.writeJSON(w, http.StatusOK, est)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) exportCSVHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListTransactions("", "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cicilan_export.csv"`)
	if err := export.WriteCSV(w, txs, s.ledger.Today()); err != nil {
		s.logger.WithError(err).Error("CSV export failed")
	}
}

func (s *Server) exportJSONHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListTransactions("", "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="cicilan_export.json"`)
	if err := export.WriteJSON(w, txs); err != nil {
		s.logger.WithError(err).Error("JSON export failed")
	}
}

func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := export.ReadJSON(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ledger.Import(txs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"imported": len(txs)})
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/transactions", s.listTransactionsHandler).Methods("GET")
	router.HandleFunc("/transactions", s.createTransactionHandler).Methods("POST")
	router.HandleFunc("/transactions", s.deleteAllHandler).Methods("DELETE")
	router.HandleFunc("/transactions/due-soon", s.dueSoonHandler).Methods("GET")
	router.HandleFunc("/transactions/{id}", s.getTransactionHandler).Methods("GET")
	router.HandleFunc("/transactions/{id}", s.updateTransactionHandler).Methods("PUT")
	router.HandleFunc("/transactions/{id}", s.deleteTransactionHandler).Methods("DELETE")
	router.HandleFunc("/transactions/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/estimate", s.estimateHandler).Methods("POST")
	router.HandleFunc("/summary", s.summaryHandler).Methods("GET")
	router.HandleFunc("/export/csv", s.exportCSVHandler).Methods("GET")
	router.HandleFunc("/export/json", s.exportJSONHandler).Methods("GET")
	router.HandleFunc("/import", s.importHandler).Methods("POST")

	return router
}

// runReminderScan logs a nag for every transaction that is overdue or coming
// due, standing in for the push notifications of a client app.
func (s *Server) runReminderScan() {
	entries, err := s.ledger.DueSoon()
	if err != nil {
		s.logger.WithError(err).Error("Reminder scan failed")
		return
	}

	for _, e := range entries {
		fields := logrus.Fields{
			"id":           e.Transaction.ID,
			"counterparty": e.Transaction.Counterparty,
			"type":         e.Transaction.Type,
			"next_due":     e.NextDueDate.String(),
		}
		switch {
		case e.TotalFine.IsPositive():
			s.logger.WithFields(fields).WithField("total_due", e.TotalDue.String()).
				Warn("Fine accruing on overdue installments")
		case e.Overdue:
			s.logger.WithFields(fields).Warn("Installment overdue")
		default:
			s.logger.WithFields(fields).WithField("days_until_due", e.DaysUntilDue).
				Info("Installment coming due")
		}
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load(logger)

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger)

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReminderCron, server.runReminderScan); err != nil {
		logger.Fatalf("Failed to schedule reminder scan: %v", err)
	}
	c.Start()
	defer c.Stop()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.routes(),
	}

	go func() {
		logger.Infof("Server starting on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Server stopped")
}
