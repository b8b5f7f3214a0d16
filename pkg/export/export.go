// Package export serializes the transaction collection for backup: a CSV
// summary (one row per transaction) and a JSON dump that can be imported back
// with wholesale-overwrite semantics.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/eximouse/cicilan/pkg/finance"
	"github.com/eximouse/cicilan/pkg/models"
)

// csvHeader is the fixed column set of the CSV export.
var csvHeader = []string{
	"id", "type", "counterparty", "principal", "interest_rate", "installment_count",
	"start_date", "status", "date_completed", "total_payable", "outstanding",
}

// WriteCSV writes one row per transaction. Total payable and outstanding are
// rounded whole currency units; outstanding includes accrued fines as of asOf
// and is zero for settled transactions.
func WriteCSV(w io.Writer, txs []*models.Transaction, asOf models.Date) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, tx := range txs {
		totals := finance.TotalsFor(tx)

		outstanding := "0"
		if tx.IsActive() {
			arrears := finance.AccrueArrears(tx, asOf)
			outstanding = arrears.RemainingTotal.Add(arrears.TotalFine).String()
		}

		completed := ""
		if tx.DateCompleted != nil {
			completed = tx.DateCompleted.String()
		}

		row := []string{
			tx.ID,
			string(tx.Type),
			tx.Counterparty,
			tx.Principal.String(),
			tx.InterestRate.String(),
			strconv.Itoa(tx.InstallmentCount),
			tx.StartDate.String(),
			string(tx.Status),
			completed,
			totals.TotalAmount.Round(0).String(),
			outstanding,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", tx.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON dumps the full collection, payment histories included.
func WriteJSON(w io.Writer, txs []*models.Transaction) error {
	if txs == nil {
		txs = []*models.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(txs); err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}
	return nil
}

// ReadJSON parses a previously exported dump. The caller decides what to do
// with the records (normally a wholesale import); malformed JSON or a
// non-array payload is rejected here, deeper shape validation happens at the
// import boundary.
func ReadJSON(r io.Reader) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := json.NewDecoder(r).Decode(&txs); err != nil {
		return nil, fmt.Errorf("invalid import payload: %w", err)
	}
	return txs, nil
}
