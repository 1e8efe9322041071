// Package terminalops keeps the per-day card revenue rows terminals report,
// and posts them to owner accounts when the day is closed.
package terminalops

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Operation is one terminal's takings for one calendar day. Closed rows are
// immutable.
type Operation struct {
	ID               int64           `json:"id" db:"id"`
	OperationDate    time.Time       `json:"operation_date" db:"operation_date"`
	TerminalID       int64           `json:"terminal_id" db:"terminal_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	TransactionCount int             `json:"transaction_count" db:"transaction_count"`
	Commission       decimal.Decimal `json:"commission" db:"commission"`
	IsClosed         bool            `json:"is_closed" db:"is_closed"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
	ClosedBy         *int64          `json:"closed_by,omitempty" db:"closed_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty" db:"updated_at"`
}

// Net is the amount the owner actually receives.
func (o Operation) Net() decimal.Decimal {
	return o.Amount.Sub(o.Commission)
}

// OpenRow joins an open operation with its terminal's posting account.
type OpenRow struct {
	Operation
	AccountID *int64 `db:"account_id"`
}

// CloseSummary reports the outcome of a day close.
type CloseSummary struct {
	OperationDate      time.Time       `json:"operation_date"`
	ClosedRows         int             `json:"closed_rows"`
	PostedTransactions int             `json:"posted_transactions"`
	TotalNet           decimal.Decimal `json:"total_net"`
}

var (
	// ErrNotFound indicates a missing operation row.
	ErrNotFound = errors.New("terminalops: not found")
	// ErrOperationClosed indicates a write against a closed row.
	ErrOperationClosed = errors.New("terminalops: operation is closed")
)
