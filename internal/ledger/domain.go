// Package ledger keeps owner accounts and the transaction ledger that is
// the single source of truth for their balances. Every mutation of a
// confirmed transaction recomputes the balances of the accounts it touches,
// inside the same database transaction.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Stable transaction type identifiers. The reference table is seeded with
// exactly these ids.
const (
	TypeIncome   int64 = 1
	TypeExpense  int64 = 2
	TypeTransfer int64 = 3
)

// Supported account currencies. Amounts are stored as-is; no FX conversion.
var Currencies = map[string]bool{"RUB": true, "USD": true, "EUR": true}

// Account is an owner-held money account. Balance is derived; overdraft is
// permitted.
type Account struct {
	ID             int64           `json:"id"`
	OwnerID        int64           `json:"owner_id"`
	AccountTypeID  int64           `json:"account_type_id"`
	Currency       string          `json:"currency"`
	AccountNumber  *string         `json:"account_number,omitempty"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"is_active"`
}

// Transaction is a ledger entry. For transfers the source account is
// AccountID (amount usually negative) and the destination ToAccountID is
// credited by the absolute amount.
type Transaction struct {
	ID                int64           `json:"id"`
	Date              time.Time       `json:"date"`
	AccountID         int64           `json:"account_id"`
	ToAccountID       *int64          `json:"to_account_id,omitempty"`
	CategoryID        int64           `json:"category_id"`
	CounterpartyID    *int64          `json:"counterparty_id,omitempty"`
	TransactionTypeID int64           `json:"transaction_type_id"`
	Amount            decimal.Decimal `json:"amount"`
	Description       *string         `json:"description,omitempty"`
	MachineID         *int64          `json:"machine_id,omitempty"`
	RentLocationID    *int64          `json:"rent_location_id,omitempty"`
	ReferenceNumber   *string         `json:"reference_number,omitempty"`
	IsConfirmed       bool            `json:"is_confirmed"`
	CreatedBy         *int64          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Summary aggregates confirmed non-transfer transactions.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// SummaryFilter narrows a summary query.
type SummaryFilter struct {
	AccountID *int64
	From, To  *time.Time
}

var (
	// ErrNotFound indicates a missing account or transaction.
	ErrNotFound = errors.New("ledger: not found")
	// ErrZeroAmount rejects transactions with amount = 0.
	ErrZeroAmount = errors.New("ledger: amount must not be zero")
	// ErrTransferTarget rejects transfers without a destination account.
	ErrTransferTarget = errors.New("ledger: transfer requires to_account_id")
	// ErrBadCurrency rejects unsupported currencies.
	ErrBadCurrency = errors.New("ledger: unsupported currency")
)

// touchedAccounts returns the account ids whose balances depend on t.
func (t Transaction) touchedAccounts() []int64 {
	ids := []int64{t.AccountID}
	if t.ToAccountID != nil && *t.ToAccountID != t.AccountID {
		ids = append(ids, *t.ToAccountID)
	}
	return ids
}
