// Package refs holds the enumerated reference kinds the ledgers depend on:
// movement statuses, transaction types, account types and item category
// types. Reads vastly dominate writes; the resolver caches name lookups.
package refs

import "errors"

// Movement status names with stable semantics.
const (
	StatusDraft     = "draft"
	StatusApproved  = "approved"
	StatusExecuted  = "executed"
	StatusCancelled = "cancelled"
)

// Transaction type names.
const (
	TxTypeIncome   = "income"
	TxTypeExpense  = "expense"
	TxTypeTransfer = "transfer"
)

// ErrMissingReference indicates a required reference row is absent.
var ErrMissingReference = errors.New("refs: required reference row missing")

// Kind is one of the reference tables.
type Kind string

const (
	KindMovementStatus   Kind = "movement_statuses"
	KindTransactionType  Kind = "transaction_types"
	KindAccountType      Kind = "account_types"
	KindItemCategoryType Kind = "item_category_types"
)

// Entry is a single reference row.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Category is a transaction category bound to a transaction type.
type Category struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	TransactionTypeID int64  `json:"transaction_type_id"`
}
