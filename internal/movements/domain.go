// Package movements implements inventory movement documents: typed multi-leg
// stock documents with a draft, approved, executed lifecycle. Executing a
// movement applies its stock deltas in one transaction; purchases post an
// offsetting bank expense afterwards.
package movements

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the movement type. The per-kind field contract lives in Shape.
type Kind string

const (
	KindReceipt       Kind = "receipt"
	KindIssue         Kind = "issue"
	KindSale          Kind = "sale"
	KindTransfer      Kind = "transfer"
	KindAdjustment    Kind = "adjustment"
	KindLoadMachine   Kind = "load_machine"
	KindUnloadMachine Kind = "unload_machine"
)

// Kinds lists every movement kind.
var Kinds = []Kind{
	KindReceipt, KindIssue, KindSale, KindTransfer,
	KindAdjustment, KindLoadMachine, KindUnloadMachine,
}

// Valid reports whether k names a known movement kind.
func (k Kind) Valid() bool {
	switch k {
	case KindReceipt, KindIssue, KindSale, KindTransfer,
		KindAdjustment, KindLoadMachine, KindUnloadMachine:
		return true
	}
	return false
}

// Movement is an inventory movement document. Location fields are set
// according to the kind's shape; TotalAmount is recomputed from the items
// on every write.
type Movement struct {
	ID              int64           `json:"id" db:"id"`
	MovementType    Kind            `json:"movement_type" db:"movement_type"`
	DocumentDate    time.Time       `json:"document_date" db:"document_date"`
	StatusID        int64           `json:"status_id" db:"status_id"`
	Description     *string         `json:"description,omitempty" db:"description"`
	FromWarehouseID *int64          `json:"from_warehouse_id,omitempty" db:"from_warehouse_id"`
	ToWarehouseID   *int64          `json:"to_warehouse_id,omitempty" db:"to_warehouse_id"`
	FromMachineID   *int64          `json:"from_machine_id,omitempty" db:"from_machine_id"`
	ToMachineID     *int64          `json:"to_machine_id,omitempty" db:"to_machine_id"`
	CounterpartyID  *int64          `json:"counterparty_id,omitempty" db:"counterparty_id"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Currency        string          `json:"currency" db:"currency"`
	CreatedBy       *int64          `json:"created_by,omitempty" db:"created_by"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	ExecutedBy      *int64          `json:"executed_by,omitempty" db:"executed_by"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty" db:"executed_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	Items []Item `json:"items" db:"-"`
}

// Item is one line of a movement. Amount is always quantity times price.
type Item struct {
	ID          int64           `json:"id" db:"id"`
	MovementID  int64           `json:"movement_id" db:"movement_id"`
	ItemID      int64           `json:"item_id" db:"item_id"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description *string         `json:"description,omitempty" db:"description"`
}

var (
	// ErrNotFound indicates a missing movement.
	ErrNotFound = errors.New("movements: not found")
	// ErrInvalidShape indicates the movement violates its kind's field
	// contract.
	ErrInvalidShape = errors.New("movements: invalid movement shape")
	// ErrIllegalTransition indicates a lifecycle operation in the wrong
	// state.
	ErrIllegalTransition = errors.New("movements: illegal transition")
	// ErrValidation indicates a bad item line.
	ErrValidation = errors.New("movements: validation failed")
)

// Shape is the field contract of one movement kind.
type Shape struct {
	NeedsFrom         bool
	NeedsTo           bool
	NeedsCounterparty bool
	// AnyLocation accepts either side as long as at least one is set.
	AnyLocation bool
	// ToMachineOnly restricts the destination to a machine.
	ToMachineOnly bool
	// FromMachineOnly restricts the source to a machine.
	FromMachineOnly bool
}

// ShapeOf is total over the movement kinds.
func ShapeOf(k Kind) (Shape, bool) {
	switch k {
	case KindReceipt:
		return Shape{NeedsTo: true, NeedsCounterparty: true}, true
	case KindIssue:
		return Shape{NeedsFrom: true}, true
	case KindSale:
		return Shape{NeedsFrom: true, NeedsCounterparty: true}, true
	case KindTransfer:
		return Shape{NeedsFrom: true, NeedsTo: true}, true
	case KindAdjustment:
		return Shape{AnyLocation: true}, true
	case KindLoadMachine:
		return Shape{NeedsTo: true, ToMachineOnly: true}, true
	case KindUnloadMachine:
		return Shape{NeedsFrom: true, FromMachineOnly: true}, true
	}
	return Shape{}, false
}

func (m Movement) hasFrom() bool {
	return m.FromWarehouseID != nil || m.FromMachineID != nil
}

func (m Movement) hasTo() bool {
	return m.ToWarehouseID != nil || m.ToMachineID != nil
}

// CheckShape validates the movement against its kind's contract and its
// item lines.
func CheckShape(m Movement) error {
	shape, ok := ShapeOf(m.MovementType)
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, m.MovementType)
	}
	switch {
	case shape.NeedsFrom && !m.hasFrom():
		return fmt.Errorf("%w: %s requires a source", ErrInvalidShape, m.MovementType)
	case shape.NeedsTo && !m.hasTo():
		return fmt.Errorf("%w: %s requires a destination", ErrInvalidShape, m.MovementType)
	case shape.NeedsCounterparty && m.CounterpartyID == nil:
		return fmt.Errorf("%w: %s requires a counterparty", ErrInvalidShape, m.MovementType)
	case shape.AnyLocation && !m.hasFrom() && !m.hasTo():
		return fmt.Errorf("%w: %s requires at least one location", ErrInvalidShape, m.MovementType)
	case shape.ToMachineOnly && m.ToMachineID == nil:
		return fmt.Errorf("%w: %s requires a destination machine", ErrInvalidShape, m.MovementType)
	case shape.FromMachineOnly && m.FromMachineID == nil:
		return fmt.Errorf("%w: %s requires a source machine", ErrInvalidShape, m.MovementType)
	}
	if len(m.Items) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for _, it := range m.Items {
		if it.ItemID <= 0 {
			return fmt.Errorf("%w: item reference required", ErrValidation)
		}
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: item price must not be negative", ErrValidation)
		}
	}
	return nil
}

// Normalize recomputes item amounts and the document total.
func Normalize(m *Movement) {
	total := decimal.Zero
	for i := range m.Items {
		m.Items[i].Amount = m.Items[i].Quantity.Mul(m.Items[i].Price)
		total = total.Add(m.Items[i].Amount)
	}
	m.TotalAmount = total
}

// IsPurchase reports whether executing the movement posts a bank expense:
// every receipt, and machine loads without a source warehouse.
func (m Movement) IsPurchase() bool {
	switch m.MovementType {
	case KindReceipt:
		return true
	case KindLoadMachine:
		return m.FromWarehouseID == nil
	}
	return false
}
