// Package stock keeps per-location quantities: one row per (warehouse, item)
// or (machine, item) pair, created lazily by the first add. Primitives are
// atomic and row-locked; composites lock both rows in id order.
package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// WarehouseStock is the quantity of one item in one warehouse.
type WarehouseStock struct {
	ID               int64            `json:"id"`
	WarehouseID      int64            `json:"warehouse_id"`
	ItemID           int64            `json:"item_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	ReservedQuantity decimal.Decimal  `json:"reserved_quantity"`
	MinQuantity      decimal.Decimal  `json:"min_quantity"`
	MaxQuantity      *decimal.Decimal `json:"max_quantity,omitempty"`
	Location         *string          `json:"location,omitempty"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// Available is the unreserved quantity.
func (s WarehouseStock) Available() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// MachineStock is the quantity of one item loaded into one machine.
type MachineStock struct {
	ID          int64            `json:"id"`
	MachineID   int64            `json:"machine_id"`
	ItemID      int64            `json:"item_id"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Capacity    *decimal.Decimal `json:"capacity,omitempty"`
	MinQuantity decimal.Decimal  `json:"min_quantity"`
	LastUpdated time.Time        `json:"last_updated"`
}

// LowStockRow is a stock row at or below its effective minimum.
type LowStockRow struct {
	WarehouseID *int64          `json:"warehouse_id,omitempty"`
	MachineID   *int64          `json:"machine_id,omitempty"`
	ItemID      int64           `json:"item_id"`
	ItemName    string          `json:"item_name"`
	SKU         string          `json:"sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	Threshold   decimal.Decimal `json:"threshold"`
}

var (
	// ErrInsufficientStock indicates a remove or reserve cannot be satisfied.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrCapacityExceeded indicates a machine slot capacity would be exceeded.
	ErrCapacityExceeded = errors.New("stock: capacity exceeded")
	// ErrInvalidRelease indicates releasing more reservation than held.
	ErrInvalidRelease = errors.New("stock: release exceeds reservation")
	// ErrInvalidQuantity rejects non-positive quantities.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrStockNotFound indicates a missing stock row.
	ErrStockNotFound = errors.New("stock: row not found")
)
