package stock

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// TxRepository is the row-level surface the primitives operate on. Both the
// stock service and the movement engine supply an implementation bound to
// their own database transaction.
type TxRepository interface {
	// GetWarehouseStockForUpdate locks and returns the row, or
	// ErrStockNotFound when the pair has never been stocked.
	GetWarehouseStockForUpdate(ctx context.Context, warehouseID, itemID int64) (WarehouseStock, error)
	UpsertWarehouseStock(ctx context.Context, s WarehouseStock) error
	GetMachineStockForUpdate(ctx context.Context, machineID, itemID int64) (MachineStock, error)
	UpsertMachineStock(ctx context.Context, s MachineStock) error
}

func positive(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// AddWarehouse increases the warehouse quantity, creating the row lazily.
func AddWarehouse(ctx context.Context, tx TxRepository, warehouseID, itemID int64, qty decimal.Decimal) error {
	if err := positive(qty); err != nil {
		return err
	}
	row, err := tx.GetWarehouseStockForUpdate(ctx, warehouseID, itemID)
	if err != nil && !errors.Is(err, ErrStockNotFound) {
		return err
	}
	row.WarehouseID, row.ItemID = warehouseID, itemID
	row.Quantity = row.Quantity.Add(qty)
	return tx.UpsertWarehouseStock(ctx, row)
}

// RemoveWarehouse decreases the warehouse quantity. Reserved stock is not
// removable.
func RemoveWarehouse(ctx context.Context, tx TxRepository, warehouseID, itemID int64, qty decimal.Decimal) error {
	if err := positive(qty); err != nil {
		return err
	}
	row, err := tx.GetWarehouseStockForUpdate(ctx, warehouseID, itemID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return ErrInsufficientStock
		}
		return err
	}
	if row.Available().LessThan(qty) {
		return ErrInsufficientStock
	}
	row.Quantity = row.Quantity.Sub(qty)
	return tx.UpsertWarehouseStock(ctx, row)
}

// ReserveWarehouse moves available quantity into the reservation.
func ReserveWarehouse(ctx context.Context, tx TxRepository, warehouseID, itemID int64, qty decimal.Decimal) error {
	if err := positive(qty); err != nil {
		return err
	}
	row, err := tx.GetWarehouseStockForUpdate(ctx, warehouseID, itemID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return ErrInsufficientStock
		}
		return err
	}
	if row.Available().LessThan(qty) {
		return ErrInsufficientStock
	}
	row.ReservedQuantity = row.ReservedQuantity.Add(qty)
	return tx.UpsertWarehouseStock(ctx, row)
}

// ReleaseWarehouse returns reserved quantity to the available pool.
func ReleaseWarehouse(ctx context.Context, tx TxRepository, warehouseID, itemID int64, qty decimal.Decimal) error {
	if err := positive(qty); err != nil {
		return err
	}
	row, err := tx.GetWarehouseStockForUpdate(ctx, warehouseID, itemID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return ErrInvalidRelease
		}
		return err
	}
	if row.ReservedQuantity.LessThan(qty) {
		return ErrInvalidRelease
	}
	row.ReservedQuantity = row.ReservedQuantity.Sub(qty)
	return tx.UpsertWarehouseStock(ctx, row)
}

// AddMachine increases the machine quantity, honouring slot capacity.
func AddMachine(ctx context.Context, tx TxRepository, machineID, itemID int64, qty decimal.Decimal) error {
	if err := positive(qty); err != nil {
		return err
	}
	row, err := tx.GetMachineStockForUpdate(ctx, machineID, itemID)
	if err != nil && !errors.Is(err, ErrStockNotFound) {
		return err
	}
	row.MachineID, row.ItemID = machineID, itemID
	next := row.Quantity.Add(qty)
	if row.Capacity != nil && next.GreaterThan(*row.Capacity) {
		return ErrCapacityExceeded
	}
	row.Quantity = next
	return tx.UpsertMachineStock(ctx, row)
}

// RemoveMachine decreases the machine quantity.
func RemoveMachine(ctx context.Context, tx TxRepository, machineID, itemID int64, qty decimal.Decimal) error {
	if err := positive(qty); err != nil {
		return err
	}
	row, err := tx.GetMachineStockForUpdate(ctx, machineID, itemID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return ErrInsufficientStock
		}
		return err
	}
	if row.Quantity.LessThan(qty) {
		return ErrInsufficientStock
	}
	row.Quantity = row.Quantity.Sub(qty)
	return tx.UpsertMachineStock(ctx, row)
}

// SetWarehouseQuantity forces the warehouse quantity to an absolute value.
// Used by adjustment documents.
func SetWarehouseQuantity(ctx context.Context, tx TxRepository, warehouseID, itemID int64, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return ErrInvalidQuantity
	}
	row, err := tx.GetWarehouseStockForUpdate(ctx, warehouseID, itemID)
	if err != nil && !errors.Is(err, ErrStockNotFound) {
		return err
	}
	row.WarehouseID, row.ItemID = warehouseID, itemID
	row.Quantity = qty
	return tx.UpsertWarehouseStock(ctx, row)
}

// SetMachineQuantity forces the machine quantity to an absolute value.
func SetMachineQuantity(ctx context.Context, tx TxRepository, machineID, itemID int64, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return ErrInvalidQuantity
	}
	row, err := tx.GetMachineStockForUpdate(ctx, machineID, itemID)
	if err != nil && !errors.Is(err, ErrStockNotFound) {
		return err
	}
	row.MachineID, row.ItemID = machineID, itemID
	if row.Capacity != nil && qty.GreaterThan(*row.Capacity) {
		return ErrCapacityExceeded
	}
	row.Quantity = qty
	return tx.UpsertMachineStock(ctx, row)
}
