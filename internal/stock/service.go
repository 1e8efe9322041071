package stock

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListWarehouseStock(ctx context.Context, warehouseID int64) ([]WarehouseStock, error)
	ListMachineStock(ctx context.Context, machineID int64) ([]MachineStock, error)
	LowStock(ctx context.Context) ([]LowStockRow, error)
}

// Service exposes atomic stock operations. Every mutation runs in its own
// transaction; composites touch both rows under one commit, locking the
// warehouse side before the machine side and lower location ids first.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// AddToWarehouse increases warehouse stock.
func (s *Service) AddToWarehouse(ctx context.Context, warehouseID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return AddWarehouse(ctx, tx, warehouseID, itemID, qty)
	})
}

// RemoveFromWarehouse decreases warehouse stock.
func (s *Service) RemoveFromWarehouse(ctx context.Context, warehouseID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return RemoveWarehouse(ctx, tx, warehouseID, itemID, qty)
	})
}

// Reserve moves available warehouse stock into the reservation.
func (s *Service) Reserve(ctx context.Context, warehouseID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return ReserveWarehouse(ctx, tx, warehouseID, itemID, qty)
	})
}

// Release returns reserved warehouse stock to the available pool.
func (s *Service) Release(ctx context.Context, warehouseID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return ReleaseWarehouse(ctx, tx, warehouseID, itemID, qty)
	})
}

// AddToMachine increases machine stock.
func (s *Service) AddToMachine(ctx context.Context, machineID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return AddMachine(ctx, tx, machineID, itemID, qty)
	})
}

// RemoveFromMachine decreases machine stock.
func (s *Service) RemoveFromMachine(ctx context.Context, machineID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return RemoveMachine(ctx, tx, machineID, itemID, qty)
	})
}

// TransferWarehouse moves quantity between two warehouses atomically.
func (s *Service) TransferWarehouse(ctx context.Context, fromID, toID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock in ascending warehouse id order to avoid deadlocks.
		if fromID < toID {
			if err := RemoveWarehouse(ctx, tx, fromID, itemID, qty); err != nil {
				return err
			}
			return AddWarehouse(ctx, tx, toID, itemID, qty)
		}
		if err := AddWarehouse(ctx, tx, toID, itemID, qty); err != nil {
			return err
		}
		return RemoveWarehouse(ctx, tx, fromID, itemID, qty)
	})
}

// TransferMachine moves quantity between two machines atomically.
func (s *Service) TransferMachine(ctx context.Context, fromID, toID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if fromID < toID {
			if err := RemoveMachine(ctx, tx, fromID, itemID, qty); err != nil {
				return err
			}
			return AddMachine(ctx, tx, toID, itemID, qty)
		}
		if err := AddMachine(ctx, tx, toID, itemID, qty); err != nil {
			return err
		}
		return RemoveMachine(ctx, tx, fromID, itemID, qty)
	})
}

// LoadMachine moves quantity from a warehouse into a machine atomically.
func (s *Service) LoadMachine(ctx context.Context, warehouseID, machineID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := RemoveWarehouse(ctx, tx, warehouseID, itemID, qty); err != nil {
			return err
		}
		return AddMachine(ctx, tx, machineID, itemID, qty)
	})
}

// UnloadMachine moves quantity from a machine back into a warehouse atomically.
func (s *Service) UnloadMachine(ctx context.Context, machineID, warehouseID, itemID int64, qty decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := AddWarehouse(ctx, tx, warehouseID, itemID, qty); err != nil {
			return err
		}
		return RemoveMachine(ctx, tx, machineID, itemID, qty)
	})
}

// ListWarehouseStock returns stock rows for a warehouse (all when zero).
func (s *Service) ListWarehouseStock(ctx context.Context, warehouseID int64) ([]WarehouseStock, error) {
	return s.repo.ListWarehouseStock(ctx, warehouseID)
}

// ListMachineStock returns stock rows for a machine (all when zero).
func (s *Service) ListMachineStock(ctx context.Context, machineID int64) ([]MachineStock, error) {
	return s.repo.ListMachineStock(ctx, machineID)
}

// LowStock returns rows at or below their effective minimum.
func (s *Service) LowStock(ctx context.Context) ([]LowStockRow, error) {
	return s.repo.LowStock(ctx)
}
