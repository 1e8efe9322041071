package stock

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type pair struct{ location, item int64 }

type memoryStock struct {
	warehouse map[pair]WarehouseStock
	machine   map[pair]MachineStock
}

func newMemoryStock() *memoryStock {
	return &memoryStock{
		warehouse: map[pair]WarehouseStock{},
		machine:   map[pair]MachineStock{},
	}
}

func (m *memoryStock) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed composite rolls back like the real transaction.
	wh := make(map[pair]WarehouseStock, len(m.warehouse))
	for k, v := range m.warehouse {
		wh[k] = v
	}
	mc := make(map[pair]MachineStock, len(m.machine))
	for k, v := range m.machine {
		mc[k] = v
	}
	if err := fn(ctx, m); err != nil {
		m.warehouse, m.machine = wh, mc
		return err
	}
	return nil
}

func (m *memoryStock) GetWarehouseStockForUpdate(_ context.Context, warehouseID, itemID int64) (WarehouseStock, error) {
	s, ok := m.warehouse[pair{warehouseID, itemID}]
	if !ok {
		return WarehouseStock{}, ErrStockNotFound
	}
	return s, nil
}

func (m *memoryStock) UpsertWarehouseStock(_ context.Context, s WarehouseStock) error {
	m.warehouse[pair{s.WarehouseID, s.ItemID}] = s
	return nil
}

func (m *memoryStock) GetMachineStockForUpdate(_ context.Context, machineID, itemID int64) (MachineStock, error) {
	s, ok := m.machine[pair{machineID, itemID}]
	if !ok {
		return MachineStock{}, ErrStockNotFound
	}
	return s, nil
}

func (m *memoryStock) UpsertMachineStock(_ context.Context, s MachineStock) error {
	m.machine[pair{s.MachineID, s.ItemID}] = s
	return nil
}

func (m *memoryStock) ListWarehouseStock(context.Context, int64) ([]WarehouseStock, error) {
	return nil, nil
}

func (m *memoryStock) ListMachineStock(context.Context, int64) ([]MachineStock, error) {
	return nil, nil
}

func (m *memoryStock) LowStock(context.Context) ([]LowStockRow, error) {
	return nil, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService() (*Service, *memoryStock) {
	repo := newMemoryStock()
	return NewService(repo, slog.Default()), repo
}

func TestAddThenRemoveIsIdentity(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.AddToWarehouse(ctx, 1, 1, dec("7.500")))
	require.NoError(t, svc.RemoveFromWarehouse(ctx, 1, 1, dec("7.500")))

	row := repo.warehouse[pair{1, 1}]
	require.True(t, row.Quantity.IsZero(), "quantity %s", row.Quantity)
	require.True(t, row.ReservedQuantity.IsZero())
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.AddToWarehouse(ctx, 1, 1, dec("10")))
	require.NoError(t, svc.Reserve(ctx, 1, 1, dec("4")))

	row := repo.warehouse[pair{1, 1}]
	require.True(t, row.ReservedQuantity.Equal(dec("4")))
	require.True(t, row.Available().Equal(dec("6")))

	// Reserved stock is unavailable for removal.
	require.ErrorIs(t, svc.RemoveFromWarehouse(ctx, 1, 1, dec("7")), ErrInsufficientStock)

	require.NoError(t, svc.Release(ctx, 1, 1, dec("4")))
	row = repo.warehouse[pair{1, 1}]
	require.True(t, row.Quantity.Equal(dec("10")))
	require.True(t, row.ReservedQuantity.IsZero())
}

func TestReleaseBeyondReservationFails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.AddToWarehouse(ctx, 1, 1, dec("10")))
	require.NoError(t, svc.Reserve(ctx, 1, 1, dec("3")))
	require.ErrorIs(t, svc.Release(ctx, 1, 1, dec("5")), ErrInvalidRelease)
	require.ErrorIs(t, svc.Release(ctx, 1, 2, dec("1")), ErrInvalidRelease)
}

func TestRemoveFromEmptyRowFails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.ErrorIs(t, svc.RemoveFromWarehouse(ctx, 9, 9, dec("1")), ErrInsufficientStock)
	require.ErrorIs(t, svc.RemoveFromMachine(ctx, 9, 9, dec("1")), ErrInsufficientStock)
}

func TestMachineCapacity(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	capacity := dec("15")
	repo.machine[pair{1, 1}] = MachineStock{MachineID: 1, ItemID: 1, Capacity: &capacity}

	require.NoError(t, svc.AddToMachine(ctx, 1, 1, dec("10")))
	require.ErrorIs(t, svc.AddToMachine(ctx, 1, 1, dec("6")), ErrCapacityExceeded)

	row := repo.machine[pair{1, 1}]
	require.True(t, row.Quantity.Equal(dec("10")))
}

func TestTransferConservesTotal(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.AddToWarehouse(ctx, 1, 1, dec("10")))
	require.NoError(t, svc.TransferWarehouse(ctx, 1, 2, 1, dec("4")))

	from := repo.warehouse[pair{1, 1}]
	to := repo.warehouse[pair{2, 1}]
	require.True(t, from.Quantity.Equal(dec("6")))
	require.True(t, to.Quantity.Equal(dec("4")))
	require.True(t, from.Quantity.Add(to.Quantity).Equal(dec("10")))

	// Reverse direction exercises the other lock ordering branch.
	require.NoError(t, svc.TransferWarehouse(ctx, 2, 1, 1, dec("4")))
	require.True(t, repo.warehouse[pair{1, 1}].Quantity.Equal(dec("10")))
	require.True(t, repo.warehouse[pair{2, 1}].Quantity.IsZero())
}

func TestLoadMachineRollsBackOnCapacity(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	capacity := dec("5")
	repo.machine[pair{1, 1}] = MachineStock{MachineID: 1, ItemID: 1, Capacity: &capacity}
	require.NoError(t, svc.AddToWarehouse(ctx, 1, 1, dec("10")))

	err := svc.LoadMachine(ctx, 1, 1, 1, dec("8"))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	// Warehouse side unchanged: the whole composite rolled back.
	require.True(t, repo.warehouse[pair{1, 1}].Quantity.Equal(dec("10")))
	require.True(t, repo.machine[pair{1, 1}].Quantity.IsZero())
}

func TestUnloadMachine(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.AddToMachine(ctx, 1, 1, dec("6")))
	require.NoError(t, svc.UnloadMachine(ctx, 1, 2, 1, dec("6")))

	require.True(t, repo.machine[pair{1, 1}].Quantity.IsZero())
	require.True(t, repo.warehouse[pair{2, 1}].Quantity.Equal(dec("6")))
}

func TestNonPositiveQuantityRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.ErrorIs(t, svc.AddToWarehouse(ctx, 1, 1, decimal.Zero), ErrInvalidQuantity)
	require.ErrorIs(t, svc.AddToMachine(ctx, 1, 1, dec("-1")), ErrInvalidQuantity)
	require.ErrorIs(t, svc.Reserve(ctx, 1, 1, decimal.Zero), ErrInvalidQuantity)
}
