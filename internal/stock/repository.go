package stock

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists per-location stock rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, BindTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// BindTx returns a TxRepository bound to an existing transaction. The
// movement engine uses this to apply stock effects inside its own commit.
func BindTx(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

type txRepo struct {
	tx pgx.Tx
}

const warehouseCols = `id, warehouse_id, item_id, quantity, reserved_quantity,
	min_quantity, max_quantity, location, last_updated`

const machineCols = `id, machine_id, item_id, quantity, capacity, min_quantity, last_updated`

func (r *txRepo) GetWarehouseStockForUpdate(ctx context.Context, warehouseID, itemID int64) (WarehouseStock, error) {
	var s WarehouseStock
	err := pgxscan.Get(ctx, r.tx, &s,
		`SELECT `+warehouseCols+` FROM warehouse_stock
		 WHERE warehouse_id = $1 AND item_id = $2 FOR UPDATE`, warehouseID, itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return WarehouseStock{}, ErrStockNotFound
	}
	return s, err
}

func (r *txRepo) UpsertWarehouseStock(ctx context.Context, s WarehouseStock) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO warehouse_stock (warehouse_id, item_id, quantity, reserved_quantity,
			min_quantity, max_quantity, location, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (warehouse_id, item_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			last_updated = EXCLUDED.last_updated`,
		s.WarehouseID, s.ItemID, s.Quantity, s.ReservedQuantity,
		s.MinQuantity, s.MaxQuantity, s.Location, time.Now().UTC())
	return err
}

func (r *txRepo) GetMachineStockForUpdate(ctx context.Context, machineID, itemID int64) (MachineStock, error) {
	var s MachineStock
	err := pgxscan.Get(ctx, r.tx, &s,
		`SELECT `+machineCols+` FROM machine_stock
		 WHERE machine_id = $1 AND item_id = $2 FOR UPDATE`, machineID, itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return MachineStock{}, ErrStockNotFound
	}
	return s, err
}

func (r *txRepo) UpsertMachineStock(ctx context.Context, s MachineStock) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO machine_stock (machine_id, item_id, quantity, capacity, min_quantity, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (machine_id, item_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			last_updated = EXCLUDED.last_updated`,
		s.MachineID, s.ItemID, s.Quantity, s.Capacity, s.MinQuantity, time.Now().UTC())
	return err
}

// ListWarehouseStock returns stock rows for one warehouse, or all warehouses
// when warehouseID is zero.
func (r *Repository) ListWarehouseStock(ctx context.Context, warehouseID int64) ([]WarehouseStock, error) {
	var rows []WarehouseStock
	query := `SELECT ` + warehouseCols + ` FROM warehouse_stock`
	args := []any{}
	if warehouseID > 0 {
		query += ` WHERE warehouse_id = $1`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY warehouse_id, item_id`
	err := pgxscan.Select(ctx, r.pool, &rows, query, args...)
	return rows, err
}

// ListMachineStock returns stock rows for one machine, or all machines when
// machineID is zero.
func (r *Repository) ListMachineStock(ctx context.Context, machineID int64) ([]MachineStock, error) {
	var rows []MachineStock
	query := `SELECT ` + machineCols + ` FROM machine_stock`
	args := []any{}
	if machineID > 0 {
		query += ` WHERE machine_id = $1`
		args = append(args, machineID)
	}
	query += ` ORDER BY machine_id, item_id`
	err := pgxscan.Select(ctx, r.pool, &rows, query, args...)
	return rows, err
}

// LowStock returns rows at or below their effective minimum, which is the
// larger of the stock row minimum and the item catalogue minimum.
func (r *Repository) LowStock(ctx context.Context) ([]LowStockRow, error) {
	var rows []LowStockRow
	err := pgxscan.Select(ctx, r.pool, &rows,
		`SELECT ws.warehouse_id, NULL::bigint AS machine_id, ws.item_id, i.name AS item_name, i.sku,
			ws.quantity, GREATEST(ws.min_quantity, i.min_stock) AS threshold
		 FROM warehouse_stock ws
		 JOIN items i ON i.id = ws.item_id
		 WHERE ws.quantity <= GREATEST(ws.min_quantity, i.min_stock)
		 UNION ALL
		 SELECT NULL::bigint, ms.machine_id, ms.item_id, i.name, i.sku,
			ms.quantity, GREATEST(ms.min_quantity, i.min_stock)
		 FROM machine_stock ms
		 JOIN items i ON i.id = ms.item_id
		 WHERE ms.quantity <= GREATEST(ms.min_quantity, i.min_stock)
		 ORDER BY item_id`)
	return rows, err
}
