package movements

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cranefleet/cranefleet/internal/stock"
)

// Repository persists movement documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// TxRepository is the transactional surface the service composes. Stock
// exposes the stock primitives bound to the same transaction, so a movement
// commits together with its stock deltas.
type TxRepository interface {
	GetMovementForUpdate(ctx context.Context, id int64) (Movement, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpdateMovementRow(ctx context.Context, m Movement) error
	ReplaceItems(ctx context.Context, movementID int64, items []Item) error
	DeleteMovement(ctx context.Context, id int64) error
	Stock() stock.TxRepository
}

type txRepo struct {
	tx pgx.Tx
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
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const movementCols = `id, movement_type, document_date, status_id, description,
	from_warehouse_id, to_warehouse_id, from_machine_id, to_machine_id,
	counterparty_id, total_amount, currency, created_by, approved_by,
	executed_by, approved_at, executed_at, created_at`

const itemCols = `id, movement_id, item_id, quantity, price, amount, description`

// ListFilter narrows a movement listing.
type ListFilter struct {
	MovementType Kind
	StatusID     int64
	MachineID    int64
	From, To     *time.Time
	Limit        int
	Offset       int
}

// GetMovement fetches a movement with its items.
func (r *Repository) GetMovement(ctx context.Context, id int64) (Movement, error) {
	var m Movement
	err := pgxscan.Get(ctx, r.pool, &m,
		`SELECT `+movementCols+` FROM inventory_movements WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, ErrNotFound
	}
	if err != nil {
		return Movement{}, err
	}
	err = pgxscan.Select(ctx, r.pool, &m.Items,
		`SELECT `+itemCols+` FROM inventory_movement_items WHERE movement_id = $1 ORDER BY id`, id)
	return m, err
}

// ListMovements returns movement headers matching the filter, newest first.
func (r *Repository) ListMovements(ctx context.Context, f ListFilter) ([]Movement, error) {
	q := r.sb.Select("id", "movement_type", "document_date", "status_id", "description",
		"from_warehouse_id", "to_warehouse_id", "from_machine_id", "to_machine_id",
		"counterparty_id", "total_amount", "currency", "created_by", "approved_by",
		"executed_by", "approved_at", "executed_at", "created_at").
		From("inventory_movements").
		OrderBy("document_date DESC", "id DESC")
	if f.MovementType != "" {
		q = q.Where(sq.Eq{"movement_type": f.MovementType})
	}
	if f.StatusID > 0 {
		q = q.Where(sq.Eq{"status_id": f.StatusID})
	}
	if f.MachineID > 0 {
		q = q.Where(sq.Or{sq.Eq{"from_machine_id": f.MachineID}, sq.Eq{"to_machine_id": f.MachineID}})
	}
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"document_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(sq.Lt{"document_date": *f.To})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(uint64(limit)).Offset(uint64(f.Offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []Movement
	err = pgxscan.Select(ctx, r.pool, &rows, sql, args...)
	return rows, err
}

// AvgLoadCost returns the quantity-weighted average item price across every
// machine-loading movement into machineID dated on or before until. Zero
// when the machine has never been loaded.
func (r *Repository) AvgLoadCost(ctx context.Context, machineID int64, until time.Time) (decimal.Decimal, error) {
	var totalQty, totalAmount decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(i.quantity), 0), COALESCE(SUM(i.quantity * i.price), 0)
		 FROM inventory_movement_items i
		 JOIN inventory_movements m ON m.id = i.movement_id
		 WHERE m.movement_type = $1 AND m.to_machine_id = $2 AND m.document_date <= $3`,
		KindLoadMachine, machineID, until).Scan(&totalQty, &totalAmount)
	if err != nil {
		return decimal.Zero, err
	}
	if totalQty.IsZero() {
		return decimal.Zero, nil
	}
	return totalAmount.DivRound(totalQty, 2), nil
}

// FindDraftIssue locates an existing draft issue movement for the machine,
// date and description, so report derivation replaces instead of duplicates.
func (r *Repository) FindDraftIssue(ctx context.Context, date time.Time, machineID int64, description string, draftStatusID int64) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM inventory_movements
		 WHERE movement_type = $1 AND document_date = $2 AND from_machine_id = $3
			AND description = $4 AND status_id = $5
		 ORDER BY id LIMIT 1`,
		KindIssue, date, machineID, description, draftStatusID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return id, err == nil, err
}

func (r *txRepo) Stock() stock.TxRepository {
	return stock.BindTx(r.tx)
}

func (r *txRepo) GetMovementForUpdate(ctx context.Context, id int64) (Movement, error) {
	var m Movement
	err := pgxscan.Get(ctx, r.tx, &m,
		`SELECT `+movementCols+` FROM inventory_movements WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, ErrNotFound
	}
	if err != nil {
		return Movement{}, err
	}
	err = pgxscan.Select(ctx, r.tx, &m.Items,
		`SELECT `+itemCols+` FROM inventory_movement_items WHERE movement_id = $1 ORDER BY id`, id)
	return m, err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO inventory_movements (movement_type, document_date, status_id, description,
			from_warehouse_id, to_warehouse_id, from_machine_id, to_machine_id,
			counterparty_id, total_amount, currency, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		m.MovementType, m.DocumentDate, m.StatusID, m.Description,
		m.FromWarehouseID, m.ToWarehouseID, m.FromMachineID, m.ToMachineID,
		m.CounterpartyID, m.TotalAmount, m.Currency, m.CreatedBy, time.Now().UTC()).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateMovementRow(ctx context.Context, m Movement) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE inventory_movements SET movement_type = $2, document_date = $3, status_id = $4,
			description = $5, from_warehouse_id = $6, to_warehouse_id = $7,
			from_machine_id = $8, to_machine_id = $9, counterparty_id = $10,
			total_amount = $11, currency = $12, approved_by = $13, executed_by = $14,
			approved_at = $15, executed_at = $16
		 WHERE id = $1`,
		m.ID, m.MovementType, m.DocumentDate, m.StatusID,
		m.Description, m.FromWarehouseID, m.ToWarehouseID,
		m.FromMachineID, m.ToMachineID, m.CounterpartyID,
		m.TotalAmount, m.Currency, m.ApprovedBy, m.ExecutedBy,
		m.ApprovedAt, m.ExecutedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) ReplaceItems(ctx context.Context, movementID int64, items []Item) error {
	if _, err := r.tx.Exec(ctx,
		`DELETE FROM inventory_movement_items WHERE movement_id = $1`, movementID); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO inventory_movement_items (movement_id, item_id, quantity, price, amount, description)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			movementID, it.ItemID, it.Quantity, it.Price, it.Amount, it.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) DeleteMovement(ctx context.Context, id int64) error {
	// Items cascade on the foreign key.
	tag, err := r.tx.Exec(ctx, `DELETE FROM inventory_movements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
