package terminalops

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cranefleet/cranefleet/internal/ledger"
)

// Repository persists terminal operations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository is the transactional surface the service composes. Ledger
// yields the ledger operations bound to the same transaction so day-close
// postings commit together with the row updates.
type TxRepository interface {
	GetForUpdate(ctx context.Context, date time.Time, terminalID int64) (Operation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (Operation, error)
	Insert(ctx context.Context, op Operation) (int64, error)
	UpdateRow(ctx context.Context, op Operation) error
	Delete(ctx context.Context, id int64) error
	SelectOpenForDate(ctx context.Context, date time.Time) ([]OpenRow, error)
	MarkClosed(ctx context.Context, ids []int64, closedBy *int64, at time.Time) error
	Ledger() ledger.TxRepository
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

const operationCols = `id, operation_date, terminal_id, amount, transaction_count,
	commission, is_closed, closed_at, closed_by, created_at, updated_at`

// ListFilter narrows an operation listing.
type ListFilter struct {
	TerminalID int64
	From, To   *time.Time
	Limit      int
	Offset     int
}

// Get fetches one operation by id.
func (r *Repository) Get(ctx context.Context, id int64) (Operation, error) {
	var op Operation
	err := pgxscan.Get(ctx, r.pool, &op,
		`SELECT `+operationCols+` FROM terminal_operations WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Operation{}, ErrNotFound
	}
	return op, err
}

// List returns operations matching the filter, newest day first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Operation, error) {
	query := `SELECT ` + operationCols + ` FROM terminal_operations WHERE true`
	args := []any{}
	if f.TerminalID > 0 {
		args = append(args, f.TerminalID)
		query += ` AND terminal_id = $1`
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += ` AND operation_date >= $` + itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += ` AND operation_date < $` + itoa(len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY operation_date DESC, terminal_id LIMIT $` + itoa(len(args))
	args = append(args, f.Offset)
	query += ` OFFSET $` + itoa(len(args))

	var rows []Operation
	err := pgxscan.Select(ctx, r.pool, &rows, query, args...)
	return rows, err
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func (r *txRepo) Ledger() ledger.TxRepository {
	return ledger.BindTx(r.tx)
}

func (r *txRepo) GetForUpdate(ctx context.Context, date time.Time, terminalID int64) (Operation, error) {
	var op Operation
	err := pgxscan.Get(ctx, r.tx, &op,
		`SELECT `+operationCols+` FROM terminal_operations
		 WHERE operation_date = $1 AND terminal_id = $2 FOR UPDATE`, date, terminalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Operation{}, ErrNotFound
	}
	return op, err
}

func (r *txRepo) GetByIDForUpdate(ctx context.Context, id int64) (Operation, error) {
	var op Operation
	err := pgxscan.Get(ctx, r.tx, &op,
		`SELECT `+operationCols+` FROM terminal_operations WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Operation{}, ErrNotFound
	}
	return op, err
}

func (r *txRepo) Insert(ctx context.Context, op Operation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO terminal_operations (operation_date, terminal_id, amount,
			transaction_count, commission, is_closed, created_at)
		 VALUES ($1, $2, $3, $4, $5, false, $6) RETURNING id`,
		op.OperationDate, op.TerminalID, op.Amount,
		op.TransactionCount, op.Commission, time.Now().UTC()).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateRow(ctx context.Context, op Operation) error {
	now := time.Now().UTC()
	tag, err := r.tx.Exec(ctx,
		`UPDATE terminal_operations SET amount = $2, transaction_count = $3,
			commission = $4, updated_at = $5
		 WHERE id = $1 AND NOT is_closed`,
		op.ID, op.Amount, op.TransactionCount, op.Commission, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOperationClosed
	}
	return nil
}

func (r *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM terminal_operations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) SelectOpenForDate(ctx context.Context, date time.Time) ([]OpenRow, error) {
	var rows []OpenRow
	err := pgxscan.Select(ctx, r.tx, &rows,
		`SELECT o.id, o.operation_date, o.terminal_id, o.amount, o.transaction_count,
			o.commission, o.is_closed, o.closed_at, o.closed_by, o.created_at, o.updated_at,
			t.account_id
		 FROM terminal_operations o
		 JOIN terminals t ON t.id = o.terminal_id
		 WHERE o.operation_date = $1 AND NOT o.is_closed
		 ORDER BY o.id
		 FOR UPDATE OF o`, date)
	return rows, err
}

func (r *txRepo) MarkClosed(ctx context.Context, ids []int64, closedBy *int64, at time.Time) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE terminal_operations SET is_closed = true, closed_at = $2, closed_by = $3
		 WHERE id = ANY($1)`, ids, at, closedBy)
	return err
}
