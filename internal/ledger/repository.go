package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists accounts and transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service composes.
type TxRepository interface {
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	MarkConfirmed(ctx context.Context, id int64) error
	UpdateAccountRow(ctx context.Context, a Account) error
	// RecomputeBalance locks the account row and rewrites its derived
	// balance from the confirmed ledger.
	RecomputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

type txRepo struct {
	tx pgx.Tx
}

// BindTx returns a TxRepository bound to an existing transaction, so other
// engines can post ledger entries inside their own commit.
func BindTx(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
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

const transactionCols = `id, date, account_id, to_account_id, category_id, counterparty_id,
	transaction_type_id, amount, description, machine_id, rent_location_id,
	reference_number, is_confirmed, created_by, created_at`

// GetTransaction fetches a transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var t Transaction
	err := pgxscan.Get(ctx, r.pool, &t, `SELECT `+transactionCols+` FROM transactions WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

// ListTransactions returns transactions for an account, newest first.
func (r *Repository) ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txs []Transaction
	err := pgxscan.Select(ctx, r.pool, &txs,
		`SELECT `+transactionCols+` FROM transactions WHERE account_id = $1 OR to_account_id = $1
		 ORDER BY date DESC, id DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	return txs, err
}

// Summarize aggregates confirmed non-transfer transactions.
func (r *Repository) Summarize(ctx context.Context, filter SummaryFilter) (Summary, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
		COALESCE(SUM(amount) FILTER (WHERE amount < 0), 0),
		COUNT(*)
	 FROM transactions
	 WHERE is_confirmed AND transaction_type_id <> $1`
	args := []any{TypeTransfer}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += ` AND account_id = $2`
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND date >= $` + itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND date < $` + itoa(len(args))
	}
	var s Summary
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&s.Income, &s.Expense, &s.Count); err != nil {
		return Summary{}, err
	}
	s.Net = s.Income.Add(s.Expense)
	return s, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func (r *txRepo) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO transactions (date, account_id, to_account_id, category_id, counterparty_id,
			transaction_type_id, amount, description, machine_id, rent_location_id,
			reference_number, is_confirmed, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		t.Date, t.AccountID, t.ToAccountID, t.CategoryID, t.CounterpartyID,
		t.TransactionTypeID, t.Amount, t.Description, t.MachineID, t.RentLocationID,
		t.ReferenceNumber, t.IsConfirmed, t.CreatedBy, time.Now().UTC()).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateTransaction(ctx context.Context, t Transaction) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE transactions SET date = $2, account_id = $3, to_account_id = $4, category_id = $5,
			counterparty_id = $6, transaction_type_id = $7, amount = $8, description = $9,
			machine_id = $10, rent_location_id = $11, reference_number = $12, is_confirmed = $13
		 WHERE id = $1`,
		t.ID, t.Date, t.AccountID, t.ToAccountID, t.CategoryID,
		t.CounterpartyID, t.TransactionTypeID, t.Amount, t.Description,
		t.MachineID, t.RentLocationID, t.ReferenceNumber, t.IsConfirmed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) MarkConfirmed(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transactions SET is_confirmed = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) UpdateAccountRow(ctx context.Context, a Account) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE accounts SET account_type_id = $2, currency = $3, account_number = $4,
			initial_balance = $5, is_active = $6 WHERE id = $1`,
		a.ID, a.AccountTypeID, a.Currency, a.AccountNumber, a.InitialBalance, a.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) RecomputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	// Lock the account row so concurrent recomputes serialise.
	if _, err := r.tx.Exec(ctx, `SELECT 1 FROM accounts WHERE id = $1 FOR UPDATE`, accountID); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx,
		`UPDATE accounts a SET balance = a.initial_balance
			+ COALESCE((SELECT SUM(t.amount) FROM transactions t
				WHERE t.account_id = a.id AND t.is_confirmed), 0)
			+ COALESCE((SELECT SUM(ABS(t.amount)) FROM transactions t
				WHERE t.to_account_id = a.id AND t.is_confirmed AND t.transaction_type_id = $2), 0)
		 WHERE a.id = $1
		 RETURNING a.balance`, accountID, TypeTransfer).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	return balance, err
}
