package ledger

import (
	"context"
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

const accountCols = `id, owner_id, account_type_id, currency, account_number, initial_balance, balance, is_active`

// ListAccounts returns accounts, optionally for one owner.
func (r *Repository) ListAccounts(ctx context.Context, ownerID *int64) ([]Account, error) {
	var accounts []Account
	var err error
	if ownerID != nil {
		err = pgxscan.Select(ctx, r.pool, &accounts,
			`SELECT `+accountCols+` FROM accounts WHERE owner_id = $1 ORDER BY id`, *ownerID)
	} else {
		err = pgxscan.Select(ctx, r.pool, &accounts, `SELECT `+accountCols+` FROM accounts ORDER BY id`)
	}
	return accounts, err
}

// GetAccount fetches one account.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := pgxscan.Get(ctx, r.pool, &a, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

// FirstAccountOfOwner returns the owner's default account: the one with the
// lowest id. The second return is false when the owner has no accounts.
func (r *Repository) FirstAccountOfOwner(ctx context.Context, ownerID int64) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM accounts WHERE owner_id = $1 ORDER BY id LIMIT 1`, ownerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// CreateAccount inserts an account; balance starts at initial_balance.
func (r *Repository) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.Balance = a.InitialBalance
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (owner_id, account_type_id, currency, account_number, initial_balance, balance, is_active)
		 VALUES ($1, $2, $3, $4, $5, $5, $6) RETURNING id`,
		a.OwnerID, a.AccountTypeID, a.Currency, a.AccountNumber, a.InitialBalance, a.IsActive).Scan(&a.ID)
	return a, err
}

// UpdateAccount mutates account metadata. Changing initial_balance rewrites
// the derived balance as well.
func (r *Repository) UpdateAccount(ctx context.Context, a Account) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateAccountRow(ctx, a); err != nil {
			return err
		}
		_, err := tx.RecomputeBalance(ctx, a.ID)
		return err
	})
}

// DeleteAccount removes an account and cascades to its transactions.
func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
