package refs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists reference rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var allowedKinds = map[Kind]bool{
	KindMovementStatus:   true,
	KindTransactionType:  true,
	KindAccountType:      true,
	KindItemCategoryType: true,
}

func (r *Repository) table(kind Kind) (string, error) {
	if !allowedKinds[kind] {
		return "", fmt.Errorf("refs: unknown kind %q", kind)
	}
	return string(kind), nil
}

// List returns all rows of a reference kind.
func (r *Repository) List(ctx context.Context, kind Kind) ([]Entry, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IDByName resolves a name to its id. Returns ErrMissingReference when absent.
func (r *Repository) IDByName(ctx context.Context, kind Kind, name string) (int64, error) {
	table, err := r.table(kind)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s %q", ErrMissingReference, kind, name)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Insert adds a reference row.
func (r *Repository) Insert(ctx context.Context, kind Kind, name string) (Entry, error) {
	table, err := r.table(kind)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	e.Name = name
	err = r.pool.QueryRow(ctx, `INSERT INTO `+table+` (name) VALUES ($1) RETURNING id`, name).Scan(&e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Update renames a reference row.
func (r *Repository) Update(ctx context.Context, kind Kind, id int64, name string) error {
	table, err := r.table(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s id %d", ErrMissingReference, kind, id)
	}
	return nil
}

// Delete removes a reference row.
func (r *Repository) Delete(ctx context.Context, kind Kind, id int64) error {
	table, err := r.table(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	return err
}

// CategoryIDByName finds a transaction category by name.
func (r *Repository) CategoryIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM transaction_categories WHERE name = $1 ORDER BY id LIMIT 1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: category %q", ErrMissingReference, name)
	}
	return id, err
}

// FirstCategoryID returns any category, preferring the lowest id.
func (r *Repository) FirstCategoryID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM transaction_categories ORDER BY id LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: no transaction categories", ErrMissingReference)
	}
	return id, err
}

// EnsureCategory finds a category by name bound to the given transaction
// type, creating it when absent.
func (r *Repository) EnsureCategory(ctx context.Context, name string, txTypeID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM transaction_categories WHERE name = $1 AND transaction_type_id = $2`,
		name, txTypeID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO transaction_categories (name, transaction_type_id) VALUES ($1, $2) RETURNING id`,
		name, txTypeID).Scan(&id)
	return id, err
}
