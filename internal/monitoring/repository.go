package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cranefleet/cranefleet/internal/platform/db"
)

// Repository persists monitoring snapshots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const snapshotCols = `id, machine_id, date, coins, toys, created_at`

// Insert stores a snapshot. When the (machine, coins, toys) triple already
// exists, the stored row is returned unchanged.
func (r *Repository) Insert(ctx context.Context, s Snapshot) (Snapshot, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO monitoring (machine_id, date, coins, toys, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		s.MachineID, s.Date, s.Coins, s.Toys, time.Now().UTC()).Scan(&s.ID, &s.CreatedAt)
	if err == nil {
		return s, nil
	}
	if !db.IsUniqueViolation(err) {
		return Snapshot{}, err
	}
	var existing Snapshot
	err = pgxscan.Get(ctx, r.pool, &existing,
		`SELECT `+snapshotCols+` FROM monitoring
		 WHERE machine_id = $1 AND coins = $2 AND toys = $3`,
		s.MachineID, s.Coins, s.Toys)
	return existing, err
}

// List returns a machine's snapshots, newest first.
func (r *Repository) List(ctx context.Context, machineID int64, limit, offset int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []Snapshot
	err := pgxscan.Select(ctx, r.pool, &rows,
		`SELECT `+snapshotCols+` FROM monitoring WHERE machine_id = $1
		 ORDER BY date DESC, coins DESC, toys DESC LIMIT $2 OFFSET $3`,
		machineID, limit, offset)
	return rows, err
}

// LatestOnDay returns the snapshot for the day with the greatest counters,
// or nil when the machine has no reading that day.
func (r *Repository) LatestOnDay(ctx context.Context, machineID int64, day time.Time) (*Snapshot, error) {
	var s Snapshot
	err := pgxscan.Get(ctx, r.pool, &s,
		`SELECT `+snapshotCols+` FROM monitoring
		 WHERE machine_id = $1 AND date >= $2 AND date < $3
		 ORDER BY coins DESC, toys DESC, created_at DESC LIMIT 1`,
		machineID, day, day.Add(24*time.Hour))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestBefore returns the most recent snapshot strictly before day, or nil.
func (r *Repository) LatestBefore(ctx context.Context, machineID int64, day time.Time) (*Snapshot, error) {
	var s Snapshot
	err := pgxscan.Get(ctx, r.pool, &s,
		`SELECT `+snapshotCols+` FROM monitoring
		 WHERE machine_id = $1 AND date < $2
		 ORDER BY date DESC, coins DESC, toys DESC, created_at DESC LIMIT 1`,
		machineID, day)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
