package reports

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists report rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportCols = `id, report_date, machine_id, revenue, toy_consumption,
	plays_per_toy, profit, days_count, rent_cost, created_at`

// Upsert writes the report row for (report_date, machine_id).
func (r *Repository) Upsert(ctx context.Context, rep Report) (Report, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reports (report_date, machine_id, revenue, toy_consumption,
			plays_per_toy, profit, days_count, rent_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (report_date, machine_id) DO UPDATE SET
			revenue = EXCLUDED.revenue,
			toy_consumption = EXCLUDED.toy_consumption,
			plays_per_toy = EXCLUDED.plays_per_toy,
			profit = EXCLUDED.profit,
			days_count = EXCLUDED.days_count,
			rent_cost = EXCLUDED.rent_cost
		 RETURNING id, created_at`,
		rep.ReportDate, rep.MachineID, rep.Revenue, rep.ToyConsumption,
		rep.PlaysPerToy, rep.Profit, rep.DaysCount, rep.RentCost,
		time.Now().UTC()).Scan(&rep.ID, &rep.CreatedAt)
	return rep, err
}

// Get fetches the report for one machine and day.
func (r *Repository) Get(ctx context.Context, date time.Time, machineID int64) (Report, error) {
	var rep Report
	err := pgxscan.Get(ctx, r.pool, &rep,
		`SELECT `+reportCols+` FROM reports WHERE report_date = $1 AND machine_id = $2`,
		date, machineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return rep, err
}

// List returns daily report rows in [from, to), optionally for one machine,
// in date order.
func (r *Repository) List(ctx context.Context, from, to time.Time, machineID int64) ([]Report, error) {
	query := `SELECT ` + reportCols + ` FROM reports WHERE report_date >= $1 AND report_date < $2`
	args := []any{from, to}
	if machineID > 0 {
		args = append(args, machineID)
		query += ` AND machine_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY report_date, machine_id`

	var rows []Report
	err := pgxscan.Select(ctx, r.pool, &rows, query, args...)
	return rows, err
}
