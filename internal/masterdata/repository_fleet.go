package masterdata

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/cranefleet/cranefleet/internal/shared"
)

var machineCols = []string{"id", "name", "terminal_id", "rent_id", "phone_id", "game_cost", "start_date", "end_date"}

// ListMachines returns machines matching filter.
func (r *Repository) ListMachines(ctx context.Context, filter ListFilter) ([]Machine, error) {
	var ms []Machine
	err := r.selectInto(ctx, &ms, r.listQuery("machines", machineCols, filter, "name"))
	return ms, err
}

// GetMachine fetches one machine.
func (r *Repository) GetMachine(ctx context.Context, id int64) (Machine, error) {
	var m Machine
	err := pgxscan.Get(ctx, r.pool, &m, `SELECT id, name, terminal_id, rent_id, phone_id, game_cost, start_date, end_date FROM machines WHERE id = $1`, id)
	return m, notFound(err)
}

// CreateMachine inserts a machine.
func (r *Repository) CreateMachine(ctx context.Context, m Machine) (Machine, error) {
	m.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO machines (name, terminal_id, rent_id, phone_id, game_cost, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.Name, m.TerminalID, m.RentID, m.PhoneID, m.GameCost, m.StartDate, m.EndDate).Scan(&m.ID)
	return m, err
}

// UpdateMachine mutates machine fields.
func (r *Repository) UpdateMachine(ctx context.Context, m Machine) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE machines SET name = $2, terminal_id = $3, rent_id = $4, phone_id = $5, game_cost = $6 WHERE id = $1`,
		m.ID, m.Name, m.TerminalID, m.RentID, m.PhoneID, m.GameCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireMachine closes the machine's validity interval.
func (r *Repository) RetireMachine(ctx context.Context, id int64) error {
	return r.retire(ctx, "machines", id)
}

// --- Rents ---

// ListRents returns all rents, newest first.
func (r *Repository) ListRents(ctx context.Context, limit, offset int) ([]Rent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rents []Rent
	err := pgxscan.Select(ctx, r.pool, &rents,
		`SELECT id, location, amount, start_date, end_date, payment_day FROM rents ORDER BY start_date DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	return rents, err
}

// GetRent fetches one rent.
func (r *Repository) GetRent(ctx context.Context, id int64) (Rent, error) {
	var rent Rent
	err := pgxscan.Get(ctx, r.pool, &rent, `SELECT id, location, amount, start_date, end_date, payment_day FROM rents WHERE id = $1`, id)
	return rent, notFound(err)
}

// RentCovering returns the rent row whose interval covers day, if any.
func (r *Repository) RentCovering(ctx context.Context, rentID int64, day time.Time) (Rent, error) {
	var rent Rent
	err := pgxscan.Get(ctx, r.pool, &rent,
		`SELECT id, location, amount, start_date, end_date, payment_day FROM rents
		 WHERE id = $1 AND start_date <= $2 AND end_date >= $2`, rentID, day)
	return rent, notFound(err)
}

// CreateRent inserts a rent contract.
func (r *Repository) CreateRent(ctx context.Context, rent Rent) (Rent, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rents (location, amount, start_date, end_date, payment_day)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rent.Location, rent.Amount, rent.StartDate, rent.EndDate, rent.PaymentDay).Scan(&rent.ID)
	return rent, err
}

// UpdateRent mutates a rent contract.
func (r *Repository) UpdateRent(ctx context.Context, rent Rent) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE rents SET location = $2, amount = $3, start_date = $4, end_date = $5, payment_day = $6 WHERE id = $1`,
		rent.ID, rent.Location, rent.Amount, rent.StartDate, rent.EndDate, rent.PaymentDay)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRent removes a rent contract.
func (r *Repository) DeleteRent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rents WHERE id = $1`, id)
	return err
}
