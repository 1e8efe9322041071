package masterdata

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cranefleet/cranefleet/internal/shared"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ListFilter narrows list queries.
type ListFilter struct {
	Search        string
	IncludeEnded  bool
	Limit, Offset int
}

func (r *Repository) listQuery(table string, columns []string, filter ListFilter, searchCols ...string) sq.SelectBuilder {
	q := r.sb.Select(columns...).From(table).OrderBy("id")
	if !filter.IncludeEnded {
		q = q.Where(sq.Gt{"end_date": time.Now().UTC()})
	}
	if filter.Search != "" && len(searchCols) > 0 {
		or := sq.Or{}
		for _, col := range searchCols {
			or = append(or, sq.ILike{col: "%" + filter.Search + "%"})
		}
		q = q.Where(or)
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(max(filter.Offset, 0)))
	}
	return q
}

func (r *Repository) selectInto(ctx context.Context, dst any, q sq.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	return pgxscan.Select(ctx, r.pool, dst, sql, args...)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Owners ---

var ownerCols = []string{"id", "name", "inn", "vendista_user", "vendista_pass", "start_date", "end_date"}

// ListOwners returns owners matching filter.
func (r *Repository) ListOwners(ctx context.Context, filter ListFilter) ([]Owner, error) {
	var owners []Owner
	err := r.selectInto(ctx, &owners, r.listQuery("owners", ownerCols, filter, "name", "inn"))
	return owners, err
}

// GetOwner fetches one owner.
func (r *Repository) GetOwner(ctx context.Context, id int64) (Owner, error) {
	var o Owner
	err := pgxscan.Get(ctx, r.pool, &o, `SELECT id, name, inn, vendista_user, vendista_pass, start_date, end_date FROM owners WHERE id = $1`, id)
	return o, notFound(err)
}

// CreateOwner inserts an owner with an open validity interval.
func (r *Repository) CreateOwner(ctx context.Context, o Owner) (Owner, error) {
	o.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO owners (name, inn, vendista_user, vendista_pass, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		o.Name, o.INN, o.VendistaUser, o.VendistaPass, o.StartDate, o.EndDate).Scan(&o.ID)
	return o, err
}

// UpdateOwner mutates mutable owner fields.
func (r *Repository) UpdateOwner(ctx context.Context, o Owner) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE owners SET name = $2, inn = $3, vendista_user = $4, vendista_pass = $5 WHERE id = $1`,
		o.ID, o.Name, o.INN, o.VendistaUser, o.VendistaPass)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireOwner closes the owner's validity interval.
func (r *Repository) RetireOwner(ctx context.Context, id int64) error {
	return r.retire(ctx, "owners", id)
}

func (r *Repository) retire(ctx context.Context, table string, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET end_date = $2 WHERE id = $1 AND end_date > $2`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Counterparties ---

var counterpartyCols = []string{"id", "name", "inn", "phone", "email", "start_date", "end_date"}

func (r *Repository) ListCounterparties(ctx context.Context, filter ListFilter) ([]Counterparty, error) {
	var cps []Counterparty
	err := r.selectInto(ctx, &cps, r.listQuery("counterparties", counterpartyCols, filter, "name", "inn"))
	return cps, err
}

func (r *Repository) GetCounterparty(ctx context.Context, id int64) (Counterparty, error) {
	var cp Counterparty
	err := pgxscan.Get(ctx, r.pool, &cp, `SELECT id, name, inn, phone, email, start_date, end_date FROM counterparties WHERE id = $1`, id)
	return cp, notFound(err)
}

func (r *Repository) CreateCounterparty(ctx context.Context, cp Counterparty) (Counterparty, error) {
	cp.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO counterparties (name, inn, phone, email, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		cp.Name, cp.INN, cp.Phone, cp.Email, cp.StartDate, cp.EndDate).Scan(&cp.ID)
	return cp, err
}

func (r *Repository) UpdateCounterparty(ctx context.Context, cp Counterparty) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE counterparties SET name = $2, inn = $3, phone = $4, email = $5 WHERE id = $1`,
		cp.ID, cp.Name, cp.INN, cp.Phone, cp.Email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) RetireCounterparty(ctx context.Context, id int64) error {
	return r.retire(ctx, "counterparties", id)
}

// --- Terminals ---

var terminalCols = []string{"id", "owner_id", "account_id", "vendor_terminal_number", "start_date", "end_date"}

func (r *Repository) ListTerminals(ctx context.Context, filter ListFilter) ([]Terminal, error) {
	var ts []Terminal
	err := r.selectInto(ctx, &ts, r.listQuery("terminals", terminalCols, filter, "vendor_terminal_number"))
	return ts, err
}

func (r *Repository) GetTerminal(ctx context.Context, id int64) (Terminal, error) {
	var t Terminal
	err := pgxscan.Get(ctx, r.pool, &t, `SELECT id, owner_id, account_id, vendor_terminal_number, start_date, end_date FROM terminals WHERE id = $1`, id)
	return t, notFound(err)
}

func (r *Repository) CreateTerminal(ctx context.Context, t Terminal) (Terminal, error) {
	t.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO terminals (owner_id, account_id, vendor_terminal_number, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		t.OwnerID, t.AccountID, t.VendorTerminalNumber, t.StartDate, t.EndDate).Scan(&t.ID)
	return t, err
}

func (r *Repository) UpdateTerminal(ctx context.Context, t Terminal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE terminals SET owner_id = $2, account_id = $3, vendor_terminal_number = $4 WHERE id = $1`,
		t.ID, t.OwnerID, t.AccountID, t.VendorTerminalNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) RetireTerminal(ctx context.Context, id int64) error {
	return r.retire(ctx, "terminals", id)
}

// --- Phones ---

var phoneCols = []string{"id", "number", "operator", "payment_day", "monthly_cost", "start_date", "end_date"}

func (r *Repository) ListPhones(ctx context.Context, filter ListFilter) ([]Phone, error) {
	var ps []Phone
	err := r.selectInto(ctx, &ps, r.listQuery("phones", phoneCols, filter, "number", "operator"))
	return ps, err
}

func (r *Repository) GetPhone(ctx context.Context, id int64) (Phone, error) {
	var p Phone
	err := pgxscan.Get(ctx, r.pool, &p, `SELECT id, number, operator, payment_day, monthly_cost, start_date, end_date FROM phones WHERE id = $1`, id)
	return p, notFound(err)
}

func (r *Repository) CreatePhone(ctx context.Context, p Phone) (Phone, error) {
	p.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO phones (number, operator, payment_day, monthly_cost, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Number, p.Operator, p.PaymentDay, p.MonthlyCost, p.StartDate, p.EndDate).Scan(&p.ID)
	return p, err
}

func (r *Repository) UpdatePhone(ctx context.Context, p Phone) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE phones SET number = $2, operator = $3, payment_day = $4, monthly_cost = $5 WHERE id = $1`,
		p.ID, p.Number, p.Operator, p.PaymentDay, p.MonthlyCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) RetirePhone(ctx context.Context, id int64) error {
	return r.retire(ctx, "phones", id)
}
