package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers the ownership and existence questions the operational
// engines ask. It is read-only and safe to share.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a Directory.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// OwnerOfTerminal returns the owner id of a terminal, or nil when unset.
func (d *Directory) OwnerOfTerminal(ctx context.Context, terminalID int64) (*int64, error) {
	var ownerID *int64
	err := d.pool.QueryRow(ctx, `SELECT owner_id FROM terminals WHERE id = $1`, terminalID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ownerID, err
}

// OwnerOfMachine resolves the machine's owner through its terminal.
func (d *Directory) OwnerOfMachine(ctx context.Context, machineID int64) (*int64, error) {
	var ownerID *int64
	err := d.pool.QueryRow(ctx,
		`SELECT t.owner_id FROM machines m JOIN terminals t ON t.id = m.terminal_id WHERE m.id = $1`,
		machineID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Machine without a terminal has no owner.
		return nil, nil
	}
	return ownerID, err
}

// AccountOfTerminal returns the terminal's posting account id, or nil.
func (d *Directory) AccountOfTerminal(ctx context.Context, terminalID int64) (*int64, error) {
	var accountID *int64
	err := d.pool.QueryRow(ctx, `SELECT account_id FROM terminals WHERE id = $1`, terminalID).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return accountID, err
}

// WarehouseExists reports whether an active warehouse exists.
func (d *Directory) WarehouseExists(ctx context.Context, id int64) (bool, error) {
	return d.existsActive(ctx, "warehouses", id)
}

// MachineExists reports whether an active machine exists.
func (d *Directory) MachineExists(ctx context.Context, id int64) (bool, error) {
	return d.existsActive(ctx, "machines", id)
}

// ItemExists reports whether an active item exists.
func (d *Directory) ItemExists(ctx context.Context, id int64) (bool, error) {
	return d.existsActive(ctx, "items", id)
}

func (d *Directory) existsActive(ctx context.Context, table string, id int64) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1 AND end_date > $2)`,
		id, time.Now().UTC()).Scan(&ok)
	return ok, err
}

// WarehouseOwner returns the owner id of a warehouse.
func (d *Directory) WarehouseOwner(ctx context.Context, warehouseID int64) (int64, error) {
	var ownerID int64
	err := d.pool.QueryRow(ctx, `SELECT owner_id FROM warehouses WHERE id = $1`, warehouseID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return ownerID, err
}

// ActiveTerminals lists terminals whose validity covers now.
func (d *Directory) ActiveTerminals(ctx context.Context) ([]Terminal, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, owner_id, account_id, vendor_terminal_number, start_date, end_date
		 FROM terminals WHERE end_date > $1 ORDER BY id`, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var terminals []Terminal
	for rows.Next() {
		var t Terminal
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.VendorTerminalNumber, &t.StartDate, &t.EndDate); err != nil {
			return nil, err
		}
		terminals = append(terminals, t)
	}
	return terminals, rows.Err()
}

// ActiveMachines lists machines whose validity covers now.
func (d *Directory) ActiveMachines(ctx context.Context) ([]Machine, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, name, terminal_id, rent_id, phone_id, game_cost, start_date, end_date
		 FROM machines WHERE end_date > $1 ORDER BY id`, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var machines []Machine
	for rows.Next() {
		var m Machine
		if err := rows.Scan(&m.ID, &m.Name, &m.TerminalID, &m.RentID, &m.PhoneID, &m.GameCost, &m.StartDate, &m.EndDate); err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// VendistaCredentials carries an owner's acquirer login.
type VendistaCredentials struct {
	OwnerID  int64
	Login    string
	Password string
}

// OwnerCredentials returns the owner's Vendista credentials when both parts
// are set.
func (d *Directory) OwnerCredentials(ctx context.Context, ownerID int64) (VendistaCredentials, bool, error) {
	var user, pass *string
	err := d.pool.QueryRow(ctx, `SELECT vendista_user, vendista_pass FROM owners WHERE id = $1`, ownerID).Scan(&user, &pass)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendistaCredentials{}, false, ErrNotFound
	}
	if err != nil {
		return VendistaCredentials{}, false, err
	}
	if user == nil || pass == nil || *user == "" || *pass == "" {
		return VendistaCredentials{}, false, nil
	}
	return VendistaCredentials{OwnerID: ownerID, Login: *user, Password: *pass}, true, nil
}
