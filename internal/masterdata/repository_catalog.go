package masterdata

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/cranefleet/cranefleet/internal/shared"
)

var itemCols = []string{"id", "name", "sku", "category_id", "unit", "min_stock", "max_stock", "barcode", "start_date", "end_date"}

// ListItems returns items matching filter.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	var items []Item
	err := r.selectInto(ctx, &items, r.listQuery("items", itemCols, filter, "name", "sku", "barcode"))
	return items, err
}

// GetItem fetches one item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := pgxscan.Get(ctx, r.pool, &it, `SELECT id, name, sku, category_id, unit, min_stock, max_stock, barcode, start_date, end_date FROM items WHERE id = $1`, id)
	return it, notFound(err)
}

// CreateItem inserts an item. SKU uniqueness is enforced by the database.
func (r *Repository) CreateItem(ctx context.Context, it Item) (Item, error) {
	it.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO items (name, sku, category_id, unit, min_stock, max_stock, barcode, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		it.Name, it.SKU, it.CategoryID, it.Unit, it.MinStock, it.MaxStock, it.Barcode, it.StartDate, it.EndDate).Scan(&it.ID)
	return it, err
}

// UpdateItem mutates item fields.
func (r *Repository) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE items SET name = $2, sku = $3, category_id = $4, unit = $5, min_stock = $6, max_stock = $7, barcode = $8 WHERE id = $1`,
		it.ID, it.Name, it.SKU, it.CategoryID, it.Unit, it.MinStock, it.MaxStock, it.Barcode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireItem closes the item's validity interval.
func (r *Repository) RetireItem(ctx context.Context, id int64) error {
	return r.retire(ctx, "items", id)
}

// --- Item categories ---

// ListItemCategories returns all categories.
func (r *Repository) ListItemCategories(ctx context.Context) ([]ItemCategory, error) {
	var cats []ItemCategory
	err := pgxscan.Select(ctx, r.pool, &cats, `SELECT id, name, type_id FROM item_categories ORDER BY id`)
	return cats, err
}

// CreateItemCategory inserts a category.
func (r *Repository) CreateItemCategory(ctx context.Context, c ItemCategory) (ItemCategory, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO item_categories (name, type_id) VALUES ($1, $2) RETURNING id`,
		c.Name, c.TypeID).Scan(&c.ID)
	return c, err
}

// DeleteItemCategory removes a category.
func (r *Repository) DeleteItemCategory(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM item_categories WHERE id = $1`, id)
	return err
}

// --- Warehouses ---

var warehouseCols = []string{"id", "owner_id", "name", "address", "contact_person_id", "start_date", "end_date"}

// ListWarehouses returns warehouses matching filter.
func (r *Repository) ListWarehouses(ctx context.Context, filter ListFilter) ([]Warehouse, error) {
	var ws []Warehouse
	err := r.selectInto(ctx, &ws, r.listQuery("warehouses", warehouseCols, filter, "name", "address"))
	return ws, err
}

// GetWarehouse fetches one warehouse.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := pgxscan.Get(ctx, r.pool, &w, `SELECT id, owner_id, name, address, contact_person_id, start_date, end_date FROM warehouses WHERE id = $1`, id)
	return w, notFound(err)
}

// CreateWarehouse inserts a warehouse.
func (r *Repository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	w.Validity = shared.NewValidity(time.Now())
	err := r.pool.QueryRow(ctx,
		`INSERT INTO warehouses (owner_id, name, address, contact_person_id, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		w.OwnerID, w.Name, w.Address, w.ContactPersonID, w.StartDate, w.EndDate).Scan(&w.ID)
	return w, err
}

// UpdateWarehouse mutates warehouse fields.
func (r *Repository) UpdateWarehouse(ctx context.Context, w Warehouse) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE warehouses SET owner_id = $2, name = $3, address = $4, contact_person_id = $5 WHERE id = $1`,
		w.ID, w.OwnerID, w.Name, w.Address, w.ContactPersonID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireWarehouse closes the warehouse's validity interval.
func (r *Repository) RetireWarehouse(ctx context.Context, id int64) error {
	return r.retire(ctx, "warehouses", id)
}
