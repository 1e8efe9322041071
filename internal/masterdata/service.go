package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Service validates and persists master data mutations.
type Service struct {
	repo *Repository
}

// NewService constructs a Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// --- Owners ---

func (s *Service) CreateOwner(ctx context.Context, o Owner) (Owner, error) {
	if strings.TrimSpace(o.Name) == "" {
		return Owner{}, invalid("owner name is required")
	}
	return s.repo.CreateOwner(ctx, o)
}

func (s *Service) UpdateOwner(ctx context.Context, o Owner) error {
	if o.ID <= 0 || strings.TrimSpace(o.Name) == "" {
		return invalid("owner id and name are required")
	}
	return s.repo.UpdateOwner(ctx, o)
}

// --- Counterparties ---

func (s *Service) CreateCounterparty(ctx context.Context, cp Counterparty) (Counterparty, error) {
	if strings.TrimSpace(cp.Name) == "" {
		return Counterparty{}, invalid("counterparty name is required")
	}
	return s.repo.CreateCounterparty(ctx, cp)
}

// --- Terminals ---

func (s *Service) CreateTerminal(ctx context.Context, t Terminal) (Terminal, error) {
	return s.repo.CreateTerminal(ctx, t)
}

// --- Machines ---

func (s *Service) CreateMachine(ctx context.Context, m Machine) (Machine, error) {
	if err := s.validateMachine(m); err != nil {
		return Machine{}, err
	}
	return s.repo.CreateMachine(ctx, m)
}

func (s *Service) UpdateMachine(ctx context.Context, m Machine) error {
	if m.ID <= 0 {
		return invalid("machine id is required")
	}
	if err := s.validateMachine(m); err != nil {
		return err
	}
	return s.repo.UpdateMachine(ctx, m)
}

func (s *Service) validateMachine(m Machine) error {
	if strings.TrimSpace(m.Name) == "" {
		return invalid("machine name is required")
	}
	if m.GameCost.IsNegative() {
		return invalid("game cost must not be negative")
	}
	return nil
}

// --- Phones ---

func (s *Service) CreatePhone(ctx context.Context, p Phone) (Phone, error) {
	if strings.TrimSpace(p.Number) == "" {
		return Phone{}, invalid("phone number is required")
	}
	if p.PaymentDay < 0 || p.PaymentDay > 31 {
		return Phone{}, invalid("payment day must be within 0..31")
	}
	return s.repo.CreatePhone(ctx, p)
}

// --- Rents ---

func (s *Service) CreateRent(ctx context.Context, rent Rent) (Rent, error) {
	if err := s.validateRent(rent); err != nil {
		return Rent{}, err
	}
	return s.repo.CreateRent(ctx, rent)
}

func (s *Service) UpdateRent(ctx context.Context, rent Rent) error {
	if rent.ID <= 0 {
		return invalid("rent id is required")
	}
	if err := s.validateRent(rent); err != nil {
		return err
	}
	return s.repo.UpdateRent(ctx, rent)
}

func (s *Service) validateRent(rent Rent) error {
	if rent.Amount.LessThan(decimal.Zero) {
		return invalid("rent amount must not be negative")
	}
	if rent.EndDate.Before(rent.StartDate) {
		return invalid("rent end date precedes start date")
	}
	return nil
}

// --- Items ---

func (s *Service) CreateItem(ctx context.Context, it Item) (Item, error) {
	if err := s.validateItem(it); err != nil {
		return Item{}, err
	}
	return s.repo.CreateItem(ctx, it)
}

func (s *Service) UpdateItem(ctx context.Context, it Item) error {
	if it.ID <= 0 {
		return invalid("item id is required")
	}
	if err := s.validateItem(it); err != nil {
		return err
	}
	return s.repo.UpdateItem(ctx, it)
}

func (s *Service) validateItem(it Item) error {
	if strings.TrimSpace(it.SKU) == "" {
		return invalid("item sku is required")
	}
	if !ValidUnit(it.Unit) {
		return invalid("unknown unit %q", it.Unit)
	}
	if it.MinStock.IsNegative() {
		return invalid("min stock must not be negative")
	}
	if it.MaxStock != nil && it.MaxStock.LessThan(it.MinStock) {
		return invalid("max stock below min stock")
	}
	return nil
}

// --- Warehouses ---

func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	if w.OwnerID <= 0 {
		return Warehouse{}, invalid("warehouse owner is required")
	}
	return s.repo.CreateWarehouse(ctx, w)
}

func (s *Service) UpdateWarehouse(ctx context.Context, w Warehouse) error {
	if w.ID <= 0 || w.OwnerID <= 0 {
		return invalid("warehouse id and owner are required")
	}
	return s.repo.UpdateWarehouse(ctx, w)
}
