// Package masterdata maintains the reference entities the operational
// ledgers hang off: owners, counterparties, terminals, machines, phones,
// rents, items with categories and warehouses. Long-lived rows are
// soft-deleted through a right-open validity interval.
package masterdata

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cranefleet/cranefleet/internal/shared"
)

// ErrNotFound indicates a missing master data row.
var ErrNotFound = errors.New("masterdata: not found")

// ErrValidation indicates rejected input.
var ErrValidation = errors.New("masterdata: validation failed")

// Owner is a party that holds accounts and terminals.
type Owner struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	INN          string  `json:"inn"`
	VendistaUser *string `json:"vendista_user,omitempty"`
	VendistaPass *string `json:"-"`
	shared.Validity
}

// Counterparty is an external party referenced by movements and transactions.
type Counterparty struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	INN   *string `json:"inn,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
	shared.Validity
}

// Terminal is a card-payment terminal; acquirer credits post into AccountID.
type Terminal struct {
	ID                   int64   `json:"id"`
	OwnerID              *int64  `json:"owner_id,omitempty"`
	AccountID            *int64  `json:"account_id,omitempty"`
	VendorTerminalNumber *string `json:"vendor_terminal_number,omitempty"`
	shared.Validity
}

// Machine is a physical crane unit. GameCost is the coin price of one play.
type Machine struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	TerminalID *int64          `json:"terminal_id,omitempty"`
	RentID     *int64          `json:"rent_id,omitempty"`
	PhoneID    *int64          `json:"phone_id,omitempty"`
	GameCost   decimal.Decimal `json:"game_cost"`
	shared.Validity
}

// Phone is a SIM installed in a machine; PaymentDay drives due notifications.
type Phone struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	Operator    string          `json:"operator"`
	PaymentDay  int             `json:"payment_day"`
	MonthlyCost decimal.Decimal `json:"monthly_cost"`
	shared.Validity
}

// Rent is a location rental contract. The interval [StartDate, EndDate]
// selects the rent covering a report date.
type Rent struct {
	ID         int64           `json:"id"`
	Location   string          `json:"location"`
	Amount     decimal.Decimal `json:"amount"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	PaymentDay int             `json:"payment_day"`
}

// ItemCategory groups items under a category type.
type ItemCategory struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	TypeID int64  `json:"type_id"`
}

// Item is a stocked good identified by SKU.
type Item struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	SKU        string           `json:"sku"`
	CategoryID int64            `json:"category_id"`
	Unit       string           `json:"unit"`
	MinStock   decimal.Decimal  `json:"min_stock"`
	MaxStock   *decimal.Decimal `json:"max_stock,omitempty"`
	Barcode    *string          `json:"barcode,omitempty"`
	shared.Validity
}

// Warehouse is a stock location belonging to an owner.
type Warehouse struct {
	ID              int64   `json:"id"`
	OwnerID         int64   `json:"owner_id"`
	Name            string  `json:"name"`
	Address         *string `json:"address,omitempty"`
	ContactPersonID *int64  `json:"contact_person_id,omitempty"`
	shared.Validity
}

// Units lists the accepted item units of measure.
var Units = []string{"шт", "кг", "л", "м", "м²", "м³", "упак", "компл"}

// ValidUnit reports whether unit is an accepted unit of measure.
func ValidUnit(unit string) bool {
	for _, u := range Units {
		if u == unit {
			return true
		}
	}
	return false
}
