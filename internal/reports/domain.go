// Package reports derives daily machine performance from monitoring
// snapshots: revenue from coin counters, toy consumption priced at the
// machine's weighted average load cost, amortised rent and resulting
// profit. Derivation is idempotent per (date, machine).
package reports

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CoinValue is the fixed currency value of one coin.
var CoinValue = decimal.NewFromInt(10)

// Report is the derived performance row for one machine and day.
type Report struct {
	ID             int64           `json:"id" db:"id"`
	ReportDate     time.Time       `json:"report_date" db:"report_date"`
	MachineID      int64           `json:"machine_id" db:"machine_id"`
	Revenue        decimal.Decimal `json:"revenue" db:"revenue"`
	ToyConsumption int64           `json:"toy_consumption" db:"toy_consumption"`
	PlaysPerToy    decimal.Decimal `json:"plays_per_toy" db:"plays_per_toy"`
	Profit         decimal.Decimal `json:"profit" db:"profit"`
	DaysCount      int             `json:"days_count" db:"days_count"`
	RentCost       decimal.Decimal `json:"rent_cost" db:"rent_cost"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Period is an aggregation bucket size.
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodHalfYear  Period = "halfyear"
	PeriodYearly    Period = "yearly"
)

// Valid reports whether p names a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodHalfYear, PeriodYearly:
		return true
	}
	return false
}

// Bucket is one aggregated row of the report series.
type Bucket struct {
	Label          string          `json:"label"`
	Revenue        decimal.Decimal `json:"revenue"`
	Profit         decimal.Decimal `json:"profit"`
	ToyConsumption int64           `json:"toy_consumption"`
	RentCost       decimal.Decimal `json:"rent_cost"`
	CoinsEarned    decimal.Decimal `json:"coins_earned"`
	DaysCount      int             `json:"days_count"`
}

// ComputeSummary reports a derivation run.
type ComputeSummary struct {
	ReportDate time.Time `json:"report_date"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
}

var (
	// ErrNotFound indicates a missing report row.
	ErrNotFound = errors.New("reports: not found")
	// ErrBadPeriod rejects unknown aggregation periods.
	ErrBadPeriod = errors.New("reports: unknown aggregation period")
)
