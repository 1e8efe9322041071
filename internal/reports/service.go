package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/monitoring"
	"github.com/cranefleet/cranefleet/internal/movements"
	"github.com/cranefleet/cranefleet/internal/platform/cache"
	"github.com/cranefleet/cranefleet/internal/shared"
	"github.com/cranefleet/cranefleet/internal/stock"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	Upsert(ctx context.Context, rep Report) (Report, error)
	Get(ctx context.Context, date time.Time, machineID int64) (Report, error)
	List(ctx context.Context, from, to time.Time, machineID int64) ([]Report, error)
}

// MachinesPort lists the machines derivation runs over.
type MachinesPort interface {
	ActiveMachines(ctx context.Context) ([]masterdata.Machine, error)
}

// RentsPort resolves the rent contract covering a day.
type RentsPort interface {
	RentCovering(ctx context.Context, rentID int64, day time.Time) (masterdata.Rent, error)
}

// MonitoringPort reads counter snapshots.
type MonitoringPort interface {
	LatestOnDay(ctx context.Context, machineID int64, day time.Time) (*monitoring.Snapshot, error)
	LatestBefore(ctx context.Context, machineID int64, day time.Time) (*monitoring.Snapshot, error)
}

// MovementsPort supplies load cost and maintains the derived issue draft.
type MovementsPort interface {
	AvgLoadCost(ctx context.Context, machineID int64, until time.Time) (decimal.Decimal, error)
	UpsertDraftIssue(ctx context.Context, date time.Time, machineID int64, description string, items []movements.Item) (int64, error)
}

// StockPort reads machine stock for the consumption write-off.
type StockPort interface {
	ListMachineStock(ctx context.Context, machineID int64) ([]stock.MachineStock, error)
}

// Service derives and aggregates machine reports.
type Service struct {
	repo     RepositoryPort
	machines MachinesPort
	rents    RentsPort
	counters MonitoringPort
	moves    MovementsPort
	stocks   StockPort
	cache    *cache.JSONCache
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, machines MachinesPort, rents RentsPort,
	counters MonitoringPort, moves MovementsPort, stocks StockPort,
	c *cache.JSONCache, logger *slog.Logger) *Service {
	return &Service{
		repo: repo, machines: machines, rents: rents,
		counters: counters, moves: moves, stocks: stocks,
		cache: c, logger: logger,
	}
}

const aggCachePrefix = "reports:agg:"

// ComputeReports derives a Report for every active machine with a snapshot
// on the given day, writes the toy write-off draft and upserts the rows.
// Rerunning on the same date reproduces the same values.
func (s *Service) ComputeReports(ctx context.Context, reportDate time.Time) (ComputeSummary, error) {
	day := shared.TruncateDay(reportDate)
	summary := ComputeSummary{ReportDate: day}

	machines, err := s.machines.ActiveMachines(ctx)
	if err != nil {
		return summary, err
	}
	for _, m := range machines {
		processed, err := s.computeMachine(ctx, day, m)
		if err != nil {
			return summary, fmt.Errorf("machine %d: %w", m.ID, err)
		}
		if processed {
			summary.Processed++
		} else {
			summary.Skipped++
		}
	}
	s.cache.Invalidate(ctx, aggCachePrefix+"*")
	return summary, nil
}

func (s *Service) computeMachine(ctx context.Context, day time.Time, m masterdata.Machine) (bool, error) {
	today, err := s.counters.LatestOnDay(ctx, m.ID, day)
	if err != nil {
		return false, err
	}
	if today == nil {
		return false, nil
	}
	prev, err := s.counters.LatestBefore(ctx, m.ID, day)
	if err != nil {
		return false, err
	}

	var coinsDiff, toysDiff int64
	daysCount := 1
	if prev != nil {
		coinsDiff = max(0, today.Coins-prev.Coins)
		toysDiff = max(0, today.Toys-prev.Toys)
		daysCount = int(shared.TruncateDay(today.Date).Sub(shared.TruncateDay(prev.Date)).Hours() / 24)
		if daysCount < 0 {
			daysCount = 0
		}
	} else {
		coinsDiff = today.Coins
		toysDiff = today.Toys
	}

	revenue := decimal.NewFromInt(coinsDiff).Mul(CoinValue)

	var playsPerToy decimal.Decimal
	if m.GameCost.IsPositive() && toysDiff > 0 {
		games := decimal.NewFromInt(coinsDiff).Div(m.GameCost)
		playsPerToy = games.DivRound(decimal.NewFromInt(toysDiff), 2)
	}

	avgCost, err := s.moves.AvgLoadCost(ctx, m.ID, day)
	if err != nil {
		return false, err
	}
	dayExpense := avgCost.Mul(decimal.NewFromInt(toysDiff))

	rentCost, err := s.rentCost(ctx, m, day, daysCount)
	if err != nil {
		return false, err
	}

	rep := Report{
		ReportDate:     day,
		MachineID:      m.ID,
		Revenue:        revenue,
		ToyConsumption: toysDiff,
		PlaysPerToy:    playsPerToy,
		Profit:         revenue.Sub(dayExpense).Sub(rentCost),
		DaysCount:      daysCount,
		RentCost:       rentCost,
	}
	if _, err := s.repo.Upsert(ctx, rep); err != nil {
		return false, err
	}

	if toysDiff > 0 {
		if err := s.writeOffToys(ctx, day, m.ID, toysDiff, avgCost); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Service) rentCost(ctx context.Context, m masterdata.Machine, day time.Time, daysCount int) (decimal.Decimal, error) {
	if m.RentID == nil {
		return decimal.Zero, nil
	}
	rent, err := s.rents.RentCovering(ctx, *m.RentID, day)
	if errors.Is(err, masterdata.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	daily := rent.Amount.Div(decimal.NewFromInt(int64(shared.DaysInMonth(rent.StartDate))))
	return daily.Mul(decimal.NewFromInt(int64(daysCount))).Round(2), nil
}

// writeOffToys maintains the draft issue movement recording the day's toy
// consumption, distributing the quantity across the machine's stock rows in
// row order. Any excess over on-hand stock lands on the last item so the
// document total always equals the counter difference.
func (s *Service) writeOffToys(ctx context.Context, day time.Time, machineID, toysDiff int64, unitCost decimal.Decimal) error {
	rows, err := s.stocks.ListMachineStock(ctx, machineID)
	if err != nil {
		return err
	}
	items := distribute(rows, toysDiff, unitCost)
	if len(items) == 0 {
		s.logger.Warn("toy write-off skipped, machine has no stock",
			slog.Int64("machine_id", machineID), slog.Int64("toys", toysDiff))
		return nil
	}
	desc := fmt.Sprintf("Расход игрушек по мониторингу %s", day.Format(shared.DateLayout))
	_, err = s.moves.UpsertDraftIssue(ctx, day, machineID, desc, items)
	return err
}

func distribute(rows []stock.MachineStock, total int64, price decimal.Decimal) []movements.Item {
	remaining := decimal.NewFromInt(total)
	var items []movements.Item
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		if !row.Quantity.IsPositive() {
			continue
		}
		take := decimal.Min(row.Quantity, remaining)
		items = append(items, movements.Item{ItemID: row.ItemID, Quantity: take, Price: price})
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() && len(items) > 0 {
		last := len(items) - 1
		items[last].Quantity = items[last].Quantity.Add(remaining)
	}
	return items
}

// Get returns the stored report for one machine and day.
func (s *Service) Get(ctx context.Context, date time.Time, machineID int64) (Report, error) {
	return s.repo.Get(ctx, shared.TruncateDay(date), machineID)
}

// List returns daily report rows in [from, to).
func (s *Service) List(ctx context.Context, from, to time.Time, machineID int64) ([]Report, error) {
	return s.repo.List(ctx, shared.TruncateDay(from), shared.TruncateDay(to), machineID)
}

// Aggregate folds daily rows in [from, to) into period buckets. Results are
// cached until the next derivation run.
func (s *Service) Aggregate(ctx context.Context, period Period, from, to time.Time, machineID int64) ([]Bucket, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadPeriod, period)
	}
	from = shared.TruncateDay(from)
	to = shared.TruncateDay(to)

	key := fmt.Sprintf("%s%s:%s:%s:%d", aggCachePrefix, period,
		from.Format(shared.DateLayout), to.Format(shared.DateLayout), machineID)
	var cached []Bucket
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.List(ctx, from, to, machineID)
	if err != nil {
		return nil, err
	}

	var order []string
	byLabel := make(map[string]*Bucket)
	for _, rep := range rows {
		label := bucketLabel(period, rep.ReportDate)
		b, ok := byLabel[label]
		if !ok {
			b = &Bucket{Label: label}
			byLabel[label] = b
			order = append(order, label)
		}
		b.Revenue = b.Revenue.Add(rep.Revenue)
		b.Profit = b.Profit.Add(rep.Profit)
		b.ToyConsumption += rep.ToyConsumption
		b.RentCost = b.RentCost.Add(rep.RentCost)
		b.DaysCount += rep.DaysCount
	}

	buckets := make([]Bucket, 0, len(order))
	for _, label := range order {
		b := byLabel[label]
		b.CoinsEarned = b.Revenue.Div(CoinValue)
		buckets = append(buckets, *b)
	}
	s.cache.Set(ctx, key, buckets)
	return buckets, nil
}

func bucketLabel(period Period, date time.Time) string {
	switch period {
	case PeriodWeekly:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonthly:
		return date.Format("2006-01")
	case PeriodQuarterly:
		return fmt.Sprintf("%d-Q%d", date.Year(), (int(date.Month())-1)/3+1)
	case PeriodHalfYear:
		return fmt.Sprintf("%d-H%d", date.Year(), (int(date.Month())-1)/6+1)
	case PeriodYearly:
		return date.Format("2006")
	default:
		return date.Format(shared.DateLayout)
	}
}
