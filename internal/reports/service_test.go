package reports

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/monitoring"
	"github.com/cranefleet/cranefleet/internal/movements"
	"github.com/cranefleet/cranefleet/internal/platform/cache"
	"github.com/cranefleet/cranefleet/internal/shared"
	"github.com/cranefleet/cranefleet/internal/stock"
)

type reportKey struct {
	date    string
	machine int64
}

type memReports struct {
	rows   map[reportKey]Report
	nextID int64
}

func newMemReports() *memReports {
	return &memReports{rows: make(map[reportKey]Report), nextID: 1}
}

func (m *memReports) key(date time.Time, machineID int64) reportKey {
	return reportKey{date: date.Format(shared.DateLayout), machine: machineID}
}

func (m *memReports) Upsert(_ context.Context, rep Report) (Report, error) {
	k := m.key(rep.ReportDate, rep.MachineID)
	if old, ok := m.rows[k]; ok {
		rep.ID = old.ID
		rep.CreatedAt = old.CreatedAt
	} else {
		rep.ID = m.nextID
		m.nextID++
		rep.CreatedAt = time.Now().UTC()
	}
	m.rows[k] = rep
	return rep, nil
}

func (m *memReports) Get(_ context.Context, date time.Time, machineID int64) (Report, error) {
	rep, ok := m.rows[m.key(date, machineID)]
	if !ok {
		return Report{}, ErrNotFound
	}
	return rep, nil
}

func (m *memReports) List(_ context.Context, from, to time.Time, machineID int64) ([]Report, error) {
	var out []Report
	for _, rep := range m.rows {
		if rep.ReportDate.Before(from) || !rep.ReportDate.Before(to) {
			continue
		}
		if machineID > 0 && rep.MachineID != machineID {
			continue
		}
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportDate.Equal(out[j].ReportDate) {
			return out[i].ReportDate.Before(out[j].ReportDate)
		}
		return out[i].MachineID < out[j].MachineID
	})
	return out, nil
}

type stubMachines struct{ machines []masterdata.Machine }

func (s *stubMachines) ActiveMachines(context.Context) ([]masterdata.Machine, error) {
	return s.machines, nil
}

type stubRents struct{ rents map[int64]masterdata.Rent }

func (s *stubRents) RentCovering(_ context.Context, rentID int64, day time.Time) (masterdata.Rent, error) {
	rent, ok := s.rents[rentID]
	if !ok || day.Before(rent.StartDate) || day.After(rent.EndDate) {
		return masterdata.Rent{}, masterdata.ErrNotFound
	}
	return rent, nil
}

type stubCounters struct{ snapshots map[int64][]monitoring.Snapshot }

func (s *stubCounters) LatestOnDay(_ context.Context, machineID int64, day time.Time) (*monitoring.Snapshot, error) {
	return s.pick(machineID, func(t time.Time) bool {
		return !t.Before(day) && t.Before(day.AddDate(0, 0, 1))
	}), nil
}

func (s *stubCounters) LatestBefore(_ context.Context, machineID int64, day time.Time) (*monitoring.Snapshot, error) {
	return s.pick(machineID, func(t time.Time) bool { return t.Before(day) }), nil
}

func (s *stubCounters) pick(machineID int64, match func(time.Time) bool) *monitoring.Snapshot {
	var best *monitoring.Snapshot
	for i, snap := range s.snapshots[machineID] {
		if !match(snap.Date) {
			continue
		}
		if best == nil || snap.Date.After(best.Date) ||
			(snap.Date.Equal(best.Date) && snap.Coins > best.Coins) {
			best = &s.snapshots[machineID][i]
		}
	}
	return best
}

type draftCall struct {
	date        time.Time
	machineID   int64
	description string
	items       []movements.Item
}

type stubMoves struct {
	avgCost map[int64]decimal.Decimal
	drafts  map[reportKey]draftCall
	nextID  int64
}

func newStubMoves() *stubMoves {
	return &stubMoves{avgCost: make(map[int64]decimal.Decimal), drafts: make(map[reportKey]draftCall), nextID: 100}
}

func (s *stubMoves) AvgLoadCost(_ context.Context, machineID int64, _ time.Time) (decimal.Decimal, error) {
	return s.avgCost[machineID], nil
}

func (s *stubMoves) UpsertDraftIssue(_ context.Context, date time.Time, machineID int64, description string, items []movements.Item) (int64, error) {
	k := reportKey{date: date.Format(shared.DateLayout), machine: machineID}
	s.drafts[k] = draftCall{date: date, machineID: machineID, description: description, items: items}
	s.nextID++
	return s.nextID, nil
}

type stubStocks struct{ rows map[int64][]stock.MachineStock }

func (s *stubStocks) ListMachineStock(_ context.Context, machineID int64) ([]stock.MachineStock, error) {
	return s.rows[machineID], nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v int64) *int64 { return &v }

func day(s string) time.Time {
	t, err := shared.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	service  *Service
	repo     *memReports
	machines *stubMachines
	rents    *stubRents
	counters *stubCounters
	moves    *stubMoves
	stocks   *stubStocks
}

func newFixture(c *cache.JSONCache) *fixture {
	f := &fixture{
		repo:     newMemReports(),
		machines: &stubMachines{},
		rents:    &stubRents{rents: make(map[int64]masterdata.Rent)},
		counters: &stubCounters{snapshots: make(map[int64][]monitoring.Snapshot)},
		moves:    newStubMoves(),
		stocks:   &stubStocks{rows: make(map[int64][]stock.MachineStock)},
	}
	f.service = NewService(f.repo, f.machines, f.rents, f.counters, f.moves, f.stocks,
		c, slog.Default())
	return f
}

func TestComputeDerivesDailyReport(t *testing.T) {
	f := newFixture(nil)
	d := day("2026-03-10")

	f.machines.machines = []masterdata.Machine{{ID: 1, Name: "M1", GameCost: dec("5")}}
	f.counters.snapshots[1] = []monitoring.Snapshot{
		{MachineID: 1, Date: d.AddDate(0, 0, -1), Coins: 1000, Toys: 100},
		{MachineID: 1, Date: d, Coins: 1500, Toys: 120},
	}
	f.moves.avgCost[1] = dec("2.00")
	f.stocks.rows[1] = []stock.MachineStock{
		{MachineID: 1, ItemID: 5, Quantity: dec("15")},
		{MachineID: 1, ItemID: 6, Quantity: dec("30")},
	}

	summary, err := f.service.ComputeReports(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 0, summary.Skipped)

	rep, err := f.service.Get(context.Background(), d, 1)
	require.NoError(t, err)
	require.True(t, dec("5000").Equal(rep.Revenue), "revenue %s", rep.Revenue)
	require.EqualValues(t, 20, rep.ToyConsumption)
	require.True(t, dec("5").Equal(rep.PlaysPerToy), "plays per toy %s", rep.PlaysPerToy)
	require.True(t, dec("4960").Equal(rep.Profit), "profit %s", rep.Profit)
	require.True(t, rep.RentCost.IsZero())
	require.Equal(t, 1, rep.DaysCount)

	draft, ok := f.moves.drafts[reportKey{date: "2026-03-10", machine: 1}]
	require.True(t, ok, "expected a draft issue movement")
	require.Len(t, draft.items, 2)
	require.EqualValues(t, 5, draft.items[0].ItemID)
	require.True(t, dec("15").Equal(draft.items[0].Quantity))
	require.EqualValues(t, 6, draft.items[1].ItemID)
	require.True(t, dec("5").Equal(draft.items[1].Quantity))
	for _, it := range draft.items {
		require.True(t, dec("2.00").Equal(it.Price))
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	d := day("2026-03-10")

	f.machines.machines = []masterdata.Machine{{ID: 1, GameCost: dec("5")}}
	f.counters.snapshots[1] = []monitoring.Snapshot{
		{MachineID: 1, Date: d.AddDate(0, 0, -1), Coins: 1000, Toys: 100},
		{MachineID: 1, Date: d, Coins: 1500, Toys: 120},
	}
	f.moves.avgCost[1] = dec("2.00")
	f.stocks.rows[1] = []stock.MachineStock{{MachineID: 1, ItemID: 5, Quantity: dec("50")}}

	_, err := f.service.ComputeReports(context.Background(), d)
	require.NoError(t, err)
	first, err := f.service.Get(context.Background(), d, 1)
	require.NoError(t, err)
	firstDraft := f.moves.drafts[reportKey{date: "2026-03-10", machine: 1}]

	_, err = f.service.ComputeReports(context.Background(), d)
	require.NoError(t, err)
	second, err := f.service.Get(context.Background(), d, 1)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.True(t, first.Revenue.Equal(second.Revenue))
	require.True(t, first.Profit.Equal(second.Profit))
	require.Equal(t, firstDraft, f.moves.drafts[reportKey{date: "2026-03-10", machine: 1}])
}

func TestComputeSkipsMachineWithoutSnapshot(t *testing.T) {
	f := newFixture(nil)
	f.machines.machines = []masterdata.Machine{{ID: 1, GameCost: dec("5")}}

	summary, err := f.service.ComputeReports(context.Background(), day("2026-03-10"))
	require.NoError(t, err)
	require.Equal(t, 0, summary.Processed)
	require.Equal(t, 1, summary.Skipped)
}

func TestComputeFirstSnapshotBaseline(t *testing.T) {
	f := newFixture(nil)
	d := day("2026-03-10")
	f.machines.machines = []masterdata.Machine{{ID: 1, GameCost: dec("10")}}
	f.counters.snapshots[1] = []monitoring.Snapshot{{MachineID: 1, Date: d, Coins: 40, Toys: 4}}
	f.stocks.rows[1] = []stock.MachineStock{{MachineID: 1, ItemID: 9, Quantity: dec("10")}}

	_, err := f.service.ComputeReports(context.Background(), d)
	require.NoError(t, err)

	rep, err := f.service.Get(context.Background(), d, 1)
	require.NoError(t, err)
	require.True(t, dec("400").Equal(rep.Revenue))
	require.EqualValues(t, 4, rep.ToyConsumption)
	require.Equal(t, 1, rep.DaysCount)
}

func TestComputeAmortisesRentOverGap(t *testing.T) {
	f := newFixture(nil)
	d := day("2026-01-20")
	f.machines.machines = []masterdata.Machine{{ID: 1, GameCost: dec("10"), RentID: ptr(3)}}
	f.rents.rents[3] = masterdata.Rent{
		ID: 3, Amount: dec("3100"),
		StartDate: day("2026-01-01"), EndDate: day("2026-12-31"),
	}
	f.counters.snapshots[1] = []monitoring.Snapshot{
		{MachineID: 1, Date: d.AddDate(0, 0, -2), Coins: 100, Toys: 10},
		{MachineID: 1, Date: d, Coins: 200, Toys: 10},
	}

	_, err := f.service.ComputeReports(context.Background(), d)
	require.NoError(t, err)

	rep, err := f.service.Get(context.Background(), d, 1)
	require.NoError(t, err)
	require.Equal(t, 2, rep.DaysCount)
	require.True(t, dec("200.00").Equal(rep.RentCost), "rent cost %s", rep.RentCost)
	require.True(t, dec("800.00").Equal(rep.Profit), "profit %s", rep.Profit)
	_, hasDraft := f.moves.drafts[reportKey{date: "2026-01-20", machine: 1}]
	require.False(t, hasDraft, "no toys consumed, no draft expected")
}

func TestComputeExcessConsumptionLandsOnLastItem(t *testing.T) {
	f := newFixture(nil)
	d := day("2026-03-10")
	f.machines.machines = []masterdata.Machine{{ID: 1, GameCost: dec("5")}}
	f.counters.snapshots[1] = []monitoring.Snapshot{{MachineID: 1, Date: d, Coins: 100, Toys: 20}}
	f.moves.avgCost[1] = dec("1.50")
	f.stocks.rows[1] = []stock.MachineStock{
		{MachineID: 1, ItemID: 5, Quantity: dec("4")},
		{MachineID: 1, ItemID: 6, Quantity: dec("6")},
	}

	_, err := f.service.ComputeReports(context.Background(), d)
	require.NoError(t, err)

	draft := f.moves.drafts[reportKey{date: "2026-03-10", machine: 1}]
	require.Len(t, draft.items, 2)
	require.True(t, dec("4").Equal(draft.items[0].Quantity))
	require.True(t, dec("16").Equal(draft.items[1].Quantity))
}

func TestAggregateBucketsByPeriod(t *testing.T) {
	f := newFixture(nil)
	seed := []Report{
		{ReportDate: day("2026-01-10"), MachineID: 1, Revenue: dec("100"), Profit: dec("80"), ToyConsumption: 2, DaysCount: 1},
		{ReportDate: day("2026-01-20"), MachineID: 1, Revenue: dec("200"), Profit: dec("150"), ToyConsumption: 3, DaysCount: 1},
		{ReportDate: day("2026-02-05"), MachineID: 1, Revenue: dec("50"), Profit: dec("40"), ToyConsumption: 1, DaysCount: 1},
	}
	for _, rep := range seed {
		_, err := f.repo.Upsert(context.Background(), rep)
		require.NoError(t, err)
	}

	buckets, err := f.service.Aggregate(context.Background(), PeriodMonthly,
		day("2026-01-01"), day("2026-03-01"), 0)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	require.Equal(t, "2026-01", buckets[0].Label)
	require.True(t, dec("300").Equal(buckets[0].Revenue))
	require.True(t, dec("230").Equal(buckets[0].Profit))
	require.EqualValues(t, 5, buckets[0].ToyConsumption)
	require.True(t, dec("30").Equal(buckets[0].CoinsEarned))
	require.Equal(t, 2, buckets[0].DaysCount)

	require.Equal(t, "2026-02", buckets[1].Label)
	require.True(t, dec("50").Equal(buckets[1].Revenue))

	_, err = f.service.Aggregate(context.Background(), Period("decade"),
		day("2026-01-01"), day("2026-03-01"), 0)
	require.ErrorIs(t, err, ErrBadPeriod)
}

func TestBucketLabels(t *testing.T) {
	d := day("2026-08-29")
	require.Equal(t, "2026-08-29", bucketLabel(PeriodDaily, d))
	require.Equal(t, "2026-W35", bucketLabel(PeriodWeekly, d))
	require.Equal(t, "2026-08", bucketLabel(PeriodMonthly, d))
	require.Equal(t, "2026-Q3", bucketLabel(PeriodQuarterly, d))
	require.Equal(t, "2026-H2", bucketLabel(PeriodHalfYear, d))
	require.Equal(t, "2026", bucketLabel(PeriodYearly, d))
}

func TestAggregateCachesUntilRecompute(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newFixture(cache.NewJSONCache(client, "test:", time.Hour))

	_, err := f.repo.Upsert(context.Background(), Report{
		ReportDate: day("2026-01-10"), MachineID: 1, Revenue: dec("100"), Profit: dec("80"), DaysCount: 1,
	})
	require.NoError(t, err)

	first, err := f.service.Aggregate(context.Background(), PeriodMonthly,
		day("2026-01-01"), day("2026-02-01"), 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = f.repo.Upsert(context.Background(), Report{
		ReportDate: day("2026-01-15"), MachineID: 1, Revenue: dec("100"), Profit: dec("80"), DaysCount: 1,
	})
	require.NoError(t, err)

	cached, err := f.service.Aggregate(context.Background(), PeriodMonthly,
		day("2026-01-01"), day("2026-02-01"), 0)
	require.NoError(t, err)
	require.True(t, dec("100").Equal(cached[0].Revenue), "expected the cached bucket")

	f.machines.machines = nil
	_, err = f.service.ComputeReports(context.Background(), day("2026-01-15"))
	require.NoError(t, err)

	fresh, err := f.service.Aggregate(context.Background(), PeriodMonthly,
		day("2026-01-01"), day("2026-02-01"), 0)
	require.NoError(t, err)
	require.True(t, dec("200").Equal(fresh[0].Revenue), "expected recomputed bucket")
}
