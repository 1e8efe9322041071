package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/notifier"
	"github.com/cranefleet/cranefleet/internal/reports"
	"github.com/cranefleet/cranefleet/internal/scheduler"
	"github.com/cranefleet/cranefleet/internal/stock"
	"github.com/cranefleet/cranefleet/internal/terminalops"
	"github.com/cranefleet/cranefleet/internal/vendista"
)

type notifyCall struct {
	typ      string
	title    string
	msg      string
	priority notifier.Priority
}

type stubNotify struct{ calls []notifyCall }

func (s *stubNotify) Send(_ context.Context, typ, title, msg string, priority notifier.Priority) (notifier.SendResult, error) {
	s.calls = append(s.calls, notifyCall{typ: typ, title: title, msg: msg, priority: priority})
	return notifier.SendResult{Success: true, SentTo: 1}, nil
}

type stubSync struct{ result vendista.SyncResult }

func (s *stubSync) Sync(context.Context, time.Time) (vendista.SyncResult, error) {
	return s.result, nil
}

type stubClose struct{ summary terminalops.CloseSummary }

func (s *stubClose) CloseDay(context.Context, time.Time, *int64) (terminalops.CloseSummary, error) {
	return s.summary, nil
}

type stubReports struct{ computed []time.Time }

func (s *stubReports) ComputeReports(_ context.Context, date time.Time) (reports.ComputeSummary, error) {
	s.computed = append(s.computed, date)
	return reports.ComputeSummary{ReportDate: date, Processed: 1}, nil
}

type stubStock struct{ rows []stock.LowStockRow }

func (s *stubStock) LowStock(context.Context) ([]stock.LowStockRow, error) {
	return s.rows, nil
}

type stubFleet struct {
	phones []masterdata.Phone
	rents  []masterdata.Rent
}

func (s *stubFleet) ListPhones(context.Context, masterdata.ListFilter) ([]masterdata.Phone, error) {
	return s.phones, nil
}

func (s *stubFleet) ListRents(context.Context, int, int) ([]masterdata.Rent, error) {
	return s.rents, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v int64) *int64 { return &v }

type deps struct {
	notify  *stubNotify
	sync    *stubSync
	close   *stubClose
	reports *stubReports
	stock   *stubStock
	fleet   *stubFleet
}

func newRegistry(d *deps) *scheduler.Registry {
	return BuildRegistry(RegistryDeps{
		Sync:    d.sync,
		Close:   d.close,
		Reports: d.reports,
		Stock:   d.stock,
		Fleet:   d.fleet,
		Notify:  d.notify,
		Logger:  slog.Default(),
	})
}

func newDeps() *deps {
	return &deps{
		notify:  &stubNotify{},
		sync:    &stubSync{},
		close:   &stubClose{},
		reports: &stubReports{},
		stock:   &stubStock{},
		fleet:   &stubFleet{},
	}
}

func run(t *testing.T, registry *scheduler.Registry, name string) {
	t.Helper()
	fn, err := registry.Resolve(name)
	require.NoError(t, err)
	require.NoError(t, fn(context.Background(), scheduler.Params{"date": scheduler.Today}))
}

func TestBuildRegistryCoversBuiltins(t *testing.T) {
	registry := newRegistry(newDeps())
	for _, builtin := range scheduler.Builtins() {
		_, err := registry.Resolve(builtin.FunctionName)
		require.NoError(t, err, "built-in %s has no registered function", builtin.Name)
	}
}

func TestSyncJobNotifiesOnErrors(t *testing.T) {
	d := newDeps()
	d.sync.result = vendista.SyncResult{
		Success:         true,
		SyncedTerminals: 2,
		Errors: []vendista.SyncError{
			{OwnerID: 1, TerminalID: 7, Message: "нет учётных данных"},
		},
	}
	run(t, newRegistry(d), "vendista:sync")

	require.Len(t, d.notify.calls, 1)
	call := d.notify.calls[0]
	require.Equal(t, notifier.TypeSyncError, call.typ)
	require.Equal(t, notifier.PriorityHigh, call.priority)
	require.Contains(t, call.msg, "терминал 7")

	d2 := newDeps()
	d2.sync.result = vendista.SyncResult{Success: true, SyncedTerminals: 2}
	run(t, newRegistry(d2), "vendista:sync")
	require.Empty(t, d2.notify.calls, "clean sync must not notify")
}

func TestCloseDayJobReportsTotals(t *testing.T) {
	d := newDeps()
	d.close.summary = terminalops.CloseSummary{
		OperationDate:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ClosedRows:         3,
		PostedTransactions: 2,
		TotalNet:           dec("12345.60"),
	}
	run(t, newRegistry(d), "terminals:close-day")

	require.Len(t, d.notify.calls, 1)
	require.Equal(t, notifier.TypeDayClose, d.notify.calls[0].typ)
	require.Contains(t, d.notify.calls[0].msg, "2026-03-10")
	require.Contains(t, d.notify.calls[0].msg, "операций 3")
}

func TestLowStockJobSkipsWhenHealthy(t *testing.T) {
	d := newDeps()
	run(t, newRegistry(d), "alerts:low-stock")
	require.Empty(t, d.notify.calls)

	d.stock.rows = []stock.LowStockRow{
		{MachineID: ptr(4), ItemID: 9, ItemName: "Мишка", SKU: "TOY-9", Quantity: dec("2"), Threshold: dec("5")},
	}
	run(t, newRegistry(d), "alerts:low-stock")
	require.Len(t, d.notify.calls, 1)
	require.Equal(t, notifier.TypeLowStock, d.notify.calls[0].typ)
	require.Contains(t, d.notify.calls[0].msg, "Мишка")
	require.Contains(t, d.notify.calls[0].msg, "автомат 4")
}

func TestPaymentDuePhoneWindow(t *testing.T) {
	today := time.Now().UTC()
	d := newDeps()
	d.fleet.phones = []masterdata.Phone{
		{ID: 1, Number: "+7 900 000-00-01", Operator: "МТС", PaymentDay: today.Day(), MonthlyCost: dec("350")},
		{ID: 2, Number: "+7 900 000-00-02", Operator: "Билайн", PaymentDay: farDay(today), MonthlyCost: dec("400")},
	}
	run(t, newRegistry(d), "alerts:payment-due-phone")

	require.Len(t, d.notify.calls, 1)
	msg := d.notify.calls[0].msg
	require.Contains(t, msg, "+7 900 000-00-01")
	require.Contains(t, msg, "сегодня")
	require.NotContains(t, msg, "+7 900 000-00-02")
}

func TestPaymentDueRentSkipsExpiredContracts(t *testing.T) {
	today := time.Now().UTC()
	d := newDeps()
	d.fleet.rents = []masterdata.Rent{
		{ID: 1, Location: "ТЦ Меридиан", Amount: dec("30000"),
			StartDate: today.AddDate(-1, 0, 0), EndDate: today.AddDate(1, 0, 0), PaymentDay: today.Day()},
		{ID: 2, Location: "ТЦ Закрытый", Amount: dec("20000"),
			StartDate: today.AddDate(-2, 0, 0), EndDate: today.AddDate(0, 0, -10), PaymentDay: today.Day()},
	}
	run(t, newRegistry(d), "alerts:payment-due-rent")

	require.Len(t, d.notify.calls, 1)
	require.Contains(t, d.notify.calls[0].msg, "Меридиан")
	require.NotContains(t, d.notify.calls[0].msg, "Закрытый")
}

func TestDueWithinClampsToMonthEnd(t *testing.T) {
	feb27 := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	due, in := dueWithin(31, feb27)
	require.True(t, due, "day 31 clamps to Feb 28")
	require.Equal(t, 1, in)

	due, _ = dueWithin(15, feb27)
	require.False(t, due)

	due, _ = dueWithin(0, feb27)
	require.False(t, due)
}

// farDay returns a day of month well outside the lookahead window of t.
func farDay(t time.Time) int {
	return (t.Day()+13)%27 + 1
}
