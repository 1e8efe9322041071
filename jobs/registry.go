package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/notifier"
	"github.com/cranefleet/cranefleet/internal/observability"
	"github.com/cranefleet/cranefleet/internal/reports"
	"github.com/cranefleet/cranefleet/internal/scheduler"
	"github.com/cranefleet/cranefleet/internal/shared"
	"github.com/cranefleet/cranefleet/internal/stock"
	"github.com/cranefleet/cranefleet/internal/terminalops"
	"github.com/cranefleet/cranefleet/internal/vendista"
)

// paymentDueWindow is how many days ahead payment-due alerts look.
const paymentDueWindow = 3

// SyncPort runs the acquirer synchronisation.
type SyncPort interface {
	Sync(ctx context.Context, date time.Time) (vendista.SyncResult, error)
}

// ClosePort closes a terminal operation day.
type ClosePort interface {
	CloseDay(ctx context.Context, date time.Time, closedBy *int64) (terminalops.CloseSummary, error)
}

// ReportsPort recomputes daily reports.
type ReportsPort interface {
	ComputeReports(ctx context.Context, date time.Time) (reports.ComputeSummary, error)
}

// StockPort lists low stock rows.
type StockPort interface {
	LowStock(ctx context.Context) ([]stock.LowStockRow, error)
}

// FleetPort lists phones and rents for the payment-due checks.
type FleetPort interface {
	ListPhones(ctx context.Context, filter masterdata.ListFilter) ([]masterdata.Phone, error)
	ListRents(ctx context.Context, limit, offset int) ([]masterdata.Rent, error)
}

// NotifyPort dispatches notifications.
type NotifyPort interface {
	Send(ctx context.Context, typ, title, msg string, priority notifier.Priority) (notifier.SendResult, error)
}

// RegistryDeps collects the services the built-in jobs call.
type RegistryDeps struct {
	Sync    SyncPort
	Close   ClosePort
	Reports ReportsPort
	Stock   StockPort
	Fleet   FleetPort
	Notify  NotifyPort
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// BuildRegistry binds every built-in function name.
func BuildRegistry(deps RegistryDeps) *scheduler.Registry {
	registry := scheduler.NewRegistry()

	registry.Register("vendista:sync", func(ctx context.Context, params scheduler.Params) error {
		date, err := params.Date("date")
		if err != nil {
			return err
		}
		result, err := deps.Sync.Sync(ctx, date)
		if err != nil {
			return err
		}
		deps.Metrics.AddSyncErrors(len(result.Errors))
		if len(result.Errors) > 0 {
			_, nerr := deps.Notify.Send(ctx, notifier.TypeSyncError,
				"Ошибки синхронизации Вендисты",
				syncErrorMessage(result), notifier.PriorityHigh)
			if nerr != nil {
				deps.Logger.Warn("sync error notification failed", slog.Any("error", nerr))
			}
		}
		return nil
	})

	registry.Register("terminals:close-day", func(ctx context.Context, params scheduler.Params) error {
		date, err := params.Date("date")
		if err != nil {
			return err
		}
		summary, err := deps.Close.CloseDay(ctx, date, nil)
		if err != nil {
			return err
		}
		if summary.ClosedRows > 0 {
			msg := fmt.Sprintf("Закрыт день %s: операций %d, проводок %d, выручка %s ₽",
				summary.OperationDate.Format(shared.DateLayout),
				summary.ClosedRows, summary.PostedTransactions,
				notifier.FormatAmount(summary.TotalNet))
			_, nerr := deps.Notify.Send(ctx, notifier.TypeDayClose, "Закрытие дня", msg, notifier.PriorityLow)
			if nerr != nil {
				deps.Logger.Warn("day close notification failed", slog.Any("error", nerr))
			}
		}
		return nil
	})

	registry.Register("reports:compute", func(ctx context.Context, params scheduler.Params) error {
		date, err := params.Date("date")
		if err != nil {
			return err
		}
		_, err = deps.Reports.ComputeReports(ctx, date)
		return err
	})

	registry.Register("alerts:low-stock", func(ctx context.Context, _ scheduler.Params) error {
		rows, err := deps.Stock.LowStock(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = deps.Notify.Send(ctx, notifier.TypeLowStock,
			"Низкие остатки", lowStockMessage(rows), notifier.PriorityHigh)
		return err
	})

	registry.Register("alerts:payment-due-phone", func(ctx context.Context, _ scheduler.Params) error {
		phones, err := deps.Fleet.ListPhones(ctx, masterdata.ListFilter{})
		if err != nil {
			return err
		}
		var lines []string
		for _, p := range phones {
			if due, in := dueWithin(p.PaymentDay, time.Now().UTC()); due {
				lines = append(lines, fmt.Sprintf("• %s (%s): %s ₽, %s",
					p.Number, p.Operator, notifier.FormatAmount(p.MonthlyCost), dueLabel(in)))
			}
		}
		if len(lines) == 0 {
			return nil
		}
		_, err = deps.Notify.Send(ctx, notifier.TypePaymentDue,
			"Оплата телефонов", strings.Join(lines, "\n"), notifier.PriorityMedium)
		return err
	})

	registry.Register("alerts:payment-due-rent", func(ctx context.Context, _ scheduler.Params) error {
		rents, err := deps.Fleet.ListRents(ctx, 1000, 0)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		var lines []string
		for _, rent := range rents {
			if now.Before(rent.StartDate) || now.After(rent.EndDate) {
				continue
			}
			if due, in := dueWithin(rent.PaymentDay, now); due {
				lines = append(lines, fmt.Sprintf("• %s: %s ₽, %s",
					rent.Location, notifier.FormatAmount(rent.Amount), dueLabel(in)))
			}
		}
		if len(lines) == 0 {
			return nil
		}
		_, err = deps.Notify.Send(ctx, notifier.TypePaymentDue,
			"Оплата аренды", strings.Join(lines, "\n"), notifier.PriorityMedium)
		return err
	})

	return registry
}

// dueWithin reports whether a monthly payment day falls inside the lookahead
// window, and in how many days. Payment days past the month's end clamp to
// its last day.
func dueWithin(paymentDay int, now time.Time) (bool, int) {
	if paymentDay <= 0 {
		return false, 0
	}
	today := shared.TruncateDay(now)
	for offset := 0; offset < paymentDueWindow; offset++ {
		d := today.AddDate(0, 0, offset)
		due := paymentDay
		if last := shared.DaysInMonth(d); due > last {
			due = last
		}
		if d.Day() == due {
			return true, offset
		}
	}
	return false, 0
}

func dueLabel(in int) string {
	switch in {
	case 0:
		return "сегодня"
	case 1:
		return "завтра"
	default:
		return fmt.Sprintf("через %d дн.", in)
	}
}

func lowStockMessage(rows []stock.LowStockRow) string {
	var b strings.Builder
	for _, row := range rows {
		place := "склад"
		id := int64(0)
		if row.MachineID != nil {
			place = "автомат"
			id = *row.MachineID
		} else if row.WarehouseID != nil {
			id = *row.WarehouseID
		}
		fmt.Fprintf(&b, "• %s (%s), %s %d: осталось %s при минимуме %s\n",
			row.ItemName, row.SKU, place, id, row.Quantity, row.Threshold)
	}
	return strings.TrimRight(b.String(), "\n")
}

func syncErrorMessage(result vendista.SyncResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Синхронизировано терминалов: %d, ошибок: %d\n",
		result.SyncedTerminals, len(result.Errors))
	for _, e := range result.Errors {
		fmt.Fprintf(&b, "• владелец %d, терминал %d: %s\n", e.OwnerID, e.TerminalID, e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
