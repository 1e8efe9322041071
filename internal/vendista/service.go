package vendista

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/shared"
	"github.com/cranefleet/cranefleet/internal/terminalops"
)

// Default per-transaction acquirer fee in 1/100 units, applied when the
// report omits the commission.
const defaultFeeCents = 350

// DirectoryPort answers terminal and credential lookups.
type DirectoryPort interface {
	ActiveTerminals(ctx context.Context) ([]masterdata.Terminal, error)
	OwnerCredentials(ctx context.Context, ownerID int64) (masterdata.VendistaCredentials, bool, error)
}

// OperationsPort upserts the synced rows into the day ledger.
type OperationsPort interface {
	Upsert(ctx context.Context, op terminalops.Operation) (terminalops.Operation, error)
}

// ClientPort is the acquirer API surface.
type ClientPort interface {
	Token(ctx context.Context, login, password string) (string, error)
	Report(ctx context.Context, token string, from, to time.Time) ([]ReportLine, error)
}

// SyncError is one recorded per-owner or per-terminal failure.
type SyncError struct {
	OwnerID    int64  `json:"owner_id,omitempty"`
	TerminalID int64  `json:"terminal_id,omitempty"`
	Message    string `json:"message"`
}

// SyncResult aggregates a sync run. Success means the run completed;
// partial errors are listed, not raised.
type SyncResult struct {
	SyncDate          time.Time       `json:"sync_date"`
	Success           bool            `json:"success"`
	SyncedTerminals   int             `json:"synced_terminals"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalTransactions int             `json:"total_transactions"`
	Errors            []SyncError     `json:"errors"`
}

// Service pulls acquirer data per owner and upserts it into the terminal
// operation ledger.
type Service struct {
	client     ClientPort
	directory  DirectoryPort
	operations OperationsPort
	logger     *slog.Logger
	// concurrent owner groups per run
	parallelism int
}

// NewService constructs a Service.
func NewService(client ClientPort, directory DirectoryPort, operations OperationsPort, logger *slog.Logger) *Service {
	return &Service{
		client:      client,
		directory:   directory,
		operations:  operations,
		logger:      logger,
		parallelism: 4,
	}
}

type ownerGroup struct {
	ownerID   int64
	terminals []masterdata.Terminal
}

// Sync pulls the acquirer report for date and upserts one row per active
// terminal. Terminals absent from the response get a zero-valued row.
// Per-terminal failures are collected; only a failed terminal listing is
// fatal.
func (s *Service) Sync(ctx context.Context, date time.Time) (SyncResult, error) {
	date = shared.TruncateDay(date)
	result := SyncResult{SyncDate: date, TotalAmount: decimal.Zero}

	terminals, err := s.directory.ActiveTerminals(ctx)
	if err != nil {
		return result, err
	}

	groups := map[int64]*ownerGroup{}
	var mu sync.Mutex
	for _, t := range terminals {
		if t.OwnerID == nil {
			result.Errors = append(result.Errors, SyncError{
				TerminalID: t.ID,
				Message:    "terminal has no owner",
			})
			continue
		}
		g, ok := groups[*t.OwnerID]
		if !ok {
			g = &ownerGroup{ownerID: *t.OwnerID}
			groups[*t.OwnerID] = g
		}
		g.terminals = append(g.terminals, t)
	}

	ordered := make([]*ownerGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ownerID < ordered[j].ownerID })

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallelism)
	for _, g := range ordered {
		g := g
		eg.Go(func() error {
			synced, amount, count, errs := s.syncOwner(groupCtx, g, date)
			mu.Lock()
			result.SyncedTerminals += synced
			result.TotalAmount = result.TotalAmount.Add(amount)
			result.TotalTransactions += count
			result.Errors = append(result.Errors, errs...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return result, err
	}

	result.Success = true
	return result, nil
}

func (s *Service) syncOwner(ctx context.Context, g *ownerGroup, date time.Time) (synced int, amount decimal.Decimal, count int, errs []SyncError) {
	amount = decimal.Zero

	creds, ok, err := s.directory.OwnerCredentials(ctx, g.ownerID)
	if err != nil || !ok {
		msg := "owner has no acquirer credentials"
		if err != nil {
			msg = err.Error()
		}
		return 0, amount, 0, []SyncError{{OwnerID: g.ownerID, Message: msg}}
	}

	token, err := s.client.Token(ctx, creds.Login, creds.Password)
	if err != nil {
		return 0, amount, 0, []SyncError{{OwnerID: g.ownerID, Message: err.Error()}}
	}

	lines, err := s.client.Report(ctx, token, date, date.Add(24*time.Hour))
	if err != nil {
		return 0, amount, 0, []SyncError{{OwnerID: g.ownerID, Message: err.Error()}}
	}

	byVendorID := map[string]masterdata.Terminal{}
	for _, t := range g.terminals {
		if t.VendorTerminalNumber != nil {
			byVendorID[*t.VendorTerminalNumber] = t
		}
	}

	seen := map[int64]bool{}
	for _, line := range lines {
		terminal, ok := byVendorID[strconv.FormatInt(line.TerminalID, 10)]
		if !ok {
			terminal, ok = byVendorID[line.TID]
		}
		if !ok {
			errs = append(errs, SyncError{
				OwnerID: g.ownerID,
				Message: fmt.Sprintf("no local terminal for vendor id %d (tid %q)", line.TerminalID, line.TID),
			})
			continue
		}

		fee := int64(line.IncomingCount) * defaultFeeCents
		if line.Comission != nil {
			fee = *line.Comission
		}
		op := terminalops.Operation{
			OperationDate:    date,
			TerminalID:       terminal.ID,
			Amount:           decimal.New(line.IncomingAmount, -2),
			TransactionCount: line.IncomingCount,
			Commission:       decimal.New(fee, -2),
		}
		if _, err := s.operations.Upsert(ctx, op); err != nil {
			errs = append(errs, SyncError{OwnerID: g.ownerID, TerminalID: terminal.ID, Message: err.Error()})
			continue
		}
		seen[terminal.ID] = true
		synced++
		amount = amount.Add(op.Amount)
		count += line.IncomingCount
	}

	// Terminals the acquirer did not report still get a row for the day.
	for _, t := range g.terminals {
		if seen[t.ID] {
			continue
		}
		op := terminalops.Operation{
			OperationDate: date,
			TerminalID:    t.ID,
			Amount:        decimal.Zero,
			Commission:    decimal.Zero,
		}
		if _, err := s.operations.Upsert(ctx, op); err != nil {
			errs = append(errs, SyncError{OwnerID: g.ownerID, TerminalID: t.ID, Message: err.Error()})
		}
	}
	return synced, amount, count, errs
}
