package terminalops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cranefleet/cranefleet/internal/ledger"
	"github.com/cranefleet/cranefleet/internal/refs"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// TerminalCategory is the income category day-close postings prefer.
const TerminalCategory = "Терминалы"

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Operation, error)
	List(ctx context.Context, f ListFilter) ([]Operation, error)
}

// RefsPort resolves the reference rows day close depends on.
type RefsPort interface {
	TransactionTypeID(ctx context.Context, name string) (int64, error)
	CategoryIDByName(ctx context.Context, name string) (int64, error)
	FirstCategoryID(ctx context.Context) (int64, error)
}

// Service owns the day ledger of terminal takings.
type Service struct {
	repo   RepositoryPort
	refs   RefsPort
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, refs RefsPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, refs: refs, logger: logger}
}

// Upsert records a terminal's takings for a day. An existing open row is
// overwritten; a closed row rejects the write.
func (s *Service) Upsert(ctx context.Context, op Operation) (Operation, error) {
	op.OperationDate = shared.TruncateDay(op.OperationDate)
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.GetForUpdate(ctx, op.OperationDate, op.TerminalID)
		if errors.Is(err, ErrNotFound) {
			id, err = tx.Insert(ctx, op)
			return err
		}
		if err != nil {
			return err
		}
		if cur.IsClosed {
			return ErrOperationClosed
		}
		cur.Amount = op.Amount
		cur.TransactionCount = op.TransactionCount
		cur.Commission = op.Commission
		id = cur.ID
		return tx.UpdateRow(ctx, cur)
	})
	if err != nil {
		return Operation{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes an open operation row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if op.IsClosed {
			return ErrOperationClosed
		}
		return tx.Delete(ctx, id)
	})
}

// Get fetches one operation.
func (s *Service) Get(ctx context.Context, id int64) (Operation, error) {
	return s.repo.Get(ctx, id)
}

// List returns operations matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Operation, error) {
	return s.repo.List(ctx, f)
}

// CloseDay posts every open row of the day to its terminal's account as one
// confirmed income transaction per account, then marks the rows closed.
// Rerunning on a closed day is a no-op. An unresolvable income type aborts
// the whole close.
func (s *Service) CloseDay(ctx context.Context, date time.Time, closedBy *int64) (CloseSummary, error) {
	date = shared.TruncateDay(date)
	incomeTypeID, err := s.refs.TransactionTypeID(ctx, refs.TxTypeIncome)
	if err != nil {
		return CloseSummary{}, fmt.Errorf("%w: income transaction type", refs.ErrMissingReference)
	}
	categoryID, err := s.refs.CategoryIDByName(ctx, TerminalCategory)
	if err != nil {
		categoryID, err = s.refs.FirstCategoryID(ctx)
		if err != nil {
			return CloseSummary{}, err
		}
	}

	summary := CloseSummary{OperationDate: date}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.SelectOpenForDate(ctx, date)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		byAccount := map[int64]decimal.Decimal{}
		counts := map[int64]int{}
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			if row.AccountID == nil {
				s.logger.Warn("terminal has no account, takings not posted",
					slog.Int64("terminal_id", row.TerminalID))
				continue
			}
			byAccount[*row.AccountID] = byAccount[*row.AccountID].Add(row.Net())
			counts[*row.AccountID]++
		}

		accounts := make([]int64, 0, len(byAccount))
		for accountID := range byAccount {
			accounts = append(accounts, accountID)
		}
		sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

		lg := tx.Ledger()
		for _, accountID := range accounts {
			net := byAccount[accountID]
			if !net.IsPositive() {
				continue
			}
			desc := fmt.Sprintf("Выручка терминалов за %s (%d шт.)",
				date.Format(shared.DateLayout), counts[accountID])
			if _, err := lg.InsertTransaction(ctx, ledger.Transaction{
				Date:              date,
				AccountID:         accountID,
				CategoryID:        categoryID,
				TransactionTypeID: incomeTypeID,
				Amount:            net,
				Description:       &desc,
				IsConfirmed:       true,
				CreatedBy:         closedBy,
			}); err != nil {
				return err
			}
			if _, err := lg.RecomputeBalance(ctx, accountID); err != nil {
				return err
			}
			summary.PostedTransactions++
			summary.TotalNet = summary.TotalNet.Add(net)
		}

		if err := tx.MarkClosed(ctx, ids, closedBy, time.Now().UTC()); err != nil {
			return err
		}
		summary.ClosedRows = len(ids)
		return nil
	})
	if err != nil {
		return CloseSummary{}, err
	}
	return summary, nil
}
