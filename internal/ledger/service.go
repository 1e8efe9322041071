package ledger

import (
	"context"
	"fmt"
	"time"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]Transaction, error)
	Summarize(ctx context.Context, filter SummaryFilter) (Summary, error)
	FirstAccountOfOwner(ctx context.Context, ownerID int64) (int64, bool, error)
}

// Service coordinates ledger mutations and keeps balances consistent.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(t Transaction) error {
	if t.Amount.IsZero() {
		return ErrZeroAmount
	}
	if t.TransactionTypeID == TypeTransfer && t.ToAccountID == nil {
		return ErrTransferTarget
	}
	if t.AccountID <= 0 {
		return fmt.Errorf("%w: account required", ErrNotFound)
	}
	return nil
}

// CreateTransaction inserts a transaction and, when confirmed, recomputes
// the balances of every account it touches.
func (s *Service) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if err := s.validate(t); err != nil {
		return Transaction{}, err
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if !t.IsConfirmed {
			return nil
		}
		return recompute(ctx, tx, t.touchedAccounts())
	})
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// UpdateTransaction mutates a transaction and recomputes the balances of
// all accounts referenced by the pre-image and the post-image.
func (s *Service) UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if err := s.validate(t); err != nil {
		return Transaction{}, err
	}
	before, err := s.repo.GetTransaction(ctx, t.ID)
	if err != nil {
		return Transaction{}, err
	}
	t.CreatedAt = before.CreatedAt
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		return recompute(ctx, tx, union(before.touchedAccounts(), t.touchedAccounts()))
	})
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// DeleteTransaction removes a transaction and recomputes the balances of
// the accounts it referenced.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	before, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		return recompute(ctx, tx, before.touchedAccounts())
	})
}

// ConfirmTransaction marks a transaction confirmed and folds it into the
// affected balances. Confirming twice is a no-op.
func (s *Service) ConfirmTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if t.IsConfirmed {
		return t, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.MarkConfirmed(ctx, id); err != nil {
			return err
		}
		return recompute(ctx, tx, t.touchedAccounts())
	})
	if err != nil {
		return Transaction{}, err
	}
	t.IsConfirmed = true
	return t, nil
}

// GetTransaction fetches a transaction.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions lists an account's transactions.
func (s *Service) ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, accountID, limit, offset)
}

// Summarize aggregates confirmed non-transfer transactions.
func (s *Service) Summarize(ctx context.Context, filter SummaryFilter) (Summary, error) {
	return s.repo.Summarize(ctx, filter)
}

// FirstAccountOfOwner returns the owner's default account id, false when
// the owner holds no accounts.
func (s *Service) FirstAccountOfOwner(ctx context.Context, ownerID int64) (int64, bool, error) {
	return s.repo.FirstAccountOfOwner(ctx, ownerID)
}

func recompute(ctx context.Context, tx TxRepository, accountIDs []int64) error {
	for _, id := range accountIDs {
		if _, err := tx.RecomputeBalance(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func union(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	var out []int64
	for _, id := range append(a, b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
