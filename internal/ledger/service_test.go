package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	accounts map[int64]*Account
	txs      map[int64]Transaction
	nextID   int64
}

func newMemoryLedger(accounts ...Account) *memoryLedger {
	m := &memoryLedger{accounts: make(map[int64]*Account), txs: make(map[int64]Transaction)}
	for i := range accounts {
		a := accounts[i]
		a.Balance = a.InitialBalance
		m.accounts[a.ID] = &a
	}
	return m
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryLedger) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, ok := m.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (m *memoryLedger) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *a, nil
}

func (m *memoryLedger) ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.txs {
		if t.AccountID == accountID || (t.ToAccountID != nil && *t.ToAccountID == accountID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryLedger) Summarize(ctx context.Context, filter SummaryFilter) (Summary, error) {
	s := Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range m.txs {
		if !t.IsConfirmed || t.TransactionTypeID == TypeTransfer {
			continue
		}
		if filter.AccountID != nil && t.AccountID != *filter.AccountID {
			continue
		}
		if t.Amount.IsPositive() {
			s.Income = s.Income.Add(t.Amount)
		} else {
			s.Expense = s.Expense.Add(t.Amount)
		}
		s.Count++
	}
	s.Net = s.Income.Add(s.Expense)
	return s, nil
}

func (m *memoryLedger) FirstAccountOfOwner(ctx context.Context, ownerID int64) (int64, bool, error) {
	var best int64
	for id, a := range m.accounts {
		if a.OwnerID == ownerID && (best == 0 || id < best) {
			best = id
		}
	}
	return best, best != 0, nil
}

func (m *memoryLedger) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	m.nextID++
	t.ID = m.nextID
	m.txs[t.ID] = t
	return t.ID, nil
}

func (m *memoryLedger) UpdateTransaction(ctx context.Context, t Transaction) error {
	if _, ok := m.txs[t.ID]; !ok {
		return ErrNotFound
	}
	m.txs[t.ID] = t
	return nil
}

func (m *memoryLedger) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := m.txs[id]; !ok {
		return ErrNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *memoryLedger) MarkConfirmed(ctx context.Context, id int64) error {
	t, ok := m.txs[id]
	if !ok {
		return ErrNotFound
	}
	t.IsConfirmed = true
	m.txs[id] = t
	return nil
}

func (m *memoryLedger) UpdateAccountRow(ctx context.Context, a Account) error {
	cur, ok := m.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.Balance = cur.Balance
	m.accounts[a.ID] = &a
	return nil
}

func (m *memoryLedger) RecomputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	a, ok := m.accounts[accountID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	balance := a.InitialBalance
	for _, t := range m.txs {
		if !t.IsConfirmed {
			continue
		}
		if t.AccountID == accountID {
			balance = balance.Add(t.Amount)
		}
		if t.ToAccountID != nil && *t.ToAccountID == accountID && t.TransactionTypeID == TypeTransfer {
			balance = balance.Add(t.Amount.Abs())
		}
	}
	a.Balance = balance
	return balance, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTransferIsBalanceNeutral(t *testing.T) {
	repo := newMemoryLedger(
		Account{ID: 2, OwnerID: 1, Currency: "RUB", InitialBalance: dec("100")},
		Account{ID: 3, OwnerID: 1, Currency: "RUB", InitialBalance: dec("0")},
	)
	svc := NewService(repo)
	ctx := context.Background()

	to := int64(3)
	tx, err := svc.CreateTransaction(ctx, Transaction{
		AccountID:         2,
		ToAccountID:       &to,
		CategoryID:        1,
		TransactionTypeID: TypeTransfer,
		Amount:            dec("-30.00"),
		IsConfirmed:       true,
	})
	require.NoError(t, err)

	src, _ := repo.GetAccount(ctx, 2)
	dst, _ := repo.GetAccount(ctx, 3)
	require.True(t, src.Balance.Equal(dec("70")), "src balance %s", src.Balance)
	require.True(t, dst.Balance.Equal(dec("30")), "dst balance %s", dst.Balance)

	require.NoError(t, svc.DeleteTransaction(ctx, tx.ID))
	src, _ = repo.GetAccount(ctx, 2)
	dst, _ = repo.GetAccount(ctx, 3)
	require.True(t, src.Balance.Equal(dec("100")))
	require.True(t, dst.Balance.Equal(dec("0")))
}

func TestCreateConfirmDeleteRoundTrip(t *testing.T) {
	repo := newMemoryLedger(Account{ID: 1, OwnerID: 1, Currency: "RUB", InitialBalance: dec("50")})
	svc := NewService(repo)
	ctx := context.Background()

	tx, err := svc.CreateTransaction(ctx, Transaction{
		AccountID:         1,
		CategoryID:        1,
		TransactionTypeID: TypeExpense,
		Amount:            dec("-12.34"),
	})
	require.NoError(t, err)

	a, _ := repo.GetAccount(ctx, 1)
	require.True(t, a.Balance.Equal(dec("50")), "unconfirmed tx must not move balance")

	_, err = svc.ConfirmTransaction(ctx, tx.ID)
	require.NoError(t, err)
	a, _ = repo.GetAccount(ctx, 1)
	require.True(t, a.Balance.Equal(dec("37.66")))

	// Confirming twice is a no-op.
	_, err = svc.ConfirmTransaction(ctx, tx.ID)
	require.NoError(t, err)
	a, _ = repo.GetAccount(ctx, 1)
	require.True(t, a.Balance.Equal(dec("37.66")))

	require.NoError(t, svc.DeleteTransaction(ctx, tx.ID))
	a, _ = repo.GetAccount(ctx, 1)
	require.True(t, a.Balance.Equal(dec("50")))
}

func TestUpdateRecomputesPreAndPostAccounts(t *testing.T) {
	repo := newMemoryLedger(
		Account{ID: 1, OwnerID: 1, Currency: "RUB", InitialBalance: dec("0")},
		Account{ID: 2, OwnerID: 1, Currency: "RUB", InitialBalance: dec("0")},
	)
	svc := NewService(repo)
	ctx := context.Background()

	tx, err := svc.CreateTransaction(ctx, Transaction{
		AccountID:         1,
		CategoryID:        1,
		TransactionTypeID: TypeIncome,
		Amount:            dec("40"),
		IsConfirmed:       true,
	})
	require.NoError(t, err)

	tx.AccountID = 2
	_, err = svc.UpdateTransaction(ctx, tx)
	require.NoError(t, err)

	a1, _ := repo.GetAccount(ctx, 1)
	a2, _ := repo.GetAccount(ctx, 2)
	require.True(t, a1.Balance.IsZero())
	require.True(t, a2.Balance.Equal(dec("40")))
}

func TestValidationRejects(t *testing.T) {
	svc := NewService(newMemoryLedger())
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, Transaction{AccountID: 1, CategoryID: 1, TransactionTypeID: TypeIncome})
	require.ErrorIs(t, err, ErrZeroAmount)

	_, err = svc.CreateTransaction(ctx, Transaction{AccountID: 1, CategoryID: 1, TransactionTypeID: TypeTransfer, Amount: dec("-5")})
	require.ErrorIs(t, err, ErrTransferTarget)
}

func TestSummaryExcludesTransfers(t *testing.T) {
	repo := newMemoryLedger(
		Account{ID: 1, OwnerID: 1, Currency: "RUB", InitialBalance: dec("0")},
		Account{ID: 2, OwnerID: 1, Currency: "RUB", InitialBalance: dec("0")},
	)
	svc := NewService(repo)
	ctx := context.Background()

	mustCreate := func(tx Transaction) {
		_, err := svc.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
	to := int64(2)
	mustCreate(Transaction{AccountID: 1, CategoryID: 1, TransactionTypeID: TypeIncome, Amount: dec("100"), IsConfirmed: true})
	mustCreate(Transaction{AccountID: 1, CategoryID: 1, TransactionTypeID: TypeExpense, Amount: dec("-40"), IsConfirmed: true})
	mustCreate(Transaction{AccountID: 1, CategoryID: 1, TransactionTypeID: TypeIncome, Amount: dec("7"), IsConfirmed: false})
	mustCreate(Transaction{AccountID: 1, ToAccountID: &to, CategoryID: 1, TransactionTypeID: TypeTransfer, Amount: dec("-25"), IsConfirmed: true})

	s, err := svc.Summarize(ctx, SummaryFilter{})
	require.NoError(t, err)
	require.True(t, s.Income.Equal(dec("100")))
	require.True(t, s.Expense.Equal(dec("-40")))
	require.True(t, s.Net.Equal(dec("60")))
	require.Equal(t, 2, s.Count)
}
