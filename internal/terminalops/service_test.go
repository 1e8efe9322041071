package terminalops

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cranefleet/cranefleet/internal/ledger"
)

type memBank struct {
	balances map[int64]decimal.Decimal
	posted   []ledger.Transaction
}

func (b *memBank) InsertTransaction(_ context.Context, t ledger.Transaction) (int64, error) {
	t.ID = int64(len(b.posted) + 1)
	b.posted = append(b.posted, t)
	return t.ID, nil
}

func (b *memBank) UpdateTransaction(context.Context, ledger.Transaction) error { return nil }
func (b *memBank) DeleteTransaction(context.Context, int64) error              { return nil }
func (b *memBank) MarkConfirmed(context.Context, int64) error                  { return nil }
func (b *memBank) UpdateAccountRow(context.Context, ledger.Account) error      { return nil }

func (b *memBank) RecomputeBalance(_ context.Context, accountID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range b.posted {
		if t.AccountID == accountID && t.IsConfirmed {
			sum = sum.Add(t.Amount)
		}
	}
	b.balances[accountID] = sum
	return sum, nil
}

type memRepo struct {
	ops             map[int64]*Operation
	nextID          int64
	terminalAccount map[int64]*int64
	bank            *memBank
}

func newMemRepo() *memRepo {
	return &memRepo{
		ops:             map[int64]*Operation{},
		terminalAccount: map[int64]*int64{},
		bank:            &memBank{balances: map[int64]decimal.Decimal{}},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) Ledger() ledger.TxRepository { return m.bank }

func (m *memRepo) Get(_ context.Context, id int64) (Operation, error) {
	op, ok := m.ops[id]
	if !ok {
		return Operation{}, ErrNotFound
	}
	return *op, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Operation, error) {
	var out []Operation
	for _, op := range m.ops {
		if f.TerminalID > 0 && op.TerminalID != f.TerminalID {
			continue
		}
		out = append(out, *op)
	}
	return out, nil
}

func (m *memRepo) GetForUpdate(_ context.Context, date time.Time, terminalID int64) (Operation, error) {
	for _, op := range m.ops {
		if op.OperationDate.Equal(date) && op.TerminalID == terminalID {
			return *op, nil
		}
	}
	return Operation{}, ErrNotFound
}

func (m *memRepo) GetByIDForUpdate(ctx context.Context, id int64) (Operation, error) {
	return m.Get(ctx, id)
}

func (m *memRepo) Insert(_ context.Context, op Operation) (int64, error) {
	m.nextID++
	op.ID = m.nextID
	op.CreatedAt = time.Now().UTC()
	m.ops[op.ID] = &op
	return op.ID, nil
}

func (m *memRepo) UpdateRow(_ context.Context, op Operation) error {
	cur, ok := m.ops[op.ID]
	if !ok || cur.IsClosed {
		return ErrOperationClosed
	}
	now := time.Now().UTC()
	cur.Amount, cur.TransactionCount, cur.Commission = op.Amount, op.TransactionCount, op.Commission
	cur.UpdatedAt = &now
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.ops[id]; !ok {
		return ErrNotFound
	}
	delete(m.ops, id)
	return nil
}

func (m *memRepo) SelectOpenForDate(_ context.Context, date time.Time) ([]OpenRow, error) {
	var rows []OpenRow
	for _, op := range m.ops {
		if op.OperationDate.Equal(date) && !op.IsClosed {
			rows = append(rows, OpenRow{Operation: *op, AccountID: m.terminalAccount[op.TerminalID]})
		}
	}
	return rows, nil
}

func (m *memRepo) MarkClosed(_ context.Context, ids []int64, closedBy *int64, at time.Time) error {
	for _, id := range ids {
		op := m.ops[id]
		op.IsClosed = true
		op.ClosedAt = &at
		op.ClosedBy = closedBy
	}
	return nil
}

type memRefs struct{}

func (memRefs) TransactionTypeID(_ context.Context, name string) (int64, error) {
	if name == "income" {
		return 1, nil
	}
	return 0, ErrNotFound
}

func (memRefs) CategoryIDByName(_ context.Context, name string) (int64, error) {
	if name == TerminalCategory {
		return 42, nil
	}
	return 0, ErrNotFound
}

func (memRefs) FirstCategoryID(context.Context) (int64, error) { return 1, nil }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v int64) *int64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, memRefs{}, slog.Default()), repo
}

func TestUpsertOverwritesOpenRow(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := day("2024-09-01")

	first, err := svc.Upsert(ctx, Operation{
		OperationDate: d, TerminalID: 1,
		Amount: dec("100"), TransactionCount: 4, Commission: dec("10"),
	})
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, Operation{
		OperationDate: d, TerminalID: 1,
		Amount: dec("150"), TransactionCount: 6, Commission: dec("15"),
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.Amount.Equal(dec("150")))
	require.Equal(t, 6, second.TransactionCount)
	require.Len(t, repo.ops, 1)
}

func TestClosedRowIsImmutable(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := day("2024-09-01")

	op, err := svc.Upsert(ctx, Operation{OperationDate: d, TerminalID: 1, Amount: dec("100")})
	require.NoError(t, err)
	repo.ops[op.ID].IsClosed = true

	_, err = svc.Upsert(ctx, Operation{OperationDate: d, TerminalID: 1, Amount: dec("1")})
	require.ErrorIs(t, err, ErrOperationClosed)
	err = svc.Delete(ctx, op.ID)
	require.ErrorIs(t, err, ErrOperationClosed)
	require.True(t, repo.ops[op.ID].Amount.Equal(dec("100")))
}

func TestCloseDayPostsAndIsIdempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := day("2024-09-01")
	repo.terminalAccount[1] = ptr(10)

	// Two terminals posting to the same account.
	repo.terminalAccount[2] = ptr(10)
	_, err := svc.Upsert(ctx, Operation{OperationDate: d, TerminalID: 1, Amount: dec("200"), Commission: dec("20")})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, Operation{OperationDate: d, TerminalID: 2, Amount: dec("50"), Commission: dec("5")})
	require.NoError(t, err)

	summary, err := svc.CloseDay(ctx, d, ptr(7))
	require.NoError(t, err)
	require.Equal(t, 2, summary.ClosedRows)
	require.Equal(t, 1, summary.PostedTransactions)
	require.True(t, summary.TotalNet.Equal(dec("225")), "net %s", summary.TotalNet)

	require.Len(t, repo.bank.posted, 1)
	posted := repo.bank.posted[0]
	require.True(t, posted.Amount.Equal(dec("225")))
	require.True(t, posted.IsConfirmed)
	require.EqualValues(t, 10, posted.AccountID)
	require.EqualValues(t, 42, posted.CategoryID)
	require.True(t, repo.bank.balances[10].Equal(dec("225")))

	for _, op := range repo.ops {
		require.True(t, op.IsClosed)
		require.NotNil(t, op.ClosedBy)
		require.EqualValues(t, 7, *op.ClosedBy)
	}

	// Second close: nothing open, nothing posted.
	again, err := svc.CloseDay(ctx, d, ptr(7))
	require.NoError(t, err)
	require.Zero(t, again.ClosedRows)
	require.Zero(t, again.PostedTransactions)
	require.Len(t, repo.bank.posted, 1)
}

func TestCloseDaySkipsTerminalsWithoutAccount(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := day("2024-09-02")
	repo.terminalAccount[1] = ptr(10)
	// Terminal 2 has no account.

	_, err := svc.Upsert(ctx, Operation{OperationDate: d, TerminalID: 1, Amount: dec("100"), Commission: dec("10")})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, Operation{OperationDate: d, TerminalID: 2, Amount: dec("80"), Commission: dec("8")})
	require.NoError(t, err)

	summary, err := svc.CloseDay(ctx, d, nil)
	require.NoError(t, err)
	require.Equal(t, 2, summary.ClosedRows)
	require.Equal(t, 1, summary.PostedTransactions)
	require.True(t, summary.TotalNet.Equal(dec("90")))
}
