package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	rows   []Snapshot
	nextID int64
}

func (m *memRepo) Insert(_ context.Context, s Snapshot) (Snapshot, error) {
	for _, existing := range m.rows {
		if existing.MachineID == s.MachineID && existing.Coins == s.Coins && existing.Toys == s.Toys {
			return existing, nil
		}
	}
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now().UTC()
	m.rows = append(m.rows, s)
	return s, nil
}

func (m *memRepo) List(_ context.Context, machineID int64, _, _ int) ([]Snapshot, error) {
	var out []Snapshot
	for _, s := range m.rows {
		if s.MachineID == machineID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) LatestOnDay(_ context.Context, _ int64, _ time.Time) (*Snapshot, error) {
	return nil, nil
}

func (m *memRepo) LatestBefore(_ context.Context, _ int64, _ time.Time) (*Snapshot, error) {
	return nil, nil
}

func TestRecordTruncatesDateToDay(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)

	got, err := svc.Record(context.Background(), Snapshot{
		MachineID: 7,
		Date:      time.Date(2026, 3, 10, 14, 45, 12, 0, time.UTC),
		Coins:     1200,
		Toys:      80,
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got.Date)
	require.NotZero(t, got.ID)
}

func TestRecordDefaultsMissingDate(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)

	got, err := svc.Record(context.Background(), Snapshot{MachineID: 7, Coins: 10, Toys: 1})
	require.NoError(t, err)
	require.False(t, got.Date.IsZero())
	require.Equal(t, got.Date, got.Date.Truncate(24*time.Hour))
}

func TestRecordDeduplicatesCounterTriple(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := svc.Record(context.Background(), Snapshot{MachineID: 7, Date: day, Coins: 1200, Toys: 80})
	require.NoError(t, err)

	second, err := svc.Record(context.Background(), Snapshot{MachineID: 7, Date: day.AddDate(0, 0, 1), Coins: 1200, Toys: 80})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.rows, 1)
}

func TestRecordRejectsNegativeCounters(t *testing.T) {
	svc := NewService(&memRepo{})

	_, err := svc.Record(context.Background(), Snapshot{MachineID: 7, Coins: -1, Toys: 0})
	require.ErrorIs(t, err, ErrNegativeCounter)

	_, err = svc.Record(context.Background(), Snapshot{MachineID: 7, Coins: 0, Toys: -5})
	require.ErrorIs(t, err, ErrNegativeCounter)
}
