package monitoring

import (
	"context"
	"time"

	"github.com/cranefleet/cranefleet/internal/shared"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, s Snapshot) (Snapshot, error)
	List(ctx context.Context, machineID int64, limit, offset int) ([]Snapshot, error)
	LatestOnDay(ctx context.Context, machineID int64, day time.Time) (*Snapshot, error)
	LatestBefore(ctx context.Context, machineID int64, day time.Time) (*Snapshot, error)
}

// Service records machine counter snapshots.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Record stores a snapshot, deduplicating on the counter triple.
func (s *Service) Record(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if snap.Coins < 0 || snap.Toys < 0 {
		return Snapshot{}, ErrNegativeCounter
	}
	if snap.Date.IsZero() {
		snap.Date = time.Now().UTC()
	}
	snap.Date = shared.TruncateDay(snap.Date)
	return s.repo.Insert(ctx, snap)
}

// List returns a machine's snapshots.
func (s *Service) List(ctx context.Context, machineID int64, limit, offset int) ([]Snapshot, error) {
	return s.repo.List(ctx, machineID, limit, offset)
}
