package refs

import (
	"context"
	"sync"
)

// ResolverPort is the lookup surface the resolver needs.
type ResolverPort interface {
	IDByName(ctx context.Context, kind Kind, name string) (int64, error)
	CategoryIDByName(ctx context.Context, name string) (int64, error)
	FirstCategoryID(ctx context.Context) (int64, error)
	EnsureCategory(ctx context.Context, name string, txTypeID int64) (int64, error)
}

// Resolver caches name→id lookups for the reference kinds the engines
// resolve on every operation. Reference rows are seeded once and never
// renamed in practice, so entries are cached forever.
type Resolver struct {
	repo ResolverPort

	mu    sync.RWMutex
	cache map[string]int64
}

// NewResolver constructs a Resolver.
func NewResolver(repo ResolverPort) *Resolver {
	return &Resolver{repo: repo, cache: make(map[string]int64)}
}

func (r *Resolver) resolve(ctx context.Context, kind Kind, name string) (int64, error) {
	key := string(kind) + ":" + name
	r.mu.RLock()
	id, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}
	id, err := r.repo.IDByName(ctx, kind, name)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()
	return id, nil
}

// MovementStatusID resolves a movement status name.
func (r *Resolver) MovementStatusID(ctx context.Context, name string) (int64, error) {
	return r.resolve(ctx, KindMovementStatus, name)
}

// TransactionTypeID resolves a transaction type name.
func (r *Resolver) TransactionTypeID(ctx context.Context, name string) (int64, error) {
	return r.resolve(ctx, KindTransactionType, name)
}

// CategoryIDByName resolves a transaction category by name.
func (r *Resolver) CategoryIDByName(ctx context.Context, name string) (int64, error) {
	return r.repo.CategoryIDByName(ctx, name)
}

// FirstCategoryID returns any transaction category id.
func (r *Resolver) FirstCategoryID(ctx context.Context) (int64, error) {
	return r.repo.FirstCategoryID(ctx)
}

// EnsureCategory resolves or creates a category bound to a transaction type.
func (r *Resolver) EnsureCategory(ctx context.Context, name string, txTypeID int64) (int64, error) {
	return r.repo.EnsureCategory(ctx, name, txTypeID)
}
