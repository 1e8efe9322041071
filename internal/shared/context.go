package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// Actor identifies the authenticated caller of a request.
type Actor struct {
	UserID int64
	Login  string
	APIKey bool
}

// ContextWithActor stores the actor in ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor attached to ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
