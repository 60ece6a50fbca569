package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type actorKey struct{}

// Actor is the authenticated caller as seeded by Auth.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// Key is the actor id as used in rate limit and idempotency keys; blank for
// anonymous callers.
func (a Actor) Key() string {
	if a.ID == uuid.Nil {
		return ""
	}
	return a.ID.String()
}

// WithActor stores the caller on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// WithUserID stores an actor by raw id. An unparsable id leaves the request
// anonymous.
func WithUserID(ctx context.Context, userID string) context.Context {
	id, _ := uuid.Parse(userID)
	return WithActor(ctx, Actor{ID: id})
}

// ActorFrom returns the caller, or false when the request carried no valid
// identity.
func ActorFrom(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor, actor.ID != uuid.Nil
}

// ActorID is ActorFrom for handlers that only need the id.
func ActorID(ctx context.Context) (uuid.UUID, bool) {
	actor, ok := ActorFrom(ctx)
	return actor.ID, ok
}

func callerKey(r *http.Request) string {
	actor, _ := ActorFrom(r.Context())
	return actor.Key()
}
