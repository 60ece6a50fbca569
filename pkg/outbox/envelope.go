package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RoleRenter = "renter"
	RoleOwner  = "owner"
	RoleSystem = "system"
)

// Actor is who caused the event. The sweeper and other jobs are RoleSystem
// with no user id.
type Actor struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Role   string     `json:"role"`
}

func UserActor(id uuid.UUID, role string) *Actor {
	return &Actor{UserID: &id, Role: role}
}

func SystemActor() *Actor {
	return &Actor{Role: RoleSystem}
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive. EventID equals the outbox row id, so a replayed or redelivered
// message carries the id consumers already saw.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
