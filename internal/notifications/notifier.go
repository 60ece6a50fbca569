package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/google/uuid"
)

// Message is a single in-app notification addressed to one user.
type Message struct {
	RecipientID   uuid.UUID
	Type          enums.NotificationType
	Title         string
	Body          string
	ReservationID *uuid.UUID
}

// Notifier delivers reservation lifecycle messages to listing owners and renters.
type Notifier interface {
	NotifyOwner(ctx context.Context, msg Message) error
	NotifyUser(ctx context.Context, msg Message) error
}

type storeNotifier struct {
	repo Repository
	logg *logger.Logger
}

// NewNotifier persists notifications through the given repository.
func NewNotifier(repo Repository, logg *logger.Logger) (Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &storeNotifier{repo: repo, logg: logg}, nil
}

func (n *storeNotifier) NotifyOwner(ctx context.Context, msg Message) error {
	return n.deliver(ctx, "owner", msg)
}

func (n *storeNotifier) NotifyUser(ctx context.Context, msg Message) error {
	return n.deliver(ctx, "user", msg)
}

func (n *storeNotifier) deliver(ctx context.Context, audience string, msg Message) error {
	if msg.RecipientID == uuid.Nil {
		return fmt.Errorf("recipient id required")
	}
	if !msg.Type.IsValid() {
		return fmt.Errorf("invalid notification type %q", msg.Type)
	}

	row := &models.Notification{
		RecipientID:   msg.RecipientID,
		Type:          msg.Type,
		Title:         msg.Title,
		Message:       msg.Body,
		ReservationID: msg.ReservationID,
	}
	if err := n.repo.Create(ctx, row); err != nil {
		return fmt.Errorf("create %s notification: %w", audience, err)
	}

	ctx = n.logg.WithFields(ctx, map[string]any{
		"notification_id":   row.ID.String(),
		"notification_type": string(msg.Type),
		"audience":          audience,
	})
	n.logg.Debug(ctx, "notification stored")
	return nil
}
