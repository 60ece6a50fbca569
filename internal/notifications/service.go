package notifications

import (
	"context"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Service is the inbox surface exposed over HTTP.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type ListParams struct {
	RecipientID uuid.UUID
	// ReservationID narrows the inbox to one reservation's lifecycle.
	ReservationID *uuid.UUID
	UnreadOnly    bool
	Limit         int
	Cursor        string
}

// ListResult is one page of the inbox. Unread counts the recipient's whole
// inbox, not only the returned page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
	Unread int64                 `json:"unread"`
}

type inboxService struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &inboxService{repo: repo, clock: time.Now}, nil
}

func requireRecipient(id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	return nil
}

func (s *inboxService) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireRecipient(params.RecipientID); err != nil {
		return nil, err
	}
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	rows, next, err := s.repo.List(ctx, listFilter{
		RecipientID:   params.RecipientID,
		ReservationID: params.ReservationID,
		UnreadOnly:    params.UnreadOnly,
		Cursor:        cursor,
		Limit:         pagination.NormalizeLimit(params.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, params.RecipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	result := &ListResult{Items: rows, Unread: unread}
	if result.Items == nil {
		result.Items = []models.Notification{}
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// MarkRead is idempotent: reading an already read notification succeeds.
func (s *inboxService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if err := requireRecipient(recipientID); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	outcome, err := s.repo.MarkRead(ctx, recipientID, notificationID, s.clock().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if outcome == markMissing {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inboxService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if err := requireRecipient(recipientID); err != nil {
		return 0, err
	}
	updated, err := s.repo.MarkAllRead(ctx, recipientID, s.clock().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return updated, nil
}
