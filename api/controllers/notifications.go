package controllers

import (
	"net/http"

	"github.com/angelmondragon/bedbroker-backend/api/responses"
	"github.com/angelmondragon/bedbroker-backend/api/validators"
	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

// ListNotifications serves GET /notifications. Supported query parameters:
// limit, cursor, unread_only and reservation_id.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		q := validators.Query(r)
		page := readPage(q)
		params := notifications.ListParams{
			RecipientID:   actor,
			ReservationID: q.UUID("reservation_id"),
			UnreadOnly:    q.Bool("unread_only"),
			Limit:         page.Limit,
			Cursor:        page.Cursor,
		}
		if err := q.Err(); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// already read counts as success
		if err := svc.MarkRead(r.Context(), actor, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.MarkAllRead(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}
