package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bedbroker-backend/api/middleware"
	"github.com/angelmondragon/bedbroker-backend/api/validators"
	"github.com/angelmondragon/bedbroker-backend/internal/reservations"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
)

func requireActor(r *http.Request) (uuid.UUID, error) {
	actor, ok := middleware.ActorID(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// reservationListParams reads limit, cursor and an optional status filter.
func reservationListParams(r *http.Request) (reservations.ListParams, error) {
	q := validators.Query(r)
	params := reservations.ListParams{Params: readPage(q)}
	if raw := q.String("status"); raw != "" {
		status, err := enums.ParseReservationStatus(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").
				WithDetails(map[string]string{"status": "must be one of " + enums.ReservationStatusValues()})
		}
		params.Status = status
	}
	return params, q.Err()
}

func readPage(q *validators.QueryReader) pagination.Params {
	return pagination.Params{
		Limit:  q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
		Cursor: q.String("cursor"),
	}
}
