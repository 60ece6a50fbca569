package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bedbroker-backend/api/responses"
	"github.com/angelmondragon/bedbroker-backend/api/validators"
	"github.com/angelmondragon/bedbroker-backend/internal/reservations"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

type createHoldRequest struct {
	BedIDs       []uuid.UUID `json:"bed_ids" validate:"required,min=1,max=50,unique,dive,required"`
	DurationDays *int        `json:"duration_days" validate:"omitempty,min=1,max=365"`
}

type paymentRequest struct {
	Succeeded *bool `json:"succeeded" validate:"required"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// CreateHold places a provisional hold on beds of a listing for the caller.
func CreateHold(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createHoldRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.CreateHold(r.Context(), reservations.CreateHoldInput{
			RequesterID:  actor,
			ListingID:    listingID,
			BedIDs:       body.BedIDs,
			DurationDays: body.DurationDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/reservations/"+dto.ID.String(), dto)
	}
}

// ApproveReservation confirms a hold as the listing owner.
func ApproveReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.ConfirmByOwner(r.Context(), reservations.OwnerApprovalInput{
			ActorID:       actor,
			ReservationID: reservationID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ReportPayment records the renter's deposit outcome and confirms on success.
func ReportPayment(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body paymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.ConfirmByPayment(r.Context(), reservations.PaymentInput{
			ActorID:          actor,
			ReservationID:    reservationID,
			PaymentSucceeded: *body.Succeeded,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CancelReservation always answers 200; the flag says whether anything changed.
func CancelReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{Cancelled: svc.Cancel(r.Context(), actor, reservationID)})
	}
}

func GetReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), actor, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ListMyReservations pages through the caller's reservations, newest first.
func ListMyReservations(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := reservationListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListForRequester(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListListingReservations is restricted to the listing owner.
func ListListingReservations(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := reservationListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListForListing(r.Context(), actor, listingID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
