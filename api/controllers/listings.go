package controllers

import (
	"net/http"

	"github.com/angelmondragon/bedbroker-backend/api/responses"
	"github.com/angelmondragon/bedbroker-backend/api/validators"
	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

// ListingAvailability returns the room and bed snapshot for a listing.
func ListingAvailability(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.ListingAvailability(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
