package controllers

import (
	"net/http"

	"github.com/angelmondragon/scanmarket-backend/api/responses"
	"github.com/angelmondragon/scanmarket-backend/api/validators"
	"github.com/angelmondragon/scanmarket-backend/internal/ai"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
)

// SuggestListing drafts listing fields for a scanned product photo.
func SuggestListing(svc ai.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ai")
			return
		}
		if _, ok := requireUser(w, r, logg); !ok {
			return
		}
		var body ai.SuggestInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		suggestion, err := svc.Suggest(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, suggestion)
	}
}
