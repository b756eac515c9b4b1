package controllers

import (
	"net/http"

	"github.com/angelmondragon/scanmarket-backend/api/responses"
	"github.com/angelmondragon/scanmarket-backend/api/validators"
	"github.com/angelmondragon/scanmarket-backend/internal/assets"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
)

func CreateCaptureSession(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "asset")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body assets.CaptureSessionInput
		if err := decodeOptionalJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.CreateCaptureSession(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func InitUpload(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "asset")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body assets.InitUploadInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.InitUpload(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CompleteUpload(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "asset")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var body assets.CompleteUploadInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CompleteUpload(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetAsset(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "asset")
			return
		}
		if _, ok := requireUser(w, r, logg); !ok {
			return
		}
		assetID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetAsset(r.Context(), assetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}
