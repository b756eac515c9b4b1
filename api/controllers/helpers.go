package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/api/middleware"
	"github.com/angelmondragon/scanmarket-backend/api/responses"
	"github.com/angelmondragon/scanmarket-backend/api/validators"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
)

// requireUser resolves the authenticated caller or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, false
	}
	return userID, true
}

// optionalUser returns the caller when OptionalAuth attached one.
func optionalUser(r *http.Request) *uuid.UUID {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &userID
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}

// decodeOptionalJSON decodes the body when one was sent; an empty body leaves
// dest at its zero value.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return validators.ValidateStruct(dest)
	}
	if err := validators.DecodeJSONBody(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
