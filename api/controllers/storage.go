package controllers

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/scanmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage/local"
)

// LocalStoragePut receives a presigned PUT when the local backend stands in
// for object storage.
func LocalStoragePut(store *local.Store, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := storageKey(r)
		q := r.URL.Query()
		if err := store.VerifySignature(key, q.Get("exp"), q.Get("sig")); err != nil {
			responses.WriteError(r.Context(), logg, w, storageError(err))
			return
		}

		body := bufio.NewReader(http.MaxBytesReader(w, r.Body, maxBytes))
		if _, err := body.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "empty body"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read body"))
			return
		}
		if err := store.Save(r.Context(), key, body, r.ContentLength, r.Header.Get("Content-Type")); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeTooLarge, err, "object too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, storageError(err))
			return
		}
		info, err := store.Stat(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, storageError(err))
			return
		}
		responses.WriteSuccess(w, StoredObject{Key: key, SizeBytes: info.Size})
	}
}

type StoredObject struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// LocalStorageGet streams a stored object.
func LocalStorageGet(store *local.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := storageKey(r)
		info, err := store.Stat(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, storageError(err))
			return
		}
		rc, err := store.Open(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, storageError(err))
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", storage.ContentType(key))
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "key", key), "storage.stream_interrupted")
		}
	}
}

func storageKey(r *http.Request) string {
	return strings.TrimPrefix(chi.URLParam(r, "*"), "/")
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid storage key")
	case errors.Is(err, storage.ErrInvalidSignature), errors.Is(err, storage.ErrExpired):
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "upload url rejected")
	case errors.Is(err, storage.ErrNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "object not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage failure")
	}
}
