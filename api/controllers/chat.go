package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/scanmarket-backend/api/responses"
	"github.com/angelmondragon/scanmarket-backend/api/validators"
	"github.com/angelmondragon/scanmarket-backend/internal/chat"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/pagination"
)

const chatImageField = "file"

func ListChatRooms(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "chat")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		rooms, err := svc.ListRooms(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, chat.RoomListResponse{Rooms: rooms})
	}
}

func ListChatMessages(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "chat")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		roomID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		before, err := validators.ParseQueryTime(r, "before")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultMessageLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		messages, err := svc.GetMessages(r.Context(), userID, roomID, before, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, chat.MessageListResponse{Messages: messages})
	}
}

func SendChatMessage(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "chat")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		roomID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body chat.SendMessageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		msg, err := svc.SendMessage(r.Context(), userID, roomID, body.Body, body.ImageURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, msg)
	}
}

func MarkChatRoomRead(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "chat")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		roomID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		room, err := svc.MarkRead(r.Context(), userID, roomID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, room)
	}
}

// UploadChatImage accepts a multipart "file" part and stores it as a chat
// photo. The body is capped slightly above maxBytes so the service can
// report the size violation.
func UploadChatImage(svc chat.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "chat")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "multipart/form-data body required"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))

		reader, err := r.MultipartReader()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body"))
			return
		}
		for {
			part, err := reader.NextPart()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file part is required"))
				return
			}
			if part.FormName() != chatImageField {
				_ = part.Close()
				continue
			}
			result, err := svc.UploadImage(r.Context(), userID, part.Header.Get("Content-Type"), part)
			_ = part.Close()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, result)
			return
		}
	}
}
