package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/scanmarket-backend/api/validators"
	"github.com/angelmondragon/scanmarket-backend/internal/chat"
	pkgAuth "github.com/angelmondragon/scanmarket-backend/pkg/auth"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
)

// WebSocket close codes sent when a chat connection is refused.
const (
	CloseInvalidToken   = 4001
	CloseNotParticipant = 4003
	CloseReplaced       = 4000
)

const (
	wsWriteWait       = 10 * time.Second
	wsMaxMessageBytes = 16 << 10
)

// ChatSocketOptions tunes the WebSocket endpoint.
type ChatSocketOptions struct {
	JWT            config.JWTConfig
	PingInterval   time.Duration
	AllowedOrigins []string
}

// ChatSocket serves GET /v1/chats/{room_id}?token=. The connection is
// upgraded first so refusals can carry a close code.
func ChatSocket(svc chat.Service, hub *chat.Hub, opts ChatSocketOptions, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pongWait := ping + ping/2

	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || hub == nil {
			serviceUnavailable(w, r, logg, "chat")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered with an HTTP error.
			return
		}
		defer conn.Close()
		ctx := r.Context()

		userID, err := socketUser(opts.JWT, r.URL.Query().Get("token"))
		if err != nil {
			closeWith(conn, CloseInvalidToken, "invalid token")
			return
		}
		if logg != nil {
			ctx = logg.WithUserID(ctx, userID.String())
		}

		roomID, err := validators.ParseUUIDParam(r, "room_id")
		if err != nil {
			closeWith(conn, CloseNotParticipant, "unknown room")
			return
		}
		if logg != nil {
			ctx = logg.WithRoomID(ctx, roomID.String())
		}
		if _, err := svc.Participant(ctx, userID, roomID); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
				closeWith(conn, CloseNotParticipant, "not a participant")
				return
			}
			if logg != nil {
				logg.Error(ctx, "chat.ws.authorize_failed", err)
			}
			closeWith(conn, websocket.CloseInternalServerErr, "internal error")
			return
		}

		client := hub.Register(roomID, userID)
		defer hub.Unregister(client)

		if _, err := svc.MarkRead(ctx, userID, roomID); err != nil && logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "chat.ws.mark_read_failed")
		}
		if logg != nil {
			logg.Info(ctx, "chat.ws.connected")
		}

		readerDone := make(chan struct{})
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writePump(conn, client, readerDone, ping)
		}()

		conn.SetReadLimit(wsMaxMessageBytes)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		readPump(ctx, conn, svc, userID, roomID, logg)
		close(readerDone)
		hub.Unregister(client)
		<-writerDone

		if logg != nil {
			logg.Info(ctx, "chat.ws.disconnected")
		}
	}
}

func readPump(ctx context.Context, conn *websocket.Conn, svc chat.Service, userID, roomID uuid.UUID, logg *logger.Logger) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if logg != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "chat.ws.read_failed")
			}
			return
		}

		body, imageURL, ok := ParseInboundFrame(raw)
		if !ok {
			continue
		}
		if _, err := svc.SendMessage(ctx, userID, roomID, body, imageURL); err != nil && logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "chat.ws.send_failed")
		}
	}
}

// writePump drains the client's queue and keeps the connection alive with
// pings. It owns every write to conn.
func writePump(conn *websocket.Conn, client *chat.Client, readerDone <-chan struct{}, ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case frame := <-client.Outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		case <-client.Done():
			// evicted or replaced by a newer socket for the same user
			closeWith(conn, CloseReplaced, "connection replaced")
			_ = conn.Close()
			return
		case <-readerDone:
			return
		}
	}
}

// ParseInboundFrame applies the inbound frame rules: invalid JSON is ignored,
// a non-http(s) or non-string image_url is dropped and a frame with neither
// body nor image is skipped.
func ParseInboundFrame(raw []byte) (string, *string, bool) {
	var frame chat.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", nil, false
	}

	body := ""
	if frame.Body != nil {
		body = strings.TrimSpace(*frame.Body)
	}
	var imageURL *string
	if s, ok := frame.ImageURL.(string); ok {
		s = strings.TrimSpace(s)
		if chat.IsHTTPURL(s) {
			imageURL = &s
		}
	}
	if body == "" && imageURL == nil {
		return "", nil, false
	}
	return body, imageURL, true
}

func socketUser(cfg config.JWTConfig, token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, validators.ErrInvalidToken
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID()
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// originChecker allows native clients (no Origin header) and the configured
// browser origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || strings.EqualFold(candidate, origin) {
				return true
			}
		}
		return false
	}
}
