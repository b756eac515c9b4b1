package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/scanmarket-backend/api/responses"
	"github.com/angelmondragon/scanmarket-backend/internal/idempotency"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255
)

type idempotencyGuard interface {
	Check(ctx context.Context, scope idempotency.Scope, body []byte) (*idempotency.Record, error)
	Store(ctx context.Context, scope idempotency.Scope, body []byte, status int, contentType string, response []byte) error
}

type idempotencyRule struct {
	method  string
	pattern string
	// optional rules only engage when the client sends a key.
	optional bool
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, pattern: "/v1/model-assets/uploads/complete"},
	{method: http.MethodPost, pattern: "/v1/products/publish"},
	{method: http.MethodPost, pattern: "/v1/products/{id}/purchase", optional: true},
}

// Idempotency replays the first successful response for a repeated key. It must
// run after routing and after Auth so the pattern and actor are known.
func Idempotency(guard idempotencyGuard, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchIdempotencyRule(r.Method, routePattern(r))
			if guard == nil || !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" && rule.optional {
				next.ServeHTTP(w, r)
				return
			}
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			if len(key) > maxIdempotencyKey {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := idempotency.Scope{
				ActorID: UserIDFromContext(r.Context()),
				Method:  r.Method,
				Path:    r.URL.Path,
				Key:     key,
			}

			record, err := guard.Check(r.Context(), scope, body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if record != nil {
				writeStoredResponse(w, record)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			// The business transaction has already committed; a failure here only
			// loses replay for this key.
			if err := guard.Store(r.Context(), scope, body, status, rec.Header().Get("Content-Type"), rec.body.Bytes()); err != nil && logg != nil {
				logg.Error(logg.WithField(r.Context(), "idempotency_key", key), "idempotency.store_failed", err)
			}
		})
	}
}

func matchIdempotencyRule(method, pattern string) (idempotencyRule, bool) {
	if pattern == "" {
		return idempotencyRule{}, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.pattern == pattern {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func writeStoredResponse(w http.ResponseWriter, record *idempotency.Record) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
