package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

// Guard decides whether a retried request replays a stored response.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Check returns the stored record for an identical retry, nil when the scope is
// new, and an IDEMPOTENCY_KEY_REUSED error when the key was used with another body.
func (g *Guard) Check(ctx context.Context, scope Scope, body []byte) (*Record, error) {
	record, err := g.store.Find(ctx, scope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	if record == nil {
		return nil, nil
	}
	if record.RequestHash != HashBody(body) {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body").
			WithDetails(map[string]any{"key": scope.Key})
	}
	return record, nil
}

// Store remembers a response. Non-2xx responses are not stored so the client
// can retry after fixing the request.
func (g *Guard) Store(ctx context.Context, scope Scope, body []byte, status int, contentType string, response []byte) error {
	if status < 200 || status > 299 {
		return nil
	}
	err := g.store.Save(ctx, scope, Record{
		RequestHash: HashBody(body),
		Status:      status,
		Body:        response,
		ContentType: contentType,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist idempotency record")
	}
	return nil
}

func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
