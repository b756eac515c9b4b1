package idempotency

import (
	"context"
	"strings"
	"time"
)

// Scope identifies one logical request a client may retry.
type Scope struct {
	ActorID string
	Method  string
	Path    string
	Key     string
}

// Prefix joins everything except the client key.
func (s Scope) Prefix() string {
	return strings.Join([]string{s.ActorID, s.Method, s.Path}, "|")
}

// Record is the first successful response stored for a scope.
type Record struct {
	RequestHash string    `json:"request_hash"`
	Status      int       `json:"status"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists records. Find returns (nil, nil) when nothing is stored, and
// Save keeps the first record written for a scope.
type Store interface {
	Find(ctx context.Context, scope Scope) (*Record, error)
	Save(ctx context.Context, scope Scope, record Record) error
}
