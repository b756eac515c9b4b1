package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller did not choose one, so rows can be
// created the same way on Postgres and on the sqlite test driver.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&CaptureSession{},
		&ModelAsset{},
		&ModelAssetFile{},
		&AssetImage{},
		&Product{},
		&ProductLike{},
		&Purchase{},
		&ChatRoom{},
		&ChatMessage{},
		&IdempotencyKey{},
	}
}
