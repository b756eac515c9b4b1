package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdempotencyKey stores the first successful response for a client retry key.
type IdempotencyKey struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ActorID        string    `gorm:"column:actor_id;type:varchar(64);not null;uniqueIndex:uq_idempotency_keys_scope,priority:1"`
	Method         string    `gorm:"column:method;type:varchar(8);not null;uniqueIndex:uq_idempotency_keys_scope,priority:2"`
	Path           string    `gorm:"column:path;type:varchar(512);not null;uniqueIndex:uq_idempotency_keys_scope,priority:3"`
	Key            string    `gorm:"column:key;type:varchar(255);not null;uniqueIndex:uq_idempotency_keys_scope,priority:4"`
	RequestHash    string    `gorm:"column:request_hash;type:varchar(64);not null"`
	ResponseStatus int       `gorm:"column:response_status;not null"`
	ResponseBody   []byte    `gorm:"column:response_body"`
	ContentType    string    `gorm:"column:content_type;type:varchar(128);not null;default:application/json"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (k *IdempotencyKey) BeforeCreate(*gorm.DB) error {
	ensureID(&k.ID)
	return nil
}
