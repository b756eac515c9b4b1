package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// User represents a marketplace member, identified by email across providers.
type User struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Email        string             `gorm:"column:email;type:varchar(320);not null;uniqueIndex:uq_users_email"`
	Name         string             `gorm:"column:name;type:varchar(200);not null"`
	Provider     enums.AuthProvider `gorm:"column:provider;type:varchar(32);not null;default:dev"`
	ProviderID   *string            `gorm:"column:provider_id;type:varchar(255)"`
	AvatarURL    *string            `gorm:"column:avatar_url"`
	LocationName *string            `gorm:"column:location_name;type:varchar(200)"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// RefreshToken is the server-side record of an issued refresh token.
type RefreshToken struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index:idx_refresh_tokens_user_id"`
	JTI       string     `gorm:"column:jti;type:varchar(64);not null;uniqueIndex:uq_refresh_tokens_jti"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *RefreshToken) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Active reports whether the token can still be exchanged at now.
func (r *RefreshToken) Active(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}
