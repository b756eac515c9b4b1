package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
)

// RefreshTokenRepository persists issued refresh token ids.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) WithTx(tx *gorm.DB) *RefreshTokenRepository {
	if tx == nil {
		return r
	}
	return &RefreshTokenRepository{db: tx}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID uuid.UUID, jti string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Create(&models.RefreshToken{UserID: userID, JTI: jti, ExpiresAt: expiresAt}).Error
}

// FindForUpdate locks the row so concurrent refreshes of one token serialize.
func (r *RefreshTokenRepository) FindForUpdate(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var row models.RefreshToken
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "jti = ?", jti).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Revoke marks jti revoked. Already revoked or unknown ids are left alone.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, jti string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", at).Error
}

// DeleteInactiveBefore removes tokens that expired, or were revoked, before cutoff.
func (r *RefreshTokenRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
