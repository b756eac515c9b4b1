package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// Repository persists marketplace members.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads users keyed by id. Unknown ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	out := make(map[uuid.UUID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Identity is what a provider tells us about a signing-in user.
type Identity struct {
	Email      string
	Name       string
	Provider   enums.AuthProvider
	ProviderID *string
	AvatarURL  *string
}

// GetOrCreate returns the user with the identity's email, creating it on first
// sign in. Concurrent first sign-ins race on uq_users_email; the loser re-reads.
// An existing user gains the provider avatar only when it has none.
func (r *Repository) GetOrCreate(ctx context.Context, identity Identity) (*models.User, error) {
	email := NormalizeEmail(identity.Email)
	existing, err := r.FindByEmail(ctx, email)
	if err == nil {
		if existing.AvatarURL == nil && identity.AvatarURL != nil {
			existing.AvatarURL = identity.AvatarURL
			if err := r.db.WithContext(ctx).Model(existing).Update("avatar_url", identity.AvatarURL).Error; err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user := &models.User{
		Email:      email,
		Name:       name,
		Provider:   identity.Provider,
		ProviderID: identity.ProviderID,
		AvatarURL:  identity.AvatarURL,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsUniqueViolation(err, "uq_users_email") {
			return r.FindByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}

// ProfilePatch holds the optional profile fields. Nil fields are left alone.
type ProfilePatch struct {
	Name         *string
	AvatarURL    **string
	LocationName **string
}

func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) error {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = *patch.AvatarURL
	}
	if patch.LocationName != nil {
		updates["location_name"] = *patch.LocationName
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
