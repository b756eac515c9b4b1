package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// UserDTO is the public view of a user.
type UserDTO struct {
	ID           uuid.UUID          `json:"id"`
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	Provider     enums.AuthProvider `json:"provider"`
	AvatarURL    *string            `json:"avatar_url"`
	LocationName *string            `json:"location_name"`
	CreatedAt    time.Time          `json:"created_at"`
}

func FromModel(u *models.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Provider:     u.Provider,
		AvatarURL:    u.AvatarURL,
		LocationName: u.LocationName,
		CreatedAt:    u.CreatedAt,
	}
}
