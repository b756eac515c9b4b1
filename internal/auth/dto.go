package auth

import (
	"github.com/angelmondragon/scanmarket-backend/internal/users"
	"github.com/angelmondragon/scanmarket-backend/pkg/types"
)

const tokenTypeBearer = "bearer"

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

type GoogleLoginRequest struct {
	IDToken     *string `json:"id_token"`
	Code        *string `json:"code"`
	RedirectURI *string `json:"redirect_uri"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by every login flow.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         *users.UserDTO `json:"user,omitempty"`
}

// ProfileUpdateRequest is a PATCH body; avatar and location accept null to clear.
type ProfileUpdateRequest struct {
	Name         *string              `json:"name" validate:"omitempty,max=200"`
	AvatarURL    types.NullableString `json:"avatar_url"`
	LocationName types.NullableString `json:"location_name"`
}

type SummaryResponse struct {
	User           users.UserDTO `json:"user"`
	ProductCount   int64         `json:"product_count"`
	UnreadMessages int64         `json:"unread_messages"`
}
