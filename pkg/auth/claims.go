package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting an access token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
}

// AccessTokenClaims is the short lived bearer token sent on every request.
type AccessTokenClaims struct {
	Email string          `json:"email"`
	Type  enums.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims identifies a server-side refresh token row by jti.
type RefreshTokenClaims struct {
	Type enums.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) UserID() (uuid.UUID, error) {
	return subjectID(c.Subject)
}

func (c *RefreshTokenClaims) UserID() (uuid.UUID, error) {
	return subjectID(c.Subject)
}

func subjectID(sub string) (uuid.UUID, error) {
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject %q: %w", sub, err)
	}
	return id, nil
}
