package enums

import "fmt"

// AuthProvider names the identity provider a user signed in with.
type AuthProvider string

const (
	AuthProviderDev    AuthProvider = "dev"
	AuthProviderGoogle AuthProvider = "google"
)

var validAuthProviders = []AuthProvider{AuthProviderDev, AuthProviderGoogle}

func (p AuthProvider) String() string {
	return string(p)
}

func (p AuthProvider) IsValid() bool {
	for _, candidate := range validAuthProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseAuthProvider converts raw input into an AuthProvider.
func ParseAuthProvider(value string) (AuthProvider, error) {
	for _, candidate := range validAuthProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auth provider %q", value)
}

// TokenType separates short lived access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

func (t TokenType) String() string {
	return string(t)
}
