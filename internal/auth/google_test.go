package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"

	"github.com/angelmondragon/scanmarket-backend/pkg/config"
)

func TestGoogleVerifierTriesEveryAudience(t *testing.T) {
	v := NewGoogleVerifier(config.AuthConfig{GoogleClientID: "web", GoogleIOSClientID: "ios"})
	var tried []string
	v.validate = func(_ context.Context, _ string, aud string) (*idtoken.Payload, error) {
		tried = append(tried, aud)
		if aud != "ios" {
			return nil, errors.New("audience mismatch")
		}
		return &idtoken.Payload{Subject: "sub-1", Claims: map[string]interface{}{
			"email":   "ios@example.com",
			"picture": "https://example.com/p.png",
		}}, nil
	}

	identity, err := v.VerifyIDToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "ios"}, tried)
	assert.Equal(t, "sub-1", identity.Subject)
	assert.Equal(t, "ios@example.com", identity.Name, "name falls back to email")
	require.NotNil(t, identity.AvatarURL)
}

func TestGoogleVerifierRejections(t *testing.T) {
	v := NewGoogleVerifier(config.AuthConfig{GoogleClientID: "web"})
	v.validate = func(context.Context, string, string) (*idtoken.Payload, error) {
		return nil, errors.New("expired")
	}
	_, err := v.VerifyIDToken(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidIdentity)

	v.validate = func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Subject: "s", Claims: map[string]interface{}{}}, nil
	}
	_, err = v.VerifyIDToken(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = NewGoogleVerifier(config.AuthConfig{}).VerifyIDToken(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidIdentity)
}
