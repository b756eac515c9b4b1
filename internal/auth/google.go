package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/idtoken"

	"github.com/angelmondragon/scanmarket-backend/pkg/config"
)

// ErrInvalidIdentity marks credentials the identity provider rejected.
var ErrInvalidIdentity = errors.New("invalid identity credentials")

// ExternalIdentity is what a provider vouches for after verification.
type ExternalIdentity struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL *string
}

// IdentityVerifier validates provider credentials. Rejections wrap
// ErrInvalidIdentity; anything else is a transport failure.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
}

type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier checks Google ID tokens against every configured client id
// and exchanges web auth codes for ID tokens.
type GoogleVerifier struct {
	audiences []string
	oauth     *oauth2.Config
	validate  tokenValidator
}

func NewGoogleVerifier(cfg config.AuthConfig) *GoogleVerifier {
	return &GoogleVerifier{
		audiences: cfg.GoogleAudiences(),
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		validate: idtoken.Validate,
	}
}

func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error) {
	if len(g.audiences) == 0 {
		return nil, fmt.Errorf("%w: google sign-in is not configured", ErrInvalidIdentity)
	}
	var lastErr error
	for _, aud := range g.audiences {
		payload, err := g.validate(ctx, rawIDToken, aud)
		if err != nil {
			lastErr = err
			continue
		}
		return identityFromPayload(payload)
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, lastErr)
}

func (g *GoogleVerifier) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	conf := *g.oauth
	if redirectURI != "" {
		conf.RedirectURL = redirectURI
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return "", fmt.Errorf("%w: code exchange rejected: %v", ErrInvalidIdentity, err)
		}
		return "", fmt.Errorf("exchange google auth code: %w", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("%w: no id_token in google response", ErrInvalidIdentity)
	}
	return raw, nil
}

func identityFromPayload(payload *idtoken.Payload) (*ExternalIdentity, error) {
	email, _ := payload.Claims["email"].(string)
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrInvalidIdentity)
	}
	out := &ExternalIdentity{Subject: payload.Subject, Email: email}
	if name, ok := payload.Claims["name"].(string); ok && name != "" {
		out.Name = name
	} else {
		out.Name = email
	}
	if picture, ok := payload.Claims["picture"].(string); ok && picture != "" {
		out.AvatarURL = &picture
	}
	return out, nil
}
