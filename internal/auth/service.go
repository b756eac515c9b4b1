package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/internal/users"
	pkgAuth "github.com/angelmondragon/scanmarket-backend/pkg/auth"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
)

const invalidRefreshMessage = "invalid refresh token"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Providers() ProvidersResponse
	DevLogin(ctx context.Context, code string) (*TokenResponse, error)
	GoogleLogin(ctx context.Context, idToken string) (*TokenResponse, error)
	GoogleLoginWithCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	Summary(ctx context.Context, userID uuid.UUID) (*SummaryResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req ProfileUpdateRequest) (*users.UserDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCounter interface {
	CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error)
}

type unreadCounter interface {
	TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Tx            txRunner
	Users         *users.Repository
	RefreshTokens *RefreshTokenRepository
	Verifier      IdentityVerifier
	Products      productCounter
	Unread        unreadCounter
	JWTConfig     config.JWTConfig
	AuthConfig    config.AuthConfig
	Logger        *logger.Logger
}

type service struct {
	tx       txRunner
	users    *users.Repository
	tokens   *RefreshTokenRepository
	verifier IdentityVerifier
	products productCounter
	unread   unreadCounter
	jwtCfg   config.JWTConfig
	authCfg  config.AuthConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the auth service. Verifier may be nil when Google
// sign-in is not configured.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner is required")
	case params.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	case params.RefreshTokens == nil:
		return nil, fmt.Errorf("refresh token repository is required")
	case params.Products == nil:
		return nil, fmt.Errorf("product counter is required")
	case params.Unread == nil:
		return nil, fmt.Errorf("unread counter is required")
	}
	return &service{
		tx:       params.Tx,
		users:    params.Users,
		tokens:   params.RefreshTokens,
		verifier: params.Verifier,
		products: params.Products,
		unread:   params.Unread,
		jwtCfg:   params.JWTConfig,
		authCfg:  params.AuthConfig,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Providers() ProvidersResponse {
	providers := []string{}
	if s.authCfg.DevAuthEnabled {
		providers = append(providers, enums.AuthProviderDev.String())
	}
	if s.authCfg.GoogleEnabled() {
		providers = append(providers, enums.AuthProviderGoogle.String())
	}
	return ProvidersResponse{Providers: providers}
}

// DevLogin signs in with a "email:name" code. Only available when dev auth is
// enabled.
func (s *service) DevLogin(ctx context.Context, code string) (*TokenResponse, error) {
	if !s.authCfg.DevAuthEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dev auth is disabled")
	}
	email, name, ok := ParseDevCode(code)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dev code must be email:name")
	}
	user, err := s.users.GetOrCreate(ctx, users.Identity{Email: email, Name: name, Provider: enums.AuthProviderDev})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "get or create user")
	}
	return s.issue(ctx, user)
}

func (s *service) GoogleLogin(ctx context.Context, idToken string) (*TokenResponse, error) {
	if s.verifier == nil || !s.authCfg.GoogleEnabled() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "google sign-in is not configured")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id_token or code is required")
	}
	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, identityError(err, "verify google id token")
	}

	subject := identity.Subject
	user, err := s.users.GetOrCreate(ctx, users.Identity{
		Email:      identity.Email,
		Name:       identity.Name,
		Provider:   enums.AuthProviderGoogle,
		ProviderID: &subject,
		AvatarURL:  identity.AvatarURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "get or create user")
	}
	return s.issue(ctx, user)
}

func (s *service) GoogleLoginWithCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if s.verifier == nil || !s.authCfg.GoogleEnabled() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "google sign-in is not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id_token or code is required")
	}
	idToken, err := s.verifier.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, identityError(err, "exchange google auth code")
	}
	return s.GoogleLogin(ctx, idToken)
}

// Refresh rotates a refresh token: the presented jti is revoked and a new
// pair issued in the same transaction.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseRefreshToken(s.jwtCfg, refreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidRefreshMessage)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidRefreshMessage)
	}

	var resp *TokenResponse
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tokens := s.tokens.WithTx(tx)
		now := s.now()

		stored, err := tokens.FindForUpdate(ctx, claims.ID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token revoked or not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refresh token")
		}
		if !stored.Active(now) || stored.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token revoked or not found")
		}

		user, err := s.users.WithTx(tx).FindByID(ctx, userID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}

		if err := tokens.Revoke(ctx, stored.JTI, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke refresh token")
		}
		resp, err = s.mint(ctx, tokens, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp.User = nil
	return resp, nil
}

// Logout revokes the refresh token. Tokens that do not parse have nothing to
// revoke and are accepted.
func (s *service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := pkgAuth.ParseRefreshToken(s.jwtCfg, refreshToken)
	if err != nil {
		return nil
	}
	if err := s.tokens.Revoke(ctx, claims.ID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke refresh token")
	}
	return nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := users.FromModel(user)
	return &dto, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*SummaryResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.products.CountBySeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.unread.TotalUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{User: users.FromModel(user), ProductCount: count, UnreadMessages: unread}, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req ProfileUpdateRequest) (*users.UserDTO, error) {
	var patch users.ProfilePatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		patch.Name = &name
	}
	if req.AvatarURL.Valid {
		patch.AvatarURL = &req.AvatarURL.Value
	}
	if req.LocationName.Valid {
		patch.LocationName = &req.LocationName.Value
	}
	if patch.Name == nil && patch.AvatarURL == nil && patch.LocationName == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, patch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
	}
	return s.Me(ctx, userID)
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

func (s *service) issue(ctx context.Context, user *models.User) (*TokenResponse, error) {
	resp, err := s.mint(ctx, s.tokens, user, s.now())
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "auth.login")
	}
	return resp, nil
}

func (s *service) mint(ctx context.Context, tokens *RefreshTokenRepository, user *models.User, now time.Time) (*TokenResponse, error) {
	access, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	refresh, jti, expiresAt, err := pkgAuth.MintRefreshToken(s.jwtCfg, now, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint refresh token")
	}
	if err := tokens.Create(ctx, user.ID, jti, expiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	dto := users.FromModel(user)
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.jwtCfg.AccessTokenTTL().Seconds()),
		User:         &dto,
	}, nil
}

func identityError(err error, step string) error {
	if errors.Is(err, ErrInvalidIdentity) {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "google authentication failed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, step)
}

// ParseDevCode splits a dev login code of the form "email:name".
func ParseDevCode(code string) (email, name string, ok bool) {
	email, name, ok = strings.Cut(code, ":")
	email = strings.TrimSpace(email)
	if !ok || email == "" || !strings.Contains(email, "@") {
		return "", "", false
	}
	return email, strings.TrimSpace(name), true
}
