package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/scanmarket-backend/pkg/auth"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
)

func TestParseInboundFrame(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantBody string
		wantURL  string
	}{
		{"text", `{"body":"  hello "}`, true, "hello", ""},
		{"image only", `{"image_url":"https://cdn.example.com/a.jpg"}`, true, "", "https://cdn.example.com/a.jpg"},
		{"image with body", `{"body":"look","image_url":"http://x/y.png"}`, true, "look", "http://x/y.png"},
		{"bad scheme dropped", `{"body":"hi","image_url":"javascript:alert(1)"}`, true, "hi", ""},
		{"non string url dropped", `{"body":"hi","image_url":42}`, true, "hi", ""},
		{"bad scheme only", `{"image_url":"ftp://x/y.png"}`, false, "", ""},
		{"empty", `{"body":"   "}`, false, "", ""},
		{"invalid json", `hello`, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, imageURL, ok := ParseInboundFrame([]byte(tt.raw))
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBody, body)
			if tt.wantURL == "" {
				assert.Nil(t, imageURL)
			} else {
				require.NotNil(t, imageURL)
				assert.Equal(t, tt.wantURL, *imageURL)
			}
		})
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "https://evil.example", true},
		{[]string{"https://app.example"}, "", true},
		{[]string{"https://app.example"}, "https://APP.example", true},
		{[]string{"https://app.example"}, "https://evil.example", false},
		{[]string{"*"}, "https://any.example", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/v1/chats/x", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := originChecker(tt.allowed)(r); got != tt.want {
			t.Fatalf("origin %q against %v: got %v want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}

func TestSocketUser(t *testing.T) {
	cfg := config.JWTConfig{Secret: "socket-secret", Issuer: "scanmarket", ExpirationMinutes: 5, RefreshTokenTTLMinutes: 60}
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Email: "a@example.com"})
	require.NoError(t, err)

	got, err := socketUser(cfg, " "+token+" ")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = socketUser(cfg, "")
	require.Error(t, err)

	refresh, _, _, err := pkgAuth.MintRefreshToken(cfg, time.Now(), userID)
	require.NoError(t, err)
	_, err = socketUser(cfg, refresh)
	require.Error(t, err)

	_, err = socketUser(cfg, "garbage")
	require.Error(t, err)
}
