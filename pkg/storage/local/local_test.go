package local

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s, err := New(Options{
		Root:          t.TempDir(),
		BaseURL:       "http://localhost:8000/",
		SigningSecret: "0123456789abcdef0123456789abcdef",
		UploadTTL:     time.Hour,
		Now:           func() time.Time { return now },
	})
	require.NoError(t, err)
	return s
}

func signedParams(t *testing.T, rawURL string) (string, string, string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return strings.TrimPrefix(u.Path, "/storage/"), u.Query().Get("exp"), u.Query().Get("sig")
}

func TestPresignAndVerifySignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newTestStore(t, now)

	rawURL, expiresAt, err := s.PresignUpload(context.Background(), "assets/a/model_usdz.usdz")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rawURL, "http://localhost:8000/storage/assets/a/model_usdz.usdz?"))
	assert.Equal(t, now.Add(time.Hour).Unix(), expiresAt.Unix())

	key, exp, sig := signedParams(t, rawURL)
	require.NoError(t, s.VerifySignature(key, exp, sig))

	assert.ErrorIs(t, s.VerifySignature("assets/a/other.usdz", exp, sig), storage.ErrInvalidSignature)
	assert.ErrorIs(t, s.VerifySignature(key, exp, strings.Repeat("0", 64)), storage.ErrInvalidSignature)
	assert.ErrorIs(t, s.VerifySignature(key, "not-a-number", sig), storage.ErrInvalidSignature)
	assert.ErrorIs(t, s.VerifySignature("../etc/passwd", exp, sig), storage.ErrInvalidKey)
}

func TestVerifySignatureHonoursClockSkew(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	s := newTestStore(t, issued)
	rawURL, expiresAt, err := s.PresignUpload(context.Background(), "assets/a/preview_png.png")
	require.NoError(t, err)
	key, exp, sig := signedParams(t, rawURL)

	s.now = func() time.Time { return expiresAt.Add(30 * time.Second) }
	require.NoError(t, s.VerifySignature(key, exp, sig))

	s.now = func() time.Time { return expiresAt.Add(ClockSkew + time.Second) }
	assert.ErrorIs(t, s.VerifySignature(key, exp, sig), storage.ErrExpired)
}

func TestSaveStatOpenVerify(t *testing.T) {
	s := newTestStore(t, time.Now())
	ctx := context.Background()
	payload := []byte("usdz-bytes")
	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	ok, err := storage.Exists(ctx, s, "assets/a/model_usdz.usdz")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "assets/a/model_usdz.usdz", bytes.NewReader(payload), int64(len(payload)), ""))

	info, err := s.Stat(ctx, "assets/a/model_usdz.usdz")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)

	rc, err := s.Open(ctx, "assets/a/model_usdz.usdz")
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, payload, got)

	ok, err = storage.Verify(ctx, s, "assets/a/model_usdz.usdz", int64(len(payload)), strings.ToUpper(checksum))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = storage.Verify(ctx, s, "assets/a/model_usdz.usdz", int64(len(payload))+1, checksum)
	require.NoError(t, err)
	assert.False(t, ok, "size mismatch must fail")

	ok, err = storage.Verify(ctx, s, "assets/a/model_usdz.usdz", int64(len(payload)), strings.Repeat("a", 64))
	require.NoError(t, err)
	assert.False(t, ok, "checksum mismatch must fail")

	ok, err = storage.Verify(ctx, s, "assets/a/missing.usdz", 1, checksum)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveRejectsEscapes(t *testing.T) {
	s := newTestStore(t, time.Now())
	ctx := context.Background()
	for _, key := range []string{"../x", "assets/../../x", "/abs", "a//b"} {
		err := s.Save(ctx, key, strings.NewReader("x"), 1, "")
		if !errors.Is(err, storage.ErrInvalidKey) {
			t.Fatalf("expected invalid key for %q, got %v", key, err)
		}
	}
	_, err := s.Open(ctx, "assets/none.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
