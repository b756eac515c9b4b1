// Package local stores objects on the filesystem and signs upload URLs that
// the API's dev storage endpoint accepts.
package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
)

// ClockSkew is how long after its expiry a signed URL is still honoured.
const ClockSkew = 60 * time.Second

// Store is a filesystem backed storage.Gateway.
type Store struct {
	root      string
	baseURL   string
	secret    []byte
	uploadTTL time.Duration
	now       func() time.Time
}

// Options configures a Store.
type Options struct {
	Root          string
	BaseURL       string
	SigningSecret string
	UploadTTL     time.Duration
	Now           func() time.Time
}

// New prepares the storage root and returns a Store.
func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, fmt.Errorf("storage root required")
	}
	if opts.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	ttl := opts.UploadTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		root:      root,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		secret:    []byte(opts.SigningSecret),
		uploadTTL: ttl,
		now:       now,
	}, nil
}

// Root returns the absolute directory objects are written under.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) PresignUpload(_ context.Context, key string) (string, time.Time, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.uploadTTL).UTC()
	exp := strconv.FormatInt(expiresAt.Unix(), 10)

	q := url.Values{}
	q.Set("exp", exp)
	q.Set("sig", s.sign(key, exp))
	return fmt.Sprintf("%s/storage/%s?%s", s.baseURL, key, q.Encode()), expiresAt, nil
}

func (s *Store) DownloadURL(_ context.Context, key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/storage/%s", s.baseURL, key), nil
}

// VerifySignature checks a PUT signature issued by PresignUpload.
func (s *Store) VerifySignature(key, exp, sig string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return storage.ErrInvalidSignature
	}
	expected := s.sign(key, exp)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return storage.ErrInvalidSignature
	}
	if s.now().After(time.Unix(expUnix, 0).Add(ClockSkew)) {
		return storage.ErrExpired
	}
	return nil
}

func (s *Store) sign(key, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("PUT\n" + key + "\n" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	p, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ObjectInfo{}, storage.ErrNotFound
		}
		return storage.ObjectInfo{}, err
	}
	if fi.IsDir() {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	return storage.ObjectInfo{Key: key, Size: fi.Size()}, nil
}

// resolve maps key onto a path strictly inside the root.
func (s *Store) resolve(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	full := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(key)))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", storage.ErrInvalidKey
	}
	return full, nil
}

var _ storage.Gateway = (*Store)(nil)
