// Package storage defines the object storage surface used for scanned model
// assets, listing images and chat photos.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrInvalidKey       = errors.New("invalid storage key")
	ErrNotFound         = errors.New("object not found")
	ErrInvalidSignature = errors.New("invalid upload signature")
	ErrExpired          = errors.New("upload url expired")
)

// ObjectInfo is the metadata the gateway exposes about a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Gateway is implemented by every storage backend.
type Gateway interface {
	// PresignUpload returns a URL the client can PUT the object to directly.
	PresignUpload(ctx context.Context, key string) (string, time.Time, error)
	// DownloadURL returns a URL the client can GET the object from.
	DownloadURL(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// Exists reports whether key is present in the gateway.
func Exists(ctx context.Context, g Gateway, key string) (bool, error) {
	if _, err := g.Stat(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Verify checks the stored object against the size and SHA-256 the client
// claimed. The size is compared first so mismatched uploads are rejected
// without reading the object.
func Verify(ctx context.Context, g Gateway, key string, size int64, checksum string) (bool, error) {
	info, err := g.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if info.Size != size {
		return false, nil
	}

	rc, err := g.Open(ctx, key)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	sum, err := SHA256Hex(rc)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, strings.TrimSpace(checksum)), nil
}

// SHA256Hex streams r and returns its lowercase hex digest.
func SHA256Hex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
