package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// ValidateKey rejects keys that could escape the storage root or that carry
// characters outside the safe set.
func ValidateKey(key string) error {
	if key == "" || !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "./") {
		return ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "", ".", "..":
			return ErrInvalidKey
		}
	}
	return nil
}

// ModelKey is the storage key for an asset file role.
func ModelKey(assetID uuid.UUID, role enums.FileRole) (string, error) {
	ext, err := role.Extension()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("assets/%s/%s.%s", assetID, role.Lower(), ext), nil
}

// ImageKey is the storage key for a listing image.
func ImageKey(assetID uuid.UUID, imageType enums.ImageType, sortOrder int) (string, error) {
	if !imageType.IsValid() {
		return "", fmt.Errorf("invalid image type %q", imageType)
	}
	return fmt.Sprintf("assets/%s/%s_%d.png", assetID, imageType.Lower(), sortOrder), nil
}

// ChatImageKey returns a fresh key for a chat photo with the given extension.
func ChatImageKey(ext string) string {
	return fmt.Sprintf("chat-images/%s%s", uuid.NewString(), ext)
}

var contentTypes = map[string]string{
	".usdz": "model/vnd.usdz+zip",
	".glb":  "model/gltf-binary",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// ContentType infers the media type served for key from its extension.
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
