package enums

import (
	"fmt"
	"strings"
)

// FileRole identifies which artifact of a scanned model a file holds.
type FileRole string

const (
	FileRoleModelUSDZ  FileRole = "MODEL_USDZ"
	FileRoleModelGLB   FileRole = "MODEL_GLB"
	FileRolePreviewPNG FileRole = "PREVIEW_PNG"
)

var validFileRoles = []FileRole{
	FileRoleModelUSDZ,
	FileRoleModelGLB,
	FileRolePreviewPNG,
}

func (r FileRole) String() string {
	return string(r)
}

func (r FileRole) IsValid() bool {
	for _, candidate := range validFileRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// Extension returns the storage file extension for the role.
func (r FileRole) Extension() (string, error) {
	switch r {
	case FileRoleModelUSDZ:
		return "usdz", nil
	case FileRoleModelGLB:
		return "glb", nil
	case FileRolePreviewPNG:
		return "png", nil
	default:
		return "", fmt.Errorf("invalid file role %q", string(r))
	}
}

// IsModel reports whether the role carries renderable 3D geometry.
func (r FileRole) IsModel() bool {
	return r == FileRoleModelUSDZ || r == FileRoleModelGLB
}

// Lower returns the lowercase form used in storage keys.
func (r FileRole) Lower() string {
	return strings.ToLower(string(r))
}

func ParseFileRole(value string) (FileRole, error) {
	for _, candidate := range validFileRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file role %q", value)
}

// ImageType distinguishes listing thumbnails from gallery images.
type ImageType string

const (
	ImageTypeThumbnail ImageType = "THUMBNAIL"
	ImageTypeDisplay   ImageType = "DISPLAY"
)

var validImageTypes = []ImageType{
	ImageTypeThumbnail,
	ImageTypeDisplay,
}

func (t ImageType) String() string {
	return string(t)
}

func (t ImageType) IsValid() bool {
	for _, candidate := range validImageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func (t ImageType) Lower() string {
	return strings.ToLower(string(t))
}

func ParseImageType(value string) (ImageType, error) {
	for _, candidate := range validImageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid image type %q", value)
}
