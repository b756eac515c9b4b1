package assets

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

type FileInitMeta struct {
	Role      enums.FileRole `json:"role" validate:"required"`
	SizeBytes int64          `json:"size_bytes" validate:"gt=0"`
}

type ImageInitMeta struct {
	ImageType enums.ImageType `json:"image_type" validate:"required"`
	SortOrder int             `json:"sort_order" validate:"gte=0"`
	SizeBytes int64           `json:"size_bytes" validate:"gt=0"`
}

// InitUploadInput is the body of POST /v1/model-assets/uploads/init.
type InitUploadInput struct {
	DimsSource       *enums.DimsSource `json:"dims_source"`
	DimsWidth        *float64          `json:"dims_width" validate:"omitempty,gt=0"`
	DimsHeight       *float64          `json:"dims_height" validate:"omitempty,gt=0"`
	DimsDepth        *float64          `json:"dims_depth" validate:"omitempty,gt=0"`
	CaptureSessionID *uuid.UUID        `json:"capture_session_id"`
	Files            []FileInitMeta    `json:"files" validate:"required,dive"`
	Images           []ImageInitMeta   `json:"images" validate:"omitempty,dive"`
}

type PresignedUploadTarget struct {
	Role      enums.FileRole `json:"role"`
	URL       string         `json:"url"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type PresignedImageTarget struct {
	ImageType enums.ImageType `json:"image_type"`
	SortOrder int             `json:"sort_order"`
	URL       string          `json:"url"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type InitUploadResult struct {
	AssetID               uuid.UUID               `json:"asset_id"`
	Status                enums.AssetStatus       `json:"status"`
	PresignedUploads      []PresignedUploadTarget `json:"presigned_uploads"`
	PresignedImageUploads []PresignedImageTarget  `json:"presigned_image_uploads"`
}

type FileCompleteMeta struct {
	Role           enums.FileRole `json:"role" validate:"required"`
	SizeBytes      int64          `json:"size_bytes" validate:"gt=0"`
	ChecksumSHA256 string         `json:"checksum_sha256" validate:"required,len=64,hexadecimal"`
}

type ImageCompleteMeta struct {
	ImageType      enums.ImageType `json:"image_type" validate:"required"`
	SortOrder      int             `json:"sort_order" validate:"gte=0"`
	SizeBytes      int64           `json:"size_bytes" validate:"gt=0"`
	ChecksumSHA256 string          `json:"checksum_sha256" validate:"required,len=64,hexadecimal"`
}

// CompleteUploadInput is the body of POST /v1/model-assets/uploads/complete.
type CompleteUploadInput struct {
	AssetID uuid.UUID           `json:"asset_id" validate:"required"`
	Files   []FileCompleteMeta  `json:"files" validate:"required,min=1,dive"`
	Images  []ImageCompleteMeta `json:"images" validate:"omitempty,dive"`
}

type FileVerifyResult struct {
	Role     enums.FileRole `json:"role"`
	Verified bool           `json:"verified"`
}

type ImageVerifyResult struct {
	ImageType enums.ImageType `json:"image_type"`
	SortOrder int             `json:"sort_order"`
	Verified  bool            `json:"verified"`
}

type CompleteUploadResult struct {
	AssetID      uuid.UUID           `json:"asset_id"`
	Status       enums.AssetStatus   `json:"status"`
	Files        []FileVerifyResult  `json:"files"`
	ImageResults []ImageVerifyResult `json:"image_results"`
}

type AssetFileInfo struct {
	Role           enums.FileRole `json:"role"`
	StorageKey     string         `json:"storage_key"`
	SizeBytes      int64          `json:"size_bytes"`
	ChecksumSHA256 string         `json:"checksum_sha256"`
}

type AssetImageInfo struct {
	ID         uuid.UUID       `json:"id"`
	ImageType  enums.ImageType `json:"image_type"`
	StorageKey string          `json:"storage_key"`
	SizeBytes  int64           `json:"size_bytes"`
	SortOrder  int             `json:"sort_order"`
}

// AssetDetail is the owner-facing view of an asset.
type AssetDetail struct {
	ID           uuid.UUID            `json:"id"`
	OwnerID      uuid.UUID            `json:"owner_id"`
	Status       enums.AssetStatus    `json:"status"`
	Availability enums.ArAvailability `json:"availability"`
	DimsSource   *enums.DimsSource    `json:"dims_source"`
	DimsWidth    *float64             `json:"dims_width"`
	DimsHeight   *float64             `json:"dims_height"`
	DimsDepth    *float64             `json:"dims_depth"`
	Files        []AssetFileInfo      `json:"files"`
	Images       []AssetImageInfo     `json:"images"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type ARFile struct {
	Role enums.FileRole `json:"role"`
	URL  string         `json:"url"`
	Type string         `json:"type"`
}

// ARAsset is the buyer-facing AR view of an asset.
type ARAsset struct {
	Availability enums.ArAvailability `json:"availability"`
	AssetID      *uuid.UUID           `json:"asset_id"`
	Files        []ARFile             `json:"files"`
	DimsSource   *enums.DimsSource    `json:"dims_source"`
	DimsTrust    *enums.DimsTrust     `json:"dims_trust"`
	DimsWidth    *float64             `json:"dims_width"`
	DimsHeight   *float64             `json:"dims_height"`
	DimsDepth    *float64             `json:"dims_depth"`
}

type CaptureSessionInput struct {
	DeviceInfo *string `json:"device_info" validate:"omitempty,max=500"`
	FrameCount *int    `json:"frame_count" validate:"omitempty,gte=0"`
}

type CaptureSession struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	DeviceInfo *string   `json:"device_info"`
	FrameCount *int      `json:"frame_count"`
	CreatedAt  time.Time `json:"created_at"`
}
