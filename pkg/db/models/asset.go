package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// CaptureSession groups the frames a device recorded while scanning an object.
type CaptureSession struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID    uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index:idx_capture_sessions_owner_id"`
	DeviceInfo *string   `gorm:"column:device_info"`
	FrameCount *int      `gorm:"column:frame_count"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *CaptureSession) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ModelAsset is a 3D scan moving through the upload lifecycle.
type ModelAsset struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID          uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index:idx_model_assets_owner_status,priority:1"`
	Status           enums.AssetStatus `gorm:"column:status;type:varchar(16);not null;index:idx_model_assets_owner_status,priority:2"`
	DimsSource       *enums.DimsSource `gorm:"column:dims_source;type:varchar(32)"`
	DimsWidth        *float64          `gorm:"column:dims_width"`
	DimsHeight       *float64          `gorm:"column:dims_height"`
	DimsDepth        *float64          `gorm:"column:dims_depth"`
	CaptureSessionID *uuid.UUID        `gorm:"column:capture_session_id;type:uuid"`
	Files            []ModelAssetFile  `gorm:"foreignKey:AssetID"`
	Images           []AssetImage      `gorm:"foreignKey:AssetID"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *ModelAsset) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// ModelAssetFile is a verified artifact stored for an asset. One row per role.
type ModelAssetFile struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	AssetID        uuid.UUID      `gorm:"column:asset_id;type:uuid;not null;uniqueIndex:uq_model_asset_files_asset_role,priority:1"`
	FileRole       enums.FileRole `gorm:"column:file_role;type:varchar(32);not null;uniqueIndex:uq_model_asset_files_asset_role,priority:2"`
	StorageKey     string         `gorm:"column:storage_key;type:varchar(512);not null;uniqueIndex:uq_model_asset_files_storage_key"`
	SizeBytes      int64          `gorm:"column:size_bytes;not null"`
	ChecksumSHA256 string         `gorm:"column:checksum_sha256;type:varchar(64);not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (f *ModelAssetFile) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// AssetImage is a verified listing image stored for an asset.
type AssetImage struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AssetID        uuid.UUID       `gorm:"column:asset_id;type:uuid;not null;index:idx_asset_images_asset_id"`
	ImageType      enums.ImageType `gorm:"column:image_type;type:varchar(16);not null"`
	StorageKey     string          `gorm:"column:storage_key;type:varchar(512);not null;uniqueIndex:uq_asset_images_storage_key"`
	SizeBytes      int64           `gorm:"column:size_bytes;not null"`
	ChecksumSHA256 string          `gorm:"column:checksum_sha256;type:varchar(64);not null"`
	SortOrder      int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *AssetImage) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
