package assets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// Repository persists model assets, their files and images.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateAsset(ctx context.Context, asset *models.ModelAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// FindByID loads an asset with its files and images in display order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ModelAsset, error) {
	var asset models.ModelAsset
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("file_role ASC") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("image_type DESC, sort_order ASC") }).
		First(&asset, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// FindForUpdate loads the asset row holding a write lock until the enclosing
// transaction ends.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ModelAsset, error) {
	var asset models.ModelAsset
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&asset, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AssetStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ModelAsset{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repository) CreateFiles(ctx context.Context, files []models.ModelAssetFile) error {
	if len(files) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&files).Error
}

func (r *Repository) CreateImages(ctx context.Context, images []models.AssetImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

// ThumbnailKeys returns the storage key of the first THUMBNAIL image of each
// asset, keyed by asset id.
func (r *Repository) ThumbnailKeys(ctx context.Context, assetIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}
	var rows []models.AssetImage
	err := r.db.WithContext(ctx).
		Where("asset_id IN ? AND image_type = ?", assetIDs, enums.ImageTypeThumbnail).
		Order("sort_order ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, seen := out[row.AssetID]; !seen {
			out[row.AssetID] = row.StorageKey
		}
	}
	return out, nil
}

func (r *Repository) CreateCaptureSession(ctx context.Context, session *models.CaptureSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) FindCaptureSession(ctx context.Context, id uuid.UUID) (*models.CaptureSession, error) {
	var session models.CaptureSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}
