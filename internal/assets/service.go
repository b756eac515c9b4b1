package assets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the asset upload lifecycle.
type Service interface {
	CreateCaptureSession(ctx context.Context, ownerID uuid.UUID, input CaptureSessionInput) (*CaptureSession, error)
	InitUpload(ctx context.Context, ownerID uuid.UUID, input InitUploadInput) (*InitUploadResult, error)
	CompleteUpload(ctx context.Context, ownerID uuid.UUID, input CompleteUploadInput) (*CompleteUploadResult, error)
	GetAsset(ctx context.Context, assetID uuid.UUID) (*AssetDetail, error)
	GetARAsset(ctx context.Context, assetID uuid.UUID) (*ARAsset, error)
}

type service struct {
	tx      txRunner
	repo    *Repository
	storage storage.Gateway
	metrics *metrics.MarketplaceMetrics
	logg    *logger.Logger
}

// NewService wires the lifecycle engine. metrics and logg may be nil.
func NewService(tx txRunner, repo *Repository, gateway storage.Gateway, m *metrics.MarketplaceMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("asset repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("storage gateway required")
	}
	return &service{tx: tx, repo: repo, storage: gateway, metrics: m, logg: logg}, nil
}

func (s *service) CreateCaptureSession(ctx context.Context, ownerID uuid.UUID, input CaptureSessionInput) (*CaptureSession, error) {
	row := &models.CaptureSession{
		OwnerID:    ownerID,
		DeviceInfo: input.DeviceInfo,
		FrameCount: input.FrameCount,
	}
	if err := s.repo.CreateCaptureSession(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create capture session")
	}
	return &CaptureSession{
		ID:         row.ID,
		OwnerID:    row.OwnerID,
		DeviceInfo: row.DeviceInfo,
		FrameCount: row.FrameCount,
		CreatedAt:  row.CreatedAt,
	}, nil
}

func (s *service) InitUpload(ctx context.Context, ownerID uuid.UUID, input InitUploadInput) (*InitUploadResult, error) {
	if err := validateInit(input); err != nil {
		return nil, err
	}

	if input.CaptureSessionID != nil {
		session, err := s.repo.FindCaptureSession(ctx, *input.CaptureSessionID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "capture session not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load capture session")
		}
		if session.OwnerID != ownerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "capture session belongs to another user")
		}
	}

	result := &InitUploadResult{
		PresignedUploads:      make([]PresignedUploadTarget, 0, len(input.Files)),
		PresignedImageUploads: make([]PresignedImageTarget, 0, len(input.Images)),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		asset := &models.ModelAsset{
			OwnerID:          ownerID,
			Status:           enums.AssetStatusInitiated,
			DimsSource:       input.DimsSource,
			DimsWidth:        input.DimsWidth,
			DimsHeight:       input.DimsHeight,
			DimsDepth:        input.DimsDepth,
			CaptureSessionID: input.CaptureSessionID,
		}
		if err := repo.CreateAsset(ctx, asset); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create asset")
		}
		if err := transition(asset.Status, enums.AssetStatusUploading); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, asset.ID, enums.AssetStatusUploading); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark asset uploading")
		}

		for _, f := range input.Files {
			key, err := storage.ModelKey(asset.ID, f.Role)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file role")
			}
			url, expiresAt, err := s.storage.PresignUpload(ctx, key)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign upload")
			}
			result.PresignedUploads = append(result.PresignedUploads, PresignedUploadTarget{Role: f.Role, URL: url, ExpiresAt: expiresAt})
		}
		for _, img := range input.Images {
			key, err := storage.ImageKey(asset.ID, img.ImageType, img.SortOrder)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid image type")
			}
			url, expiresAt, err := s.storage.PresignUpload(ctx, key)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign image upload")
			}
			result.PresignedImageUploads = append(result.PresignedImageUploads, PresignedImageTarget{
				ImageType: img.ImageType,
				SortOrder: img.SortOrder,
				URL:       url,
				ExpiresAt: expiresAt,
			})
		}

		result.AssetID = asset.ID
		result.Status = enums.AssetStatusUploading
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) CompleteUpload(ctx context.Context, ownerID uuid.UUID, input CompleteUploadInput) (*CompleteUploadResult, error) {
	if err := validateComplete(input); err != nil {
		s.metrics.UploadCompleted(metrics.OutcomeRejected)
		return nil, err
	}

	result := &CompleteUploadResult{
		AssetID:      input.AssetID,
		Files:        make([]FileVerifyResult, 0, len(input.Files)),
		ImageResults: make([]ImageVerifyResult, 0, len(input.Images)),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		asset, err := repo.FindForUpdate(ctx, input.AssetID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
		}
		if asset.OwnerID != ownerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the owner of this asset")
		}
		if err := transition(asset.Status, enums.AssetStatusReady); err != nil {
			return err
		}

		files := make([]models.ModelAssetFile, 0, len(input.Files))
		for _, f := range input.Files {
			key, err := storage.ModelKey(asset.ID, f.Role)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file role")
			}
			if err := s.verifyObject(ctx, key, f.SizeBytes, f.ChecksumSHA256, "role "+f.Role.String()); err != nil {
				return err
			}
			files = append(files, models.ModelAssetFile{
				AssetID:        asset.ID,
				FileRole:       f.Role,
				StorageKey:     key,
				SizeBytes:      f.SizeBytes,
				ChecksumSHA256: f.ChecksumSHA256,
			})
			result.Files = append(result.Files, FileVerifyResult{Role: f.Role, Verified: true})
		}

		images := make([]models.AssetImage, 0, len(input.Images))
		for _, img := range input.Images {
			key, err := storage.ImageKey(asset.ID, img.ImageType, img.SortOrder)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid image type")
			}
			label := fmt.Sprintf("image %s #%d", img.ImageType, img.SortOrder)
			if err := s.verifyObject(ctx, key, img.SizeBytes, img.ChecksumSHA256, label); err != nil {
				return err
			}
			images = append(images, models.AssetImage{
				AssetID:        asset.ID,
				ImageType:      img.ImageType,
				StorageKey:     key,
				SizeBytes:      img.SizeBytes,
				ChecksumSHA256: img.ChecksumSHA256,
				SortOrder:      img.SortOrder,
			})
			result.ImageResults = append(result.ImageResults, ImageVerifyResult{ImageType: img.ImageType, SortOrder: img.SortOrder, Verified: true})
		}

		if err := repo.CreateFiles(ctx, files); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "asset files already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record asset files")
		}
		if err := repo.CreateImages(ctx, images); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "asset images already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record asset images")
		}
		if err := repo.UpdateStatus(ctx, asset.ID, enums.AssetStatusReady); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark asset ready")
		}
		result.Status = enums.AssetStatusReady
		return nil
	})
	if err != nil {
		s.metrics.UploadCompleted(metrics.OutcomeOf(err))
		return nil, err
	}

	s.metrics.UploadCompleted(metrics.OutcomeSuccess)
	if s.logg != nil {
		s.logg.Info(s.logg.WithAssetID(ctx, input.AssetID.String()), "upload.complete")
	}
	return result, nil
}

func (s *service) verifyObject(ctx context.Context, key string, size int64, checksum, label string) error {
	exists, err := storage.Exists(ctx, s.storage, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stat object")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "object not found for "+label)
	}
	ok, err := storage.Verify(ctx, s.storage, key, size, checksum)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify object")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checksum/size mismatch for "+label)
	}
	return nil
}

func (s *service) GetAsset(ctx context.Context, assetID uuid.UUID) (*AssetDetail, error) {
	asset, err := s.repo.FindByID(ctx, assetID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
	}

	detail := &AssetDetail{
		ID:           asset.ID,
		OwnerID:      asset.OwnerID,
		Status:       asset.Status,
		Availability: ComputeAvailability(asset.Status, hasModelFile(asset.Files)),
		DimsSource:   asset.DimsSource,
		DimsWidth:    asset.DimsWidth,
		DimsHeight:   asset.DimsHeight,
		DimsDepth:    asset.DimsDepth,
		Files:        make([]AssetFileInfo, 0, len(asset.Files)),
		Images:       make([]AssetImageInfo, 0, len(asset.Images)),
		CreatedAt:    asset.CreatedAt,
		UpdatedAt:    asset.UpdatedAt,
	}
	for _, f := range asset.Files {
		detail.Files = append(detail.Files, AssetFileInfo{
			Role:           f.FileRole,
			StorageKey:     f.StorageKey,
			SizeBytes:      f.SizeBytes,
			ChecksumSHA256: f.ChecksumSHA256,
		})
	}
	for _, img := range asset.Images {
		detail.Images = append(detail.Images, AssetImageInfo{
			ID:         img.ID,
			ImageType:  img.ImageType,
			StorageKey: img.StorageKey,
			SizeBytes:  img.SizeBytes,
			SortOrder:  img.SortOrder,
		})
	}
	return detail, nil
}

func (s *service) GetARAsset(ctx context.Context, assetID uuid.UUID) (*ARAsset, error) {
	asset, err := s.repo.FindByID(ctx, assetID)
	if err != nil {
		if db.IsNotFound(err) {
			return &ARAsset{Availability: enums.ArAvailabilityNone, Files: []ARFile{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
	}

	availability := ComputeAvailability(asset.Status, hasModelFile(asset.Files))
	out := &ARAsset{
		Availability: availability,
		AssetID:      &asset.ID,
		Files:        []ARFile{},
		DimsSource:   asset.DimsSource,
		DimsTrust:    DimsTrustFor(asset.DimsSource),
		DimsWidth:    asset.DimsWidth,
		DimsHeight:   asset.DimsHeight,
		DimsDepth:    asset.DimsDepth,
	}
	if availability != enums.ArAvailabilityReady {
		return out, nil
	}
	for _, f := range asset.Files {
		url, err := s.storage.DownloadURL(ctx, f.StorageKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
		}
		fileType := "model"
		if f.FileRole == enums.FileRolePreviewPNG {
			fileType = "preview"
		}
		out.Files = append(out.Files, ARFile{Role: f.FileRole, URL: url, Type: fileType})
	}
	return out, nil
}

func transition(from, to enums.AssetStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("asset status %s cannot move to %s", from, to)).
		WithDetails(map[string]any{"status": from, "target": to})
}
