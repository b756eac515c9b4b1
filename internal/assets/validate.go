package assets

import (
	"fmt"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

// MaxAssetFileBytes caps any single uploaded model file or image.
const MaxAssetFileBytes = 500 << 20

type imageSlot struct {
	imageType enums.ImageType
	sortOrder int
}

// validateInit accepts an empty file list; such an asset simply never completes.
func validateInit(input InitUploadInput) error {
	if input.DimsSource != nil && !input.DimsSource.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid dims_source %q", *input.DimsSource))
	}
	roles := make([]enums.FileRole, 0, len(input.Files))
	for _, f := range input.Files {
		if err := checkSize(f.SizeBytes); err != nil {
			return err
		}
		roles = append(roles, f.Role)
	}
	if err := checkRoles(roles); err != nil {
		return err
	}
	slots := make([]imageSlot, 0, len(input.Images))
	for _, img := range input.Images {
		if err := checkSize(img.SizeBytes); err != nil {
			return err
		}
		slots = append(slots, imageSlot{img.ImageType, img.SortOrder})
	}
	return checkImageSlots(slots)
}

func validateComplete(input CompleteUploadInput) error {
	if len(input.Files) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	roles := make([]enums.FileRole, 0, len(input.Files))
	for _, f := range input.Files {
		if err := checkSize(f.SizeBytes); err != nil {
			return err
		}
		roles = append(roles, f.Role)
	}
	if err := checkRoles(roles); err != nil {
		return err
	}
	slots := make([]imageSlot, 0, len(input.Images))
	for _, img := range input.Images {
		if err := checkSize(img.SizeBytes); err != nil {
			return err
		}
		slots = append(slots, imageSlot{img.ImageType, img.SortOrder})
	}
	return checkImageSlots(slots)
}

func checkSize(size int64) error {
	if size <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}
	if size > MaxAssetFileBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("size_bytes must be at most %d", MaxAssetFileBytes))
	}
	return nil
}

func checkRoles(roles []enums.FileRole) error {
	seen := make(map[enums.FileRole]struct{}, len(roles))
	for _, role := range roles {
		if !role.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid file role %q", role))
		}
		if _, dup := seen[role]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate file role %q", role))
		}
		seen[role] = struct{}{}
	}
	return nil
}

func checkImageSlots(slots []imageSlot) error {
	seen := make(map[imageSlot]struct{}, len(slots))
	for _, slot := range slots {
		if !slot.imageType.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid image type %q", slot.imageType))
		}
		if slot.sortOrder < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "sort_order must not be negative")
		}
		if _, dup := seen[slot]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate image %s #%d", slot.imageType, slot.sortOrder))
		}
		seen[slot] = struct{}{}
	}
	return nil
}
