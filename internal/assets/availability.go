package assets

import (
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// ComputeAvailability derives the AR availability shown to buyers.
func ComputeAvailability(status enums.AssetStatus, hasModelFile bool) enums.ArAvailability {
	switch status {
	case enums.AssetStatusReady, enums.AssetStatusPublished:
		if hasModelFile {
			return enums.ArAvailabilityReady
		}
		return enums.ArAvailabilityNone
	case enums.AssetStatusInitiated, enums.AssetStatusUploading:
		return enums.ArAvailabilityProcessing
	case enums.AssetStatusFailed:
		return enums.ArAvailabilityNone
	default:
		return enums.ArAvailabilityNone
	}
}

// DimsTrustFor returns the trust level for source, or nil when there is none.
func DimsTrustFor(source *enums.DimsSource) *enums.DimsTrust {
	if source == nil {
		return nil
	}
	trust, ok := enums.TrustFor(*source)
	if !ok {
		return nil
	}
	return &trust
}

func hasModelFile(files []models.ModelAssetFile) bool {
	for _, f := range files {
		if f.FileRole.IsModel() {
			return true
		}
	}
	return false
}
