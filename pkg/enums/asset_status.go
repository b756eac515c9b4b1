package enums

import "fmt"

// AssetStatus tracks an uploaded model asset through its lifecycle.
type AssetStatus string

const (
	AssetStatusInitiated AssetStatus = "INITIATED"
	AssetStatusUploading AssetStatus = "UPLOADING"
	AssetStatusReady     AssetStatus = "READY"
	// AssetStatusFailed is reserved; no flow transitions into it yet.
	AssetStatusFailed    AssetStatus = "FAILED"
	AssetStatusPublished AssetStatus = "PUBLISHED"
)

var validAssetStatuses = []AssetStatus{
	AssetStatusInitiated,
	AssetStatusUploading,
	AssetStatusReady,
	AssetStatusFailed,
	AssetStatusPublished,
}

var assetTransitions = map[AssetStatus]AssetStatus{
	AssetStatusInitiated: AssetStatusUploading,
	AssetStatusUploading: AssetStatusReady,
	AssetStatusReady:     AssetStatusPublished,
}

// String returns the literal string for the status.
func (s AssetStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s AssetStatus) IsValid() bool {
	for _, candidate := range validAssetStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is the single allowed successor of s.
func (s AssetStatus) CanTransitionTo(next AssetStatus) bool {
	allowed, ok := assetTransitions[s]
	return ok && allowed == next
}

// ParseAssetStatus converts raw input into an AssetStatus.
func ParseAssetStatus(value string) (AssetStatus, error) {
	for _, candidate := range validAssetStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset status %q", value)
}
