package enums

import "fmt"

// DimsSource records how an asset's physical dimensions were captured.
type DimsSource string

const (
	DimsSourceLidar   DimsSource = "ios_lidar"
	DimsSourceManual  DimsSource = "ios_manual"
	DimsSourceUnknown DimsSource = "unknown"
)

var validDimsSources = []DimsSource{
	DimsSourceLidar,
	DimsSourceManual,
	DimsSourceUnknown,
}

func (d DimsSource) String() string {
	return string(d)
}

func (d DimsSource) IsValid() bool {
	for _, candidate := range validDimsSources {
		if candidate == d {
			return true
		}
	}
	return false
}

func ParseDimsSource(value string) (DimsSource, error) {
	for _, candidate := range validDimsSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dims source %q", value)
}

// DimsTrust is the confidence a buyer can place in reported dimensions.
type DimsTrust string

const (
	DimsTrustHigh   DimsTrust = "high"
	DimsTrustMedium DimsTrust = "medium"
	DimsTrustLow    DimsTrust = "low"
)

func (d DimsTrust) String() string {
	return string(d)
}

// TrustFor maps a capture source onto a trust level. The boolean is false when
// the source is absent or unrecognised.
func TrustFor(source DimsSource) (DimsTrust, bool) {
	switch source {
	case DimsSourceLidar:
		return DimsTrustHigh, true
	case DimsSourceManual:
		return DimsTrustMedium, true
	case DimsSourceUnknown:
		return DimsTrustLow, true
	default:
		return "", false
	}
}

// ArAvailability is the public view of whether an asset can be rendered in AR.
type ArAvailability string

const (
	ArAvailabilityReady      ArAvailability = "READY"
	ArAvailabilityProcessing ArAvailability = "PROCESSING"
	ArAvailabilityNone       ArAvailability = "NONE"
)

func (a ArAvailability) String() string {
	return string(a)
}
