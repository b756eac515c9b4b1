package ai

import "github.com/angelmondragon/scanmarket-backend/pkg/enums"

// SuggestInput is the body of POST /v1/ai/suggest-listing.
type SuggestInput struct {
	ThumbnailURL string   `json:"thumbnail_url" validate:"required,max=2048"`
	DimsWidth    *float64 `json:"dims_width,omitempty" validate:"omitempty,gte=0"`
	DimsHeight   *float64 `json:"dims_height,omitempty" validate:"omitempty,gte=0"`
	DimsDepth    *float64 `json:"dims_depth,omitempty" validate:"omitempty,gte=0"`
	DimsSource   *string  `json:"dims_source,omitempty"`
}

func (in SuggestInput) hasDims() bool {
	return positive(in.DimsWidth) && positive(in.DimsHeight) && positive(in.DimsDepth)
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

// Suggestion is the normalized listing draft returned to the seller.
type Suggestion struct {
	Title          string                  `json:"suggested_title"`
	Description    string                  `json:"suggested_description"`
	Category       *enums.ProductCategory  `json:"suggested_category"`
	Condition      *enums.ProductCondition `json:"suggested_condition"`
	PriceMin       *int64                  `json:"suggested_price_min"`
	PriceMax       *int64                  `json:"suggested_price_max"`
	DimsComparison *string                 `json:"dims_comparison"`
	PriceReason    *string                 `json:"suggested_price_reason"`
}
