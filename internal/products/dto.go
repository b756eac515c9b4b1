package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	"github.com/angelmondragon/scanmarket-backend/pkg/types"
)

type PublishInput struct {
	AssetID        uuid.UUID               `json:"asset_id" validate:"required"`
	Title          string                  `json:"title" validate:"required,max=500"`
	Description    *string                 `json:"description" validate:"omitempty,max=5000"`
	PriceCents     int64                   `json:"price_cents" validate:"gte=0"`
	Category       *enums.ProductCategory  `json:"category"`
	Condition      *enums.ProductCondition `json:"condition"`
	DimsComparison *string                 `json:"dims_comparison" validate:"omitempty,max=500"`
}

// UpdateInput is a PATCH body. Absent fields are untouched; nullable fields
// sent as null are cleared.
type UpdateInput struct {
	Title          *string              `json:"title" validate:"omitempty,max=500"`
	Description    types.NullableString `json:"description"`
	PriceCents     *int64               `json:"price_cents" validate:"omitempty,gte=0"`
	Category       types.NullableString `json:"category"`
	Condition      types.NullableString `json:"condition"`
	DimsComparison types.NullableString `json:"dims_comparison"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

type ListParams struct {
	Query    string
	SellerID *uuid.UUID
	Category *enums.ProductCategory
	Status   *enums.ProductStatus
	Liked    bool
	Page     int
	Limit    int
}

// ProductDTO is the denormalized listing card and detail view.
type ProductDTO struct {
	ID                 uuid.UUID               `json:"id"`
	AssetID            *uuid.UUID              `json:"asset_id"`
	Title              string                  `json:"title"`
	Description        *string                 `json:"description"`
	PriceCents         int64                   `json:"price_cents"`
	SellerID           uuid.UUID               `json:"seller_id"`
	SellerName         string                  `json:"seller_name"`
	SellerAvatarURL    *string                 `json:"seller_avatar_url"`
	SellerLocationName *string                 `json:"seller_location_name"`
	SellerJoinedAt     *time.Time              `json:"seller_joined_at"`
	SellerTradeCount   int64                   `json:"seller_trade_count"`
	ThumbnailURL       *string                 `json:"thumbnail_url"`
	Category           *enums.ProductCategory  `json:"category"`
	Condition          *enums.ProductCondition `json:"condition"`
	DimsComparison     *string                 `json:"dims_comparison"`
	Status             enums.ProductStatus     `json:"status"`
	LikesCount         int64                   `json:"likes_count"`
	ViewsCount         int64                   `json:"views_count"`
	ChatCount          int64                   `json:"chat_count"`
	IsLiked            *bool                   `json:"is_liked"`
	PublishedAt        *time.Time              `json:"published_at"`
	CreatedAt          time.Time               `json:"created_at"`
}

type ListResult struct {
	Products []ProductDTO `json:"products"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}

type PurchaseDTO struct {
	ID          uuid.UUID   `json:"id"`
	ProductID   uuid.UUID   `json:"product_id"`
	BuyerID     uuid.UUID   `json:"buyer_id"`
	PriceCents  int64       `json:"price_cents"`
	PurchasedAt time.Time   `json:"purchased_at"`
	Product     *ProductDTO `json:"product,omitempty"`
}

type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}
