package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// Product is a for-sale listing backed by at most one published asset.
type Product struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	AssetID        *uuid.UUID              `gorm:"column:asset_id;type:uuid;uniqueIndex:uq_products_asset_id"`
	Title          string                  `gorm:"column:title;type:varchar(500);not null"`
	Description    *string                 `gorm:"column:description"`
	PriceCents     int64                   `gorm:"column:price_cents;not null"`
	SellerID       uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index:idx_products_seller_id"`
	Status         enums.ProductStatus     `gorm:"column:status;type:varchar(16);not null;default:FOR_SALE"`
	Category       *enums.ProductCategory  `gorm:"column:category;type:varchar(32)"`
	Condition      *enums.ProductCondition `gorm:"column:condition;type:varchar(16)"`
	DimsComparison *string                 `gorm:"column:dims_comparison"`
	LikesCount     int64                   `gorm:"column:likes_count;not null;default:0"`
	ViewsCount     int64                   `gorm:"column:views_count;not null;default:0"`
	PublishedAt    *time.Time              `gorm:"column:published_at"`
	DeletedAt      gorm.DeletedAt          `gorm:"column:deleted_at;index"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductLike records that a user liked a product. One row per (product, user).
type ProductLike struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_product_likes_product_user,priority:1"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_product_likes_product_user,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *ProductLike) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Purchase is the sale record. The unique product_id index is the last line of
// defence against selling the same item twice.
type Purchase struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_purchases_product_id"`
	BuyerID     uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index:idx_purchases_buyer_id"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	PurchasedAt time.Time `gorm:"column:purchased_at;not null"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
