package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

// Repository persists listings, likes and purchases. Soft-deleted listings are
// hidden by gorm's default scope.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindForUpdate locks the product row for the rest of the transaction.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListFilter narrows the catalog query.
type ListFilter struct {
	Query    string
	SellerID *uuid.UUID
	Category *enums.ProductCategory
	Status   *enums.ProductStatus
	LikedBy  *uuid.UUID
	Offset   int
	Limit    int
}

// List returns one page of published listings, newest first, and the total
// number of matches.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Product, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Product{}).Where("published_at IS NOT NULL")
		if term := strings.TrimSpace(filter.Query); term != "" {
			q = q.Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(term))+"%")
		}
		if filter.SellerID != nil {
			q = q.Where("seller_id = ?", *filter.SellerID)
		}
		if filter.Category != nil {
			q = q.Where("category = ?", *filter.Category)
		}
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		if filter.LikedBy != nil {
			q = q.Where("id IN (?)", r.db.Model(&models.ProductLike{}).Select("product_id").Where("user_id = ?", *filter.LikedBy))
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := scoped().
		Order("published_at DESC").
		Order("id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ProductStatus) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("status", status).Error
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
}

func (r *Repository) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("seller_id = ?", sellerID).Count(&n).Error
	return n, err
}

// TradeCounts returns completed sales per seller, including delisted items.
func (r *Repository) TradeCounts(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(sellerIDs))
	if len(sellerIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		SellerID uuid.UUID
		Trades   int64
	}
	err := r.db.WithContext(ctx).
		Table("purchases").
		Select("products.seller_id AS seller_id, COUNT(purchases.id) AS trades").
		Joins("JOIN products ON products.id = purchases.product_id").
		Where("products.seller_id IN ?", sellerIDs).
		Group("products.seller_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SellerID] = row.Trades
	}
	return out, nil
}

// ChatCounts returns the number of chat rooms opened per product.
func (r *Repository) ChatCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Rooms     int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Select("product_id, COUNT(id) AS rooms").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Rooms
	}
	return out, nil
}

// LikedIDs returns which of productIDs userID has liked.
func (r *Repository) LikedIDs(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ProductLike{}).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *Repository) FindLike(ctx context.Context, productID, userID uuid.UUID) (*models.ProductLike, error) {
	var like models.ProductLike
	err := r.db.WithContext(ctx).First(&like, "product_id = ? AND user_id = ?", productID, userID).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

func (r *Repository) CreateLike(ctx context.Context, like *models.ProductLike) error {
	return r.db.WithContext(ctx).Create(like).Error
}

func (r *Repository) DeleteLike(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProductLike{}, "id = ?", id).Error
}

// AdjustLikes moves likes_count by delta without letting it go negative and
// returns the new value.
func (r *Repository) AdjustLikes(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	expr := gorm.Expr("likes_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN likes_count + ? < 0 THEN 0 ELSE likes_count + ? END", delta, delta)
	}
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		UpdateColumn("likes_count", expr).Error
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Pluck("likes_count", &count).Error
	return count, err
}

func (r *Repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *Repository) PurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("purchased_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindByIDsUnscoped loads products including soft-deleted ones, for purchase history.
func (r *Repository) FindByIDsUnscoped(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
