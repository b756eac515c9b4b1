package products

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/internal/assets"
	"github.com/angelmondragon/scanmarket-backend/internal/users"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/pagination"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns listings and the sale transaction.
type Service interface {
	Publish(ctx context.Context, sellerID uuid.UUID, input PublishInput) (*ProductDTO, error)
	Purchase(ctx context.Context, buyerID, productID uuid.UUID) (*PurchaseDTO, error)
	List(ctx context.Context, viewerID *uuid.UUID, params ListParams) (*ListResult, error)
	Get(ctx context.Context, viewerID *uuid.UUID, productID uuid.UUID) (*ProductDTO, error)
	Update(ctx context.Context, sellerID, productID uuid.UUID, input UpdateInput) (*ProductDTO, error)
	UpdateStatus(ctx context.Context, sellerID, productID uuid.UUID, status string) (*ProductDTO, error)
	Delete(ctx context.Context, sellerID, productID uuid.UUID) error
	ToggleLike(ctx context.Context, userID, productID uuid.UUID) (*LikeResult, error)
	GetARAsset(ctx context.Context, productID uuid.UUID) (*assets.ARAsset, error)
	ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]PurchaseDTO, error)
	CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error)
}

type ServiceParams struct {
	Tx       txRunner
	Repo     *Repository
	Assets   *assets.Repository
	Users    *users.Repository
	Storage  storage.Gateway
	ARAssets assets.Service
	Metrics  *metrics.MarketplaceMetrics
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	repo     *Repository
	assets   *assets.Repository
	users    *users.Repository
	storage  storage.Gateway
	arAssets assets.Service
	metrics  *metrics.MarketplaceMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("product repository required")
	case p.Assets == nil:
		return nil, fmt.Errorf("asset repository required")
	case p.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case p.Storage == nil:
		return nil, fmt.Errorf("storage gateway required")
	case p.ARAssets == nil:
		return nil, fmt.Errorf("asset service required")
	}
	return &service{
		tx:       p.Tx,
		repo:     p.Repo,
		assets:   p.Assets,
		users:    p.Users,
		storage:  p.Storage,
		arAssets: p.ARAssets,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Publish(ctx context.Context, sellerID uuid.UUID, input PublishInput) (*ProductDTO, error) {
	if err := validatePublish(input); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		assetRepo := s.assets.WithTx(tx)
		asset, err := assetRepo.FindForUpdate(ctx, input.AssetID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "asset not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load asset")
		}
		if asset.OwnerID != sellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the owner of this asset")
		}
		if asset.Status != enums.AssetStatusReady {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("asset must be READY to publish, current status: %s", asset.Status)).
				WithDetails(map[string]any{"status": asset.Status})
		}

		publishedAt := s.now()
		assetID := asset.ID
		product = &models.Product{
			AssetID:        &assetID,
			Title:          strings.TrimSpace(input.Title),
			Description:    input.Description,
			PriceCents:     input.PriceCents,
			SellerID:       sellerID,
			Status:         enums.ProductStatusForSale,
			Category:       input.Category,
			Condition:      input.Condition,
			DimsComparison: input.DimsComparison,
			PublishedAt:    &publishedAt,
		}
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "uq_products_asset_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "asset already published")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
		}
		if err := assetRepo.UpdateStatus(ctx, asset.ID, enums.AssetStatusPublished); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark asset published")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"product_id": product.ID.String(), "asset_id": input.AssetID.String()})
		s.logg.Info(ctx, "product.published")
	}
	return s.buildOne(ctx, product, nil)
}

func (s *service) Purchase(ctx context.Context, buyerID, productID uuid.UUID) (*PurchaseDTO, error) {
	var (
		product  *models.Product
		purchase *models.Purchase
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		product, err = repo.FindForUpdate(ctx, productID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if product.SellerID == buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot purchase your own product")
		}
		if product.Status == enums.ProductStatusSoldOut {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is already sold out")
		}

		purchase = &models.Purchase{
			ProductID:   product.ID,
			BuyerID:     buyerID,
			PriceCents:  product.PriceCents,
			PurchasedAt: s.now(),
		}
		if err := repo.CreatePurchase(ctx, purchase); err != nil {
			if db.IsUniqueViolation(err, "uq_purchases_product_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product already purchased")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert purchase")
		}
		if err := repo.UpdateStatus(ctx, product.ID, enums.ProductStatusSoldOut); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark product sold out")
		}
		product.Status = enums.ProductStatusSoldOut
		return nil
	})
	s.metrics.Purchase(metrics.OutcomeOf(err))
	if err != nil {
		if s.logg != nil && pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", productID.String()), "purchase.conflict")
		}
		return nil, err
	}

	// The sale has committed; an enrichment failure must not turn it into an error.
	out := purchaseDTO(purchase)
	dto, err := s.buildOne(ctx, product, nil)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "purchase_id", purchase.ID.String()), "purchase.enrich_failed", err)
		}
		return &out, nil
	}
	out.Product = dto
	return &out, nil
}

func (s *service) List(ctx context.Context, viewerID *uuid.UUID, params ListParams) (*ListResult, error) {
	page, err := pagination.NewPage(params.Page, params.Limit)
	if err != nil {
		return nil, err
	}
	filter := ListFilter{
		Query:    params.Query,
		SellerID: params.SellerID,
		Category: params.Category,
		Status:   params.Status,
		Offset:   page.Offset(),
		Limit:    page.Limit,
	}
	if params.Liked {
		if viewerID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required for liked filter")
		}
		filter.LikedBy = viewerID
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	dtos, err := s.build(ctx, rows, viewerID)
	if err != nil {
		return nil, err
	}
	return &ListResult{Products: dtos, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *service) Get(ctx context.Context, viewerID *uuid.UUID, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementViews(ctx, productID); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "product.views_increment_failed")
		}
	} else {
		product.ViewsCount++
	}
	return s.buildOne(ctx, product, viewerID)
}

func (s *service) Update(ctx context.Context, sellerID, productID uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	if product.Status == enums.ProductStatusSoldOut {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot edit a sold-out product")
	}

	fields, err := updateFields(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Updates(ctx, productID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return s.reload(ctx, productID)
}

func (s *service) UpdateStatus(ctx context.Context, sellerID, productID uuid.UUID, raw string) (*ProductDTO, error) {
	if _, err := s.loadOwned(ctx, sellerID, productID); err != nil {
		return nil, err
	}
	status, err := enums.ParseProductStatus(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status, must be one of: FOR_SALE, RESERVED, SOLD_OUT")
	}
	if err := s.repo.UpdateStatus(ctx, productID, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product status")
	}
	return s.reload(ctx, productID)
}

func (s *service) Delete(ctx context.Context, sellerID, productID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, sellerID, productID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	return nil
}

func (s *service) ToggleLike(ctx context.Context, userID, productID uuid.UUID) (*LikeResult, error) {
	var result LikeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, productID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}

		existing, err := repo.FindLike(ctx, productID, userID)
		if err != nil && !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load like")
		}
		delta := 1
		if existing != nil {
			if err := repo.DeleteLike(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete like")
			}
			delta = -1
		} else if err := repo.CreateLike(ctx, &models.ProductLike{ProductID: productID, UserID: userID}); err != nil {
			if db.IsUniqueViolation(err, "uq_product_likes_product_user") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "like already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create like")
		}

		count, err := repo.AdjustLikes(ctx, productID, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust likes")
		}
		result = LikeResult{Liked: delta > 0, LikesCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) GetARAsset(ctx context.Context, productID uuid.UUID) (*assets.ARAsset, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.AssetID == nil {
		return &assets.ARAsset{Availability: enums.ArAvailabilityNone, Files: []assets.ARFile{}}, nil
	}
	return s.arAssets.GetARAsset(ctx, *product.AssetID)
}

func (s *service) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]PurchaseDTO, error) {
	rows, err := s.repo.PurchasesByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	out := make([]PurchaseDTO, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	products, err := s.repo.FindByIDsUnscoped(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchased products")
	}
	dtos, err := s.build(ctx, products, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*ProductDTO, len(dtos))
	for i := range dtos {
		byID[dtos[i].ID] = &dtos[i]
	}

	for _, row := range rows {
		dto := purchaseDTO(&row)
		dto.Product = byID[row.ProductID]
		out = append(out, dto)
	}
	return out, nil
}

func (s *service) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	n, err := s.repo.CountBySeller(ctx, sellerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
	}
	return n, nil
}

func (s *service) load(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) loadOwned(ctx context.Context, sellerID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not the product owner")
	}
	return product, nil
}

func (s *service) reload(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.buildOne(ctx, product, nil)
}

func (s *service) buildOne(ctx context.Context, product *models.Product, viewerID *uuid.UUID) (*ProductDTO, error) {
	dtos, err := s.build(ctx, []models.Product{*product}, viewerID)
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

// build denormalizes rows with one query per related table.
func (s *service) build(ctx context.Context, rows []models.Product, viewerID *uuid.UUID) ([]ProductDTO, error) {
	out := make([]ProductDTO, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	productIDs := make([]uuid.UUID, 0, len(rows))
	sellerIDs := make([]uuid.UUID, 0, len(rows))
	assetIDs := make([]uuid.UUID, 0, len(rows))
	for _, p := range rows {
		productIDs = append(productIDs, p.ID)
		sellerIDs = append(sellerIDs, p.SellerID)
		if p.AssetID != nil {
			assetIDs = append(assetIDs, *p.AssetID)
		}
	}

	sellers, err := s.users.FindByIDs(ctx, sellerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sellers")
	}
	trades, err := s.repo.TradeCounts(ctx, sellerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count trades")
	}
	chats, err := s.repo.ChatCounts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count chats")
	}
	thumbs, err := s.assets.ThumbnailKeys(ctx, assetIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load thumbnails")
	}
	var liked map[uuid.UUID]bool
	if viewerID != nil {
		liked, err = s.repo.LikedIDs(ctx, *viewerID, productIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load likes")
		}
	}

	for _, p := range rows {
		dto := ProductDTO{
			ID:               p.ID,
			AssetID:          p.AssetID,
			Title:            p.Title,
			Description:      p.Description,
			PriceCents:       p.PriceCents,
			SellerID:         p.SellerID,
			SellerTradeCount: trades[p.SellerID],
			Category:         p.Category,
			Condition:        p.Condition,
			DimsComparison:   p.DimsComparison,
			Status:           p.Status,
			LikesCount:       p.LikesCount,
			ViewsCount:       p.ViewsCount,
			ChatCount:        chats[p.ID],
			PublishedAt:      p.PublishedAt,
			CreatedAt:        p.CreatedAt,
		}
		if seller, ok := sellers[p.SellerID]; ok {
			joined := seller.CreatedAt
			dto.SellerName = seller.Name
			dto.SellerAvatarURL = seller.AvatarURL
			dto.SellerLocationName = seller.LocationName
			dto.SellerJoinedAt = &joined
		}
		if p.AssetID != nil {
			if key, ok := thumbs[*p.AssetID]; ok {
				url, err := s.storage.DownloadURL(ctx, key)
				if err != nil {
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign thumbnail url")
				}
				dto.ThumbnailURL = &url
			}
		}
		if viewerID != nil {
			isLiked := liked[p.ID]
			dto.IsLiked = &isLiked
		}
		out = append(out, dto)
	}
	return out, nil
}

func purchaseDTO(p *models.Purchase) PurchaseDTO {
	return PurchaseDTO{
		ID:          p.ID,
		ProductID:   p.ProductID,
		BuyerID:     p.BuyerID,
		PriceCents:  p.PriceCents,
		PurchasedAt: p.PurchasedAt,
	}
}
