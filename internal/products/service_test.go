package products

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/internal/assets"
	"github.com/angelmondragon/scanmarket-backend/internal/users"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage/local"
	"github.com/angelmondragon/scanmarket-backend/pkg/types"
)

type fixture struct {
	conn *gorm.DB
	svc  Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	store, err := local.New(local.Options{
		Root:          t.TempDir(),
		BaseURL:       "http://localhost:8000",
		SigningSecret: "test-secret",
	})
	require.NoError(t, err)

	tx := db.NewFromConn(conn)
	assetRepo := assets.NewRepository(conn)
	arSvc, err := assets.NewService(tx, assetRepo, store, nil, nil)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:       tx,
		Repo:     NewRepository(conn),
		Assets:   assetRepo,
		Users:    users.NewRepository(conn),
		Storage:  store,
		ARAssets: arSvc,
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc}
}

func (f fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := &models.User{Email: strings.ToLower(name) + "@example.com", Name: name, Provider: enums.AuthProviderDev}
	require.NoError(t, f.conn.Create(u).Error)
	return u.ID
}

// readyAsset stores an asset that has finished uploading, with a model file
// and a thumbnail.
func (f fixture) readyAsset(t *testing.T, owner uuid.UUID) uuid.UUID {
	t.Helper()
	asset := &models.ModelAsset{OwnerID: owner, Status: enums.AssetStatusReady}
	require.NoError(t, f.conn.Create(asset).Error)
	require.NoError(t, f.conn.Create(&models.ModelAssetFile{
		AssetID: asset.ID, FileRole: enums.FileRoleModelUSDZ,
		StorageKey: "assets/" + asset.ID.String() + "/model_usdz.usdz", SizeBytes: 10, ChecksumSHA256: strings.Repeat("a", 64),
	}).Error)
	require.NoError(t, f.conn.Create(&models.AssetImage{
		AssetID: asset.ID, ImageType: enums.ImageTypeThumbnail,
		StorageKey: "assets/" + asset.ID.String() + "/thumbnail_0.png", SizeBytes: 3, ChecksumSHA256: strings.Repeat("b", 64),
	}).Error)
	return asset.ID
}

func (f fixture) publish(t *testing.T, seller uuid.UUID, title string) *ProductDTO {
	t.Helper()
	p, err := f.svc.Publish(context.Background(), seller, PublishInput{
		AssetID:    f.readyAsset(t, seller),
		Title:      title,
		PriceCents: 1500,
	})
	require.NoError(t, err)
	return p
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestPublishCreatesListingAndPublishesAsset(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, "Seller")
	assetID := f.readyAsset(t, seller)

	furniture := enums.ProductCategoryFurniture
	p, err := f.svc.Publish(context.Background(), seller, PublishInput{
		AssetID:    assetID,
		Title:      "  Oak chair ",
		PriceCents: 4200,
		Category:   &furniture,
	})
	require.NoError(t, err)
	assert.Equal(t, "Oak chair", p.Title)
	assert.Equal(t, enums.ProductStatusForSale, p.Status)
	assert.Equal(t, "Seller", p.SellerName)
	require.NotNil(t, p.PublishedAt)
	require.NotNil(t, p.ThumbnailURL)
	assert.Contains(t, *p.ThumbnailURL, "thumbnail_0.png")
	assert.Nil(t, p.IsLiked)

	var asset models.ModelAsset
	require.NoError(t, f.conn.First(&asset, "id = ?", assetID).Error)
	assert.Equal(t, enums.AssetStatusPublished, asset.Status)
}

func TestPublishRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	other := f.user(t, "Other")

	_, err := f.svc.Publish(ctx, seller, PublishInput{AssetID: uuid.New(), Title: "x"})
	requireCode(t, err, pkgerrors.CodeNotFound)

	assetID := f.readyAsset(t, seller)
	_, err = f.svc.Publish(ctx, other, PublishInput{AssetID: assetID, Title: "x"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Publish(ctx, seller, PublishInput{AssetID: assetID, Title: "  "})
	requireCode(t, err, pkgerrors.CodeValidation)

	uploading := &models.ModelAsset{OwnerID: seller, Status: enums.AssetStatusUploading}
	require.NoError(t, f.conn.Create(uploading).Error)
	_, err = f.svc.Publish(ctx, seller, PublishInput{AssetID: uploading.ID, Title: "x"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Publish(ctx, seller, PublishInput{AssetID: assetID, Title: "first"})
	require.NoError(t, err)

	// a second publish sees PUBLISHED and is rejected before the insert
	_, err = f.svc.Publish(ctx, seller, PublishInput{AssetID: assetID, Title: "second"})
	requireCode(t, err, pkgerrors.CodeValidation)

	var n int64
	require.NoError(t, f.conn.Model(&models.Product{}).Where("asset_id = ?", assetID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestPublishUniqueAssetIndexMapsToConflict(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, "Seller")
	assetID := f.readyAsset(t, seller)

	// a listing already points at the asset while the asset is still READY
	require.NoError(t, f.conn.Create(&models.Product{AssetID: &assetID, Title: "race", SellerID: seller, Status: enums.ProductStatusForSale}).Error)

	_, err := f.svc.Publish(context.Background(), seller, PublishInput{AssetID: assetID, Title: "again"})
	requireCode(t, err, pkgerrors.CodeConflict)

	var asset models.ModelAsset
	require.NoError(t, f.conn.First(&asset, "id = ?", assetID).Error)
	assert.Equal(t, enums.AssetStatusReady, asset.Status, "failed publish must roll back")
}

func TestPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	buyer := f.user(t, "Buyer")
	p := f.publish(t, seller, "Lamp")

	_, err := f.svc.Purchase(ctx, buyer, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.Purchase(ctx, seller, p.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	got, err := f.svc.Purchase(ctx, buyer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ProductID)
	assert.Equal(t, buyer, got.BuyerID)
	assert.EqualValues(t, 1500, got.PriceCents)
	require.NotNil(t, got.Product)
	assert.Equal(t, enums.ProductStatusSoldOut, got.Product.Status)
	assert.EqualValues(t, 1, got.Product.SellerTradeCount)

	_, err = f.svc.Purchase(ctx, f.user(t, "Late"), p.ID)
	requireCode(t, err, pkgerrors.CodeValidation)

	var n int64
	require.NoError(t, f.conn.Model(&models.Purchase{}).Where("product_id = ?", p.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestPurchaseSurvivesEnrichmentFailure(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, "Seller")
	buyer := f.user(t, "Buyer")
	p := f.publish(t, seller, "Shelf")

	require.NoError(t, f.conn.Callback().Query().Before("gorm:query").Register("test:fail_users", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" {
			_ = tx.AddError(errors.New("users unavailable"))
		}
	}))

	got, err := f.svc.Purchase(context.Background(), buyer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ProductID)
	assert.EqualValues(t, 1500, got.PriceCents)
	assert.Nil(t, got.Product)

	var row models.Product
	require.NoError(t, f.conn.First(&row, "id = ?", p.ID).Error)
	assert.Equal(t, enums.ProductStatusSoldOut, row.Status)
}

func TestPurchaseUniqueIndexMapsToConflict(t *testing.T) {
	f := newFixture(t)
	seller := f.user(t, "Seller")
	buyer := f.user(t, "Buyer")
	p := f.publish(t, seller, "Desk")

	// a committed sale whose status update has not been observed yet
	require.NoError(t, f.conn.Create(&models.Purchase{ProductID: p.ID, BuyerID: f.user(t, "First"), PriceCents: 1, PurchasedAt: time.Now()}).Error)

	_, err := f.svc.Purchase(context.Background(), buyer, p.ID)
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Contains(t, err.Error(), "product already purchased")
}

func TestListFiltersAndLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	viewer := f.user(t, "Viewer")

	chair := f.publish(t, seller, "Oak Chair")
	f.publish(t, seller, "Glass table")
	f.publish(t, f.user(t, "Else"), "100% wool_rug")

	res, err := f.svc.List(ctx, nil, ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.Limit)
	for _, p := range res.Products {
		assert.Nil(t, p.IsLiked)
	}

	res, err = f.svc.List(ctx, nil, ListParams{Query: "CHAIR"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, chair.ID, res.Products[0].ID)

	res, err = f.svc.List(ctx, nil, ListParams{Query: "%"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total, "wildcards are matched literally")

	res, err = f.svc.List(ctx, nil, ListParams{SellerID: &seller, Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.Len(t, res.Products, 1)

	_, err = f.svc.List(ctx, nil, ListParams{Liked: true})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.svc.List(ctx, nil, ListParams{Limit: 101})
	requireCode(t, err, pkgerrors.CodeValidation)

	like, err := f.svc.ToggleLike(ctx, viewer, chair.ID)
	require.NoError(t, err)
	assert.True(t, like.Liked)
	assert.EqualValues(t, 1, like.LikesCount)

	res, err = f.svc.List(ctx, &viewer, ListParams{Liked: true})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	require.NotNil(t, res.Products[0].IsLiked)
	assert.True(t, *res.Products[0].IsLiked)

	like, err = f.svc.ToggleLike(ctx, viewer, chair.ID)
	require.NoError(t, err)
	assert.False(t, like.Liked)
	assert.EqualValues(t, 0, like.LikesCount)

	_, err = f.svc.ToggleLike(ctx, viewer, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetCountsViewsAndChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	viewer := f.user(t, "Viewer")
	p := f.publish(t, seller, "Bike")

	require.NoError(t, f.conn.Create(&models.ChatRoom{ProductID: p.ID, BuyerID: viewer, SellerID: seller, Subject: "hi"}).Error)

	got, err := f.svc.Get(ctx, &viewer, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ViewsCount)
	assert.EqualValues(t, 1, got.ChatCount)
	require.NotNil(t, got.IsLiked)
	assert.False(t, *got.IsLiked)
	require.NotNil(t, got.SellerJoinedAt)

	got, err = f.svc.Get(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.ViewsCount)

	_, err = f.svc.Get(ctx, nil, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateStatusAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	other := f.user(t, "Other")
	p := f.publish(t, seller, "Sofa")

	desc := "comfy"
	updated, err := f.svc.Update(ctx, seller, p.ID, UpdateInput{Description: types.NullableString{Valid: true, Value: &desc}})
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "comfy", *updated.Description)

	updated, err = f.svc.Update(ctx, seller, p.ID, UpdateInput{Description: types.NullableString{Valid: true}})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)

	_, err = f.svc.Update(ctx, seller, p.ID, UpdateInput{})
	requireCode(t, err, pkgerrors.CodeValidation)

	bad := "SPACESHIPS"
	_, err = f.svc.Update(ctx, seller, p.ID, UpdateInput{Category: types.NullableString{Valid: true, Value: &bad}})
	requireCode(t, err, pkgerrors.CodeValidation)

	title := "x"
	_, err = f.svc.Update(ctx, other, p.ID, UpdateInput{Title: &title})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.UpdateStatus(ctx, seller, p.ID, "GONE")
	requireCode(t, err, pkgerrors.CodeValidation)

	reserved, err := f.svc.UpdateStatus(ctx, seller, p.ID, "RESERVED")
	require.NoError(t, err)
	assert.Equal(t, enums.ProductStatusReserved, reserved.Status)

	_, err = f.svc.UpdateStatus(ctx, seller, p.ID, "SOLD_OUT")
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, seller, p.ID, UpdateInput{Title: &title})
	requireCode(t, err, pkgerrors.CodeValidation)

	requireCode(t, f.svc.Delete(ctx, other, p.ID), pkgerrors.CodeForbidden)
	require.NoError(t, f.svc.Delete(ctx, seller, p.ID))
	_, err = f.svc.Get(ctx, nil, p.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListPurchasesKeepsDeletedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	buyer := f.user(t, "Buyer")
	p := f.publish(t, seller, "Camera")

	_, err := f.svc.Purchase(ctx, buyer, p.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, seller, p.ID))

	list, err := f.svc.ListPurchases(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Product)
	assert.Equal(t, "Camera", list[0].Product.Title)

	n, err := f.svc.CountBySeller(ctx, seller)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestGetARAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "Seller")
	p := f.publish(t, seller, "Vase")

	ar, err := f.svc.GetARAsset(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ArAvailabilityReady, ar.Availability)
	require.Len(t, ar.Files, 1)
	assert.Equal(t, "model", ar.Files[0].Type)

	bare := &models.Product{Title: "no scan", SellerID: seller, Status: enums.ProductStatusForSale}
	require.NoError(t, f.conn.Create(bare).Error)
	ar, err = f.svc.GetARAsset(ctx, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ArAvailabilityNone, ar.Availability)
	assert.Empty(t, ar.Files)

	_, err = f.svc.GetARAsset(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}
