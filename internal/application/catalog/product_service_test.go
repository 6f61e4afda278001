package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func vendorActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), UserType: "vendor"}
}

func adminActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), UserType: "admin"}
}

func newCategory(t *testing.T, name string) *catalog.Category {
	t.Helper()
	c, err := catalog.NewCategory(name, "", 0)
	require.NoError(t, err)
	return c
}

func newProduct(t *testing.T, vendorID, categoryID uuid.UUID) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(vendorID, catalog.ProductDetails{
		CategoryID:  categoryID,
		Title:       "Spotify Family",
		AccountType: "premium",
		Price:       decimal.RequireFromString("0.001"),
		Quantity:    3,
		Credentials: "user:pass",
	})
	require.NoError(t, err)
	return p
}

func createRequest(categoryID uuid.UUID) CreateProductRequest {
	return CreateProductRequest{
		CategoryID:      categoryID,
		Title:           "Netflix Premium",
		AccountType:     "premium",
		Price:           decimal.RequireFromString("0.0005"),
		DiscountPercent: decimal.NewFromInt(10),
		Quantity:        2,
		Credentials:     "a@b.c:secret",
	}
}

func newProductService(products *MockProductRepository, categories *MockCategoryRepository, storage *MockObjectStorage) *ProductService {
	if storage == nil {
		return NewProductService(products, categories, nil, zap.NewNop())
	}
	return NewProductService(products, categories, storage, zap.NewNop())
}

func TestProductService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("vendor creates a listing pending approval", func(t *testing.T) {
		products := new(MockProductRepository)
		categories := new(MockCategoryRepository)
		category := newCategory(t, "Streaming")
		categories.On("FindByID", ctx, category.ID).Return(category, nil)
		products.On("Save", ctx, mock.AnythingOfType("*catalog.Product")).Return(nil)
		actor := vendorActor()

		resp, err := newProductService(products, categories, nil).Create(ctx, actor, createRequest(category.ID))
		require.NoError(t, err)
		assert.Equal(t, "pending_approval", resp.Status)
		assert.Equal(t, actor.UserID, resp.VendorID)
		assert.True(t, resp.FinalPrice.Equal(decimal.RequireFromString("0.00045")))
		assert.False(t, resp.IsAvailable)
		products.AssertExpectations(t)
	})

	t.Run("buyers cannot sell", func(t *testing.T) {
		_, err := newProductService(new(MockProductRepository), new(MockCategoryRepository), nil).
			Create(ctx, shared.Actor{UserID: uuid.New(), UserType: "buyer"}, createRequest(uuid.New()))
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("unknown category", func(t *testing.T) {
		categories := new(MockCategoryRepository)
		id := uuid.New()
		categories.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		_, err := newProductService(new(MockProductRepository), categories, nil).Create(ctx, vendorActor(), createRequest(id))
		assert.Equal(t, "INVALID_CATEGORY", errorCode(err))
	})

	t.Run("subcategory of another category", func(t *testing.T) {
		categories := new(MockCategoryRepository)
		category := newCategory(t, "Streaming")
		sub, err := catalog.NewSubCategory(uuid.New(), "Steam", "")
		require.NoError(t, err)
		categories.On("FindByID", ctx, category.ID).Return(category, nil)
		categories.On("FindSubCategory", ctx, sub.ID).Return(sub, nil)

		req := createRequest(category.ID)
		req.SubCategoryID = &sub.ID
		_, err = newProductService(new(MockProductRepository), categories, nil).Create(ctx, vendorActor(), req)
		assert.Equal(t, "INVALID_SUBCATEGORY", errorCode(err))
	})

	t.Run("discount out of range", func(t *testing.T) {
		categories := new(MockCategoryRepository)
		category := newCategory(t, "Streaming")
		categories.On("FindByID", ctx, category.ID).Return(category, nil)
		products := new(MockProductRepository)

		req := createRequest(category.ID)
		req.DiscountPercent = decimal.NewFromInt(101)
		_, err := newProductService(products, categories, nil).Create(ctx, vendorActor(), req)
		assert.Equal(t, "INVALID_DISCOUNT", errorCode(err))
		products.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestProductService_Update(t *testing.T) {
	ctx := context.Background()
	actor := vendorActor()
	category := newCategory(t, "Streaming")

	t.Run("approved listing returns to moderation", func(t *testing.T) {
		products := new(MockProductRepository)
		categories := new(MockCategoryRepository)
		product := newProduct(t, actor.UserID, category.ID)
		require.NoError(t, product.Approve())
		products.On("FindByID", ctx, product.ID).Return(product, nil)
		products.On("Save", ctx, product).Return(nil)
		categories.On("FindByID", ctx, category.ID).Return(category, nil)

		resp, err := newProductService(products, categories, nil).Update(ctx, actor, product.ID, createRequest(category.ID))
		require.NoError(t, err)
		assert.Equal(t, "Netflix Premium", resp.Title)
		assert.Equal(t, "pending_approval", resp.Status)
	})

	t.Run("other vendors are refused", func(t *testing.T) {
		products := new(MockProductRepository)
		product := newProduct(t, uuid.New(), category.ID)
		products.On("FindByID", ctx, product.ID).Return(product, nil)

		_, err := newProductService(products, new(MockCategoryRepository), nil).Update(ctx, actor, product.ID, createRequest(category.ID))
		assert.ErrorIs(t, err, shared.ErrForbidden)
		products.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestProductService_Delete(t *testing.T) {
	ctx := context.Background()
	actor := vendorActor()
	products := new(MockProductRepository)
	product := newProduct(t, actor.UserID, uuid.New())
	products.On("FindByID", ctx, product.ID).Return(product, nil)
	products.On("Save", ctx, product).Return(nil)

	require.NoError(t, newProductService(products, new(MockCategoryRepository), nil).Delete(ctx, actor, product.ID))
	assert.True(t, product.IsDeleted)
	assert.False(t, product.IsActive)
}

func TestProductService_DeleteRemovesImages(t *testing.T) {
	ctx := context.Background()
	actor := vendorActor()
	products := new(MockProductRepository)
	storage := new(MockObjectStorage)
	product := newProduct(t, actor.UserID, uuid.New())
	product.AddImageKey("products/a.png")
	product.AddImageKey("products/b.png")
	products.On("FindByID", ctx, product.ID).Return(product, nil)
	products.On("Save", ctx, product).Return(nil)
	storage.On("DeleteObject", ctx, "products/a.png").Return(errors.New("timeout"))
	storage.On("DeleteObject", ctx, "products/b.png").Return(nil)

	require.NoError(t, newProductService(products, new(MockCategoryRepository), storage).Delete(ctx, actor, product.ID))
	storage.AssertNumberOfCalls(t, "DeleteObject", 2)
}

func TestProductService_RevealCredentials(t *testing.T) {
	ctx := context.Background()
	actor := vendorActor()
	products := new(MockProductRepository)
	product := newProduct(t, actor.UserID, uuid.New())
	products.On("FindByID", ctx, product.ID).Return(product, nil)
	svc := newProductService(products, new(MockCategoryRepository), nil)

	resp, err := svc.RevealCredentials(ctx, actor, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "user:pass", resp.Credentials)

	_, err = svc.RevealCredentials(ctx, adminActor(), product.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestProductService_Listings(t *testing.T) {
	ctx := context.Background()
	product := newProduct(t, uuid.New(), uuid.New())

	t.Run("public list forces public visibility", func(t *testing.T) {
		products := new(MockProductRepository)
		products.On("FindAll", ctx, mock.MatchedBy(func(f catalog.ProductFilter) bool {
			return f.PublicOnly && !f.InStock && f.Status == nil && f.Sort == catalog.SortPriceLow &&
				f.MinPrice != nil && f.MinPrice.Equal(decimal.RequireFromString("0.001"))
		})).Return([]*catalog.Product{product}, int64(1), nil)

		page, err := newProductService(products, new(MockCategoryRepository), nil).List(ctx, ProductListQuery{
			Sort:     "price_low",
			MinPrice: "0.001",
			Status:   "rejected",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 20, page.PageSize)
		require.Len(t, page.Items, 1)
		assert.Equal(t, product.ID, page.Items[0].ID)
	})

	t.Run("buyer listings only in stock", func(t *testing.T) {
		products := new(MockProductRepository)
		products.On("FindAll", ctx, mock.MatchedBy(func(f catalog.ProductFilter) bool {
			return f.PublicOnly && f.InStock
		})).Return([]*catalog.Product{}, int64(0), nil)

		page, err := newProductService(products, new(MockCategoryRepository), nil).BuyerListings(ctx, ProductListQuery{})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("vendor products are scoped to the caller", func(t *testing.T) {
		actor := vendorActor()
		products := new(MockProductRepository)
		products.On("FindAll", ctx, mock.MatchedBy(func(f catalog.ProductFilter) bool {
			return !f.PublicOnly && f.VendorID != nil && *f.VendorID == actor.UserID
		})).Return([]*catalog.Product{}, int64(0), nil)

		_, err := newProductService(products, new(MockCategoryRepository), nil).VendorProducts(ctx, actor, ProductListQuery{})
		require.NoError(t, err)
		products.AssertExpectations(t)
	})

	t.Run("admin list filters by status", func(t *testing.T) {
		products := new(MockProductRepository)
		products.On("FindAll", ctx, mock.MatchedBy(func(f catalog.ProductFilter) bool {
			return f.Status != nil && *f.Status == catalog.ProductStatusPendingApproval
		})).Return([]*catalog.Product{product}, int64(1), nil)
		svc := newProductService(products, new(MockCategoryRepository), nil)

		_, err := svc.AdminListAll(ctx, adminActor(), ProductListQuery{Status: "pending_approval"})
		require.NoError(t, err)

		_, err = svc.AdminListAll(ctx, vendorActor(), ProductListQuery{})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("bad query values", func(t *testing.T) {
		svc := newProductService(new(MockProductRepository), new(MockCategoryRepository), nil)
		_, err := svc.List(ctx, ProductListQuery{CategoryID: "nope"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = svc.List(ctx, ProductListQuery{MaxPrice: "abc"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestProductService_Moderation(t *testing.T) {
	ctx := context.Background()
	products := new(MockProductRepository)
	product := newProduct(t, uuid.New(), uuid.New())
	products.On("FindByID", ctx, product.ID).Return(product, nil)
	products.On("Save", ctx, product).Return(nil)
	svc := newProductService(products, new(MockCategoryRepository), nil)

	_, err := svc.Approve(ctx, vendorActor(), product.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Reject(ctx, adminActor(), product.ID, "  ")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	resp, err := svc.Reject(ctx, adminActor(), product.ID, "Blurry screenshots")
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "Blurry screenshots", resp.RejectionReason)

	resp, err = svc.Approve(ctx, adminActor(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)
	assert.True(t, resp.IsAvailable)
}

func TestProductService_TrackView(t *testing.T) {
	ctx := context.Background()
	products := new(MockProductRepository)
	product := newProduct(t, uuid.New(), uuid.New())
	viewer := uuid.New()
	products.On("FindByID", ctx, product.ID).Return(product, nil)
	products.On("IncrementViews", ctx, product.ID).Return(nil)
	products.On("SaveView", ctx, mock.MatchedBy(func(v *catalog.ProductView) bool {
		return v.ProductID == product.ID && v.UserID != nil && *v.UserID == viewer && v.IPAddress == "10.0.0.1"
	})).Return(nil)

	err := newProductService(products, new(MockCategoryRepository), nil).
		TrackView(ctx, product.ID, TrackViewRequest{UserID: &viewer, IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	products.AssertExpectations(t)

	missing := uuid.New()
	products.On("FindByID", ctx, missing).Return(nil, shared.ErrNotFound)
	err = newProductService(products, new(MockCategoryRepository), nil).TrackView(ctx, missing, TrackViewRequest{})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProductService_RequestImageUpload(t *testing.T) {
	ctx := context.Background()
	actor := vendorActor()
	expiresAt := time.Now().Add(15 * time.Minute)

	t.Run("presigns and records the key", func(t *testing.T) {
		products := new(MockProductRepository)
		storage := new(MockObjectStorage)
		product := newProduct(t, actor.UserID, uuid.New())
		products.On("FindByID", ctx, product.ID).Return(product, nil)
		products.On("Save", ctx, product).Return(nil)
		storage.On("GenerateUploadURL", ctx, mock.AnythingOfType("string"), "image/png", DefaultUploadURLExpiry).
			Return("https://s3.local/upload", expiresAt, nil)

		resp, err := newProductService(products, new(MockCategoryRepository), storage).
			RequestImageUpload(ctx, actor, product.ID, ImageUploadRequest{Filename: "../my shot.png", ContentType: "image/png"})
		require.NoError(t, err)
		assert.Equal(t, "https://s3.local/upload", resp.UploadURL)
		assert.True(t, strings.HasPrefix(resp.Key, "products/"+product.ID.String()+"/"))
		assert.True(t, strings.HasSuffix(resp.Key, "-my_shot.png"))
		assert.Equal(t, []string{resp.Key}, product.ImageKeys)
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		_, err := newProductService(new(MockProductRepository), new(MockCategoryRepository), new(MockObjectStorage)).
			RequestImageUpload(ctx, actor, uuid.New(), ImageUploadRequest{Filename: "a.exe", ContentType: "application/x-msdownload"})
		assert.Equal(t, "INVALID_CONTENT_TYPE", errorCode(err))
	})

	t.Run("storage not configured", func(t *testing.T) {
		_, err := newProductService(new(MockProductRepository), new(MockCategoryRepository), nil).
			RequestImageUpload(ctx, actor, uuid.New(), ImageUploadRequest{Filename: "a.png", ContentType: "image/png"})
		assert.Equal(t, "STORAGE_UNAVAILABLE", errorCode(err))
	})
}
