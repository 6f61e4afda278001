package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultUploadURLExpiry is used when no presign expiry is configured
const DefaultUploadURLExpiry = 15 * time.Minute

// MaxImagesPerProduct limits the image keys kept on one listing
const MaxImagesPerProduct = 10

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ProductService handles listing, moderation and vendor product management
type ProductService struct {
	productRepo  catalog.ProductRepository
	categoryRepo catalog.CategoryRepository
	storage      shared.ObjectStorage
	uploadExpiry time.Duration
	logger       *zap.Logger
}

// NewProductService creates a new ProductService. storage may be nil, in
// which case image uploads are refused.
func NewProductService(
	productRepo catalog.ProductRepository,
	categoryRepo catalog.CategoryRepository,
	storage shared.ObjectStorage,
	logger *zap.Logger,
) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		storage:      storage,
		uploadExpiry: DefaultUploadURLExpiry,
		logger:       logger,
	}
}

// SetUploadExpiry overrides how long presigned upload URLs stay valid
func (s *ProductService) SetUploadExpiry(d time.Duration) {
	if d > 0 {
		s.uploadExpiry = d
	}
}

// List returns approved, active listings for the public catalog
func (s *ProductService) List(ctx context.Context, q ProductListQuery) (*shared.Paginated[ProductResponse], error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	filter.PublicOnly = true
	filter.Status = nil
	return s.page(ctx, filter)
}

// BuyerListings is List restricted to listings with stock left
func (s *ProductService) BuyerListings(ctx context.Context, q ProductListQuery) (*shared.Paginated[ProductResponse], error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	filter.PublicOnly = true
	filter.InStock = true
	filter.Status = nil
	return s.page(ctx, filter)
}

// VendorProducts returns every non-deleted listing of the caller in any status
func (s *ProductService) VendorProducts(ctx context.Context, actor shared.Actor, q ProductListQuery) (*shared.Paginated[ProductResponse], error) {
	if !actor.CanSell() {
		return nil, shared.ErrForbidden
	}
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	filter.VendorID = &actor.UserID
	return s.page(ctx, filter)
}

// AdminListAll returns listings of every vendor, optionally by status
func (s *ProductService) AdminListAll(ctx context.Context, actor shared.Actor, q ProductListQuery) (*shared.Paginated[ProductResponse], error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	return s.page(ctx, filter)
}

func (s *ProductService) page(ctx context.Context, filter catalog.ProductFilter) (*shared.Paginated[ProductResponse], error) {
	products, total, err := s.productRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(toProductResponses(products), total, max(filter.Page, 1), filter.Limit())
	return &page, nil
}

// Get returns a non-deleted listing
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// Create lists a new product for moderation
func (s *ProductService) Create(ctx context.Context, actor shared.Actor, req CreateProductRequest) (*ProductResponse, error) {
	if !actor.CanSell() {
		return nil, shared.NewDomainError("FORBIDDEN", "Only vendors can create products")
	}
	if err := s.checkCategory(ctx, req.CategoryID, req.SubCategoryID); err != nil {
		return nil, err
	}

	product, err := catalog.NewProduct(actor.UserID, req.details())
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("vendor_id", actor.UserID.String()))

	resp := ToProductResponse(product)
	return &resp, nil
}

// Update replaces a listing's editable fields. Owner only.
func (s *ProductService) Update(ctx context.Context, actor shared.Actor, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID, req.SubCategoryID); err != nil {
		return nil, err
	}
	if err := product.Update(req.details()); err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// Delete soft-deletes a listing. Owner only.
func (s *ProductService) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	product.SoftDelete()
	if err := s.productRepo.Save(ctx, product); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	s.removeImages(ctx, product)
	return nil
}

// removeImages deletes a listing's images from storage. Failures are only
// logged; the listing is already gone.
func (s *ProductService) removeImages(ctx context.Context, product *catalog.Product) {
	if s.storage == nil {
		return
	}
	for _, key := range product.ImageKeys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			s.logger.Warn("Failed to delete product image",
				zap.String("product_id", product.ID.String()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// RevealCredentials returns the stored credentials to the owning vendor
func (s *ProductService) RevealCredentials(ctx context.Context, actor shared.Actor, id uuid.UUID) (*CredentialsResponse, error) {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &CredentialsResponse{ProductID: product.ID, Credentials: product.Credentials}, nil
}

// TrackView counts a view and records who viewed the listing
func (s *ProductService) TrackView(ctx context.Context, id uuid.UUID, req TrackViewRequest) error {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.productRepo.IncrementViews(ctx, id); err != nil {
		return err
	}
	return s.productRepo.SaveView(ctx, catalog.NewProductView(id, req.UserID, req.IPAddress))
}

// Approve publishes a listing. Admin only.
func (s *ProductService) Approve(ctx context.Context, actor shared.Actor, id uuid.UUID) (*ProductResponse, error) {
	return s.moderate(ctx, actor, id, func(p *catalog.Product) error { return p.Approve() })
}

// Reject returns a listing to its vendor with a reason. Admin only.
func (s *ProductService) Reject(ctx context.Context, actor shared.Actor, id uuid.UUID, reason string) (*ProductResponse, error) {
	return s.moderate(ctx, actor, id, func(p *catalog.Product) error { return p.Reject(reason) })
}

func (s *ProductService) moderate(ctx context.Context, actor shared.Actor, id uuid.UUID, fn func(*catalog.Product) error) (*ProductResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product moderated",
		zap.String("product_id", id.String()),
		zap.String("status", string(product.Status)),
		zap.String("admin_id", actor.UserID.String()))
	resp := ToProductResponse(product)
	return &resp, nil
}

// RequestImageUpload presigns an upload for a listing image and records
// the object key on the listing
func (s *ProductService) RequestImageUpload(ctx context.Context, actor shared.Actor, id uuid.UUID, req ImageUploadRequest) (*UploadURLResponse, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError("STORAGE_UNAVAILABLE", "Object storage is not configured")
	}
	if _, ok := allowedImageTypes[strings.ToLower(req.ContentType)]; !ok {
		return nil, shared.NewDomainError("INVALID_CONTENT_TYPE",
			fmt.Sprintf("Content type '%s' is not allowed. Allowed types: JPEG, PNG, WebP and GIF", req.ContentType))
	}

	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(product.ImageKeys) >= MaxImagesPerProduct {
		return nil, shared.NewDomainError("IMAGE_LIMIT_EXCEEDED",
			fmt.Sprintf("Maximum %d images per product allowed", MaxImagesPerProduct))
	}

	key := ProductImageKey(product.ID, req.Filename)
	url, expiresAt, err := s.storage.GenerateUploadURL(ctx, key, req.ContentType, s.uploadExpiry)
	if err != nil {
		s.logger.Error("Failed to presign image upload", zap.String("key", key), zap.Error(err))
		return nil, shared.NewDomainError("STORAGE_ERROR", "Failed to generate upload URL")
	}

	product.AddImageKey(key)
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	return &UploadURLResponse{UploadURL: url, Key: key, ExpiresAt: expiresAt}, nil
}

// ProductImageKey builds the object key for a listing image:
// products/<product id>/<random id>-<file name>
func ProductImageKey(productID uuid.UUID, filename string) string {
	return fmt.Sprintf("products/%s/%s-%s", productID, uuid.New(), shared.SafeObjectName(filename))
}

func (s *ProductService) owned(ctx context.Context, actor shared.Actor, id uuid.UUID) (*catalog.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsOwnedBy(actor.UserID) {
		return nil, shared.NewDomainError("FORBIDDEN", "You can only manage your own products")
	}
	return product, nil
}

func (s *ProductService) checkCategory(ctx context.Context, categoryID uuid.UUID, subCategoryID *uuid.UUID) error {
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("INVALID_CATEGORY", "Category not found")
		}
		return err
	}
	if !category.IsActive {
		return shared.NewDomainError("INVALID_CATEGORY", "Category is not active")
	}
	if subCategoryID == nil {
		return nil
	}
	sub, err := s.categoryRepo.FindSubCategory(ctx, *subCategoryID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("INVALID_SUBCATEGORY", "Subcategory not found")
		}
		return err
	}
	if sub.CategoryID != categoryID {
		return shared.NewDomainError("INVALID_SUBCATEGORY", "Subcategory does not belong to the category")
	}
	return nil
}
