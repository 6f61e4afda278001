package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSort names the supported listing orders
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceLow  ProductSort = "price_low"
	SortPriceHigh ProductSort = "price_high"
	SortRating    ProductSort = "rating"
	SortViews     ProductSort = "views"
)

// ProductFilter narrows product queries. Deleted products are always excluded.
type ProductFilter struct {
	Search        string
	CategoryID    *uuid.UUID
	SubCategoryID *uuid.UUID
	AccountType   string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	VendorID      *uuid.UUID
	Status        *ProductStatus
	// PublicOnly restricts to approved, active listings
	PublicOnly bool
	InStock    bool
	Sort       ProductSort
	Page       int
	PageSize   int
}

// Offset returns the offset for pagination
func (f ProductFilter) Offset() int {
	if f.Page <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size clamped to 1..100
func (f ProductFilter) Limit() int {
	if f.PageSize <= 0 {
		return 20
	}
	if f.PageSize > 100 {
		return 100
	}
	return f.PageSize
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID returns non-deleted products only
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// FindByIDForUpdate locks the row inside the caller's transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Product, error)
	FindAll(ctx context.Context, filter ProductFilter) ([]*Product, int64, error)
	FindAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]*Product, error)
	Save(ctx context.Context, product *Product) error
	SaveBatch(ctx context.Context, products []*Product) error
	IncrementViews(ctx context.Context, id uuid.UUID) error
	SaveView(ctx context.Context, view *ProductView) error
}

// CategoryRepository defines the interface for category persistence
type CategoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	// FindActive returns active categories ordered by sort_order, name
	FindActive(ctx context.Context) ([]*Category, error)
	FindSubCategory(ctx context.Context, id uuid.UUID) (*SubCategory, error)
	FindSubCategoryByName(ctx context.Context, categoryID uuid.UUID, name string) (*SubCategory, error)
	FindActiveSubCategories(ctx context.Context, categoryID uuid.UUID) ([]*SubCategory, error)
	Save(ctx context.Context, category *Category) error
	SaveSubCategory(ctx context.Context, sub *SubCategory) error
}
