package catalog

import (
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to create a new listing
type CreateProductRequest struct {
	CategoryID      uuid.UUID         `json:"category_id" binding:"required"`
	SubCategoryID   *uuid.UUID        `json:"subcategory_id"`
	Title           string            `json:"title" binding:"required,min=1,max=200"`
	Description     string            `json:"description" binding:"max=5000"`
	AccountType     string            `json:"account_type" binding:"max=50"`
	Price           decimal.Decimal   `json:"price"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	Quantity        int               `json:"quantity_available" binding:"min=0"`
	AccountDetails  map[string]string `json:"account_details"`
	Credentials     string            `json:"credentials"`
	DeliveryMethod  string            `json:"delivery_method" binding:"omitempty,oneof=instant manual"`
}

// UpdateProductRequest replaces the editable fields of a listing
type UpdateProductRequest = CreateProductRequest

func (r CreateProductRequest) details() catalog.ProductDetails {
	return catalog.ProductDetails{
		CategoryID:      r.CategoryID,
		SubCategoryID:   r.SubCategoryID,
		Title:           r.Title,
		Description:     r.Description,
		AccountType:     r.AccountType,
		Price:           r.Price,
		DiscountPercent: r.DiscountPercent,
		Quantity:        r.Quantity,
		AccountDetails:  r.AccountDetails,
		Credentials:     r.Credentials,
		DeliveryMethod:  catalog.DeliveryMethod(r.DeliveryMethod),
	}
}

// ProductListQuery holds the query string of the listing endpoints. IDs
// and prices arrive as strings and are parsed by filter.
type ProductListQuery struct {
	Search        string `form:"search"`
	CategoryID    string `form:"category_id"`
	SubCategoryID string `form:"subcategory_id"`
	AccountType   string `form:"account_type"`
	MinPrice      string `form:"min_price"`
	MaxPrice      string `form:"max_price"`
	Status        string `form:"status"`
	Sort          string `form:"sort" binding:"omitempty,oneof=newest price_low price_high rating views"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q ProductListQuery) filter() (catalog.ProductFilter, error) {
	f := catalog.ProductFilter{
		Search:      strings.TrimSpace(q.Search),
		AccountType: q.AccountType,
		Sort:        catalog.ProductSort(q.Sort),
		Page:        q.Page,
		PageSize:    q.PageSize,
	}
	var err error
	if f.CategoryID, err = optionalUUID(q.CategoryID, "category_id"); err != nil {
		return f, err
	}
	if f.SubCategoryID, err = optionalUUID(q.SubCategoryID, "subcategory_id"); err != nil {
		return f, err
	}
	if f.MinPrice, err = optionalDecimal(q.MinPrice, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optionalDecimal(q.MaxPrice, "max_price"); err != nil {
		return f, err
	}
	if q.Status != "" {
		status := catalog.ProductStatus(q.Status)
		if !status.IsValid() {
			return f, shared.NewDomainError("INVALID_INPUT", "Unknown product status: "+q.Status)
		}
		f.Status = &status
	}
	return f, nil
}

func optionalUUID(v, field string) (*uuid.UUID, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid "+field)
	}
	return &id, nil
}

func optionalDecimal(v, field string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid "+field)
	}
	return &d, nil
}

// ProductResponse represents a listing in API responses. Credentials are
// never part of it.
type ProductResponse struct {
	ID              uuid.UUID         `json:"id"`
	VendorID        uuid.UUID         `json:"vendor_id"`
	CategoryID      uuid.UUID         `json:"category_id"`
	SubCategoryID   *uuid.UUID        `json:"subcategory_id,omitempty"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	AccountType     string            `json:"account_type"`
	Price           decimal.Decimal   `json:"price"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	FinalPrice      decimal.Decimal   `json:"final_price"`
	Quantity        int               `json:"quantity_available"`
	AccountDetails  map[string]string `json:"account_details"`
	DeliveryMethod  string            `json:"delivery_method"`
	Status          string            `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	IsFeatured      bool              `json:"is_featured"`
	IsAvailable     bool              `json:"is_available"`
	ViewsCount      int               `json:"views_count"`
	SalesCount      int               `json:"sales_count"`
	Rating          decimal.Decimal   `json:"rating"`
	ImageKeys       []string          `json:"image_keys"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int               `json:"version"`
}

// ToProductResponse converts a listing to its API form
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		VendorID:        p.VendorID,
		CategoryID:      p.CategoryID,
		SubCategoryID:   p.SubCategoryID,
		Title:           p.Title,
		Description:     p.Description,
		AccountType:     p.AccountType,
		Price:           p.Price,
		DiscountPercent: p.DiscountPercent,
		FinalPrice:      p.FinalPrice(),
		Quantity:        p.Quantity,
		AccountDetails:  p.AccountDetails,
		DeliveryMethod:  string(p.DeliveryMethod),
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		IsFeatured:      p.IsFeatured,
		IsAvailable:     p.IsAvailable(),
		ViewsCount:      p.ViewsCount,
		SalesCount:      p.SalesCount,
		Rating:          p.Rating,
		ImageKeys:       p.ImageKeys,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}

func toProductResponses(products []*catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = ToProductResponse(p)
	}
	return out
}

// CredentialsResponse is returned to the owning vendor only
type CredentialsResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	Credentials string    `json:"credentials"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	SortOrder   int       `json:"sort_order"`
}

// SubCategoryResponse represents a subcategory in API responses
type SubCategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// TrackViewRequest identifies the viewer of a listing
type TrackViewRequest struct {
	UserID    *uuid.UUID
	IPAddress string
}

// RejectProductRequest carries the moderator's reason
type RejectProductRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ImageUploadRequest asks for a presigned upload URL for a listing image
type ImageUploadRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required"`
}

// UploadURLResponse carries a presigned PUT URL and the object key it
// writes to
type UploadURLResponse struct {
	UploadURL string    `json:"upload_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BulkProductItem is one entry of a JSON bulk upload. Category and
// subcategory are referenced by name, as in the CSV format.
type BulkProductItem struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	SubCategory     string `json:"subcategory"`
	AccountType     string `json:"account_type"`
	Price           string `json:"price"`
	DiscountPercent string `json:"discount_percent"`
	Quantity        string `json:"quantity"`
	Credentials     string `json:"credentials"`
	DeliveryMethod  string `json:"delivery_method"`
}

// BulkUploadSimpleRequest wraps a JSON bulk upload
type BulkUploadSimpleRequest struct {
	Products []BulkProductItem `json:"products" binding:"required,min=1,max=500"`
}

// BulkUploadResult summarizes a bulk upload
type BulkUploadResult struct {
	CreatedCount int      `json:"created_count"`
	ErrorCount   int      `json:"error_count"`
	Errors       []string `json:"errors"`
}
