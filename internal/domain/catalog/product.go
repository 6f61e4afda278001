package catalog

import (
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is the moderation state of a listing
type ProductStatus string

const (
	ProductStatusDraft           ProductStatus = "draft"
	ProductStatusPendingApproval ProductStatus = "pending_approval"
	ProductStatusApproved        ProductStatus = "approved"
	ProductStatusRejected        ProductStatus = "rejected"
	ProductStatusSuspended       ProductStatus = "suspended"
	ProductStatusReserved        ProductStatus = "reserved"
)

// IsValid reports whether s is a known status
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusPendingApproval, ProductStatusApproved,
		ProductStatusRejected, ProductStatusSuspended, ProductStatusReserved:
		return true
	}
	return false
}

// DeliveryMethod describes how credentials reach the buyer
type DeliveryMethod string

const (
	DeliveryInstant DeliveryMethod = "instant"
	DeliveryManual  DeliveryMethod = "manual"
)

// PricePrecision is the number of decimal places kept for prices
const PricePrecision = 8

var hundred = decimal.NewFromInt(100)

// ProductDetails carries the vendor-editable fields of a listing
type ProductDetails struct {
	CategoryID      uuid.UUID
	SubCategoryID   *uuid.UUID
	Title           string
	Description     string
	AccountType     string
	Price           decimal.Decimal
	DiscountPercent decimal.Decimal
	Quantity        int
	AccountDetails  map[string]string
	Credentials     string
	DeliveryMethod  DeliveryMethod
}

// Validate checks the listing invariants
func (d *ProductDetails) Validate() error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Title is required")
	}
	if len(title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Title cannot exceed 200 characters")
	}
	if d.CategoryID == uuid.Nil {
		return shared.NewDomainError("INVALID_CATEGORY", "Category is required")
	}
	if !d.Price.IsPositive() {
		return shared.NewDomainError("INVALID_PRICE", "Price must be greater than 0")
	}
	if d.DiscountPercent.IsNegative() || d.DiscountPercent.GreaterThan(hundred) {
		return shared.NewDomainError("INVALID_DISCOUNT", "Discount must be between 0 and 100")
	}
	if d.Quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	switch d.DeliveryMethod {
	case "", DeliveryInstant, DeliveryManual:
	default:
		return shared.NewDomainError("INVALID_DELIVERY_METHOD", "Delivery method must be instant or manual")
	}
	return nil
}

// Product is a listing of a digital account offered by a vendor
type Product struct {
	shared.BaseAggregateRoot
	VendorID        uuid.UUID
	CategoryID      uuid.UUID
	SubCategoryID   *uuid.UUID
	Title           string
	Description     string
	AccountType     string
	Price           decimal.Decimal
	DiscountPercent decimal.Decimal
	Quantity        int
	AccountDetails  map[string]string
	Credentials     string
	DeliveryMethod  DeliveryMethod
	Status          ProductStatus
	RejectionReason string
	IsFeatured      bool
	IsActive        bool
	IsDeleted       bool
	ViewsCount      int
	SalesCount      int
	Rating          decimal.Decimal
	ImageKeys       []string
}

// NewProduct creates a listing awaiting moderation
func NewProduct(vendorID uuid.UUID, details ProductDetails) (*Product, error) {
	if vendorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VENDOR", "Vendor is required")
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VendorID:          vendorID,
		Status:            ProductStatusPendingApproval,
		IsActive:          true,
		Rating:            decimal.Zero,
		ImageKeys:         []string{},
	}
	p.apply(details)
	return p, nil
}

func (p *Product) apply(d ProductDetails) {
	p.CategoryID = d.CategoryID
	p.SubCategoryID = d.SubCategoryID
	p.Title = strings.TrimSpace(d.Title)
	p.Description = d.Description
	p.AccountType = d.AccountType
	p.Price = d.Price.Round(PricePrecision)
	p.DiscountPercent = d.DiscountPercent
	p.Quantity = d.Quantity
	p.AccountDetails = d.AccountDetails
	if p.AccountDetails == nil {
		p.AccountDetails = map[string]string{}
	}
	p.Credentials = d.Credentials
	p.DeliveryMethod = d.DeliveryMethod
	if p.DeliveryMethod == "" {
		p.DeliveryMethod = DeliveryInstant
	}
}

// Update replaces the editable fields. A listing that was approved or
// rejected goes back to moderation.
func (p *Product) Update(details ProductDetails) error {
	if p.IsDeleted {
		return shared.ErrNotFound
	}
	if err := details.Validate(); err != nil {
		return err
	}
	p.apply(details)
	switch p.Status {
	case ProductStatusApproved, ProductStatusRejected, ProductStatusReserved:
		p.Status = ProductStatusPendingApproval
		p.RejectionReason = ""
	}
	p.touch()
	return nil
}

// FinalPrice is the price after discount, rounded to PricePrecision places
func (p *Product) FinalPrice() decimal.Decimal {
	factor := hundred.Sub(p.DiscountPercent).Div(hundred)
	return p.Price.Mul(factor).Round(PricePrecision)
}

// IsAvailable reports whether the listing can be ordered
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusApproved && p.IsActive && !p.IsDeleted && p.Quantity > 0
}

// IsOwnedBy reports whether userID is the listing's vendor
func (p *Product) IsOwnedBy(userID uuid.UUID) bool {
	return p.VendorID == userID
}

// Approve publishes the listing
func (p *Product) Approve() error {
	if p.IsDeleted {
		return shared.ErrNotFound
	}
	p.Status = ProductStatusApproved
	p.RejectionReason = ""
	p.touch()
	return nil
}

// Reject sends the listing back to the vendor with a reason
func (p *Product) Reject(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Rejection reason is required")
	}
	if p.IsDeleted {
		return shared.ErrNotFound
	}
	p.Status = ProductStatusRejected
	p.RejectionReason = strings.TrimSpace(reason)
	p.touch()
	return nil
}

// SoftDelete hides the listing from every query
func (p *Product) SoftDelete() {
	p.IsDeleted = true
	p.IsActive = false
	p.touch()
}

// Reserve takes qty units out of stock. A sold-out listing becomes reserved.
func (p *Product) Reserve(qty int) error {
	if qty < 1 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	if !p.IsAvailable() {
		return shared.NewDomainError("PRODUCT_UNAVAILABLE", "Product is not available for purchase")
	}
	if p.Quantity < qty {
		return shared.ErrInsufficientStock
	}
	p.Quantity -= qty
	if p.Quantity == 0 {
		p.Status = ProductStatusReserved
	}
	p.touch()
	return nil
}

// Release puts qty units back, reopening a reserved listing
func (p *Product) Release(qty int) {
	if qty < 1 {
		return
	}
	p.Quantity += qty
	if p.Status == ProductStatusReserved {
		p.Status = ProductStatusApproved
	}
	p.touch()
}

// RecordSale increments the sales counter
func (p *Product) RecordSale() {
	p.SalesCount++
	p.touch()
}

// AddImageKey records an uploaded image object
func (p *Product) AddImageKey(key string) {
	p.ImageKeys = append(p.ImageKeys, key)
	p.touch()
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// ProductView records one view of a listing
type ProductView struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	UserID    *uuid.UUID
	IPAddress string
	ViewedAt  time.Time
}

// NewProductView creates a view record stamped now
func NewProductView(productID uuid.UUID, userID *uuid.UUID, ip string) *ProductView {
	return &ProductView{
		ID:        uuid.New(),
		ProductID: productID,
		UserID:    userID,
		IPAddress: ip,
		ViewedAt:  time.Now(),
	}
}
