package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	AggregateModel
	VendorID        uuid.UUID              `gorm:"type:uuid;not null;index"`
	CategoryID      uuid.UUID              `gorm:"type:uuid;not null;index"`
	SubCategoryID   *uuid.UUID             `gorm:"type:uuid;index"`
	Title           string                 `gorm:"type:varchar(200);not null"`
	Description     string                 `gorm:"type:text"`
	AccountType     string                 `gorm:"type:varchar(100);index"`
	Price           decimal.Decimal        `gorm:"type:decimal(20,8);not null"`
	DiscountPercent decimal.Decimal        `gorm:"type:decimal(5,2);not null;default:0"`
	Quantity        int                    `gorm:"not null;default:0"`
	AccountDetails  string                 `gorm:"type:jsonb"`
	Credentials     string                 `gorm:"type:text"`
	DeliveryMethod  catalog.DeliveryMethod `gorm:"type:varchar(20);not null;default:'instant'"`
	Status          catalog.ProductStatus  `gorm:"type:varchar(30);not null;index"`
	RejectionReason string                 `gorm:"type:text"`
	IsFeatured      bool                   `gorm:"not null;default:false"`
	IsActive        bool                   `gorm:"not null;default:true"`
	IsDeleted       bool                   `gorm:"not null;default:false;index"`
	ViewsCount      int                    `gorm:"not null;default:0"`
	SalesCount      int                    `gorm:"not null;default:0"`
	Rating          decimal.Decimal        `gorm:"type:decimal(3,2);not null;default:0"`
	ImageKeys       string                 `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToAggregateRoot(),
		VendorID:          m.VendorID,
		CategoryID:        m.CategoryID,
		SubCategoryID:     m.SubCategoryID,
		Title:             m.Title,
		Description:       m.Description,
		AccountType:       m.AccountType,
		Price:             m.Price,
		DiscountPercent:   m.DiscountPercent,
		Quantity:          m.Quantity,
		AccountDetails:    decodeMap(m.AccountDetails),
		Credentials:       m.Credentials,
		DeliveryMethod:    m.DeliveryMethod,
		Status:            m.Status,
		RejectionReason:   m.RejectionReason,
		IsFeatured:        m.IsFeatured,
		IsActive:          m.IsActive,
		IsDeleted:         m.IsDeleted,
		ViewsCount:        m.ViewsCount,
		SalesCount:        m.SalesCount,
		Rating:            m.Rating,
		ImageKeys:         decodeStrings(m.ImageKeys),
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.VendorID = p.VendorID
	m.CategoryID = p.CategoryID
	m.SubCategoryID = p.SubCategoryID
	m.Title = p.Title
	m.Description = p.Description
	m.AccountType = p.AccountType
	m.Price = p.Price
	m.DiscountPercent = p.DiscountPercent
	m.Quantity = p.Quantity
	m.AccountDetails = encodeJSON(p.AccountDetails, "{}")
	m.Credentials = p.Credentials
	m.DeliveryMethod = p.DeliveryMethod
	m.Status = p.Status
	m.RejectionReason = p.RejectionReason
	m.IsFeatured = p.IsFeatured
	m.IsActive = p.IsActive
	m.IsDeleted = p.IsDeleted
	m.ViewsCount = p.ViewsCount
	m.SalesCount = p.SalesCount
	m.Rating = p.Rating
	m.ImageKeys = encodeJSON(p.ImageKeys, "[]")
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	BaseModel
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	Icon        string `gorm:"type:varchar(100)"`
	IsActive    bool   `gorm:"not null;default:true"`
	SortOrder   int    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		Description: m.Description,
		Icon:        m.Icon,
		IsActive:    m.IsActive,
		SortOrder:   m.SortOrder,
	}
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		IsActive:    c.IsActive,
		SortOrder:   c.SortOrder,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// SubCategoryModel is the persistence model for the SubCategory domain entity.
type SubCategoryModel struct {
	BaseModel
	CategoryID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subcategory_category_name,priority:1"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_subcategory_category_name,priority:2"`
	Description string    `gorm:"type:text"`
	IsActive    bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (SubCategoryModel) TableName() string {
	return "subcategories"
}

// ToDomain converts the persistence model to a domain SubCategory entity.
func (m *SubCategoryModel) ToDomain() *catalog.SubCategory {
	return &catalog.SubCategory{
		BaseEntity:  m.BaseModel.ToDomain(),
		CategoryID:  m.CategoryID,
		Name:        m.Name,
		Description: m.Description,
		IsActive:    m.IsActive,
	}
}

// SubCategoryModelFromDomain creates a new persistence model from a domain SubCategory entity.
func SubCategoryModelFromDomain(s *catalog.SubCategory) *SubCategoryModel {
	m := &SubCategoryModel{
		CategoryID:  s.CategoryID,
		Name:        s.Name,
		Description: s.Description,
		IsActive:    s.IsActive,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// ProductViewModel records a single product view.
type ProductViewModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null;index"`
	UserID    *uuid.UUID `gorm:"type:uuid"`
	IPAddress string     `gorm:"type:varchar(45)"`
	ViewedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductViewModel) TableName() string {
	return "product_views"
}

// ProductViewModelFromDomain creates a new persistence model from a domain ProductView.
func ProductViewModelFromDomain(v *catalog.ProductView) *ProductViewModel {
	return &ProductViewModel{
		ID:        v.ID,
		ProductID: v.ProductID,
		UserID:    v.UserID,
		IPAddress: v.IPAddress,
		ViewedAt:  v.ViewedAt,
	}
}
