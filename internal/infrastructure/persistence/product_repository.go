package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

var productSortOrders = map[catalog.ProductSort]string{
	catalog.SortNewest:    "created_at DESC",
	catalog.SortPriceLow:  "price ASC",
	catalog.SortPriceHigh: "price DESC",
	catalog.SortRating:    "rating DESC",
	catalog.SortViews:     "views_count DESC",
}

// FindByID finds a non-deleted product by ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.findOne(Conn(ctx, r.db), id)
}

// FindByIDForUpdate finds a product and locks its row
func (r *GormProductRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.findOne(Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormProductRepository) findOne(db *gorm.DB, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := db.Where("id = ? AND is_deleted = ?", id, false).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds products matching the filter
func (r *GormProductRepository) FindAll(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, int64, error) {
	query := r.applyFilter(Conn(ctx, r.db).Model(&models.ProductModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := productSortOrders[filter.Sort]
	if !ok {
		order = productSortOrders[catalog.SortNewest]
	}

	var rows []models.ProductModel
	if err := query.Order(order).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toProducts(rows), total, nil
}

// FindAllByVendor returns every non-deleted product of a vendor, newest first
func (r *GormProductRepository) FindAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]*catalog.Product, error) {
	var rows []models.ProductModel
	if err := Conn(ctx, r.db).
		Where("vendor_id = ? AND is_deleted = ?", vendorID, false).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return Conn(ctx, r.db).Save(models.ProductModelFromDomain(product)).Error
}

// SaveBatch creates or updates products in one transaction
func (r *GormProductRepository) SaveBatch(ctx context.Context, products []*catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	rows := make([]*models.ProductModel, len(products))
	for i, p := range products {
		rows[i] = models.ProductModelFromDomain(p)
	}
	return Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 100).Error
	})
}

// IncrementViews bumps the view counter without touching the aggregate version
func (r *GormProductRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return Conn(ctx, r.db).Model(&models.ProductModel{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1)).Error
}

// SaveView records a product view
func (r *GormProductRepository) SaveView(ctx context.Context, view *catalog.ProductView) error {
	return Conn(ctx, r.db).Create(models.ProductViewModelFromDomain(view)).Error
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter catalog.ProductFilter) *gorm.DB {
	query = query.Where("is_deleted = ?", false)
	if filter.PublicOnly {
		query = query.Where("status = ? AND is_active = ?", catalog.ProductStatusApproved, true)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", search, search)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.SubCategoryID != nil {
		query = query.Where("sub_category_id = ?", *filter.SubCategoryID)
	}
	if filter.AccountType != "" {
		query = query.Where("LOWER(account_type) = ?", strings.ToLower(filter.AccountType))
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.InStock {
		query = query.Where("quantity > ?", 0)
	}
	return query
}

func toProducts(rows []models.ProductModel) []*catalog.Product {
	products := make([]*catalog.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].ToDomain()
	}
	return products
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// GormCategoryRepository implements CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindByID finds a category by ID
func (r *GormCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := Conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds a category by name, case-insensitively
func (r *GormCategoryRepository) FindByName(ctx context.Context, name string) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := Conn(ctx, r.db).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns active categories ordered by sort_order, name
func (r *GormCategoryRepository) FindActive(ctx context.Context) ([]*catalog.Category, error) {
	var rows []models.CategoryModel
	if err := Conn(ctx, r.db).
		Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*catalog.Category, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindSubCategory finds a subcategory by ID
func (r *GormCategoryRepository) FindSubCategory(ctx context.Context, id uuid.UUID) (*catalog.SubCategory, error) {
	var model models.SubCategoryModel
	if err := Conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindSubCategoryByName finds a subcategory of categoryID by name
func (r *GormCategoryRepository) FindSubCategoryByName(ctx context.Context, categoryID uuid.UUID, name string) (*catalog.SubCategory, error) {
	var model models.SubCategoryModel
	if err := Conn(ctx, r.db).
		Where("category_id = ? AND LOWER(name) = ?", categoryID, strings.ToLower(strings.TrimSpace(name))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveSubCategories lists active subcategories of a category by name
func (r *GormCategoryRepository) FindActiveSubCategories(ctx context.Context, categoryID uuid.UUID) ([]*catalog.SubCategory, error) {
	var rows []models.SubCategoryModel
	if err := Conn(ctx, r.db).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*catalog.SubCategory, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a category
func (r *GormCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	return Conn(ctx, r.db).Save(models.CategoryModelFromDomain(category)).Error
}

// SaveSubCategory creates or updates a subcategory
func (r *GormCategoryRepository) SaveSubCategory(ctx context.Context, sub *catalog.SubCategory) error {
	return Conn(ctx, r.db).Save(models.SubCategoryModelFromDomain(sub)).Error
}

var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
