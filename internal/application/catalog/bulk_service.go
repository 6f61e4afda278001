package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	csvimport "github.com/cryptonexus/backend/internal/infrastructure/import"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BulkUploadHeaders are the columns of the bulk upload CSV, in template order
var BulkUploadHeaders = []string{
	"title", "description", "category", "subcategory", "account_type",
	"price", "discount_percent", "quantity", "credentials", "delivery_method",
}

var requiredBulkHeaders = []string{"title", "category", "price"}

var exportHeaders = []string{
	"id", "title", "description", "category", "subcategory", "account_type",
	"price", "discount_percent", "final_price", "quantity", "status",
	"delivery_method", "views_count", "sales_count", "created_at",
}

// BulkService creates listings from CSV or JSON uploads and exports a
// vendor's listings
type BulkService struct {
	productRepo  catalog.ProductRepository
	categoryRepo catalog.CategoryRepository
	logger       *zap.Logger
}

// NewBulkService creates a new BulkService
func NewBulkService(productRepo catalog.ProductRepository, categoryRepo catalog.CategoryRepository, logger *zap.Logger) *BulkService {
	return &BulkService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

// UploadCSV creates one listing per valid row. Invalid rows are reported
// as "Row N: message" where the header is row 1.
func (s *BulkService) UploadCSV(ctx context.Context, actor shared.Actor, data []byte) (*BulkUploadResult, error) {
	if !actor.CanSell() {
		return nil, shared.NewDomainError("FORBIDDEN", "Only vendors can upload products")
	}
	if len(data) > csvimport.MaxFileSize {
		return nil, shared.NewDomainError("INVALID_INPUT", "File exceeds the 5MB limit")
	}

	parser, err := csvimport.ParseBytes(data)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if missing := parser.MissingHeaders(requiredBulkHeaders...); len(missing) > 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Missing required columns: "+strings.Join(missing, ", "))
	}
	rows, err := parser.ReadAll()
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	items := make([]numberedItem, len(rows))
	for i, row := range rows {
		items[i] = numberedItem{line: row.Line, item: BulkProductItem{
			Title:           row.Get("title"),
			Description:     row.Get("description"),
			Category:        row.Get("category"),
			SubCategory:     row.Get("subcategory"),
			AccountType:     row.Get("account_type"),
			Price:           row.Get("price"),
			DiscountPercent: row.Get("discount_percent"),
			Quantity:        row.Get("quantity"),
			Credentials:     row.Get("credentials"),
			DeliveryMethod:  row.Get("delivery_method"),
		}}
	}
	return s.create(ctx, actor, items)
}

// UploadSimple applies the CSV validation to a JSON array. Item i is
// reported as row i+1.
func (s *BulkService) UploadSimple(ctx context.Context, actor shared.Actor, req BulkUploadSimpleRequest) (*BulkUploadResult, error) {
	if !actor.CanSell() {
		return nil, shared.NewDomainError("FORBIDDEN", "Only vendors can upload products")
	}
	items := make([]numberedItem, len(req.Products))
	for i, item := range req.Products {
		items[i] = numberedItem{line: i + 1, item: item}
	}
	return s.create(ctx, actor, items)
}

type numberedItem struct {
	line int
	item BulkProductItem
}

func (s *BulkService) create(ctx context.Context, actor shared.Actor, items []numberedItem) (*BulkUploadResult, error) {
	errs := csvimport.NewErrorCollection(0)
	resolver := newCategoryResolver(s.categoryRepo)
	products := make([]*catalog.Product, 0, len(items))

	for _, ni := range items {
		details, err := s.itemDetails(ctx, resolver, ni.item)
		if err == nil {
			var product *catalog.Product
			if product, err = catalog.NewProduct(actor.UserID, details); err == nil {
				products = append(products, product)
				continue
			}
		}
		var de *shared.DomainError
		if errors.As(err, &de) {
			errs.Addf(ni.line, "%s", de.Message)
			continue
		}
		return nil, err
	}

	if len(products) > 0 {
		if err := s.productRepo.SaveBatch(ctx, products); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Bulk upload processed",
		zap.String("vendor_id", actor.UserID.String()),
		zap.Int("created", len(products)),
		zap.Int("errors", errs.Count()))

	return &BulkUploadResult{
		CreatedCount: len(products),
		ErrorCount:   errs.Count(),
		Errors:       errs.Messages(),
	}, nil
}

func (s *BulkService) itemDetails(ctx context.Context, resolver *categoryResolver, item BulkProductItem) (catalog.ProductDetails, error) {
	var d catalog.ProductDetails

	if strings.TrimSpace(item.Category) == "" {
		return d, shared.NewDomainError("INVALID_CATEGORY", "Category is required")
	}
	category, err := resolver.category(ctx, item.Category)
	if err != nil {
		return d, err
	}
	d.CategoryID = category.ID
	if name := strings.TrimSpace(item.SubCategory); name != "" {
		sub, err := resolver.subCategory(ctx, category.ID, name)
		if err != nil {
			return d, err
		}
		d.SubCategoryID = &sub.ID
	}

	d.Price, err = decimal.NewFromString(strings.TrimSpace(item.Price))
	if err != nil {
		return d, shared.NewDomainError("INVALID_PRICE", fmt.Sprintf("Invalid price '%s'", item.Price))
	}
	d.DiscountPercent = decimal.Zero
	if v := strings.TrimSpace(item.DiscountPercent); v != "" {
		if d.DiscountPercent, err = decimal.NewFromString(v); err != nil {
			return d, shared.NewDomainError("INVALID_DISCOUNT", fmt.Sprintf("Invalid discount '%s'", v))
		}
	}
	d.Quantity = 1
	if v := strings.TrimSpace(item.Quantity); v != "" {
		if d.Quantity, err = strconv.Atoi(v); err != nil {
			return d, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Invalid quantity '%s'", v))
		}
	}

	d.Title = item.Title
	d.Description = item.Description
	d.AccountType = item.AccountType
	d.Credentials = item.Credentials
	d.DeliveryMethod = catalog.DeliveryMethod(strings.ToLower(strings.TrimSpace(item.DeliveryMethod)))
	return d, nil
}

// Template returns the bulk upload CSV header with one example row
func (s *BulkService) Template() ([]byte, error) {
	return csvimport.Build(BulkUploadHeaders, [][]string{{
		"Netflix Premium 4K", "12 month subscription, full access", "Streaming", "Netflix",
		"premium", "0.00045", "10", "5", "user@example.com:password", "instant",
	}})
}

// Export renders every non-deleted listing of the caller as CSV.
// Credentials are not exported.
func (s *BulkService) Export(ctx context.Context, actor shared.Actor) ([]byte, error) {
	if !actor.CanSell() {
		return nil, shared.ErrForbidden
	}
	products, err := s.productRepo.FindAllByVendor(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	names := newCategoryNames(s.categoryRepo)
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		category, subCategory := names.lookup(ctx, p.CategoryID, p.SubCategoryID)
		rows = append(rows, []string{
			p.ID.String(),
			p.Title,
			p.Description,
			category,
			subCategory,
			p.AccountType,
			p.Price.String(),
			p.DiscountPercent.String(),
			p.FinalPrice().String(),
			strconv.Itoa(p.Quantity),
			string(p.Status),
			string(p.DeliveryMethod),
			strconv.Itoa(p.ViewsCount),
			strconv.Itoa(p.SalesCount),
			p.CreatedAt.UTC().Format(time.DateTime),
		})
	}
	return csvimport.Build(exportHeaders, rows)
}

// categoryResolver caches name lookups for the duration of one upload
type categoryResolver struct {
	repo       catalog.CategoryRepository
	categories map[string]*catalog.Category
	subs       map[string]*catalog.SubCategory
}

func newCategoryResolver(repo catalog.CategoryRepository) *categoryResolver {
	return &categoryResolver{
		repo:       repo,
		categories: map[string]*catalog.Category{},
		subs:       map[string]*catalog.SubCategory{},
	}
}

func (r *categoryResolver) category(ctx context.Context, name string) (*catalog.Category, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := r.categories[key]; ok {
		return c, nil
	}
	c, err := r.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("INVALID_CATEGORY", fmt.Sprintf("Category '%s' not found", strings.TrimSpace(name)))
		}
		return nil, err
	}
	if !c.IsActive {
		return nil, shared.NewDomainError("INVALID_CATEGORY", fmt.Sprintf("Category '%s' is not active", c.Name))
	}
	r.categories[key] = c
	return c, nil
}

func (r *categoryResolver) subCategory(ctx context.Context, categoryID uuid.UUID, name string) (*catalog.SubCategory, error) {
	key := categoryID.String() + "/" + strings.ToLower(name)
	if sc, ok := r.subs[key]; ok {
		return sc, nil
	}
	sc, err := r.repo.FindSubCategoryByName(ctx, categoryID, name)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("INVALID_SUBCATEGORY", fmt.Sprintf("Subcategory '%s' not found", name))
		}
		return nil, err
	}
	r.subs[key] = sc
	return sc, nil
}

// categoryNames maps IDs back to names for exports. Unknown IDs render empty.
type categoryNames struct {
	repo  catalog.CategoryRepository
	names map[uuid.UUID]string
}

func newCategoryNames(repo catalog.CategoryRepository) *categoryNames {
	return &categoryNames{repo: repo, names: map[uuid.UUID]string{}}
}

func (n *categoryNames) lookup(ctx context.Context, categoryID uuid.UUID, subCategoryID *uuid.UUID) (string, string) {
	category, ok := n.names[categoryID]
	if !ok {
		if c, err := n.repo.FindByID(ctx, categoryID); err == nil {
			category = c.Name
		}
		n.names[categoryID] = category
	}
	if subCategoryID == nil {
		return category, ""
	}
	sub, ok := n.names[*subCategoryID]
	if !ok {
		if sc, err := n.repo.FindSubCategory(ctx, *subCategoryID); err == nil {
			sub = sc.Name
		}
		n.names[*subCategoryID] = sub
	}
	return category, sub
}
