package catalog

import (
	"context"
	"errors"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=1000"`
	Icon        string `json:"icon" binding:"max=100"`
	SortOrder   int    `json:"sort_order"`
}

// CreateSubCategoryRequest represents a request to create a subcategory
type CreateSubCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

// CategoryService handles category-related business operations
type CategoryService struct {
	categoryRepo catalog.CategoryRepository
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categoryRepo catalog.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

// ListCategories returns active categories ordered by sort order, then name
func (s *CategoryService) ListCategories(ctx context.Context) ([]CategoryResponse, error) {
	categories, err := s.categoryRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		out[i] = toCategoryResponse(c)
	}
	return out, nil
}

// ListSubCategories returns the active subcategories of an active category
func (s *CategoryService) ListSubCategories(ctx context.Context, categoryID uuid.UUID) ([]SubCategoryResponse, error) {
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, shared.ErrNotFound
	}
	subs, err := s.categoryRepo.FindActiveSubCategories(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	out := make([]SubCategoryResponse, len(subs))
	for i, sc := range subs {
		out[i] = toSubCategoryResponse(sc)
	}
	return out, nil
}

// CreateCategory adds a category. Admin only; names are unique.
func (s *CategoryService) CreateCategory(ctx context.Context, actor shared.Actor, req CreateCategoryRequest) (*CategoryResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	_, err := s.categoryRepo.FindByName(ctx, req.Name)
	if err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Category with this name already exists")
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	category, err := catalog.NewCategory(req.Name, req.Description, req.SortOrder)
	if err != nil {
		return nil, err
	}
	category.Icon = req.Icon
	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}
	resp := toCategoryResponse(category)
	return &resp, nil
}

// CreateSubCategory adds a subcategory under categoryID. Admin only;
// names are unique within the category.
func (s *CategoryService) CreateSubCategory(ctx context.Context, actor shared.Actor, categoryID uuid.UUID, req CreateSubCategoryRequest) (*SubCategoryResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		return nil, err
	}
	_, err := s.categoryRepo.FindSubCategoryByName(ctx, categoryID, req.Name)
	if err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Subcategory with this name already exists")
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	sub, err := catalog.NewSubCategory(categoryID, req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.categoryRepo.SaveSubCategory(ctx, sub); err != nil {
		return nil, err
	}
	resp := toSubCategoryResponse(sub)
	return &resp, nil
}

func toCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		SortOrder:   c.SortOrder,
	}
}

func toSubCategoryResponse(sc *catalog.SubCategory) SubCategoryResponse {
	return SubCategoryResponse{
		ID:          sc.ID,
		CategoryID:  sc.CategoryID,
		Name:        sc.Name,
		Description: sc.Description,
	}
}
