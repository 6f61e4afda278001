package catalog

import (
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Category is a top-level product grouping such as "Streaming" or "Gaming"
type Category struct {
	shared.BaseEntity
	Name        string
	Description string
	Icon        string
	IsActive    bool
	SortOrder   int
}

// NewCategory creates an active category
func NewCategory(name, description string, sortOrder int) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Category name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_NAME", "Category name cannot exceed 100 characters")
	}
	return &Category{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        name,
		Description: description,
		IsActive:    true,
		SortOrder:   sortOrder,
	}, nil
}

// SubCategory belongs to exactly one category; names are unique per category
type SubCategory struct {
	shared.BaseEntity
	CategoryID  uuid.UUID
	Name        string
	Description string
	IsActive    bool
}

// NewSubCategory creates an active subcategory under categoryID
func NewSubCategory(categoryID uuid.UUID, name, description string) (*SubCategory, error) {
	name = strings.TrimSpace(name)
	if categoryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Category is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Subcategory name cannot be empty")
	}
	now := time.Now()
	return &SubCategory{
		BaseEntity:  shared.BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		CategoryID:  categoryID,
		Name:        name,
		Description: description,
		IsActive:    true,
	}, nil
}
