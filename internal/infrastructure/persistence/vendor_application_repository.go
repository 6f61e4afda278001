package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/vendor"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormVendorApplicationRepository implements ApplicationRepository using GORM
type GormVendorApplicationRepository struct {
	db *gorm.DB
}

// NewGormVendorApplicationRepository creates a new GormVendorApplicationRepository
func NewGormVendorApplicationRepository(db *gorm.DB) *GormVendorApplicationRepository {
	return &GormVendorApplicationRepository{db: db}
}

// FindByID finds an application by ID
func (r *GormVendorApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*vendor.VendorApplication, error) {
	var model models.VendorApplicationModel
	if err := Conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUsername finds an application by vendor username
func (r *GormVendorApplicationRepository) FindByUsername(ctx context.Context, username string) (*vendor.VendorApplication, error) {
	var model models.VendorApplicationModel
	if err := Conn(ctx, r.db).
		Where("LOWER(vendor_username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists applications newest first, optionally by status
func (r *GormVendorApplicationRepository) FindAll(ctx context.Context, status *vendor.ApplicationStatus) ([]*vendor.VendorApplication, error) {
	query := Conn(ctx, r.db).Model(&models.VendorApplicationModel{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.VendorApplicationModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*vendor.VendorApplication, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates an application
func (r *GormVendorApplicationRepository) Save(ctx context.Context, application *vendor.VendorApplication) error {
	if err := Conn(ctx, r.db).Save(models.VendorApplicationModelFromDomain(application)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "An application with this vendor username already exists")
		}
		return err
	}
	return nil
}

var _ vendor.ApplicationRepository = (*GormVendorApplicationRepository)(nil)
