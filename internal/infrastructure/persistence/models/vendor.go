package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/vendor"
	"github.com/google/uuid"
)

// VendorApplicationModel is the persistence model for the VendorApplication aggregate.
type VendorApplicationModel struct {
	AggregateModel
	UserID            uuid.UUID                `gorm:"type:uuid;not null;index"`
	VendorUsername    string                   `gorm:"type:varchar(150);not null;uniqueIndex"`
	Email             string                   `gorm:"type:varchar(254);not null"`
	BusinessName      string                   `gorm:"type:varchar(200);not null"`
	Description       string                   `gorm:"type:text;not null"`
	ProductCategories string                   `gorm:"type:jsonb"`
	Experience        string                   `gorm:"type:text"`
	ContactInfo       string                   `gorm:"type:jsonb"`
	DocumentKeys      string                   `gorm:"type:jsonb"`
	Status            vendor.ApplicationStatus `gorm:"type:varchar(20);not null;index"`
	AdminNotes        string                   `gorm:"type:text"`
	ReviewedBy        *uuid.UUID               `gorm:"type:uuid"`
	ReviewedAt        *time.Time
}

// TableName returns the table name for GORM
func (VendorApplicationModel) TableName() string {
	return "vendor_applications"
}

// ToDomain converts the persistence model to a domain VendorApplication.
func (m *VendorApplicationModel) ToDomain() *vendor.VendorApplication {
	return &vendor.VendorApplication{
		BaseAggregateRoot: m.ToAggregateRoot(),
		UserID:            m.UserID,
		ApplicationDetails: vendor.ApplicationDetails{
			VendorUsername:    m.VendorUsername,
			Email:             m.Email,
			BusinessName:      m.BusinessName,
			Description:       m.Description,
			ProductCategories: decodeStrings(m.ProductCategories),
			Experience:        m.Experience,
			ContactInfo:       decodeMap(m.ContactInfo),
			DocumentKeys:      decodeStrings(m.DocumentKeys),
		},
		Status:     m.Status,
		AdminNotes: m.AdminNotes,
		ReviewedBy: m.ReviewedBy,
		ReviewedAt: m.ReviewedAt,
	}
}

// VendorApplicationModelFromDomain creates a new persistence model from a domain VendorApplication.
func VendorApplicationModelFromDomain(a *vendor.VendorApplication) *VendorApplicationModel {
	m := &VendorApplicationModel{
		UserID:            a.UserID,
		VendorUsername:    a.VendorUsername,
		Email:             a.Email,
		BusinessName:      a.BusinessName,
		Description:       a.Description,
		ProductCategories: encodeJSON(a.ProductCategories, "[]"),
		Experience:        a.Experience,
		ContactInfo:       encodeJSON(a.ContactInfo, "{}"),
		DocumentKeys:      encodeJSON(a.DocumentKeys, "[]"),
		Status:            a.Status,
		AdminNotes:        a.AdminNotes,
		ReviewedBy:        a.ReviewedBy,
		ReviewedAt:        a.ReviewedAt,
	}
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	return m
}
