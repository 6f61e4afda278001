package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/notification"
	"github.com/google/uuid"
)

// NotificationModel is the persistence model for an in-app notification.
type NotificationModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_notification_user_read,priority:1"`
	Kind      notification.Kind `gorm:"type:varchar(40);not null"`
	Title     string            `gorm:"type:varchar(200);not null"`
	Body      string            `gorm:"type:text"`
	Reference string            `gorm:"type:varchar(100)"`
	IsRead    bool              `gorm:"not null;default:false;index:idx_notification_user_read,priority:2"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification.
func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Kind:      m.Kind,
		Title:     m.Title,
		Body:      m.Body,
		Reference: m.Reference,
		IsRead:    m.IsRead,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}

// NotificationModelFromDomain creates a new persistence model from a domain Notification.
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		Reference: n.Reference,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
