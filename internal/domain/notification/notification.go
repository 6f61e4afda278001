package notification

import (
	"context"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Kind groups notifications by what triggered them
type Kind string

const (
	KindOrderCreated     Kind = "order_created"
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindOrderDelivered   Kind = "order_delivered"
	KindOrderDisputed    Kind = "order_disputed"
	KindVendorApproved   Kind = "vendor_approved"
	KindVendorRejected   Kind = "vendor_rejected"
	KindMessageReceived  Kind = "message_received"
)

// Notification is an in-app message for one user
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      Kind
	Title     string
	Body      string
	Reference string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// New creates an unread notification
func New(userID uuid.UUID, kind Kind, title, body, reference string) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Reference: reference,
		CreatedAt: time.Now(),
	}
}

// MarkRead flags the notification as read by its owner
func (n *Notification) MarkRead(userID uuid.UUID, now time.Time) error {
	if n.UserID != userID {
		return shared.ErrForbidden
	}
	if n.IsRead {
		return nil
	}
	n.IsRead = true
	n.ReadAt = &now
	return nil
}

// Repository defines the interface for notification persistence
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	FindForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*Notification, error)
	Save(ctx context.Context, n *Notification) error
}
