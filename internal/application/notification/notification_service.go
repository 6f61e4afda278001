package notification

import (
	"context"
	"time"

	"github.com/cryptonexus/backend/internal/domain/notification"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const listLimit = 50

// ListQuery filters a user's notifications
type ListQuery struct {
	UnreadOnly bool `form:"unread_only"`
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Reference string     `json:"reference,omitempty"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		Reference: n.Reference,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// NotificationService stores and serves in-app notifications
type NotificationService struct {
	repo   notification.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo notification.Repository, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger, now: time.Now}
}

// List returns the caller's latest notifications, newest first
func (s *NotificationService) List(ctx context.Context, actor shared.Actor, q ListQuery) ([]NotificationResponse, error) {
	items, err := s.repo.FindForUser(ctx, actor.UserID, q.UnreadOnly, listLimit)
	if err != nil {
		return nil, err
	}
	out := make([]NotificationResponse, len(items))
	for i, n := range items {
		out[i] = toResponse(n)
	}
	return out, nil
}

// MarkRead flags one of the caller's notifications as read. Other users'
// notifications are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, actor shared.Actor, id uuid.UUID) (*NotificationResponse, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actor.UserID {
		return nil, shared.ErrNotFound
	}
	wasRead := n.IsRead
	if err := n.MarkRead(actor.UserID, s.now()); err != nil {
		return nil, err
	}
	if !wasRead {
		if err := s.repo.Save(ctx, n); err != nil {
			return nil, err
		}
	}
	resp := toResponse(n)
	return &resp, nil
}

// Notify stores a notification for userID
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind notification.Kind, title, body, reference string) error {
	n := notification.New(userID, kind, title, body, reference)
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.logger.Debug("Notification created",
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
		zap.String("reference", reference))
	return nil
}
