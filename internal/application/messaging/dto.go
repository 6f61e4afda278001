package messaging

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/google/uuid"
)

// CreateConversationRequest opens a conversation with another user
type CreateConversationRequest struct {
	ParticipantID  uuid.UUID  `json:"participant_id" binding:"required"`
	Subject        string     `json:"subject" binding:"max=255"`
	ProductID      *uuid.UUID `json:"product_id"`
	OrderID        *uuid.UUID `json:"order_id"`
	InitialMessage string     `json:"initial_message" binding:"max=5000"`
}

// ProductConversationRequest opens (or reuses) a conversation with the
// vendor of a listing
type ProductConversationRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Message   string    `json:"message" binding:"max=5000"`
}

// SendMessageRequest posts a message to a conversation
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// MessageListQuery pages through a conversation
type MessageListQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

const defaultMessagePageSize = 50

func (q MessageListQuery) limit() int {
	if q.PageSize <= 0 {
		return defaultMessagePageSize
	}
	return min(q.PageSize, 100)
}

func (q MessageListQuery) page() int {
	return max(q.Page, 1)
}

// ConversationResponse represents a conversation in API responses
type ConversationResponse struct {
	ID                 uuid.UUID   `json:"id"`
	ParticipantIDs     []uuid.UUID `json:"participant_ids"`
	ProductID          *uuid.UUID  `json:"product_id,omitempty"`
	OrderID            *uuid.UUID  `json:"order_id,omitempty"`
	Subject            string      `json:"subject"`
	LastMessageAt      *time.Time  `json:"last_message_at,omitempty"`
	LastMessagePreview string      `json:"last_message_preview,omitempty"`
	IsActive           bool        `json:"is_active"`
	UnreadCount        int64       `json:"unread_count"`
	CreatedAt          time.Time   `json:"created_at"`
}

// ToConversationResponse converts a conversation to its API form
func ToConversationResponse(c *messaging.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:                 c.ID,
		ParticipantIDs:     []uuid.UUID{c.ParticipantIDs[0], c.ParticipantIDs[1]},
		ProductID:          c.ProductID,
		OrderID:            c.OrderID,
		Subject:            c.Subject,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
		IsActive:           c.IsActive,
		CreatedAt:          c.CreatedAt,
	}
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	Content        string     `json:"content"`
	MessageType    string     `json:"message_type"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToMessageResponse converts a message to its API form
func ToMessageResponse(m *messaging.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		MessageType:    string(m.MessageType),
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}

// MarkReadResponse reports how many messages were marked read
type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}
