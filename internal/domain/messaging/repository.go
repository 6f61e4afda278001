package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is a conversation with the viewer's unread count
type ConversationSummary struct {
	Conversation *Conversation
	UnreadCount  int64
}

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	// FindForUser lists the user's conversations, most recent activity first
	FindForUser(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	FindByProductAndParticipants(ctx context.Context, productID, a, b uuid.UUID) (*Conversation, error)
	FindByProductForUser(ctx context.Context, productID, userID uuid.UUID) (*Conversation, error)
	Save(ctx context.Context, conversation *Conversation) error
}

// MessageRepository defines the interface for message persistence
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	// FindByConversation returns one page of messages, oldest first
	FindByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]*Message, int64, error)
	// MarkRead flags every unread message addressed to recipient and returns the count
	MarkRead(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error)
}
