package messaging

import (
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeConversation = "Conversation"

// EventTypeMessageSent is raised for every posted message
const EventTypeMessageSent = "MessageSent"

// MessageSentEvent notifies the recipient of a new message
type MessageSentEvent struct {
	shared.BaseDomainEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	Preview        string    `json:"preview"`
}

// NewMessageSentEvent creates a new MessageSentEvent
func NewMessageSentEvent(c *Conversation, m *Message) *MessageSentEvent {
	return &MessageSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMessageSent, AggregateTypeConversation, c.ID),
		ConversationID:  c.ID,
		MessageID:       m.ID,
		SenderID:        m.SenderID,
		RecipientID:     m.RecipientID,
		Preview:         c.LastMessagePreview,
	}
}
