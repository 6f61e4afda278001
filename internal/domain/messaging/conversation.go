package messaging

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Message content limits
const (
	MaxContentLength = 5000
	previewLength    = 100
)

// MessageType distinguishes user messages from system notices
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Conversation is a thread between exactly two users
type Conversation struct {
	shared.BaseAggregateRoot
	ParticipantIDs     [2]uuid.UUID
	ProductID          *uuid.UUID
	OrderID            *uuid.UUID
	Subject            string
	LastMessageAt      *time.Time
	LastMessagePreview string
	IsActive           bool
}

// NewConversation opens a thread between a and b
func NewConversation(a, b uuid.UUID, subject string, productID, orderID *uuid.UUID) (*Conversation, error) {
	if a == b {
		return nil, shared.NewDomainError("INVALID_INPUT", "Cannot start a conversation with yourself")
	}
	if a == uuid.Nil || b == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Both participants are required")
	}
	subject = strings.TrimSpace(subject)
	if len(subject) > 255 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Subject must be at most 255 characters")
	}
	return &Conversation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ParticipantIDs:    [2]uuid.UUID{a, b},
		ProductID:         productID,
		OrderID:           orderID,
		Subject:           subject,
		IsActive:          true,
	}, nil
}

// HasParticipant reports whether userID is part of the conversation
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantIDs[0] == userID || c.ParticipantIDs[1] == userID
}

// OtherParticipant returns the participant that is not userID
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantIDs[0] == userID {
		return c.ParticipantIDs[1]
	}
	return c.ParticipantIDs[0]
}

// Post appends a message from sender to the other participant
func (c *Conversation) Post(senderID uuid.UUID, content string, kind MessageType, now time.Time) (*Message, error) {
	if !c.HasParticipant(senderID) {
		return nil, shared.ErrForbidden
	}
	if !c.IsActive {
		return nil, shared.NewDomainError("INVALID_STATE", "Conversation is closed")
	}
	msg, err := NewMessage(c.ID, senderID, c.OtherParticipant(senderID), content, kind, now)
	if err != nil {
		return nil, err
	}
	c.LastMessageAt = &now
	c.LastMessagePreview = preview(msg.Content)
	c.UpdatedAt = now
	c.IncrementVersion()
	c.AddDomainEvent(NewMessageSentEvent(c, msg))
	return msg, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return string([]rune(content)[:previewLength])
}

// Message is a single entry in a conversation
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	RecipientID    uuid.UUID
	Content        string
	MessageType    MessageType
	IsRead         bool
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// NewMessage validates and builds a message
func NewMessage(conversationID, senderID, recipientID uuid.UUID, content string, kind MessageType, now time.Time) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, shared.NewDomainError("INVALID_INPUT", "Message content must be at most 5000 characters")
	}
	if kind == "" {
		kind = MessageTypeText
	}
	if kind != MessageTypeText && kind != MessageTypeSystem {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid message type")
	}
	return &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		MessageType:    kind,
		CreatedAt:      now,
	}, nil
}
