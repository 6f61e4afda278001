package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/google/uuid"
)

// ConversationModel is the persistence model for the Conversation aggregate.
type ConversationModel struct {
	AggregateModel
	ParticipantA       uuid.UUID  `gorm:"type:uuid;not null;index"`
	ParticipantB       uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProductID          *uuid.UUID `gorm:"type:uuid;index"`
	OrderID            *uuid.UUID `gorm:"type:uuid;index"`
	Subject            string     `gorm:"type:varchar(255)"`
	LastMessageAt      *time.Time `gorm:"index"`
	LastMessagePreview string     `gorm:"type:varchar(255)"`
	IsActive           bool       `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ConversationModel) TableName() string {
	return "conversations"
}

// ToDomain converts the persistence model to a domain Conversation.
func (m *ConversationModel) ToDomain() *messaging.Conversation {
	return &messaging.Conversation{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		ParticipantIDs:     [2]uuid.UUID{m.ParticipantA, m.ParticipantB},
		ProductID:          m.ProductID,
		OrderID:            m.OrderID,
		Subject:            m.Subject,
		LastMessageAt:      m.LastMessageAt,
		LastMessagePreview: m.LastMessagePreview,
		IsActive:           m.IsActive,
	}
}

// ConversationModelFromDomain creates a new persistence model from a domain Conversation.
func ConversationModelFromDomain(c *messaging.Conversation) *ConversationModel {
	m := &ConversationModel{
		ParticipantA:       c.ParticipantIDs[0],
		ParticipantB:       c.ParticipantIDs[1],
		ProductID:          c.ProductID,
		OrderID:            c.OrderID,
		Subject:            c.Subject,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
		IsActive:           c.IsActive,
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}

// MessageModel is the persistence model for a conversation message.
type MessageModel struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID             `gorm:"type:uuid;not null;index:idx_message_conversation_created,priority:1"`
	SenderID       uuid.UUID             `gorm:"type:uuid;not null"`
	RecipientID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Content        string                `gorm:"type:text;not null"`
	MessageType    messaging.MessageType `gorm:"type:varchar(20);not null;default:'text'"`
	IsRead         bool                  `gorm:"not null;default:false"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_message_conversation_created,priority:2"`
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts the persistence model to a domain Message.
func (m *MessageModel) ToDomain() *messaging.Message {
	return &messaging.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		MessageType:    m.MessageType,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}

// MessageModelFromDomain creates a new persistence model from a domain Message.
func MessageModelFromDomain(msg *messaging.Message) *MessageModel {
	return &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		Content:        msg.Content,
		MessageType:    msg.MessageType,
		IsRead:         msg.IsRead,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}
