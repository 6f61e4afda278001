package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConversationRepository implements ConversationRepository using GORM
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a new GormConversationRepository
func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// FindByID finds a conversation by ID
func (r *GormConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*messaging.Conversation, error) {
	return r.findOne(Conn(ctx, r.db).Where("id = ?", id))
}

// FindForUser lists the user's conversations with their unread counts,
// most recent activity first
func (r *GormConversationRepository) FindForUser(ctx context.Context, userID uuid.UUID) ([]messaging.ConversationSummary, error) {
	db := Conn(ctx, r.db)
	var rows []models.ConversationModel
	if err := db.
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []messaging.ConversationSummary{}, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var counts []struct {
		ConversationID uuid.UUID
		Unread         int64
	}
	if err := db.Model(&models.MessageModel{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND recipient_id = ? AND is_read = ?", ids, userID, false).
		Group("conversation_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	unread := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		unread[c.ConversationID] = c.Unread
	}

	out := make([]messaging.ConversationSummary, len(rows))
	for i := range rows {
		out[i] = messaging.ConversationSummary{
			Conversation: rows[i].ToDomain(),
			UnreadCount:  unread[rows[i].ID],
		}
	}
	return out, nil
}

// FindByProductAndParticipants finds the conversation between a and b about a product
func (r *GormConversationRepository) FindByProductAndParticipants(ctx context.Context, productID, a, b uuid.UUID) (*messaging.Conversation, error) {
	return r.findOne(Conn(ctx, r.db).
		Where("product_id = ?", productID).
		Where("(participant_a = ? AND participant_b = ?) OR (participant_a = ? AND participant_b = ?)", a, b, b, a))
}

// FindByProductForUser finds the newest conversation about a product the user takes part in
func (r *GormConversationRepository) FindByProductForUser(ctx context.Context, productID, userID uuid.UUID) (*messaging.Conversation, error) {
	return r.findOne(Conn(ctx, r.db).
		Where("product_id = ?", productID).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("created_at DESC"))
}

func (r *GormConversationRepository) findOne(query *gorm.DB) (*messaging.Conversation, error) {
	var model models.ConversationModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a conversation
func (r *GormConversationRepository) Save(ctx context.Context, conversation *messaging.Conversation) error {
	return Conn(ctx, r.db).Save(models.ConversationModelFromDomain(conversation)).Error
}

var _ messaging.ConversationRepository = (*GormConversationRepository)(nil)

// GormMessageRepository implements MessageRepository using GORM
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create stores a new message
func (r *GormMessageRepository) Create(ctx context.Context, message *messaging.Message) error {
	return Conn(ctx, r.db).Create(models.MessageModelFromDomain(message)).Error
}

// FindByConversation returns one page of messages, oldest first
func (r *GormMessageRepository) FindByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]*messaging.Message, int64, error) {
	query := Conn(ctx, r.db).Model(&models.MessageModel{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MessageModel
	if err := query.Order("created_at ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*messaging.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// MarkRead flags every unread message addressed to recipient
func (r *GormMessageRepository) MarkRead(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) (int64, error) {
	result := Conn(ctx, r.db).Model(&models.MessageModel{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return result.RowsAffected, result.Error
}

var _ messaging.MessageRepository = (*GormMessageRepository)(nil)
