package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationService handles buyer/vendor messaging
type ConversationService struct {
	convRepo       messaging.ConversationRepository
	messageRepo    messaging.MessageRepository
	userRepo       identity.UserRepository
	productRepo    catalog.ProductRepository
	txManager      shared.TransactionManager
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewConversationService creates a new ConversationService
func NewConversationService(
	convRepo messaging.ConversationRepository,
	messageRepo messaging.MessageRepository,
	userRepo identity.UserRepository,
	productRepo catalog.ProductRepository,
	txManager shared.TransactionManager,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo:       convRepo,
		messageRepo:    messageRepo,
		userRepo:       userRepo,
		productRepo:    productRepo,
		txManager:      txManager,
		eventPublisher: eventPublisher,
		logger:         logger,
		now:            time.Now,
	}
}

// List returns the caller's conversations, most recent first
func (s *ConversationService) List(ctx context.Context, actor shared.Actor) ([]ConversationResponse, error) {
	summaries, err := s.convRepo.FindForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationResponse, len(summaries))
	for i, sum := range summaries {
		out[i] = ToConversationResponse(sum.Conversation)
		out[i].UnreadCount = sum.UnreadCount
	}
	return out, nil
}

// Create opens a conversation with another user, optionally posting a
// first message
func (s *ConversationService) Create(ctx context.Context, actor shared.Actor, req CreateConversationRequest) (*ConversationResponse, error) {
	if req.ParticipantID == actor.UserID {
		return nil, shared.NewDomainError("INVALID_INPUT", "Cannot start a conversation with yourself")
	}
	if _, err := s.userRepo.FindByID(ctx, req.ParticipantID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Participant not found")
		}
		return nil, err
	}
	conv, err := messaging.NewConversation(actor.UserID, req.ParticipantID, req.Subject, req.ProductID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, conv, actor.UserID, req.InitialMessage); err != nil {
		return nil, err
	}
	resp := ToConversationResponse(conv)
	return &resp, nil
}

// Get returns a conversation the caller participates in
func (s *ConversationService) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (*ConversationResponse, error) {
	conv, err := s.participating(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resp := ToConversationResponse(conv)
	return &resp, nil
}

// CreateForProduct opens a conversation between the caller and the vendor
// of a listing. An existing conversation on that listing is reused and
// created is false.
func (s *ConversationService) CreateForProduct(ctx context.Context, actor shared.Actor, req ProductConversationRequest) (resp *ConversationResponse, created bool, err error) {
	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, shared.NewDomainError("NOT_FOUND", "Product not found")
		}
		return nil, false, err
	}

	existing, err := s.convRepo.FindByProductAndParticipants(ctx, product.ID, actor.UserID, product.VendorID)
	switch {
	case err == nil:
		if strings.TrimSpace(req.Message) != "" {
			if existing, _, err = s.send(ctx, actor, existing.ID, req.Message); err != nil {
				return nil, false, err
			}
		}
		r := ToConversationResponse(existing)
		return &r, false, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, false, err
	}

	conv, err := messaging.NewConversation(actor.UserID, product.VendorID, "Inquiry about "+product.Title, &product.ID, nil)
	if err != nil {
		return nil, false, err
	}
	if err := s.open(ctx, conv, actor.UserID, req.Message); err != nil {
		return nil, false, err
	}
	r := ToConversationResponse(conv)
	return &r, true, nil
}

// GetForProduct returns the caller's conversation about a listing
func (s *ConversationService) GetForProduct(ctx context.Context, actor shared.Actor, productID uuid.UUID) (*ConversationResponse, error) {
	conv, err := s.convRepo.FindByProductForUser(ctx, productID, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "No conversation found for this product")
		}
		return nil, err
	}
	resp := ToConversationResponse(conv)
	return &resp, nil
}

// ListMessages returns one page of a conversation, oldest first, and marks
// the messages addressed to the caller as read
func (s *ConversationService) ListMessages(ctx context.Context, actor shared.Actor, id uuid.UUID, q MessageListQuery) (*shared.Paginated[MessageResponse], error) {
	if _, err := s.participating(ctx, actor, id); err != nil {
		return nil, err
	}
	limit := q.limit()
	messages, total, err := s.messageRepo.FindByConversation(ctx, id, (q.page()-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if _, err := s.messageRepo.MarkRead(ctx, id, actor.UserID, s.now()); err != nil {
		s.logger.Warn("Failed to mark messages read",
			zap.String("conversation_id", id.String()), zap.Error(err))
	}

	items := make([]MessageResponse, len(messages))
	for i, m := range messages {
		items[i] = ToMessageResponse(m)
	}
	page := shared.NewPaginated(items, total, q.page(), limit)
	return &page, nil
}

// Send posts a message to the other participant
func (s *ConversationService) Send(ctx context.Context, actor shared.Actor, id uuid.UUID, req SendMessageRequest) (*MessageResponse, error) {
	_, msg, err := s.send(ctx, actor, id, req.Content)
	if err != nil {
		return nil, err
	}
	resp := ToMessageResponse(msg)
	return &resp, nil
}

// MarkRead flags every message addressed to the caller as read and
// returns how many changed
func (s *ConversationService) MarkRead(ctx context.Context, actor shared.Actor, id uuid.UUID) (*MarkReadResponse, error) {
	if _, err := s.participating(ctx, actor, id); err != nil {
		return nil, err
	}
	n, err := s.messageRepo.MarkRead(ctx, id, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	return &MarkReadResponse{Marked: n}, nil
}

func (s *ConversationService) send(ctx context.Context, actor shared.Actor, id uuid.UUID, content string) (*messaging.Conversation, *messaging.Message, error) {
	var (
		conv *messaging.Conversation
		msg  *messaging.Message
	)
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if conv, err = s.participating(ctx, actor, id); err != nil {
			return err
		}
		if msg, err = conv.Post(actor.UserID, content, messaging.MessageTypeText, s.now()); err != nil {
			return err
		}
		if err := s.messageRepo.Create(ctx, msg); err != nil {
			return err
		}
		return s.save(ctx, conv)
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("Message sent",
		zap.String("conversation_id", id.String()),
		zap.String("sender_id", actor.UserID.String()))
	return conv, msg, nil
}

// open stores a new conversation and its first message, if any
func (s *ConversationService) open(ctx context.Context, conv *messaging.Conversation, sender uuid.UUID, first string) error {
	return s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if strings.TrimSpace(first) != "" {
			msg, err := conv.Post(sender, first, messaging.MessageTypeText, s.now())
			if err != nil {
				return err
			}
			if err := s.convRepo.Save(ctx, conv); err != nil {
				return err
			}
			if err := s.messageRepo.Create(ctx, msg); err != nil {
				return err
			}
			return s.publish(ctx, conv)
		}
		return s.convRepo.Save(ctx, conv)
	})
}

func (s *ConversationService) save(ctx context.Context, conv *messaging.Conversation) error {
	if err := s.convRepo.Save(ctx, conv); err != nil {
		return err
	}
	return s.publish(ctx, conv)
}

func (s *ConversationService) publish(ctx context.Context, conv *messaging.Conversation) error {
	if events := conv.GetDomainEvents(); len(events) > 0 && s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			return err
		}
	}
	conv.ClearDomainEvents()
	return nil
}

// participating loads a conversation, hiding it from non-participants
func (s *ConversationService) participating(ctx context.Context, actor shared.Actor, id uuid.UUID) (*messaging.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actor.UserID) {
		return nil, shared.ErrNotFound
	}
	return conv, nil
}
