package event

import (
	"context"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// TransactionalPublisher writes domain events to the outbox table. When ctx
// carries a unit-of-work transaction the rows commit or roll back with the
// aggregate changes.
type TransactionalPublisher struct {
	db         *gorm.DB
	serializer *EventSerializer
}

// NewTransactionalPublisher creates a new TransactionalPublisher
func NewTransactionalPublisher(db *gorm.DB, serializer *EventSerializer) *TransactionalPublisher {
	return &TransactionalPublisher{db: db, serializer: serializer}
}

// Publish serializes events into pending outbox entries.
func (p *TransactionalPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, ev := range events {
		payload, err := p.serializer.Serialize(ev)
		if err != nil {
			return err
		}
		entries = append(entries, shared.NewOutboxEntry(ev, payload))
	}
	return NewGormOutboxRepository(persistence.Conn(ctx, p.db)).Save(ctx, entries...)
}

var _ shared.EventPublisher = (*TransactionalPublisher)(nil)
