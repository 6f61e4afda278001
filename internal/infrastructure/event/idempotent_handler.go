package event

import (
	"context"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// defaultIdempotencyTTL covers the outbox retry schedule with room to spare
const defaultIdempotencyTTL = 24 * time.Hour

// IdempotentHandler runs a handler at most once per event id. The key is
// claimed before the handler runs and released when it fails, so outbox
// retries reach the handler again while redeliveries of a success do not.
// A payment confirmation delivered twice must not mark an order paid twice.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyTTL sets how long a processed event id is remembered
func WithIdempotencyTTL(ttl time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// NewIdempotentHandler wraps handler
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{handler: handler, store: store, ttl: defaultIdempotencyTTL, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes implements shared.EventHandler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle implements shared.EventHandler. A store outage does not drop the
// event: it is handled without the duplicate check.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	eventID := event.EventID().String()
	log := h.logger.With(zap.String("event_id", eventID), zap.String("event_type", event.EventType()))

	claimed, err := h.store.MarkProcessed(ctx, eventID, h.ttl)
	switch {
	case err != nil:
		log.Warn("Idempotency store unavailable, handling without duplicate check", zap.Error(err))
	case !claimed:
		log.Debug("Duplicate event skipped")
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		if relErr := h.store.Release(ctx, eventID); relErr != nil {
			log.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
		return err
	}
	return nil
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
