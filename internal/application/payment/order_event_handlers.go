package payment

import (
	"context"
	"fmt"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"go.uber.org/zap"
)

// OrderConfirmedHandler releases the escrow of a confirmed order
type OrderConfirmedHandler struct {
	payments *PaymentService
	logger   *zap.Logger
}

// NewOrderConfirmedHandler creates a new OrderConfirmedHandler
func NewOrderConfirmedHandler(payments *PaymentService, logger *zap.Logger) *OrderConfirmedHandler {
	return &OrderConfirmedHandler{payments: payments, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderConfirmedHandler) EventTypes() []string {
	return []string{trade.EventTypeOrderConfirmed}
}

// Handle processes an OrderConfirmedEvent
func (h *OrderConfirmedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	confirmed, ok := event.(*trade.OrderConfirmedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeOrderConfirmed, event.EventType())
	}
	if !confirmed.UseEscrow {
		return nil
	}
	h.logger.Info("releasing escrow of confirmed order", zap.String("order_id", confirmed.OrderNumber))
	return h.payments.ReleaseForOrder(ctx, confirmed.OrderID)
}

// OrderDisputedHandler freezes the escrow of a disputed order
type OrderDisputedHandler struct {
	payments *PaymentService
	logger   *zap.Logger
}

// NewOrderDisputedHandler creates a new OrderDisputedHandler
func NewOrderDisputedHandler(payments *PaymentService, logger *zap.Logger) *OrderDisputedHandler {
	return &OrderDisputedHandler{payments: payments, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderDisputedHandler) EventTypes() []string {
	return []string{trade.EventTypeOrderDisputed}
}

// Handle processes an OrderDisputedEvent
func (h *OrderDisputedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	disputed, ok := event.(*trade.OrderDisputedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeOrderDisputed, event.EventType())
	}
	h.logger.Info("freezing escrow of disputed order", zap.String("order_id", disputed.OrderNumber))
	return h.payments.DisputeForOrder(ctx, disputed.OrderID, disputed.Reason)
}

// OrderDisputeResolvedHandler settles the escrow according to the ruling
type OrderDisputeResolvedHandler struct {
	payments *PaymentService
	logger   *zap.Logger
}

// NewOrderDisputeResolvedHandler creates a new OrderDisputeResolvedHandler
func NewOrderDisputeResolvedHandler(payments *PaymentService, logger *zap.Logger) *OrderDisputeResolvedHandler {
	return &OrderDisputeResolvedHandler{payments: payments, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderDisputeResolvedHandler) EventTypes() []string {
	return []string{trade.EventTypeOrderDisputeResolved}
}

// Handle processes an OrderDisputeResolvedEvent
func (h *OrderDisputeResolvedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	resolved, ok := event.(*trade.OrderDisputeResolvedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeOrderDisputeResolved, event.EventType())
	}
	h.logger.Info("settling escrow after dispute ruling",
		zap.String("order_id", resolved.OrderNumber),
		zap.String("resolution", string(resolved.Resolution)))
	return h.payments.ResolveForOrder(ctx, resolved.OrderID, resolved.Resolution, resolved.ResolvedBy)
}

// OrderClosedHandler closes the payment address and escrow of an order that
// was cancelled or expired unpaid
type OrderClosedHandler struct {
	payments *PaymentService
	logger   *zap.Logger
}

// NewOrderClosedHandler creates a new OrderClosedHandler
func NewOrderClosedHandler(payments *PaymentService, logger *zap.Logger) *OrderClosedHandler {
	return &OrderClosedHandler{payments: payments, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderClosedHandler) EventTypes() []string {
	return []string{trade.EventTypeOrderCancelled, trade.EventTypeOrderExpired}
}

// Handle processes an OrderClosedEvent
func (h *OrderClosedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	closed, ok := event.(*trade.OrderClosedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected OrderClosedEvent, got %s", event.EventType())
	}
	h.logger.Info("closing payment of ended order",
		zap.String("order_id", closed.OrderNumber),
		zap.String("status", string(closed.Status)))
	return h.payments.CloseForOrder(ctx, closed.OrderID)
}

var (
	_ shared.EventHandler = (*OrderClosedHandler)(nil)
	_ shared.EventHandler = (*OrderConfirmedHandler)(nil)
	_ shared.EventHandler = (*OrderDisputedHandler)(nil)
	_ shared.EventHandler = (*OrderDisputeResolvedHandler)(nil)
)
