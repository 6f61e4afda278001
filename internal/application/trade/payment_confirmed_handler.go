package trade

import (
	"context"
	"fmt"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PaymentConfirmedHandler marks the order paid once its payment settles
type PaymentConfirmedHandler struct {
	orders *OrderService
	logger *zap.Logger
}

// NewPaymentConfirmedHandler creates a new PaymentConfirmedHandler
func NewPaymentConfirmedHandler(orders *OrderService, logger *zap.Logger) *PaymentConfirmedHandler {
	return &PaymentConfirmedHandler{orders: orders, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *PaymentConfirmedHandler) EventTypes() []string {
	return []string{payment.EventTypePaymentConfirmed}
}

// Handle processes a PaymentConfirmedEvent
func (h *PaymentConfirmedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	confirmed, ok := event.(*payment.PaymentConfirmedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			payment.EventTypePaymentConfirmed, event.EventType())
	}

	h.logger.Info("payment confirmed, marking order paid",
		zap.String("order_id", confirmed.OrderNumber),
		zap.String("tx_hash", confirmed.TransactionHash),
	)
	_, err := h.orders.ConfirmPaymentSuccess(ctx, confirmed.OrderNumber)
	return err
}

var _ shared.EventHandler = (*PaymentConfirmedHandler)(nil)
