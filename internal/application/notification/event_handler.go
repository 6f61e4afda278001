package notification

import (
	"context"
	"fmt"

	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/cryptonexus/backend/internal/domain/notification"
	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/cryptonexus/backend/internal/domain/vendor"
	"go.uber.org/zap"
)

// EventHandler turns marketplace events into notifications for the users
// they concern
type EventHandler struct {
	notifications *NotificationService
	logger        *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(notifications *NotificationService, logger *zap.Logger) *EventHandler {
	return &EventHandler{notifications: notifications, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *EventHandler) EventTypes() []string {
	return []string{
		trade.EventTypeOrderCreated,
		payment.EventTypePaymentConfirmed,
		trade.EventTypeOrderDelivered,
		trade.EventTypeOrderDisputed,
		vendor.EventTypeVendorApplicationApproved,
		vendor.EventTypeVendorApplicationRejected,
		messaging.EventTypeMessageSent,
	}
}

// Handle processes one of the subscribed events
func (h *EventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	n := h.notifications
	switch e := event.(type) {
	case *trade.OrderCreatedEvent:
		return n.Notify(ctx, e.VendorID, notification.KindOrderCreated,
			"New order",
			fmt.Sprintf("Order %s for %s was placed", e.OrderNumber, e.ProductTitle),
			e.OrderNumber)

	case *payment.PaymentConfirmedEvent:
		body := fmt.Sprintf("Payment of %s %s for order %s was confirmed", e.ReceivedAmount, e.CryptoCurrency, e.OrderNumber)
		if err := n.Notify(ctx, e.BuyerID, notification.KindPaymentConfirmed, "Payment confirmed", body, e.OrderNumber); err != nil {
			return err
		}
		return n.Notify(ctx, e.VendorID, notification.KindPaymentConfirmed, "Order paid", body, e.OrderNumber)

	case *trade.OrderDeliveredEvent:
		return n.Notify(ctx, e.BuyerID, notification.KindOrderDelivered,
			"Order delivered",
			fmt.Sprintf("Order %s was delivered. Please confirm receipt.", e.OrderNumber),
			e.OrderNumber)

	case *trade.OrderDisputedEvent:
		return n.Notify(ctx, e.VendorID, notification.KindOrderDisputed,
			"Order disputed",
			fmt.Sprintf("The buyer opened a dispute on order %s: %s", e.OrderNumber, e.Reason),
			e.OrderNumber)

	case *vendor.VendorApplicationApprovedEvent:
		return n.Notify(ctx, e.UserID, notification.KindVendorApproved,
			"Vendor application approved",
			fmt.Sprintf("You can now sell as %s", e.VendorUsername),
			e.ApplicationID.String())

	case *vendor.VendorApplicationRejectedEvent:
		return n.Notify(ctx, e.UserID, notification.KindVendorRejected,
			"Vendor application rejected",
			e.AdminNotes,
			e.ApplicationID.String())

	case *messaging.MessageSentEvent:
		return n.Notify(ctx, e.RecipientID, notification.KindMessageReceived,
			"New message", e.Preview, e.ConversationID.String())
	}

	h.logger.Warn("Unhandled event type", zap.String("event_type", event.EventType()))
	return fmt.Errorf("unexpected event type: %s", event.EventType())
}

var _ shared.EventHandler = (*EventHandler)(nil)
