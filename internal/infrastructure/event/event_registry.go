package event

import (
	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/cryptonexus/backend/internal/domain/vendor"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Trade domain - Order events
	serializer.Register(trade.EventTypeOrderCreated, &trade.OrderCreatedEvent{})
	serializer.Register(trade.EventTypeOrderDelivered, &trade.OrderDeliveredEvent{})
	serializer.Register(trade.EventTypeOrderConfirmed, &trade.OrderConfirmedEvent{})
	serializer.Register(trade.EventTypeOrderDisputed, &trade.OrderDisputedEvent{})
	serializer.Register(trade.EventTypeOrderDisputeResolved, &trade.OrderDisputeResolvedEvent{})
	serializer.Register(trade.EventTypeOrderCancelled, &trade.OrderClosedEvent{})
	serializer.Register(trade.EventTypeOrderExpired, &trade.OrderClosedEvent{})

	// Payment domain events
	serializer.Register(payment.EventTypePaymentConfirmed, &payment.PaymentConfirmedEvent{})

	// Vendor domain events
	serializer.Register(vendor.EventTypeVendorApplicationApproved, &vendor.VendorApplicationApprovedEvent{})
	serializer.Register(vendor.EventTypeVendorApplicationRejected, &vendor.VendorApplicationRejectedEvent{})

	// Messaging domain events
	serializer.Register(messaging.EventTypeMessageSent, &messaging.MessageSentEvent{})
}
