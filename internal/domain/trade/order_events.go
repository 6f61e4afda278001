package trade

import (
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated         = "OrderCreated"
	EventTypeOrderDelivered       = "OrderDelivered"
	EventTypeOrderConfirmed       = "OrderConfirmed"
	EventTypeOrderDisputed        = "OrderDisputed"
	EventTypeOrderDisputeResolved = "OrderDisputeResolved"
	EventTypeOrderCancelled       = "OrderCancelled"
	EventTypeOrderExpired         = "OrderExpired"
)

// OrderCreatedEvent is raised when a buyer places an order
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID             `json:"order_id"`
	OrderNumber    string                `json:"order_number"`
	BuyerID        uuid.UUID             `json:"buyer_id"`
	VendorID       uuid.UUID             `json:"vendor_id"`
	ProductID      uuid.UUID             `json:"product_id"`
	ProductTitle   string                `json:"product_title"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	CryptoCurrency shared.CryptoCurrency `json:"crypto_currency"`
	UseEscrow      bool                  `json:"use_escrow"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		VendorID:        o.VendorID,
		ProductID:       o.ProductID,
		ProductTitle:    o.ProductTitle,
		TotalAmount:     o.TotalAmount,
		CryptoCurrency:  o.CryptoCurrency,
		UseEscrow:       o.UseEscrow,
	}
}

// OrderDeliveredEvent is raised when the vendor delivers
type OrderDeliveredEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
}

// NewOrderDeliveredEvent creates a new OrderDeliveredEvent
func NewOrderDeliveredEvent(o *Order) *OrderDeliveredEvent {
	return &OrderDeliveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDelivered, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		VendorID:        o.VendorID,
	}
}

// OrderConfirmedEvent is raised when the buyer accepts delivery.
// Escrowed funds are released in response.
type OrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	UseEscrow   bool      `json:"use_escrow"`
}

// NewOrderConfirmedEvent creates a new OrderConfirmedEvent
func NewOrderConfirmedEvent(o *Order) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderConfirmed, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		VendorID:        o.VendorID,
		UseEscrow:       o.UseEscrow,
	}
}

// OrderDisputedEvent is raised when the buyer opens a dispute
type OrderDisputedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	Reason      string    `json:"reason"`
}

// NewOrderDisputedEvent creates a new OrderDisputedEvent
func NewOrderDisputedEvent(o *Order) *OrderDisputedEvent {
	return &OrderDisputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDisputed, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		VendorID:        o.VendorID,
		Reason:          o.Dispute.Reason,
	}
}

// OrderDisputeResolvedEvent carries the admin ruling on a dispute
type OrderDisputeResolvedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	VendorID    uuid.UUID         `json:"vendor_id"`
	Resolution  DisputeResolution `json:"resolution"`
	ResolvedBy  uuid.UUID         `json:"resolved_by"`
}

// NewOrderDisputeResolvedEvent creates a new OrderDisputeResolvedEvent
func NewOrderDisputeResolvedEvent(o *Order) *OrderDisputeResolvedEvent {
	return &OrderDisputeResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDisputeResolved, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		VendorID:        o.VendorID,
		Resolution:      o.Dispute.Resolution,
		ResolvedBy:      *o.Dispute.ResolvedBy,
	}
}

// OrderClosedEvent is raised when an unpaid order is cancelled by the buyer
// or expires. Its payment address and escrow are closed in response, so a
// late transfer no longer funds anything.
type OrderClosedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	BuyerID     uuid.UUID   `json:"buyer_id"`
	VendorID    uuid.UUID   `json:"vendor_id"`
	Status      OrderStatus `json:"status"`
}

func newOrderClosedEvent(eventType string, o *Order) *OrderClosedEvent {
	return &OrderClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		VendorID:        o.VendorID,
		Status:          o.Status,
	}
}

// NewOrderCancelledEvent creates the OrderCancelled flavour of OrderClosedEvent
func NewOrderCancelledEvent(o *Order) *OrderClosedEvent {
	return newOrderClosedEvent(EventTypeOrderCancelled, o)
}

// NewOrderExpiredEvent creates the OrderExpired flavour of OrderClosedEvent
func NewOrderExpiredEvent(o *Order) *OrderClosedEvent {
	return newOrderClosedEvent(EventTypeOrderExpired, o)
}
