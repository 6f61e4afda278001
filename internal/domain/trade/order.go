package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusDisputed       OrderStatus = "disputed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
	OrderStatusExpired        OrderStatus = "expired"
)

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusPaid:           {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDelivered:      {OrderStatusConfirmed, OrderStatusDisputed},
	OrderStatusDisputed:       {OrderStatusRefunded, OrderStatusConfirmed},
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPaid, OrderStatusDelivered, OrderStatusConfirmed,
		OrderStatusDisputed, OrderStatusCancelled, OrderStatusRefunded, OrderStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo checks the order state machine
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsPaidOrLater is true once payment has been confirmed
func (s OrderStatus) IsPaidOrLater() bool {
	switch s {
	case OrderStatusPaid, OrderStatusDelivered, OrderStatusConfirmed, OrderStatusDisputed, OrderStatusRefunded:
		return true
	}
	return false
}

// AcceptsPayment is true while a settled payment can still be applied to
// the order
func (s OrderStatus) AcceptsPayment() bool {
	return s == OrderStatusPendingPayment || s.IsPaidOrLater()
}

// PaymentStatus mirrors the payment state on the order
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusExpired PaymentStatus = "expired"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// DisputeResolution is the admin's ruling on a dispute
type DisputeResolution string

const (
	ResolutionBuyerWins     DisputeResolution = "buyer_wins"
	ResolutionVendorWins    DisputeResolution = "vendor_wins"
	ResolutionPartialRefund DisputeResolution = "partial_refund"
)

// IsValid reports whether r is a known resolution
func (r DisputeResolution) IsValid() bool {
	switch r {
	case ResolutionBuyerWins, ResolutionVendorWins, ResolutionPartialRefund:
		return true
	}
	return false
}

// DefaultDisputeWindow is how long after delivery a buyer may dispute
const DefaultDisputeWindow = 48 * time.Hour

// Dispute is the one dispute an order may carry
type Dispute struct {
	ID              uuid.UUID
	Reason          string
	Evidence        string
	OpenedBy        uuid.UUID
	OpenedAt        time.Time
	Resolution      DisputeResolution
	ResolutionNotes string
	ResolvedBy      *uuid.UUID
	ResolvedAt      *time.Time
}

// IsResolved reports whether an admin has ruled on the dispute
func (d *Dispute) IsResolved() bool {
	return d.ResolvedAt != nil
}

// Order is the aggregate root for a single-product purchase
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber        string
	BuyerID            uuid.UUID
	VendorID           uuid.UUID
	ProductID          uuid.UUID
	ProductTitle       string
	Quantity           int
	UnitPrice          decimal.Decimal
	TotalAmount        decimal.Decimal
	CryptoCurrency     shared.CryptoCurrency
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	UseEscrow          bool
	PaymentAddress     string
	PaymentExpiresAt   *time.Time
	PaymentConfirmedAt *time.Time
	DeliveredAt        *time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	ProductCredentials map[string]string
	BuyerNotes         string
	VendorNotes        string
	Dispute            *Dispute
}

// ProductSnapshot is the part of a product copied onto an order
type ProductSnapshot struct {
	ProductID uuid.UUID
	VendorID  uuid.UUID
	Title     string
	UnitPrice decimal.Decimal
}

// NewOrderNumber returns a business key of the form ORD-XXXXXXXX
func NewOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewOrder creates an order awaiting payment
func NewOrder(buyerID uuid.UUID, product ProductSnapshot, quantity int, currency shared.CryptoCurrency, useEscrow bool, buyerNotes string) (*Order, error) {
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	if buyerID == product.VendorID {
		return nil, shared.NewDomainError("INVALID_INPUT", "You cannot buy your own product")
	}
	if !product.UnitPrice.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Product price must be greater than 0")
	}

	o := &Order{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		OrderNumber:        NewOrderNumber(),
		BuyerID:            buyerID,
		VendorID:           product.VendorID,
		ProductID:          product.ProductID,
		ProductTitle:       product.Title,
		Quantity:           quantity,
		UnitPrice:          product.UnitPrice,
		TotalAmount:        product.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		CryptoCurrency:     currency,
		Status:             OrderStatusPendingPayment,
		PaymentStatus:      PaymentStatusPending,
		UseEscrow:          useEscrow,
		ProductCredentials: map[string]string{},
		BuyerNotes:         buyerNotes,
	}
	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

// CanView is the visibility rule shared by list and detail queries
func (o *Order) CanView(userID uuid.UUID, isAdmin bool) bool {
	return isAdmin || o.BuyerID == userID || o.VendorID == userID
}

// HasDispute reports whether a dispute was ever opened
func (o *Order) HasDispute() bool {
	return o.Dispute != nil
}

// AttachPayment records where and until when the buyer must pay
func (o *Order) AttachPayment(address string, expiresAt time.Time) {
	o.PaymentAddress = address
	o.PaymentExpiresAt = &expiresAt
	o.touch()
}

// Cancel aborts an unpaid order. The caller releases the stock reservation.
func (o *Order) Cancel(now time.Time) error {
	if o.Status != OrderStatusPendingPayment {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel order in current status")
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.touch()
	o.AddDomainEvent(NewOrderCancelledEvent(o))
	return nil
}

// IsPaymentOverdue reports whether an unpaid order has passed its deadline
func (o *Order) IsPaymentOverdue(now time.Time) bool {
	return o.Status == OrderStatusPendingPayment && o.PaymentExpiresAt != nil && now.After(*o.PaymentExpiresAt)
}

// Expire closes an unpaid order whose payment window has passed
func (o *Order) Expire(now time.Time) error {
	if !o.IsPaymentOverdue(now) {
		return shared.NewDomainError("INVALID_STATE", "Order payment window has not expired")
	}
	o.Status = OrderStatusExpired
	o.PaymentStatus = PaymentStatusExpired
	o.touch()
	o.AddDomainEvent(NewOrderExpiredEvent(o))
	return nil
}

// MarkPaid records a confirmed payment and stores the delivered credentials.
// It returns false without error when the order was already paid.
func (o *Order) MarkPaid(now time.Time, credentials string, deliveryMethod string, escrowStatus string) (bool, error) {
	if o.PaymentStatus == PaymentStatusPaid || o.Status.IsPaidOrLater() {
		return false, nil
	}
	if !o.Status.CanTransitionTo(OrderStatusPaid) {
		return false, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark order paid in %s status", o.Status))
	}
	o.Status = OrderStatusPaid
	o.PaymentStatus = PaymentStatusPaid
	o.PaymentConfirmedAt = &now
	if o.ProductCredentials == nil {
		o.ProductCredentials = map[string]string{}
	}
	o.ProductCredentials["credentials"] = credentials
	o.ProductCredentials["delivered_at"] = now.UTC().Format(time.RFC3339)
	o.ProductCredentials["delivery_method"] = deliveryMethod
	if escrowStatus != "" {
		o.ProductCredentials["escrow_status"] = escrowStatus
	}
	o.touch()
	return true, nil
}

// Deliver is performed by the vendor once the order is paid
func (o *Order) Deliver(now time.Time, credentials map[string]string, notes string) error {
	if o.Status != OrderStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Order must be paid before delivery")
	}
	if o.ProductCredentials == nil {
		o.ProductCredentials = map[string]string{}
	}
	for k, v := range credentials {
		o.ProductCredentials[k] = v
	}
	o.VendorNotes = notes
	o.Status = OrderStatusDelivered
	o.DeliveredAt = &now
	o.touch()
	o.AddDomainEvent(NewOrderDeliveredEvent(o))
	return nil
}

// Confirm is the buyer's acceptance of a delivered order
func (o *Order) Confirm(now time.Time) error {
	if o.Status != OrderStatusDelivered {
		return shared.NewDomainError("INVALID_STATE", "Order must be delivered before confirmation")
	}
	o.Status = OrderStatusConfirmed
	o.ConfirmedAt = &now
	o.touch()
	o.AddDomainEvent(NewOrderConfirmedEvent(o))
	return nil
}

// OpenDispute lets the buyer contest a paid or delivered order within window
// of delivery
func (o *Order) OpenDispute(by uuid.UUID, reason, evidence string, now time.Time, window time.Duration) error {
	if o.HasDispute() {
		return shared.NewDomainError("ALREADY_EXISTS", "Dispute already opened for this order")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Dispute reason is required")
	}
	if o.Status != OrderStatusPaid && o.Status != OrderStatusDelivered {
		return shared.NewDomainError("INVALID_STATE", "Order cannot be disputed in current status")
	}
	if o.DeliveredAt != nil && now.After(o.DeliveredAt.Add(window)) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Dispute period has expired (%d hours from delivery)", int(window.Hours())))
	}

	o.Dispute = &Dispute{
		ID:       uuid.New(),
		Reason:   strings.TrimSpace(reason),
		Evidence: evidence,
		OpenedBy: by,
		OpenedAt: now,
	}
	o.Status = OrderStatusDisputed
	o.touch()
	o.AddDomainEvent(NewOrderDisputedEvent(o))
	return nil
}

// ResolveDispute applies an admin ruling. A partial refund is recorded
// without changing the order status.
func (o *Order) ResolveDispute(by uuid.UUID, resolution DisputeResolution, notes string, now time.Time) error {
	if o.Dispute == nil {
		return shared.NewDomainError("NOT_FOUND", "No dispute found for this order")
	}
	if !resolution.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Invalid resolution")
	}
	if o.Dispute.IsResolved() {
		return shared.NewDomainError("INVALID_STATE", "Dispute has already been resolved")
	}

	switch resolution {
	case ResolutionBuyerWins:
		o.Status = OrderStatusRefunded
	case ResolutionVendorWins:
		o.Status = OrderStatusConfirmed
		o.ConfirmedAt = &now
	}

	o.Dispute.Resolution = resolution
	o.Dispute.ResolutionNotes = notes
	o.Dispute.ResolvedBy = &by
	o.Dispute.ResolvedAt = &now
	o.touch()
	o.AddDomainEvent(NewOrderDisputeResolvedEvent(o))
	return nil
}

// CanAccessCredentials checks who may read the delivered credentials
func (o *Order) CanAccessCredentials(userID uuid.UUID) error {
	if o.BuyerID != userID && o.VendorID != userID {
		return shared.NewDomainError("FORBIDDEN", "You do not have access to these credentials")
	}
	if !o.Status.IsPaidOrLater() {
		return shared.NewDomainError("INVALID_STATE", "Order must be paid to access credentials")
	}
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
}
