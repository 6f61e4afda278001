package payment

import (
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePaymentAddress = "PaymentAddress"

// EventTypePaymentConfirmed is raised when an order's payment settles
const EventTypePaymentConfirmed = "PaymentConfirmed"

// PaymentConfirmedEvent moves the order to paid
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	PaymentAddressID uuid.UUID             `json:"payment_address_id"`
	OrderID          uuid.UUID             `json:"order_id"`
	OrderNumber      string                `json:"order_number"`
	BuyerID          uuid.UUID             `json:"buyer_id"`
	VendorID         uuid.UUID             `json:"vendor_id"`
	CryptoCurrency   shared.CryptoCurrency `json:"crypto_currency"`
	ReceivedAmount   decimal.Decimal       `json:"received_amount"`
	TransactionHash  string                `json:"transaction_hash"`
	UseEscrow        bool                  `json:"use_escrow"`
}

// NewPaymentConfirmedEvent creates a new PaymentConfirmedEvent
func NewPaymentConfirmedEvent(p *PaymentAddress) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentConfirmed, AggregateTypePaymentAddress, p.ID),
		PaymentAddressID: p.ID,
		OrderID:          p.OrderID,
		OrderNumber:      p.OrderNumber,
		BuyerID:          p.BuyerID,
		VendorID:         p.VendorID,
		CryptoCurrency:   p.CryptoCurrency,
		ReceivedAmount:   p.ReceivedAmount,
		TransactionHash:  p.TransactionHash,
		UseEscrow:        p.UseEscrow,
	}
}
