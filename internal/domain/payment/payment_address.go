package payment

import (
	"fmt"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType tells which backend produced an address
type PaymentType string

const (
	PaymentTypeWallet    PaymentType = "wallet"
	PaymentTypeBTCPay    PaymentType = "btcpay"
	PaymentTypeMoneroRPC PaymentType = "monero_rpc"
)

// AddressStatus is the payment state of an address
type AddressStatus string

const (
	AddressStatusPending  AddressStatus = "pending"
	AddressStatusPartial  AddressStatus = "partial"
	AddressStatusPaid     AddressStatus = "paid"
	AddressStatusOverpaid AddressStatus = "overpaid"
	AddressStatusExpired  AddressStatus = "expired"
	AddressStatusFailed   AddressStatus = "failed"
)

// IsSettled is true for paid and overpaid
func (s AddressStatus) IsSettled() bool {
	return s == AddressStatusPaid || s == AddressStatusOverpaid
}

// IsOpen is true while funds may still arrive
func (s AddressStatus) IsOpen() bool {
	return s == AddressStatusPending || s == AddressStatusPartial
}

// DefaultPaymentWindow is how long a buyer has to pay
const DefaultPaymentWindow = 2 * time.Hour

// OrderRef identifies the order a payment belongs to
type OrderRef struct {
	OrderID     uuid.UUID
	OrderNumber string
	BuyerID     uuid.UUID
	VendorID    uuid.UUID
	UseEscrow   bool
}

// PaymentAddress is the aggregate tracking one order's payment
type PaymentAddress struct {
	shared.BaseAggregateRoot
	OrderRef
	CryptoCurrency        shared.CryptoCurrency
	PaymentType           PaymentType
	Address               string
	ExpectedAmount        decimal.Decimal
	ReceivedAmount        decimal.Decimal
	Status                AddressStatus
	Confirmations         int
	RequiredConfirmations int
	BTCPayInvoiceID       string
	BTCPayCheckoutLink    string
	MoneroSubaddressIndex *uint32
	TransactionHash       string
	ExpiresAt             time.Time
	ConfirmedAt           *time.Time
}

// NewPaymentAddress opens a payment window for order
func NewPaymentAddress(order OrderRef, currency shared.CryptoCurrency, paymentType PaymentType, address string, amount decimal.Decimal, now time.Time, window time.Duration) (*PaymentAddress, error) {
	if address == "" {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Payment address is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Expected amount must be greater than 0")
	}
	if window <= 0 {
		window = DefaultPaymentWindow
	}
	return &PaymentAddress{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(),
		OrderRef:              order,
		CryptoCurrency:        currency,
		PaymentType:           paymentType,
		Address:               address,
		ExpectedAmount:        amount,
		ReceivedAmount:        decimal.Zero,
		Status:                AddressStatusPending,
		RequiredConfirmations: RequiredConfirmations(currency),
		ExpiresAt:             now.Add(window),
	}, nil
}

// SetInvoice records the BTCPay invoice behind this address
func (p *PaymentAddress) SetInvoice(invoiceID, checkoutLink string) {
	p.BTCPayInvoiceID = invoiceID
	p.BTCPayCheckoutLink = checkoutLink
}

// SetSubaddressIndex records the Monero subaddress index
func (p *PaymentAddress) SetSubaddressIndex(index uint32) {
	p.MoneroSubaddressIndex = &index
}

// MarkSettled applies a gateway "settled" notification. It returns false if the
// address had already been settled.
func (p *PaymentAddress) MarkSettled(txHash string, now time.Time) (bool, error) {
	if p.Status.IsSettled() {
		return false, nil
	}
	if p.Status == AddressStatusFailed {
		return false, shared.NewDomainError("INVALID_STATE", "Payment has failed and cannot be settled")
	}
	if p.ReceivedAmount.LessThan(p.ExpectedAmount) {
		p.ReceivedAmount = p.ExpectedAmount
	}
	if p.Confirmations < p.RequiredConfirmations {
		p.Confirmations = p.RequiredConfirmations
	}
	if txHash != "" {
		p.TransactionHash = txHash
	}
	p.settle(AddressStatusPaid, now)
	return true, nil
}

// RecordTransfer applies an observed on-chain amount. received is the
// cumulative total seen by the wallet for the address, so a lower figure
// than the one already recorded never reduces it. It returns true when the
// transfer completes the payment.
func (p *PaymentAddress) RecordTransfer(received decimal.Decimal, confirmations int, txHash string, now time.Time) (bool, error) {
	if p.Status.IsSettled() {
		return false, nil
	}
	if !p.Status.IsOpen() {
		return false, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Payment is %s", p.Status))
	}
	if received.IsNegative() {
		return false, shared.NewDomainError("INVALID_AMOUNT", "Received amount cannot be negative")
	}

	if received.LessThan(p.ReceivedAmount) {
		received = p.ReceivedAmount
	}
	p.ReceivedAmount = received
	p.Confirmations = confirmations
	if txHash != "" {
		p.TransactionHash = txHash
	}

	switch {
	case received.IsZero():
		p.touch()
		return false, nil
	case received.LessThan(p.ExpectedAmount):
		p.Status = AddressStatusPartial
		p.touch()
		return false, nil
	case confirmations < p.RequiredConfirmations:
		p.touch()
		return false, nil
	case received.GreaterThan(p.ExpectedAmount):
		p.settle(AddressStatusOverpaid, now)
	default:
		p.settle(AddressStatusPaid, now)
	}
	return true, nil
}

func (p *PaymentAddress) settle(status AddressStatus, now time.Time) {
	p.Status = status
	p.ConfirmedAt = &now
	p.touch()
	p.AddDomainEvent(NewPaymentConfirmedEvent(p))
}

// IsOverdue reports whether an open address has passed its deadline
func (p *PaymentAddress) IsOverdue(now time.Time) bool {
	return p.Status == AddressStatusPending && now.After(p.ExpiresAt)
}

// Expire closes an address nobody paid in time
func (p *PaymentAddress) Expire() error {
	if !p.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot expire payment in %s status", p.Status))
	}
	p.Status = AddressStatusExpired
	p.touch()
	return nil
}

// Fail marks the address unusable after a gateway rejection
func (p *PaymentAddress) Fail() error {
	if p.Status.IsSettled() {
		return shared.NewDomainError("INVALID_STATE", "Cannot fail a settled payment")
	}
	p.Status = AddressStatusFailed
	p.touch()
	return nil
}

func (p *PaymentAddress) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}
