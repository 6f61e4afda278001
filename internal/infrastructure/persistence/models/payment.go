package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAddressModel is the persistence model for the PaymentAddress aggregate.
type PaymentAddressModel struct {
	AggregateModel
	OrderID               uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex"`
	OrderNumber           string                `gorm:"type:varchar(20);not null"`
	BuyerID               uuid.UUID             `gorm:"type:uuid;not null"`
	VendorID              uuid.UUID             `gorm:"type:uuid;not null"`
	UseEscrow             bool                  `gorm:"not null;default:true"`
	CryptoCurrency        shared.CryptoCurrency `gorm:"type:varchar(10);not null;index:idx_payment_address_currency_status,priority:1"`
	PaymentType           payment.PaymentType   `gorm:"type:varchar(20);not null"`
	Address               string                `gorm:"type:varchar(255);not null;uniqueIndex"`
	ExpectedAmount        decimal.Decimal       `gorm:"type:decimal(20,8);not null"`
	ReceivedAmount        decimal.Decimal       `gorm:"type:decimal(20,8);not null;default:0"`
	Status                payment.AddressStatus `gorm:"type:varchar(20);not null;index:idx_payment_address_currency_status,priority:2"`
	Confirmations         int                   `gorm:"not null;default:0"`
	RequiredConfirmations int                   `gorm:"not null"`
	BTCPayInvoiceID       *string               `gorm:"column:btcpay_invoice_id;type:varchar(100);uniqueIndex"`
	BTCPayCheckoutLink    string                `gorm:"column:btcpay_checkout_link;type:varchar(500)"`
	MoneroSubaddressIndex *uint32
	TransactionHash       string    `gorm:"type:varchar(128)"`
	ExpiresAt             time.Time `gorm:"not null;index"`
	ConfirmedAt           *time.Time
}

// TableName returns the table name for GORM
func (PaymentAddressModel) TableName() string {
	return "payment_addresses"
}

// ToDomain converts the persistence model to a domain PaymentAddress.
func (m *PaymentAddressModel) ToDomain() *payment.PaymentAddress {
	p := &payment.PaymentAddress{
		BaseAggregateRoot: m.ToAggregateRoot(),
		OrderRef: payment.OrderRef{
			OrderID:     m.OrderID,
			OrderNumber: m.OrderNumber,
			BuyerID:     m.BuyerID,
			VendorID:    m.VendorID,
			UseEscrow:   m.UseEscrow,
		},
		CryptoCurrency:        m.CryptoCurrency,
		PaymentType:           m.PaymentType,
		Address:               m.Address,
		ExpectedAmount:        m.ExpectedAmount,
		ReceivedAmount:        m.ReceivedAmount,
		Status:                m.Status,
		Confirmations:         m.Confirmations,
		RequiredConfirmations: m.RequiredConfirmations,
		BTCPayCheckoutLink:    m.BTCPayCheckoutLink,
		MoneroSubaddressIndex: m.MoneroSubaddressIndex,
		TransactionHash:       m.TransactionHash,
		ExpiresAt:             m.ExpiresAt,
		ConfirmedAt:           m.ConfirmedAt,
	}
	if m.BTCPayInvoiceID != nil {
		p.BTCPayInvoiceID = *m.BTCPayInvoiceID
	}
	return p
}

// PaymentAddressModelFromDomain creates a new persistence model from a domain PaymentAddress.
func PaymentAddressModelFromDomain(p *payment.PaymentAddress) *PaymentAddressModel {
	m := &PaymentAddressModel{
		OrderID:               p.OrderID,
		OrderNumber:           p.OrderNumber,
		BuyerID:               p.BuyerID,
		VendorID:              p.VendorID,
		UseEscrow:             p.UseEscrow,
		CryptoCurrency:        p.CryptoCurrency,
		PaymentType:           p.PaymentType,
		Address:               p.Address,
		ExpectedAmount:        p.ExpectedAmount,
		ReceivedAmount:        p.ReceivedAmount,
		Status:                p.Status,
		Confirmations:         p.Confirmations,
		RequiredConfirmations: p.RequiredConfirmations,
		BTCPayCheckoutLink:    p.BTCPayCheckoutLink,
		MoneroSubaddressIndex: p.MoneroSubaddressIndex,
		TransactionHash:       p.TransactionHash,
		ExpiresAt:             p.ExpiresAt,
		ConfirmedAt:           p.ConfirmedAt,
	}
	if p.BTCPayInvoiceID != "" {
		id := p.BTCPayInvoiceID
		m.BTCPayInvoiceID = &id
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// EscrowPaymentModel is the persistence model for the EscrowPayment aggregate.
type EscrowPaymentModel struct {
	AggregateModel
	PaymentAddressID   uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex"`
	OrderID            uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex"`
	OrderNumber        string               `gorm:"type:varchar(20);not null"`
	BuyerID            uuid.UUID            `gorm:"type:uuid;not null"`
	VendorID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	EscrowAmount       decimal.Decimal      `gorm:"type:decimal(20,8);not null"`
	EscrowFee          decimal.Decimal      `gorm:"type:decimal(20,8);not null;default:0"`
	Status             payment.EscrowStatus `gorm:"type:varchar(20);not null;index:idx_escrow_status_release,priority:1"`
	AutoReleaseEnabled bool                 `gorm:"not null;default:true"`
	AutoReleaseAt      *time.Time           `gorm:"index:idx_escrow_status_release,priority:2"`
	FundedAt           *time.Time
	ReleasedAt         *time.Time
	ReleasedBy         *uuid.UUID `gorm:"type:uuid"`
	DisputeReason      string     `gorm:"type:text"`
	AdminNotes         string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (EscrowPaymentModel) TableName() string {
	return "escrow_payments"
}

// ToDomain converts the persistence model to a domain EscrowPayment.
func (m *EscrowPaymentModel) ToDomain() *payment.EscrowPayment {
	return &payment.EscrowPayment{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		PaymentAddressID:   m.PaymentAddressID,
		OrderID:            m.OrderID,
		OrderNumber:        m.OrderNumber,
		BuyerID:            m.BuyerID,
		VendorID:           m.VendorID,
		Amount:             m.EscrowAmount,
		Fee:                m.EscrowFee,
		Status:             m.Status,
		AutoReleaseEnabled: m.AutoReleaseEnabled,
		AutoReleaseAt:      m.AutoReleaseAt,
		FundedAt:           m.FundedAt,
		ReleasedAt:         m.ReleasedAt,
		ReleasedBy:         m.ReleasedBy,
		DisputeReason:      m.DisputeReason,
		AdminNotes:         m.AdminNotes,
	}
}

// EscrowPaymentModelFromDomain creates a new persistence model from a domain EscrowPayment.
func EscrowPaymentModelFromDomain(e *payment.EscrowPayment) *EscrowPaymentModel {
	m := &EscrowPaymentModel{
		PaymentAddressID:   e.PaymentAddressID,
		OrderID:            e.OrderID,
		OrderNumber:        e.OrderNumber,
		BuyerID:            e.BuyerID,
		VendorID:           e.VendorID,
		EscrowAmount:       e.Amount,
		EscrowFee:          e.Fee,
		Status:             e.Status,
		AutoReleaseEnabled: e.AutoReleaseEnabled,
		AutoReleaseAt:      e.AutoReleaseAt,
		FundedAt:           e.FundedAt,
		ReleasedAt:         e.ReleasedAt,
		ReleasedBy:         e.ReleasedBy,
		DisputeReason:      e.DisputeReason,
		AdminNotes:         e.AdminNotes,
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	return m
}

// PaymentWebhookModel stores a received gateway notification.
type PaymentWebhookModel struct {
	ID               uuid.UUID             `gorm:"type:uuid;primaryKey"`
	PaymentAddressID *uuid.UUID            `gorm:"type:uuid;index"`
	WebhookType      payment.WebhookSource `gorm:"type:varchar(20);not null;uniqueIndex:idx_webhook_dedup,priority:1"`
	ExternalID       string                `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_dedup,priority:2"`
	EventType        string                `gorm:"type:varchar(100);not null;uniqueIndex:idx_webhook_dedup,priority:3"`
	RawData          []byte                `gorm:"type:jsonb"`
	Processed        bool                  `gorm:"not null;default:false"`
	CreatedAt        time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentWebhookModel) TableName() string {
	return "payment_webhooks"
}

// PaymentWebhookModelFromDomain creates a new persistence model from a domain PaymentWebhook.
func PaymentWebhookModelFromDomain(w *payment.PaymentWebhook) *PaymentWebhookModel {
	return &PaymentWebhookModel{
		ID:               w.ID,
		PaymentAddressID: w.PaymentAddressID,
		WebhookType:      w.Source,
		ExternalID:       w.ExternalID,
		EventType:        w.EventType,
		RawData:          w.RawData,
		Processed:        w.Processed,
		CreatedAt:        w.CreatedAt,
	}
}
