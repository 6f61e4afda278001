package models

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	OrderNumber        string                `gorm:"type:varchar(20);not null;uniqueIndex"`
	BuyerID            uuid.UUID             `gorm:"type:uuid;not null;index"`
	VendorID           uuid.UUID             `gorm:"type:uuid;not null;index"`
	ProductID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	ProductTitle       string                `gorm:"type:varchar(200);not null"`
	Quantity           int                   `gorm:"not null"`
	UnitPrice          decimal.Decimal       `gorm:"type:decimal(20,8);not null"`
	TotalAmount        decimal.Decimal       `gorm:"type:decimal(20,8);not null"`
	CryptoCurrency     shared.CryptoCurrency `gorm:"type:varchar(10);not null"`
	Status             trade.OrderStatus     `gorm:"type:varchar(30);not null;index"`
	PaymentStatus      trade.PaymentStatus   `gorm:"type:varchar(20);not null"`
	UseEscrow          bool                  `gorm:"not null;default:true"`
	PaymentAddress     string                `gorm:"type:varchar(255);index"`
	PaymentExpiresAt   *time.Time            `gorm:"index"`
	PaymentConfirmedAt *time.Time
	DeliveredAt        *time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	ProductCredentials string        `gorm:"type:jsonb"`
	BuyerNotes         string        `gorm:"type:text"`
	VendorNotes        string        `gorm:"type:text"`
	Dispute            *DisputeModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order aggregate.
func (m *OrderModel) ToDomain() *trade.Order {
	o := &trade.Order{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		OrderNumber:        m.OrderNumber,
		BuyerID:            m.BuyerID,
		VendorID:           m.VendorID,
		ProductID:          m.ProductID,
		ProductTitle:       m.ProductTitle,
		Quantity:           m.Quantity,
		UnitPrice:          m.UnitPrice,
		TotalAmount:        m.TotalAmount,
		CryptoCurrency:     m.CryptoCurrency,
		Status:             m.Status,
		PaymentStatus:      m.PaymentStatus,
		UseEscrow:          m.UseEscrow,
		PaymentAddress:     m.PaymentAddress,
		PaymentExpiresAt:   m.PaymentExpiresAt,
		PaymentConfirmedAt: m.PaymentConfirmedAt,
		DeliveredAt:        m.DeliveredAt,
		ConfirmedAt:        m.ConfirmedAt,
		CancelledAt:        m.CancelledAt,
		ProductCredentials: decodeMap(m.ProductCredentials),
		BuyerNotes:         m.BuyerNotes,
		VendorNotes:        m.VendorNotes,
	}
	if m.Dispute != nil {
		o.Dispute = m.Dispute.ToDomain()
	}
	return o
}

// FromDomain populates the persistence model from a domain Order aggregate.
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.BuyerID = o.BuyerID
	m.VendorID = o.VendorID
	m.ProductID = o.ProductID
	m.ProductTitle = o.ProductTitle
	m.Quantity = o.Quantity
	m.UnitPrice = o.UnitPrice
	m.TotalAmount = o.TotalAmount
	m.CryptoCurrency = o.CryptoCurrency
	m.Status = o.Status
	m.PaymentStatus = o.PaymentStatus
	m.UseEscrow = o.UseEscrow
	m.PaymentAddress = o.PaymentAddress
	m.PaymentExpiresAt = o.PaymentExpiresAt
	m.PaymentConfirmedAt = o.PaymentConfirmedAt
	m.DeliveredAt = o.DeliveredAt
	m.ConfirmedAt = o.ConfirmedAt
	m.CancelledAt = o.CancelledAt
	m.ProductCredentials = encodeJSON(o.ProductCredentials, "{}")
	m.BuyerNotes = o.BuyerNotes
	m.VendorNotes = o.VendorNotes
	m.Dispute = nil
	if o.Dispute != nil {
		m.Dispute = DisputeModelFromDomain(o.ID, o.Dispute)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order aggregate.
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// DisputeModel is the persistence model for an order's dispute.
type DisputeModel struct {
	ID              uuid.UUID               `gorm:"type:uuid;primaryKey"`
	OrderID         uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex"`
	Reason          string                  `gorm:"type:text;not null"`
	Evidence        string                  `gorm:"type:text"`
	OpenedBy        uuid.UUID               `gorm:"type:uuid;not null"`
	OpenedAt        time.Time               `gorm:"not null"`
	Resolution      trade.DisputeResolution `gorm:"type:varchar(20)"`
	ResolutionNotes string                  `gorm:"type:text"`
	ResolvedBy      *uuid.UUID              `gorm:"type:uuid"`
	ResolvedAt      *time.Time
}

// TableName returns the table name for GORM
func (DisputeModel) TableName() string {
	return "disputes"
}

// ToDomain converts the persistence model to a domain Dispute.
func (m *DisputeModel) ToDomain() *trade.Dispute {
	return &trade.Dispute{
		ID:              m.ID,
		Reason:          m.Reason,
		Evidence:        m.Evidence,
		OpenedBy:        m.OpenedBy,
		OpenedAt:        m.OpenedAt,
		Resolution:      m.Resolution,
		ResolutionNotes: m.ResolutionNotes,
		ResolvedBy:      m.ResolvedBy,
		ResolvedAt:      m.ResolvedAt,
	}
}

// DisputeModelFromDomain creates a new persistence model from a domain Dispute.
func DisputeModelFromDomain(orderID uuid.UUID, d *trade.Dispute) *DisputeModel {
	return &DisputeModel{
		ID:              d.ID,
		OrderID:         orderID,
		Reason:          d.Reason,
		Evidence:        d.Evidence,
		OpenedBy:        d.OpenedBy,
		OpenedAt:        d.OpenedAt,
		Resolution:      d.Resolution,
		ResolutionNotes: d.ResolutionNotes,
		ResolvedBy:      d.ResolvedBy,
		ResolvedAt:      d.ResolvedAt,
	}
}
