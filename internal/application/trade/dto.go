package trade

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest represents a purchase of one listing
type CreateOrderRequest struct {
	ProductID      uuid.UUID `json:"product_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"omitempty,min=1,max=1000"`
	CryptoCurrency string    `json:"crypto_currency" binding:"required"`
	// UseEscrow defaults to true when omitted
	UseEscrow  *bool  `json:"use_escrow"`
	BuyerNotes string `json:"buyer_notes" binding:"max=1000"`
}

// OrderListQuery holds the query string of GET /orders
type OrderListQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// DeliverOrderRequest carries what the vendor hands over
type DeliverOrderRequest struct {
	Credentials map[string]string `json:"credentials"`
	Notes       string            `json:"notes" binding:"max=2000"`
}

// DisputeOrderRequest opens a dispute
type DisputeOrderRequest struct {
	Reason   string `json:"reason" binding:"required,max=2000"`
	Evidence string `json:"evidence" binding:"max=5000"`
}

// ResolveDisputeRequest is an admin ruling
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Notes      string `json:"notes" binding:"max=2000"`
}

// FindByPaymentAddressRequest looks an order up by its payment address
type FindByPaymentAddressRequest struct {
	Address string `json:"address"`
}

// DisputeResponse represents an order dispute in API responses
type DisputeResponse struct {
	Reason          string     `json:"reason"`
	Evidence        string     `json:"evidence"`
	OpenedBy        uuid.UUID  `json:"opened_by"`
	OpenedAt        time.Time  `json:"opened_at"`
	Resolution      string     `json:"resolution,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedBy      *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// OrderResponse represents an order in API responses. Delivered
// credentials are only served by the credentials endpoint.
type OrderResponse struct {
	ID                 uuid.UUID        `json:"id"`
	OrderID            string           `json:"order_id"`
	BuyerID            uuid.UUID        `json:"buyer_id"`
	VendorID           uuid.UUID        `json:"vendor_id"`
	ProductID          uuid.UUID        `json:"product_id"`
	ProductTitle       string           `json:"product_title"`
	Quantity           int              `json:"quantity"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`
	CryptoCurrency     string           `json:"crypto_currency"`
	Status             string           `json:"status"`
	PaymentStatus      string           `json:"payment_status"`
	UseEscrow          bool             `json:"use_escrow"`
	PaymentAddress     string           `json:"payment_address,omitempty"`
	PaymentExpiresAt   *time.Time       `json:"payment_expires_at,omitempty"`
	PaymentConfirmedAt *time.Time       `json:"payment_confirmed_at,omitempty"`
	DeliveredAt        *time.Time       `json:"delivered_at,omitempty"`
	ConfirmedAt        *time.Time       `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	BuyerNotes         string           `json:"buyer_notes,omitempty"`
	VendorNotes        string           `json:"vendor_notes,omitempty"`
	DisputeOpened      bool             `json:"dispute_opened"`
	Dispute            *DisputeResponse `json:"dispute,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ToOrderResponse converts an order to its API form
func ToOrderResponse(o *trade.Order) OrderResponse {
	resp := OrderResponse{
		ID:                 o.ID,
		OrderID:            o.OrderNumber,
		BuyerID:            o.BuyerID,
		VendorID:           o.VendorID,
		ProductID:          o.ProductID,
		ProductTitle:       o.ProductTitle,
		Quantity:           o.Quantity,
		UnitPrice:          o.UnitPrice,
		TotalAmount:        o.TotalAmount,
		CryptoCurrency:     string(o.CryptoCurrency),
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		UseEscrow:          o.UseEscrow,
		PaymentAddress:     o.PaymentAddress,
		PaymentExpiresAt:   o.PaymentExpiresAt,
		PaymentConfirmedAt: o.PaymentConfirmedAt,
		DeliveredAt:        o.DeliveredAt,
		ConfirmedAt:        o.ConfirmedAt,
		CancelledAt:        o.CancelledAt,
		BuyerNotes:         o.BuyerNotes,
		VendorNotes:        o.VendorNotes,
		DisputeOpened:      o.HasDispute(),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if d := o.Dispute; d != nil {
		resp.Dispute = &DisputeResponse{
			Reason:          d.Reason,
			Evidence:        d.Evidence,
			OpenedBy:        d.OpenedBy,
			OpenedAt:        d.OpenedAt,
			Resolution:      string(d.Resolution),
			ResolutionNotes: d.ResolutionNotes,
			ResolvedBy:      d.ResolvedBy,
			ResolvedAt:      d.ResolvedAt,
		}
	}
	return resp
}

func toOrderResponses(orders []*trade.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = ToOrderResponse(o)
	}
	return out
}

// OrderCredentialsResponse carries the credentials delivered for an order
type OrderCredentialsResponse struct {
	OrderID     string            `json:"order_id"`
	Credentials map[string]string `json:"credentials"`
}

// DashboardResponse is the admin order overview
type DashboardResponse struct {
	trade.OrderStats
	RecentOrders []OrderResponse `json:"recent_orders"`
}
