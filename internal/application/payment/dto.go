package payment

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest opens a payment address for an order that has none
type CreatePaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// EscrowActionRequest is a participant action on an order's escrow
type EscrowActionRequest struct {
	Action string `json:"action" binding:"required,oneof=release dispute"`
	Reason string `json:"reason" binding:"max=2000"`
}

// AdminEscrowActionRequest is an administrator's ruling on an escrow
type AdminEscrowActionRequest struct {
	Action     string `json:"action" binding:"required,oneof=release refund"`
	AdminNotes string `json:"admin_notes" binding:"max=2000"`
}

// EscrowListQuery holds the query string of GET /payments/admin/escrows
type EscrowListQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// MoneroNotification is the body of POST /payments/webhooks/monero. It only
// tells the service which subaddress to look at: amount and confirmations
// are re-read from the wallet before anything is applied.
type MoneroNotification struct {
	Address       string `json:"address" binding:"required"`
	TxHash        string `json:"tx_hash" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Confirmations int    `json:"confirmations" binding:"min=0"`
}

// EscrowResponse represents an escrow in API responses
type EscrowResponse struct {
	ID                 uuid.UUID       `json:"id"`
	OrderID            string          `json:"order_id"`
	BuyerID            uuid.UUID       `json:"buyer_id"`
	VendorID           uuid.UUID       `json:"vendor_id"`
	EscrowAmount       decimal.Decimal `json:"escrow_amount"`
	EscrowFee          decimal.Decimal `json:"escrow_fee"`
	VendorPayout       decimal.Decimal `json:"vendor_payout"`
	Status             string          `json:"status"`
	AutoReleaseEnabled bool            `json:"auto_release_enabled"`
	AutoReleaseAt      *time.Time      `json:"auto_release_at,omitempty"`
	FundedAt           *time.Time      `json:"funded_at,omitempty"`
	ReleasedAt         *time.Time      `json:"released_at,omitempty"`
	ReleasedBy         *uuid.UUID      `json:"released_by,omitempty"`
	DisputeReason      string          `json:"dispute_reason,omitempty"`
	AdminNotes         string          `json:"admin_notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ToEscrowResponse converts an escrow to its API form
func ToEscrowResponse(e *payment.EscrowPayment) EscrowResponse {
	return EscrowResponse{
		ID:                 e.ID,
		OrderID:            e.OrderNumber,
		BuyerID:            e.BuyerID,
		VendorID:           e.VendorID,
		EscrowAmount:       e.Amount,
		EscrowFee:          e.Fee,
		VendorPayout:       e.VendorPayout(),
		Status:             string(e.Status),
		AutoReleaseEnabled: e.AutoReleaseEnabled,
		AutoReleaseAt:      e.AutoReleaseAt,
		FundedAt:           e.FundedAt,
		ReleasedAt:         e.ReleasedAt,
		ReleasedBy:         e.ReleasedBy,
		DisputeReason:      e.DisputeReason,
		AdminNotes:         e.AdminNotes,
		CreatedAt:          e.CreatedAt,
	}
}

func toEscrowResponses(escrows []*payment.EscrowPayment) []EscrowResponse {
	out := make([]EscrowResponse, len(escrows))
	for i, e := range escrows {
		out[i] = ToEscrowResponse(e)
	}
	return out
}

// PaymentStatusResponse is the buyer's view of an order's payment
type PaymentStatusResponse struct {
	OrderID               string          `json:"order_id"`
	CryptoCurrency        string          `json:"crypto_currency"`
	PaymentType           string          `json:"payment_type"`
	PaymentAddress        string          `json:"payment_address"`
	Status                string          `json:"status"`
	ExpectedAmount        decimal.Decimal `json:"expected_amount"`
	ReceivedAmount        decimal.Decimal `json:"received_amount"`
	Confirmations         int             `json:"confirmations"`
	RequiredConfirmations int             `json:"required_confirmations"`
	ExpiresAt             time.Time       `json:"expires_at"`
	ConfirmedAt           *time.Time      `json:"confirmed_at,omitempty"`
	TransactionHash       string          `json:"transaction_hash,omitempty"`
	BTCPayInvoiceID       string          `json:"btcpay_invoice_id,omitempty"`
	BTCPayCheckoutLink    string          `json:"btcpay_checkout_link,omitempty"`
	MoneroSubaddressIndex *uint32         `json:"monero_subaddress_index,omitempty"`
	Escrow                *EscrowResponse `json:"escrow,omitempty"`
}

func toPaymentStatusResponse(p *payment.PaymentAddress, escrow *payment.EscrowPayment) PaymentStatusResponse {
	resp := PaymentStatusResponse{
		OrderID:               p.OrderNumber,
		CryptoCurrency:        string(p.CryptoCurrency),
		PaymentType:           string(p.PaymentType),
		PaymentAddress:        p.Address,
		Status:                string(p.Status),
		ExpectedAmount:        p.ExpectedAmount,
		ReceivedAmount:        p.ReceivedAmount,
		Confirmations:         p.Confirmations,
		RequiredConfirmations: p.RequiredConfirmations,
		ExpiresAt:             p.ExpiresAt,
		ConfirmedAt:           p.ConfirmedAt,
		TransactionHash:       p.TransactionHash,
		BTCPayInvoiceID:       p.BTCPayInvoiceID,
		BTCPayCheckoutLink:    p.BTCPayCheckoutLink,
		MoneroSubaddressIndex: p.MoneroSubaddressIndex,
	}
	if escrow != nil {
		e := ToEscrowResponse(escrow)
		resp.Escrow = &e
	}
	return resp
}

// CurrenciesResponse lists the currencies buyers can pay with
type CurrenciesResponse struct {
	SupportedCurrencies []payment.Currency `json:"supported_currencies"`
}

// PaymentTotals are the address counters of the analytics view
type PaymentTotals struct {
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Pending     int64   `json:"pending"`
	Expired     int64   `json:"expired"`
	SuccessRate float64 `json:"success_rate"`
}

// EscrowAnalytics are the escrow counters and volumes of the analytics view
type EscrowAnalytics struct {
	Total          int64           `json:"total"`
	Active         int64           `json:"active"`
	Disputed       int64           `json:"disputed"`
	Released       int64           `json:"released"`
	Refunded       int64           `json:"refunded"`
	FundedVolume   decimal.Decimal `json:"funded_volume"`
	ReleasedVolume decimal.Decimal `json:"released_volume"`
	RefundedVolume decimal.Decimal `json:"refunded_volume"`
	FeesEarned     decimal.Decimal `json:"fees_earned"`
}

// AnalyticsResponse is the admin payment overview
type AnalyticsResponse struct {
	Payments PaymentTotals   `json:"payments"`
	Escrows  EscrowAnalytics `json:"escrows"`
}

// WebhookResult tells the gateway whether the notification was applied
type WebhookResult struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}
