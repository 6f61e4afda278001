package payment

import (
	"context"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAddressRepository defines the interface for payment address persistence
type PaymentAddressRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentAddress, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*PaymentAddress, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*PaymentAddress, error)
	FindByAddress(ctx context.Context, address string) (*PaymentAddress, error)
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*PaymentAddress, error)
	// FindOpenByCurrency returns pending or partial addresses of one currency
	FindOpenByCurrency(ctx context.Context, currency shared.CryptoCurrency, limit int) ([]*PaymentAddress, error)
	CountByStatus(ctx context.Context) (map[AddressStatus]int64, error)
	Save(ctx context.Context, address *PaymentAddress) error
}

// EscrowFilter narrows admin escrow listings
type EscrowFilter struct {
	Status   *EscrowStatus
	Page     int
	PageSize int
}

// Offset returns the offset for pagination
func (f EscrowFilter) Offset() int {
	if f.Page <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size clamped to 1..100
func (f EscrowFilter) Limit() int {
	if f.PageSize <= 0 {
		return 20
	}
	if f.PageSize > 100 {
		return 100
	}
	return f.PageSize
}

// EscrowTotals aggregates escrow amounts for analytics
type EscrowTotals struct {
	CountByStatus  map[EscrowStatus]int64
	FundedVolume   decimal.Decimal
	ReleasedVolume decimal.Decimal
	RefundedVolume decimal.Decimal
	FeesEarned     decimal.Decimal
}

// EscrowRepository defines the interface for escrow persistence
type EscrowRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*EscrowPayment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*EscrowPayment, error)
	FindByPaymentAddressID(ctx context.Context, addressID uuid.UUID) (*EscrowPayment, error)
	FindAll(ctx context.Context, filter EscrowFilter) ([]*EscrowPayment, int64, error)
	FindDueForRelease(ctx context.Context, now time.Time, limit int) ([]*EscrowPayment, error)
	Totals(ctx context.Context) (*EscrowTotals, error)
	Save(ctx context.Context, escrow *EscrowPayment) error
}

// WebhookRepository stores inbound payment notifications
type WebhookRepository interface {
	// Exists reports whether a webhook with the same source, external id and event type was stored
	Exists(ctx context.Context, source WebhookSource, externalID, eventType string) (bool, error)
	Save(ctx context.Context, webhook *PaymentWebhook) error
}
