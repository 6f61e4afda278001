package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderFilter narrows order listings. Nil IDs mean "no restriction".
type OrderFilter struct {
	BuyerID  *uuid.UUID
	VendorID *uuid.UUID
	// Participant matches either side of the order
	Participant *uuid.UUID
	Status      *OrderStatus
	Page        int
	PageSize    int
}

// Offset returns the offset for pagination
func (f OrderFilter) Offset() int {
	if f.Page <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size clamped to 1..100
func (f OrderFilter) Limit() int {
	if f.PageSize <= 0 {
		return 20
	}
	if f.PageSize > 100 {
		return 100
	}
	return f.PageSize
}

// OrderStats are the counters shown on the admin dashboard
type OrderStats struct {
	TotalOrders     int64 `json:"total_orders"`
	PendingPayments int64 `json:"pending_payments"`
	PaidOrders      int64 `json:"paid_orders"`
	DisputedOrders  int64 `json:"disputed_orders"`
	DeliveredOrders int64 `json:"delivered_orders"`
	CompletedOrders int64 `json:"completed_orders"`
}

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)
	// FindByNumberForUpdate locks the row inside the caller's transaction
	FindByNumberForUpdate(ctx context.Context, orderNumber string) (*Order, error)
	FindByPaymentAddress(ctx context.Context, address string) (*Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]*Order, int64, error)
	// FindOverdueUnpaid returns pending_payment orders whose window closed before now
	FindOverdueUnpaid(ctx context.Context, now time.Time, limit int) ([]*Order, error)
	Stats(ctx context.Context) (OrderStats, error)
	FindRecent(ctx context.Context, limit int) ([]*Order, error)
	Save(ctx context.Context, order *Order) error
}
