package scheduler

import (
	"context"
	"time"
)

// PaymentMaintainer is the part of the payment service the scheduler drives
type PaymentMaintainer interface {
	AutoReleaseEscrows(ctx context.Context, now time.Time) (int, error)
	ExpirePayments(ctx context.Context, now time.Time) (int, error)
	CheckMoneroTransfers(ctx context.Context) (int, error)
	MoneroEnabled() bool
}

// OrderExpirer cancels orders whose payment window has passed
type OrderExpirer interface {
	ExpireUnpaid(ctx context.Context, now time.Time) (int, error)
}

// Job names
const (
	JobAutoReleaseEscrows = "auto_release_escrows"
	JobExpirePayments     = "expire_payments"
	JobExpireUnpaidOrders = "expire_unpaid_orders"
	JobCheckMonero        = "check_monero_transfers"
)

// MarketplaceJobs returns the maintenance jobs in run order. Monero
// polling runs before expiry so a late transfer can still settle, and is
// left out when no wallet is configured.
func MarketplaceJobs(payments PaymentMaintainer, orders OrderExpirer) []Job {
	var jobs []Job
	if payments.MoneroEnabled() {
		jobs = append(jobs, Job{
			Name: JobCheckMonero,
			Run: func(ctx context.Context, _ time.Time) (int, error) {
				return payments.CheckMoneroTransfers(ctx)
			},
		})
	}
	return append(jobs,
		Job{Name: JobAutoReleaseEscrows, Run: payments.AutoReleaseEscrows},
		Job{Name: JobExpirePayments, Run: payments.ExpirePayments},
		Job{Name: JobExpireUnpaidOrders, Run: orders.ExpireUnpaid},
	)
}
