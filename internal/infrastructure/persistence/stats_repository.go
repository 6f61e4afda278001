package persistence

import (
	"context"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"gorm.io/gorm"
)

// GormMarketplaceStats reads aggregate marketplace state for the telemetry gauges
type GormMarketplaceStats struct {
	db *gorm.DB
}

// NewGormMarketplaceStats creates a new GormMarketplaceStats
func NewGormMarketplaceStats(db *gorm.DB) *GormMarketplaceStats {
	return &GormMarketplaceStats{db: db}
}

type groupCount struct {
	GroupKey string
	Total    int64
}

// OpenOrdersByStatus counts orders still awaiting payment, delivery or
// confirmation. Statuses with no orders are reported as zero.
func (s *GormMarketplaceStats) OpenOrdersByStatus(ctx context.Context) (map[string]int64, error) {
	open := []trade.OrderStatus{
		trade.OrderStatusPendingPayment,
		trade.OrderStatusPaid,
		trade.OrderStatusDelivered,
		trade.OrderStatusDisputed,
	}
	var rows []groupCount
	err := s.db.WithContext(ctx).
		Table("orders").
		Select("status AS group_key, COUNT(*) AS total").
		Where("status IN ?", open).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(open))
	for _, st := range open {
		result[string(st)] = 0
	}
	for _, r := range rows {
		result[r.GroupKey] = r.Total
	}
	return result, nil
}

// HeldEscrowsByCurrency counts funded or disputed escrows grouped by the
// currency of their order
func (s *GormMarketplaceStats) HeldEscrowsByCurrency(ctx context.Context) (map[string]int64, error) {
	var rows []groupCount
	err := s.db.WithContext(ctx).
		Table("escrow_payments AS e").
		Select("o.crypto_currency AS group_key, COUNT(*) AS total").
		Joins("JOIN orders o ON o.id = e.order_id").
		Where("e.status IN ?", []payment.EscrowStatus{payment.EscrowStatusFunded, payment.EscrowStatusDisputed}).
		Group("o.crypto_currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.GroupKey] = r.Total
	}
	return result, nil
}
