package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
)

// MarketplaceStatsProvider supplies point-in-time marketplace state for the
// periodic gauges
type MarketplaceStatsProvider interface {
	// OpenOrdersByStatus counts orders that are not yet settled, per status
	OpenOrdersByStatus(ctx context.Context) (map[string]int64, error)
	// HeldEscrowsByCurrency counts funded or disputed escrows per currency
	HeldEscrowsByCurrency(ctx context.Context) (map[string]int64, error)
}

// MarketplaceMetricsConfig holds configuration for marketplace metrics.
type MarketplaceMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StatsProvider   MarketplaceStatsProvider
}

// MarketplaceMetrics records order, payment and dispute activity. Counters
// are fed by domain events, gauges by periodic collection.
type MarketplaceMetrics struct {
	logger *zap.Logger

	ordersCreated     *Counter
	orderVolume       metric.Float64Counter
	paymentsConfirmed *Counter
	ordersClosed      *Counter

	openOrders  *Gauge
	heldEscrows *Gauge

	provider MarketplaceStatsProvider
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

// NewMarketplaceMetrics creates the marketplace instruments on cfg.Meter
func NewMarketplaceMetrics(cfg MarketplaceMetricsConfig) (*MarketplaceMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	mm := &MarketplaceMetrics{
		logger:   logger,
		provider: cfg.StatsProvider,
		interval: interval,
		stopChan: make(chan struct{}),
	}

	var err error
	if mm.ordersCreated, err = NewCounter(cfg.Meter,
		"marketplace_orders_created_total", "Total number of orders placed", "{order}"); err != nil {
		return nil, err
	}
	if mm.orderVolume, err = cfg.Meter.Float64Counter("marketplace_order_volume_total",
		metric.WithDescription("Order value placed, in units of the payment currency")); err != nil {
		return nil, err
	}
	if mm.paymentsConfirmed, err = NewCounter(cfg.Meter,
		"marketplace_payments_confirmed_total", "Total number of settled order payments", "{payment}"); err != nil {
		return nil, err
	}
	if mm.ordersClosed, err = NewCounter(cfg.Meter,
		"marketplace_orders_closed_total", "Orders leaving the active lifecycle, by outcome", "{order}"); err != nil {
		return nil, err
	}
	if mm.openOrders, err = NewGauge(cfg.Meter,
		"marketplace_open_orders", "Orders awaiting payment, delivery or confirmation", "{order}"); err != nil {
		return nil, err
	}
	if mm.heldEscrows, err = NewGauge(cfg.Meter,
		"marketplace_held_escrows", "Escrows currently holding funds", "{escrow}"); err != nil {
		return nil, err
	}
	return mm, nil
}

// EventTypes returns the events the metrics subscribe to
func (mm *MarketplaceMetrics) EventTypes() []string {
	return []string{
		trade.EventTypeOrderCreated,
		payment.EventTypePaymentConfirmed,
		trade.EventTypeOrderConfirmed,
		trade.EventTypeOrderDisputed,
		trade.EventTypeOrderDisputeResolved,
		trade.EventTypeOrderCancelled,
		trade.EventTypeOrderExpired,
	}
}

// Handle records one domain event. Unknown events are ignored.
func (mm *MarketplaceMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *trade.OrderCreatedEvent:
		currency := AttrCurrency.String(string(e.CryptoCurrency))
		mm.ordersCreated.Inc(ctx, currency, attribute.Bool("escrow", e.UseEscrow))
		amount, _ := e.TotalAmount.Float64()
		mm.orderVolume.Add(ctx, amount, metric.WithAttributes(currency))
	case *payment.PaymentConfirmedEvent:
		mm.paymentsConfirmed.Inc(ctx,
			AttrPaymentMethod.String(string(e.CryptoCurrency)),
			attribute.Bool("escrow", e.UseEscrow),
		)
	case *trade.OrderConfirmedEvent:
		mm.ordersClosed.Inc(ctx, AttrOrderOutcome.String("completed"))
	case *trade.OrderDisputedEvent:
		mm.ordersClosed.Inc(ctx, AttrOrderOutcome.String("disputed"))
	case *trade.OrderDisputeResolvedEvent:
		mm.ordersClosed.Inc(ctx, AttrOrderOutcome.String("resolved_"+string(e.Resolution)))
	case *trade.OrderClosedEvent:
		mm.ordersClosed.Inc(ctx, AttrOrderOutcome.String(string(e.Status)))
	}
	return nil
}

// StartPeriodicCollection starts gauge collection in the background. It
// is a no-op without a stats provider or when called again.
func (mm *MarketplaceMetrics) StartPeriodicCollection(ctx context.Context) {
	if mm.provider == nil {
		mm.logger.Debug("No stats provider configured, skipping marketplace gauges")
		return
	}
	mm.runOnce.Do(func() {
		go mm.runPeriodicCollection(ctx)
	})
}

func (mm *MarketplaceMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	mm.Collect(ctx)
	for {
		select {
		case <-mm.stopChan:
			mm.logger.Info("Stopping marketplace metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			mm.Collect(ctx)
		}
	}
}

// Collect records the gauges once
func (mm *MarketplaceMetrics) Collect(ctx context.Context) {
	if mm.provider == nil {
		return
	}
	if orders, err := mm.provider.OpenOrdersByStatus(ctx); err != nil {
		mm.logger.Warn("Failed to collect open orders", zap.Error(err))
	} else {
		for status, n := range orders {
			mm.openOrders.Record(ctx, n, attribute.String("status", status))
		}
	}
	if escrows, err := mm.provider.HeldEscrowsByCurrency(ctx); err != nil {
		mm.logger.Warn("Failed to collect held escrows", zap.Error(err))
	} else {
		for currency, n := range escrows {
			mm.heldEscrows.Record(ctx, n, AttrCurrency.String(currency))
		}
	}
}

// Stop stops the periodic collection.
func (mm *MarketplaceMetrics) Stop() {
	mm.stopOnce.Do(func() {
		close(mm.stopChan)
	})
}

var _ shared.EventHandler = (*MarketplaceMetrics)(nil)

// ErrMeterNil is returned by NewMarketplaceMetrics without a meter
var ErrMeterNil = errors.New("marketplace metrics need a meter")
