package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
)

type fakeStats struct {
	orders  map[string]int64
	escrows map[string]int64
	err     error
}

func (f *fakeStats) OpenOrdersByStatus(context.Context) (map[string]int64, error) {
	return f.orders, f.err
}

func (f *fakeStats) HeldEscrowsByCurrency(context.Context) (map[string]int64, error) {
	return f.escrows, f.err
}

func newTestMarketplaceMetrics(t *testing.T, stats MarketplaceStatsProvider) (*MarketplaceMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mm, err := NewMarketplaceMetrics(MarketplaceMetricsConfig{
		Meter:         provider.Meter("test.marketplace"),
		StatsProvider: stats,
	})
	require.NoError(t, err)
	return mm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func getMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func int64Points(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	m := getMetric(rm, name)
	require.NotNil(t, m, "metric %s not found", name)
	out := map[string]int64{}
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			v, _ := dp.Attributes.Value(key)
			out[v.AsString()] += dp.Value
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			v, _ := dp.Attributes.Value(key)
			out[v.AsString()] = dp.Value
		}
	default:
		t.Fatalf("unexpected data type %T for %s", m.Data, name)
	}
	return out
}

func TestNewMarketplaceMetrics_NilMeter(t *testing.T) {
	_, err := NewMarketplaceMetrics(MarketplaceMetricsConfig{})
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestMarketplaceMetrics_EventTypes(t *testing.T) {
	mm, _ := newTestMarketplaceMetrics(t, nil)
	assert.ElementsMatch(t, []string{
		trade.EventTypeOrderCreated,
		payment.EventTypePaymentConfirmed,
		trade.EventTypeOrderConfirmed,
		trade.EventTypeOrderDisputed,
		trade.EventTypeOrderDisputeResolved,
		trade.EventTypeOrderCancelled,
		trade.EventTypeOrderExpired,
	}, mm.EventTypes())
}

func TestMarketplaceMetrics_Handle(t *testing.T) {
	mm, reader := newTestMarketplaceMetrics(t, nil)
	ctx := context.Background()

	events := []shared.DomainEvent{
		&trade.OrderCreatedEvent{TotalAmount: decimal.RequireFromString("0.5"), CryptoCurrency: shared.CurrencyBTC, UseEscrow: true},
		&trade.OrderCreatedEvent{TotalAmount: decimal.RequireFromString("0.25"), CryptoCurrency: shared.CurrencyBTC},
		&trade.OrderCreatedEvent{TotalAmount: decimal.NewFromInt(3), CryptoCurrency: shared.CurrencyXMR},
		&payment.PaymentConfirmedEvent{CryptoCurrency: shared.CurrencyXMR, UseEscrow: true},
		&trade.OrderConfirmedEvent{},
		&trade.OrderDisputedEvent{},
		&trade.OrderDisputeResolvedEvent{Resolution: trade.ResolutionBuyerWins},
		&trade.OrderDeliveredEvent{},
		&trade.OrderClosedEvent{Status: trade.OrderStatusCancelled},
		&trade.OrderClosedEvent{Status: trade.OrderStatusExpired},
		&trade.OrderClosedEvent{Status: trade.OrderStatusExpired},
	}
	for _, e := range events {
		require.NoError(t, mm.Handle(ctx, e))
	}

	rm := collect(t, reader)
	assert.Equal(t, map[string]int64{"BTC": 2, "XMR": 1},
		int64Points(t, rm, "marketplace_orders_created_total", AttrCurrency))
	assert.Equal(t, map[string]int64{"XMR": 1},
		int64Points(t, rm, "marketplace_payments_confirmed_total", AttrPaymentMethod))
	assert.Equal(t, map[string]int64{
		"completed": 1, "disputed": 1, "resolved_buyer_wins": 1, "cancelled": 1, "expired": 2,
	},
		int64Points(t, rm, "marketplace_orders_closed_total", AttrOrderOutcome))

	volume := getMetric(rm, "marketplace_order_volume_total")
	require.NotNil(t, volume)
	sum, ok := volume.Data.(metricdata.Sum[float64])
	require.True(t, ok)
	byCurrency := map[string]float64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(AttrCurrency)
		byCurrency[v.AsString()] = dp.Value
	}
	assert.InDelta(t, 0.75, byCurrency["BTC"], 1e-9)
	assert.InDelta(t, 3.0, byCurrency["XMR"], 1e-9)
}

func TestMarketplaceMetrics_Collect(t *testing.T) {
	stats := &fakeStats{
		orders:  map[string]int64{"pending_payment": 4, "disputed": 1},
		escrows: map[string]int64{"BTC": 2},
	}
	mm, reader := newTestMarketplaceMetrics(t, stats)

	mm.Collect(context.Background())

	rm := collect(t, reader)
	assert.Equal(t, map[string]int64{"pending_payment": 4, "disputed": 1},
		int64Points(t, rm, "marketplace_open_orders", attribute.Key("status")))
	assert.Equal(t, map[string]int64{"BTC": 2},
		int64Points(t, rm, "marketplace_held_escrows", AttrCurrency))
}

func TestMarketplaceMetrics_CollectErrorIsLogged(t *testing.T) {
	mm, reader := newTestMarketplaceMetrics(t, &fakeStats{err: errors.New("db down")})

	mm.Collect(context.Background())

	rm := collect(t, reader)
	assert.Nil(t, getMetric(rm, "marketplace_open_orders"))
}

func TestMarketplaceMetrics_StartStop(t *testing.T) {
	mm, _ := newTestMarketplaceMetrics(t, &fakeStats{})
	mm.StartPeriodicCollection(context.Background())
	mm.StartPeriodicCollection(context.Background())
	mm.Stop()
	mm.Stop()

	idle, _ := newTestMarketplaceMetrics(t, nil)
	idle.StartPeriodicCollection(context.Background())
	idle.Stop()
}
