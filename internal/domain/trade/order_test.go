package trade

import (
	"regexp"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), ProductSnapshot{
		ProductID: uuid.New(),
		VendorID:  uuid.New(),
		Title:     "VPN account",
		UnitPrice: decimal.RequireFromString("0.0005"),
	}, 2, shared.CurrencyBTC, true, "please hurry")
	require.NoError(t, err)
	return o
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

func TestNewOrder(t *testing.T) {
	o := newTestOrder(t)

	assert.Regexp(t, regexp.MustCompile(`^ORD-[0-9A-F]{8}$`), o.OrderNumber)
	assert.Equal(t, OrderStatusPendingPayment, o.Status)
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
	assert.True(t, decimal.RequireFromString("0.001").Equal(o.TotalAmount))

	events := o.GetDomainEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, o.OrderNumber, created.OrderNumber)
	assert.Equal(t, EventTypeOrderCreated, created.EventType())
}

func TestNewOrder_Validation(t *testing.T) {
	vendor := uuid.New()
	snapshot := ProductSnapshot{ProductID: uuid.New(), VendorID: vendor, Title: "x", UnitPrice: decimal.NewFromInt(1)}

	_, err := NewOrder(uuid.New(), snapshot, 0, shared.CurrencyBTC, false, "")
	assert.Equal(t, "INVALID_QUANTITY", domainCode(t, err))

	_, err = NewOrder(vendor, snapshot, 1, shared.CurrencyBTC, false, "")
	assert.Equal(t, "INVALID_INPUT", domainCode(t, err))
}

func TestOrderStatus_Transitions(t *testing.T) {
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusExpired))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusDisputed))
	assert.True(t, OrderStatusDisputed.CanTransitionTo(OrderStatusRefunded))
	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusConfirmed.CanTransitionTo(OrderStatusDisputed))
	assert.False(t, OrderStatusRefunded.CanTransitionTo(OrderStatusConfirmed))
}

func TestOrder_Cancel(t *testing.T) {
	o := newTestOrder(t)
	o.ClearDomainEvents()
	require.NoError(t, o.Cancel(time.Now()))
	assert.Equal(t, OrderStatusCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)
	require.Len(t, o.GetDomainEvents(), 1)
	closed, ok := o.GetDomainEvents()[0].(*OrderClosedEvent)
	require.True(t, ok)
	assert.Equal(t, EventTypeOrderCancelled, closed.EventType())
	assert.Equal(t, o.ID, closed.OrderID)
	assert.False(t, o.Status.AcceptsPayment())

	err := o.Cancel(time.Now())
	require.Error(t, err)
	assert.Equal(t, "Cannot cancel order in current status", err.Error())
}

func TestOrder_Expire(t *testing.T) {
	o := newTestOrder(t)
	now := time.Now()

	assert.Error(t, o.Expire(now), "no deadline attached yet")

	o.AttachPayment("bc1qtest", now.Add(-time.Minute))
	assert.True(t, o.IsPaymentOverdue(now))
	require.NoError(t, o.Expire(now))
	assert.Equal(t, OrderStatusExpired, o.Status)
	assert.Equal(t, PaymentStatusExpired, o.PaymentStatus)
	events := o.GetDomainEvents()
	assert.Equal(t, EventTypeOrderExpired, events[len(events)-1].EventType())
	assert.False(t, o.Status.AcceptsPayment())
}

func TestOrder_MarkPaid(t *testing.T) {
	o := newTestOrder(t)
	now := time.Now()

	changed, err := o.MarkPaid(now, "login:secret", "instant", "funded")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, OrderStatusPaid, o.Status)
	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "login:secret", o.ProductCredentials["credentials"])
	assert.Equal(t, "funded", o.ProductCredentials["escrow_status"])

	changed, err = o.MarkPaid(now, "other", "instant", "")
	require.NoError(t, err)
	assert.False(t, changed, "second confirmation is a no-op")
	assert.Equal(t, "login:secret", o.ProductCredentials["credentials"])

	cancelled := newTestOrder(t)
	require.NoError(t, cancelled.Cancel(now))
	_, err = cancelled.MarkPaid(now, "", "instant", "")
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestOrder_DeliverAndConfirm(t *testing.T) {
	o := newTestOrder(t)
	now := time.Now()

	err := o.Deliver(now, nil, "")
	require.Error(t, err)
	assert.Equal(t, "Order must be paid before delivery", err.Error())

	_, err = o.MarkPaid(now, "a:b", "manual", "")
	require.NoError(t, err)
	require.NoError(t, o.Deliver(now, map[string]string{"recovery_email": "r@example.com"}, "enjoy"))
	assert.Equal(t, OrderStatusDelivered, o.Status)
	assert.Equal(t, "r@example.com", o.ProductCredentials["recovery_email"])
	assert.Equal(t, "a:b", o.ProductCredentials["credentials"])
	assert.Equal(t, "enjoy", o.VendorNotes)

	o.ClearDomainEvents()
	require.NoError(t, o.Confirm(now))
	assert.Equal(t, OrderStatusConfirmed, o.Status)
	require.Len(t, o.GetDomainEvents(), 1)
	confirmed := o.GetDomainEvents()[0].(*OrderConfirmedEvent)
	assert.True(t, confirmed.UseEscrow)

	assert.Error(t, o.Confirm(now))
}

func TestOrder_OpenDispute(t *testing.T) {
	now := time.Now()

	t.Run("within window after delivery", func(t *testing.T) {
		o := newTestOrder(t)
		_, _ = o.MarkPaid(now, "", "instant", "")
		require.NoError(t, o.Deliver(now.Add(-47*time.Hour), nil, ""))

		require.NoError(t, o.OpenDispute(o.BuyerID, "wrong password", "screenshot", now, DefaultDisputeWindow))
		assert.Equal(t, OrderStatusDisputed, o.Status)
		assert.True(t, o.HasDispute())

		err := o.OpenDispute(o.BuyerID, "again", "", now, DefaultDisputeWindow)
		require.Error(t, err)
		assert.Equal(t, "Dispute already opened for this order", err.Error())
	})

	t.Run("paid but not delivered", func(t *testing.T) {
		o := newTestOrder(t)
		_, _ = o.MarkPaid(now, "", "instant", "")
		require.NoError(t, o.OpenDispute(o.BuyerID, "nothing delivered", "", now, DefaultDisputeWindow))
	})

	t.Run("window expired", func(t *testing.T) {
		o := newTestOrder(t)
		_, _ = o.MarkPaid(now, "", "instant", "")
		require.NoError(t, o.Deliver(now.Add(-49*time.Hour), nil, ""))

		err := o.OpenDispute(o.BuyerID, "late", "", now, DefaultDisputeWindow)
		require.Error(t, err)
		assert.Equal(t, "Dispute period has expired (48 hours from delivery)", err.Error())
	})

	t.Run("unpaid order", func(t *testing.T) {
		o := newTestOrder(t)
		err := o.OpenDispute(o.BuyerID, "reason", "", now, DefaultDisputeWindow)
		assert.Equal(t, "INVALID_STATE", domainCode(t, err))
	})
}

func TestOrder_ResolveDispute(t *testing.T) {
	now := time.Now()
	admin := uuid.New()

	disputed := func(t *testing.T) *Order {
		o := newTestOrder(t)
		_, _ = o.MarkPaid(now, "", "instant", "")
		require.NoError(t, o.OpenDispute(o.BuyerID, "broken", "", now, DefaultDisputeWindow))
		return o
	}

	t.Run("no dispute", func(t *testing.T) {
		o := newTestOrder(t)
		err := o.ResolveDispute(admin, ResolutionBuyerWins, "", now)
		require.Error(t, err)
		assert.Equal(t, "No dispute found for this order", err.Error())
	})

	t.Run("invalid resolution", func(t *testing.T) {
		o := disputed(t)
		err := o.ResolveDispute(admin, "split", "", now)
		require.Error(t, err)
		assert.Equal(t, "Invalid resolution", err.Error())
	})

	t.Run("buyer wins refunds", func(t *testing.T) {
		o := disputed(t)
		require.NoError(t, o.ResolveDispute(admin, ResolutionBuyerWins, "vendor unresponsive", now))
		assert.Equal(t, OrderStatusRefunded, o.Status)
		assert.Equal(t, admin, *o.Dispute.ResolvedBy)
	})

	t.Run("vendor wins confirms", func(t *testing.T) {
		o := disputed(t)
		require.NoError(t, o.ResolveDispute(admin, ResolutionVendorWins, "", now))
		assert.Equal(t, OrderStatusConfirmed, o.Status)
		assert.NotNil(t, o.ConfirmedAt)
	})

	t.Run("partial refund keeps status", func(t *testing.T) {
		o := disputed(t)
		o.ClearDomainEvents()
		require.NoError(t, o.ResolveDispute(admin, ResolutionPartialRefund, "half", now))
		assert.Equal(t, OrderStatusDisputed, o.Status)
		require.Len(t, o.GetDomainEvents(), 1)
		resolved := o.GetDomainEvents()[0].(*OrderDisputeResolvedEvent)
		assert.Equal(t, ResolutionPartialRefund, resolved.Resolution)

		assert.Error(t, o.ResolveDispute(admin, ResolutionBuyerWins, "", now), "already resolved")
	})
}

func TestOrder_CanAccessCredentials(t *testing.T) {
	o := newTestOrder(t)

	err := o.CanAccessCredentials(o.BuyerID)
	require.Error(t, err)
	assert.Equal(t, "Order must be paid to access credentials", err.Error())

	_, _ = o.MarkPaid(time.Now(), "x", "instant", "")
	assert.NoError(t, o.CanAccessCredentials(o.BuyerID))
	assert.NoError(t, o.CanAccessCredentials(o.VendorID))
	assert.Equal(t, "FORBIDDEN", domainCode(t, o.CanAccessCredentials(uuid.New())))
}

func TestOrder_CanView(t *testing.T) {
	o := newTestOrder(t)
	assert.True(t, o.CanView(o.BuyerID, false))
	assert.True(t, o.CanView(o.VendorID, false))
	assert.True(t, o.CanView(uuid.New(), true))
	assert.False(t, o.CanView(uuid.New(), false))
}

func TestParseCryptoCurrency(t *testing.T) {
	c, err := shared.ParseCryptoCurrency(" xmr ")
	require.NoError(t, err)
	assert.Equal(t, shared.CurrencyXMR, c)

	_, err = shared.ParseCryptoCurrency("ETH")
	assert.Error(t, err)
}
