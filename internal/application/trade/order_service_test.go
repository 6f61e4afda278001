package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func buyer() shared.Actor {
	return shared.Actor{UserID: uuid.New(), UserType: "buyer"}
}

func approvedProduct(t *testing.T, vendorID uuid.UUID, qty int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(vendorID, catalog.ProductDetails{
		CategoryID:      uuid.New(),
		Title:           "Netflix Premium",
		Price:           decimal.RequireFromString("0.001"),
		DiscountPercent: decimal.NewFromInt(10),
		Quantity:        qty,
		Credentials:     "user:pass",
		DeliveryMethod:  catalog.DeliveryInstant,
	})
	require.NoError(t, err)
	require.NoError(t, p.Approve())
	return p
}

func pendingOrder(t *testing.T, buyerID uuid.UUID, product *catalog.Product, qty int) *trade.Order {
	t.Helper()
	o, err := trade.NewOrder(buyerID, trade.ProductSnapshot{
		ProductID: product.ID,
		VendorID:  product.VendorID,
		Title:     product.Title,
		UnitPrice: product.FinalPrice(),
	}, qty, shared.CurrencyBTC, true, "")
	require.NoError(t, err)
	o.ClearDomainEvents()
	return o
}

type fixture struct {
	orders    *MockOrderRepository
	products  *MockProductRepository
	publisher *MockEventPublisher
	payments  *MockPaymentAddressCreator
	tx        *inlineTx
	svc       *OrderService
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		orders:    new(MockOrderRepository),
		products:  new(MockProductRepository),
		publisher: new(MockEventPublisher),
		payments:  new(MockPaymentAddressCreator),
		tx:        &inlineTx{},
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewOrderService(f.orders, f.products, f.tx, f.publisher, zap.NewNop())
	f.svc.SetPaymentAddressCreator(f.payments)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestOrderService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock and attaches a payment address", func(t *testing.T) {
		f := newFixture()
		actor := buyer()
		product := approvedProduct(t, uuid.New(), 3)
		expires := f.now.Add(time.Hour)

		var stored *trade.Order
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)
		f.products.On("Save", ctx, product).Return(nil)
		f.orders.On("Save", ctx, mock.AnythingOfType("*trade.Order")).Return(nil).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*trade.Order) })
		f.orders.On("FindByNumberForUpdate", ctx, mock.Anything).
			Return(func(string) *trade.Order { return stored }, nil)
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil).Once()
		f.payments.On("CreateForOrder", ctx, mock.AnythingOfType("*trade.Order")).Return("bc1qexample", expires, nil)

		resp, err := f.svc.Create(ctx, actor, CreateOrderRequest{
			ProductID:      product.ID,
			Quantity:       2,
			CryptoCurrency: "btc",
		})
		require.NoError(t, err)

		assert.Equal(t, "pending_payment", resp.Status)
		assert.Equal(t, "BTC", resp.CryptoCurrency)
		assert.True(t, resp.UseEscrow)
		assert.True(t, resp.UnitPrice.Equal(decimal.RequireFromString("0.0009")))
		assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("0.0018")))
		assert.Equal(t, "bc1qexample", resp.PaymentAddress)
		assert.Equal(t, 1, product.Quantity)
		f.orders.AssertNumberOfCalls(t, "Save", 2)
		f.publisher.AssertExpectations(t)
		f.payments.AssertNotCalled(t, "CloseForOrder", mock.Anything, mock.Anything)
	})

	t.Run("order cancelled while the address was opened", func(t *testing.T) {
		f := newFixture()
		actor := buyer()
		product := approvedProduct(t, uuid.New(), 3)

		var created *trade.Order
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)
		f.products.On("Save", ctx, product).Return(nil)
		f.orders.On("Save", ctx, mock.AnythingOfType("*trade.Order")).Return(nil).Once().
			Run(func(args mock.Arguments) { created = args.Get(1).(*trade.Order) })
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil).Once()
		f.payments.On("CreateForOrder", ctx, mock.AnythingOfType("*trade.Order")).Return("bc1qlate", f.now.Add(time.Hour), nil)
		// the buyer's cancel committed between the gateway call and the lock
		f.orders.On("FindByNumberForUpdate", ctx, mock.Anything).Return(func(string) *trade.Order {
			current := *created
			current.Status = trade.OrderStatusCancelled
			return &current
		}, nil)
		f.payments.On("CloseForOrder", ctx, mock.AnythingOfType("uuid.UUID")).Return(nil).Once()

		resp, err := f.svc.Create(ctx, actor, CreateOrderRequest{ProductID: product.ID, CryptoCurrency: "BTC"})
		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.Empty(t, resp.PaymentAddress)
		f.orders.AssertNumberOfCalls(t, "Save", 1)
		f.payments.AssertCalled(t, "CloseForOrder", ctx, created.ID)
	})

	t.Run("order survives a payment address failure", func(t *testing.T) {
		f := newFixture()
		product := approvedProduct(t, uuid.New(), 1)
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)
		f.products.On("Save", ctx, product).Return(nil)
		f.orders.On("Save", ctx, mock.Anything).Return(nil)
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil)
		f.payments.On("CreateForOrder", ctx, mock.Anything).Return("", time.Time{}, errors.New("gateway down"))

		useEscrow := false
		resp, err := f.svc.Create(ctx, buyer(), CreateOrderRequest{ProductID: product.ID, CryptoCurrency: "XMR", UseEscrow: &useEscrow})
		require.NoError(t, err)
		assert.Empty(t, resp.PaymentAddress)
		assert.False(t, resp.UseEscrow)
		assert.Equal(t, catalog.ProductStatusReserved, product.Status)
		f.orders.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("unavailable product", func(t *testing.T) {
		f := newFixture()
		product := approvedProduct(t, uuid.New(), 1)
		product.Status = catalog.ProductStatusPendingApproval
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)

		_, err := f.svc.Create(ctx, buyer(), CreateOrderRequest{ProductID: product.ID, CryptoCurrency: "BTC"})
		assert.Equal(t, "PRODUCT_UNAVAILABLE", errorCode(err))
		f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("not enough stock", func(t *testing.T) {
		f := newFixture()
		product := approvedProduct(t, uuid.New(), 1)
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)

		_, err := f.svc.Create(ctx, buyer(), CreateOrderRequest{ProductID: product.ID, Quantity: 2, CryptoCurrency: "BTC"})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("vendor cannot buy own product", func(t *testing.T) {
		f := newFixture()
		vendor := shared.Actor{UserID: uuid.New(), UserType: "vendor"}
		product := approvedProduct(t, vendor.UserID, 1)
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)

		_, err := f.svc.Create(ctx, vendor, CreateOrderRequest{ProductID: product.ID, CryptoCurrency: "BTC"})
		assert.Equal(t, "INVALID_INPUT", errorCode(err))
		assert.Equal(t, 1, product.Quantity)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Create(ctx, buyer(), CreateOrderRequest{ProductID: uuid.New(), CryptoCurrency: "DOGE"})
		assert.Equal(t, "UNSUPPORTED_CURRENCY", errorCode(err))
		assert.Zero(t, f.tx.calls)
	})
}

func TestOrderService_List_ScopesByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := buyer()
	v := shared.Actor{UserID: uuid.New(), UserType: "vendor"}

	f.orders.On("FindAll", ctx, mock.MatchedBy(func(fl trade.OrderFilter) bool {
		return fl.BuyerID != nil && *fl.BuyerID == b.UserID && fl.VendorID == nil
	})).Return([]*trade.Order{}, int64(0), nil).Once()
	f.orders.On("FindAll", ctx, mock.MatchedBy(func(fl trade.OrderFilter) bool {
		return fl.VendorID != nil && *fl.VendorID == v.UserID && fl.Status != nil && *fl.Status == trade.OrderStatusPaid
	})).Return([]*trade.Order{}, int64(0), nil).Once()
	f.orders.On("FindAll", ctx, mock.MatchedBy(func(fl trade.OrderFilter) bool {
		return fl.BuyerID == nil && fl.VendorID == nil
	})).Return([]*trade.Order{}, int64(0), nil).Once()

	_, err := f.svc.List(ctx, b, OrderListQuery{})
	require.NoError(t, err)
	_, err = f.svc.List(ctx, v, OrderListQuery{Status: "paid"})
	require.NoError(t, err)
	page, err := f.svc.List(ctx, shared.Actor{UserID: uuid.New(), UserType: "admin"}, OrderListQuery{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)

	_, err = f.svc.List(ctx, b, OrderListQuery{Status: "shipped"})
	assert.Equal(t, "INVALID_INPUT", errorCode(err))
	f.orders.AssertExpectations(t)
}

func TestOrderService_Get_HidesForeignOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := buyer()
	order := pendingOrder(t, b.UserID, approvedProduct(t, uuid.New(), 1), 1)
	f.orders.On("FindByNumber", ctx, order.OrderNumber).Return(order, nil)

	resp, err := f.svc.Get(ctx, b, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, resp.OrderID)

	_, err = f.svc.Get(ctx, buyer(), order.OrderNumber)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOrderService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("buyer cancels and stock returns", func(t *testing.T) {
		f := newFixture()
		b := buyer()
		product := approvedProduct(t, uuid.New(), 1)
		order := pendingOrder(t, b.UserID, product, 1)
		require.NoError(t, product.Reserve(1))

		f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)
		f.orders.On("Save", ctx, order).Return(nil)
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)
		f.products.On("Save", ctx, product).Return(nil)
		f.publisher.On("Publish", ctx, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			return len(events) == 1 && events[0].EventType() == trade.EventTypeOrderCancelled
		})).Return(nil).Once()

		resp, err := f.svc.Cancel(ctx, b, order.OrderNumber)
		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		f.publisher.AssertExpectations(t)
		assert.Equal(t, 1, product.Quantity)
		assert.Equal(t, catalog.ProductStatusApproved, product.Status)
	})

	t.Run("deleted product is skipped", func(t *testing.T) {
		f := newFixture()
		b := buyer()
		product := approvedProduct(t, uuid.New(), 1)
		order := pendingOrder(t, b.UserID, product, 1)

		f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)
		f.orders.On("Save", ctx, order).Return(nil)
		f.products.On("FindByIDForUpdate", ctx, product.ID).Return(nil, shared.ErrNotFound)
		f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

		_, err := f.svc.Cancel(ctx, b, order.OrderNumber)
		require.NoError(t, err)
		f.products.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("vendor cannot cancel", func(t *testing.T) {
		f := newFixture()
		product := approvedProduct(t, uuid.New(), 1)
		order := pendingOrder(t, uuid.New(), product, 1)
		f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)

		_, err := f.svc.Cancel(ctx, shared.Actor{UserID: product.VendorID, UserType: "vendor"}, order.OrderNumber)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("paid order cannot be cancelled", func(t *testing.T) {
		f := newFixture()
		b := buyer()
		order := pendingOrder(t, b.UserID, approvedProduct(t, uuid.New(), 1), 1)
		_, err := order.MarkPaid(f.now, "x", "instant", "")
		require.NoError(t, err)
		f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)

		_, err = f.svc.Cancel(ctx, b, order.OrderNumber)
		assert.Equal(t, "INVALID_STATE", errorCode(err))
	})
}

func TestOrderService_ConfirmPaymentSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	product := approvedProduct(t, uuid.New(), 2)
	order := pendingOrder(t, uuid.New(), product, 1)

	f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)
	f.orders.On("Save", ctx, order).Return(nil).Once()
	f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil).Once()
	f.products.On("Save", ctx, product).Return(nil).Once()

	resp, err := f.svc.ConfirmPaymentSuccess(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.Status)
	assert.Equal(t, "paid", resp.PaymentStatus)
	assert.Equal(t, "user:pass", order.ProductCredentials["credentials"])
	assert.Equal(t, "instant", order.ProductCredentials["delivery_method"])
	assert.Equal(t, "held", order.ProductCredentials["escrow_status"])
	assert.Equal(t, 1, product.SalesCount)

	// a second confirmation changes nothing
	_, err = f.svc.ConfirmPaymentSuccess(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, 1, product.SalesCount)
	f.orders.AssertExpectations(t)
	f.products.AssertExpectations(t)
}

func TestOrderService_ConfirmPayment_AdminOnly(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ConfirmPayment(context.Background(), buyer(), "ORD-12345678")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestOrderService_DeliveryFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := buyer()
	product := approvedProduct(t, uuid.New(), 1)
	vendor := shared.Actor{UserID: product.VendorID, UserType: "vendor"}
	order := pendingOrder(t, b.UserID, product, 1)
	_, err := order.MarkPaid(f.now, "user:pass", "manual", "")
	require.NoError(t, err)

	f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)
	f.orders.On("Save", ctx, order).Return(nil)
	f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

	_, err = f.svc.Deliver(ctx, b, order.OrderNumber, DeliverOrderRequest{})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	resp, err := f.svc.Deliver(ctx, vendor, order.OrderNumber, DeliverOrderRequest{
		Credentials: map[string]string{"login": "a@b.c"},
		Notes:       "enjoy",
	})
	require.NoError(t, err)
	assert.Equal(t, "delivered", resp.Status)
	assert.Equal(t, "enjoy", resp.VendorNotes)

	_, err = f.svc.Confirm(ctx, vendor, order.OrderNumber)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	resp, err = f.svc.Confirm(ctx, b, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", resp.Status)
	assert.Empty(t, order.GetDomainEvents())
	f.publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestOrderService_DisputeFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.svc.SetDisputeWindow(24 * time.Hour)
	b := buyer()
	admin := shared.Actor{UserID: uuid.New(), UserType: "admin"}
	order := pendingOrder(t, b.UserID, approvedProduct(t, uuid.New(), 1), 1)
	_, err := order.MarkPaid(f.now, "x", "instant", "held")
	require.NoError(t, err)
	require.NoError(t, order.Deliver(f.now, nil, ""))
	order.ClearDomainEvents()

	f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)
	f.orders.On("Save", ctx, order).Return(nil)
	f.publisher.On("Publish", ctx, mock.Anything).Return(nil)

	f.now = f.now.Add(25 * time.Hour)
	_, err = f.svc.Dispute(ctx, b, order.OrderNumber, DisputeOrderRequest{Reason: "wrong password"})
	assert.Equal(t, "INVALID_STATE", errorCode(err))

	f.now = f.now.Add(-2 * time.Hour)
	resp, err := f.svc.Dispute(ctx, b, order.OrderNumber, DisputeOrderRequest{Reason: "wrong password"})
	require.NoError(t, err)
	assert.Equal(t, "disputed", resp.Status)
	assert.True(t, resp.DisputeOpened)

	_, err = f.svc.ResolveDispute(ctx, b, order.OrderNumber, ResolveDisputeRequest{Resolution: "buyer_wins"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	resp, err = f.svc.ResolveDispute(ctx, admin, order.OrderNumber, ResolveDisputeRequest{Resolution: "buyer_wins", Notes: "refund"})
	require.NoError(t, err)
	assert.Equal(t, "refunded", resp.Status)
	require.NotNil(t, resp.Dispute)
	assert.Equal(t, "buyer_wins", resp.Dispute.Resolution)
}

func TestOrderService_FindByPaymentAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := buyer()
	order := pendingOrder(t, b.UserID, approvedProduct(t, uuid.New(), 1), 1)
	order.AttachPayment("bc1qknown", f.now.Add(time.Hour))
	f.orders.On("FindByPaymentAddress", ctx, "bc1qknown").Return(order, nil)
	f.orders.On("FindByPaymentAddress", ctx, "bc1qother").Return(nil, shared.ErrNotFound)

	_, err := f.svc.FindByPaymentAddress(ctx, b, "  ")
	assert.Equal(t, "INVALID_INPUT", errorCode(err))

	resp, err := f.svc.FindByPaymentAddress(ctx, b, " bc1qknown ")
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, resp.OrderID)

	_, err = f.svc.FindByPaymentAddress(ctx, b, "bc1qother")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Order not found for this payment address")
}

func TestOrderService_GetCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := buyer()
	order := pendingOrder(t, b.UserID, approvedProduct(t, uuid.New(), 1), 1)
	f.orders.On("FindByNumber", ctx, order.OrderNumber).Return(order, nil)

	_, err := f.svc.GetCredentials(ctx, b, order.OrderNumber)
	assert.Equal(t, "INVALID_STATE", errorCode(err))

	_, err = order.MarkPaid(f.now, "user:pass", "instant", "")
	require.NoError(t, err)
	creds, err := f.svc.GetCredentials(ctx, b, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "user:pass", creds.Credentials["credentials"])

	_, err = f.svc.GetCredentials(ctx, shared.Actor{UserID: uuid.New(), UserType: "admin"}, order.OrderNumber)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestOrderService_AdminDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	stats := trade.OrderStats{TotalOrders: 4, PaidOrders: 1}
	f.orders.On("Stats", ctx).Return(stats, nil)
	f.orders.On("FindRecent", ctx, 10).Return([]*trade.Order{}, nil)

	_, err := f.svc.AdminDashboard(ctx, buyer())
	assert.ErrorIs(t, err, shared.ErrForbidden)

	resp, err := f.svc.AdminDashboard(ctx, shared.Actor{UserID: uuid.New(), IsStaff: true})
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.TotalOrders)
	assert.Empty(t, resp.RecentOrders)
}

func TestOrderService_ExpireUnpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	product := approvedProduct(t, uuid.New(), 2)
	overdue := pendingOrder(t, uuid.New(), product, 1)
	overdue.AttachPayment("addr-1", f.now.Add(-time.Minute))
	require.NoError(t, product.Reserve(1))
	// paid between the scan and the lock
	raced := pendingOrder(t, uuid.New(), product, 1)
	raced.AttachPayment("addr-2", f.now.Add(-time.Minute))
	_, err := raced.MarkPaid(f.now, "x", "instant", "")
	require.NoError(t, err)

	f.orders.On("FindOverdueUnpaid", ctx, f.now, 100).Return([]*trade.Order{overdue, raced}, nil)
	f.orders.On("FindByNumberForUpdate", ctx, overdue.OrderNumber).Return(overdue, nil)
	f.orders.On("FindByNumberForUpdate", ctx, raced.OrderNumber).Return(raced, nil)
	f.orders.On("Save", ctx, overdue).Return(nil).Once()
	f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil).Once()
	f.products.On("Save", ctx, product).Return(nil).Once()
	f.publisher.On("Publish", ctx, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == trade.EventTypeOrderExpired
	})).Return(nil).Once()

	count, err := f.svc.ExpireUnpaid(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, trade.OrderStatusExpired, overdue.Status)
	assert.Equal(t, 2, product.Quantity)
	f.orders.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestOrderService_ExpireUnpaid_CountsOnlyStoredOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	product := approvedProduct(t, uuid.New(), 2)
	overdue := pendingOrder(t, uuid.New(), product, 1)
	overdue.AttachPayment("addr-1", f.now.Add(-time.Minute))

	f.orders.On("FindOverdueUnpaid", ctx, f.now, 100).Return([]*trade.Order{overdue}, nil)
	f.orders.On("FindByNumberForUpdate", ctx, overdue.OrderNumber).Return(overdue, nil)
	f.orders.On("Save", ctx, overdue).Return(shared.ErrConcurrencyConflict)
	f.products.On("FindByIDForUpdate", ctx, product.ID).Return(product, nil)
	f.products.On("Save", ctx, product).Return(nil)

	count, err := f.svc.ExpireUnpaid(ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, count)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPaymentConfirmedHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	product := approvedProduct(t, uuid.New(), 1)
	order := pendingOrder(t, uuid.New(), product, 1)
	f.orders.On("FindByNumberForUpdate", ctx, order.OrderNumber).Return(order, nil)
	f.orders.On("Save", ctx, order).Return(nil)
	f.products.On("FindByIDForUpdate", ctx, product.ID).Return(nil, shared.ErrNotFound)

	h := NewPaymentConfirmedHandler(f.svc, zap.NewNop())
	assert.Equal(t, []string{payment.EventTypePaymentConfirmed}, h.EventTypes())

	event := &payment.PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(payment.EventTypePaymentConfirmed, payment.AggregateTypePaymentAddress, uuid.New()),
		OrderNumber:     order.OrderNumber,
	}
	require.NoError(t, h.Handle(ctx, event))
	assert.Equal(t, trade.OrderStatusPaid, order.Status)
	assert.Equal(t, "", order.ProductCredentials["credentials"])

	err := h.Handle(ctx, trade.NewOrderConfirmedEvent(order))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
}
