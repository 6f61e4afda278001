package trade

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/cryptonexus/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentAddressCreator opens the payment window of a new order and closes
// it again when the order ends first. It is implemented by the payment
// application service.
type PaymentAddressCreator interface {
	CreateForOrder(ctx context.Context, order *trade.Order) (address string, expiresAt time.Time, err error)
	CloseForOrder(ctx context.Context, orderID uuid.UUID) error
}

// expireBatchSize bounds how many overdue orders one ExpireUnpaid run handles
const expireBatchSize = 100

// recentOrdersLimit is the number of orders shown on the admin dashboard
const recentOrdersLimit = 10

// OrderService handles the order lifecycle from purchase to settlement
type OrderService struct {
	orderRepo      trade.OrderRepository
	productRepo    catalog.ProductRepository
	txManager      shared.TransactionManager
	eventPublisher shared.EventPublisher
	payments       PaymentAddressCreator
	disputeWindow  time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orderRepo trade.OrderRepository,
	productRepo catalog.ProductRepository,
	txManager shared.TransactionManager,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		txManager:      txManager,
		eventPublisher: eventPublisher,
		disputeWindow:  trade.DefaultDisputeWindow,
		logger:         logger,
		now:            time.Now,
	}
}

// SetPaymentAddressCreator wires the payment context. Without it orders
// are created without a payment address.
func (s *OrderService) SetPaymentAddressCreator(p PaymentAddressCreator) {
	s.payments = p
}

// SetDisputeWindow overrides how long after delivery a dispute may be opened
func (s *OrderService) SetDisputeWindow(d time.Duration) {
	if d > 0 {
		s.disputeWindow = d
	}
}

// Create reserves stock, snapshots the price and opens a payment address.
// A failure to open the address is logged and the order is still returned.
func (s *OrderService) Create(ctx context.Context, actor shared.Actor, req CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBuyerID, actor.UserID.String(),
		telemetry.SpanAttrProductID, req.ProductID.String(),
		telemetry.SpanAttrCurrency, req.CryptoCurrency,
	)

	currency, err := shared.ParseCryptoCurrency(req.CryptoCurrency)
	if err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	useEscrow := true
	if req.UseEscrow != nil {
		useEscrow = *req.UseEscrow
	}

	var order *trade.Order
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if !product.IsAvailable() {
			return shared.NewDomainError("PRODUCT_UNAVAILABLE", "Product is not available for purchase")
		}

		order, err = trade.NewOrder(actor.UserID, trade.ProductSnapshot{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Title:     product.Title,
			UnitPrice: product.FinalPrice(),
		}, quantity, currency, useEscrow, req.BuyerNotes)
		if err != nil {
			return err
		}
		if err := product.Reserve(quantity); err != nil {
			return err
		}
		if err := s.productRepo.Save(ctx, product); err != nil {
			return err
		}
		return s.saveAndPublish(ctx, order)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderNumber, order.OrderNumber,
		telemetry.SpanAttrVendorID, order.VendorID.String(),
		telemetry.SpanAttrAmount, order.TotalAmount.String(),
	)

	s.logger.Info("Order created",
		zap.String("order_id", order.OrderNumber),
		zap.String("buyer_id", actor.UserID.String()),
		zap.String("currency", string(currency)))

	order = s.attachPayment(ctx, order)
	resp := ToOrderResponse(order)
	return &resp, nil
}

// attachPayment opens the payment address of a freshly created order and
// returns the order as stored afterwards. The gateway is called outside any
// transaction, so the order is locked and re-read before the address is
// recorded; if it was cancelled meanwhile the address is closed instead.
func (s *OrderService) attachPayment(ctx context.Context, order *trade.Order) *trade.Order {
	if s.payments == nil {
		return order
	}
	address, expiresAt, err := s.payments.CreateForOrder(ctx, order)
	if err != nil {
		s.logger.Error("Failed to create payment address",
			zap.String("order_id", order.OrderNumber), zap.Error(err))
		return order
	}

	current := order
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.orderRepo.FindByNumberForUpdate(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		current = locked
		if locked.Status != trade.OrderStatusPendingPayment {
			return nil
		}
		locked.AttachPayment(address, expiresAt)
		return s.orderRepo.Save(ctx, locked)
	})
	if err != nil {
		s.logger.Error("Failed to store payment address on order",
			zap.String("order_id", order.OrderNumber), zap.Error(err))
		return order
	}

	if current.Status != trade.OrderStatusPendingPayment {
		s.logger.Warn("Order closed before its payment address was attached",
			zap.String("order_id", order.OrderNumber),
			zap.String("status", string(current.Status)))
		if err := s.payments.CloseForOrder(ctx, order.ID); err != nil {
			s.logger.Error("Failed to close payment address of closed order",
				zap.String("order_id", order.OrderNumber), zap.Error(err))
		}
	}
	return current
}

// List returns the orders visible to the caller: everything for admins,
// sales for vendors and purchases for buyers
func (s *OrderService) List(ctx context.Context, actor shared.Actor, q OrderListQuery) (*shared.Paginated[OrderResponse], error) {
	filter := trade.OrderFilter{Page: q.Page, PageSize: q.PageSize}
	switch {
	case actor.IsAdmin():
	case actor.IsVendor():
		filter.VendorID = &actor.UserID
	default:
		filter.BuyerID = &actor.UserID
	}
	if q.Status != "" {
		status := trade.OrderStatus(q.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown order status: "+q.Status)
		}
		filter.Status = &status
	}

	orders, total, err := s.orderRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(toOrderResponses(orders), total, max(q.Page, 1), filter.Limit())
	return &page, nil
}

// Get returns an order the caller may see. Other orders are NOT_FOUND.
func (s *OrderService) Get(ctx context.Context, actor shared.Actor, orderNumber string) (*OrderResponse, error) {
	order, err := s.visible(ctx, actor, orderNumber)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// Order returns the domain order for callers that render it, such as receipts
func (s *OrderService) Order(ctx context.Context, actor shared.Actor, orderNumber string) (*trade.Order, error) {
	return s.visible(ctx, actor, orderNumber)
}

// Cancel aborts an unpaid order and releases its stock. Buyer or admin.
func (s *OrderService) Cancel(ctx context.Context, actor shared.Actor, orderNumber string) (*OrderResponse, error) {
	return s.mutate(ctx, actor, orderNumber, func(ctx context.Context, order *trade.Order) error {
		if order.BuyerID != actor.UserID && !actor.IsAdmin() {
			return shared.NewDomainError("FORBIDDEN", "Only the buyer can cancel this order")
		}
		if err := order.Cancel(s.now()); err != nil {
			return err
		}
		return s.releaseStock(ctx, order)
	})
}

// Deliver hands credentials to the buyer. Vendor of the order only.
func (s *OrderService) Deliver(ctx context.Context, actor shared.Actor, orderNumber string, req DeliverOrderRequest) (*OrderResponse, error) {
	return s.mutate(ctx, actor, orderNumber, func(ctx context.Context, order *trade.Order) error {
		if order.VendorID != actor.UserID {
			return shared.NewDomainError("FORBIDDEN", "Only the vendor can deliver this order")
		}
		return order.Deliver(s.now(), req.Credentials, req.Notes)
	})
}

// Confirm accepts a delivered order. Buyer of the order only.
func (s *OrderService) Confirm(ctx context.Context, actor shared.Actor, orderNumber string) (*OrderResponse, error) {
	return s.mutate(ctx, actor, orderNumber, func(ctx context.Context, order *trade.Order) error {
		if order.BuyerID != actor.UserID {
			return shared.NewDomainError("FORBIDDEN", "Only the buyer can confirm this order")
		}
		return order.Confirm(s.now())
	})
}

// Dispute contests a paid or delivered order. Buyer of the order only.
func (s *OrderService) Dispute(ctx context.Context, actor shared.Actor, orderNumber string, req DisputeOrderRequest) (*OrderResponse, error) {
	return s.mutate(ctx, actor, orderNumber, func(ctx context.Context, order *trade.Order) error {
		if order.BuyerID != actor.UserID {
			return shared.NewDomainError("FORBIDDEN", "Only the buyer can dispute this order")
		}
		return order.OpenDispute(actor.UserID, req.Reason, req.Evidence, s.now(), s.disputeWindow)
	})
}

// ResolveDispute applies an admin ruling to a disputed order
func (s *OrderService) ResolveDispute(ctx context.Context, actor shared.Actor, orderNumber string, req ResolveDisputeRequest) (*OrderResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Only administrators can resolve disputes")
	}
	return s.mutate(ctx, actor, orderNumber, func(ctx context.Context, order *trade.Order) error {
		return order.ResolveDispute(actor.UserID, trade.DisputeResolution(req.Resolution), req.Notes, s.now())
	})
}

// ConfirmPayment marks an order paid on an administrator's word
func (s *OrderService) ConfirmPayment(ctx context.Context, actor shared.Actor, orderNumber string) (*OrderResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Only administrators can confirm payments manually")
	}
	return s.ConfirmPaymentSuccess(ctx, orderNumber)
}

// ConfirmPaymentSuccess marks an order paid, copies the product
// credentials onto it and counts the sale. It is a no-op for paid orders.
func (s *OrderService) ConfirmPaymentSuccess(ctx context.Context, orderNumber string) (*OrderResponse, error) {
	var order *trade.Order
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByNumberForUpdate(ctx, orderNumber)
		if err != nil {
			return err
		}
		if order.Status.IsPaidOrLater() {
			return nil
		}

		product, err := s.productRepo.FindByIDForUpdate(ctx, order.ProductID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		credentials, deliveryMethod := "", string(catalog.DeliveryManual)
		if product != nil {
			credentials, deliveryMethod = product.Credentials, string(product.DeliveryMethod)
		} else {
			s.logger.Warn("Paid order references a deleted product",
				zap.String("order_id", orderNumber),
				zap.String("product_id", order.ProductID.String()))
		}
		escrowStatus := ""
		if order.UseEscrow {
			escrowStatus = "held"
		}

		changed, err := order.MarkPaid(s.now(), credentials, deliveryMethod, escrowStatus)
		if err != nil || !changed {
			return err
		}
		if product != nil {
			product.RecordSale()
			if err := s.productRepo.Save(ctx, product); err != nil {
				return err
			}
		}
		return s.saveAndPublish(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Order payment confirmed", zap.String("order_id", orderNumber))
	resp := ToOrderResponse(order)
	return &resp, nil
}

// FindByPaymentAddress returns the order paying into address
func (s *OrderService) FindByPaymentAddress(ctx context.Context, actor shared.Actor, address string) (*OrderResponse, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Address is required")
	}
	order, err := s.orderRepo.FindByPaymentAddress(ctx, address)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Order not found for this payment address")
		}
		return nil, err
	}
	if !order.CanView(actor.UserID, actor.IsAdmin()) {
		return nil, shared.NewDomainError("NOT_FOUND", "Order not found for this payment address")
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// GetCredentials returns the delivered credentials to the buyer or vendor
// of a paid order
func (s *OrderService) GetCredentials(ctx context.Context, actor shared.Actor, orderNumber string) (*OrderCredentialsResponse, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if err := order.CanAccessCredentials(actor.UserID); err != nil {
		return nil, err
	}
	return &OrderCredentialsResponse{OrderID: order.OrderNumber, Credentials: order.ProductCredentials}, nil
}

// AdminDashboard returns order counters and the most recent orders
func (s *OrderService) AdminDashboard(ctx context.Context, actor shared.Actor) (*DashboardResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.NewDomainError("FORBIDDEN", "Admin access required")
	}
	stats, err := s.orderRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.orderRepo.FindRecent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, err
	}
	return &DashboardResponse{OrderStats: stats, RecentOrders: toOrderResponses(recent)}, nil
}

// ExpireUnpaid closes orders whose payment window has passed and returns
// their stock. Each expiry publishes OrderExpired so the payment side shuts
// the address. It returns the number of orders expired.
func (s *OrderService) ExpireUnpaid(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.orderRepo.FindOverdueUnpaid(ctx, now, expireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range overdue {
		changed := false
		err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			order, err := s.orderRepo.FindByNumberForUpdate(ctx, candidate.OrderNumber)
			if err != nil {
				return err
			}
			if !order.IsPaymentOverdue(now) {
				return nil
			}
			changed = true
			if err := order.Expire(now); err != nil {
				return err
			}
			if err := s.releaseStock(ctx, order); err != nil {
				return err
			}
			return s.saveAndPublish(ctx, order)
		})
		if err != nil {
			s.logger.Error("Failed to expire order",
				zap.String("order_id", candidate.OrderNumber), zap.Error(err))
			continue
		}
		if changed {
			expired++
		}
	}
	if expired > 0 {
		s.logger.Info("Expired unpaid orders", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *OrderService) visible(ctx context.Context, actor shared.Actor, orderNumber string) (*trade.Order, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !order.CanView(actor.UserID, actor.IsAdmin()) {
		return nil, shared.ErrNotFound
	}
	return order, nil
}

// mutate loads and locks an order the caller can see, applies fn and saves
// the order together with its events
func (s *OrderService) mutate(ctx context.Context, actor shared.Actor, orderNumber string, fn func(ctx context.Context, order *trade.Order) error) (*OrderResponse, error) {
	var order *trade.Order
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByNumberForUpdate(ctx, orderNumber)
		if err != nil {
			return err
		}
		if !order.CanView(actor.UserID, actor.IsAdmin()) {
			return shared.ErrNotFound
		}
		if err := fn(ctx, order); err != nil {
			return err
		}
		return s.saveAndPublish(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Order updated",
		zap.String("order_id", order.OrderNumber),
		zap.String("status", string(order.Status)),
		zap.String("actor_id", actor.UserID.String()))
	resp := ToOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) releaseStock(ctx context.Context, order *trade.Order) error {
	product, err := s.productRepo.FindByIDForUpdate(ctx, order.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Cannot release stock of a deleted product",
				zap.String("order_id", order.OrderNumber),
				zap.String("product_id", order.ProductID.String()))
			return nil
		}
		return err
	}
	product.Release(order.Quantity)
	return s.productRepo.Save(ctx, product)
}

func (s *OrderService) saveAndPublish(ctx context.Context, order *trade.Order) error {
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return err
	}
	if events := order.GetDomainEvents(); len(events) > 0 && s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			return err
		}
	}
	order.ClearDomainEvents()
	return nil
}
