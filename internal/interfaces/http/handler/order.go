package handler

import (
	"context"
	"net/http"

	tradeapp "github.com/cryptonexus/backend/internal/application/trade"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/cryptonexus/backend/internal/infrastructure/logger"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReceiptRenderer turns an order into a printable PDF receipt
type ReceiptRenderer interface {
	RenderReceipt(ctx context.Context, order *trade.Order) ([]byte, error)
}

// OrderHandler handles order lifecycle endpoints
type OrderHandler struct {
	BaseHandler
	orderService *tradeapp.OrderService
	receipts     ReceiptRenderer
}

// NewOrderHandler creates a new OrderHandler. receipts may be nil, in which
// case the receipt endpoint answers 503.
func NewOrderHandler(orderService *tradeapp.OrderService, receipts ReceiptRenderer) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		receipts:     receipts,
	}
}

// List godoc
// @ID           listOrders
// @Summary      List orders
// @Description  Buyers see their purchases, vendors their sales, admins everything
// @Tags         orders
// @Produce      json
// @Param        status query string false "Order status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]tradeapp.OrderResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q tradeapp.OrderListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.orderService.List(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// Create godoc
// @ID           createOrder
// @Summary      Place an order
// @Description  Reserves stock and allocates a payment address for the chosen currency
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body tradeapp.CreateOrderRequest true "Order"
// @Success      201 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req tradeapp.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, order)
}

// Get godoc
// @ID           getOrder
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order number"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), actor, c.Param("order_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// Cancel godoc
// @ID           cancelOrder
// @Summary      Cancel an unpaid order
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order number"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error) {
		return h.orderService.Cancel(ctx, actor, orderNumber)
	})
}

// Deliver godoc
// @ID           deliverOrder
// @Summary      Deliver a paid order
// @Description  The vendor hands over credentials and notes
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order_id path string true "Order number"
// @Param        request body tradeapp.DeliverOrderRequest false "Delivery"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/deliver [post]
func (h *OrderHandler) Deliver(c *gin.Context) {
	var req tradeapp.DeliverOrderRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error) {
		return h.orderService.Deliver(ctx, actor, orderNumber, req)
	})
}

// Confirm godoc
// @ID           confirmOrder
// @Summary      Confirm receipt
// @Description  The buyer accepts the delivery, which releases escrow to the vendor
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order number"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/confirm [post]
func (h *OrderHandler) Confirm(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error) {
		return h.orderService.Confirm(ctx, actor, orderNumber)
	})
}

// Dispute godoc
// @ID           disputeOrder
// @Summary      Open a dispute
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order_id path string true "Order number"
// @Param        request body tradeapp.DisputeOrderRequest true "Dispute"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/dispute [post]
func (h *OrderHandler) Dispute(c *gin.Context) {
	var req tradeapp.DisputeOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error) {
		return h.orderService.Dispute(ctx, actor, orderNumber, req)
	})
}

// ResolveDispute godoc
// @ID           resolveOrderDispute
// @Summary      Resolve a dispute
// @Description  Admin ruling: buyer_favor refunds, vendor_favor releases escrow
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order_id path string true "Order number"
// @Param        request body tradeapp.ResolveDisputeRequest true "Ruling"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/resolve-dispute [post]
func (h *OrderHandler) ResolveDispute(c *gin.Context) {
	var req tradeapp.ResolveDisputeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error) {
		return h.orderService.ResolveDispute(ctx, actor, orderNumber, req)
	})
}

// ConfirmPayment godoc
// @ID           confirmOrderPayment
// @Summary      Confirm payment manually
// @Description  Admin override that marks the order paid
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order number"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/confirm-payment [post]
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error) {
		return h.orderService.ConfirmPayment(ctx, actor, orderNumber)
	})
}

// Credentials godoc
// @ID           getOrderCredentials
// @Summary      Get delivered credentials
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order number"
// @Success      200 {object} APIResponse[tradeapp.OrderCredentialsResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/credentials [get]
func (h *OrderHandler) Credentials(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	creds, err := h.orderService.GetCredentials(c.Request.Context(), actor, c.Param("order_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, creds)
}

// FindByPaymentAddress godoc
// @ID           findOrderByPaymentAddress
// @Summary      Find an order by payment address
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body tradeapp.FindByPaymentAddressRequest true "Address"
// @Success      200 {object} APIResponse[tradeapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/find-by-payment-address [post]
func (h *OrderHandler) FindByPaymentAddress(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req tradeapp.FindByPaymentAddressRequest
	if !h.bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.FindByPaymentAddress(c.Request.Context(), actor, req.Address)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// AdminDashboard godoc
// @ID           getOrderDashboard
// @Summary      Order dashboard
// @Description  Order counters per status and the most recent orders
// @Tags         orders-admin
// @Produce      json
// @Success      200 {object} APIResponse[tradeapp.DashboardResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/admin/dashboard [get]
func (h *OrderHandler) AdminDashboard(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	dashboard, err := h.orderService.AdminDashboard(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dashboard)
}

// Receipt godoc
// @ID           getOrderReceipt
// @Summary      Download an order receipt
// @Description  80mm PDF receipt of the order
// @Tags         orders
// @Produce      application/pdf
// @Param        order_id path string true "Order number"
// @Success      200 {file} file
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{order_id}/receipt [get]
func (h *OrderHandler) Receipt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if h.receipts == nil {
		h.HandleError(c, shared.NewDomainError("RECEIPT_UNAVAILABLE", "Receipt rendering is not enabled"))
		return
	}

	ctx := c.Request.Context()
	order, err := h.orderService.Order(ctx, actor, c.Param("order_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	pdf, err := h.receipts.RenderReceipt(ctx, order)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to render receipt",
			zap.String("order_id", order.OrderNumber), zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, "Failed to render receipt")
		return
	}

	c.Header("Content-Disposition", `inline; filename="receipt-`+order.OrderNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// transition runs one state change of the order named in the path
func (h *OrderHandler) transition(c *gin.Context, fn func(ctx context.Context, actor shared.Actor, orderNumber string) (*tradeapp.OrderResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	order, err := fn(c.Request.Context(), actor, c.Param("order_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}
