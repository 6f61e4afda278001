package handler

import (
	paymentapp "github.com/cryptonexus/backend/internal/application/payment"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment and escrow endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *paymentapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *paymentapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// Create godoc
// @ID           createPayment
// @Summary      Create a payment address
// @Description  Allocates a payment address for an order that has none yet
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body paymentapp.CreatePaymentRequest true "Order"
// @Success      201 {object} APIResponse[paymentapp.PaymentStatusResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/create [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req paymentapp.CreatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	status, err := h.paymentService.ManualCreate(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, status)
}

// Status godoc
// @ID           getPaymentStatus
// @Summary      Get the payment status of an order
// @Tags         payments
// @Produce      json
// @Param        order_id path string true "Order number"
// @Success      200 {object} APIResponse[paymentapp.PaymentStatusResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/status/{order_id} [get]
func (h *PaymentHandler) Status(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	status, err := h.paymentService.Status(c.Request.Context(), actor, c.Param("order_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}

// EscrowAction godoc
// @ID           escrowAction
// @Summary      Release or dispute an order's escrow
// @Description  The buyer may release or dispute; the vendor may only dispute
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        order_id path string true "Order number"
// @Param        request body paymentapp.EscrowActionRequest true "Action"
// @Success      200 {object} APIResponse[paymentapp.EscrowResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/escrow/{order_id} [post]
func (h *PaymentHandler) EscrowAction(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req paymentapp.EscrowActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	escrow, err := h.paymentService.EscrowAction(c.Request.Context(), actor, c.Param("order_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, escrow)
}

// Currencies godoc
// @ID           listPaymentCurrencies
// @Summary      List supported currencies
// @Tags         payments
// @Produce      json
// @Success      200 {object} APIResponse[paymentapp.CurrenciesResponse]
// @Router       /payments/currencies [get]
func (h *PaymentHandler) Currencies(c *gin.Context) {
	h.Success(c, h.paymentService.Currencies())
}

// AdminListEscrows godoc
// @ID           adminListEscrows
// @Summary      List escrows
// @Tags         payments-admin
// @Produce      json
// @Param        status query string false "Escrow status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]paymentapp.EscrowResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/admin/escrows [get]
func (h *PaymentHandler) AdminListEscrows(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q paymentapp.EscrowListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.paymentService.AdminListEscrows(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// AdminGetEscrow godoc
// @ID           adminGetEscrow
// @Summary      Get an escrow
// @Tags         payments-admin
// @Produce      json
// @Param        id path string true "Escrow ID"
// @Success      200 {object} APIResponse[paymentapp.EscrowResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/admin/escrows/{id} [get]
func (h *PaymentHandler) AdminGetEscrow(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	escrow, err := h.paymentService.AdminGetEscrow(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, escrow)
}

// AdminEscrowAction godoc
// @ID           adminEscrowAction
// @Summary      Release or refund an escrow
// @Tags         payments-admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Escrow ID"
// @Param        request body paymentapp.AdminEscrowActionRequest true "Ruling"
// @Success      200 {object} APIResponse[paymentapp.EscrowResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/admin/escrows/{id} [post]
func (h *PaymentHandler) AdminEscrowAction(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req paymentapp.AdminEscrowActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	escrow, err := h.paymentService.AdminEscrowAction(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, escrow)
}

// Analytics godoc
// @ID           paymentAnalytics
// @Summary      Payment analytics
// @Tags         payments-admin
// @Produce      json
// @Success      200 {object} APIResponse[paymentapp.AnalyticsResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/admin/analytics [get]
func (h *PaymentHandler) Analytics(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	analytics, err := h.paymentService.Analytics(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, analytics)
}
