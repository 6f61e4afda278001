package handler

import (
	"io"

	paymentapp "github.com/cryptonexus/backend/internal/application/payment"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// maxWebhookBodySize caps a gateway notification body
const maxWebhookBodySize = 1 << 20

// PaymentCallbackHandler handles payment gateway webhooks.
// These endpoints are called by BTCPay Server and the Monero wallet notifier
// and do not require authentication.
type PaymentCallbackHandler struct {
	BaseHandler
	paymentService *paymentapp.PaymentService
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler
func NewPaymentCallbackHandler(paymentService *paymentapp.PaymentService) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		paymentService: paymentService,
	}
}

// HandleBTCPayWebhook godoc
//
//	@ID				handleBTCPayWebhook
//	@Summary		Handle a BTCPay Server webhook
//	@Description	Verifies the BTCPay-Sig HMAC over the raw body and applies the invoice event. Retries are acknowledged as duplicates.
//	@Tags			payment-webhooks
//	@Accept			json
//	@Produce		json
//	@Param			BTCPay-Sig	header		string	true	"sha256=<hex HMAC>"
//	@Success		200			{object}	APIResponse[paymentapp.WebhookResult]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Router			/payments/webhooks/btcpay [post]
func (h *PaymentCallbackHandler) HandleBTCPayWebhook(c *gin.Context) {
	raw, ok := h.readBody(c)
	if !ok {
		return
	}

	result, err := h.paymentService.HandleBTCPayWebhook(c.Request.Context(), raw, c.GetHeader("BTCPay-Sig"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// HandleMoneroWebhook godoc
//
//	@ID				handleMoneroWebhook
//	@Summary		Handle a Monero transfer notification
//	@Description	Records a transfer to a payment subaddress. Repeated notifications at the same depth are duplicates.
//	@Tags			payment-webhooks
//	@Accept			json
//	@Produce		json
//	@Param			request	body		paymentapp.MoneroNotification	true	"Transfer"
//	@Success		200		{object}	APIResponse[paymentapp.WebhookResult]
//	@Failure		400		{object}	ErrorResponse
//	@Router			/payments/webhooks/monero [post]
func (h *PaymentCallbackHandler) HandleMoneroWebhook(c *gin.Context) {
	raw, ok := h.readBody(c)
	if !ok {
		return
	}

	var n paymentapp.MoneroNotification
	if err := binding.JSON.BindBody(raw, &n); err != nil {
		h.bindError(c, err)
		return
	}

	result, err := h.paymentService.HandleMoneroWebhook(c.Request.Context(), raw, n)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// readBody returns the raw request body, which signature checks and the
// stored webhook payload need byte for byte
func (h *PaymentCallbackHandler) readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return nil, false
	}
	if len(raw) == 0 {
		h.BadRequest(c, "Empty request body")
		return nil, false
	}
	return raw, true
}
