package handler

import (
	"net/http"
	"strings"
	"testing"

	paymentapp "github.com/cryptonexus/backend/internal/application/payment"
	tradeapp "github.com/cryptonexus/backend/internal/application/trade"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence"
	paymentinfra "github.com/cryptonexus/backend/internal/infrastructure/payment"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentFixture struct {
	orders  *orderFixture
	handler *PaymentHandler
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	orders := newOrderFixture(t, nil)
	db := orders.db
	service := paymentapp.NewPaymentService(paymentapp.PaymentServiceConfig{
		AddressRepo:    persistence.NewGormPaymentAddressRepository(db),
		EscrowRepo:     persistence.NewGormEscrowRepository(db),
		WebhookRepo:    persistence.NewGormWebhookRepository(db),
		OrderRepo:      persistence.NewGormOrderRepository(db),
		TxManager:      persistence.NewGormTransactionManager(db),
		EventPublisher: orders.publisher,
		Bitcoin:        paymentinfra.NewMockGateway(testWebhookSecret, "http://localhost", zap.NewNop()),
		SiteURL:        "http://localhost",
		Logger:         zap.NewNop(),
	})
	return &paymentFixture{orders: orders, handler: NewPaymentHandler(service)}
}

func (f *paymentFixture) engine(userID uuid.UUID, userType string) *gin.Engine {
	r := newTestRouter(&userID, userType)
	r.POST("/payments/create", f.handler.Create)
	r.GET("/payments/status/:order_id", f.handler.Status)
	r.POST("/payments/escrow/:order_id", f.handler.EscrowAction)
	r.GET("/payments/currencies", f.handler.Currencies)
	r.GET("/payments/admin/escrows", f.handler.AdminListEscrows)
	r.GET("/payments/admin/escrows/:id", f.handler.AdminGetEscrow)
	r.POST("/payments/admin/escrows/:id", f.handler.AdminEscrowAction)
	r.GET("/payments/admin/analytics", f.handler.Analytics)
	return r
}

// bitcoinOrder places an escrowed BTC order that has no payment address yet
func (f *paymentFixture) bitcoinOrder(t *testing.T, buyerID uuid.UUID) tradeapp.OrderResponse {
	t.Helper()
	product := f.orders.listing(t, uuid.New(), 3)
	w := doRequest(f.orders.engine(buyerID, "buyer"), http.MethodPost, "/orders", map[string]any{
		"product_id":      product.ID,
		"quantity":        1,
		"crypto_currency": "btc",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order tradeapp.OrderResponse
	decodeData(t, w, &order)
	return order
}

func TestPaymentHandler_ManualCreate(t *testing.T) {
	f := newPaymentFixture(t)
	buyerID := uuid.New()
	order := f.bitcoinOrder(t, buyerID)
	buyer := f.engine(buyerID, "buyer")
	body := map[string]any{"order_id": order.OrderID}

	w := doRequest(f.engine(uuid.New(), "buyer"), http.MethodPost, "/payments/create", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(buyer, http.MethodPost, "/payments/create", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var status paymentapp.PaymentStatusResponse
	decodeData(t, w, &status)
	assert.Equal(t, order.OrderID, status.OrderID)
	assert.Equal(t, "BTC", status.CryptoCurrency)
	assert.True(t, strings.HasPrefix(status.PaymentAddress, "tb1q"), status.PaymentAddress)
	assert.Equal(t, "mock_invoice_"+order.OrderID, status.BTCPayInvoiceID)
	assert.True(t, order.TotalAmount.Equal(status.ExpectedAmount))

	w = doRequest(buyer, http.MethodPost, "/payments/create", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeAlreadyExists, decodeResponse(t, w).Error.Code)

	w = doRequest(buyer, http.MethodPost, "/payments/create", map[string]any{"order_id": "ORD-MISSING"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(buyer, http.MethodPost, "/payments/create", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_StatusAndEscrow(t *testing.T) {
	f := newPaymentFixture(t)
	buyerID := uuid.New()
	order := f.bitcoinOrder(t, buyerID)
	buyer := f.engine(buyerID, "buyer")
	statusPath := "/payments/status/" + order.OrderID
	escrowPath := "/payments/escrow/" + order.OrderID

	w := doRequest(buyer, http.MethodGet, statusPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no address allocated yet")

	w = doRequest(buyer, http.MethodPost, escrowPath, map[string]any{"action": "release"})
	assert.Equal(t, http.StatusNotFound, w.Code, "no escrow allocated yet")

	require.Equal(t, http.StatusCreated,
		doRequest(buyer, http.MethodPost, "/payments/create", map[string]any{"order_id": order.OrderID}).Code)

	w = doRequest(buyer, http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status paymentapp.PaymentStatusResponse
	decodeData(t, w, &status)
	assert.Equal(t, "pending", status.Status)

	w = doRequest(f.engine(uuid.New(), "buyer"), http.MethodGet, statusPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "strangers cannot see the payment")

	w = doRequest(buyer, http.MethodPost, escrowPath, map[string]any{"action": "refund"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(buyer, http.MethodPost, escrowPath, map[string]any{"action": "release"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "unfunded escrow cannot be released")
	assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
}

func TestPaymentHandler_Currencies(t *testing.T) {
	f := newPaymentFixture(t)

	w := doRequest(f.engine(uuid.New(), "buyer"), http.MethodGet, "/payments/currencies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp paymentapp.CurrenciesResponse
	decodeData(t, w, &resp)
	symbols := make([]string, 0, len(resp.SupportedCurrencies))
	for _, c := range resp.SupportedCurrencies {
		symbols = append(symbols, string(c.Symbol))
	}
	assert.ElementsMatch(t, []string{"BTC", "XMR"}, symbols)
}

func TestPaymentHandler_Admin(t *testing.T) {
	f := newPaymentFixture(t)
	buyerID := uuid.New()
	order := f.bitcoinOrder(t, buyerID)
	require.Equal(t, http.StatusCreated, doRequest(f.engine(buyerID, "buyer"), http.MethodPost,
		"/payments/create", map[string]any{"order_id": order.OrderID}).Code)
	admin := f.engine(uuid.New(), "admin")

	for _, path := range []string{"/payments/admin/escrows", "/payments/admin/analytics"} {
		w := doRequest(f.engine(buyerID, "buyer"), http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	w := doRequest(admin, http.MethodGet, "/payments/admin/escrows?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(admin, http.MethodGet, "/payments/admin/escrows?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var escrows []paymentapp.EscrowResponse
	decodeData(t, w, &escrows)
	require.Len(t, escrows, 1)
	assert.Equal(t, order.OrderID, escrows[0].OrderID)
	assert.Equal(t, buyerID, escrows[0].BuyerID)
	require.NotNil(t, decodeResponse(t, w).Meta)
	assert.Equal(t, int64(1), decodeResponse(t, w).Meta.Total)

	w = doRequest(admin, http.MethodGet, "/payments/admin/escrows/"+escrows[0].ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(admin, http.MethodGet, "/payments/admin/escrows/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(admin, http.MethodGet, "/payments/admin/escrows/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(admin, http.MethodPost, "/payments/admin/escrows/"+escrows[0].ID.String(),
		map[string]any{"action": "confiscate"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(admin, http.MethodPost, "/payments/admin/escrows/"+escrows[0].ID.String(),
		map[string]any{"action": "release", "admin_notes": "early release"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending escrow holds no funds")

	w = doRequest(admin, http.MethodGet, "/payments/admin/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analytics paymentapp.AnalyticsResponse
	decodeData(t, w, &analytics)
	assert.Equal(t, int64(1), analytics.Payments.Total)
	assert.Equal(t, int64(1), analytics.Payments.Pending)
	assert.Equal(t, int64(1), analytics.Escrows.Total)
}
