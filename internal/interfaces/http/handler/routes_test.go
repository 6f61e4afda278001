package handler

import (
	"net/http"
	"testing"

	"github.com/cryptonexus/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainGroups_RegisterWithoutConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	noop := func(c *gin.Context) { c.Next() }

	r := router.NewRouter(engine)
	for _, group := range (Handlers{}).DomainGroups(RouteMiddleware{Auth: noop, OptionalAuth: noop}) {
		r.Register(group)
	}
	require.NotPanics(t, r.Setup)

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"POST /api/v1/auth/register",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/logout",
		"POST /api/v1/auth/refresh",
		"GET /api/v1/profile",
		"PUT /api/v1/profile",
		"POST /api/v1/profile/change-password",
		"GET /api/v1/users",
		"GET /api/v1/products",
		"POST /api/v1/products",
		"GET /api/v1/products/buyer/listings",
		"GET /api/v1/products/vendor/products",
		"GET /api/v1/products/vendor/export",
		"GET /api/v1/products/:id",
		"PUT /api/v1/products/:id",
		"DELETE /api/v1/products/:id",
		"GET /api/v1/products/categories",
		"GET /api/v1/products/categories/:id/subcategories",
		"POST /api/v1/products/bulk-upload/csv",
		"POST /api/v1/products/bulk-upload/simple",
		"GET /api/v1/products/bulk-upload/template",
		"POST /api/v1/products/:id/images",
		"GET /api/v1/products/:id/reveal-credentials",
		"POST /api/v1/products/:id/track-view",
		"GET /api/v1/products/admin/all",
		"POST /api/v1/products/admin/:id/approve",
		"POST /api/v1/products/admin/:id/reject",
		"POST /api/v1/products/admin/categories",
		"POST /api/v1/products/admin/categories/:id/subcategories",
		"GET /api/v1/orders",
		"POST /api/v1/orders",
		"GET /api/v1/orders/:order_id",
		"POST /api/v1/orders/:order_id/cancel",
		"POST /api/v1/orders/:order_id/deliver",
		"POST /api/v1/orders/:order_id/confirm",
		"POST /api/v1/orders/:order_id/dispute",
		"POST /api/v1/orders/:order_id/resolve-dispute",
		"POST /api/v1/orders/:order_id/confirm-payment",
		"GET /api/v1/orders/:order_id/credentials",
		"GET /api/v1/orders/:order_id/receipt",
		"POST /api/v1/orders/find-by-payment-address",
		"GET /api/v1/orders/admin/dashboard",
		"POST /api/v1/payments/create",
		"GET /api/v1/payments/status/:order_id",
		"POST /api/v1/payments/escrow/:order_id",
		"POST /api/v1/payments/webhooks/btcpay",
		"POST /api/v1/payments/webhooks/monero",
		"GET /api/v1/payments/currencies",
		"GET /api/v1/payments/admin/escrows",
		"GET /api/v1/payments/admin/escrows/:id",
		"POST /api/v1/payments/admin/escrows/:id",
		"GET /api/v1/payments/admin/analytics",
		"GET /api/v1/vendors/applications",
		"POST /api/v1/vendors/applications",
		"POST /api/v1/vendors/applications/:id/approve",
		"POST /api/v1/vendors/applications/:id/reject",
		"GET /api/v1/vendors/applications/check/:username",
		"POST /api/v1/vendors/applications/documents",
		"GET /api/v1/vendors/applications/:id/documents",
		"GET /api/v1/messaging/conversations",
		"POST /api/v1/messaging/conversations",
		"GET /api/v1/messaging/conversations/:id",
		"GET /api/v1/messaging/conversations/:id/messages",
		"POST /api/v1/messaging/conversations/:id/messages",
		"POST /api/v1/messaging/conversations/:id/mark-read",
		"GET /api/v1/messaging/conversations/product/:product_id",
		"POST /api/v1/messaging/conversations/create-product",
		"GET /api/v1/notifications",
		"POST /api/v1/notifications/:id/read",
		"GET /api/v1/admin/outbox/stats",
		"POST /api/v1/admin/outbox/retry",
		"GET /api/v1/system/info",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestCatalogRoutes_PublicAndProtected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	allow := func(c *gin.Context) { c.Next() }

	f := newCatalogFixture()
	groups := CatalogRoutes(f.handler, NewCategoryHandler(nil), NewProductImportHandler(nil),
		RouteMiddleware{Auth: deny, OptionalAuth: allow})
	r := router.NewRouter(engine)
	for _, g := range groups {
		r.Register(g)
	}
	r.Setup()

	// Protected routes stop at the auth middleware
	w := doRequest(engine, http.MethodGet, "/api/v1/products/vendor/products", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doRequest(engine, http.MethodPost, "/api/v1/products", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Public reads get through without a token
	w = doRequest(engine, http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
