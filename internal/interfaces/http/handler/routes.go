package handler

import (
	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/cryptonexus/backend/internal/interfaces/http/middleware"
	"github.com/cryptonexus/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// RouteMiddleware carries the authentication middleware the route groups
// are built with
type RouteMiddleware struct {
	// Auth rejects requests without a valid access token
	Auth gin.HandlerFunc
	// OptionalAuth attaches claims when a valid token is present
	OptionalAuth gin.HandlerFunc
	// AuthRateLimit guards credential endpoints; nil disables it
	AuthRateLimit gin.HandlerFunc
}

func (m RouteMiddleware) authLimited(h gin.HandlerFunc) []gin.HandlerFunc {
	if m.AuthRateLimit == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{m.AuthRateLimit, h}
}

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Products      *ProductHandler
	Categories    *CategoryHandler
	Bulk          *ProductImportHandler
	Orders        *OrderHandler
	Payments      *PaymentHandler
	Webhooks      *PaymentCallbackHandler
	Vendors       *VendorApplicationHandler
	Messaging     *MessagingHandler
	Notifications *NotificationHandler
	Outbox        *OutboxHandler
	System        *SystemHandler
}

// DomainGroups returns the route groups of every bounded context
func (h Handlers) DomainGroups(mw RouteMiddleware) []*router.DomainGroup {
	var groups []*router.DomainGroup
	groups = append(groups, IdentityRoutes(h.Auth, h.Users, mw)...)
	groups = append(groups, CatalogRoutes(h.Products, h.Categories, h.Bulk, mw)...)
	groups = append(groups, TradeRoutes(h.Orders, mw))
	groups = append(groups, PaymentRoutes(h.Payments, h.Webhooks, mw)...)
	groups = append(groups, VendorRoutes(h.Vendors, mw))
	groups = append(groups, MessagingRoutes(h.Messaging, mw))
	groups = append(groups, NotificationRoutes(h.Notifications, mw))
	groups = append(groups, OutboxRoutes(h.Outbox, mw))
	groups = append(groups, SystemRoutes(h.System))
	return groups
}

// IdentityRoutes creates the authentication, profile and user groups
func IdentityRoutes(auth *AuthHandler, users *UserHandler, mw RouteMiddleware) []*router.DomainGroup {
	authGroup := router.NewDomainGroup("auth", "/auth")
	authGroup.POST("/register", mw.authLimited(auth.Register)...)
	authGroup.POST("/login", mw.authLimited(auth.Login)...)
	authGroup.POST("/refresh", mw.authLimited(auth.RefreshToken)...)
	authGroup.POST("/logout", mw.Auth, auth.Logout)

	profile := router.NewDomainGroup("profile", "/profile")
	profile.Use(mw.Auth)
	profile.GET("", users.GetProfile)
	profile.PUT("", users.UpdateProfile)
	profile.POST("/change-password", users.ChangePassword)

	userGroup := router.NewDomainGroup("users", "/users")
	userGroup.Use(mw.Auth, middleware.RequireAdmin())
	userGroup.GET("", users.List)

	return []*router.DomainGroup{authGroup, profile, userGroup}
}

// CatalogRoutes creates the public and authenticated product groups. Both
// share the /products prefix.
func CatalogRoutes(products *ProductHandler, categories *CategoryHandler, bulk *ProductImportHandler, mw RouteMiddleware) []*router.DomainGroup {
	public := router.NewDomainGroup("catalog-public", "/products")
	public.Use(mw.OptionalAuth)
	public.GET("", products.List)
	public.GET("/buyer/listings", products.BuyerListings)
	public.GET("/categories", categories.List)
	public.GET("/categories/:id/subcategories", categories.ListSubCategories)
	public.GET("/:id", products.GetByID)
	public.POST("/:id/track-view", products.TrackView)

	catalog := router.NewDomainGroup("catalog", "/products")
	catalog.Use(mw.Auth)
	catalog.POST("", products.Create)
	catalog.PUT("/:id", products.Update)
	catalog.DELETE("/:id", products.Delete)
	catalog.GET("/:id/reveal-credentials", products.RevealCredentials)
	catalog.POST("/:id/images", products.RequestImageUpload)
	catalog.GET("/vendor/products", products.VendorProducts)
	vendorOnly := middleware.RequireUserType(auth.UserTypeVendor)
	catalog.GET("/vendor/export", vendorOnly, bulk.Export)
	catalog.POST("/bulk-upload/csv", vendorOnly, bulk.UploadCSV)
	catalog.POST("/bulk-upload/simple", vendorOnly, bulk.UploadSimple)
	catalog.GET("/bulk-upload/template", vendorOnly, bulk.Template)

	admin := catalog.Group("catalog-admin", "/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/all", products.AdminListAll)
	admin.POST("/:id/approve", products.Approve)
	admin.POST("/:id/reject", products.Reject)
	admin.POST("/categories", categories.Create)
	admin.POST("/categories/:id/subcategories", categories.CreateSubCategory)

	return []*router.DomainGroup{public, catalog}
}

// TradeRoutes creates the order group
func TradeRoutes(orders *OrderHandler, mw RouteMiddleware) *router.DomainGroup {
	group := router.NewDomainGroup("trade", "/orders")
	group.Use(mw.Auth)

	group.GET("", orders.List)
	group.POST("", orders.Create)
	group.POST("/find-by-payment-address", orders.FindByPaymentAddress)
	group.GET("/admin/dashboard", middleware.RequireAdmin(), orders.AdminDashboard)

	group.GET("/:order_id", orders.Get)
	group.GET("/:order_id/credentials", orders.Credentials)
	group.GET("/:order_id/receipt", orders.Receipt)
	group.POST("/:order_id/cancel", orders.Cancel)
	group.POST("/:order_id/deliver", orders.Deliver)
	group.POST("/:order_id/confirm", orders.Confirm)
	group.POST("/:order_id/dispute", orders.Dispute)
	group.POST("/:order_id/resolve-dispute", middleware.RequireAdmin(), orders.ResolveDispute)
	group.POST("/:order_id/confirm-payment", middleware.RequireAdmin(), orders.ConfirmPayment)

	return group
}

// PaymentRoutes creates the webhook group, which needs no token, and the
// authenticated payment group
func PaymentRoutes(payments *PaymentHandler, webhooks *PaymentCallbackHandler, mw RouteMiddleware) []*router.DomainGroup {
	hooks := router.NewDomainGroup("payment-webhooks", "/payments/webhooks")
	hooks.POST("/btcpay", webhooks.HandleBTCPayWebhook)
	hooks.POST("/btcpay/", webhooks.HandleBTCPayWebhook)
	hooks.POST("/monero", webhooks.HandleMoneroWebhook)

	group := router.NewDomainGroup("payment", "/payments")
	group.Use(mw.Auth)
	group.POST("/create", payments.Create)
	group.GET("/status/:order_id", payments.Status)
	group.POST("/escrow/:order_id", payments.EscrowAction)
	group.GET("/currencies", payments.Currencies)

	admin := group.Group("payment-admin", "/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/escrows", payments.AdminListEscrows)
	admin.GET("/escrows/:id", payments.AdminGetEscrow)
	admin.POST("/escrows/:id", payments.AdminEscrowAction)
	admin.GET("/analytics", payments.Analytics)

	return []*router.DomainGroup{hooks, group}
}

// VendorRoutes creates the vendor application group
func VendorRoutes(vendors *VendorApplicationHandler, mw RouteMiddleware) *router.DomainGroup {
	group := router.NewDomainGroup("vendor", "/vendors/applications")
	group.Use(mw.Auth)

	group.GET("", middleware.RequireAdmin(), vendors.List)
	group.POST("", vendors.Submit)
	group.POST("/documents", vendors.RequestDocumentUpload)
	group.GET("/check/:username", vendors.Check)
	group.POST("/:id/approve", middleware.RequireAdmin(), vendors.Approve)
	group.POST("/:id/reject", middleware.RequireAdmin(), vendors.Reject)
	group.GET("/:id/documents", middleware.RequireAdmin(), vendors.DocumentURL)

	return group
}

// MessagingRoutes creates the conversation group
func MessagingRoutes(messaging *MessagingHandler, mw RouteMiddleware) *router.DomainGroup {
	group := router.NewDomainGroup("messaging", "/messaging/conversations")
	group.Use(mw.Auth)

	group.GET("", messaging.ListConversations)
	group.POST("", messaging.CreateConversation)
	group.POST("/create-product", messaging.CreateForProduct)
	group.GET("/product/:product_id", messaging.GetForProduct)
	group.GET("/:id", messaging.GetConversation)
	group.GET("/:id/messages", messaging.ListMessages)
	group.POST("/:id/messages", messaging.SendMessage)
	group.POST("/:id/mark-read", messaging.MarkRead)

	return group
}

// NotificationRoutes creates the notification group
func NotificationRoutes(notifications *NotificationHandler, mw RouteMiddleware) *router.DomainGroup {
	group := router.NewDomainGroup("notification", "/notifications")
	group.Use(mw.Auth)

	group.GET("", notifications.List)
	group.POST("/:id/read", notifications.MarkRead)

	return group
}

// OutboxRoutes creates the admin outbox group
func OutboxRoutes(outbox *OutboxHandler, mw RouteMiddleware) *router.DomainGroup {
	group := router.NewDomainGroup("outbox", "/admin/outbox")
	group.Use(mw.Auth, middleware.RequireAdmin())

	group.GET("/stats", outbox.Stats)
	group.GET("/dead", outbox.ListDead)
	group.POST("/retry", outbox.Retry)
	group.GET("/:id", outbox.GetEntry)

	return group
}

// SystemRoutes creates the API information group. Health checks live on
// the engine root, outside the versioned API.
func SystemRoutes(system *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")
	group.GET("/info", system.GetSystemInfo)
	return group
}
