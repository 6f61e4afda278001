package handler

import (
	catalogapp "github.com/cryptonexus/backend/internal/application/catalog"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductHandler handles marketplace listing endpoints
type ProductHandler struct {
	BaseHandler
	productService *catalogapp.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService *catalogapp.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// List godoc
// @ID           listProducts
// @Summary      List active listings
// @Description  Public listing search with category, price and account type filters
// @Tags         products
// @Produce      json
// @Param        search query string false "Title or description search"
// @Param        category_id query string false "Category ID"
// @Param        subcategory_id query string false "Subcategory ID"
// @Param        account_type query string false "Account type"
// @Param        min_price query string false "Minimum final price"
// @Param        max_price query string false "Maximum final price"
// @Param        sort query string false "newest, price_low, price_high, rating or views"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]catalogapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	var q catalogapp.ProductListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.productService.List(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// BuyerListings godoc
// @ID           listBuyerListings
// @Summary      Browse listings as a buyer
// @Description  Active, in-stock listings, featured first
// @Tags         products
// @Produce      json
// @Param        search query string false "Title or description search"
// @Param        category_id query string false "Category ID"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]catalogapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /products/buyer/listings [get]
func (h *ProductHandler) BuyerListings(c *gin.Context) {
	var q catalogapp.ProductListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.productService.BuyerListings(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// GetByID godoc
// @ID           getProduct
// @Summary      Get a listing
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} APIResponse[catalogapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /products/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, product)
}

// TrackView godoc
// @ID           trackProductView
// @Summary      Record a listing view
// @Description  Counts a view of the listing. Works for anonymous visitors.
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} SuccessResponse
// @Failure      404 {object} ErrorResponse
// @Router       /products/{id}/track-view [post]
func (h *ProductHandler) TrackView(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	req := catalogapp.TrackViewRequest{IPAddress: c.ClientIP()}
	if userID, err := getUserID(c); err == nil {
		req.UserID = &userID
	}

	if err := h.productService.TrackView(c.Request.Context(), id, req); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"message": "View tracked"})
}

// VendorProducts godoc
// @ID           listVendorProducts
// @Summary      List own listings
// @Description  Every non-deleted listing of the calling vendor, in any status
// @Tags         products
// @Produce      json
// @Param        status query string false "Listing status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]catalogapp.ProductResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/vendor/products [get]
func (h *ProductHandler) VendorProducts(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q catalogapp.ProductListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.productService.VendorProducts(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// Create godoc
// @ID           createProduct
// @Summary      Create a listing
// @Description  New listings await moderation
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request body catalogapp.CreateProductRequest true "Listing"
// @Success      201 {object} APIResponse[catalogapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req catalogapp.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.productService.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, product)
}

// Update godoc
// @ID           updateProduct
// @Summary      Update a listing
// @Description  Replaces the editable fields. Only the owning vendor may update.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id path string true "Product ID"
// @Param        request body catalogapp.UpdateProductRequest true "Listing"
// @Success      200 {object} APIResponse[catalogapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req catalogapp.UpdateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.productService.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, product)
}

// Delete godoc
// @ID           deleteProduct
// @Summary      Delete a listing
// @Tags         products
// @Param        id path string true "Product ID"
// @Success      204
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// RevealCredentials godoc
// @ID           revealProductCredentials
// @Summary      Reveal listing credentials
// @Description  Returns the stored credentials to the owning vendor
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} APIResponse[catalogapp.CredentialsResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id}/reveal-credentials [get]
func (h *ProductHandler) RevealCredentials(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	creds, err := h.productService.RevealCredentials(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, creds)
}

// RequestImageUpload godoc
// @ID           requestProductImageUpload
// @Summary      Request an image upload URL
// @Description  Presigns a PUT URL for a listing image and records the object key on the listing
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id path string true "Product ID"
// @Param        request body catalogapp.ImageUploadRequest true "Image metadata"
// @Success      201 {object} APIResponse[catalogapp.UploadURLResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id}/images [post]
func (h *ProductHandler) RequestImageUpload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req catalogapp.ImageUploadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	upload, err := h.productService.RequestImageUpload(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, upload)
}

// AdminListAll godoc
// @ID           adminListProducts
// @Summary      List all listings
// @Description  Moderation view across every vendor and status
// @Tags         products-admin
// @Produce      json
// @Param        status query string false "Listing status"
// @Param        search query string false "Title or description search"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]catalogapp.ProductResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/admin/all [get]
func (h *ProductHandler) AdminListAll(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q catalogapp.ProductListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.productService.AdminListAll(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// Approve godoc
// @ID           approveProduct
// @Summary      Approve a listing
// @Tags         products-admin
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} APIResponse[catalogapp.ProductResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/admin/{id}/approve [post]
func (h *ProductHandler) Approve(c *gin.Context) {
	h.moderate(c, func(actor shared.Actor, id uuid.UUID) (*catalogapp.ProductResponse, error) {
		return h.productService.Approve(c.Request.Context(), actor, id)
	})
}

// Reject godoc
// @ID           rejectProduct
// @Summary      Reject a listing
// @Tags         products-admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Product ID"
// @Param        request body catalogapp.RejectProductRequest true "Rejection reason"
// @Success      200 {object} APIResponse[catalogapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/admin/{id}/reject [post]
func (h *ProductHandler) Reject(c *gin.Context) {
	var req catalogapp.RejectProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.moderate(c, func(actor shared.Actor, id uuid.UUID) (*catalogapp.ProductResponse, error) {
		return h.productService.Reject(c.Request.Context(), actor, id, req.Reason)
	})
}

func (h *ProductHandler) moderate(c *gin.Context, fn func(actor shared.Actor, id uuid.UUID) (*catalogapp.ProductResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	product, err := fn(actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, product)
}
