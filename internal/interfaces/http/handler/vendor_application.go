package handler

import (
	"context"

	vendorapp "github.com/cryptonexus/backend/internal/application/vendor"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VendorApplicationHandler handles vendor onboarding endpoints
type VendorApplicationHandler struct {
	BaseHandler
	applicationService *vendorapp.ApplicationService
}

// NewVendorApplicationHandler creates a new VendorApplicationHandler
func NewVendorApplicationHandler(applicationService *vendorapp.ApplicationService) *VendorApplicationHandler {
	return &VendorApplicationHandler{
		applicationService: applicationService,
	}
}

// List godoc
// @ID           listVendorApplications
// @Summary      List vendor applications
// @Tags         vendors
// @Produce      json
// @Param        status query string false "pending, approved or rejected"
// @Success      200 {object} APIResponse[[]vendorapp.ApplicationResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications [get]
func (h *VendorApplicationHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q vendorapp.ApplicationListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	apps, err := h.applicationService.List(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, apps)
}

// Submit godoc
// @ID           submitVendorApplication
// @Summary      Submit a vendor application
// @Description  A rejected application is resubmitted in place; a pending or approved one conflicts
// @Tags         vendors
// @Accept       json
// @Produce      json
// @Param        request body vendorapp.SubmitApplicationRequest true "Application"
// @Success      200 {object} APIResponse[vendorapp.SubmitResult] "Resubmitted"
// @Success      201 {object} APIResponse[vendorapp.SubmitResult] "Created"
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications [post]
func (h *VendorApplicationHandler) Submit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req vendorapp.SubmitApplicationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.applicationService.Submit(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Action == vendorapp.ActionCreated {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}

// Approve godoc
// @ID           approveVendorApplication
// @Summary      Approve a vendor application
// @Description  Promotes the applicant to vendor
// @Tags         vendors
// @Accept       json
// @Produce      json
// @Param        id path string true "Application ID"
// @Param        request body vendorapp.ReviewApplicationRequest false "Review"
// @Success      200 {object} APIResponse[vendorapp.ApplicationResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications/{id}/approve [post]
func (h *VendorApplicationHandler) Approve(c *gin.Context) {
	h.review(c, h.applicationService.Approve)
}

// Reject godoc
// @ID           rejectVendorApplication
// @Summary      Reject a vendor application
// @Tags         vendors
// @Accept       json
// @Produce      json
// @Param        id path string true "Application ID"
// @Param        request body vendorapp.ReviewApplicationRequest false "Review"
// @Success      200 {object} APIResponse[vendorapp.ApplicationResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications/{id}/reject [post]
func (h *VendorApplicationHandler) Reject(c *gin.Context) {
	h.review(c, h.applicationService.Reject)
}

// Check godoc
// @ID           checkVendorApplication
// @Summary      Check whether a username has an application
// @Tags         vendors
// @Produce      json
// @Param        username path string true "Vendor username"
// @Success      200 {object} APIResponse[vendorapp.ApplicationCheckResponse]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications/check/{username} [get]
func (h *VendorApplicationHandler) Check(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	check, err := h.applicationService.Check(c.Request.Context(), actor, c.Param("username"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, check)
}

// RequestDocumentUpload godoc
// @ID           requestVendorDocumentUpload
// @Summary      Get an upload URL for an application document
// @Tags         vendors
// @Accept       json
// @Produce      json
// @Param        request body vendorapp.DocumentUploadRequest true "Document"
// @Success      201 {object} APIResponse[vendorapp.DocumentUploadResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications/documents [post]
func (h *VendorApplicationHandler) RequestDocumentUpload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req vendorapp.DocumentUploadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	upload, err := h.applicationService.RequestDocumentUpload(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, upload)
}

// DocumentURL godoc
// @ID           getVendorDocumentURL
// @Summary      Get a download URL for an application document
// @Tags         vendors
// @Produce      json
// @Param        id path string true "Application ID"
// @Param        key query string true "Document key"
// @Success      200 {object} APIResponse[vendorapp.DocumentDownloadResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /vendors/applications/{id}/documents [get]
func (h *VendorApplicationHandler) DocumentURL(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var q vendorapp.DocumentQuery
	if !h.bindQuery(c, &q) {
		return
	}

	doc, err := h.applicationService.DocumentURL(c.Request.Context(), actor, id, q.Key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

type reviewFunc func(ctx context.Context, actor shared.Actor, id uuid.UUID, req vendorapp.ReviewApplicationRequest) (*vendorapp.ApplicationResponse, error)

func (h *VendorApplicationHandler) review(c *gin.Context, fn reviewFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req vendorapp.ReviewApplicationRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	app, err := fn(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, app)
}
