package handler

import (
	"io"
	"net/http"
	"time"

	catalogapp "github.com/cryptonexus/backend/internal/application/catalog"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// maxBulkFileSize caps a bulk upload CSV
const maxBulkFileSize = 10 << 20

// csvContentType is used for the template and export downloads
const csvContentType = "text/csv; charset=utf-8"

// ProductImportHandler handles vendor bulk upload and export of listings
type ProductImportHandler struct {
	BaseHandler
	bulkService *catalogapp.BulkService
}

// NewProductImportHandler creates a new ProductImportHandler
func NewProductImportHandler(bulkService *catalogapp.BulkService) *ProductImportHandler {
	return &ProductImportHandler{
		bulkService: bulkService,
	}
}

// UploadCSV godoc
//
//	@Summary		Bulk upload listings from CSV
//	@Description	Creates one pending listing per valid row. Invalid rows are reported and skipped.
//	@Tags			products-bulk
//	@ID				bulkUploadProductsCSV
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"CSV file"
//	@Success		200		{object}	APIResponse[catalogapp.BulkUploadResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		415		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/products/bulk-upload/csv [post]
func (h *ProductImportHandler) UploadCSV(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxBulkFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeValidation, "file exceeds maximum size of 10MB")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "text/csv" && contentType != "application/octet-stream" &&
		contentType != "text/plain" && contentType != "application/vnd.ms-excel" {
		h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeValidation, "file must be a CSV file")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBulkFileSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read file")
		return
	}

	result, err := h.bulkService.UploadCSV(c.Request.Context(), actor, data)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// UploadSimple godoc
//
//	@Summary		Bulk upload listings from JSON
//	@Description	Same row semantics as the CSV upload, with categories referenced by name
//	@Tags			products-bulk
//	@ID				bulkUploadProductsSimple
//	@Accept			json
//	@Produce		json
//	@Param			request	body		catalogapp.BulkUploadSimpleRequest	true	"Listings"
//	@Success		200		{object}	APIResponse[catalogapp.BulkUploadResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/products/bulk-upload/simple [post]
func (h *ProductImportHandler) UploadSimple(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req catalogapp.BulkUploadSimpleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.bulkService.UploadSimple(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Template godoc
//
//	@Summary		Download the bulk upload template
//	@Tags			products-bulk
//	@ID				bulkUploadTemplate
//	@Produce		text/csv
//	@Success		200	{file}	file
//	@Security		BearerAuth
//	@Router			/products/bulk-upload/template [get]
func (h *ProductImportHandler) Template(c *gin.Context) {
	data, err := h.bulkService.Template()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="product_upload_template.csv"`)
	c.Data(http.StatusOK, csvContentType, data)
}

// Export godoc
//
//	@Summary		Export own listings as CSV
//	@Description	Credentials are not exported
//	@Tags			products-bulk
//	@ID				exportVendorProducts
//	@Produce		text/csv
//	@Success		200	{file}		file
//	@Failure		403	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/products/vendor/export [get]
func (h *ProductImportHandler) Export(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	data, err := h.bulkService.Export(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	filename := "products_" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, csvContentType, data)
}
