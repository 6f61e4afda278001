package middleware

import (
	"net/http"
	"strings"

	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimitWithUploads caps request bodies at maxBytes, or uploadBytes for
// multipart requests (product images, CSV bulk uploads, vendor documents).
// Declared lengths over the cap are rejected up front. Chunked bodies are
// cut off by http.MaxBytesReader while the handler reads them.
func BodyLimitWithUploads(maxBytes, uploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = max(limit, uploadBytes)
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID("REQUEST_TOO_LARGE",
					"Request body exceeds maximum allowed size", requestIDOf(c)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
