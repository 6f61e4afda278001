package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures TracingWithConfig
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// Requests under these prefixes get no span
	SkipPathPrefixes []string
}

// TracingWithConfig starts an otelgin server span per request, named
// "METHOD route" (e.g. "POST /api/v1/orders/:order_number/confirm").
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	skip := cfg.SkipPathPrefixes
	return otelgin.Middleware(cfg.ServiceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !hasAnyPrefix(r.URL.Path, skip)
		}),
	)
}

// TracingAttributeInjector tags the request span with the request id and,
// once a JWT middleware has run, the caller's id and account type.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if id := c.GetString(RequestIDKey); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if id := GetJWTUserID(c); id != "" {
			span.SetAttributes(attribute.String("user_id", id))
		}
		if userType := GetJWTUserType(c); userType != "" {
			span.SetAttributes(attribute.String("user_type", userType))
		}
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
