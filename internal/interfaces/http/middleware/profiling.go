package middleware

import (
	"context"
	"strings"

	"github.com/cryptonexus/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig configures ProfilingWithConfig
type ProfilingConfig struct {
	Enabled          bool
	SkipPathPrefixes []string
}

// ProfilingWithConfig runs the rest of the chain under Pyroscope labels
// for the route pattern, its resource, the method and, when a JWT
// middleware ran earlier, the caller's account type.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	return func(c *gin.Context) {
		if hasAnyPrefix(c.Request.URL.Path, cfg.SkipPathPrefixes) {
			c.Next()
			return
		}
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	return map[string]string{
		telemetry.ProfilingLabelMethod:     c.Request.Method,
		telemetry.ProfilingLabelRoute:      route,
		telemetry.ProfilingLabelController: routeResource(route),
		telemetry.ProfilingLabelUserType:   GetJWTUserType(c),
	}
}

// routeResource returns the first static segment after the version,
// "/api/v1/orders/:order_number/dispute" gives "orders"
func routeResource(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersion(part) || strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*") {
			continue
		}
		return part
	}
	return ""
}

func isVersion(part string) bool {
	if len(part) < 2 || part[0] != 'v' {
		return false
	}
	for _, r := range part[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
