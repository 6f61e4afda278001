package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/cryptonexus/backend/internal/infrastructure/logger"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Keys under which the authenticated caller is stored on the gin context
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTUserTypeKey = "jwt_user_type"
)

const bearerPrefix = "Bearer "

// JWTMiddlewareConfig configures JWTAuthMiddlewareWithConfig. TokenBlacklist
// and Logger are optional.
type JWTMiddlewareConfig struct {
	JWTService     *auth.JWTService
	TokenBlacklist auth.TokenBlacklist
	Logger         *zap.Logger
}

// authFailure maps token errors to the code and message the client sees
var authFailures = []struct {
	err     error
	code    string
	message string
}{
	{auth.ErrExpiredToken, "TOKEN_EXPIRED", "Token has expired"},
	{auth.ErrTokenBlacklisted, "TOKEN_REVOKED", "Token has been revoked"},
	{auth.ErrInvalidTokenType, "TOKEN_INVALID", "Invalid token type"},
	{auth.ErrTokenNotYetValid, "TOKEN_INVALID", "Token is not yet valid"},
	{auth.ErrInvalidToken, "TOKEN_INVALID", "Invalid token"},
}

// JWTAuthMiddlewareWithConfig requires a valid bearer access token that
// has not been revoked, either by logout or by a password change or
// suspension that invalidated every session of the account. Blacklist
// lookups fail open: a Redis outage must not lock every buyer out.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			rejectToken(c, log, auth.ErrInvalidToken)
			return
		}
		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			rejectToken(c, log, err)
			return
		}
		if cfg.TokenBlacklist != nil && revoked(c.Request.Context(), cfg.TokenBlacklist, claims, log) {
			rejectToken(c, log, auth.ErrTokenBlacklisted)
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWTAuthMiddleware identifies the caller when a valid token is
// sent and lets anonymous requests through otherwise
func OptionalJWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := jwtService.ValidateAccessToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return token, token != ""
}

func revoked(ctx context.Context, blacklist auth.TokenBlacklist, claims *auth.Claims, log *zap.Logger) bool {
	if claims.ID != "" {
		hit, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			log.Error("Failed to check token blacklist", zap.String("jti", claims.ID), zap.Error(err))
		} else if hit {
			return true
		}
	}
	if claims.UserID == "" {
		return false
	}
	hit, err := blacklist.IsUserTokenInvalidated(ctx, claims.UserID, claims.IssuedAtTime())
	if err != nil {
		log.Error("Failed to check session invalidation", zap.String("user_id", claims.UserID), zap.Error(err))
		return false
	}
	return hit
}

func rejectToken(c *gin.Context, log *zap.Logger, err error) {
	code, message := "UNAUTHORIZED", "Authentication required"
	for _, f := range authFailures {
		if errors.Is(err, f.err) {
			code, message = f.code, f.message
			break
		}
	}
	log.Warn("JWT authentication failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("code", code),
		zap.Error(err))
	abortUnauthorized(c, code, message)
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(JWTClaimsKey, claims)
	c.Set(JWTUserIDKey, claims.UserID)
	c.Set(JWTUserTypeKey, claims.UserType)

	ctx := logger.With(c.Request.Context(), zap.String("user_id", claims.UserID), zap.String("user_type", claims.UserType))
	c.Request = c.Request.WithContext(ctx)
}

// GetJWTClaims returns the caller's claims, or nil for anonymous requests
func GetJWTClaims(c *gin.Context) *auth.Claims {
	claims, _ := c.Value(JWTClaimsKey).(*auth.Claims)
	return claims
}

// GetJWTUserID returns the caller's user id, or ""
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}

// GetJWTUserType returns buyer, vendor, staff or admin, or ""
func GetJWTUserType(c *gin.Context) string {
	return c.GetString(JWTUserTypeKey)
}

// RequireAdmin admits staff and admin accounts. It runs after the JWT
// middleware.
func RequireAdmin() gin.HandlerFunc {
	return requireCaller(func(claims *auth.Claims) bool { return claims.IsAdmin() }, "Admin access required")
}

// RequireUserType admits staff and the listed account types
func RequireUserType(types ...string) gin.HandlerFunc {
	return requireCaller(func(claims *auth.Claims) bool {
		return claims.IsAdmin() || slices.Contains(types, claims.UserType)
	}, "Insufficient privileges for this operation")
}

func requireCaller(allowed func(*auth.Claims) bool, denied string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortUnauthorized(c, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !allowed(claims) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, denied, requestIDOf(c)))
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, requestIDOf(c)))
}
