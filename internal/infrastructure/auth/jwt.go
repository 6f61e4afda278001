// Package auth issues and verifies the marketplace's HS256 token pairs and
// tracks revoked tokens.
package auth

import (
	"errors"
	"time"

	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Marketplace roles carried in the user_type claim
const (
	UserTypeBuyer  = "buyer"
	UserTypeVendor = "vendor"
	UserTypeAdmin  = "admin"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrTokenNotYetValid   = errors.New("token is not yet valid")
	ErrInvalidTokenType   = errors.New("invalid token type")
	ErrMissingUserID      = errors.New("missing user_id in claims")
	ErrMaxRefreshExceeded = errors.New("maximum refresh count exceeded")
	ErrSubjectMismatch    = errors.New("refresh token does not belong to user")
	ErrTokenBlacklisted   = errors.New("token has been revoked")
)

// Claims is the payload of both token types. Refresh tokens leave the role
// fields empty so a role change takes effect on the next refresh.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	UserType     string    `json:"user_type,omitempty"`
	IsStaff      bool      `json:"is_staff,omitempty"`
	TokenType    TokenType `json:"token_type"`
	RefreshCount int       `json:"refresh_count,omitempty"`
}

type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// GenerateTokenInput is the identity stamped into a new pair
type GenerateTokenInput struct {
	UserID   uuid.UUID
	Username string
	UserType string
	IsStaff  bool
}

type signingKey struct {
	secret []byte
	ttl    time.Duration
}

type JWTService struct {
	keys            map[TokenType]signingKey
	issuer          string
	maxRefreshCount int
	parser          *jwt.Parser
	now             func() time.Time
}

// NewJWTService signs refresh tokens with the access secret when no
// refresh secret is configured.
func NewJWTService(cfg config.JWTConfig) *JWTService {
	refreshSecret := cfg.RefreshSecret
	if refreshSecret == "" {
		refreshSecret = cfg.Secret
	}
	s := &JWTService{
		keys: map[TokenType]signingKey{
			TokenTypeAccess:  {[]byte(cfg.Secret), cfg.AccessTokenExpiration},
			TokenTypeRefresh: {[]byte(refreshSecret), cfg.RefreshTokenExpiration},
		},
		issuer:          cfg.Issuer,
		maxRefreshCount: cfg.MaxRefreshCount,
		now:             time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// RefreshTTL is how long a refresh token, the longest-lived credential, stays valid
func (s *JWTService) RefreshTTL() time.Duration {
	return s.keys[TokenTypeRefresh].ttl
}

func (s *JWTService) GenerateTokenPair(input GenerateTokenInput) (*TokenPair, error) {
	return s.issue(input, 0)
}

// RefreshTokenPair rotates a refresh token. The identity in input comes from
// the current user record, not from the old token.
func (s *JWTService) RefreshTokenPair(refreshToken string, input GenerateTokenInput) (*TokenPair, error) {
	claims, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	switch {
	case claims.UserID != input.UserID.String():
		return nil, ErrSubjectMismatch
	case claims.RefreshCount >= s.maxRefreshCount:
		return nil, ErrMaxRefreshExceeded
	}
	return s.issue(input, claims.RefreshCount+1)
}

func (s *JWTService) issue(input GenerateTokenInput, refreshCount int) (*TokenPair, error) {
	now := s.now()
	pair := &TokenPair{TokenType: "Bearer"}

	access := Claims{
		UserID:    input.UserID.String(),
		Username:  input.Username,
		UserType:  input.UserType,
		IsStaff:   input.IsStaff,
		TokenType: TokenTypeAccess,
	}
	var err error
	if pair.AccessToken, pair.AccessTokenExpiresAt, err = s.sign(access, now); err != nil {
		return nil, err
	}

	refresh := Claims{UserID: input.UserID.String(), TokenType: TokenTypeRefresh, RefreshCount: refreshCount}
	if pair.RefreshToken, pair.RefreshTokenExpiresAt, err = s.sign(refresh, now); err != nil {
		return nil, err
	}
	return pair, nil
}

// sign fills the registered claims for the token type and signs with its key
func (s *JWTService) sign(claims Claims, now time.Time) (string, time.Time, error) {
	key := s.keys[claims.TokenType]
	expires := now.Add(key.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   claims.UserID,
		Audience:  jwt.ClaimStrings{s.issuer},
		ExpiresAt: jwt.NewNumericDate(expires),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(key.secret)
	return signed, expires, err
}

func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	return s.validate(token, TokenTypeAccess)
}

func (s *JWTService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.validate(token, TokenTypeRefresh)
}

func (s *JWTService) validate(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.keys[want].secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYetValid
	case err != nil:
		return nil, ErrInvalidToken
	case claims.TokenType != want:
		return nil, ErrInvalidTokenType
	case claims.UserID == "":
		return nil, ErrMissingUserID
	}
	return claims, nil
}

func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// IsAdmin reports whether the token belongs to staff or an admin account
func (c *Claims) IsAdmin() bool {
	return c.IsStaff || c.UserType == UserTypeAdmin
}

func (c *Claims) IsVendor() bool {
	return c.UserType == UserTypeVendor
}

// IssuedAtTime is the zero time for tokens without iat
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// RemainingTTL is how long a revocation entry for this token must live
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}
