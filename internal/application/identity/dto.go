package identity

import (
	"time"

	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
)

// RegisterRequest is the sign-up payload
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=150"`
	Email           string `json:"email" binding:"required,email,max=254"`
	Password        string `json:"password" binding:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
	UserType        string `json:"user_type" binding:"omitempty,oneof=buyer vendor admin"`
}

// LoginRequest is the sign-in payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token to rotate
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally carries the refresh token to revoke with the access token
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutInput is assembled by the handler from the request and the access token claims
type LogoutInput struct {
	UserID       uuid.UUID
	AccessJTI    string
	AccessTTL    time.Duration
	RefreshToken string
}

// ChangePasswordRequest is the payload for changing the caller's password
type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password" binding:"required"`
	NewPassword        string `json:"new_password" binding:"required,min=8,max=128"`
	NewPasswordConfirm string `json:"new_password_confirm" binding:"required"`
}

// UpdateProfileRequest holds the editable profile fields
type UpdateProfileRequest struct {
	Email *string `json:"email" binding:"omitempty,email,max=254"`
}

// ListUsersRequest is the admin user listing query
type ListUsersRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search" binding:"max=100"`
	UserType string `form:"user_type" binding:"omitempty,oneof=buyer vendor admin"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID               uuid.UUID  `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	UserType         string     `json:"user_type"`
	IsVerified       bool       `json:"is_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	EscrowEnabled    bool       `json:"escrow_enabled"`
	IsActive         bool       `json:"is_active"`
	IsStaff          bool       `json:"is_staff"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TokenResponse is a freshly issued token pair
type TokenResponse struct {
	AccessToken           string    `json:"access"`
	RefreshToken          string    `json:"refresh"`
	AccessTokenExpiresAt  time.Time `json:"access_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType             string    `json:"token_type"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

// ToUserResponse converts a domain user to its response DTO
func ToUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		UserType:         string(u.UserType),
		IsVerified:       u.IsVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		EscrowEnabled:    u.EscrowEnabled,
		IsActive:         u.IsActive,
		IsStaff:          u.IsStaff,
		LastLogin:        u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

func toTokenResponse(pair *auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
	}
}
