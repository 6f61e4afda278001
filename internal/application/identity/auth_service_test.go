package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func createTestUser(t *testing.T) *identity.User {
	t.Helper()
	user, err := identity.NewUser("alice", "alice@example.com", "Password123", identity.UserTypeBuyer)
	require.NoError(t, err)
	return user
}

func createAuthService(userRepo *MockUserRepository, blacklist auth.TokenBlacklist) *AuthService {
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-32-characters-long",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
		MaxRefreshCount:        10,
	})
	return NewAuthService(userRepo, jwtService, blacklist, zap.NewNop())
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a buyer and signs in", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("ExistsByUsername", ctx, "bob").Return(false, nil)
		userRepo.On("ExistsByEmail", ctx, "bob@example.com").Return(false, nil)
		userRepo.On("Create", ctx, mock.AnythingOfType("*identity.User")).Return(nil)

		result, err := createAuthService(userRepo, nil).Register(ctx, RegisterRequest{
			Username:        "bob",
			Email:           "bob@example.com",
			Password:        "Password123",
			PasswordConfirm: "Password123",
		})
		require.NoError(t, err)
		assert.Equal(t, "bob", result.User.Username)
		assert.Equal(t, "buyer", result.User.UserType)
		assert.True(t, result.User.EscrowEnabled)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.NotEmpty(t, result.Tokens.RefreshToken)
		assert.Equal(t, "Bearer", result.Tokens.TokenType)
		userRepo.AssertExpectations(t)
	})

	t.Run("password confirmation must match", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		_, err := createAuthService(userRepo, nil).Register(ctx, RegisterRequest{
			Username:        "bob",
			Email:           "bob@example.com",
			Password:        "Password123",
			PasswordConfirm: "Password124",
		})
		assert.Equal(t, "INVALID_INPUT", errorCode(err))
		userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("admin cannot self-register", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		_, err := createAuthService(userRepo, nil).Register(ctx, RegisterRequest{
			Username:        "root",
			Email:           "root@example.com",
			Password:        "Password123",
			PasswordConfirm: "Password123",
			UserType:        "admin",
		})
		assert.Equal(t, "INVALID_USER_TYPE", errorCode(err))
	})

	t.Run("duplicate username", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("ExistsByUsername", ctx, "bob").Return(true, nil)

		_, err := createAuthService(userRepo, nil).Register(ctx, RegisterRequest{
			Username:        "bob",
			Email:           "bob@example.com",
			Password:        "Password123",
			PasswordConfirm: "Password123",
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	user := createTestUser(t)

	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)
	userRepo.On("Update", ctx, user).Return(nil)

	result, err := createAuthService(userRepo, nil).Login(ctx, LoginRequest{Username: "alice", Password: "Password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, user.LastLoginAt)
	assert.Zero(t, user.FailedAttempts)
	userRepo.AssertExpectations(t)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	userRepo.On("FindByUsername", ctx, "ghost").Return(nil, shared.ErrNotFound)

	_, err := createAuthService(userRepo, nil).Login(ctx, LoginRequest{Username: "ghost", Password: "whatever1"})
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(err))
}

func TestAuthService_Login_DisabledAccount(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	user := createTestUser(t)
	user.IsActive = false
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)

	_, err := createAuthService(userRepo, nil).Login(ctx, LoginRequest{Username: "alice", Password: "Password123"})
	assert.Equal(t, "ACCOUNT_DISABLED", errorCode(err))
	userRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestAuthService_Login_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	user := createTestUser(t)
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)
	userRepo.On("Update", ctx, user).Return(nil)
	svc := createAuthService(userRepo, nil)

	for i := 1; i < identity.MaxFailedAttempts; i++ {
		_, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong-password"})
		assert.Equal(t, "INVALID_CREDENTIALS", errorCode(err))
		assert.Equal(t, i, user.FailedAttempts)
	}

	_, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong-password"})
	assert.Equal(t, "ACCOUNT_LOCKED", errorCode(err))
	require.NotNil(t, user.LockedUntil)

	// the right password does not help while the lock is active
	_, err = svc.Login(ctx, LoginRequest{Username: "alice", Password: "Password123"})
	assert.Equal(t, "ACCOUNT_LOCKED", errorCode(err))
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	user := createTestUser(t)
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)
	userRepo.On("Update", ctx, user).Return(nil)
	userRepo.On("FindByID", ctx, user.ID).Return(user, nil)
	svc := createAuthService(userRepo, auth.NewInMemoryTokenBlacklist())

	login, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "Password123"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, login.Tokens.RefreshToken)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(err))

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.Equal(t, "TOKEN_INVALID", errorCode(err))
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	user := createTestUser(t)
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)
	userRepo.On("Update", ctx, user).Return(nil)
	blacklist := auth.NewInMemoryTokenBlacklist()
	svc := createAuthService(userRepo, blacklist)

	login, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "Password123"})
	require.NoError(t, err)
	refreshClaims, err := svc.jwtService.ValidateRefreshToken(login.Tokens.RefreshToken)
	require.NoError(t, err)

	err = svc.Logout(ctx, LogoutInput{
		UserID:       user.ID,
		AccessJTI:    "access-jti",
		AccessTTL:    time.Minute,
		RefreshToken: login.Tokens.RefreshToken,
	})
	require.NoError(t, err)

	revoked, _ := blacklist.IsBlacklisted(ctx, "access-jti")
	assert.True(t, revoked)
	revoked, _ = blacklist.IsBlacklisted(ctx, refreshClaims.ID)
	assert.True(t, revoked)
}

var errBlacklistDown = errors.New("redis: connection refused")

// unavailableBlacklist fails every session revocation
type unavailableBlacklist struct {
	auth.TokenBlacklist
}

func (unavailableBlacklist) AddUserTokensToBlacklist(context.Context, string, time.Duration) error {
	return errBlacklistDown
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates issued tokens", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user := createTestUser(t)
		userRepo.On("FindByID", ctx, user.ID).Return(user, nil)
		userRepo.On("Update", ctx, user).Return(nil)
		blacklist := auth.NewInMemoryTokenBlacklist()
		issuedBefore := time.Now().Add(-time.Minute)

		err := createAuthService(userRepo, blacklist).ChangePassword(ctx, user.ID, ChangePasswordRequest{
			OldPassword:        "Password123",
			NewPassword:        "NewPassword456",
			NewPasswordConfirm: "NewPassword456",
		})
		require.NoError(t, err)
		assert.True(t, user.VerifyPassword("NewPassword456"))

		invalidated, _ := blacklist.IsUserTokenInvalidated(ctx, user.ID.String(), issuedBefore)
		assert.True(t, invalidated)
	})

	t.Run("revocation failure is reported", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user := createTestUser(t)
		userRepo.On("FindByID", ctx, user.ID).Return(user, nil)
		userRepo.On("Update", ctx, user).Return(nil)
		blacklist := &unavailableBlacklist{TokenBlacklist: auth.NewInMemoryTokenBlacklist()}

		err := createAuthService(userRepo, blacklist).ChangePassword(ctx, user.ID, ChangePasswordRequest{
			OldPassword:        "Password123",
			NewPassword:        "NewPassword456",
			NewPasswordConfirm: "NewPassword456",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, errBlacklistDown)
	})

	t.Run("wrong old password", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		user := createTestUser(t)
		userRepo.On("FindByID", ctx, user.ID).Return(user, nil)

		err := createAuthService(userRepo, nil).ChangePassword(ctx, user.ID, ChangePasswordRequest{
			OldPassword:        "nope-nope",
			NewPassword:        "NewPassword456",
			NewPasswordConfirm: "NewPassword456",
		})
		assert.Equal(t, "INVALID_PASSWORD", errorCode(err))
		userRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		err := createAuthService(new(MockUserRepository), nil).ChangePassword(ctx, createTestUser(t).ID, ChangePasswordRequest{
			OldPassword:        "Password123",
			NewPassword:        "NewPassword456",
			NewPasswordConfirm: "NewPassword789",
		})
		assert.Equal(t, "INVALID_INPUT", errorCode(err))
	})
}
