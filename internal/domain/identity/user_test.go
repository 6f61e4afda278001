package identity

import (
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Run("creates an active buyer by default", func(t *testing.T) {
		user, err := NewUser("satoshi", "Satoshi@Example.com", "Password123", "")

		require.NoError(t, err)
		assert.Equal(t, "satoshi", user.Username)
		assert.Equal(t, "satoshi@example.com", user.Email)
		assert.Equal(t, UserTypeBuyer, user.UserType)
		assert.True(t, user.IsActive)
		assert.True(t, user.EscrowEnabled)
		assert.False(t, user.IsAdmin())
		assert.NotEqual(t, "Password123", user.PasswordHash)
		assert.True(t, user.VerifyPassword("Password123"))
	})

	t.Run("email is optional", func(t *testing.T) {
		user, err := NewUser("anon_buyer", "", "Password123", UserTypeVendor)
		require.NoError(t, err)
		assert.Empty(t, user.Email)
		assert.True(t, user.IsVendor())
	})

	tests := []struct {
		name     string
		username string
		email    string
		password string
		userType UserType
		contains string
	}{
		{"empty username", "", "", "Password123", "", "cannot be empty"},
		{"short username", "ab", "", "Password123", "", "at least 3"},
		{"bad characters", "bad name!", "", "Password123", "", "may only contain"},
		{"bad email", "validname", "not-an-email", "Password123", "", "Invalid email"},
		{"short password", "validname", "", "short", "", "at least 8"},
		{"unknown type", "validname", "", "Password123", "reseller", "Invalid user type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.username, tt.email, tt.password, tt.userType)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateSelfRegistration(t *testing.T) {
	assert.NoError(t, ValidateSelfRegistration(""))
	assert.NoError(t, ValidateSelfRegistration(UserTypeBuyer))
	assert.NoError(t, ValidateSelfRegistration(UserTypeVendor))
	assert.Error(t, ValidateSelfRegistration(UserTypeAdmin))
	assert.Error(t, ValidateSelfRegistration("root"))
}

func TestUser_IsAdmin(t *testing.T) {
	user, err := NewUser("staffer", "", "Password123", UserTypeBuyer)
	require.NoError(t, err)
	assert.False(t, user.IsAdmin())

	user.IsStaff = true
	assert.True(t, user.IsAdmin())

	user.IsStaff = false
	user.UserType = UserTypeAdmin
	assert.True(t, user.IsAdmin())
}

func TestUser_ChangePassword(t *testing.T) {
	user, err := NewUser("changer", "", "Password123", "")
	require.NoError(t, err)
	version := user.Version

	err = user.ChangePassword("wrong-password", "NewPassword1")
	require.Error(t, err)

	require.NoError(t, user.ChangePassword("Password123", "NewPassword1"))
	assert.True(t, user.VerifyPassword("NewPassword1"))
	assert.False(t, user.VerifyPassword("Password123"))
	assert.Greater(t, user.Version, version)
}

func TestUser_LoginLockout(t *testing.T) {
	user, err := NewUser("locker", "", "Password123", "")
	require.NoError(t, err)
	now := time.Now()

	for i := 1; i < MaxFailedAttempts; i++ {
		assert.False(t, user.RecordLoginFailure(now))
	}
	assert.True(t, user.RecordLoginFailure(now))
	assert.True(t, user.IsLocked(now))

	err = user.CanLogin(now)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ACCOUNT_LOCKED", domainErr.Code)

	// Lock expires after LockDuration
	later := now.Add(LockDuration + time.Second)
	assert.NoError(t, user.CanLogin(later))

	user.RecordLoginSuccess(later)
	assert.Equal(t, 0, user.FailedAttempts)
	assert.Nil(t, user.LockedUntil)
	require.NotNil(t, user.LastLoginAt)
}

func TestUser_CanLogin_Disabled(t *testing.T) {
	user, err := NewUser("disabled", "", "Password123", "")
	require.NoError(t, err)

	user.IsActive = false
	assert.Error(t, user.CanLogin(time.Now()))

	user.IsActive = true
	user.IsDeleted = true
	assert.Error(t, user.CanLogin(time.Now()))
}

func TestUser_PromoteToVendor(t *testing.T) {
	buyer, err := NewUser("promoted", "", "Password123", "")
	require.NoError(t, err)
	assert.True(t, buyer.PromoteToVendor())
	assert.Equal(t, UserTypeVendor, buyer.UserType)
	assert.False(t, buyer.PromoteToVendor(), "already a vendor")

	admin, err := NewUser("admin_user", "", "Password123", UserTypeAdmin)
	require.NoError(t, err)
	assert.False(t, admin.PromoteToVendor())
	assert.Equal(t, UserTypeAdmin, admin.UserType)
}
