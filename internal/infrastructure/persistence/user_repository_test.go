package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T, username, email string, userType identity.UserType) *identity.User {
	t.Helper()
	u, err := identity.NewUser(username, email, "correct-horse", userType)
	require.NoError(t, err)
	return u
}

func TestGormUserRepository_CreateAndFind(t *testing.T) {
	repo := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	user := newTestUser(t, "Alice", "alice@example.com", identity.UserTypeBuyer)
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "alice@example.com", found.Email)
	assert.True(t, found.EscrowEnabled)
	assert.True(t, found.VerifyPassword("correct-horse"))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormUserRepository_Uniqueness(t *testing.T) {
	repo := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestUser(t, "bob", "bob@example.com", identity.UserTypeBuyer)))
	// users without an email do not collide with each other
	require.NoError(t, repo.Create(ctx, newTestUser(t, "carol", "", identity.UserTypeBuyer)))
	require.NoError(t, repo.Create(ctx, newTestUser(t, "dave", "", identity.UserTypeBuyer)))

	err := repo.Create(ctx, newTestUser(t, "bob", "other@example.com", identity.UserTypeBuyer))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	exists, err := repo.ExistsByUsername(ctx, "BOB")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormUserRepository_Update(t *testing.T) {
	repo := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	user := newTestUser(t, "erin", "", identity.UserTypeBuyer)
	require.NoError(t, repo.Create(ctx, user))

	require.True(t, user.PromoteToVendor())
	user.RecordLoginSuccess(time.Now())
	require.NoError(t, repo.Update(ctx, user))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.UserTypeVendor, found.UserType)
	assert.NotNil(t, found.LastLoginAt)
}

func TestGormUserRepository_FindAll(t *testing.T) {
	repo := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestUser(t, "buyer1", "", identity.UserTypeBuyer)))
	require.NoError(t, repo.Create(ctx, newTestUser(t, "buyer2", "", identity.UserTypeBuyer)))
	require.NoError(t, repo.Create(ctx, newTestUser(t, "seller1", "seller@example.com", identity.UserTypeVendor)))

	vendorType := identity.UserTypeVendor
	users, total, err := repo.FindAll(ctx, identity.UserFilter{UserType: &vendorType})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "seller1", users[0].Username)

	users, total, err = repo.FindAll(ctx, identity.UserFilter{Search: "buyer", PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 1)
}
