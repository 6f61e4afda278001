package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/vendor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormVendorApplicationRepository(t *testing.T) {
	repo := NewGormVendorApplicationRepository(newTestDB(t))
	ctx := context.Background()

	app, err := vendor.NewVendorApplication(uuid.New(), vendor.ApplicationDetails{
		VendorUsername:    "AccountKing",
		Email:             "king@example.com",
		BusinessName:      "Account King",
		Description:       "Premium streaming accounts",
		ProductCategories: []string{"Streaming", "VPN"},
		ContactInfo:       map[string]string{"telegram": "@king"},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, app))

	found, err := repo.FindByUsername(ctx, "accountking")
	require.NoError(t, err)
	assert.Equal(t, app.ID, found.ID)
	assert.Equal(t, []string{"Streaming", "VPN"}, found.ProductCategories)
	assert.Equal(t, "@king", found.ContactInfo["telegram"])

	pending := vendor.ApplicationStatusPending
	list, err := repo.FindAll(ctx, &pending)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, found.Approve(uuid.New(), "welcome", time.Now()))
	require.NoError(t, repo.Save(ctx, found))

	list, err = repo.FindAll(ctx, &pending)
	require.NoError(t, err)
	assert.Empty(t, list)

	approved, err := repo.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, vendor.ApplicationStatusApproved, approved.Status)
	assert.NotNil(t, approved.ReviewedAt)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
