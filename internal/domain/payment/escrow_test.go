package payment

import (
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEscrow(t *testing.T) *EscrowPayment {
	t.Helper()
	address := newTestAddress(t, shared.CurrencyBTC, "0.5")
	return NewEscrowPayment(address, decimal.NewFromInt(DefaultEscrowFeePercent))
}

func TestNewEscrowPayment(t *testing.T) {
	e := newTestEscrow(t)

	assert.Equal(t, EscrowStatusPending, e.Status)
	assert.True(t, decimal.RequireFromString("0.5").Equal(e.Amount))
	assert.True(t, decimal.RequireFromString("0.01").Equal(e.Fee))
	assert.True(t, decimal.RequireFromString("0.49").Equal(e.VendorPayout()))
	assert.True(t, e.AutoReleaseEnabled)
	assert.Nil(t, e.AutoReleaseAt)
}

func TestEscrowPayment_Fund(t *testing.T) {
	e := newTestEscrow(t)
	now := time.Now()

	require.NoError(t, e.Fund(now, 7*24*time.Hour))
	assert.Equal(t, EscrowStatusFunded, e.Status)
	require.NotNil(t, e.AutoReleaseAt)
	assert.Equal(t, now.Add(7*24*time.Hour), *e.AutoReleaseAt)

	// funding twice is harmless
	require.NoError(t, e.Fund(now.Add(time.Hour), time.Hour))
	assert.Equal(t, now.Add(7*24*time.Hour), *e.AutoReleaseAt)
}

func TestEscrowPayment_Release(t *testing.T) {
	e := newTestEscrow(t)
	admin := uuid.New()

	err := e.Release(&admin, time.Now())
	require.Error(t, err)
	assert.Equal(t, "Escrow can only be released when funded", err.Error())

	require.NoError(t, e.Fund(time.Now(), time.Hour))
	require.NoError(t, e.Release(&admin, time.Now()))
	assert.Equal(t, EscrowStatusReleased, e.Status)
	assert.Equal(t, &admin, e.ReleasedBy)
	assert.NotNil(t, e.ReleasedAt)

	assert.Error(t, e.Release(&admin, time.Now()))
}

func TestEscrowPayment_Cancel(t *testing.T) {
	e := newTestEscrow(t)
	require.NoError(t, e.Cancel())
	assert.Equal(t, EscrowStatusCancelled, e.Status)
	assert.True(t, e.Status.IsValid())
	require.NoError(t, e.Cancel())
	assert.Error(t, e.Fund(time.Now(), time.Hour), "a cancelled escrow is never funded")

	funded := newTestEscrow(t)
	require.NoError(t, funded.Fund(time.Now(), time.Hour))
	assert.ErrorIs(t, funded.Cancel(), shared.ErrInvalidState)
}

func TestEscrowPayment_DisputeAndResolve(t *testing.T) {
	e := newTestEscrow(t)
	require.NoError(t, e.Fund(time.Now(), time.Hour))

	assert.ErrorIs(t, e.Dispute("  "), shared.ErrInvalidInput)

	require.NoError(t, e.Dispute("never received"))
	assert.Equal(t, EscrowStatusDisputed, e.Status)
	assert.Equal(t, "never received", e.DisputeReason)
	assert.False(t, e.IsDueForAutoRelease(time.Now().Add(48*time.Hour)))

	require.NoError(t, e.Refund(nil, time.Now()))
	assert.Equal(t, EscrowStatusRefunded, e.Status)
	assert.ErrorIs(t, e.Release(nil, time.Now()), shared.ErrInvalidState)
}

func TestEscrowPayment_DisputeRequiresFunds(t *testing.T) {
	e := newTestEscrow(t)
	assert.ErrorIs(t, e.Dispute("reason"), shared.ErrInvalidState)
	assert.ErrorIs(t, e.Refund(nil, time.Now()), shared.ErrInvalidState)
}

func TestEscrowPayment_IsDueForAutoRelease(t *testing.T) {
	e := newTestEscrow(t)
	now := time.Now()
	assert.False(t, e.IsDueForAutoRelease(now))

	require.NoError(t, e.Fund(now, time.Hour))
	assert.False(t, e.IsDueForAutoRelease(now))
	assert.True(t, e.IsDueForAutoRelease(now.Add(time.Hour)))

	e.AutoReleaseEnabled = false
	assert.False(t, e.IsDueForAutoRelease(now.Add(2*time.Hour)))
}
