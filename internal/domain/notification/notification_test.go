package notification

import (
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_MarkRead(t *testing.T) {
	owner := uuid.New()
	n := New(owner, KindOrderCreated, "New order", "ORD-1 was placed", "ORD-1")
	assert.False(t, n.IsRead)

	assert.ErrorIs(t, n.MarkRead(uuid.New(), time.Now()), shared.ErrForbidden)

	now := time.Now()
	require.NoError(t, n.MarkRead(owner, now))
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)

	require.NoError(t, n.MarkRead(owner, now.Add(time.Hour)))
	assert.Equal(t, now, *n.ReadAt)
}
