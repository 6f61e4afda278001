package auth

import (
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTConfig = config.JWTConfig{
	Secret:                 "access-secret-for-escrow-tests-32",
	RefreshSecret:          "refresh-secret-for-escrow-tests-32",
	AccessTokenExpiration:  15 * time.Minute,
	RefreshTokenExpiration: 7 * 24 * time.Hour,
	Issuer:                 "cryptonexus-test",
	MaxRefreshCount:        2,
}

// newClockedService returns a service whose clock the test moves by hand
func newClockedService(cfg config.JWTConfig) (*JWTService, *time.Time) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewJWTService(cfg)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func buyer() GenerateTokenInput {
	return GenerateTokenInput{UserID: uuid.New(), Username: "satoshi", UserType: UserTypeBuyer}
}

func TestJWTService_IssuesPair(t *testing.T) {
	svc, now := newClockedService(testJWTConfig)
	input := buyer()

	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, now.Add(15*time.Minute), pair.AccessTokenExpiresAt)
	assert.Equal(t, now.Add(7*24*time.Hour), pair.RefreshTokenExpiresAt)
	assert.Equal(t, 7*24*time.Hour, svc.RefreshTTL())

	access, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, input.UserID.String(), access.UserID)
	assert.Equal(t, input.UserID.String(), access.Subject)
	assert.Equal(t, "satoshi", access.Username)
	assert.Equal(t, UserTypeBuyer, access.UserType)
	assert.WithinDuration(t, *now, access.IssuedAtTime(), 0)
	id, err := access.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, input.UserID, id)

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refresh.UserType, "refresh tokens carry no role")
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestJWTService_RefreshSecretFallback(t *testing.T) {
	cfg := testJWTConfig
	cfg.RefreshSecret = ""
	svc := NewJWTService(cfg)
	assert.Equal(t, svc.keys[TokenTypeAccess].secret, svc.keys[TokenTypeRefresh].secret)

	// With one secret only the token_type claim keeps the two apart.
	pair, err := svc.GenerateTokenPair(buyer())
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, now := newClockedService(testJWTConfig)
	pair, err := svc.GenerateTokenPair(buyer())
	require.NoError(t, err)

	foreignCfg := testJWTConfig
	foreignCfg.Issuer = "someone-else"
	foreign, _ := newClockedService(foreignCfg)
	foreignPair, err := foreign.GenerateTokenPair(buyer())
	require.NoError(t, err)

	noUser, _, err := svc.sign(Claims{TokenType: TokenTypeAccess}, *now)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "x", "token_type": "access"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		check func(string) (*Claims, error)
		want  error
	}{
		{"garbage", "not-a-token", svc.ValidateAccessToken, ErrInvalidToken},
		{"access token on refresh key", pair.AccessToken, svc.ValidateRefreshToken, ErrInvalidToken},
		{"foreign issuer", foreignPair.AccessToken, svc.ValidateAccessToken, ErrInvalidToken},
		{"unsigned", none, svc.ValidateAccessToken, ErrInvalidToken},
		{"missing user", noUser, svc.ValidateAccessToken, ErrMissingUserID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.check(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("expiry follows the clock", func(t *testing.T) {
		*now = now.Add(16 * time.Minute)
		_, err := svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
		_, err = svc.ValidateRefreshToken(pair.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("not yet valid", func(t *testing.T) {
		*now = now.Add(-time.Hour)
		_, err := svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})
}

func TestJWTService_RefreshTokenPair(t *testing.T) {
	svc, _ := newClockedService(testJWTConfig)
	input := buyer()
	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)

	t.Run("picks up a role change", func(t *testing.T) {
		promoted := input
		promoted.UserType = UserTypeVendor
		next, err := svc.RefreshTokenPair(pair.RefreshToken, promoted)
		require.NoError(t, err)

		access, err := svc.ValidateAccessToken(next.AccessToken)
		require.NoError(t, err)
		assert.True(t, access.IsVendor())
		refresh, err := svc.ValidateRefreshToken(next.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, 1, refresh.RefreshCount)
	})

	t.Run("another user's token", func(t *testing.T) {
		_, err := svc.RefreshTokenPair(pair.RefreshToken, buyer())
		assert.ErrorIs(t, err, ErrSubjectMismatch)
	})

	t.Run("rotation limit", func(t *testing.T) {
		token := pair.RefreshToken
		for range 2 {
			next, err := svc.RefreshTokenPair(token, input)
			require.NoError(t, err)
			token = next.RefreshToken
		}
		_, err := svc.RefreshTokenPair(token, input)
		assert.ErrorIs(t, err, ErrMaxRefreshExceeded)
	})
}

func TestClaims(t *testing.T) {
	assert.True(t, (&Claims{UserType: UserTypeAdmin}).IsAdmin())
	assert.True(t, (&Claims{UserType: UserTypeBuyer, IsStaff: true}).IsAdmin())
	assert.False(t, (&Claims{UserType: UserTypeVendor}).IsAdmin())

	assert.Zero(t, (&Claims{}).RemainingTTL())
	assert.True(t, (&Claims{}).IssuedAtTime().IsZero())
	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	assert.Zero(t, expired.RemainingTTL())
	live := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	assert.InDelta(t, time.Hour.Seconds(), live.RemainingTTL().Seconds(), 5)
}
