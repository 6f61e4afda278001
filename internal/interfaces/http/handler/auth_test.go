package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	appidentity "github.com/cryptonexus/backend/internal/application/identity"
	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/cryptonexus/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context, filter identity.UserFilter) ([]*identity.User, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*identity.User), args.Get(1).(int64), args.Error(2)
}

type identityFixture struct {
	repo      *MockUserRepository
	jwt       *auth.JWTService
	blacklist *auth.InMemoryTokenBlacklist
	auth      *AuthHandler
	users     *UserHandler
}

func newIdentityFixture() *identityFixture {
	repo := new(MockUserRepository)
	jwtService := auth.NewJWTService(testJWTConfig())
	blacklist := auth.NewInMemoryTokenBlacklist()
	authService := appidentity.NewAuthService(repo, jwtService, blacklist, zap.NewNop())
	userService := appidentity.NewUserService(repo, zap.NewNop())
	return &identityFixture{
		repo:      repo,
		jwt:       jwtService,
		blacklist: blacklist,
		auth:      NewAuthHandler(authService),
		users:     NewUserHandler(userService, authService),
	}
}

// engine mounts the identity routes behind the real JWT middleware
func (f *identityFixture) engine() *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", f.auth.Register)
	r.POST("/auth/login", f.auth.Login)
	r.POST("/auth/refresh", f.auth.RefreshToken)

	protected := r.Group("", middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     f.jwt,
		TokenBlacklist: f.blacklist,
	}))
	protected.POST("/auth/logout", f.auth.Logout)
	protected.GET("/profile", f.users.GetProfile)
	protected.PUT("/profile", f.users.UpdateProfile)
	protected.POST("/profile/change-password", f.users.ChangePassword)
	protected.GET("/users", f.users.List)
	return r
}

func newTestUser(t *testing.T, userType identity.UserType) *identity.User {
	t.Helper()
	user, err := identity.NewUser("alice", "alice@example.com", "password123", userType)
	require.NoError(t, err)
	return user
}

func (f *identityFixture) tokens(t *testing.T, user *identity.User) *auth.TokenPair {
	t.Helper()
	pair, err := f.jwt.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		UserType: string(user.UserType),
		IsStaff:  user.IsStaff,
	})
	require.NoError(t, err)
	return pair
}

func doAuthorized(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	req := newRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Register_Success(t *testing.T) {
	f := newIdentityFixture()
	f.repo.On("ExistsByUsername", mock.Anything, "bob_vendor").Return(false, nil)
	f.repo.On("ExistsByEmail", mock.Anything, "bob@example.com").Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*identity.User")).Return(nil)

	w := doRequest(f.engine(), http.MethodPost, "/auth/register", map[string]string{
		"username":         "bob_vendor",
		"email":            "bob@example.com",
		"password":         "password123",
		"password_confirm": "password123",
		"user_type":        "vendor",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp appidentity.AuthResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "bob_vendor", resp.User.Username)
	assert.Equal(t, "vendor", resp.User.UserType)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
}

func TestAuthHandler_Register_PasswordMismatch(t *testing.T) {
	f := newIdentityFixture()

	w := doRequest(f.engine(), http.MethodPost, "/auth/register", map[string]string{
		"username":         "bob_vendor",
		"email":            "bob@example.com",
		"password":         "password123",
		"password_confirm": "password124",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthHandler_Register_ValidationError(t *testing.T) {
	f := newIdentityFixture()

	w := doRequest(f.engine(), http.MethodPost, "/auth/register", map[string]string{
		"username": "bo",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeBuyer)
	f.repo.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
	f.repo.On("Update", mock.Anything, user).Return(nil)

	w := doRequest(f.engine(), http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "password123",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp appidentity.AuthResponse
	decodeData(t, w, &resp)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotNil(t, resp.User.LastLogin)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeBuyer)
	f.repo.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
	f.repo.On("Update", mock.Anything, user).Return(nil)

	w := doRequest(f.engine(), http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidCredentials, decodeResponse(t, w).Error.Code)
	assert.Equal(t, 1, user.FailedAttempts)
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	f := newIdentityFixture()
	f.repo.On("FindByUsername", mock.Anything, "ghost").Return(nil, shared.ErrNotFound)

	w := doRequest(f.engine(), http.MethodPost, "/auth/login", map[string]string{
		"username": "ghost",
		"password": "password123",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidCredentials, decodeResponse(t, w).Error.Code)
}

func TestAuthHandler_Login_InvalidRequestBody(t *testing.T) {
	f := newIdentityFixture()

	w := doRequest(f.engine(), http.MethodPost, "/auth/login", "{invalid")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Logout_RevokesAccessToken(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeBuyer)
	f.repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	pair := f.tokens(t, user)
	r := f.engine()

	w := doAuthorized(r, http.MethodGet, "/profile", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doAuthorized(r, http.MethodPost, "/auth/logout", pair.AccessToken,
		map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doAuthorized(r, http.MethodGet, "/profile", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Logout_Unauthorized(t *testing.T) {
	f := newIdentityFixture()

	w := doRequest(f.engine(), http.MethodPost, "/auth/logout", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_RefreshToken_Rotates(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeVendor)
	f.repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	pair := f.tokens(t, user)
	r := f.engine()

	w := doRequest(r, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rotated appidentity.TokenResponse
	decodeData(t, w, &rotated)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// the old refresh token was revoked by the rotation
	w = doRequest(r, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_RefreshToken_RejectsAccessToken(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeBuyer)
	pair := f.tokens(t, user)

	w := doRequest(f.engine(), http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": pair.AccessToken})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_GetProfile(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeBuyer)
	f.repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	w := doAuthorized(f.engine(), http.MethodGet, "/profile", f.tokens(t, user).AccessToken, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var profile appidentity.UserResponse
	decodeData(t, w, &profile)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestUserHandler_List_ForbiddenForBuyer(t *testing.T) {
	f := newIdentityFixture()
	user := newTestUser(t, identity.UserTypeBuyer)

	w := doAuthorized(f.engine(), http.MethodGet, "/users", f.tokens(t, user).AccessToken, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.repo.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestUserHandler_List_Admin(t *testing.T) {
	f := newIdentityFixture()
	admin := newTestUser(t, identity.UserTypeAdmin)
	f.repo.On("FindAll", mock.Anything, mock.MatchedBy(func(filter identity.UserFilter) bool {
		return filter.UserType != nil && *filter.UserType == identity.UserTypeVendor && filter.Page == 2
	})).Return([]*identity.User{admin}, int64(21), nil)

	w := doAuthorized(f.engine(), http.MethodGet, "/users?user_type=vendor&page=2", f.tokens(t, admin).AccessToken, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(21), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 2, resp.Meta.TotalPages)
}

var _ identity.UserRepository = (*MockUserRepository)(nil)
