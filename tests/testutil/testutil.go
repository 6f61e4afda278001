// Package testutil drives gin handlers directly in table-driven tests,
// without a router or middleware in front of them.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/cryptonexus/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestContext is the gin context a handler runs in plus its recorder
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
}

// SetActor authenticates the request the way the JWT middleware would.
// Admins are marked as staff.
func (tc *TestContext) SetActor(userID uuid.UUID, userType string) {
	claims := &auth.Claims{
		UserID:    userID.String(),
		Username:  "user_" + userID.String()[:8],
		UserType:  userType,
		IsStaff:   userType == auth.UserTypeAdmin,
		TokenType: auth.TokenTypeAccess,
	}
	tc.Context.Set(middleware.JWTClaimsKey, claims)
	tc.Context.Set(middleware.JWTUserIDKey, claims.UserID)
	tc.Context.Set(middleware.JWTUserTypeKey, claims.UserType)
}

// SetParam fills a path parameter such as :order_number
func (tc *TestContext) SetParam(key, value string) {
	tc.Context.Params = append(tc.Context.Params, gin.Param{Key: key, Value: value})
}

// Response is the API envelope with the payload left undecoded
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// HTTPTestCase is one request against a handler. ExpectedCode names the
// error code of a failing request; leave it empty to expect success.
type HTTPTestCase struct {
	Name           string
	Method         string
	Path           string
	Body           any
	Setup          func(t *testing.T, tc *TestContext)
	ExpectedStatus int
	ExpectedCode   string
	Validate       func(t *testing.T, resp *Response)
}

func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

func RunHTTPTestCase(t *testing.T, handler gin.HandlerFunc, tc HTTPTestCase) *Response {
	t.Helper()

	var body io.Reader
	if tc.Body != nil {
		raw, err := json.Marshal(tc.Body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(cmp(tc.Method, http.MethodGet), cmp(tc.Path, "/"), body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	ctx := &TestContext{Context: c, Recorder: w}
	if tc.Setup != nil {
		tc.Setup(t, ctx)
	}

	handler(c)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, w.Code, w.Body.String())
	}
	resp := Decode(t, w)
	if tc.ExpectedCode != "" {
		require.NotNil(t, resp.Error, "expected error %s", tc.ExpectedCode)
		assert.False(t, resp.Success)
		assert.Equal(t, tc.ExpectedCode, resp.Error.Code)
	} else if w.Code < http.StatusBadRequest {
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	}
	if tc.Validate != nil {
		tc.Validate(t, resp)
	}
	return resp
}

// Decode parses the envelope written to w
func Decode(t *testing.T, w *httptest.ResponseRecorder) *Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return &resp
}

// DataAs decodes the payload of a successful response
func DataAs[T any](t *testing.T, resp *Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out), string(resp.Data))
	return out
}

func cmp(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
