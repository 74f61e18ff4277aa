package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "jwt-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, UserClaims{
		Email: "owner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func runAuth(mw echo.MiddlewareFunc, header, value string) (echo.Context, bool, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	return c, called, err
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
}

func TestJWTAuth_ValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID.String(), time.Now().Add(time.Hour))

	c, called, err := runAuth(JWTAuth(testSecret), echo.HeaderAuthorization, "Bearer "+token)
	require.NoError(t, err)
	assert.True(t, called)

	got, ok := GetUserID(c)
	require.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestJWTAuth_Rejections(t *testing.T) {
	userID := uuid.New().String()
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), userID, future)},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, time.Now().Add(-time.Minute))},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), userID, future)},
		{"subject not a uuid", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "alice", future)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := echo.HeaderAuthorization
			if tt.header == "" {
				header = ""
			}
			_, called, err := runAuth(JWTAuth(testSecret), header, tt.header)
			assertUnauthorized(t, err)
			assert.False(t, called)
		})
	}
}

func TestServiceKeyAuth(t *testing.T) {
	mw := ServiceKeyAuth("service-key")

	_, called, err := runAuth(mw, echo.HeaderAuthorization, "Bearer service-key")
	require.NoError(t, err)
	assert.True(t, called)

	_, called, err = runAuth(mw, ServiceKeyHeader, "service-key")
	require.NoError(t, err)
	assert.True(t, called)

	_, called, err = runAuth(mw, echo.HeaderAuthorization, "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), uuid.NewString(), time.Now().Add(time.Hour)))
	assertUnauthorized(t, err)
	assert.False(t, called)

	_, _, err = runAuth(ServiceKeyAuth(""), ServiceKeyHeader, "")
	assertUnauthorized(t, err)
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, RequestID(func(c echo.Context) error { return nil })(c))

	assert.Equal(t, "req-123", GetRequestID(c))
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	require.NoError(t, RequestID(func(c echo.Context) error { return nil })(c))
	assert.Len(t, GetRequestID(c), 36)
}
