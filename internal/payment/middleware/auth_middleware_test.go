package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret"

func mintToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := portalClaims{
		Email:   "author@example.uz",
		IsAdmin: false,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthTestHandler() (http.Handler, *AuthenticatedUser) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var captured AuthenticatedUser
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := r.Context().Value(AuthenticatedUserContextKey).(AuthenticatedUser); ok {
			captured = user
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return AuthMiddleware(testSecret, logger)(inner), &captured
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	handler, captured := newAuthTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "user-1", time.Hour))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "user-1", captured.ID)
	assert.Equal(t, "author@example.uz", captured.Email)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	handler, _ := newAuthTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	handler, _ := newAuthTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "ApiKey something")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	handler, _ := newAuthTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "other-secret", "user-1", time.Hour))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	handler, _ := newAuthTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "user-1", -time.Minute))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_EmptySubject(t *testing.T) {
	handler, _ := newAuthTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, "", time.Hour))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
