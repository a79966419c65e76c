package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylane/rewards-ledger/auth"
)

const testSecret = "test-secret"

func protected(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var seen string
	h := auth.Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserID(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestMiddleware_ValidToken(t *testing.T) {
	h, seen := protected(t)

	token, err := auth.Token("user-42", testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/rewards", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", *seen)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	h, _ := protected(t)

	req := httptest.NewRequest("GET", "/api/rewards", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_WrongSecret(t *testing.T) {
	h, _ := protected(t)

	token, err := auth.Token("user-42", "some-other-secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/rewards", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	h, _ := protected(t)

	token, err := auth.Token("user-42", testSecret, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/rewards", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_MalformedToken(t *testing.T) {
	h, _ := protected(t)

	req := httptest.NewRequest("GET", "/api/rewards", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
