package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/davidemeka/ingesta/internal/core/database"
)

const testJWTSecret = "handler-test-secret"

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	handler(rr, req)
	return rr
}

func TestLoginUnknownEmailIsUnauthorized(t *testing.T) {
	h := NewAuthHandler(db.NewMemoryClient(), testJWTSecret)

	rr := postJSON(t, h.Login, `{"email":"nobody@example.com","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignupThenLogin(t *testing.T) {
	store := db.NewMemoryClient()
	h := NewAuthHandler(store, testJWTSecret)

	rr := postJSON(t, h.Signup, `{"email":"ada@example.com","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	t.Run("correct password", func(t *testing.T) {
		rr := postJSON(t, h.Login, `{"email":"ada@example.com","password":"hunter2"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp["token"])

		// The token must verify against the configured secret and carry the
		// user ID claim the middleware expects.
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(resp["token"], claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(testJWTSecret), nil
		})
		require.NoError(t, err)
		assert.True(t, token.Valid)
		assert.NotEmpty(t, claims["user_id"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := postJSON(t, h.Login, `{"email":"ada@example.com","password":"guessed"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("duplicate signup", func(t *testing.T) {
		rr := postJSON(t, h.Signup, `{"email":"ada@example.com","password":"other"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestLoginRejectsInvalidBody(t *testing.T) {
	h := NewAuthHandler(db.NewMemoryClient(), testJWTSecret)

	rr := postJSON(t, h.Login, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
