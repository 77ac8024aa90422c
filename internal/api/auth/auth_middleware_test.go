package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbarbosa-dev/user-identity-service/config"
)

const testSecret = "test-secret-key-for-middleware-tests"

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey: testSecret,
		Issuer:    "user-identity-service",
		Audience:  "identity-clients",
	}
}

func mintToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func validClaims() *Claims {
	return &Claims{
		UserID: "a2e34e2c-2be1-4ab0-8f63-9e2f0a56c001",
		Email:  "caller@example.com",
		Scopes: []string{"read:self", "write:self"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "user-identity-service",
			Audience:  jwt.ClaimStrings{"identity-clients"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

// echoIdentity answers with whatever identity the middleware attached.
func echoIdentity(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := GetUserIDFromContext(r.Context())
		scopes, _ := GetScopesFromContext(r.Context())
		schema, _ := GetSchemaNameFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userID": userID,
			"scopes": scopes,
			"schema": schema,
		})
	})
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := Authenticate(logger, testJWTConfig())

	t.Run("valid token attaches identity to the context", func(t *testing.T) {
		claims := validClaims()
		claims.SchemaName = "tenant_a"
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, claims))

		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			UserID string   `json:"userID"`
			Scopes []string `json:"scopes"`
			Schema string   `json:"schema"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, claims.UserID, got.UserID)
		assert.Equal(t, claims.Scopes, got.Scopes)
		assert.Equal(t, "tenant_a", got.Schema)
	})

	t.Run("missing header answers unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer header answers unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token answers unauthorized", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, claims))

		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "expired")
	})

	t.Run("token signed with another key answers unauthorized", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
		signed, err := token.SignedString([]byte("some-other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer "+signed)

		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong issuer answers unauthorized", func(t *testing.T) {
		claims := validClaims()
		claims.Issuer = "someone-else"
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, claims))

		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong audience answers unauthorized", func(t *testing.T) {
		claims := validClaims()
		claims.Audience = jwt.ClaimStrings{"another-api"}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, claims))

		rec := httptest.NewRecorder()
		mw(echoIdentity(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireScope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authMw := Authenticate(logger, testJWTConfig())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(t *testing.T, scope string, claims *Claims) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, claims))
		rec := httptest.NewRecorder()
		authMw(RequireScope(logger, scope)(ok)).ServeHTTP(rec, req)
		return rec
	}

	t.Run("granted scope passes", func(t *testing.T) {
		rec := serve(t, "read:self", validClaims())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing scope answers forbidden", func(t *testing.T) {
		rec := serve(t, "write:users", validClaims())
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "write:users")
	})

	t.Run("no scope claims answers unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireScope(logger, "read:users")(ok).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestClaims_HasScope(t *testing.T) {
	c := &Claims{Scopes: []string{"read:self", "write:self"}}
	assert.True(t, c.HasScope("read:self"))
	assert.False(t, c.HasScope("write:users"))
}
