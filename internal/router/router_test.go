package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbarbosa-dev/user-identity-service/internal/api/auth"
	"github.com/dbarbosa-dev/user-identity-service/internal/api/user"
)

// stubUserService echoes back whatever identifier it is asked about, which is
// enough to observe which handler a request was dispatched to.
type stubUserService struct{}

func (stubUserService) ListUsers(ctx context.Context, filter user.UserFilter) ([]user.User, error) {
	return []user.User{}, nil
}

func (stubUserService) GetUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return &user.User{ID: userID}, nil
}

func (stubUserService) CreateUser(ctx context.Context, w user.UserWrite) (*user.User, error) {
	u := user.User{ID: uuid.New()}
	if w.Email != nil {
		u.Email = *w.Email
	}
	return &u, nil
}

func (stubUserService) UpdateUser(ctx context.Context, userID uuid.UUID, w user.UserWrite) (*user.User, error) {
	return &user.User{ID: userID}, nil
}

func (stubUserService) DeleteUser(ctx context.Context, callerID, userID uuid.UUID) error {
	return nil
}

func (stubUserService) AssignRole(ctx context.Context, userID, role string) (*user.User, error) {
	return &user.User{Roles: []string{role}}, nil
}

func (stubUserService) UnassignRole(ctx context.Context, userID, role string) (*user.User, error) {
	return &user.User{}, nil
}

func (stubUserService) RecordAccess(ctx context.Context, userID uuid.UUID) error {
	return nil
}

var _ user.UserService = stubUserService{}

// testConfig wires the router with a stub identity: every request is treated
// as authenticated callerID, and each scope check is recorded in seenScopes
// keyed by "METHOD path".
func testConfig(callerID uuid.UUID, seenScopes map[string]string, allowCreate bool) *Config {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := user.NewHandlerImpl(stubUserService{}, logger)

	return &Config{
		UserHandler: handler,
		AuthenticateMiddleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := context.WithValue(r.Context(), auth.UserIDKey, callerID.String())
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		},
		RequireScope: func(scope string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if seenScopes != nil {
						seenScopes[r.Method+" "+r.URL.Path] = scope
					}
					next.ServeHTTP(w, r)
				})
			}
		},
		AllowCreate: allowCreate,
	}
}

func TestUserRoutes_Table(t *testing.T) {
	t.Run("create route only present when enabled", func(t *testing.T) {
		cfg := testConfig(uuid.New(), nil, false)

		for _, route := range UserRoutes(cfg) {
			if route.Method == http.MethodPost && route.Pattern == "/users" {
				t.Fatal("POST /users present with creation disabled")
			}
		}

		cfg.AllowCreate = true
		found := false
		for _, route := range UserRoutes(cfg) {
			if route.Method == http.MethodPost && route.Pattern == "/users" {
				found = true
				assert.Equal(t, PermWriteUsers, route.Permission)
			}
		}
		assert.True(t, found)
	})

	t.Run("each route declares its permission", func(t *testing.T) {
		cfg := testConfig(uuid.New(), nil, true)

		want := map[string]string{
			http.MethodGet + " /users/me":              PermReadSelf,
			http.MethodPut + " /users/me":              PermWriteSelf,
			http.MethodPatch + " /users/me":            PermWriteSelf,
			http.MethodPost + " /users/role/assign":    PermWriteUsers,
			http.MethodPost + " /users/role/unassign":  PermWriteUsers,
			http.MethodGet + " /users":                 PermReadUsers,
			http.MethodGet + " /users/{id}":            PermReadUsers,
			http.MethodPut + " /users/{id}":            PermWriteUsers,
			http.MethodDelete + " /users/{id}":         PermWriteUsers,
			http.MethodPost + " /users":                PermWriteUsers,
		}

		routes := UserRoutes(cfg)
		require.Len(t, routes, len(want))
		for _, route := range routes {
			assert.Equal(t, want[route.Method+" "+route.Pattern], route.Permission,
				"%s %s", route.Method, route.Pattern)
		}
	})
}

func TestSetupRouter(t *testing.T) {
	t.Run("self route wins over the id wildcard", func(t *testing.T) {
		callerID := uuid.New()
		r := SetupRouter(testConfig(callerID, nil, true))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, callerID, got.ID, "self route must resolve to the caller, not a literal \"me\" id")
	})

	t.Run("wildcard route still reachable for real ids", func(t *testing.T) {
		targetID := uuid.New()
		r := SetupRouter(testConfig(uuid.New(), nil, true))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/"+targetID.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, targetID, got.ID)
	})

	t.Run("role routes win over the id wildcard", func(t *testing.T) {
		r := SetupRouter(testConfig(uuid.New(), nil, true))

		body := strings.NewReader(`{"userId":"` + uuid.NewString() + `","role":"author"}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users/role/assign", body))

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabling creation removes only the create route", func(t *testing.T) {
		r := SetupRouter(testConfig(uuid.New(), nil, false))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"email":"x@y.z"}`)))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("scope checks run with each route's declared permission", func(t *testing.T) {
		seen := map[string]string{}
		r := SetupRouter(testConfig(uuid.New(), seen, true))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, PermReadSelf, seen["GET /api/v1/users/me"])
		assert.Equal(t, PermReadUsers, seen["GET /api/v1/users"])
	})

	t.Run("ping is open", func(t *testing.T) {
		r := SetupRouter(testConfig(uuid.New(), nil, false))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
	})
}
