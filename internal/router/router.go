package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/dbarbosa-dev/user-identity-service/internal/api/user"
)

// Permission scopes declared per route. The authorization collaborator
// evaluates them before the handlers run; this package only declares the
// requirement.
const (
	PermReadUsers  = "read:users"
	PermWriteUsers = "write:users"
	PermReadSelf   = "read:self"
	PermWriteSelf  = "write:self"
)

// Route is one entry of the effective route table: a method/pattern pair, the
// permission it requires, and its handler. Behavior is passed as data so the
// table can be composed and inspected before mounting.
type Route struct {
	Method     string
	Pattern    string
	Permission string
	Handler    http.HandlerFunc
}

// Config contains dependencies needed for the router setup.
type Config struct {
	UserHandler *user.HandlerImpl

	// AuthenticateMiddleware attaches the caller's identity and scopes.
	AuthenticateMiddleware func(http.Handler) http.Handler
	// RequireScope enforces a route's declared permission; supplied by the
	// authorization collaborator's middleware.
	RequireScope func(scope string) func(http.Handler) http.Handler

	// PostDispatch middlewares run around every authenticated route, e.g.
	// the lastAccess recorder. They are the route table's after-request
	// extension point and must never fail the request themselves.
	PostDispatch []func(http.Handler) http.Handler

	// AllowCreate exposes POST /users. Off in deployments where user
	// creation goes through a separate registration flow.
	AllowCreate bool
}

// UserRoutes assembles the effective route table: the generic collection
// routes plus the identity-aware overrides (self route, role-mutation
// routes). Self and role routes use static patterns so they take precedence
// over the {id} wildcard.
func UserRoutes(cfg *Config) []Route {
	h := cfg.UserHandler

	routes := []Route{
		{Method: http.MethodGet, Pattern: "/users/me", Permission: PermReadSelf, Handler: h.GetSelf},
		{Method: http.MethodPut, Pattern: "/users/me", Permission: PermWriteSelf, Handler: h.ReplaceSelf},
		{Method: http.MethodPatch, Pattern: "/users/me", Permission: PermWriteSelf, Handler: h.PatchSelf},
		{Method: http.MethodPost, Pattern: "/users/role/assign", Permission: PermWriteUsers, Handler: h.AssignRole},
		{Method: http.MethodPost, Pattern: "/users/role/unassign", Permission: PermWriteUsers, Handler: h.UnassignRole},
		{Method: http.MethodGet, Pattern: "/users", Permission: PermReadUsers, Handler: h.ListUsers},
		{Method: http.MethodGet, Pattern: "/users/{id}", Permission: PermReadUsers, Handler: h.GetUser},
		{Method: http.MethodPut, Pattern: "/users/{id}", Permission: PermWriteUsers, Handler: h.UpdateUser},
		{Method: http.MethodDelete, Pattern: "/users/{id}", Permission: PermWriteUsers, Handler: h.DeleteUser},
	}

	if cfg.AllowCreate {
		routes = append(routes, Route{
			Method: http.MethodPost, Pattern: "/users", Permission: PermWriteUsers, Handler: h.CreateUser,
		})
	}

	return routes
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			for _, mw := range cfg.PostDispatch {
				r.Use(mw)
			}

			for _, route := range UserRoutes(cfg) {
				r.With(cfg.RequireScope(route.Permission)).Method(route.Method, route.Pattern, route.Handler)
			}
		})
	})

	return r
}
