package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dbarbosa-dev/user-identity-service/config"
	"github.com/dbarbosa-dev/user-identity-service/internal/api"
)

// Typed context keys for claims attached by Authenticate.
type contextKey string

const UserIDKey contextKey = "userID"
const UserScopesKey contextKey = "userScopes"
const SchemaNameKey contextKey = "schemaName"

// Authenticate is middleware that validates JWT access tokens minted by the
// platform's auth collaborator and attaches the caller's identity, scopes and
// schema name to the request context.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, "Authorization header required", nil)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, "Authorization header format must be Bearer {token}", nil)
				return
			}
			tokenString := headerParts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secretKey, nil
			})

			if err != nil {
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				errMsg := "Invalid or expired token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					errMsg = "Token has expired"
				} else if errors.Is(err, jwt.ErrTokenMalformed) {
					errMsg = "Malformed token"
				} else if errors.Is(err, jwt.ErrSignatureInvalid) {
					errMsg = "Invalid token signature"
				}
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, errMsg, nil)
				return
			}

			if !token.Valid {
				l.WarnContext(ctx, "Token marked as invalid or claims are nil")
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, "Invalid token", nil)
				return
			}

			if jwtCfg.Issuer != "" && claims.Issuer != jwtCfg.Issuer {
				l.WarnContext(ctx, "Token issuer mismatch", slog.String("expected", jwtCfg.Issuer), slog.String("actual", claims.Issuer))
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, "Invalid token issuer", nil)
				return
			}

			if jwtCfg.Audience != "" && !api.VerifyAudience(claims.Audience, jwtCfg.Audience) {
				l.WarnContext(ctx, "Token audience mismatch", slog.String("expected", jwtCfg.Audience), slog.Any("actual", claims.Audience))
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, "Invalid token audience", nil)
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserScopesKey, claims.Scopes)
			ctx = context.WithValue(ctx, SchemaNameKey, claims.SchemaName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions to get claims from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func GetScopesFromContext(ctx context.Context) ([]string, bool) {
	scopes, ok := ctx.Value(UserScopesKey).([]string)
	return scopes, ok
}

func GetSchemaNameFromContext(ctx context.Context) (string, bool) {
	schema, ok := ctx.Value(SchemaNameKey).(string)
	return schema, ok
}

// RequireScope enforces a declared per-route permission. The route table
// declares the scope; this middleware consumes the authorization verdict by
// checking it against the scopes the auth collaborator granted the caller.
// Runs AFTER the Authenticate middleware.
func RequireScope(logger *slog.Logger, scope string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scopes, ok := GetScopesFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Scope claims missing from context", slog.String("required_scope", scope))
				api.ErrorResponse(w, r, http.StatusUnauthorized, api.KindUnauthenticated, "Authentication required", nil)
				return
			}

			for _, s := range scopes {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.WarnContext(ctx, "Permission scope check failed", slog.String("required_scope", scope))
			api.ErrorResponse(w, r, http.StatusForbidden, "Forbidden", fmt.Sprintf("Missing required permission '%s'", scope), nil)
		})
	}
}
