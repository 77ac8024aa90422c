package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims attached by the platform's auth collaborator.
// SchemaName carries the schema/permission-scope name applicable to the
// caller; Scopes carries the granted permissions (e.g. "read:users",
// "write:self").
type Claims struct {
	UserID     string   `json:"user_id"`
	Email      string   `json:"email"`
	SchemaName string   `json:"schema,omitempty"`
	Scopes     []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the claims grant the given permission scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
