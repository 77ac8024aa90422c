package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a persisted identity record. The password hash never leaves the
// repository layer.
type User struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Roles      []string   `json:"roles"`
	IsEnabled  bool       `json:"isEnabled"`
	LastAccess *time.Time `json:"lastAccess,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// UserWrite is the mutable portion of a user record as submitted by a client.
// Nil fields are left untouched; the same shape feeds both insert and update
// so write hooks run identically on either path.
type UserWrite struct {
	Email     *string   `json:"email,omitempty"`
	Password  *string   `json:"password,omitempty"`
	Roles     *[]string `json:"roles,omitempty"`
	IsEnabled *bool     `json:"isEnabled,omitempty"`
}

// UserFilter narrows a list query. Zero value matches everything.
type UserFilter struct {
	Email string
}

// RoleEditRequest is the body of the role assign/unassign endpoints.
type RoleEditRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
