package user

import "strings"

// WriteHook is a pure transform applied to a write payload before it reaches
// storage. Hooks are registered at startup and run in registration order on
// every insert and update.
type WriteHook func(*UserWrite)

// NormalizeEmail lowercases the email field so uniqueness comparisons at the
// storage layer are always against the canonical form. Absent or empty email
// is a no-op.
func NormalizeEmail(w *UserWrite) {
	if w.Email != nil && *w.Email != "" {
		*w.Email = strings.ToLower(*w.Email)
	}
}
