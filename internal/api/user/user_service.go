package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/dbarbosa-dev/user-identity-service/internal/api"
)

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the business logic contract for user record operations.
type UserService interface {
	// Collection operations
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, w UserWrite) (*User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, w UserWrite) (*User, error)

	// DeleteUser removes a record. callerID is the authenticated caller;
	// a delete targeting the caller's own record fails with
	// api.ErrSelfDeleteForbidden regardless of the route used to reach it.
	DeleteUser(ctx context.Context, callerID, userID uuid.UUID) error

	// Role set editing
	AssignRole(ctx context.Context, userID, role string) (*User, error)
	UnassignRole(ctx context.Context, userID, role string) (*User, error)

	// RecordAccess stamps the caller's lastAccess timestamp. Callers treat
	// failures as advisory.
	RecordAccess(ctx context.Context, userID uuid.UUID) error
}

// UserServiceImpl provides the implementation for UserService.
type UserServiceImpl struct {
	logger     *slog.Logger
	repo       UserRepo
	writeHooks []WriteHook
}

// NewUserService creates a new user service instance.
func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// Use registers a write hook. Hooks run in registration order on every
// insert and update payload before it reaches storage.
func (s *UserServiceImpl) Use(h WriteHook) {
	s.writeHooks = append(s.writeHooks, h)
}

func (s *UserServiceImpl) applyWriteHooks(w *UserWrite) {
	for _, h := range s.writeHooks {
		h(w)
	}
}

// ListUsers returns records matching the filter. An email filter goes through
// the same write-hook pipeline as payload emails so comparisons are against
// the canonical form.
func (s *UserServiceImpl) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	l := s.logger.With(slog.String("method", "ListUsers"))
	l.DebugContext(ctx, "Listing users")

	if filter.Email != "" {
		w := UserWrite{Email: &filter.Email}
		s.applyWriteHooks(&w)
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// GetUser retrieves a user record by ID.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	l := s.logger.With(slog.String("method", "GetUser"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Fetching user")

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	return u, nil
}

// CreateUser validates and persists a new user record. The write-hook
// pipeline runs before the insert; a plaintext password, if present, is
// replaced by its bcrypt hash and never stored or logged as given.
func (s *UserServiceImpl) CreateUser(ctx context.Context, w UserWrite) (*User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "CreateUser")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateUser"))

	if w.Email == nil || *w.Email == "" {
		return nil, api.NewMissingFields("email")
	}

	s.applyWriteHooks(&w)

	if w.Password != nil && *w.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*w.Password), bcrypt.DefaultCost)
		if err != nil {
			l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
			span.SetStatus(codes.Error, "Password hashing failed")
			return nil, fmt.Errorf("error hashing password: %w", err)
		}
		hashed := string(hash)
		w.Password = &hashed
	}

	u, err := s.repo.Insert(ctx, w)
	if err != nil {
		l.WarnContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		return nil, err
	}

	l.InfoContext(ctx, "User created", slog.String("userID", u.ID.String()))
	span.SetAttributes(attribute.String("user.id", u.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return u, nil
}

// UpdateUser applies a write payload to an existing record. The write-hook
// pipeline runs before the update so create and update paths normalize
// identically.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, userID uuid.UUID, w UserWrite) (*User, error) {
	l := s.logger.With(slog.String("method", "UpdateUser"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Updating user")

	s.applyWriteHooks(&w)

	if w.Password != nil && *w.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*w.Password), bcrypt.DefaultCost)
		if err != nil {
			l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
			return nil, fmt.Errorf("error hashing password: %w", err)
		}
		hashed := string(hash)
		w.Password = &hashed
	}

	u, err := s.repo.Update(ctx, userID, w)
	if err != nil {
		l.WarnContext(ctx, "Failed to update user", slog.Any("error", err))
		return nil, err
	}

	l.InfoContext(ctx, "User updated")
	return u, nil
}

// DeleteUser removes a record, refusing self-deletion on any path.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, callerID, userID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "DeleteUser"), slog.String("userID", userID.String()))

	if callerID == userID {
		l.WarnContext(ctx, "User attempted to delete their own account")
		return api.ErrSelfDeleteForbidden
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		return err
	}

	l.InfoContext(ctx, "User deleted")
	return nil
}

// AssignRole adds a role to the user's role set. Assigning a role the user
// already holds is a no-op success.
// The read and the write are separate storage calls; concurrent role edits on
// the same user can race last-write-wins. Accepted: individual-user point
// edits dominate and the storage layer offers no atomic set-add that also
// preserves the no-op contract.
func (s *UserServiceImpl) AssignRole(ctx context.Context, userID, role string) (*User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "AssignRole", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("role", role),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "AssignRole"), slog.String("userID", userID), slog.String("role", role))

	u, err := s.fetchRoleEditTarget(ctx, userID, role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Role edit target unavailable")
		return nil, err
	}

	for _, existing := range u.Roles {
		if existing == role {
			l.DebugContext(ctx, "Role already assigned, no-op")
			span.SetStatus(codes.Ok, "Role already assigned")
			return u, nil
		}
	}

	updated, err := s.repo.UpdateRoles(ctx, u.ID, append(u.Roles, role))
	if err != nil {
		l.ErrorContext(ctx, "Failed to persist role assignment", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Role assignment failed")
		return nil, err
	}

	l.InfoContext(ctx, "Role assigned")
	span.SetStatus(codes.Ok, "Role assigned")
	return updated, nil
}

// UnassignRole removes a role from the user's role set. Removing a role the
// user does not hold is a no-op success. Same read-modify-write race caveat
// as AssignRole.
func (s *UserServiceImpl) UnassignRole(ctx context.Context, userID, role string) (*User, error) {
	l := s.logger.With(slog.String("method", "UnassignRole"), slog.String("userID", userID), slog.String("role", role))

	u, err := s.fetchRoleEditTarget(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(u.Roles))
	for _, existing := range u.Roles {
		if existing != role {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == len(u.Roles) {
		l.DebugContext(ctx, "Role not present, no-op")
		return u, nil
	}

	updated, err := s.repo.UpdateRoles(ctx, u.ID, remaining)
	if err != nil {
		l.ErrorContext(ctx, "Failed to persist role removal", slog.Any("error", err))
		return nil, err
	}

	l.InfoContext(ctx, "Role unassigned")
	return updated, nil
}

// fetchRoleEditTarget validates the role edit inputs before any storage
// access, then loads the target record.
func (s *UserServiceImpl) fetchRoleEditTarget(ctx context.Context, userID, role string) (*User, error) {
	var missing []string
	if strings.TrimSpace(userID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(role) == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return nil, api.NewMissingFields(missing...)
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		// An unparsable id can never match a record.
		return nil, fmt.Errorf("invalid user id %q: %w", userID, api.ErrUserNotFound)
	}

	return s.repo.GetByID(ctx, id)
}

// RecordAccess stamps the user's lastAccess timestamp.
func (s *UserServiceImpl) RecordAccess(ctx context.Context, userID uuid.UUID) error {
	return s.repo.UpdateLastAccess(ctx, userID)
}
