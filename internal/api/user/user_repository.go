package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dbarbosa-dev/user-identity-service/internal/api"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user record persistence.
type UserRepo interface {
	// List returns user records matching the filter, newest first.
	List(ctx context.Context, filter UserFilter) ([]User, error)

	// GetByID retrieves a user record by its unique ID.
	// Returns api.ErrUserNotFound if no record matches.
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)

	// Insert persists a new user record and returns it as stored.
	// A unique-constraint violation on email is translated to
	// api.ErrDuplicateUser carrying the attempted email; other storage
	// failures propagate unchanged.
	Insert(ctx context.Context, w UserWrite) (*User, error)

	// Update applies the non-nil fields of w to the record and returns the
	// updated row. Returns api.ErrUserNotFound if no record matches.
	Update(ctx context.Context, userID uuid.UUID, w UserWrite) (*User, error)

	// Delete removes a user record. Returns api.ErrUserNotFound if no record
	// matches.
	Delete(ctx context.Context, userID uuid.UUID) error

	// UpdateRoles persists a full replacement role set.
	UpdateRoles(ctx context.Context, userID uuid.UUID, roles []string) (*User, error)

	// UpdateLastAccess stamps the record's last_access with the current time.
	UpdateLastAccess(ctx context.Context, userID uuid.UUID) error
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

// PGXPool is the subset of pgxpool.Pool the repository uses; pgxmock satisfies
// it in tests.
type PGXPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PGXPool = (*pgxpool.Pool)(nil)

func NewPostgresUserRepo(pgpool PGXPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = "id, email, roles, is_enabled, last_access, created_at, updated_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Roles, &u.IsEnabled, &u.LastAccess, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// storageErr maps connection-class failures to api.ErrStorageUnavailable so
// the handler layer can answer 503 instead of a generic 500. Everything else
// passes through for standard error-to-status mapping.
func storageErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08") {
		return fmt.Errorf("%w: %s", api.ErrStorageUnavailable, pgErr.Message)
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %s", api.ErrStorageUnavailable, err.Error())
	}
	return err
}

func (r *PostgresUserRepo) List(ctx context.Context, filter UserFilter) ([]User, error) {
	l := r.logger.With(slog.String("method", "List"))

	query := fmt.Sprintf(`
        SELECT %s
        FROM users
        WHERE ($1 = '' OR lower(email) = lower($1))
        ORDER BY created_at DESC`, userColumns)

	rows, err := r.pgpool.Query(ctx, query, filter.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query users", slog.Any("error", err))
		return nil, fmt.Errorf("database error listing users: %w", storageErr(err))
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Roles, &u.IsEnabled, &u.LastAccess, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating users: %w", storageErr(err))
	}
	return users, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	l := r.logger.With(slog.String("method", "GetByID"), slog.String("userID", userID.String()))

	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	u, err := scanUser(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, api.ErrUserNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
		return nil, fmt.Errorf("database error fetching user: %w", storageErr(err))
	}
	return u, nil
}

func (r *PostgresUserRepo) Insert(ctx context.Context, w UserWrite) (*User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Insert", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Insert"))

	email := ""
	if w.Email != nil {
		email = *w.Email
	}
	roles := []string{}
	if w.Roles != nil {
		roles = dedupeRoles(*w.Roles)
	}
	isEnabled := true
	if w.IsEnabled != nil {
		isEnabled = *w.IsEnabled
	}

	query := fmt.Sprintf(`
        INSERT INTO users (email, password_hash, roles, is_enabled)
        VALUES ($1, $2, $3, $4)
        RETURNING %s`, userColumns)

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, email, w.Password, roles, isEnabled))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			l.WarnContext(ctx, "Attempted to insert user with duplicate email", slog.String("email", email))
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, api.NewDuplicateUser(email)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating user: %w", storageErr(err))
	}

	l.InfoContext(ctx, "User created", slog.String("userID", u.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return u, nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, userID uuid.UUID, w UserWrite) (*User, error) {
	l := r.logger.With(slog.String("method", "Update"), slog.String("userID", userID.String()))

	var setClauses []string
	var args []any
	argID := 1

	if w.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argID))
		args = append(args, *w.Email)
		argID++
	}
	if w.Password != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", argID))
		args = append(args, *w.Password)
		argID++
	}
	if w.Roles != nil {
		setClauses = append(setClauses, fmt.Sprintf("roles = $%d", argID))
		args = append(args, dedupeRoles(*w.Roles))
		argID++
	}
	if w.IsEnabled != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_enabled = $%d", argID))
		args = append(args, *w.IsEnabled)
		argID++
	}

	if len(setClauses) == 0 {
		// Nothing to change; hand back the current record.
		return r.GetByID(ctx, userID)
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, time.Now())
	argID++

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, userColumns)

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, api.ErrUserNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			email := ""
			if w.Email != nil {
				email = *w.Email
			}
			l.WarnContext(ctx, "Attempted to update user to duplicate email", slog.String("email", email))
			return nil, api.NewDuplicateUser(email)
		}
		l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		return nil, fmt.Errorf("database error updating user: %w", storageErr(err))
	}

	l.InfoContext(ctx, "User updated")
	return u, nil
}

func (r *PostgresUserRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	l := r.logger.With(slog.String("method", "Delete"), slog.String("userID", userID.String()))

	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		return fmt.Errorf("database error deleting user: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, api.ErrUserNotFound)
	}

	l.InfoContext(ctx, "User deleted")
	return nil
}

// UpdateRoles replaces the record's role set wholesale. The dedupe/no-op
// semantics are computed by the service before this call; the read and the
// write are not atomic, so two concurrent role edits on the same user can
// race last-write-wins.
func (r *PostgresUserRepo) UpdateRoles(ctx context.Context, userID uuid.UUID, roles []string) (*User, error) {
	l := r.logger.With(slog.String("method", "UpdateRoles"), slog.String("userID", userID.String()))

	query := fmt.Sprintf(`
        UPDATE users SET roles = $2, updated_at = $3
        WHERE id = $1
        RETURNING %s`, userColumns)

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, userID, roles, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, api.ErrUserNotFound)
		}
		l.ErrorContext(ctx, "Failed to update roles", slog.Any("error", err))
		return nil, fmt.Errorf("database error updating roles: %w", storageErr(err))
	}

	l.InfoContext(ctx, "User roles updated", slog.Int("role_count", len(u.Roles)))
	return u, nil
}

func (r *PostgresUserRepo) UpdateLastAccess(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		"UPDATE users SET last_access = $2 WHERE id = $1", userID, time.Now())
	if err != nil {
		return fmt.Errorf("database error updating last access: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, api.ErrUserNotFound)
	}
	return nil
}

func dedupeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}
