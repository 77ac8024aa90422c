package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/dbarbosa-dev/user-identity-service/app/db"
	"github.com/dbarbosa-dev/user-identity-service/config"
	"github.com/dbarbosa-dev/user-identity-service/internal/api/user"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	UserService *user.UserServiceImpl
	UserHandler *user.HandlerImpl
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	userRepo := user.NewPostgresUserRepo(pool, logger)
	userService := user.NewUserService(userRepo, logger)

	// Startup-time hook registration; the pipeline is fixed from here on.
	if cfg.Users.ForceLowercaseEmail {
		userService.Use(user.NormalizeEmail)
	}

	userHandler := user.NewHandlerImpl(userService, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		UserService: userService,
		UserHandler: userHandler,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations(connectionURL string) error {
	return database.RunMigrations(connectionURL, c.Logger)
}

// EnsureEmailIndex ensures the unique index on the normalized email.
func (c *Container) EnsureEmailIndex(ctx context.Context) error {
	return database.EnsureEmailIndex(ctx, c.Pool, c.Logger)
}
