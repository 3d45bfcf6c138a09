package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/psiclinic/clinic/internal/config"
	"github.com/psiclinic/clinic/internal/domain/billing"
	"github.com/psiclinic/clinic/internal/domain/identity"
	"github.com/psiclinic/clinic/internal/domain/patient"
	"github.com/psiclinic/clinic/internal/domain/scheduling"
	"github.com/psiclinic/clinic/internal/domain/therapy"
	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/internal/platform/middleware"
	"github.com/psiclinic/clinic/internal/platform/reporting"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Psychology clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// connect loads configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := db.NewMigrator(pool)
			if err != nil {
				return err
			}
			return fn(ctx, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			name, err := m.Down(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if name == "" {
				fmt.Println("Nothing to roll back.")
				return nil
			}
			fmt.Printf("Rolled back %s.\n", name)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		}),
	})

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := createUserRequest(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(
				identity.NewUserRepoPG(pool),
				auth.NewBcryptHasher(cfg.BcryptCost),
				auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry),
			)
			u, err := svc.Bootstrap(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s user %s (id %d).\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email (required)")
	createCmd.Flags().String("password", "", "Initial password (required)")
	createCmd.Flags().String("name", "", "Display name (required)")
	createCmd.Flags().String("role", auth.RolePsychologist, "Role: psychologist, admin or super_admin")
	createCmd.Flags().String("crp", "", "Professional registration number")
	cmd.AddCommand(createCmd)

	return cmd
}

func createUserRequest(cmd *cobra.Command) (identity.CreateUserRequest, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")
	role, _ := cmd.Flags().GetString("role")
	crp, _ := cmd.Flags().GetString("crp")

	if email == "" || password == "" || name == "" {
		return identity.CreateUserRequest{}, fmt.Errorf("--email, --password and --name are required")
	}
	req := identity.CreateUserRequest{Email: email, Password: password, Name: name, Role: role}
	if crp != "" {
		req.CRP = &crp
	}
	return req, nil
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.EphemeralSecret {
		logger.Warn().Msg("JWT_SECRET not set; using a per-process secret, tokens will not survive a restart")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e, err := newServer(cfg, logger, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("conflict_mode", cfg.SchedulingConflictMode).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with global middleware and every
// domain's routes. The pool is only touched when a request reaches a
// repository.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool) (*echo.Echo, error) {
	rule, err := scheduling.ParseConflictRule(cfg.SchedulingConflictMode)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger, !cfg.IsProduction())

	// Identity
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		auth.NewBcryptHasher(cfg.BcryptCost),
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry),
	)

	// Global middleware
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityConfig{HSTS: cfg.IsProduction()}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.RateLimit(middleware.LoginRateLimitConfig()))
	e.Use(auth.Authenticate(identitySvc, auth.AuthSkipper))

	// Health checks
	e.GET("/health", db.LivenessHandler(cfg.Env))
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("")
	tx := db.NewTransactor(pool)

	patientRepo := patient.NewRepoPG(pool)
	sessionRepo := therapy.NewRepoPG(pool)

	identity.NewHandler(identitySvc).RegisterRoutes(api)
	patient.NewHandler(patient.NewService(patientRepo, tx)).RegisterRoutes(api)
	therapy.NewHandler(therapy.NewService(sessionRepo, patientRepo)).RegisterRoutes(api)
	scheduling.NewHandler(scheduling.NewService(scheduling.NewRepoPG(pool), patientRepo, tx, rule)).RegisterRoutes(api)
	billing.NewHandler(billing.NewService(billing.NewRepoPG(pool), patientRepo, sessionRepo)).RegisterRoutes(api)
	reporting.NewHandler(reporting.NewService(reporting.NewPGStore(pool))).RegisterRoutes(api)

	return e, nil
}
