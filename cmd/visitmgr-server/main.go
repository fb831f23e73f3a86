package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/visitmgr/visitmgr/internal/config"
	"github.com/visitmgr/visitmgr/internal/domain/account"
	"github.com/visitmgr/visitmgr/internal/domain/activity"
	"github.com/visitmgr/visitmgr/internal/domain/billing"
	"github.com/visitmgr/visitmgr/internal/domain/identity"
	"github.com/visitmgr/visitmgr/internal/domain/notes"
	"github.com/visitmgr/visitmgr/internal/domain/scheduling"
	"github.com/visitmgr/visitmgr/internal/platform/auth"
	"github.com/visitmgr/visitmgr/internal/platform/db"
	"github.com/visitmgr/visitmgr/internal/platform/middleware"
	"github.com/visitmgr/visitmgr/internal/platform/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const maxBodySize = "1M"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "visitmgr-server",
		Short:        "Clinic visit and billing API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	return rootCmd
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

func newLogger(env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "visitmgr").Logger()
}

// openPool loads config and connects. Callers close the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
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

	var dir string
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")

	migrator := func(ctx context.Context) (*db.Migrator, func(), error) {
		cfg, pool, err := openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		if dir == "" {
			dir = cfg.MigrationsDir
		}
		return db.NewMigrator(pool, dir), pool.Close, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := migrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := migrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := migrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			rolled, err := m.Down(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if rolled == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %03d_%s.\n", rolled.Version, rolled.Name)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}

	var email, password, role string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user, e.g. the first Admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg.Env)
			issuer := auth.NewTokenIssuer([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())
			svc := account.NewService(account.NewRepoPG(pool), issuer, nil, nil, logger)

			u, err := svc.Register(ctx, email, password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s, %s).\n", u.ID, u.Email, u.Role)
			return nil
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "User email")
	createCmd.Flags().StringVar(&password, "password", "", "User password")
	createCmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "Admin, Doctor or Receptionist")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	provider.PoolGauges(
		func() float64 { return float64(pool.Stat().TotalConns()) },
		func() float64 { return float64(pool.Stat().IdleConns()) },
		func() float64 { return float64(pool.Stat().AcquiredConns()) },
	)

	revocations, err := newRevocationStore(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer revocations.Close()

	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())
	tx := db.NewTransactor(pool)

	activitySvc := activity.NewService(activity.NewRepoPG(pool), logger)
	accountSvc := account.NewService(account.NewRepoPG(pool), issuer, revocations, activitySvc, logger)
	identitySvc := identity.NewService(identity.NewPatientRepoPG(pool), identity.NewDoctorRepoPG(pool), activitySvc, logger)
	schedulingSvc := scheduling.NewService(scheduling.NewVisitRepoPG(pool), scheduling.NewFeeScheduleRepoPG(pool), activitySvc, logger)
	notesSvc := notes.NewService(notes.NewRepoPG(pool), tx, activitySvc, logger)
	billingSvc := billing.NewService(billing.NewRuleRepoPG(pool), billing.NewRepoPG(pool), tx, activitySvc, provider, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(provider.TracingMiddleware())
	e.Use(provider.MetricsMiddleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout()))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      issuer,
		Revocations: revocations,
	}))
	e.Use(middleware.RequestLog(logger, activitySvc))

	e.GET("/health", db.LivenessHandler(version))
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", provider.Handler())

	apiV1 := e.Group("/api/v1")
	rateLimit := middleware.DefaultRateLimitConfig()
	rateLimit.RequestsPerSecond = cfg.RateLimitRPS
	rateLimit.BurstSize = cfg.RateLimitBurst
	apiV1.Use(middleware.RateLimit(rateLimit))

	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	activity.NewHandler(activitySvc).RegisterRoutes(apiV1)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)
	notes.NewHandler(notesSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           provider.HTTPHandler(e),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

type closableRevocationStore interface {
	auth.RevocationStore
	io.Closer
}

// newRevocationStore uses Redis when url is set so revocations survive
// restarts and are shared between replicas.
func newRevocationStore(ctx context.Context, url string, logger zerolog.Logger) (closableRevocationStore, error) {
	if url == "" {
		logger.Warn().Msg("REDIS_URL not set, token revocations are kept in memory")
		return auth.NewMemoryRevocationStore(), nil
	}
	client, err := auth.NewRedisClient(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info().Msg("connected to redis")
	return auth.NewRedisRevocationStore(client), nil
}
