package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/strokeunit/strokeunit/internal/config"
	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/assessment"
	"github.com/strokeunit/strokeunit/internal/domain/consultation"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/domain/portal"
	"github.com/strokeunit/strokeunit/internal/domain/reporting"
	"github.com/strokeunit/strokeunit/internal/domain/threshold"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
	"github.com/strokeunit/strokeunit/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "stroke-server",
		Short: "Stroke unit API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(accessCodesCmd())
	rootCmd.AddCommand(usersCmd())

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

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openPool loads config and connects; used by the one-shot subcommands.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Status(ctx)
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
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func accessCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access-codes",
		Short: "Manage patient portal access codes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Assign access codes to patients that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := patient.NewService(patient.NewPatientRepoPG(pool), nil, nil, db.NewTransactor(pool), newLogger(cfg.Env))
			n, err := svc.BackfillAccessCodes(ctx)
			if err != nil {
				return fmt.Errorf("generate access codes: %w", err)
			}
			fmt.Printf("Generated %d access code(s).\n", n)
			return nil
		},
	})
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff and patient accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			username, _ := flags.GetString("username")
			email, _ := flags.GetString("email")
			first, _ := flags.GetString("first-name")
			last, _ := flags.GetString("last-name")
			role, _ := flags.GetString("role")
			isAdmin, _ := flags.GetBool("admin")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			u := &account.User{
				Username:  username,
				Email:     email,
				FirstName: first,
				LastName:  last,
				Role:      account.Role(strings.ToUpper(role)),
				IsAdmin:   isAdmin,
			}
			svc := account.NewService(account.NewUserRepoPG(pool))
			if err := svc.CreateUser(ctx, cliActor(), u); err != nil {
				return err
			}
			fmt.Printf("Created %s user %s (%s).\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("email", "", "Email address")
	createCmd.Flags().String("first-name", "", "Given name")
	createCmd.Flags().String("last-name", "", "Family name")
	createCmd.Flags().String("role", "", "PATIENT, TECHNICIAN or NEUROLOGIST")
	createCmd.Flags().Bool("admin", false, "Grant administrator rights")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("role")
	cmd.AddCommand(createCmd)

	return cmd
}

// cliActor is the identity operator commands run under.
func cliActor() auth.Actor {
	return auth.NewActor(uuid.Nil, []string{string(auth.CapAdmin)})
}

func apiRateLimit(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

// sessionStore picks Redis when REDIS_URL is set and an in-process store
// otherwise. The in-process store does not survive restarts or span replicas.
func sessionStore(ctx context.Context, redisURL string) (portal.SessionStore, func() error, error) {
	if redisURL == "" {
		return portal.NewMemoryStore(), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return portal.NewRedisStore(client), client.Close, nil
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore, err := sessionStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open portal session store")
	}
	defer func() { _ = closeStore() }()
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, portal sessions are kept in memory")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", portal.SessionHeader},
	}))
	e.Use(authMiddleware(cfg))
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(apiRateLimit(cfg)))
	portalGroup := e.Group("/api/v1/portal")
	portalGroup.Use(middleware.RateLimit(middleware.PortalRateLimitConfig(cfg.PortalRateLimitRPS, cfg.PortalRateLimitBurst)))

	tx := db.NewTransactor(pool)

	accountSvc := account.NewService(account.NewUserRepoPG(pool))
	notifSvc := notification.NewService(notification.NewNotificationRepoPG(pool), accountSvc)

	patientRepo := patient.NewPatientRepoPG(pool)
	assessSvc := assessment.NewService(
		assessment.NewAssessmentRepoPG(pool),
		patientRepo,
		threshold.NewMonitor(notifSvc, logger),
		tx,
		logger,
	)
	patientSvc := patient.NewService(patientRepo, assessment.NewIntake(assessSvc), accountSvc, tx, logger)
	consultationSvc := consultation.NewService(
		consultation.NewConsultationRepoPG(pool),
		consultation.NewTPARepoPG(pool),
		patientSvc,
		notifSvc,
		notifSvc,
		accountSvc,
		tx,
		logger,
	)
	portalSvc := portal.NewService(patientSvc, consultationSvc, assessSvc, store, cfg.PortalSessionTTL, logger)
	reportSvc := reporting.NewService(reporting.NewReportRepoPG(pool), logger)

	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	notification.NewHandler(notifSvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	assessment.NewHandler(assessSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultationSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(reportSvc).RegisterRoutes(apiV1)

	portalHandler := portal.NewHandler(portalSvc)
	portalHandler.RegisterPublicRoutes(portalGroup)
	portalHandler.RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", metrics.Handler())

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
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
