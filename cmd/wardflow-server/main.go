package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wardflow/wardflow/internal/config"
	"github.com/wardflow/wardflow/internal/domain/booking"
	"github.com/wardflow/wardflow/internal/domain/encounter"
	"github.com/wardflow/wardflow/internal/domain/facility"
	"github.com/wardflow/wardflow/internal/domain/procedure"
	"github.com/wardflow/wardflow/internal/domain/referral"
	"github.com/wardflow/wardflow/internal/domain/statushistory"
	"github.com/wardflow/wardflow/internal/domain/transfer"
	"github.com/wardflow/wardflow/internal/platform/auth"
	"github.com/wardflow/wardflow/internal/platform/clock"
	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/platform/middleware"
	"github.com/wardflow/wardflow/internal/platform/telemetry"
	"github.com/wardflow/wardflow/internal/workflow"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wardflow-server",
		Short: "Clinical workflow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Telemetry
	metrics := telemetry.NewProvider("wardflow-server")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Audit middleware, doubling as the transition-counter feed: every
	// lifecycle verb shows up here with its response status.
	e.Use(middleware.Audit(logger, middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		if entry.Action == "transition" {
			outcome := "applied"
			if entry.StatusCode >= 400 {
				outcome = "rejected"
			}
			metrics.TransitionCounter(entry.EntityType, outcome)
		}
		return nil
	})))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Shared workflow plumbing
	clk := clock.System{}
	engine := workflow.NewEngine(clk)
	historyRepo := statushistory.NewRepo(pool)
	history := statushistory.NewRecorder(historyRepo, clk)

	// -- Register Domain Handlers --

	// Encounter domain
	encRepo := encounter.NewRepo(pool)
	encSvc := encounter.NewService(encRepo, pool, engine, history, clk)
	encHandler := encounter.NewHandler(encSvc)
	encHandler.RegisterRoutes(apiV1)

	// Department transfer domain
	xferRepo := transfer.NewRepo(pool)
	xferSvc := transfer.NewService(xferRepo, pool, engine, history, clk)
	xferHandler := transfer.NewHandler(xferSvc)
	xferHandler.RegisterRoutes(apiV1)

	// Referral letter domain
	refRepo := referral.NewRepo(pool)
	refSvc := referral.NewService(refRepo, pool, engine, history, clk)
	refHandler := referral.NewHandler(refSvc)
	refHandler.RegisterRoutes(apiV1)

	// Facility resources
	resRepo := facility.NewRepo(pool)
	resSvc := facility.NewService(resRepo, clk)
	resHandler := facility.NewHandler(resSvc)
	resHandler.RegisterRoutes(apiV1)

	// Scheduled activities
	actRepo := procedure.NewRepo(pool)
	actSvc := procedure.NewService(actRepo, pool, engine, history, clk)
	actHandler := procedure.NewHandler(actSvc)
	actHandler.RegisterRoutes(apiV1)

	// Resource booking
	bookRepo := booking.NewRepo(pool)
	calendar := booking.NewCalendar(cfg.BookingBufferMinutes)
	coordinator := booking.NewCoordinator(bookRepo, resRepo, actRepo, calendar, engine, history, pool, clk)
	bookHandler := booking.NewHandler(coordinator)
	bookHandler.SetConflictCounter(metrics.BookingConflictCounter)
	bookHandler.RegisterRoutes(apiV1)

	// Health and metrics
	e.GET("/healthz", db.HealthHandler(pool))
	e.GET("/metrics", metrics.PrometheusHandler())

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
