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

	"github.com/carewatch/carewatch/internal/config"
	"github.com/carewatch/carewatch/internal/domain/camera"
	"github.com/carewatch/carewatch/internal/domain/event"
	"github.com/carewatch/carewatch/internal/domain/patient"
	"github.com/carewatch/carewatch/internal/platform/auth"
	"github.com/carewatch/carewatch/internal/platform/db"
	"github.com/carewatch/carewatch/internal/platform/middleware"
	"github.com/carewatch/carewatch/internal/platform/notification"
)

// DispatcherAdapter adapts the notification Manager to the
// event.NotificationDispatcher interface, avoiding a circular import between
// the event and notification packages.
type DispatcherAdapter struct {
	manager *notification.Manager
}

// NewDispatcherAdapter creates a new adapter.
func NewDispatcherAdapter(mgr *notification.Manager) *DispatcherAdapter {
	return &DispatcherAdapter{manager: mgr}
}

func (a *DispatcherAdapter) templateData(ev *event.Event, info *event.EventContext) map[string]string {
	data := map[string]string{
		"patient_name": info.PatientName,
		"event_type":   ev.EventType,
		"new_status":   ev.Status,
		"camera_name":  info.CameraName,
		"room_name":    info.RoomName,
		"event_id":     ev.ID.String(),
	}
	if ev.PendingUntil != nil {
		data["pending_until"] = ev.PendingUntil.Format(time.RFC3339)
	}
	return data
}

// ProposalSubmitted notifies the customer that a caregiver proposed a change.
func (a *DispatcherAdapter) ProposalSubmitted(ctx context.Context, ev *event.Event, info *event.EventContext, caregiverName string) error {
	data := a.templateData(ev, info)
	data["caregiver_name"] = caregiverName
	_, err := a.manager.SendFromTemplate(ctx, notification.TemplateProposalSubmitted, data, info.CustomerID.String())
	return err
}

// ProposalConfirmed notifies the proposing caregiver of the confirmation.
func (a *DispatcherAdapter) ProposalConfirmed(ctx context.Context, ev *event.Event, info *event.EventContext) error {
	if ev.ProposedBy == nil {
		return nil
	}
	_, err := a.manager.SendFromTemplate(ctx, notification.TemplateProposalConfirmed, a.templateData(ev, info), ev.ProposedBy.String())
	return err
}

// ProposalRejected notifies the proposing caregiver of the rollback.
func (a *DispatcherAdapter) ProposalRejected(ctx context.Context, ev *event.Event, info *event.EventContext) error {
	if ev.ProposedBy == nil {
		return nil
	}
	_, err := a.manager.SendFromTemplate(ctx, notification.TemplateProposalRejected, a.templateData(ev, info), ev.ProposedBy.String())
	return err
}

// ProposalAutoApproved notifies the customer that the deadline passed and the
// proposal was applied.
func (a *DispatcherAdapter) ProposalAutoApproved(ctx context.Context, ev *event.Event, info *event.EventContext) error {
	_, err := a.manager.SendFromTemplate(ctx, notification.TemplateProposalAutoApproved, a.templateData(ev, info), info.CustomerID.String())
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "carewatch-server",
		Short: "CareWatch monitoring API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CareWatch API server",
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
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
			for _, s := range statuses {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				fmt.Printf("%-10d %-40s %s\n", s.Version, s.Name, status)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, ""); err != nil {
				return err
			}
			fmt.Println("Tenant created. Apply migrations with: carewatch-server migrate up --schema tenant_" + name)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one auto-approval pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := event.NewEventRepoPG(pool)
			svc := event.NewService(repo, nil, cfg.PendingWindow(), logger)
			sweeper := event.NewSweeper(svc, pool, logger)
			sweeper.BatchSize = cfg.SweepBatchSize

			var res *event.SweepResult
			err = db.WithTenantConn(ctx, pool, tenant, func(ctx context.Context) error {
				var runErr error
				res, runErr = sweeper.RunOnce(ctx)
				return runErr
			})
			if err != nil {
				return err
			}

			fmt.Printf("Sweep complete: scanned=%d approved=%d skipped=%d failed=%d\n",
				res.Scanned, res.Approved, res.Skipped, res.Failed)
			for _, ev := range res.Events {
				fmt.Printf("  approved %s status=%s\n", ev.ID, ev.Status)
			}
			return nil
		},
	}
	cmd.Flags().String("tenant", "default", "Tenant to sweep")
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
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	apiV1 := e.Group("/api/v1")

	// Notifications
	tplEngine := notification.NewTemplateEngine()
	pushSender := &notification.LogPushSender{Logger: logger}
	notifyMgr := notification.NewManager(pushSender, tplEngine)
	notifyHandler := notification.NewHandler(notifyMgr)
	notifyHandler.RegisterRoutes(apiV1)

	// Event domain with the confirmation workflow
	eventRepo := event.NewEventRepoPG(pool)
	dispatcher := NewDispatcherAdapter(notifyMgr)
	eventSvc := event.NewService(eventRepo, dispatcher, cfg.PendingWindow(), logger)
	sweeper := event.NewSweeper(eventSvc, pool, logger)
	sweeper.Interval = cfg.SweepInterval()
	sweeper.BatchSize = cfg.SweepBatchSize
	sweeper.Tenants = []string{cfg.DefaultTenant}
	eventHandler := event.NewHandler(eventSvc, sweeper)
	eventHandler.RegisterRoutes(apiV1)

	// Auto-approval sweeper
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	go sweeper.Start(sweepCtx)

	// Patient domain
	patientRepo := patient.NewPatientRepoPG(pool)
	patientSvc := patient.NewService(patientRepo)
	patientHandler := patient.NewHandler(patientSvc)
	patientHandler.RegisterRoutes(apiV1)

	// Camera domain
	cameraRepo := camera.NewCameraRepoPG(pool)
	cameraSvc := camera.NewService(cameraRepo)
	cameraHandler := camera.NewHandler(cameraSvc)
	cameraHandler.RegisterRoutes(apiV1)

	// Health endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
