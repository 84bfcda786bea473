package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/quillback/taskdeck/pkg/access"
	"github.com/quillback/taskdeck/pkg/audit"
	"github.com/quillback/taskdeck/pkg/auth"
	"github.com/quillback/taskdeck/pkg/config"
	"github.com/quillback/taskdeck/pkg/middleware"
	"github.com/quillback/taskdeck/pkg/observability"
	"github.com/quillback/taskdeck/pkg/storage/postgres"
	"github.com/quillback/taskdeck/pkg/teams"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := access.RunMigrations(context.Background(), db); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	var auditLogger audit.Logger = &audit.NoOpLogger{}
	if cfg.Audit.Enabled {
		dbAudit, err := audit.NewDBLogger(db)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize audit logger")
			os.Exit(1)
		}
		auditLogger = dbAudit
	}
	defer auditLogger.Close()

	verifier, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize token verifier")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	accessStore := access.NewStore(db)
	accessHandlers := access.NewHandlers(accessStore, auditLogger)
	accessHandlers.SetMetrics(metrics)
	guard := access.NewGuard(accessStore)

	teamService := teams.NewService(db, guard, cfg.Invites.TTL)
	teamHandlers := teams.NewHandlers(teamService, accessStore, auditLogger)
	teamHandlers.SetMetrics(metrics)

	purger := teams.NewPurger(teamService, logger, metrics)
	if err := purger.Start(cfg.Invites.PurgeSchedule); err != nil {
		logger.WithError(err).Error("Failed to schedule invitation purge")
		os.Exit(1)
	}

	authMiddleware := middleware.NewAuthMiddleware(verifier)
	rateLimiter, err := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize rate limiter")
		os.Exit(1)
	}
	rateLimiter.SetMetrics(metrics)

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics, logger))
	router.Use(authMiddleware.Handler)
	router.Use(rateLimiter.Handler)
	accessHandlers.RegisterRoutes(router)
	teamHandlers.RegisterRoutes(router)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db))
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	// Poll pool stats into the gauges until shutdown.
	statsCtx, stopStats := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				metrics.UpdateDBStats(stats.OpenConnections, stats.Idle)
			case <-statsCtx.Done():
				return
			}
		}
	}()

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopStats()
		return purger.Stop(ctx)
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server error")
		os.Exit(1)
	}
}
