package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftea/saga-orchestrator/saga-service/config"
	"github.com/draftea/saga-orchestrator/saga-service/handlers"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.ReadConfig()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With("service", cfg.ServiceName)

	log.Info("starting service", "env", cfg.Env, "port", cfg.Port, "storage", cfg.Saga.Storage, "lock", cfg.Saga.Lock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies
	deps, err := config.BuildDependencies(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build dependencies", "error", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = deps.Close(closeCtx, log)
	}()

	// Start event subscriber
	if deps.EventSubscriber != nil {
		if err := deps.EventSubscriber.Subscribe(ctx, handlers.CommandTopics, deps.SagaEventHandlers); err != nil {
			log.Fatal("failed to subscribe to saga commands", "error", err)
		}
	}

	// Background driver
	if cfg.Saga.DriverInterval > 0 {
		go func() {
			if err := deps.DriveSagas.Run(ctx, cfg.Saga.DriverInterval); err != nil {
				log.Error("saga driver stopped", "error", err)
			}
		}()
	}

	// Setup and start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(cfg, deps),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("service stopped")
}

func setupRouter(cfg *config.Config, deps *config.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// Telemetry middleware (inject telemetry into context)
	if deps.Telemetry != nil {
		r.Use(telemetry.Middleware(deps.Telemetry))
	}

	r.Get("/health", handlers.HealthHandler(cfg.ServiceName))

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", handlers.NewMetricsHandler())

	deps.SagaHandlers.RegisterRoutes(r)

	return r
}
