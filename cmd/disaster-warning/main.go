package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kx501/go-disaster-warning/internal/api"
	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/dedup"
	"github.com/Kx501/go-disaster-warning/internal/ingest"
	"github.com/Kx501/go-disaster-warning/internal/logging"
	"github.com/Kx501/go-disaster-warning/internal/models"
	"github.com/Kx501/go-disaster-warning/internal/observability"
	"github.com/Kx501/go-disaster-warning/internal/push"
	"github.com/Kx501/go-disaster-warning/internal/repository"
	"github.com/Kx501/go-disaster-warning/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Fatalf("Failed to create data directory: %v", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path, logging.Component("repository"))
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.New(registry)

	clock := clockwork.NewRealClock()
	broadcaster := push.NewBroadcaster()

	notifier := push.NewWebhookNotifier(cfg.Push.DeliveryTimeout, db, metrics, clock, logging.Component("notifier"))
	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.BufferSize, notifier.Deliver)
	pool.Start(ctx)

	deduplicator := dedup.New(cfg.Dedup, clock, logging.Component("dedup"))
	orchestrator := push.NewOrchestrator(cfg, models.DefaultRegistry(), deduplicator,
		pool, broadcaster, db, metrics, clock, logging.Component("push"))
	go orchestrator.RunCleanup(ctx, cfg.Connect.CleanupInterval)

	mgr := ingest.NewManager(cfg, orchestrator, db, metrics, clock, logging.Component("ingest"))
	mgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5, 10)) // 5 req/s global limit

	handler := api.NewHandler(db, mgr, deduplicator, broadcaster,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	pool.Stop()
	broadcaster.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
