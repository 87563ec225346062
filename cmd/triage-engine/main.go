package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/allocation"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/api"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/config"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/engine"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/events"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/forecast"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/journal"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/logging"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/oracle"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/registry"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/triage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	facility, err := cfg.BuildFacility()
	if err != nil {
		logging.Fatalf("Failed to build facility: %v", err)
	}

	db, err := journal.NewSQLiteDB(cfg.Journal.DSN)
	if err != nil {
		logging.Fatalf("Failed to initialize journal: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := events.NewBroadcaster()
	reg := registry.New()

	classifier := triage.NewClassifier(oracle.NewRiskClient(cfg.Oracles.RiskURL, cfg.Oracles.Timeout))
	monitor := forecast.NewMonitor(
		oracle.NewForecastClient(cfg.Oracles.ForecastURL, cfg.Oracles.Timeout),
		cfg.Forecast.RefreshInterval,
		cfg.Forecast.HorizonHours,
		cfg.Forecast.WindowHours,
	)
	coordinator := allocation.NewCoordinator(
		oracle.NewAllocationClient(cfg.Oracles.AllocationURL, cfg.Oracles.Timeout),
		reg,
	)

	eng := engine.New(facility, reg, classifier, monitor, coordinator, db, broadcaster,
		cfg.Worker.Count, cfg.Worker.BufferSize)
	eng.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	handler := api.NewHandler(eng, broadcaster)
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
	eng.Stop()
	broadcaster.Close() // Close all streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
