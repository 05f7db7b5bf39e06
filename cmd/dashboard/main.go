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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jackdevtech455/youtube-analytics/internal/dashboard"
	"github.com/jackdevtech455/youtube-analytics/internal/server"
	"github.com/jackdevtech455/youtube-analytics/internal/trackerapi"
	"github.com/jackdevtech455/youtube-analytics/pkg/config"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
	"github.com/jackdevtech455/youtube-analytics/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting YouTube analytics dashboard")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	client, err := trackerapi.New(&cfg.API)
	if err != nil {
		logger.Fatal("Failed to create tracker API client", zap.Error(err))
	}

	session := dashboard.NewSession(client, cfg)
	defer session.Close()

	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	router := server.NewRouter(session, client)
	router.SetupRoutes(engine)
	defer router.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr), zap.String("session_id", session.ID))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
