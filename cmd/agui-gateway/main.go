package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/agui-gateway/internal/bridge"
	"github.com/kandev/agui-gateway/internal/common/config"
	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/internal/events"
	"github.com/kandev/agui-gateway/internal/gateway"
	"github.com/kandev/agui-gateway/internal/gateway/streaming"
	"github.com/kandev/agui-gateway/internal/runlog"
	"github.com/kandev/agui-gateway/internal/threads"
	"github.com/kandev/agui-gateway/internal/tracing"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting AG-UI gateway...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Connect the event bus (NATS when configured, in-memory otherwise)
	eventBus, busCleanup, err := events.Provide(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize event bus", zap.Error(err))
	}
	defer busCleanup()
	log.Info("Event bus ready", zap.Bool("connected", eventBus.IsConnected()))

	// 5. Open the thread store
	threadStore, err := newThreadStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open thread store", zap.Error(err))
	}
	defer threadStore.Close()
	log.Info("Thread store ready", zap.String("driver", cfg.Storage.Driver))

	// 6. Create the run log
	runLog := runlog.NewLog(cfg.RunLog.MaxEventsPerThread)

	// 7. Initialize bridge state and the pipeline driver
	sessions := bridge.NewStore()
	pipe, err := pipeline.New(cfg.Pipeline.Driver, log)
	if err != nil {
		log.Fatal("Failed to create pipeline driver", zap.Error(err))
	}
	pipe.RegisterHooks(bridge.NewToolHooks(sessions, log).Pipeline())
	pipe.RegisterToolSource(bridge.NewToolSource(sessions, log))
	runner := bridge.NewRunner(sessions, pipe, log)
	log.Info("Pipeline driver ready", zap.String("driver", cfg.Pipeline.Driver))

	// 8. Create the WebSocket hub, fed from the bus mirror
	hub := streaming.NewHub(log)
	busSub, err := hub.AttachBus(eventBus)
	if err != nil {
		log.Fatal("Failed to subscribe hub to event bus", zap.Error(err))
	}
	defer func() {
		_ = busSub.Unsubscribe()
	}()

	// 9. Setup HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gateway.Recovery(log))
	router.Use(gateway.RequestLogger(log))
	router.Use(gateway.ErrorHandler(log))
	router.Use(gateway.CORS())

	// 10. Register API routes
	v1 := router.Group("/api/v1")
	if cfg.Auth.Enabled() {
		v1.Use(gateway.BearerAuth(cfg.Auth.BearerToken))
		log.Info("Bearer auth enabled")
	}
	gateway.SetupRoutes(v1, runner, threadStore, runLog, eventBus, log)
	streaming.SetupWebSocketRoutes(v1, streaming.NewWSHandler(hub, log))

	// Health check endpoint at root level
	handler := gateway.NewHandler(runner, threadStore, runLog, eventBus, log)
	router.GET("/health", handler.HealthCheck)

	// 11. Create HTTP server. Runs stream for their full duration, so the
	// write timeout stays disabled unless configured.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 12. Run hub and server under one supervisor
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	// 13. Wait for shutdown signal or component failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Shutting down AG-UI gateway...")
	case <-groupCtx.Done():
		log.Error("Component failed, shutting down")
	}

	// 14. Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	if err := group.Wait(); err != nil {
		log.Error("Component shutdown error", zap.Error(err))
	}

	// 15. Flush traces
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("AG-UI gateway stopped")
}

// newThreadStore opens the configured thread persistence driver
func newThreadStore(ctx context.Context, cfg *config.Config) (threads.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return threads.NewSQLiteStore(cfg.Storage.Path)
	case "postgres":
		return threads.NewPostgresStore(ctx, cfg.Storage.DSN)
	default:
		return threads.NewMemoryStore(), nil
	}
}
