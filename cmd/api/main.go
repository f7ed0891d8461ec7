package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaign-server/internal/api"
	"campaign-server/internal/config"
	"campaign-server/internal/credits"
	"campaign-server/internal/database"
	"campaign-server/shared/authutils"
	"campaign-server/shared/logger"
	"campaign-server/shared/messaging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "campaign-api",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Starting campaign API...", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectPostgres(ctx, cfg.Postgres(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := database.NewMigrator(pool, appLogger).Up(); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	conn, err := messaging.Connect(ctx, cfg.RabbitMQURL, cfg.MQMaxRetries, cfg.MQRetryDelay, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	taskPub, err := messaging.NewQueuePublisher(conn, cfg.TaskQueue, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create task publisher", zap.Error(err))
	}
	defer taskPub.Close()
	cancelPub, err := messaging.NewFanoutPublisher(conn, cfg.CancelExchange, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create cancel publisher", zap.Error(err))
	}
	defer cancelPub.Close()

	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	handler := api.NewCampaignHandler(taskPub, cancelPub, credits.NewPgLedger(pool, appLogger), appLogger)
	router := api.NewRouter(api.RouterConfig{
		Env:            cfg.Env,
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  true,
	}, handler, verifier, appLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		appLogger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down campaign API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Campaign API stopped")
}
