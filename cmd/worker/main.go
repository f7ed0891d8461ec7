package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"campaign-server/internal/accounts"
	"campaign-server/internal/analyzer"
	"campaign-server/internal/artifacts"
	"campaign-server/internal/assembler"
	"campaign-server/internal/config"
	"campaign-server/internal/credits"
	"campaign-server/internal/database"
	"campaign-server/internal/metrics"
	"campaign-server/internal/narration"
	"campaign-server/internal/pipeline"
	"campaign-server/internal/provider/ffmpeg"
	"campaign-server/internal/provider/registry"
	"campaign-server/internal/segments"
	"campaign-server/internal/subject"
	"campaign-server/internal/worker"
	"campaign-server/shared/logger"
	"campaign-server/shared/messaging"

	"go.uber.org/zap"
)

func main() {
	// --- 1. Конфигурация и логгер ---
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "campaign-worker",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Starting campaign worker...", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Хранилища ---
	pool, err := database.ConnectPostgres(ctx, cfg.Postgres(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := database.NewMigrator(pool, appLogger).Up(); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	rdb, err := database.ConnectRedis(ctx, cfg.Redis(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	// --- 3. Провайдеры ---
	catalog, err := config.LoadProviderCatalog(cfg.ProvidersFile)
	if err != nil {
		appLogger.Fatal("Failed to load provider catalog", zap.Error(err))
	}
	providers, err := registry.Build(catalog, cfg.AIAPIKey, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to build providers", zap.Error(err))
	}
	appLogger.Info("Providers ready",
		zap.String("reasoning", providers.Reasoning.Name()),
		zap.Strings("visual_chain", registry.Names(providers.Visual)),
		zap.String("speech", providers.Speech.Name()))

	runner := ffmpeg.ExecRunner{}
	muxer := ffmpeg.NewMuxer(ffmpeg.Config{Binary: cfg.FFmpegPath, TempDir: cfg.TempDir}, runner, appLogger)
	probe := ffmpeg.NewProbe(runner, cfg.FFprobePath, cfg.TempDir)

	// --- 4. Пайплайн ---
	resolver := subject.NewCachedResolver(
		subject.NewRouter(
			subject.NewPgEventRepository(pool, appLogger),
			subject.NewURLResolver(cfg.SubjectTimeout, cfg.SubjectURLHosts, appLogger),
		),
		rdb, cfg.SubjectCacheTTL, appLogger,
	)

	var tokens analyzer.TokenCounter
	if providers.Tokens != nil {
		tokens = providers.Tokens
	}

	orchestrator := pipeline.NewOrchestrator(
		pipeline.Config{
			SceneCount:         cfg.SceneCount,
			CampaignCost:       cfg.CampaignCost,
			SegmentConcurrency: cfg.SegmentConcurrency,
		},
		credits.NewPgLedger(pool, appLogger),
		resolver,
		analyzer.NewAnalyzer(providers.Reasoning, tokens, cfg.AnalysisTimeout, appLogger),
		segments.NewSynthesizer(segments.Config{CallTimeout: cfg.SegmentTimeout, TransientBackoff: cfg.TransientBackoff}, appLogger),
		narration.NewSynthesizer(providers.Speech, probe, cfg.NarrationTimeout, appLogger),
		assembler.NewAssembler(muxer, cfg.AssemblyTimeout, appLogger),
		providers.Visual,
		appLogger,
	)

	sink, err := artifacts.NewDiskSink(cfg.ArtifactSavePath, cfg.ArtifactPublicBaseURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize artifact sink", zap.Error(err))
	}

	// --- 5. RabbitMQ ---
	conn, err := messaging.Connect(ctx, cfg.RabbitMQURL, cfg.MQMaxRetries, cfg.MQRetryDelay, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	progressPub, err := messaging.NewQueuePublisher(conn, cfg.ProgressQueue, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create progress publisher", zap.Error(err))
	}
	defer progressPub.Close()
	resultPub, err := messaging.NewQueuePublisher(conn, cfg.ResultQueue, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create result publisher", zap.Error(err))
	}
	defer resultPub.Close()

	runs := worker.NewRunRegistry(cfg.CancelMemory)
	handler := worker.NewHandler(orchestrator, accounts.NewPgLookup(pool, appLogger), sink, progressPub, resultPub, runs, appLogger)

	// --- 6. Метрики ---
	if cfg.PushGatewayURL != "" {
		pusher, err := metrics.NewPusher(cfg.PushGatewayURL, appLogger)
		if err != nil {
			appLogger.Warn("Pushgateway unavailable, metrics will not be pushed", zap.Error(err))
		} else {
			go pusher.Run(ctx, cfg.PushInterval)
			defer pusher.Cleanup()
		}
	}

	// --- 7. Consumers ---
	var wg sync.WaitGroup
	consumerCtx, cancelConsumers := context.WithCancel(ctx)
	defer cancelConsumers()

	wg.Add(2)
	go func() {
		defer wg.Done()
		c := worker.NewCancelConsumer(conn, cfg.CancelExchange, runs, appLogger)
		if err := c.Run(consumerCtx); err != nil {
			appLogger.Error("Cancel consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		defer cancelConsumers()
		c := worker.NewTaskConsumer(conn, cfg.TaskQueue, cfg.Concurrency, handler, appLogger)
		if err := c.Run(consumerCtx); err != nil {
			appLogger.Error("Task consumer stopped with error", zap.Error(err))
		}
	}()

	appLogger.Info("Campaign worker started")
	<-consumerCtx.Done()
	appLogger.Info("Shutting down campaign worker...", zap.Int("active_runs", runs.Active()))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		appLogger.Info("Campaign worker shut down gracefully")
	case <-time.After(30 * time.Second):
		appLogger.Warn("Timed out waiting for active runs to stop")
	}
}
