package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/app"
	"github.com/momentumjournal/transcription-service/internal/infra/config"
	"github.com/momentumjournal/transcription-service/internal/infra/email"
	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
	miniostorage "github.com/momentumjournal/transcription-service/internal/infra/minio"
	"github.com/momentumjournal/transcription-service/internal/infra/postgres"
	"github.com/momentumjournal/transcription-service/internal/infra/rabbitmq"
	"github.com/momentumjournal/transcription-service/internal/infra/tracing"
	"github.com/momentumjournal/transcription-service/internal/usecase"
	"github.com/momentumjournal/transcription-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting transcription worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "worker")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    cfg.MinIOEndpoint,
		AccessKey:   cfg.MinIOAccessKey,
		SecretKey:   cfg.MinIOSecretKey,
		UseSSL:      cfg.MinIOUseSSL,
		MediaBucket: cfg.MinIOMediaBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	topology := rabbitmq.Topology{
		Exchange:     cfg.RabbitMQExchange,
		ProcessQueue: cfg.RabbitMQProcessQueue,
		StatusQueue:  cfg.RabbitMQStatusQueue,
		DLQ:          cfg.RabbitMQDLQ,
	}

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, topology)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	chunks := postgres.NewChunkRepository(pool)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	transcriber, err := app.NewTranscriber(cfg, storage, chunks, log)
	fatalOnErr(err, "build transcriber")
	highlights := app.NewHighlightGenerator(cfg, log)

	// Use case
	uc := usecase.NewProcessTranscriptionUseCase(
		repo, transcriber, highlights,
		statusPub, dlqPub, notifier,
		log,
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, pool.Ping, storage.Ping)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:          cfg.RabbitMQURL,
		Topology:     topology,
		Prefetch:     cfg.RabbitMQPrefetch,
		WorkerCount:  cfg.WorkerCount,
		BaseDelayMs:  cfg.RetryBaseDelayMs,
		MaxAttempts:  cfg.RabbitMQMaxAttempts,
		DrainTimeout: cfg.ShutdownDrainTimeout,
	}, uc.HandleMessage, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Cancelling ctx stops new deliveries; the consumer drains in-flight jobs
	// for up to SHUTDOWN_DRAIN_TIMEOUT before Start returns.
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("transcription worker started, consuming messages",
		zap.String("provider", transcriber.Name()),
		zap.Int("workers", cfg.WorkerCount),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	pub.Close()
	log.Info("transcription worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
