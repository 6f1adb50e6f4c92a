package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/app"
	"github.com/momentumjournal/transcription-service/internal/dispatch"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/httpapi"
	"github.com/momentumjournal/transcription-service/internal/infra/auth"
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

const (
	dispatchModeRabbitMQ = "rabbitmq"
	dispatchModeLocal    = "local"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting transcription api", zap.String("dispatch_mode", cfg.DispatchMode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "api")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    cfg.MinIOEndpoint,
		AccessKey:   cfg.MinIOAccessKey,
		SecretKey:   cfg.MinIOSecretKey,
		UseSSL:      cfg.MinIOUseSSL,
		MediaBucket: cfg.MinIOMediaBucket,
	})
	fatalOnErr(err, "create minio storage")

	repo := postgres.NewJobRepository(pool)
	chunks := postgres.NewChunkRepository(pool)
	media := postgres.NewMediaRepository(pool)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	transcriber, err := app.NewTranscriber(cfg, storage, chunks, log)
	fatalOnErr(err, "build transcriber")
	highlights := app.NewHighlightGenerator(cfg, log)

	var (
		dispatcher port.JobDispatcher
		statusPub  port.StatusPublisher
		local      *dispatch.Local
	)

	switch cfg.DispatchMode {
	case dispatchModeRabbitMQ:
		rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
		fatalOnErr(err, "connect to rabbitmq")
		defer rmqConn.Close()

		pub, err := rabbitmq.NewPublisher(rmqConn, rabbitmq.Topology{
			Exchange:     cfg.RabbitMQExchange,
			ProcessQueue: cfg.RabbitMQProcessQueue,
			StatusQueue:  cfg.RabbitMQStatusQueue,
			DLQ:          cfg.RabbitMQDLQ,
		})
		fatalOnErr(err, "create rabbitmq publisher")
		defer pub.Close()

		dispatcher = rabbitmq.NewDispatcher(pub)
		statusPub = rabbitmq.NewStatusPublisher(pub)
	case dispatchModeLocal:
	default:
		fatalOnErr(fmt.Errorf("unknown mode %q", cfg.DispatchMode), "dispatch mode")
	}

	processor := usecase.NewProcessTranscriptionUseCase(
		repo, transcriber, highlights,
		statusPub, nil, notifier,
		log,
	)

	if cfg.DispatchMode == dispatchModeLocal {
		local = dispatch.NewLocal(ctx, cfg.LocalDispatchLimit, func(ctx context.Context, id uuid.UUID) error {
			_, err := processor.Execute(ctx, id)
			return err
		}, log)
		dispatcher = local
		go drainResults(ctx, local, log)
	}

	server := httpapi.New(httpapi.Deps{
		Queue:          usecase.NewQueueTranscriptionUseCase(repo, dispatcher, cfg.DispatchMode, log),
		Process:        processor,
		Transcribe:     usecase.NewTranscribeUseCase(transcriber),
		Highlights:     usecase.NewHighlightsUseCase(highlights, repo, log),
		Backfill:       usecase.NewBackfillUseCase(media, repo, dispatcher, cfg.DispatchMode, cfg.MediaPublicBaseURL, log),
		Jobs:           usecase.NewJobsUseCase(repo, dispatcher, cfg.DispatchMode, log),
		Verifier:       auth.NewVerifier(cfg.AuthURL, cfg.ServiceRoleKey, cfg.HTTPClientTimeout),
		ServiceKey:     cfg.ServiceRoleKey,
		ProcessTimeout: processTimeout(cfg),
		Logger:         log,
	})

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, pool.Ping, storage.Ping)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		log.Info("http server starting", zap.String("addr", addr))
		if err := server.Listen(addr); err != nil {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	metricsSrv.Shutdown(shutdownCtx)

	if local != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
		if err := local.Close(drainCtx); err != nil {
			log.Warn("local jobs interrupted on shutdown", zap.Error(err))
		}
		drainCancel()
	}
	cancel()
	log.Info("transcription api stopped")
}

// processTimeout leaves room for the full poll budget plus upload and
// highlight calls on the synchronous worker endpoint.
func processTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.PollMaxAttempts)*cfg.PollInterval + cfg.UploadTimeout + 2*cfg.HTTPClientTimeout
}

func drainResults(ctx context.Context, local *dispatch.Local, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-local.Results():
			if r.Err != nil {
				log.Debug("local dispatch result", zap.String("job_id", r.JobID.String()), zap.Error(r.Err))
			}
		}
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
