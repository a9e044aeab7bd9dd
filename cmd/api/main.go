package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventplace/internal/alerting"
	"eventplace/internal/api"
	"eventplace/internal/config"
	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/events"
	"eventplace/internal/logging"
	"eventplace/internal/metrics"
	"eventplace/internal/reasoning"
	"eventplace/internal/repository"
	"eventplace/internal/saga"
	"eventplace/internal/service"
	"eventplace/internal/telemetry"
	"eventplace/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing init failed, continuing without traces")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(flushCtx)
	}()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, only background workers will run")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	if publisher := initAMQP(cfg, bus, logger); publisher != nil {
		defer publisher.Close()
	}
	initTelegram(cfg, bus, logger)

	executor, err := saga.NewExecutor(db, reasoning.NewClient(cfg.Reasoning, logger), cfg.Saga, cfg.Reasoning.Timeout, logger)
	if err != nil {
		return fmt.Errorf("init saga executor: %w", err)
	}

	confirmations := service.NewConfirmationService(db, executor, confirmationLocker(redisClient, logger), bus, cfg.Saga.LockTTL, logger)

	recovery := worker.NewRecoveryWorker(db, confirmations, redisClient, worker.RetryPolicy{
		MaxRetries:   cfg.Recovery.MaxRetries,
		InitialDelay: cfg.Recovery.InitialDelay,
		MaxDelay:     cfg.Recovery.MaxDelay,
	}, cfg.Recovery.BatchSize, logger)
	go recovery.Start(ctx)

	scheduler, err := worker.NewRecoveryScheduler(db, recovery, database.NewBackupService(db, cfg.Backup, logger), cfg.Recovery, cfg.Backup, logger)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = scheduler.Shutdown() }()

	startMetrics(ctx, cfg, logger)

	if !cfg.API.Enabled {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received")
		return nil
	}

	handlers := api.Handlers{Confirmer: confirmations, Tasks: recovery, Workflows: db}

	var webhook *api.StripeWebhook
	if cfg.Stripe.WebhookSecret != "" {
		webhook = api.NewStripeWebhook(cfg.Stripe.WebhookSecret, recovery, logger)
	} else {
		logger.Warn().Msg("stripe webhook secret is empty, webhook endpoint disabled")
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, handlers, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, handlers, webhook, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// confirmationLocker uses redis when available and an in-process lock otherwise.
func confirmationLocker(redisClient *redis.Client, logger *zerolog.Logger) domain.ConfirmationLocker {
	memory := repository.NewMemoryConfirmationLocker()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverConfirmationLocker(repository.NewRedisConfirmationLocker(redisClient), memory, logger)
}

func initAMQP(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *events.AMQPPublisher {
	if cfg.AMQP.URL == "" {
		return nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, domain events stay in-process")
		return nil
	}
	publisher.Forward(bus, events.EventBookingConfirmed, events.EventBookingConfirmationFailed, events.EventBookingSagaRetried)
	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("forwarding booking events to rabbitmq")
	return publisher
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminChatIDs) == 0 {
		return
	}
	bot, err := alerting.NewTelegramBot(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, admin alerts disabled")
		return
	}
	alerting.NewTelegramAlerter(bot, cfg.Telegram.AdminChatIDs, logger).Subscribe(bus)
	logger.Info().Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram alerts enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Int("grpc_port", cfg.API.GRPC.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
