package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cuongbtq/courtbot/internal/api/handler"
	"github.com/cuongbtq/courtbot/internal/api/router"
	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/cleanup"
	"github.com/cuongbtq/courtbot/internal/config"
	"github.com/cuongbtq/courtbot/internal/deletion"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/gateway"
	"github.com/cuongbtq/courtbot/internal/history"
	"github.com/cuongbtq/courtbot/internal/intake"
	"github.com/cuongbtq/courtbot/internal/notify"
	"github.com/cuongbtq/courtbot/internal/renderer"
	"github.com/cuongbtq/courtbot/internal/scheduler"
	"github.com/cuongbtq/courtbot/internal/upload"
	"github.com/cuongbtq/courtbot/internal/worker"
	"github.com/cuongbtq/courtbot/shared/logger"
	"github.com/cuongbtq/courtbot/shared/postgresql"
	"github.com/cuongbtq/courtbot/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("COURTBOT_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/courtbot-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting courtbot service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	chatClient := chat.NewHTTPClient(cfg.Chat.BaseURL, cfg.Chat.Token, cfg.Chat.Timeout)
	music := domain.NewMusicCatalog(cfg.Bot.Music)

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	cooldown, closeCooldown, err := initCooldown(cfg, clock, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cooldown store: %w", err)
	}
	if closeCooldown != nil {
		closers = append(closers, closeCooldown)
	}

	uploader, err := initUploader(ctx, &cfg.Upload)
	if err != nil {
		return fmt.Errorf("failed to initialize uploader: %w", err)
	}

	var (
		recorder scheduler.Recorder
		lister   handler.HistoryLister
	)
	healthChecks := make(map[string]handler.HealthCheck)
	if cfg.Database.Enabled {
		dbClient, err := initPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append(closers, func() { dbClient.Close() })

		store := history.NewStorage(dbClient.GetDB())
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare history schema: %w", err)
		}
		recorder, lister = store, store
		healthChecks["database"] = dbClient.HealthCheck
		appLogger.Info("Database connection established")
	}

	sched := scheduler.New(scheduler.Config{
		MaxPerGuild:        cfg.Bot.MaxPerGuild,
		MaxPerUser:         cfg.Bot.MaxPerUser,
		OutputDir:          cfg.Worker.OutputDir,
		EvidenceDir:        cfg.Worker.EvidenceDir,
		DefaultUploadLimit: cfg.Bot.DefaultUploadLimit,
		Music:              music,
		Cooldown:           cooldown,
		Clock:              clock,
		Logger:             logger.WithComponent(appLogger.Logger, "scheduler"),
	})

	deletions := deletion.NewScheduler(deletion.Config{
		Deleter:       chatClient,
		Clock:         clock,
		Delay:         cfg.Bot.DeletionDelay,
		SweepInterval: cfg.Queue.SweepInterval,
		Logger:        logger.WithComponent(appLogger.Logger, "deletion"),
	})

	driver := scheduler.NewDriver(scheduler.DriverConfig{
		Scheduler:      sched,
		Notifier:       notify.NewThrottle(chatClient, logger.WithComponent(appLogger.Logger, "notify")),
		Chat:           chatClient,
		Uploader:       uploader,
		Cleaner:        cleanup.NewCleaner(logger.WithComponent(appLogger.Logger, "cleanup"), cfg.Worker.OutputDir, cfg.Worker.EvidenceDir),
		Deletions:      deletions,
		Recorder:       recorder,
		Clock:          clock,
		Interval:       cfg.Queue.TickInterval,
		PresencePrefix: cfg.Bot.Prefix,
		RetentionNote:  cfg.Bot.RetentionNote,
		Logger:         logger.WithComponent(appLogger.Logger, "driver"),
	})

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            logger.WithComponent(appLogger.Logger, "worker"),
		Source:            sched,
		Renderer:          renderer.NewHTTPClient(cfg.Renderer.BaseURL, cfg.Renderer.Timeout, cfg.Renderer.ResolutionScale),
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollInterval,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		Clock:             clock,
	})

	service := intake.NewService(sched, chatClient, deletions, logger.WithComponent(appLogger.Logger, "intake"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		deletions.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		driver.Run(ctx)
	}()

	if err := workerInstance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	errChan := make(chan error, 2)

	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		closers = append(closers, func() { rabbitClient.Close() })
		healthChecks["rabbitmq"] = func(ctx context.Context) error {
			if !rabbitClient.IsConnected() {
				return fmt.Errorf("rabbitmq connection closed")
			}
			return nil
		}
		appLogger.Info("RabbitMQ connection established")

		consumer := gateway.NewConsumer(gateway.Config{
			Source:        rabbitClient,
			Accepter:      service,
			PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
			ConsumerTag:   cfg.RabbitMQ.Consumer.Tag,
			Logger:        logger.WithComponent(appLogger.Logger, "gateway"),
		})
		go func() {
			if err := consumer.Run(ctx); err != nil {
				errChan <- fmt.Errorf("request consumer stopped: %w", err)
			}
		}()
	}

	var srv *http.Server
	if cfg.Server.Enabled {
		r := initRouter(cfg.App.Environment, &handler.Dependencies{
			Logger:   logger.WithComponent(appLogger.Logger, "api"),
			Accepter: service,
			Queue:    sched,
			Music:    music,
			History:  lister,

			HealthChecks: healthChecks,
		})

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv = &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)

		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("server failed: %w", err)
			}
		}()
	}

	appLogger.Info("Courtbot service is running")

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("Received signal, shutting down gracefully")
	case runErr = <-errChan:
		appLogger.Error("Service error", slog.Any("error", runErr))
	}
	stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		}
		cancel()
	}

	// Running renders are allowed to finish; their jobs are not reported
	// once the driver has stopped.
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Courtbot service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initCooldown picks the shared Redis gate when configured, the in-process
// one otherwise. A zero cooldown disables the gate.
func initCooldown(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (scheduler.CooldownGate, func(), error) {
	if cfg.Bot.Cooldown <= 0 {
		return nil, nil, nil
	}
	if !cfg.Redis.Enabled {
		return scheduler.NewMemoryCooldown(clock, cfg.Bot.Cooldown), nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis cooldown store connected", slog.String("addr", cfg.Redis.Addr))
	return scheduler.NewRedisCooldown(rdb, cfg.Redis.Key, cfg.Bot.Cooldown), func() { rdb.Close() }, nil
}

// initUploader builds the fallback host for oversized videos. It returns nil
// when the provider is "none".
func initUploader(ctx context.Context, cfg *config.UploadConfig) (scheduler.Uploader, error) {
	switch cfg.Provider {
	case config.UploadProviderHTTP:
		return upload.NewHTTPUploader(cfg.HTTP.Endpoint, cfg.HTTP.FieldName, cfg.HTTP.Timeout), nil
	case config.UploadProviderS3:
		return upload.NewS3Uploader(ctx, upload.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			KeyPrefix:       cfg.S3.KeyPrefix,
			PresignExpiry:   cfg.S3.PresignExpiry,
		})
	default:
		return nil, nil
	}
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(ctx, dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		QueueName:          cfg.QueueName,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetterExchange,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
